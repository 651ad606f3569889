package fingerprint

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MatchField selects which request field a rule pattern is tested against.
type MatchField string

const (
	MatchAny     MatchField = "any"
	MatchHeaders MatchField = "headers"
	MatchPath    MatchField = "path"
	MatchPayload MatchField = "payload"
)

// Rule pairs a case-insensitive substring pattern with a tool identifier.
// Rules are evaluated in order; the first match wins.
type Rule struct {
	Pattern string     `yaml:"pattern"`
	Tool    string     `yaml:"tool"`
	Match   MatchField `yaml:"match"`
}

// Validate checks that the rule is usable.
func (r Rule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern is required")
	}
	if r.Tool == "" {
		return fmt.Errorf("rule tool identifier is required")
	}
	switch r.Match {
	case MatchAny, MatchHeaders, MatchPath, MatchPayload, "":
	default:
		return fmt.Errorf("invalid match field: %s", r.Match)
	}
	return nil
}

// matches tests the rule against already-lowercased request fields.
func (r Rule) matches(headers, path, payload string) bool {
	pat := strings.ToLower(r.Pattern)
	switch r.Match {
	case MatchHeaders:
		return strings.Contains(headers, pat)
	case MatchPath:
		return strings.Contains(path, pat)
	case MatchPayload:
		return strings.Contains(payload, pat)
	default: // MatchAny
		return strings.Contains(headers, pat) ||
			strings.Contains(path, pat) ||
			strings.Contains(payload, pat)
	}
}

// DefaultRules returns the built-in signature set. User-agent markers of
// common scanners come first, then path probes, then injection payloads.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "sqlmap", Tool: "sqlmap", Match: MatchAny},
		{Pattern: "nikto", Tool: "nikto", Match: MatchAny},
		{Pattern: "nmap", Tool: "nmap", Match: MatchAny},
		{Pattern: "libwww-perl", Tool: "nmap", Match: MatchHeaders},
		{Pattern: "python-requests", Tool: "nmap", Match: MatchHeaders},
		{Pattern: "w3af", Tool: "w3af", Match: MatchAny},
		{Pattern: "acunetix", Tool: "acunetix", Match: MatchAny},
		{Pattern: "nessus", Tool: "nessus", Match: MatchAny},

		{Pattern: "wp-login", Tool: "wordpress_scanner", Match: MatchPath},
		{Pattern: "wp-admin", Tool: "wordpress_scanner", Match: MatchPath},
		{Pattern: "phpmyadmin", Tool: "phpmyadmin_scanner", Match: MatchPath},
		{Pattern: "/etc/passwd", Tool: "file_inclusion", Match: MatchPath},

		{Pattern: "select", Tool: "sql_injection", Match: MatchPayload},
		{Pattern: "union", Tool: "sql_injection", Match: MatchPayload},
		{Pattern: "sleep", Tool: "sql_injection", Match: MatchPayload},
		{Pattern: "benchmark", Tool: "sql_injection", Match: MatchPayload},
		{Pattern: "load_file", Tool: "sql_injection", Match: MatchPayload},
		{Pattern: "into outfile", Tool: "sql_injection", Match: MatchPayload},
	}
}

// ruleFile is the on-disk shape of a rules override file.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML file. Invalid rules are
// rejected rather than skipped: a bad rules file is a startup error.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	for i, rule := range rf.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d in %s: %w", i, path, err)
		}
	}

	return rf.Rules, nil
}
