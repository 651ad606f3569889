// Package fingerprint infers which scanning tool produced a request and
// classifies the client behind it. Detection is an ordered first-match scan
// over substring rules; classification layers a per-source burst heuristic
// on top. Both are deliberately simple: the worst case is a misclassified
// client, never an error.
package fingerprint

import (
	"sort"
	"strings"
	"time"

	"github.com/sgerhart/decoynet/internal/model"
)

// Detector is the classification capability used by the protocol services.
// Alternative implementations (statistical, learned) can be substituted
// without touching the services.
type Detector interface {
	// DetectTool evaluates the rule set against the request fields and
	// returns the first matching tool identifier, or "" when none match.
	DetectTool(headers map[string]string, path, payload string) string

	// Classify categorizes the source of one request. A detected tool is
	// always a scanner; otherwise the request is recorded in the source's
	// history and a burst within the window marks the source as a bot.
	Classify(source, tool string, now time.Time) model.Classification
}

// Options configures a Classifier.
type Options struct {
	Rules       []Rule
	BurstCount  int
	BurstWindow time.Duration
	MaxSources  int
}

// Classifier is the default rule-based Detector.
type Classifier struct {
	rules      []Rule
	burstCount int
	history    *historyMap
}

var _ Detector = (*Classifier)(nil)

// New creates a Classifier. Zero-valued options fall back to the built-in
// rule set and the default burst heuristic (5 requests in 2 seconds).
func New(opts Options) *Classifier {
	if len(opts.Rules) == 0 {
		opts.Rules = DefaultRules()
	}
	if opts.BurstCount <= 0 {
		opts.BurstCount = 5
	}
	if opts.BurstWindow <= 0 {
		opts.BurstWindow = 2 * time.Second
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = 4096
	}

	return &Classifier{
		rules:      opts.Rules,
		burstCount: opts.BurstCount,
		history:    newHistoryMap(opts.BurstWindow, opts.MaxSources),
	}
}

// DetectTool implements Detector. Absent or nil inputs are treated as empty
// strings; identical inputs always yield identical output.
func (c *Classifier) DetectTool(headers map[string]string, path, payload string) string {
	headerBlob := flattenHeaders(headers)
	lowerPath := strings.ToLower(path)
	lowerPayload := strings.ToLower(payload)

	for _, rule := range c.rules {
		if rule.matches(headerBlob, lowerPath, lowerPayload) {
			return rule.Tool
		}
	}
	return ""
}

// Classify implements Detector. Only the no-tool branch mutates history, so
// sources driven by a known scanner do not pollute burst detection.
func (c *Classifier) Classify(source, tool string, now time.Time) model.Classification {
	if tool != "" {
		return model.ClassificationScanner
	}

	if c.history.observe(source, now) > c.burstCount {
		return model.ClassificationBot
	}
	return model.ClassificationHuman
}

// TrackedSources reports how many sources currently have burst history.
func (c *Classifier) TrackedSources() int {
	return c.history.len()
}

// flattenHeaders renders headers as one lowercase blob with deterministic
// key order, so rule evaluation does not depend on map iteration.
func flattenHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strings.ToLower(k))
		b.WriteString(": ")
		b.WriteString(strings.ToLower(headers[k]))
		b.WriteString("\n")
	}
	return b.String()
}
