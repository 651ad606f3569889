// Package decoy renders synthetic protocol replies. Every response is
// assembled from fixed templates and configured value pools; client input is
// never echoed back and output size is capped, so a reply can neither leak a
// real capability nor amplify traffic.
package decoy

import (
	"math/rand"
	"strings"
)

// Options configures a Generator. Empty pools fall back to the defaults.
type Options struct {
	ServerPool    []string
	FrameworkPool []string
	MaxBytes      int
}

// Generator builds decoy responses for all emulated services.
type Generator struct {
	serverPool    []string
	frameworkPool []string
	maxBytes      int
}

// New creates a Generator.
func New(opts Options) *Generator {
	if len(opts.ServerPool) == 0 {
		opts.ServerPool = defaultServerPool
	}
	if len(opts.FrameworkPool) == 0 {
		opts.FrameworkPool = defaultFrameworkPool
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 16384
	}

	return &Generator{
		serverPool:    opts.ServerPool,
		frameworkPool: opts.FrameworkPool,
		maxBytes:      opts.MaxBytes,
	}
}

// Identity draws a fresh pair of identity-revealing header values. Repeated
// calls vary so a decoy path never presents a stable fingerprint.
func (g *Generator) Identity() (server, framework string) {
	server = g.serverPool[rand.Intn(len(g.serverPool))]
	framework = g.frameworkPool[rand.Intn(len(g.frameworkPool))]
	return server, framework
}

// ServerPool exposes the configured server banner pool.
func (g *Generator) ServerPool() []string { return g.serverPool }

// FrameworkPool exposes the configured framework marker pool.
func (g *Generator) FrameworkPool() []string { return g.frameworkPool }

// WebBody selects a decoy HTML body for the given request path and detected
// tool. Path-specific lures take precedence over tool-specific ones.
func (g *Generator) WebBody(path, tool string) string {
	lower := strings.ToLower(path)

	switch {
	case strings.Contains(lower, "wp-login"), strings.Contains(lower, "wp-admin"):
		return g.clamp(wordpressLoginPage)
	case strings.Contains(lower, "phpmyadmin"):
		return g.clamp(phpMyAdminPage)
	case strings.HasSuffix(lower, "/.env"):
		return g.clamp(dotEnvBody)
	case strings.HasSuffix(lower, "config.php"), strings.HasSuffix(lower, "config.inc.php"):
		return g.clamp(configPHPBody)
	}

	switch tool {
	case "sqlmap", "sql_injection":
		return g.clamp(sqlErrorPage)
	case "nikto":
		return g.clamp(restrictedAdminPage)
	case "nmap":
		return g.clamp(blandWelcomePage)
	}

	return g.clamp("<html><body>" + genericBodies[rand.Intn(len(genericBodies))] + "</body></html>")
}

// BadRequestBody is the body served for unparseable requests.
func (g *Generator) BadRequestBody() string {
	return g.clamp(badRequestPage)
}

// ShellBanner returns the fake remote-shell protocol banner.
func (g *Generator) ShellBanner() string {
	return shellBanner
}

// ShellLoginPrompt returns the username prompt.
func (g *Generator) ShellLoginPrompt() string {
	return "login as: "
}

// ShellPasswordPrompt returns the password prompt for a submitted username.
// The username is the one piece of client input that appears in output; it
// is length-capped and stripped of control characters first.
func (g *Generator) ShellPasswordPrompt(username string) string {
	return sanitizeToken(username, 32) + "@server's password: "
}

// ShellDenied returns the per-attempt login failure line. Login never
// succeeds regardless of the submitted credentials.
func (g *Generator) ShellDenied() string {
	return "Permission denied, please try again.\r\n"
}

// ShellFinalDenied returns the closing failure line once the attempt cap is
// reached.
func (g *Generator) ShellFinalDenied() string {
	return "Permission denied (publickey,password).\r\n"
}

// FTPGreeting returns the control-channel greeting.
func (g *Generator) FTPGreeting() string {
	return "220 (vsFTPd 3.0.3)\r\n"
}

// FTPReply maps a control command to its inert reply lines. Listing returns
// a fixed decoy directory, retrieval and storage are always refused, and
// unknown commands get a generic not-implemented reply.
func (g *Generator) FTPReply(cmd string) []string {
	switch strings.ToUpper(cmd) {
	case "USER":
		return []string{"331 Please specify the password.\r\n"}
	case "PASS":
		return []string{"530 Login incorrect.\r\n"}
	case "PWD":
		return []string{"257 \"/\" is the current directory\r\n"}
	case "LIST":
		return []string{
			"150 Here comes the directory listing.\r\n",
			decoyDirectoryListing,
			"226 Directory send OK.\r\n",
		}
	case "RETR":
		return []string{"550 Permission denied.\r\n"}
	case "STOR":
		return []string{"550 Permission denied.\r\n"}
	case "QUIT":
		return []string{"221 Goodbye.\r\n"}
	default:
		return []string{"502 Command not implemented.\r\n"}
	}
}

// clamp bounds a response body to the configured size.
func (g *Generator) clamp(s string) string {
	if len(s) <= g.maxBytes {
		return s
	}
	return s[:g.maxBytes]
}

// sanitizeToken keeps a client-supplied token printable and short before it
// is reflected in a prompt.
func sanitizeToken(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= max {
			break
		}
	}
	return b.String()
}
