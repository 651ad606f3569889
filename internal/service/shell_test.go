package service

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/decoynet/internal/model"
)

func newTestShell(recorder *captureRecorder, maxAttempts int) *ShellService {
	limits := testLimits()
	limits.MaxAttempts = maxAttempts
	return NewShell(testDetector(), testGenerator(), recorder, limits, testLogger())
}

func TestShell_NeverGrantsAccess(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestShell(recorder, 2))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "root\nhunter2\nadmin\npassword123\n")

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	output := string(out)

	assert.Contains(t, output, "SSH-2.0-OpenSSH")
	assert.Contains(t, output, "login as: ")
	assert.Contains(t, output, "root@server's password: ")
	assert.Contains(t, output, "Permission denied, please try again.")
	assert.Contains(t, output, "Permission denied (publickey,password).")

	lower := strings.ToLower(output)
	assert.NotContains(t, lower, "last login")
	assert.NotContains(t, lower, "welcome")
	assert.NotContains(t, lower, "success")

	events := waitEvents(t, recorder, 2)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, model.ServiceShell, first.Service)
	assert.Equal(t, "LOGIN", first.RequestType)
	assert.Equal(t, "root", first.Target)
	assert.Equal(t, "root", first.Metadata["username"])
	assert.Equal(t, "hunter2", first.Metadata["password"])
	assert.Equal(t, "1", first.Metadata["attempt"])

	second := events[1]
	assert.Equal(t, "admin", second.Metadata["username"])
	assert.Equal(t, "password123", second.Metadata["password"])
	assert.Equal(t, "2", second.Metadata["attempt"])

	// Both attempts ride the same connection session.
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestShell_EmptyCredentialsStillLogged(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestShell(recorder, 1))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "\n\n")

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Permission denied")

	events := waitEvents(t, recorder, 1)
	ev := events[0]
	assert.Equal(t, "", ev.Target)
	assert.Equal(t, "", ev.Metadata["username"])
	assert.Equal(t, "", ev.Metadata["password"])
	assert.Equal(t, model.ClassificationHuman, ev.Classification)
}

func TestShell_ToolMarkerInCredentials(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestShell(recorder, 1))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "sqlmap\nsqlmap\n")

	_, err := io.ReadAll(conn)
	require.NoError(t, err)

	events := waitEvents(t, recorder, 1)
	assert.Equal(t, "sqlmap", events[0].Tool)
	assert.Equal(t, model.ClassificationScanner, events[0].Classification)
}

func TestShell_ClientDisconnectMidPrompt(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestShell(recorder, 0))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "root\n")
	conn.Close()

	// No completed credential exchange means no event; the handler must
	// still exit cleanly.
	assert.Never(t, func() bool {
		return len(recorder.all()) > 0
	}, 300*time.Millisecond, 50*time.Millisecond)
}
