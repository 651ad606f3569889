package service

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/decoynet/internal/model"
)

// httpResponse is a minimally parsed response for assertions.
type httpResponse struct {
	StatusLine string
	Headers    map[string]string
	Body       string
}

func readHTTPResponse(t *testing.T, br *bufio.Reader) *httpResponse {
	t.Helper()

	resp := &httpResponse{
		StatusLine: strings.TrimSpace(readTestLine(t, br)),
		Headers:    make(map[string]string),
	}
	for {
		line := strings.TrimSpace(readTestLine(t, br))
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		require.True(t, ok, "bad header line %q", line)
		resp.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	length, err := strconv.Atoi(resp.Headers["Content-Length"])
	require.NoError(t, err)
	body := make([]byte, length)
	_, err = io.ReadFull(br, body)
	require.NoError(t, err)
	resp.Body = string(body)
	return resp
}

func newTestWeb(recorder *captureRecorder) *WebService {
	return NewWeb(testDetector(), testGenerator(), recorder, testLimits(), testLogger())
}

func TestWeb_ScannerRequest(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "GET /index.php HTTP/1.1\r\nHost: target\r\nUser-Agent: sqlmap/1.7.2\r\nConnection: close\r\n\r\n")

	resp := readHTTPResponse(t, bufio.NewReader(conn))
	assert.Contains(t, resp.StatusLine, "200")
	assert.NotEmpty(t, resp.Headers["Server"])
	assert.NotEmpty(t, resp.Headers["X-Powered-By"])
	assert.Contains(t, resp.Body, "SQL syntax")

	events := waitEvents(t, recorder, 1)
	ev := events[0]
	assert.Equal(t, model.ServiceWeb, ev.Service)
	assert.Equal(t, "GET", ev.RequestType)
	assert.Equal(t, "/index.php", ev.Target)
	assert.Equal(t, "sqlmap", ev.Tool)
	assert.Equal(t, model.ClassificationScanner, ev.Classification)
	assert.Equal(t, "sqlmap/1.7.2", ev.Metadata["header.user-agent"])
	assert.NotEmpty(t, ev.SessionID)
	assert.Equal(t, "127.0.0.1", ev.SourceIP)
}

func TestWeb_PostBodyCaptured(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	body := "id=1 UNION SELECT username,password FROM users"
	conn := dial(t, addr)
	fmt.Fprintf(conn, "POST /products HTTP/1.1\r\nHost: target\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)

	resp := readHTTPResponse(t, bufio.NewReader(conn))
	assert.Contains(t, resp.StatusLine, "200")
	// The decoy page must not echo the injected payload.
	assert.NotContains(t, resp.Body, "FROM users")

	events := waitEvents(t, recorder, 1)
	ev := events[0]
	assert.Equal(t, "POST", ev.RequestType)
	assert.Equal(t, body, ev.Payload)
	assert.Equal(t, "sql_injection", ev.Tool)
	assert.Equal(t, model.ClassificationScanner, ev.Classification)
}

func TestWeb_MalformedRequest(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "garbage\r\n")

	resp := readHTTPResponse(t, bufio.NewReader(conn))
	assert.Contains(t, resp.StatusLine, "400")

	events := waitEvents(t, recorder, 1)
	ev := events[0]
	assert.Equal(t, "malformed", ev.RequestType)
	assert.Equal(t, "garbage", ev.Payload)
	assert.Equal(t, "", ev.Tool)
	assert.Equal(t, model.ClassificationHuman, ev.Classification)
}

func TestWeb_SilentConnectionProducesNoEvent(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	conn := dial(t, addr)
	conn.Close()

	// Nothing was exchanged, so nothing is recorded.
	assert.Never(t, func() bool {
		return len(recorder.all()) > 0
	}, 300*time.Millisecond, 50*time.Millisecond)
}

func TestWeb_PersistentConnection(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	conn := dial(t, addr)
	br := bufio.NewReader(conn)

	fmt.Fprintf(conn, "GET /first HTTP/1.1\r\nHost: target\r\n\r\n")
	first := readHTTPResponse(t, br)
	assert.Contains(t, first.StatusLine, "200")
	assert.Equal(t, "keep-alive", first.Headers["Connection"])

	fmt.Fprintf(conn, "GET /second HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n")
	second := readHTTPResponse(t, br)
	assert.Contains(t, second.StatusLine, "200")
	assert.Equal(t, "close", second.Headers["Connection"])

	events := waitEvents(t, recorder, 2)
	assert.Equal(t, "/first", events[0].Target)
	assert.Equal(t, "/second", events[1].Target)
	// Both cycles belong to the same connection session.
	assert.Equal(t, events[0].SessionID, events[1].SessionID)
}

func TestWeb_WordpressDecoy(t *testing.T) {
	recorder := &captureRecorder{}
	addr := startHandler(t, newTestWeb(recorder))

	conn := dial(t, addr)
	fmt.Fprintf(conn, "GET /wp-login.php HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n")

	resp := readHTTPResponse(t, bufio.NewReader(conn))
	assert.Contains(t, resp.Body, "WordPress Login")

	events := waitEvents(t, recorder, 1)
	assert.Equal(t, "wordpress_scanner", events[0].Tool)
}

func TestWeb_IdentityHeadersVary(t *testing.T) {
	recorder := &captureRecorder{}
	web := newTestWeb(recorder)
	addr := startHandler(t, web)

	pool := make(map[string]bool)
	for _, s := range testGenerator().ServerPool() {
		pool[s] = true
	}

	seen := make(map[string]bool)
	for i := 0; i < 30; i++ {
		conn := dial(t, addr)
		fmt.Fprintf(conn, "GET /same-path HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n")
		resp := readHTTPResponse(t, bufio.NewReader(conn))
		server := resp.Headers["Server"]
		assert.True(t, pool[server], "server banner %q outside configured pool", server)
		seen[server] = true
		conn.Close()
	}
	assert.Greater(t, len(seen), 1, "server banner never varied across 30 requests")
}
