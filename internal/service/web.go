package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/sink"
)

const (
	maxRequestLineBytes = 2048
	maxHeaderLineBytes  = 1024
	maxHeaderCount      = 64
)

// errMalformed marks input that arrived but could not be parsed as HTTP.
var errMalformed = errors.New("malformed request")

// WebService emulates an HTTP server. It supports persistent connections up
// to a request cap, parses method, path, headers and body from raw bytes,
// and answers every request with a decoy page behind randomized identity
// headers.
type WebService struct {
	detector fingerprint.Detector
	decoys   *decoy.Generator
	events   sink.Recorder
	limits   Limits
	logger   *slog.Logger
}

var _ Handler = (*WebService)(nil)

// NewWeb creates the web service.
func NewWeb(detector fingerprint.Detector, decoys *decoy.Generator, events sink.Recorder, limits Limits, logger *slog.Logger) *WebService {
	return &WebService{
		detector: detector,
		decoys:   decoys,
		events:   events,
		limits:   limits.withDefaults(),
		logger:   logger,
	}
}

// Service implements Handler.
func (s *WebService) Service() model.Service { return model.ServiceWeb }

type webRequest struct {
	Method    string
	Path      string
	Proto     string
	Headers   map[string]string
	Body      string
	KeepAlive bool
}

// HandleConn implements Handler.
func (s *WebService) HandleConn(ctx context.Context, conn net.Conn) {
	sessionID := uuid.NewString()
	hard := connDeadlines(conn, s.limits)
	br := bufio.NewReader(conn)

	for served := 0; served < s.limits.MaxRequests; served++ {
		if ctx.Err() != nil {
			return
		}

		armRead(conn, s.limits.IdleTimeout, hard)
		req, raw, err := s.readRequest(br)
		if err != nil {
			if errors.Is(err, errMalformed) {
				s.respondMalformed(ctx, conn, sessionID, raw)
			}
			// Idle timeout, client close, or garbage: either way this
			// connection is done.
			return
		}

		tool := s.detector.DetectTool(req.Headers, req.Path, req.Body)
		classification := s.detector.Classify(req.sourceIP(conn), tool, time.Now().UTC())
		body := s.decoys.WebBody(req.Path, tool)

		connHeader := "keep-alive"
		last := !req.KeepAlive || served == s.limits.MaxRequests-1
		if last {
			connHeader = "close"
		}
		if err := s.writeResponse(conn, 200, "OK", connHeader, body); err != nil {
			return
		}

		ev := newEvent(model.ServiceWeb, sessionID, conn)
		ev.RequestType = req.Method
		ev.Target = req.Path
		ev.Payload = model.Truncate(req.Body, s.limits.MaxPayloadBytes)
		ev.Tool = tool
		ev.Classification = classification
		for k, v := range req.Headers {
			ev.SetMeta("header."+strings.ToLower(k), v)
		}
		ev.SetMeta("proto", req.Proto)
		s.events.Record(ctx, ev)

		if last {
			return
		}
	}
}

// sourceIP is a tiny helper so classification keys on the host, not the
// ephemeral client port.
func (r *webRequest) sourceIP(conn net.Conn) string {
	ip, _ := model.SplitAddr(conn.RemoteAddr().String())
	return ip
}

// readRequest parses one HTTP request. It returns errMalformed together
// with the offending raw line when bytes arrived but did not parse; a clean
// EOF before any byte is a plain read error and produces no event.
func (s *WebService) readRequest(br *bufio.Reader) (*webRequest, string, error) {
	line, err := readLimitedLine(br, maxRequestLineBytes)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(line) == "" {
		return nil, line, errMalformed
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return nil, line, errMalformed
	}
	req := &webRequest{
		Method:  parts[0],
		Path:    parts[1],
		Headers: make(map[string]string),
	}
	if len(parts) >= 3 {
		req.Proto = parts[2]
	}

	for i := 0; i < maxHeaderCount; i++ {
		hdr, err := readLimitedLine(br, maxHeaderLineBytes)
		if err != nil {
			return nil, line, errMalformed
		}
		if hdr == "" {
			break
		}
		key, value, ok := strings.Cut(hdr, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := s.readBody(br, req); err != nil {
		return nil, line, errMalformed
	}

	req.KeepAlive = keepAlive(req)
	return req, line, nil
}

// readBody consumes a Content-Length body, retaining at most the payload
// cap. Oversized bodies force the connection to close after the response
// instead of being drained.
func (s *WebService) readBody(br *bufio.Reader, req *webRequest) error {
	cl := headerValue(req.Headers, "Content-Length")
	if cl == "" {
		return nil
	}
	length, err := strconv.Atoi(cl)
	if err != nil || length < 0 {
		return fmt.Errorf("bad content length %q", cl)
	}

	keep := length
	if keep > s.limits.MaxPayloadBytes {
		keep = s.limits.MaxPayloadBytes
	}
	buf := make([]byte, keep)
	if _, err := io.ReadFull(br, buf); err != nil {
		return err
	}
	req.Body = string(buf)

	if length > keep {
		// Do not drain arbitrarily large bodies; the handler closes the
		// connection after responding.
		req.Headers["Connection"] = "close"
	}
	return nil
}

func keepAlive(req *webRequest) bool {
	conn := strings.ToLower(headerValue(req.Headers, "Connection"))
	if req.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// respondMalformed logs garbage input with safe defaults and answers with a
// generic 400 decoy.
func (s *WebService) respondMalformed(ctx context.Context, conn net.Conn, sessionID, raw string) {
	ev := newEvent(model.ServiceWeb, sessionID, conn)
	ev.RequestType = "malformed"
	ev.Payload = model.Truncate(raw, s.limits.MaxPayloadBytes)
	ev.Classification = model.ClassificationHuman

	if err := s.writeResponse(conn, 400, "Bad Request", "close", s.decoys.BadRequestBody()); err != nil {
		s.logger.Debug("Failed to answer malformed request", "error", err)
	}
	s.events.Record(ctx, ev)
}

// writeResponse renders a complete HTTP response with freshly randomized
// identity headers.
func (s *WebService) writeResponse(conn net.Conn, status int, reason, connHeader, body string) error {
	server, framework := s.decoys.Identity()

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, reason)
	fmt.Fprintf(&b, "Server: %s\r\n", server)
	fmt.Fprintf(&b, "X-Powered-By: %s\r\n", framework)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(&b, "Connection: %s\r\n", connHeader)
	b.WriteString("\r\n")
	b.WriteString(body)

	return writeAll(conn, b.String())
}
