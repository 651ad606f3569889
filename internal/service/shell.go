package service

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/sink"
)

const maxCredentialBytes = 256

// ShellService emulates a remote login shell. It sends a banner, prompts
// for credentials in plain text, and records every attempt. Authentication
// never succeeds: there are no accounts to succeed against.
type ShellService struct {
	detector fingerprint.Detector
	decoys   *decoy.Generator
	events   sink.Recorder
	limits   Limits
	logger   *slog.Logger
}

var _ Handler = (*ShellService)(nil)

// NewShell creates the login-shell service.
func NewShell(detector fingerprint.Detector, decoys *decoy.Generator, events sink.Recorder, limits Limits, logger *slog.Logger) *ShellService {
	return &ShellService{
		detector: detector,
		decoys:   decoys,
		events:   events,
		limits:   limits.withDefaults(),
		logger:   logger,
	}
}

// Service implements Handler.
func (s *ShellService) Service() model.Service { return model.ServiceShell }

// HandleConn implements Handler.
func (s *ShellService) HandleConn(ctx context.Context, conn net.Conn) {
	sessionID := uuid.NewString()
	hard := connDeadlines(conn, s.limits)

	if err := writeAll(conn, s.decoys.ShellBanner()); err != nil {
		return
	}

	br := bufio.NewReader(conn)
	sourceIP, _ := model.SplitAddr(conn.RemoteAddr().String())

	for attempts := 1; ; attempts++ {
		if ctx.Err() != nil {
			return
		}

		if err := writeAll(conn, s.decoys.ShellLoginPrompt()); err != nil {
			return
		}
		armRead(conn, s.limits.IdleTimeout, hard)
		username, err := readLimitedLine(br, maxCredentialBytes)
		if err != nil {
			return
		}

		if err := writeAll(conn, s.decoys.ShellPasswordPrompt(username)); err != nil {
			return
		}
		armRead(conn, s.limits.IdleTimeout, hard)
		password, err := readLimitedLine(br, maxCredentialBytes)
		if err != nil {
			return
		}

		tool := s.detector.DetectTool(nil, "", username+"\n"+password)
		classification := s.detector.Classify(sourceIP, tool, time.Now().UTC())

		final := s.limits.MaxAttempts > 0 && attempts >= s.limits.MaxAttempts
		denial := s.decoys.ShellDenied()
		if final {
			denial = s.decoys.ShellFinalDenied()
		}
		if err := writeAll(conn, denial); err != nil {
			return
		}

		ev := newEvent(model.ServiceShell, sessionID, conn)
		ev.RequestType = "LOGIN"
		ev.Target = username
		ev.Tool = tool
		ev.Classification = classification
		ev.SetMeta("username", username)
		ev.SetMeta("password", password)
		ev.SetMeta("attempt", strconv.Itoa(attempts))
		s.events.Record(ctx, ev)

		if final {
			return
		}
	}
}
