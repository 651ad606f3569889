package service

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/sink"
)

const maxCommandBytes = 512

// FTPService emulates a file-transfer control channel. It recognizes a
// small fixed command vocabulary and answers each command with a
// syntactically valid but inert reply: listing shows a fixed decoy
// directory, retrieval and storage are always refused.
type FTPService struct {
	detector fingerprint.Detector
	decoys   *decoy.Generator
	events   sink.Recorder
	limits   Limits
	logger   *slog.Logger
}

var _ Handler = (*FTPService)(nil)

// NewFTP creates the file-transfer service.
func NewFTP(detector fingerprint.Detector, decoys *decoy.Generator, events sink.Recorder, limits Limits, logger *slog.Logger) *FTPService {
	return &FTPService{
		detector: detector,
		decoys:   decoys,
		events:   events,
		limits:   limits.withDefaults(),
		logger:   logger,
	}
}

// Service implements Handler.
func (s *FTPService) Service() model.Service { return model.ServiceFTP }

// HandleConn implements Handler.
func (s *FTPService) HandleConn(ctx context.Context, conn net.Conn) {
	sessionID := uuid.NewString()
	hard := connDeadlines(conn, s.limits)

	if err := writeAll(conn, s.decoys.FTPGreeting()); err != nil {
		return
	}

	br := bufio.NewReader(conn)
	sourceIP, _ := model.SplitAddr(conn.RemoteAddr().String())

	for {
		if ctx.Err() != nil {
			return
		}

		armRead(conn, s.limits.IdleTimeout, hard)
		line, err := readLimitedLine(br, maxCommandBytes)
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		cmd = strings.ToUpper(cmd)
		arg = strings.TrimSpace(arg)

		tool := s.detector.DetectTool(nil, arg, line)
		classification := s.detector.Classify(sourceIP, tool, time.Now().UTC())

		for _, reply := range s.decoys.FTPReply(cmd) {
			if err := writeAll(conn, reply); err != nil {
				return
			}
		}

		ev := newEvent(model.ServiceFTP, sessionID, conn)
		ev.RequestType = cmd
		ev.Target = arg
		ev.Payload = model.Truncate(line, s.limits.MaxPayloadBytes)
		ev.Tool = tool
		ev.Classification = classification
		if arg != "" {
			ev.SetMeta("argument", arg)
		}
		s.events.Record(ctx, ev)

		if cmd == "QUIT" {
			return
		}
	}
}
