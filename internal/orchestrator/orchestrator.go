// Package orchestrator owns the lifecycle of the protocol listeners.
// Startup is all-or-nothing: every configured listener binds before any
// connection is accepted, and a single bind failure starts nothing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sgerhart/decoynet/internal/config"
	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/service"
	"github.com/sgerhart/decoynet/internal/sink"
	"github.com/sgerhart/decoynet/internal/store"
)

type listenerSpec struct {
	name    model.Service
	port    int
	handler service.Handler
}

// Orchestrator starts and stops the protocol services against the shared
// classifier, decoy generator, and event store.
type Orchestrator struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger

	specs     []listenerSpec
	listeners []net.Listener
	addrs     map[model.Service]string
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New wires the three protocol services to their shared collaborators.
func New(cfg *config.Config, detector fingerprint.Detector, decoys *decoy.Generator, events sink.Recorder, st *store.Store, logger *slog.Logger) *Orchestrator {
	limits := service.Limits{
		IdleTimeout:     cfg.IdleTimeout,
		MaxLifetime:     cfg.MaxConnLifetime,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		MaxRequests:     cfg.WebMaxRequests,
		MaxAttempts:     cfg.ShellMaxAttempts,
	}

	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		logger: logger,
		specs: []listenerSpec{
			{model.ServiceWeb, cfg.WebPort, service.NewWeb(detector, decoys, events, limits, logger)},
			{model.ServiceShell, cfg.ShellPort, service.NewShell(detector, decoys, events, limits, logger)},
			{model.ServiceFTP, cfg.FTPPort, service.NewFTP(detector, decoys, events, limits, logger)},
		},
		addrs: make(map[model.Service]string),
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds every configured listener, then launches the accept loops.
// If any port fails to bind, listeners bound so far are closed and the
// error is returned with nothing serving.
func (o *Orchestrator) Start(ctx context.Context) error {
	var bound []net.Listener
	for _, sp := range o.specs {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", sp.port))
		if err != nil {
			for _, l := range bound {
				l.Close()
			}
			return fmt.Errorf("failed to bind %s listener on port %d: %w", sp.name, sp.port, err)
		}
		bound = append(bound, ln)
		o.addrs[sp.name] = ln.Addr().String()
	}
	o.listeners = bound

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i, sp := range o.specs {
		o.wg.Add(1)
		go o.acceptLoop(ctx, o.listeners[i], sp)
		o.logger.Info("Service listening", "service", sp.name, "addr", o.addrs[sp.name])
	}
	return nil
}

// Addr returns the bound address of a running service. Useful when ports
// were configured as 0.
func (o *Orchestrator) Addr(svc model.Service) string {
	return o.addrs[svc]
}

func (o *Orchestrator) acceptLoop(ctx context.Context, ln net.Listener, sp listenerSpec) {
	defer o.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			o.logger.Warn("Accept failed", "service", sp.name, "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		o.track(conn)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer o.untrack(conn)
			defer conn.Close()
			sp.handler.HandleConn(ctx, conn)
		}()
	}
}

func (o *Orchestrator) track(conn net.Conn) {
	o.mu.Lock()
	o.conns[conn] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(conn net.Conn) {
	o.mu.Lock()
	delete(o.conns, conn)
	o.mu.Unlock()
}

func (o *Orchestrator) closeConns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for conn := range o.conns {
		conn.Close()
	}
	return len(o.conns)
}

// Stop closes the listeners, cancels in-flight handlers, and waits up to
// the grace period before force-closing whatever connections remain. The
// event store is flushed last so external readers see every recorded event.
func (o *Orchestrator) Stop(ctx context.Context) error {
	for _, ln := range o.listeners {
		ln.Close()
	}
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.cfg.ShutdownGrace):
		n := o.closeConns()
		o.logger.Warn("Grace period expired, forced connections closed", "count", n)
		<-done
	case <-ctx.Done():
		o.closeConns()
		<-done
	}

	if err := o.store.Flush(context.Background()); err != nil {
		o.logger.Warn("Event store flush failed", "error", err)
	}

	o.logger.Info("All services stopped")
	return nil
}
