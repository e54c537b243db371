// Package runner owns the agent lifecycle: establish the session, start the
// poll loops and the post scheduler, and tear everything down on Stop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bakkerme/social-agent/internal/session"
)

type Session interface {
	Initialize(ctx context.Context) error
	Close() error
}

// Service is a recurring component such as a poll loop or the post scheduler.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

type Components struct {
	Session  Session
	Services []Service
	// Closers are released after the session, in reverse order.
	Closers []io.Closer
}

type Runner struct {
	components Components
	logger     *slog.Logger

	mu       sync.Mutex
	started  []Service
	stopOnce sync.Once
}

func New(components Components, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{components: components, logger: logger}
}

// Start initializes the session and then every service. A service that fails
// to start is logged and skipped; session failures are returned.
func (r *Runner) Start(ctx context.Context) error {
	if r.components.Session == nil {
		return fmt.Errorf("runner: session is required")
	}
	if err := r.components.Session.Initialize(ctx); err != nil {
		if errors.Is(err, session.ErrLoginExhausted) {
			r.logger.Error("login attempts exhausted", "error", err)
		}
		return err
	}

	for _, svc := range r.components.Services {
		if svc == nil {
			continue
		}
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("service failed to start", "service", svc.Name(), "error", err)
			continue
		}
		r.mu.Lock()
		r.started = append(r.started, svc)
		r.mu.Unlock()
	}
	r.logger.Info("agent started", "services", len(r.started))
	return nil
}

// Stop halts services in reverse start order, waiting for in-flight work,
// then closes the session and the stores. It is safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		r.started = nil
		r.mu.Unlock()

		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop()
		}
		if r.components.Session != nil {
			if err := r.components.Session.Close(); err != nil {
				r.logger.Warn("session close failed", "error", err)
			}
		}
		for i := len(r.components.Closers) - 1; i >= 0; i-- {
			if err := r.components.Closers[i].Close(); err != nil {
				r.logger.Warn("close failed", "error", err)
			}
		}
		r.logger.Info("agent stopped")
	})
}
