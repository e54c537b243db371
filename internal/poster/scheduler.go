// Package poster emits generated statuses on a randomized schedule.
package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bakkerme/social-agent/internal/content"
	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/memory"
	"github.com/bakkerme/social-agent/internal/platform"
)

type API interface {
	CreateStatus(ctx context.Context, params platform.StatusParams) (*platform.Status, error)
}

type Composer interface {
	ComposePost(ctx context.Context) (string, error)
}

type Memory interface {
	CreateMemory(ctx context.Context, record memory.Record) error
}

type Config struct {
	IntervalMin time.Duration
	IntervalMax time.Duration
	// Immediately posts once during Start, before the schedule is armed.
	Immediately bool
	MaxLength   int
	Visibility  string
	Username    string
	Logger      *slog.Logger
	// Int64N draws the random part of each period; defaults to rand.Int64N.
	Int64N func(n int64) int64
}

type Scheduler struct {
	api      API
	composer Composer
	memory   Memory
	outbox   *Outbox
	cfg      Config
	logger   *slog.Logger

	busy    atomic.Bool
	stopped atomic.Bool

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(api API, composer Composer, mem Memory, outbox *Outbox, cfg Config) (*Scheduler, error) {
	if api == nil || composer == nil {
		return nil, fmt.Errorf("poster: api and composer are required")
	}
	if cfg.IntervalMin <= 0 || cfg.IntervalMax < cfg.IntervalMin {
		return nil, fmt.Errorf("poster: invalid interval range %s..%s", cfg.IntervalMin, cfg.IntervalMax)
	}
	if outbox == nil {
		outbox = NewOutbox()
	}
	if cfg.Int64N == nil {
		cfg.Int64N = rand.Int64N
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		api:      api,
		composer: composer,
		memory:   mem,
		outbox:   outbox,
		cfg:      cfg,
		logger:   logger.With("component", "poster"),
	}, nil
}

func (s *Scheduler) Name() string { return "poster" }

func (s *Scheduler) Outbox() *Outbox {
	return s.outbox
}

// Start runs the immediate post when configured, then arms the randomized schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("poster already started")
	}
	s.stopped.Store(false)

	if s.cfg.Immediately {
		if err := s.Tick(ctx); err != nil {
			s.logger.Warn("immediate post failed", "error", err)
		}
	}

	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	s.cron.Schedule(s.schedule(), cron.FuncJob(func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Warn("scheduled post failed", "error", err)
		}
	}))
	s.cron.Start()
	s.logger.Info("post scheduler started", "interval_min", s.cfg.IntervalMin, "interval_max", s.cfg.IntervalMax)
	return nil
}

func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("post scheduler stopped")
	}
}

func (s *Scheduler) schedule() randomSchedule {
	return randomSchedule{min: s.cfg.IntervalMin, max: s.cfg.IntervalMax, int64n: s.cfg.Int64N}
}

// Tick drains one outbox entry, composing a new post first when the outbox is
// empty. A failed entry is put back at the head of the outbox.
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("previous post still in flight, skipping tick")
		return nil
	}
	defer s.busy.Store(false)

	ctx = core.WithFeed(ctx, "posts")
	ctx = core.WithLogger(ctx, s.logger)

	if s.outbox.Len() == 0 {
		text, err := s.composer.ComposePost(ctx)
		if errors.Is(err, content.ErrEmpty) || errors.Is(err, content.ErrModerated) {
			s.logger.Info("generated post discarded", "reason", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("compose post: %w", err)
		}
		s.outbox.Push(Entry{Status: content.Truncate(text, s.cfg.MaxLength), Visibility: s.cfg.Visibility})
	}

	if s.stopped.Load() {
		return nil
	}
	entry, ok := s.outbox.Pop()
	if !ok {
		return nil
	}
	status, err := s.api.CreateStatus(ctx, platform.StatusParams{
		Status:      entry.Status,
		InReplyToID: entry.ReplyToID,
		QuoteID:     entry.QuoteID,
		MediaIDs:    entry.MediaIDs,
		Visibility:  entry.Visibility,
	})
	if err != nil {
		s.outbox.PushFront(entry)
		return fmt.Errorf("create status: %w", err)
	}
	s.logger.Info("posted status", "status_id", status.ID, "entry_id", entry.ID)
	s.persist(ctx, entry, status)
	return nil
}

func (s *Scheduler) persist(ctx context.Context, entry Entry, status *platform.Status) {
	if s.memory == nil {
		return
	}
	id := status.ID
	if id == "" {
		id = entry.ID
	}
	createdAt := status.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := memory.Record{
		ID:        id,
		Kind:      memory.KindPost,
		Feed:      "posts",
		Author:    s.cfg.Username,
		Content:   entry.Status,
		CreatedAt: createdAt,
	}
	if err := s.memory.CreateMemory(ctx, record); err != nil {
		s.logger.Warn("failed to persist post memory", "error", err)
	}
}

// randomSchedule fires after a period drawn uniformly from [min, max]. Cron
// calls Next after every run, so each period is drawn fresh.
type randomSchedule struct {
	min, max time.Duration
	int64n   func(n int64) int64
}

func (r randomSchedule) Next(t time.Time) time.Time {
	period := r.min
	if spread := int64(r.max - r.min); spread > 0 {
		period += time.Duration(r.int64n(spread + 1))
	}
	return t.Add(period)
}

type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
