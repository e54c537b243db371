// Package monitor runs the poll loops that fetch feeds, filter out items that
// were already handled, and drive the rest through the action executor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakkerme/social-agent/internal/actions"
	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/ledger"
	"github.com/bakkerme/social-agent/internal/memory"
)

type Policy interface {
	Decide(item core.Item) (core.ActionRequest, error)
}

type Executor interface {
	Execute(ctx context.Context, item core.Item, req core.ActionRequest) actions.Result
}

type Describer interface {
	Describe(ctx context.Context, item *core.Item)
}

// Memory is the durable record of handled items.
type Memory interface {
	CreateMemory(ctx context.Context, record memory.Record) error
	GetMemoryByID(ctx context.Context, id string) (*memory.Record, error)
}

type Config struct {
	Interval time.Duration
	Policy   Policy
	Executor Executor
	// Describer runs on items with media when set.
	Describer Describer
	Memory    Memory
	Ledger    *ledger.Ledger
	Logger    *slog.Logger
}

// Stats summarises one iteration.
type Stats struct {
	Fetched   int
	Acted     int
	Persisted int
	Skipped   int
	Failed    int
	// Busy is set when the iteration did not run because another was in flight.
	Busy bool
}

type Loop struct {
	feed   Feed
	cfg    Config
	logger *slog.Logger

	running atomic.Bool
	stopped atomic.Bool

	mu   sync.Mutex
	cron *cron.Cron
}

func NewLoop(feed Feed, cfg Config) (*Loop, error) {
	if feed == nil {
		return nil, fmt.Errorf("feed is required")
	}
	if cfg.Executor == nil || cfg.Memory == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%s loop: executor, memory and ledger are required", feed.Name())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{feed: feed, cfg: cfg, logger: logger.With("feed", feed.Name())}, nil
}

func (l *Loop) Name() string {
	return l.feed.Name()
}

// Start schedules RunOnce every interval. Ticks that land while an iteration
// is still running are dropped.
func (l *Loop) Start(ctx context.Context) error {
	if l.cfg.Interval <= 0 {
		return fmt.Errorf("%s loop: interval must be > 0", l.feed.Name())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cron != nil {
		return fmt.Errorf("%s loop already started", l.feed.Name())
	}
	l.stopped.Store(false)
	l.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{l.logger})))
	l.cron.Schedule(cron.Every(l.cfg.Interval), cron.FuncJob(func() {
		if _, err := l.RunOnce(ctx); err != nil {
			l.logger.Warn("poll iteration finished with errors", "error", err)
		}
	}))
	l.cron.Start()
	l.logger.Info("poll loop started", "interval", l.cfg.Interval)
	return nil
}

// Stop cancels future ticks and waits for an in-flight iteration to return.
// Items not yet acted on when Stop is called are left alone.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.mu.Lock()
	c := l.cron
	l.cron = nil
	l.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		l.logger.Info("poll loop stopped")
	}
}

// RunOnce performs a single iteration over every key of the feed. Per-key
// fetch errors are joined into the returned error; per-item errors are logged.
func (l *Loop) RunOnce(ctx context.Context) (Stats, error) {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Debug("previous iteration still running, skipping tick")
		return Stats{Busy: true}, nil
	}
	defer l.running.Store(false)

	iterationID := uuid.NewString()
	logger := l.logger.With("iteration_id", iterationID)
	ctx = core.WithFeed(ctx, l.feed.Name())
	ctx = core.WithIterationID(ctx, iterationID)
	ctx = core.WithLogger(ctx, logger)

	tracer := otel.Tracer("social-agent/monitor")
	ctx, span := tracer.Start(ctx, "monitor.iteration")
	span.SetAttributes(attribute.String("agent.feed", l.feed.Name()), attribute.String("agent.iteration_id", iterationID))
	defer span.End()

	var stats Stats
	keys, err := l.feed.Keys(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, fmt.Errorf("%s: keys: %w", l.feed.Name(), err)
	}

	var errs []error
	for _, key := range keys {
		if l.stopped.Load() || ctx.Err() != nil {
			break
		}
		if err := l.runKey(ctx, logger.With("key", key), key, &stats); err != nil {
			errs = append(errs, err)
		}
	}
	span.SetAttributes(
		attribute.Int("monitor.fetched", stats.Fetched),
		attribute.Int("monitor.acted", stats.Acted),
		attribute.Int("monitor.failed", stats.Failed),
	)
	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	logger.Debug("poll iteration complete", "fetched", stats.Fetched, "acted", stats.Acted, "persisted", stats.Persisted, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, err
}

func (l *Loop) ledgerKey(key string) string {
	return l.feed.Name() + ":" + key
}

func (l *Loop) runKey(ctx context.Context, logger *slog.Logger, key string, stats *Stats) error {
	ledgerKey := l.ledgerKey(key)
	watermark, hasWatermark := l.cfg.Ledger.Watermark(ledgerKey)

	items, err := l.feed.Fetch(ctx, key, watermark)
	if err != nil {
		logger.Warn("feed fetch failed", "error", err)
		return fmt.Errorf("%s %s: fetch: %w", l.feed.Name(), key, err)
	}
	stats.Fetched += len(items)
	if l.stopped.Load() {
		logger.Info("loop stopped during fetch, discarding results")
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		if l.stopped.Load() {
			continue
		}
		l.processItem(ctx, logger.With("item_id", item.ID), item, watermark, hasWatermark, stats)
	}

	if newest := ledger.Newest(ids); newest != "" {
		if l.cfg.Ledger.Advance(ledgerKey, newest) {
			logger.Debug("watermark advanced", "watermark", newest)
		}
	}
	return nil
}

func (l *Loop) processItem(ctx context.Context, logger *slog.Logger, item core.Item, watermark string, hasWatermark bool, stats *Stats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			logger.Error("item processing panicked", "panic", r)
		}
	}()

	if item.ID == "" {
		stats.Skipped++
		return
	}
	if l.cfg.Ledger.IsProcessed(item.ID) {
		stats.Skipped++
		return
	}
	existing, err := l.cfg.Memory.GetMemoryByID(ctx, item.ID)
	if err != nil {
		stats.Failed++
		logger.Warn("memory lookup failed, skipping item", "error", err)
		return
	}
	if existing != nil {
		l.cfg.Ledger.MarkProcessed(item.ID)
		stats.Skipped++
		return
	}

	if !l.feed.IsNew(item, watermark, hasWatermark) {
		l.persist(ctx, logger, item, actions.Result{})
		l.cfg.Ledger.MarkProcessed(item.ID)
		stats.Persisted++
		return
	}

	if l.cfg.Describer != nil && len(item.Media) > 0 {
		l.cfg.Describer.Describe(ctx, &item)
	}

	var req core.ActionRequest
	if l.cfg.Policy != nil {
		req, err = l.cfg.Policy.Decide(item)
		if err != nil {
			logger.Warn("action rule failed", "error", err)
		}
	}

	var result actions.Result
	if !req.Empty() {
		result = l.cfg.Executor.Execute(core.WithLogger(ctx, logger), item, req)
		stats.Acted++
	}
	l.persist(ctx, logger, item, result)
	l.cfg.Ledger.MarkProcessed(item.ID)
	stats.Persisted++
}

func (l *Loop) persist(ctx context.Context, logger *slog.Logger, item core.Item, result actions.Result) {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := memory.Record{
		ID:                item.ID,
		Kind:              memory.Kind(item.Kind),
		Feed:              item.Feed,
		Author:            item.Author.Username,
		Content:           item.Content,
		ImageDescriptions: item.ImageDescriptions,
		Response:          result.Response(),
		Actions:           core.ActionStrings(result.Applied),
		CreatedAt:         createdAt,
	}
	if err := l.cfg.Memory.CreateMemory(ctx, record); err != nil {
		logger.Warn("failed to persist memory", "error", err)
	}
}

// cronLogger routes cron's recovered panics into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
