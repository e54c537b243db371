package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakkerme/social-agent/internal/actions"
	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/ledger"
	"github.com/bakkerme/social-agent/internal/memory"
	memorymock "github.com/bakkerme/social-agent/internal/memory/mock"
	"github.com/bakkerme/social-agent/internal/platform"
)

type recordingExecutor struct {
	mu      sync.Mutex
	items   []string
	panicOn string
}

func (r *recordingExecutor) Execute(ctx context.Context, item core.Item, req core.ActionRequest) actions.Result {
	if item.ID == r.panicOn {
		panic("boom")
	}
	r.mu.Lock()
	r.items = append(r.items, item.ID)
	r.mu.Unlock()
	return actions.Result{Applied: []core.Action{core.ActionFavourite}}
}

func (r *recordingExecutor) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

type alwaysFavourite struct{}

func (alwaysFavourite) Decide(item core.Item) (core.ActionRequest, error) {
	return core.ActionRequest{Favourite: true}, nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	batches [][]platform.Notification
	queries []platform.NotificationQuery
}

func (f *fakeNotifications) Notifications(ctx context.Context, q platform.NotificationQuery) ([]platform.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

func mention(id string) platform.Notification {
	return platform.Notification{
		ID:      id,
		Type:    "mention",
		Account: platform.Account{ID: "a" + id, Acct: "bob"},
		Status:  &platform.Status{ID: "s" + id, Content: "<p>hi " + id + "</p>"},
	}
}

type harness struct {
	executor *recordingExecutor
	memory   *memorymock.Store
	ledger   *ledger.Ledger
}

func newHarness() *harness {
	return &harness{executor: &recordingExecutor{}, memory: &memorymock.Store{}, ledger: ledger.New()}
}

func (h *harness) loop(t *testing.T, feed Feed) *Loop {
	t.Helper()
	loop, err := NewLoop(feed, Config{
		Interval: time.Minute,
		Policy:   alwaysFavourite{},
		Executor: h.executor,
		Memory:   h.memory,
		Ledger:   h.ledger,
	})
	require.NoError(t, err)
	return loop
}

func TestNotificationsProcessedOldestFirst(t *testing.T) {
	h := newHarness()
	api := &fakeNotifications{batches: [][]platform.Notification{{mention("3"), mention("2"), mention("1")}}}
	loop := h.loop(t, NewNotificationFeed(api, nil, 30))

	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, h.executor.executed())
	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, h.ledger.IsProcessed(id), id)
	}
	assert.Equal(t, 3, stats.Acted)
	wm, ok := h.ledger.Watermark("notifications:all")
	require.True(t, ok)
	assert.Equal(t, "3", wm)
	assert.Equal(t, core.AllNotificationTypes, api.queries[0].Types)

	record, err := h.memory.GetMemoryByID(context.Background(), "2")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, memory.KindNotification, record.Kind)
	assert.Equal(t, "hi 2", record.Content)
	assert.Equal(t, []string{"favourite"}, record.Actions)
}

func TestRepollIsIdempotent(t *testing.T) {
	h := newHarness()
	batch := []platform.Notification{mention("3"), mention("2"), mention("1")}
	api := &fakeNotifications{batches: [][]platform.Notification{batch, batch}}
	loop := h.loop(t, NewNotificationFeed(api, nil, 30))

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, h.executor.executed())
	assert.Len(t, h.memory.Creates(), 3)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, "3", api.queries[1].SinceID)
}

func TestPersistedMemorySuppressesActions(t *testing.T) {
	h := newHarness()
	h.memory.Seed(memory.Record{ID: "2", Kind: memory.KindNotification})
	api := &fakeNotifications{batches: [][]platform.Notification{{mention("3"), mention("2"), mention("1")}}}
	loop := h.loop(t, NewNotificationFeed(api, nil, 30))

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3"}, h.executor.executed())
	assert.True(t, h.ledger.IsProcessed("2"))
	for _, record := range h.memory.Creates() {
		assert.NotEqual(t, "2", record.ID)
	}
}

func TestItemFailureDoesNotAbortBatch(t *testing.T) {
	h := newHarness()
	h.executor.panicOn = "2"
	api := &fakeNotifications{batches: [][]platform.Notification{{mention("3"), mention("2"), mention("1")}}}
	loop := h.loop(t, NewNotificationFeed(api, nil, 30))

	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, h.executor.executed())
	assert.Equal(t, 1, stats.Failed)
	wm, _ := h.ledger.Watermark("notifications:all")
	assert.Equal(t, "3", wm)
}

func TestMemoryLookupFailureSkipsItem(t *testing.T) {
	h := newHarness()
	h.memory.GetErr = errors.New("db locked")
	api := &fakeNotifications{batches: [][]platform.Notification{{mention("1")}}}
	loop := h.loop(t, NewNotificationFeed(api, nil, 30))

	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.executor.executed())
	assert.Equal(t, 1, stats.Failed)
	assert.False(t, h.ledger.IsProcessed("1"))
}

type blockingFeed struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFeed) Name() string                               { return "blocking" }
func (b *blockingFeed) Keys(ctx context.Context) ([]string, error) { return []string{"k"}, nil }
func (b *blockingFeed) IsNew(core.Item, string, bool) bool         { return true }

func (b *blockingFeed) Fetch(ctx context.Context, key, watermark string) ([]core.Item, error) {
	close(b.started)
	<-b.release
	return []core.Item{{ID: "1", StatusID: "1"}}, nil
}

func TestRunOnceIsNotReentrant(t *testing.T) {
	h := newHarness()
	feed := &blockingFeed{started: make(chan struct{}), release: make(chan struct{})}
	loop := h.loop(t, feed)

	done := make(chan Stats)
	go func() {
		stats, _ := loop.RunOnce(context.Background())
		done <- stats
	}()
	<-feed.started

	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Busy)

	close(feed.release)
	first := <-done
	assert.False(t, first.Busy)
	assert.Equal(t, []string{"1"}, h.executor.executed())
}

type stoppingFeed struct {
	loop *Loop
}

func (s *stoppingFeed) Name() string                               { return "stopping" }
func (s *stoppingFeed) Keys(ctx context.Context) ([]string, error) { return []string{"k"}, nil }
func (s *stoppingFeed) IsNew(core.Item, string, bool) bool         { return true }

func (s *stoppingFeed) Fetch(ctx context.Context, key, watermark string) ([]core.Item, error) {
	s.loop.Stop()
	return []core.Item{{ID: "1", StatusID: "1"}}, nil
}

func TestStopDuringFetchDiscardsResults(t *testing.T) {
	h := newHarness()
	feed := &stoppingFeed{}
	loop := h.loop(t, feed)
	feed.loop = loop

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.executor.executed())
	_, ok := h.ledger.Watermark("stopping:k")
	assert.False(t, ok)
}

func TestStartAndStop(t *testing.T) {
	h := newHarness()
	loop := h.loop(t, NewNotificationFeed(&fakeNotifications{}, nil, 30))
	require.NoError(t, loop.Start(context.Background()))
	assert.Error(t, loop.Start(context.Background()))
	loop.Stop()
	loop.Stop()
}

func TestNewLoopValidates(t *testing.T) {
	_, err := NewLoop(nil, Config{})
	assert.Error(t, err)
	_, err = NewLoop(NewNotificationFeed(&fakeNotifications{}, nil, 0), Config{})
	assert.Error(t, err)
}
