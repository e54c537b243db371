package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakkerme/social-agent/internal/platform"
)

type fakeTimelines struct {
	lookup      map[string]string
	search      []platform.Account
	statuses    map[string][][]platform.Status
	lookups     int
	searches    int
	statusCalls []platform.StatusesQuery
}

func (f *fakeTimelines) LookupAccount(ctx context.Context, username string) (*platform.Account, error) {
	f.lookups++
	id, ok := f.lookup[username]
	if !ok {
		return nil, &platform.RequestError{Status: 404}
	}
	return &platform.Account{ID: id, Username: username}, nil
}

func (f *fakeTimelines) Search(ctx context.Context, q string, searchType platform.SearchType, limit int) (*platform.SearchResults, error) {
	f.searches++
	return &platform.SearchResults{Accounts: f.search}, nil
}

func (f *fakeTimelines) AccountStatuses(ctx context.Context, accountID string, q platform.StatusesQuery) ([]platform.Status, error) {
	f.statusCalls = append(f.statusCalls, q)
	batches := f.statuses[accountID]
	if len(batches) == 0 {
		return nil, errors.New("unknown account " + accountID)
	}
	batch := batches[0]
	if len(batches) > 1 {
		f.statuses[accountID] = batches[1:]
	}
	return batch, nil
}

func statuses(ids ...string) []platform.Status {
	out := make([]platform.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, platform.Status{ID: id, Content: "post " + id, Account: platform.Account{ID: "u1", Acct: "alice"}})
	}
	return out
}

func TestTimelineFirstContactRecordsWithoutActing(t *testing.T) {
	h := newHarness()
	api := &fakeTimelines{
		lookup: map[string]string{"alice": "u1"},
		statuses: map[string][][]platform.Status{
			"u1": {statuses("103", "102", "101"), statuses("104", "103", "102")},
		},
	}
	loop := h.loop(t, NewTimelineFeed(api, []string{"alice"}, 20))

	stats, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.executor.executed())
	assert.Equal(t, 3, stats.Persisted)
	assert.Len(t, h.memory.Creates(), 3)
	wm, ok := h.ledger.Watermark("timelines:alice")
	require.True(t, ok)
	assert.Equal(t, "103", wm)

	_, err = loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"104"}, h.executor.executed())
	wm, _ = h.ledger.Watermark("timelines:alice")
	assert.Equal(t, "104", wm)
	assert.True(t, api.statusCalls[0].ExcludeReplies)
	assert.Equal(t, 1, api.lookups)
}

func TestTimelineWatermarkNeverRegresses(t *testing.T) {
	h := newHarness()
	h.ledger.Advance("timelines:alice", "200")
	api := &fakeTimelines{
		lookup:   map[string]string{"alice": "u1"},
		statuses: map[string][][]platform.Status{"u1": {statuses("150", "120")}},
	}
	loop := h.loop(t, NewTimelineFeed(api, []string{"alice"}, 20))

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.executor.executed())
	wm, _ := h.ledger.Watermark("timelines:alice")
	assert.Equal(t, "200", wm)
}

func TestTimelineFetchErrorIsolatedPerUser(t *testing.T) {
	h := newHarness()
	h.ledger.Advance("timelines:bob", "10")
	api := &fakeTimelines{
		lookup:   map[string]string{"alice": "u1", "bob": "u2"},
		statuses: map[string][][]platform.Status{"u2": {statuses("11")}},
	}
	loop := h.loop(t, NewTimelineFeed(api, []string{"alice", "bob"}, 20))

	_, err := loop.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice")
	assert.Equal(t, []string{"11"}, h.executor.executed())
}

func TestTimelineResolveFallsBackToSearch(t *testing.T) {
	api := &fakeTimelines{
		search: []platform.Account{
			{ID: "x1", Username: "carolyn", Acct: "carolyn"},
			{ID: "x2", Username: "Carol", Acct: "Carol"},
		},
		statuses: map[string][][]platform.Status{"x2": {statuses("5")}},
	}
	feed := NewTimelineFeed(api, []string{"carol"}, 20)

	items, err := feed.Fetch(context.Background(), "carol", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "timelines", items[0].Feed)

	_, err = feed.Fetch(context.Background(), "carol", "")
	require.NoError(t, err)
	assert.Equal(t, 1, api.lookups)
	assert.Equal(t, 1, api.searches)
}

func TestTimelineResolveNotFound(t *testing.T) {
	api := &fakeTimelines{search: []platform.Account{{ID: "x1", Username: "someone"}}}
	feed := NewTimelineFeed(api, []string{"ghost"}, 20)
	_, err := feed.Fetch(context.Background(), "ghost", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
