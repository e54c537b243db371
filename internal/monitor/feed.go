package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/ledger"
	"github.com/bakkerme/social-agent/internal/platform"
)

// Feed is one polled source. A feed may have several keys (one per target
// user), each with its own watermark.
type Feed interface {
	Name() string
	Keys(ctx context.Context) ([]string, error)
	// Fetch returns items in the order they must be processed.
	Fetch(ctx context.Context, key, watermark string) ([]core.Item, error)
	// IsNew reports whether item is eligible for actions given the key's watermark.
	IsNew(item core.Item, watermark string, hasWatermark bool) bool
}

type NotificationAPI interface {
	Notifications(ctx context.Context, q platform.NotificationQuery) ([]platform.Notification, error)
}

// NotificationFeed polls the account's notifications.
type NotificationFeed struct {
	api   NotificationAPI
	types []core.NotificationType
	limit int
}

// NewNotificationFeed fetches the given types, or all of them when types is empty.
func NewNotificationFeed(api NotificationAPI, types []core.NotificationType, limit int) *NotificationFeed {
	if len(types) == 0 {
		types = core.AllNotificationTypes
	}
	return &NotificationFeed{api: api, types: types, limit: limit}
}

func (f *NotificationFeed) Name() string { return "notifications" }

func (f *NotificationFeed) Keys(ctx context.Context) ([]string, error) {
	return []string{"all"}, nil
}

// Fetch returns unseen notifications oldest first.
func (f *NotificationFeed) Fetch(ctx context.Context, key, watermark string) ([]core.Item, error) {
	notifications, err := f.api.Notifications(ctx, platform.NotificationQuery{
		Types:   f.types,
		SinceID: watermark,
		Limit:   f.limit,
	})
	if err != nil {
		return nil, err
	}
	items := make([]core.Item, 0, len(notifications))
	for i := len(notifications) - 1; i >= 0; i-- {
		items = append(items, platform.NotificationItem(f.Name(), notifications[i]))
	}
	return items, nil
}

func (f *NotificationFeed) IsNew(item core.Item, watermark string, hasWatermark bool) bool {
	return true
}

type TimelineAPI interface {
	LookupAccount(ctx context.Context, username string) (*platform.Account, error)
	Search(ctx context.Context, q string, searchType platform.SearchType, limit int) (*platform.SearchResults, error)
	AccountStatuses(ctx context.Context, accountID string, q platform.StatusesQuery) ([]platform.Status, error)
}

// TimelineFeed polls the recent posts of target users, replies excluded.
type TimelineFeed struct {
	api   TimelineAPI
	users []string
	limit int

	mu       sync.Mutex
	accounts map[string]string
}

func NewTimelineFeed(api TimelineAPI, users []string, limit int) *TimelineFeed {
	return &TimelineFeed{api: api, users: users, limit: limit, accounts: map[string]string{}}
}

func (f *TimelineFeed) Name() string { return "timelines" }

func (f *TimelineFeed) Keys(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.users...), nil
}

func (f *TimelineFeed) Fetch(ctx context.Context, username, watermark string) ([]core.Item, error) {
	accountID, err := f.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	statuses, err := f.api.AccountStatuses(ctx, accountID, platform.StatusesQuery{ExcludeReplies: true, Limit: f.limit})
	if err != nil {
		return nil, err
	}
	items := make([]core.Item, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, platform.StatusItem(f.Name(), status))
	}
	return items, nil
}

// IsNew is false for everything on first contact, so a user's backlog is
// recorded but never acted on.
func (f *TimelineFeed) IsNew(item core.Item, watermark string, hasWatermark bool) bool {
	return hasWatermark && ledger.CompareIDs(item.ID, watermark) > 0
}

// resolve maps a username to an account id, trying lookup then search.
// Results are cached for the life of the feed.
func (f *TimelineFeed) resolve(ctx context.Context, username string) (string, error) {
	f.mu.Lock()
	id, ok := f.accounts[username]
	f.mu.Unlock()
	if ok {
		return id, nil
	}

	account, lookupErr := f.api.LookupAccount(ctx, username)
	if lookupErr == nil && account != nil && account.ID != "" {
		id = account.ID
	} else {
		results, err := f.api.Search(ctx, username, platform.SearchAccounts, 5)
		if err != nil {
			return "", fmt.Errorf("resolve %s: lookup: %v; search: %w", username, lookupErr, err)
		}
		for _, candidate := range results.Accounts {
			if strings.EqualFold(candidate.Username, username) || strings.EqualFold(candidate.Acct, username) {
				id = candidate.ID
				break
			}
		}
		if id == "" {
			return "", fmt.Errorf("resolve %s: account not found", username)
		}
	}

	f.mu.Lock()
	f.accounts[username] = id
	f.mu.Unlock()
	return id, nil
}
