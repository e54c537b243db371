package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bakkerme/social-agent/internal/core"
)

// Caller issues authenticated requests. The session manager implements it.
type Caller interface {
	AuthenticatedRequest(ctx context.Context, req Request) (*Response, error)
}

// Client is the typed surface of the platform API used by the agent.
type Client struct {
	caller Caller
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	resp, err := c.caller.AuthenticatedRequest(ctx, Request{Method: method, Path: path, Query: query, Body: body})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.call(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) CreateStatus(ctx context.Context, params StatusParams) (*Status, error) {
	if strings.TrimSpace(params.Status) == "" {
		return nil, fmt.Errorf("status text is required")
	}
	var status Status
	if err := c.call(ctx, http.MethodPost, "/api/v1/statuses", nil, params, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Favourite(ctx context.Context, statusID string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/statuses/"+url.PathEscape(statusID)+"/favourite", nil, nil, nil)
}

func (c *Client) Reblog(ctx context.Context, statusID string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/statuses/"+url.PathEscape(statusID)+"/reblog", nil, nil, nil)
}

func (c *Client) Follow(ctx context.Context, accountID string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/accounts/"+url.PathEscape(accountID)+"/follow", nil, nil, nil)
}

type NotificationQuery struct {
	Types   []core.NotificationType
	SinceID string
	Limit   int
}

// Notifications returns notifications newest first.
func (c *Client) Notifications(ctx context.Context, q NotificationQuery) ([]Notification, error) {
	query := url.Values{}
	for _, t := range q.Types {
		query.Add("types[]", string(t))
	}
	if q.SinceID != "" {
		query.Set("since_id", q.SinceID)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	var out []Notification
	if err := c.call(ctx, http.MethodGet, "/api/v1/notifications", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LookupAccount(ctx context.Context, username string) (*Account, error) {
	query := url.Values{}
	query.Set("acct", strings.TrimPrefix(username, "@"))
	var account Account
	if err := c.call(ctx, http.MethodGet, "/api/v1/accounts/lookup", query, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

type StatusesQuery struct {
	ExcludeReplies bool
	Limit          int
}

// AccountStatuses returns the newest statuses of an account, newest first.
func (c *Client) AccountStatuses(ctx context.Context, accountID string, q StatusesQuery) ([]Status, error) {
	query := url.Values{}
	if q.ExcludeReplies {
		query.Set("exclude_replies", "true")
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	var out []Status
	if err := c.call(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(accountID)+"/statuses", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type SearchType string

const (
	SearchAccounts SearchType = "accounts"
	SearchStatuses SearchType = "statuses"
	SearchHashtags SearchType = "hashtags"
)

func (c *Client) Search(ctx context.Context, q string, searchType SearchType, limit int) (*SearchResults, error) {
	switch searchType {
	case SearchAccounts, SearchStatuses, SearchHashtags:
	default:
		return nil, fmt.Errorf("unsupported search type %q", searchType)
	}
	query := url.Values{}
	query.Set("q", q)
	query.Set("type", string(searchType))
	query.Set("resolve", "true")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out SearchResults
	if err := c.call(ctx, http.MethodGet, "/api/v2/search", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
