// Package actions applies favourite, reblog, quote, reply and follow-back
// actions to feed items.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bakkerme/social-agent/internal/content"
	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/platform"
)

// API is the slice of the platform client the executor needs.
type API interface {
	Favourite(ctx context.Context, statusID string) error
	Reblog(ctx context.Context, statusID string) error
	CreateStatus(ctx context.Context, params platform.StatusParams) (*platform.Status, error)
	Follow(ctx context.Context, accountID string) error
}

// Composer writes quote and reply text.
type Composer interface {
	Compose(ctx context.Context, item core.Item, kind core.Action) (string, error)
}

type Result struct {
	// Applied lists the actions that succeeded, in attempt order.
	Applied []core.Action
	// Responses holds the text published by quote and reply.
	Responses map[core.Action]string
	// Failures holds the error of every attempted action that failed.
	Failures map[core.Action]error
	// Restricted is set once any action hit group restricted content.
	Restricted bool
}

func (r Result) Response() string {
	if text := r.Responses[core.ActionReply]; text != "" {
		return text
	}
	return r.Responses[core.ActionQuote]
}

type Executor struct {
	api        API
	composer   Composer
	visibility string
	maxLength  int
	logger     *slog.Logger
}

type Option func(*Executor)

func WithVisibility(visibility string) Option {
	return func(e *Executor) { e.visibility = visibility }
}

func WithMaxLength(n int) Option {
	return func(e *Executor) { e.maxLength = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExecutor(api API, composer Composer, opts ...Option) *Executor {
	e := &Executor{api: api, composer: composer, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute attempts each requested action in order. Failures are recorded and
// never stop later actions, except that group restricted content skips quote
// and reply.
func (e *Executor) Execute(ctx context.Context, item core.Item, req core.ActionRequest) Result {
	logger := core.LoggerOr(ctx, e.logger).With("item_id", item.ID)

	result := Result{Responses: map[core.Action]string{}, Failures: map[core.Action]error{}}
	for _, action := range core.ActionOrder {
		if !req.Wants(action) {
			continue
		}
		log := logger.With("action", string(action))
		if action == core.ActionFollowBack {
			if item.Kind != core.KindNotification || item.Author.ID == "" {
				continue
			}
		} else if !item.HasStatus() {
			log.Debug("item has no status, skipping action")
			continue
		}
		if result.Restricted && (action == core.ActionQuote || action == core.ActionReply) {
			log.Info("group restricted, skipping action")
			continue
		}

		text, err := e.apply(ctx, item, action)
		switch {
		case err == nil:
			result.Applied = append(result.Applied, action)
			if text != "" {
				result.Responses[action] = text
			}
			log.Info("action applied")
		case errors.Is(err, content.ErrEmpty), errors.Is(err, content.ErrModerated):
			log.Info("generated text unusable, skipping action", "reason", err)
		default:
			if errors.Is(err, platform.ErrGroupRestricted) {
				result.Restricted = true
			}
			result.Failures[action] = err
			log.Warn("action failed", "error", err)
		}
	}
	return result
}

func (e *Executor) apply(ctx context.Context, item core.Item, action core.Action) (string, error) {
	switch action {
	case core.ActionFavourite:
		return "", e.api.Favourite(ctx, item.StatusID)
	case core.ActionReblog:
		return "", e.api.Reblog(ctx, item.StatusID)
	case core.ActionFollowBack:
		return "", e.api.Follow(ctx, item.Author.ID)
	}

	text, err := e.composer.Compose(ctx, item, action)
	if err != nil {
		return "", err
	}
	params := platform.StatusParams{Visibility: e.visibility}
	if action == core.ActionReply {
		text = withMention(text, item.Author.Username)
		params.InReplyToID = item.StatusID
	} else {
		params.QuoteID = item.StatusID
	}
	params.Status = content.Truncate(text, e.maxLength)
	if _, err := e.api.CreateStatus(ctx, params); err != nil {
		return "", err
	}
	return params.Status, nil
}

func withMention(text, username string) string {
	if username == "" {
		return text
	}
	mention := "@" + username
	if strings.Contains(strings.ToLower(text), strings.ToLower(mention)) {
		return text
	}
	return mention + " " + text
}
