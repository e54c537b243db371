// Package content turns feed items into reply, quote and post text.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/llm"
	"github.com/bakkerme/social-agent/internal/llm/llmutil"
	"github.com/bakkerme/social-agent/internal/memory"
)

var (
	// ErrEmpty is returned when generation produced no usable text.
	ErrEmpty = errors.New("generated content is empty")
	// ErrModerated is returned when the generated text matched the refusal filter.
	ErrModerated = errors.New("generated content was refused")
)

const (
	defaultSystemTemplate = `You are {{.Persona}}, posting on a social network as @{{.Username}}.
Write in a natural, conversational voice. Never mention that you are automated.
Keep every message under {{.MaxLength}} characters. Output only the message text.`

	defaultReplyTemplate = `@{{.Item.Author.Username}} wrote:
{{.Item.Content}}
{{- range .Item.ImageDescriptions}}
[image: {{.}}]
{{- end}}

Write a short reply to them.`

	defaultQuoteTemplate = `@{{.Item.Author.Username}} posted:
{{.Item.Content}}
{{- range .Item.ImageDescriptions}}
[image: {{.}}]
{{- end}}

Write a short comment to share alongside this post.`

	defaultPostTemplate = `Write a new original post.
{{- if .RecentPosts}}
Do not repeat these recent posts:
{{- range .RecentPosts}}
- {{.}}
{{- end}}
{{- end}}`
)

// History supplies earlier generated posts.
type History interface {
	RecentMemories(ctx context.Context, kind memory.Kind, limit int) ([]memory.Record, error)
}

type ComposerConfig struct {
	Username       string
	Persona        string
	Model          string
	Temperature    *float64
	MaxLength      int
	RecentPosts    int
	SystemTemplate string
	ReplyTemplate  string
	QuoteTemplate  string
	PostTemplate   string
}

type Composer struct {
	cfg       ComposerConfig
	client    llm.Client
	isRefusal RefusalPredicate
	history   History
	logger    *slog.Logger

	system *template.Template
	reply  *template.Template
	quote  *template.Template
	post   *template.Template
}

type promptData struct {
	Username    string
	Persona     string
	MaxLength   int
	Item        *core.Item
	RecentPosts []string
}

// NewComposer parses the templates, falling back to built-in defaults.
// A nil isRefusal uses DefaultRefusalPhrases; history may be nil.
func NewComposer(cfg ComposerConfig, client llm.Client, isRefusal RefusalPredicate, history History, logger *slog.Logger) (*Composer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if isRefusal == nil {
		isRefusal = NewPhraseFilter(DefaultRefusalPhrases)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Persona == "" {
		cfg.Persona = "a friendly, curious person"
	}
	c := &Composer{cfg: cfg, client: client, isRefusal: isRefusal, history: history, logger: logger}

	var err error
	if c.system, err = llmutil.ParseTemplate("system", orDefault(cfg.SystemTemplate, defaultSystemTemplate)); err != nil {
		return nil, err
	}
	if c.reply, err = llmutil.ParseTemplate("reply", orDefault(cfg.ReplyTemplate, defaultReplyTemplate)); err != nil {
		return nil, err
	}
	if c.quote, err = llmutil.ParseTemplate("quote", orDefault(cfg.QuoteTemplate, defaultQuoteTemplate)); err != nil {
		return nil, err
	}
	if c.post, err = llmutil.ParseTemplate("post", orDefault(cfg.PostTemplate, defaultPostTemplate)); err != nil {
		return nil, err
	}
	return c, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// Compose writes reply or quote text for item.
func (c *Composer) Compose(ctx context.Context, item core.Item, kind core.Action) (string, error) {
	var tmpl *template.Template
	switch kind {
	case core.ActionReply:
		tmpl = c.reply
	case core.ActionQuote:
		tmpl = c.quote
	default:
		return "", fmt.Errorf("cannot compose text for action %q", kind)
	}
	return c.generate(ctx, tmpl, promptData{Item: &item})
}

// ComposePost writes an original post.
func (c *Composer) ComposePost(ctx context.Context) (string, error) {
	data := promptData{}
	if c.history != nil && c.cfg.RecentPosts > 0 {
		records, err := c.history.RecentMemories(ctx, memory.KindPost, c.cfg.RecentPosts)
		if err != nil {
			core.LoggerOr(ctx, c.logger).Warn("failed to load recent posts", "error", err)
		}
		for _, record := range records {
			data.RecentPosts = append(data.RecentPosts, record.Content)
		}
	}
	return c.generate(ctx, c.post, data)
}

func (c *Composer) generate(ctx context.Context, tmpl *template.Template, data promptData) (string, error) {
	data.Username = c.cfg.Username
	data.Persona = c.cfg.Persona
	data.MaxLength = c.cfg.MaxLength

	systemPrompt, err := llmutil.ExecuteTemplate(c.system, data)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	userPrompt, err := llmutil.ExecuteTemplate(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	resp, err := llmutil.ChatSystemUserWithRetries(ctx, c.client, c.cfg.Model, systemPrompt, userPrompt, 0, nil, c.cfg.Temperature)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", tmpl.Name(), err)
	}
	text := clean(resp.Content)
	if text == "" {
		return "", ErrEmpty
	}
	if c.isRefusal(text) {
		return "", ErrModerated
	}
	return Truncate(text, c.cfg.MaxLength), nil
}
