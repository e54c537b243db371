package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/llm"
	llmmock "github.com/bakkerme/social-agent/internal/llm/mock"
	"github.com/bakkerme/social-agent/internal/memory"
	memorymock "github.com/bakkerme/social-agent/internal/memory/mock"
)

func newComposer(t *testing.T, client llm.Client, history History, maxLength int) *Composer {
	t.Helper()
	c, err := NewComposer(ComposerConfig{Username: "agent", Model: "m", MaxLength: maxLength, RecentPosts: 3}, client, nil, history, nil)
	require.NoError(t, err)
	return c
}

func TestComposeReplyRendersItem(t *testing.T) {
	client := &llmmock.Client{Responses: []llm.ChatResponse{{Content: "  \"Nice shot!\"  "}}}
	c := newComposer(t, client, nil, 500)

	item := core.Item{
		ID:                "n1",
		Author:            core.Author{Username: "bob"},
		Content:           "look at my cat",
		ImageDescriptions: []string{"a grey cat"},
	}
	text, err := c.Compose(context.Background(), item, core.ActionReply)
	require.NoError(t, err)
	assert.Equal(t, "Nice shot!", text)

	require.Len(t, client.Calls, 1)
	user := client.Calls[0].Messages[1].Content
	assert.Contains(t, user, "@bob wrote:")
	assert.Contains(t, user, "look at my cat")
	assert.Contains(t, user, "[image: a grey cat]")
	assert.Contains(t, client.Calls[0].Messages[0].Content, "@agent")
}

func TestComposeEmptyAndModerated(t *testing.T) {
	c := newComposer(t, &llmmock.Client{Responses: []llm.ChatResponse{{Content: "   "}}}, nil, 500)
	_, err := c.Compose(context.Background(), core.Item{}, core.ActionQuote)
	assert.ErrorIs(t, err, ErrEmpty)

	c = newComposer(t, &llmmock.Client{Responses: []llm.ChatResponse{{Content: "I'm sorry, but I can't write that."}}}, nil, 500)
	_, err = c.Compose(context.Background(), core.Item{}, core.ActionReply)
	assert.ErrorIs(t, err, ErrModerated)
}

func TestComposeRejectsNonTextActions(t *testing.T) {
	c := newComposer(t, &llmmock.Client{}, nil, 500)
	_, err := c.Compose(context.Background(), core.Item{}, core.ActionFavourite)
	assert.Error(t, err)
}

func TestComposePropagatesClientError(t *testing.T) {
	c := newComposer(t, &llmmock.Client{Err: errors.New("down")}, nil, 500)
	_, err := c.Compose(context.Background(), core.Item{}, core.ActionReply)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestComposePostIncludesRecentPostsAndTruncates(t *testing.T) {
	history := &memorymock.Store{}
	history.Seed(
		memory.Record{ID: "p1", Kind: memory.KindPost, Content: "old thought", CreatedAt: time.Unix(1, 0)},
		memory.Record{ID: "s1", Kind: memory.KindStatus, Content: "someone else"},
	)
	client := &llmmock.Client{Responses: []llm.ChatResponse{{Content: "one two three four five six"}}}
	c := newComposer(t, client, history, 14)

	text, err := c.ComposePost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one two three", text)

	user := client.Calls[0].Messages[1].Content
	assert.Contains(t, user, "- old thought")
	assert.NotContains(t, user, "someone else")
}

func TestNewComposerRejectsBadTemplate(t *testing.T) {
	_, err := NewComposer(ComposerConfig{ReplyTemplate: "{{.Item"}, &llmmock.Client{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestPhraseFilterIsCaseInsensitiveSubstring(t *testing.T) {
	isRefusal := NewPhraseFilter([]string{"As An AI", "  "})
	assert.True(t, isRefusal("well, as an ai model I think"))
	assert.False(t, isRefusal("as a human I think"))
	assert.False(t, NewPhraseFilter(nil)("anything"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello", Truncate("hello world", 8))
	assert.Equal(t, "hello", Truncate("hello world", 5))
	assert.Equal(t, "abcdefgh", Truncate("abcdefghijkl", 8))
	assert.Equal(t, "héllo", Truncate("héllo wörld", 6))
	assert.Equal(t, 3, len([]rune(Truncate(strings.Repeat("ü", 10), 3))))
}
