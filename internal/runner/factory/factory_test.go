package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakkerme/social-agent/internal/config"
	"github.com/bakkerme/social-agent/internal/llm"
	llmmock "github.com/bakkerme/social-agent/internal/llm/mock"
	"github.com/bakkerme/social-agent/internal/platform"
	"github.com/bakkerme/social-agent/internal/platform/mock"
)

// fakePlatform serves just enough of the API for one notification and posting.
type fakePlatform struct {
	mu       sync.Mutex
	statuses []platform.StatusParams
}

func (p *fakePlatform) handle(req platform.Request) (*platform.Response, error) {
	switch {
	case req.Path == "/oauth/token":
		return mock.JSON(http.StatusOK, map[string]string{"access_token": "tok-1"}), nil
	case req.Token != "tok-1":
		return mock.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}), nil
	case req.Path == "/api/v1/accounts/verify_credentials":
		return mock.JSON(http.StatusOK, platform.Account{ID: "me", Username: "agent"}), nil
	case req.Path == "/api/v1/notifications":
		return mock.JSON(http.StatusOK, []platform.Notification{{
			ID:      "n1",
			Type:    "mention",
			Account: platform.Account{ID: "a1", Acct: "bob"},
			Status:  &platform.Status{ID: "s1", Content: "<p>@agent what do you think?</p>"},
		}}), nil
	case req.Path == "/api/v1/statuses" && req.Method == http.MethodPost:
		data, _ := json.Marshal(req.Body)
		var params platform.StatusParams
		_ = json.Unmarshal(data, &params)
		p.mu.Lock()
		p.statuses = append(p.statuses, params)
		id := "90" + string(rune('0'+len(p.statuses)))
		p.mu.Unlock()
		return mock.JSON(http.StatusOK, platform.Status{ID: id, Content: params.Status}), nil
	case strings.HasSuffix(req.Path, "/favourite"):
		return mock.JSON(http.StatusOK, platform.Status{ID: "s1"}), nil
	default:
		return mock.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"}), nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Account.Username = "agent"
	cfg.Account.Password = "hunter2"
	cfg.Posting.Immediately = true
	cfg.Storage.MemoryDSN = filepath.Join(t.TempDir(), "memory.db")
	cfg.Storage.CredentialsPath = filepath.Join(t.TempDir(), "credentials")
	cfg.OpenAI.Model = "test-model"
	cfg.Content.Model = "test-model"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildRunsNotificationAndPostPaths(t *testing.T) {
	fake := &fakePlatform{}
	transport := &mock.Transport{Handler: fake.handle}
	llmClient := &llmmock.Client{Responses: []llm.ChatResponse{
		{Content: "Morning thoughts on a slow day."},
		{Content: "I think it is a great idea."},
	}}

	f := New(nil)
	f.Transport = transport
	f.LLMClient = llmClient
	f.CredentialKey = make([]byte, 32)

	agent, err := f.Build(testConfig(t))
	require.NoError(t, err)
	require.Len(t, agent.Loops, 1)
	require.NotNil(t, agent.Poster)

	ctx := context.Background()
	require.NoError(t, agent.Runner.Start(ctx))
	require.Len(t, fake.statuses, 1, "immediate post happens during Start")
	assert.Equal(t, "Morning thoughts on a slow day.", fake.statuses[0].Status)

	stats, err := agent.Loops[0].RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Acted)
	assert.Equal(t, 1, transport.Count("/api/v1/statuses/s1/favourite"))
	require.Len(t, fake.statuses, 2)
	assert.Equal(t, "@bob I think it is a great idea.", fake.statuses[1].Status)
	assert.Equal(t, "s1", fake.statuses[1].InReplyToID)

	record, err := agent.Memory.GetMemoryByID(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []string{"favourite", "reply"}, record.Actions)

	// A second poll of the same notification must not act again.
	_, err = agent.Loops[0].RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.Count("/api/v1/statuses/s1/favourite"))

	assert.Equal(t, 1, transport.Count("/oauth/token"))
	agent.Runner.Stop()
	assert.True(t, transport.Closed())
}

func TestBuildReusesCachedCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.Posting.Enabled = false
	cfg.Monitor.Notifications.Enabled = false

	run := func() *mock.Transport {
		fake := &fakePlatform{}
		transport := &mock.Transport{Handler: fake.handle}
		f := New(nil)
		f.Transport = transport
		f.LLMClient = &llmmock.Client{}
		f.CredentialKey = make([]byte, 32)
		agent, err := f.Build(cfg)
		require.NoError(t, err)
		require.NoError(t, agent.Runner.Start(context.Background()))
		agent.Runner.Stop()
		return transport
	}

	first := run()
	assert.Equal(t, 1, first.Count("/oauth/token"))
	second := run()
	assert.Equal(t, 0, second.Count("/oauth/token"))
	assert.Equal(t, 1, second.Count("/api/v1/accounts/verify_credentials"))
}

func TestBuildRejectsBadActionRule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Actions.Notifications.Favourite = "type =="
	f := New(nil)
	f.Transport = &mock.Transport{}
	f.LLMClient = &llmmock.Client{}
	f.CredentialKey = make([]byte, 32)
	_, err := f.Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification actions")
}
