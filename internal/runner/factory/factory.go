// Package factory builds a runnable agent from configuration.
package factory

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bakkerme/social-agent/internal/actions"
	"github.com/bakkerme/social-agent/internal/config"
	"github.com/bakkerme/social-agent/internal/content"
	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/credstore"
	"github.com/bakkerme/social-agent/internal/kv/badgerkv"
	"github.com/bakkerme/social-agent/internal/ledger"
	"github.com/bakkerme/social-agent/internal/llm"
	llmopenai "github.com/bakkerme/social-agent/internal/llm/openai"
	"github.com/bakkerme/social-agent/internal/media"
	"github.com/bakkerme/social-agent/internal/memory"
	"github.com/bakkerme/social-agent/internal/monitor"
	"github.com/bakkerme/social-agent/internal/platform"
	"github.com/bakkerme/social-agent/internal/poster"
	"github.com/bakkerme/social-agent/internal/runner"
	"github.com/bakkerme/social-agent/internal/session"
)

// Factory holds the collaborators that can be swapped out. Nil fields are
// built from configuration.
type Factory struct {
	Logger     *slog.Logger
	Transport  platform.Transport
	LLMClient  llm.Client
	HTTPClient *http.Client
	Blobs      credstore.BlobStore
	Memory     memory.Store
	// CredentialKey replaces the machine-derived credential key.
	CredentialKey []byte
}

func New(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{Logger: logger}
}

// Agent is the assembled process. Stop the Runner to release everything.
type Agent struct {
	Runner  *runner.Runner
	Session *session.Manager
	Client  *platform.Client
	Ledger  *ledger.Ledger
	Memory  memory.Store
	Loops   []*monitor.Loop
	Poster  *poster.Scheduler
}

// SessionBundle is a session plus the stores it owns.
type SessionBundle struct {
	Manager *session.Manager
	Closers []io.Closer
}

func (b *SessionBundle) Close() {
	_ = b.Manager.Close()
	for i := len(b.Closers) - 1; i >= 0; i-- {
		_ = b.Closers[i].Close()
	}
}

// NewSession builds the transport, the encrypted credential cache and the
// session manager.
func (f *Factory) NewSession(cfg *config.Config) (*SessionBundle, error) {
	transport := f.Transport
	if transport == nil {
		transport = platform.NewHTTPTransport(platform.HTTPTransportConfig{
			BaseURL:   cfg.Platform.BaseURL,
			UserAgent: cfg.Platform.UserAgent,
			Cookies:   cfg.Session.Cookies,
			Timeout:   cfg.Platform.RequestTimeout.Std(),
		})
	}

	bundle := &SessionBundle{}
	blobs := f.Blobs
	if blobs == nil {
		store, err := badgerkv.Open(cfg.Storage.CredentialsPath)
		if err != nil {
			return nil, err
		}
		bundle.Closers = append(bundle.Closers, store)
		blobs = store
	}

	opts := []credstore.Option{credstore.WithLogger(f.Logger)}
	if len(f.CredentialKey) > 0 {
		opts = append(opts, credstore.WithKey(f.CredentialKey))
	}
	creds, err := credstore.New(blobs, cfg.Platform.Name, opts...)
	if err != nil {
		closeAll(bundle.Closers)
		return nil, err
	}

	manager, err := session.NewManager(session.Config{
		Username:     cfg.Account.Username,
		Password:     cfg.Account.Password,
		ClientID:     cfg.Platform.ClientID,
		ClientSecret: cfg.Platform.ClientSecret,
		RetryLimit:   cfg.Session.RetryLimit,
		Token:        cfg.Session.Token,
	}, transport, creds, session.WithLogger(f.Logger))
	if err != nil {
		closeAll(bundle.Closers)
		return nil, err
	}
	bundle.Manager = manager
	return bundle, nil
}

// Build assembles every component. Nothing talks to the network until the
// runner is started.
func (f *Factory) Build(cfg *config.Config) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bundle, err := f.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	closers := bundle.Closers
	fail := func(err error) (*Agent, error) {
		_ = bundle.Manager.Close()
		closeAll(closers)
		return nil, err
	}

	mem := f.Memory
	if mem == nil {
		store, err := memory.NewSQLiteStore(cfg.Storage.MemoryDSN, cfg.Storage.MemoryTable)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, store)
		mem = store
	}

	llmClient := f.LLMClient
	if llmClient == nil {
		llmClient = llmopenai.NewClient(cfg.OpenAI)
	}

	var isRefusal content.RefusalPredicate
	if len(cfg.Content.RefusalPhrases) > 0 {
		isRefusal = content.NewPhraseFilter(cfg.Content.RefusalPhrases)
	}
	composer, err := content.NewComposer(content.ComposerConfig{
		Username:       cfg.Account.Username,
		Persona:        cfg.Content.Persona,
		Model:          cfg.Content.Model,
		Temperature:    cfg.Content.Temperature,
		MaxLength:      cfg.Posting.MaxPostLength,
		RecentPosts:    cfg.Content.RecentPosts,
		SystemTemplate: cfg.Content.SystemTemplate,
		ReplyTemplate:  cfg.Content.ReplyTemplate,
		QuoteTemplate:  cfg.Content.QuoteTemplate,
		PostTemplate:   cfg.Content.PostTemplate,
	}, llmClient, isRefusal, mem, logger)
	if err != nil {
		return fail(err)
	}

	client := platform.NewClient(bundle.Manager)
	executor := actions.NewExecutor(client, composer,
		actions.WithVisibility(cfg.Posting.Visibility),
		actions.WithMaxLength(cfg.Posting.MaxPostLength),
		actions.WithLogger(logger),
	)
	processed := ledger.New()

	var describer monitor.Describer
	if cfg.Monitor.ProcessImages {
		images := cfg.Content.Images
		describer = media.NewDescriber(media.Config{
			Model:          images.Model,
			Prompt:         images.Prompt,
			Temperature:    cfg.Content.Temperature,
			MaxImages:      images.MaxImages,
			MaxBytes:       images.MaxBytes,
			MaxConcurrency: images.MaxConcurrency,
			FetchTimeout:   images.FetchTimeout.Std(),
		}, llmClient, f.HTTPClient, logger)
	}

	agent := &Agent{Session: bundle.Manager, Client: client, Ledger: processed, Memory: mem}
	var services []runner.Service

	if n := cfg.Monitor.Notifications; n.Enabled {
		policy, err := actions.NewPolicy(cfg.Actions.Notifications)
		if err != nil {
			return fail(fmt.Errorf("notification actions: %w", err))
		}
		types := make([]core.NotificationType, 0, len(n.Types))
		for _, t := range n.Types {
			types = append(types, core.NotificationType(t))
		}
		loop, err := monitor.NewLoop(monitor.NewNotificationFeed(client, types, n.Limit), monitor.Config{
			Interval:  n.Interval.Std(),
			Policy:    policy,
			Executor:  executor,
			Describer: describer,
			Memory:    mem,
			Ledger:    processed,
			Logger:    logger,
		})
		if err != nil {
			return fail(err)
		}
		agent.Loops = append(agent.Loops, loop)
		services = append(services, loop)
	}

	if tl := cfg.Monitor.Timelines; len(tl.TargetUsers) > 0 {
		policy, err := actions.NewPolicy(cfg.Actions.Timelines)
		if err != nil {
			return fail(fmt.Errorf("timeline actions: %w", err))
		}
		loop, err := monitor.NewLoop(monitor.NewTimelineFeed(client, tl.TargetUsers, tl.Limit), monitor.Config{
			Interval:  tl.Interval.Std(),
			Policy:    policy,
			Executor:  executor,
			Describer: describer,
			Memory:    mem,
			Ledger:    processed,
			Logger:    logger,
		})
		if err != nil {
			return fail(err)
		}
		agent.Loops = append(agent.Loops, loop)
		services = append(services, loop)
	}

	if p := cfg.Posting; p.Enabled {
		scheduler, err := poster.NewScheduler(client, composer, mem, poster.NewOutbox(), poster.Config{
			IntervalMin: p.IntervalMin.Std(),
			IntervalMax: p.IntervalMax.Std(),
			Immediately: p.Immediately,
			MaxLength:   p.MaxPostLength,
			Visibility:  p.Visibility,
			Username:    cfg.Account.Username,
			Logger:      logger,
		})
		if err != nil {
			return fail(err)
		}
		agent.Poster = scheduler
		services = append(services, scheduler)
	}

	agent.Runner = runner.New(runner.Components{
		Session:  bundle.Manager,
		Services: services,
		Closers:  closers,
	}, logger)
	return agent, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}
