// Package session owns the single authenticated channel to the platform.
//
// One Manager is constructed per process and handed to every component that
// talks to the platform. Logins are coalesced so only one is in flight.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/bakkerme/social-agent/internal/platform"
	"github.com/bakkerme/social-agent/internal/retry"
)

const (
	verifyPath = "/api/v1/accounts/verify_credentials"
	tokenPath  = "/oauth/token"

	defaultRedirectURI = "urn:ietf:wg:oauth:2.0:oob"
	defaultScope       = "read write follow push"
)

type State int

const (
	StateUninitialized State = iota
	StateAuthenticating
	StateActive
	StateExpired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CredentialCache is the subset of credstore.Store used by the manager.
type CredentialCache interface {
	Get(ctx context.Context, accountID string) (string, bool)
	Put(ctx context.Context, accountID, token string) error
	Delete(ctx context.Context, accountID string) error
}

type Config struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	// RetryLimit bounds password login attempts.
	RetryLimit int
	// Token is a pre-supplied bearer token tried before password login.
	Token string
	// BackoffBase is the wait after the first failed attempt; it doubles each time.
	BackoffBase time.Duration
	// Wait overrides the backoff sleeper.
	Wait func(ctx context.Context, d time.Duration) error
}

// Source reports where the active credential came from.
type Source string

const (
	SourceNone     Source = ""
	SourceCache    Source = "cache"
	SourceSupplied Source = "supplied"
	SourceLogin    Source = "login"
)

type Manager struct {
	cfg       Config
	transport platform.Transport
	cache     CredentialCache
	logger    *slog.Logger

	group singleflight.Group

	mu               sync.Mutex
	token            string
	source           Source
	state            State
	suppliedRejected bool
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(cfg Config, transport platform.Transport, cache CredentialCache, opts ...Option) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("session transport is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, fmt.Errorf("session username is required")
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	m := &Manager{
		cfg:       cfg,
		transport: transport,
		cache:     cache,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Source reports how the current credential was obtained.
func (m *Manager) Source() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *Manager) currentToken() (string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.state
}

// Initialize establishes a session. It returns immediately when one is active.
// Only ErrLoginExhausted (or a context error) is returned for a failed login.
func (m *Manager) Initialize(ctx context.Context) error {
	if token, state := m.currentToken(); state == StateClosed {
		return ErrClosed
	} else if state == StateActive && token != "" {
		return nil
	}
	_, err, _ := m.group.Do("login", func() (any, error) {
		if token, state := m.currentToken(); state == StateActive && token != "" {
			return nil, nil
		}
		return nil, m.authenticate(ctx)
	})
	return err
}

func (m *Manager) authenticate(ctx context.Context) error {
	m.setState(StateAuthenticating)

	if m.cache != nil {
		if token, ok := m.cache.Get(ctx, m.cfg.Username); ok {
			err := m.probe(ctx, token)
			if err == nil {
				m.adopt(token, SourceCache)
				m.logger.Info("adopted cached credential", "username", m.cfg.Username)
				return nil
			}
			m.logger.Info("cached credential rejected", "username", m.cfg.Username, "error", err)
			m.forget(ctx)
		}
	}

	if supplied := m.suppliedToken(); supplied != "" {
		err := m.probe(ctx, supplied)
		if err == nil {
			m.adopt(supplied, SourceSupplied)
			m.persist(ctx, supplied)
			m.logger.Info("adopted supplied credential", "username", m.cfg.Username)
			return nil
		}
		m.logger.Warn("supplied credential rejected, falling back to password login", "error", err)
		m.mu.Lock()
		m.suppliedRejected = true
		m.mu.Unlock()
	}

	if m.cfg.Password == "" {
		m.setState(StateExpired)
		return fmt.Errorf("%w: no password configured", ErrLoginExhausted)
	}

	var token string
	err := retry.Do(ctx, retry.Config{
		Attempts:  m.cfg.RetryLimit,
		BaseDelay: m.cfg.BackoffBase,
		Wait:      m.cfg.Wait,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.logger.Warn("login attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
		},
	}, func(attempt int) error {
		t, err := m.passwordGrant(ctx)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		m.setState(StateExpired)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.Error("login exhausted", "username", m.cfg.Username, "attempts", m.cfg.RetryLimit, "error", err)
		return fmt.Errorf("%w: %v", ErrLoginExhausted, err)
	}

	m.adopt(token, SourceLogin)
	m.persist(ctx, token)
	m.logger.Info("logged in", "username", m.cfg.Username)
	return nil
}

func (m *Manager) suppliedToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.suppliedRejected {
		return ""
	}
	return strings.TrimSpace(m.cfg.Token)
}

type passwordGrantRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (m *Manager) passwordGrant(ctx context.Context) (string, error) {
	resp, err := m.transport.Do(ctx, platform.Request{
		Method: http.MethodPost,
		Path:   tokenPath,
		Body: passwordGrantRequest{
			ClientID:     m.cfg.ClientID,
			ClientSecret: m.cfg.ClientSecret,
			GrantType:    "password",
			Username:     m.cfg.Username,
			Password:     m.cfg.Password,
			RedirectURI:  defaultRedirectURI,
			Scope:        defaultScope,
		},
	})
	if err != nil {
		return "", &platform.TransportError{Err: err}
	}
	if !resp.OK() {
		switch resp.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, platform.Classify(resp.Status, resp.Body))
		}
		return "", platform.Classify(resp.Status, resp.Body)
	}
	var out tokenResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return out.AccessToken, nil
}

func (m *Manager) probe(ctx context.Context, token string) error {
	resp, err := m.transport.Do(ctx, platform.Request{
		Method: http.MethodGet,
		Path:   verifyPath,
		Token:  token,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionProbeFailed, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %v", ErrSessionProbeFailed, platform.Classify(resp.Status, resp.Body))
	}
	return nil
}

// AuthenticatedRequest sends req with the session token attached, logging in
// first when needed. A 401 invalidates the credential and the request is
// retried exactly once after a fresh login.
func (m *Manager) AuthenticatedRequest(ctx context.Context, req platform.Request) (*platform.Response, error) {
	tracer := otel.Tracer("social-agent/session")
	ctx, span := tracer.Start(ctx, "platform.request")
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("platform.path", req.Path),
	)
	defer span.End()

	resp, err := m.send(ctx, req)
	if platform.IsUnauthorized(err) {
		span.AddEvent("session.expired")
		m.logger.Info("request unauthorized, re-authenticating", "path", req.Path)
		m.invalidate(ctx)
		resp, err = m.send(ctx, req)
		if platform.IsUnauthorized(err) {
			m.invalidate(ctx)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (m *Manager) send(ctx context.Context, req platform.Request) (*platform.Response, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	token, _ := m.currentToken()
	req.Token = token
	resp, err := m.transport.Do(ctx, req)
	if err != nil {
		return nil, &platform.TransportError{Err: err}
	}
	if !resp.OK() {
		return nil, platform.Classify(resp.Status, resp.Body)
	}
	return resp, nil
}

// invalidate drops the current credential everywhere it is held.
func (m *Manager) invalidate(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	if m.source == SourceSupplied {
		m.suppliedRejected = true
	}
	m.token = ""
	m.source = SourceNone
	m.state = StateExpired
	m.mu.Unlock()
	m.forget(ctx)
}

func (m *Manager) forget(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, m.cfg.Username); err != nil {
		m.logger.Warn("failed to drop cached credential", "error", err)
	}
}

func (m *Manager) persist(ctx context.Context, token string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Put(ctx, m.cfg.Username, token); err != nil {
		m.logger.Warn("failed to cache credential", "error", err)
	}
}

func (m *Manager) adopt(token string, source Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.source = source
	m.state = StateActive
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateClosed {
		m.state = state
	}
}

// Close releases the transport and clears the credential. It is safe to call
// more than once or before Initialize.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.token = ""
	m.source = SourceNone
	m.state = StateClosed
	m.mu.Unlock()
	if err := m.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
