package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the agent configuration. It is read from an optional YAML document
// and then overlaid with environment variables.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Platform PlatformConfig `yaml:"platform"`
	Session  SessionConfig  `yaml:"session"`
	Posting  PostingConfig  `yaml:"posting"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Actions  ActionsConfig  `yaml:"actions"`
	Content  ContentConfig  `yaml:"content"`
	Storage  StorageConfig  `yaml:"storage"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	OTel     OTelConfig     `yaml:"otel"`
}

type AccountConfig struct {
	Username string `yaml:"username" env:"AGENT_USERNAME"`
	Password string `yaml:"password" env:"AGENT_PASSWORD"`
}

type PlatformConfig struct {
	// Name scopes cached credentials, e.g. "truthsocial".
	Name           string   `yaml:"name" env:"AGENT_PLATFORM"`
	BaseURL        string   `yaml:"base_url" env:"AGENT_BASE_URL"`
	UserAgent      string   `yaml:"user_agent" env:"AGENT_USER_AGENT"`
	ClientID       string   `yaml:"client_id" env:"AGENT_CLIENT_ID"`
	ClientSecret   string   `yaml:"client_secret" env:"AGENT_CLIENT_SECRET"`
	RequestTimeout Duration `yaml:"request_timeout" env:"AGENT_REQUEST_TIMEOUT"`
}

type SessionConfig struct {
	RetryLimit int `yaml:"retry_limit" env:"AGENT_RETRY_LIMIT"`

	// Cookies and Token skip the password login when they validate.
	Cookies string `yaml:"cookies" env:"AGENT_COOKIES"`
	Token   string `yaml:"token" env:"AGENT_TOKEN"`
}

type PostingConfig struct {
	Enabled       bool     `yaml:"enabled" env:"AGENT_POSTING_ENABLED"`
	IntervalMin   Duration `yaml:"interval_min" env:"AGENT_POST_INTERVAL_MIN"`
	IntervalMax   Duration `yaml:"interval_max" env:"AGENT_POST_INTERVAL_MAX"`
	Immediately   bool     `yaml:"immediately" env:"AGENT_POST_IMMEDIATELY"`
	MaxPostLength int      `yaml:"max_post_length" env:"AGENT_MAX_POST_LENGTH"`
	Visibility    string   `yaml:"visibility" env:"AGENT_POST_VISIBILITY"`
}

type MonitorConfig struct {
	ProcessImages bool                      `yaml:"process_images" env:"AGENT_PROCESS_IMAGES"`
	Notifications NotificationMonitorConfig `yaml:"notifications"`
	Timelines     TimelineMonitorConfig     `yaml:"timelines"`
}

type NotificationMonitorConfig struct {
	Enabled  bool     `yaml:"enabled" env:"AGENT_NOTIFICATIONS_ENABLED"`
	Interval Duration `yaml:"interval" env:"AGENT_NOTIFICATION_INTERVAL"`
	Limit    int      `yaml:"limit"`

	// Types filters the fetch; empty means every notification type.
	Types []string `yaml:"types" env:"AGENT_NOTIFICATION_TYPES" envSeparator:","`
}

type TimelineMonitorConfig struct {
	TargetUsers []string `yaml:"target_users" env:"AGENT_TARGET_USERS" envSeparator:","`
	Interval    Duration `yaml:"interval" env:"AGENT_SEARCH_INTERVAL"`
	Limit       int      `yaml:"limit"`
}

// ActionsConfig holds per-feed action rules.
type ActionsConfig struct {
	Notifications ActionRules `yaml:"notifications"`
	Timelines     ActionRules `yaml:"timelines"`
}

// ActionRules are boolean expressions, one per action. An empty rule never fires.
type ActionRules struct {
	Favourite  string `yaml:"favourite"`
	Reblog     string `yaml:"reblog"`
	Quote      string `yaml:"quote"`
	Reply      string `yaml:"reply"`
	FollowBack string `yaml:"follow_back"`
}

type ContentConfig struct {
	Persona        string       `yaml:"persona" env:"AGENT_PERSONA"`
	SystemTemplate string       `yaml:"system_template"`
	ReplyTemplate  string       `yaml:"reply_template"`
	QuoteTemplate  string       `yaml:"quote_template"`
	PostTemplate   string       `yaml:"post_template"`
	RefusalPhrases []string     `yaml:"refusal_phrases"`
	RecentPosts    int          `yaml:"recent_posts"` // earlier posts shown to the post prompt
	Model          string       `yaml:"model"`
	Temperature    *float64     `yaml:"temperature"`
	Images         ImagesConfig `yaml:"images"`
}

type ImagesConfig struct {
	Model          string   `yaml:"model"`
	Prompt         string   `yaml:"prompt"`
	MaxImages      int      `yaml:"max_images"`
	MaxBytes       int64    `yaml:"max_bytes"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	FetchTimeout   Duration `yaml:"fetch_timeout"`
}

type StorageConfig struct {
	MemoryDSN       string `yaml:"memory_dsn" env:"AGENT_MEMORY_DSN"`
	MemoryTable     string `yaml:"memory_table"`
	CredentialsPath string `yaml:"credentials_path" env:"AGENT_CREDENTIALS_PATH"`
}

type OpenAIConfig struct {
	APIKey      string           `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string           `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model       string           `yaml:"model" env:"OPENAI_MODEL"`
	Temperature *float64         `yaml:"temperature" env:"OPENAI_TEMPERATURE"`
	OTel        OpenAIOTelConfig `yaml:"otel"`
}

type OpenAIOTelConfig struct {
	Enabled       bool `yaml:"enabled" env:"OTEL_OPENAI_ENABLED"`
	CaptureBodies bool `yaml:"capture_bodies" env:"OTEL_CAPTURE_OPENAI_BODIES"`
	MaxBodyBytes  int  `yaml:"max_body_bytes" env:"OTEL_OPENAI_MAX_BODY_BYTES"`
}

type OTelConfig struct {
	Enabled     bool              `yaml:"enabled" env:"OTEL_ENABLED"`
	ServiceName string            `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Endpoint    string            `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol    string            `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL"` // "grpc" or "http/protobuf"
	Headers     map[string]string `yaml:"headers" env:"OTEL_EXPORTER_OTLP_HEADERS" envSeparator:"," envKeyValSeparator:"="`
	Insecure    *bool             `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SampleRatio float64           `yaml:"sample_ratio" env:"OTEL_TRACES_SAMPLE_RATIO"`
}

// InsecureOrDefault reports whether the exporter should skip TLS, inferring
// it from the endpoint when unset.
func (c OTelConfig) InsecureOrDefault() bool {
	if c.Insecure != nil {
		return *c.Insecure
	}
	return defaultInsecure(c.Endpoint)
}

// Default returns the configuration used before any file or environment is applied.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:           "truthsocial",
			BaseURL:        "https://truthsocial.com",
			UserAgent:      "social-agent/0.1",
			RequestTimeout: Duration(30 * time.Second),
		},
		Session: SessionConfig{RetryLimit: 3},
		Posting: PostingConfig{
			Enabled:       true,
			IntervalMin:   Duration(30 * time.Minute),
			IntervalMax:   Duration(90 * time.Minute),
			MaxPostLength: 500,
			Visibility:    "public",
		},
		Monitor: MonitorConfig{
			Notifications: NotificationMonitorConfig{
				Enabled:  true,
				Interval: Duration(2 * time.Minute),
				Limit:    30,
			},
			Timelines: TimelineMonitorConfig{
				Interval: Duration(5 * time.Minute),
				Limit:    20,
			},
		},
		Actions: ActionsConfig{
			Notifications: ActionRules{
				Favourite:  `type == "mention"`,
				Reply:      `type == "mention"`,
				FollowBack: `type == "follow"`,
			},
			Timelines: ActionRules{
				Favourite: `true`,
				Reply:     `content != ""`,
			},
		},
		Content: ContentConfig{
			RecentPosts: 5,
			Images: ImagesConfig{
				MaxImages:      4,
				MaxBytes:       8 << 20,
				MaxConcurrency: 2,
				FetchTimeout:   Duration(20 * time.Second),
			},
		},
		Storage: StorageConfig{
			MemoryDSN:       "data/memory.db",
			MemoryTable:     "memories",
			CredentialsPath: "data/credentials",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
			OTel: OpenAIOTelConfig{
				Enabled:      true,
				MaxBodyBytes: 64 * 1024,
			},
		},
		OTel: OTelConfig{
			ServiceName: "social-agent",
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
	}
}

// Load reads path (a missing file is not an error), overlays the environment
// and validates the result.
func Load(path string) (*Config, error) {
	var data []byte
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and overlays the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Account.Username = strings.TrimPrefix(strings.TrimSpace(c.Account.Username), "@")
	c.Monitor.Timelines.TargetUsers = cleanList(c.Monitor.Timelines.TargetUsers, "@")
	c.Monitor.Notifications.Types = cleanList(c.Monitor.Notifications.Types, "")
	c.OTel.Protocol = strings.ToLower(strings.TrimSpace(c.OTel.Protocol))
	c.OTel.SampleRatio = clamp01(c.OTel.SampleRatio)
	if c.Content.Model == "" {
		c.Content.Model = c.OpenAI.Model
	}
	if c.Content.Temperature == nil {
		c.Content.Temperature = c.OpenAI.Temperature
	}
	if c.Content.Images.Model == "" {
		c.Content.Images.Model = c.Content.Model
	}
}

func cleanList(values []string, trimPrefix string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if trimPrefix != "" {
			v = strings.TrimPrefix(v, trimPrefix)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

var knownNotificationTypes = map[string]bool{
	"mention": true, "status": true, "favourite": true, "reblog": true, "follow": true,
	"poll": true, "poll_end": true, "group_mention": true, "group_favourite": true,
	"group_reblog": true, "group_approval": true,
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Account.Username == "" {
		return fmt.Errorf("account.username is required (AGENT_USERNAME)")
	}
	if c.Account.Password == "" && strings.TrimSpace(c.Session.Token) == "" {
		return fmt.Errorf("account.password is required (AGENT_PASSWORD) unless session.token is set")
	}
	if strings.TrimSpace(c.Platform.Name) == "" {
		return fmt.Errorf("platform.name is required")
	}
	if strings.TrimSpace(c.Platform.BaseURL) == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Session.RetryLimit < 1 {
		return fmt.Errorf("session.retry_limit must be >= 1")
	}
	if c.Posting.Enabled {
		if c.Posting.IntervalMin <= 0 {
			return fmt.Errorf("posting.interval_min must be > 0")
		}
		if c.Posting.IntervalMax < c.Posting.IntervalMin {
			return fmt.Errorf("posting.interval_max must be >= posting.interval_min")
		}
	}
	if c.Posting.MaxPostLength <= 0 {
		return fmt.Errorf("posting.max_post_length must be > 0")
	}
	switch c.Posting.Visibility {
	case "public", "unlisted", "private", "direct":
	default:
		return fmt.Errorf("posting.visibility %q is not supported", c.Posting.Visibility)
	}
	if c.Monitor.Notifications.Enabled && c.Monitor.Notifications.Interval <= 0 {
		return fmt.Errorf("monitor.notifications.interval must be > 0")
	}
	for _, t := range c.Monitor.Notifications.Types {
		if !knownNotificationTypes[t] {
			return fmt.Errorf("monitor.notifications.types: unknown type %q", t)
		}
	}
	if len(c.Monitor.Timelines.TargetUsers) > 0 && c.Monitor.Timelines.Interval <= 0 {
		return fmt.Errorf("monitor.timelines.interval must be > 0")
	}
	if c.Storage.MemoryDSN == "" {
		return fmt.Errorf("storage.memory_dsn is required")
	}
	if c.OTel.Enabled {
		switch c.OTel.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("otel.protocol must be grpc or http/protobuf, got %q", c.OTel.Protocol)
		}
	}
	return nil
}
