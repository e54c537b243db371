package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bakkerme/social-agent/internal/config"
	"github.com/bakkerme/social-agent/internal/observability/otelx"
	"github.com/bakkerme/social-agent/internal/runner/factory"
)

type globalOptions struct {
	configPath string
	envFile    string
}

func buildRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "social-agent",
		Short: "Automated posting and notification agent for a Mastodon-style platform",
		Long: strings.TrimSpace(`social-agent logs into the configured account, posts generated
statuses at randomized intervals, and reacts to new notifications and
target-user posts according to the configured action rules.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getenv("AGENT_CONFIG", "agent.yaml"), "Path to the agent YAML document")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading configuration")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newCheckSessionCommand(opts))
	return root
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Start the agent and run until interrupted",
		Example: "  social-agent run --config agent.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}
}

func newCheckSessionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "check-session",
		Short:   "Establish a session, report how the credential was obtained, and exit",
		Example: "  social-agent check-session",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup(opts)
			if err != nil {
				return err
			}
			bundle, err := factory.New(logger).NewSession(cfg)
			if err != nil {
				return err
			}
			defer bundle.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := bundle.Manager.Initialize(ctx); err != nil {
				return fmt.Errorf("session check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session active for @%s (credential source: %s)\n", cfg.Account.Username, bundle.Manager.Source())
			return nil
		},
	}
}

func runAgent(parent context.Context, opts *globalOptions) error {
	logger, cfg, err := setup(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelx.Init(ctx, logger, cfg.OTel)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	agent, err := factory.New(logger).Build(cfg)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}
	defer agent.Runner.Stop()

	if err := agent.Runner.Start(ctx); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func setup(opts *globalOptions) (*slog.Logger, *config.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	return logger, cfg, nil
}

func logLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
