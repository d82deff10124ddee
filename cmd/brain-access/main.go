package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	"github.com/ajitpratap0/brain-access/internal/config"
	"github.com/ajitpratap0/brain-access/internal/notify"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "brain-access",
		Short: "brain-access: plan entitlements, sharing policy, upload quotas and Brain provisioning",
		Long:  "brain-access answers which features a plan grants, where content may be shared, how many uploads remain, and tracks Brain storage access requests.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; real environment variables still apply.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		plansCmd(),
		featuresCmd(),
		checkCmd(),
		upgradeCmd(),
		sharingCmd(),
		catalogCmd(),
		userCmd(),
		quotaCmd(),
		accessCmd(),
		maintainCmd(),
		healthCmd(),
		serveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newStore opens the configured backend, layering Redis upload counters on
// top when redis.addr is set.
func newStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	var base store.Store
	switch cfg.Store.Backend {
	case "neo4j":
		st, err := store.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
		if err != nil {
			return nil, err
		}
		base = st
	default:
		base = store.NewMemoryStore()
	}

	if !cfg.Redis.Enabled() {
		return base, nil
	}
	counter, err := store.NewRedisUploadCounter(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix, logger)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return store.NewLayered(base, counter), nil
}

// newNotifier returns the AMQP notifier when amqp.url is set, otherwise the
// log notifier. The returned close func is never nil.
func newNotifier(logger *slog.Logger) (notify.Notifier, func() error, error) {
	if !cfg.AMQP.Enabled() {
		return notify.NewLogNotifier(logger), func() error { return nil }, nil
	}
	n, err := notify.NewAMQPNotifier(cfg.AMQP.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	return n, n.Close, nil
}

func newChecker(st store.Store, logger *slog.Logger) *quota.Checker {
	// Validate already checked the policy name.
	policy, _ := quota.ParseReadFailurePolicy(cfg.Quota.ReadFailurePolicy)
	return quota.NewChecker(st, st, policy, logger)
}

func newWorkflow(st store.Store, n notify.Notifier, logger *slog.Logger) *brainaccess.Workflow {
	return brainaccess.NewWorkflow(st, n, brainaccess.Policy{
		AllowReRequestAfterRejection: cfg.BrainAccess.AllowReRequest,
		EstimatedTurnaround:          time.Duration(cfg.BrainAccess.TurnaroundHours) * time.Hour,
	}, logger)
}
