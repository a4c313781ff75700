// Package backend builds the store, event publisher, model client and logger
// that mnemo commands share, all from one resolved config.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/credentials"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eventstream/kafka"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
	"github.com/papercomputeco/mnemo/pkg/eventstream/worker"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/provider"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	"github.com/papercomputeco/mnemo/pkg/storage/postgres"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
)

// ConfigDir returns the --config-dir override, if any.
func ConfigDir(cmd *cobra.Command) string {
	configDir, _ := cmd.Flags().GetString("config-dir")
	return configDir
}

// LoadConfig resolves the config for cmd. The flags named by registryKeys
// are bound first, so flag > env > config.toml > defaults.
func LoadConfig(cmd *cobra.Command, registryKeys ...string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger: the pretty handler on the command's
// stderr, prefixed "mnemo" and tagged with the command name. --debug wins
// over --log-level; an unknown level name falls back to info with a warning.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	opts := []logger.Option{
		logger.WithPretty(true),
		logger.WithPrefix("mnemo"),
		logger.WithComponent(cmd.Name()),
		logger.WithWriter(cmd.ErrOrStderr()),
	}

	name, _ := cmd.Flags().GetString("log-level")
	level, known := logger.ParseLevel(name)
	opts = append(opts, logger.WithLevel(level))

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		opts = append(opts, logger.WithDebug(true))
	}

	log := logger.New(opts...)
	if !known {
		log.Warn("unknown log level, using info", "level", name)
	}
	return log
}

// ResolveSQLitePath returns override when set, otherwise the default
// database inside the resolved .mnemo/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	path, err := dotdir.NewManager().DatabasePath(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}
	return path, nil
}

// OpenStore opens the configured session store.
func OpenStore(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Driver {
	case config.StorageInMemory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case config.StorageSQLite, "":
		path, err := ResolveSQLitePath(cfg.Storage.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		log.Info("using SQLite storage", "path", path)
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

// NewPublisher creates the configured event publisher. Broker-backed
// publishers sit behind a worker pool so publishing never blocks a turn.
func NewPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.EventStream.Provider {
	case config.EventStreamKafka:
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.EventStream.BrokerList(),
			Topic:   cfg.EventStream.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}

		pool, err := worker.NewPool(&worker.Config{
			Publisher: publisher,
			Logger:    log,
		})
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("creating event worker pool: %w", err)
		}

		log.Info("publishing memory events",
			"brokers", cfg.EventStream.Brokers,
			"topic", cfg.EventStream.Topic,
		)
		return pool, nil

	case config.EventStreamNone, "":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.EventStream.Provider)
	}
}

// NewCompleter creates the model client. The API key comes from the config,
// the provider's environment variable or stored credentials, in that order.
func NewCompleter(cfg *config.Config, configDir string, log *slog.Logger) (llm.Completer, error) {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	key, source, err := creds.ResolveKey(cfg.Model.Provider, cfg.Model.APIKey)
	if err != nil {
		return nil, fmt.Errorf("resolving API key: %w", err)
	}
	if source != credentials.SourceNone {
		log.Debug("resolved API key",
			"provider", cfg.Model.Provider,
			"source", source,
		)
	}

	return provider.New(provider.Config{
		Provider: cfg.Model.Provider,
		Target:   cfg.Model.Target,
		Model:    cfg.Model.Model,
		APIKey:   key,
	})
}
