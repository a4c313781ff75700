// Package servecmder provides the serve command that runs the mnemo HTTP
// API and MCP endpoint.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/cmd/mnemo/backend"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/logger"
)

type serveCommander struct {
	disableMCP bool
	logFile    string

	storageDriver    string
	sqlitePath       string
	postgresDSN      string
	listen           string
	tokenLimit       int
	reabsorbInterval int
	minTokens        int
	grading          bool
	history          bool
	topK             int
	eventStream      string
	brokers          string
	topic            string

	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagAPIListen,
	config.FlagTokenLimit,
	config.FlagReabsorbInterval,
	config.FlagMinTokens,
	config.FlagGrading,
	config.FlagHistory,
	config.FlagTopK,
	config.FlagEventStream,
	config.FlagBrokers,
	config.FlagTopic,
}

const serveLongDesc string = `Run the mnemo API server.

Serves session management, turn storage, recall and reabsorption over
HTTP, plus an MCP endpoint at /mcp exposing the memory_recall and
memory_sessions tools.

Examples:
  mnemo serve
  mnemo serve --listen :9000 --storage postgres --postgres-dsn postgres://...
  mnemo serve --eventstream kafka --brokers localhost:9092
  mnemo serve --log-file ./mnemo.log`

const serveShortDesc string = "Run the mnemo API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := backend.LoadConfig(cmd, serveFlags...)
			if err != nil {
				return err
			}

			cmder.logger = backend.NewLogger(cmd)
			if cmder.logFile != "" {
				log, closer, err := logger.Tee(cmder.logger, cmder.logFile, slog.LevelDebug)
				if err != nil {
					return err
				}
				defer closer.Close()
				cmder.logger = log
			}
			return cmder.run(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Serve /mcp without any tools")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs at debug level to this file")

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddIntFlag(cmd, config.Flags, config.FlagTokenLimit, &cmder.tokenLimit)
	config.AddIntFlag(cmd, config.Flags, config.FlagReabsorbInterval, &cmder.reabsorbInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagMinTokens, &cmder.minTokens)
	config.AddBoolFlag(cmd, config.Flags, config.FlagGrading, &cmder.grading)
	config.AddBoolFlag(cmd, config.Flags, config.FlagHistory, &cmder.history)
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	driver, err := backend.OpenStore(ctx, cfg, backend.ConfigDir(cmd), c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.NewPublisher(cfg, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Memory:     cfg.MemoryConfig(),
		DisableMCP: c.disableMCP,
	}, driver, c.logger, api.WithPublisher(publisher))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
