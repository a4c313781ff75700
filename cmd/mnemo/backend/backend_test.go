package backend_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/backend"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
	"github.com/papercomputeco/mnemo/pkg/eventstream/worker"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
)

var _ = Describe("backend", func() {
	var (
		tmpDir string
		cfg    *config.Config
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mnemo-backend-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})

		cfg = config.NewDefaultConfig()
		ctx = context.Background()
	})

	Describe("ResolveSQLitePath", func() {
		It("prefers an explicit path", func() {
			path, err := backend.ResolveSQLitePath("/tmp/custom.db", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/tmp/custom.db"))
		})

		It("falls back to the database in the config directory", func() {
			path, err := backend.ResolveSQLitePath("", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tmpDir, "mnemo.db")))
		})
	})

	Describe("OpenStore", func() {
		It("opens the in-memory store", func() {
			cfg.Storage.Driver = config.StorageInMemory
			driver, err := backend.OpenStore(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("opens sqlite at the default path", func() {
			driver, err := backend.OpenStore(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(driver.Close)

			Expect(filepath.Join(tmpDir, "mnemo.db")).To(BeAnExistingFile())
		})

		It("requires a DSN for postgres", func() {
			cfg.Storage.Driver = config.StoragePostgres
			_, err := backend.OpenStore(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("postgres_dsn is required")))
		})

		It("rejects unknown drivers", func() {
			cfg.Storage.Driver = "mongo"
			_, err := backend.OpenStore(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unknown storage driver")))
		})
	})

	Describe("NewPublisher", func() {
		It("defaults to the no-op publisher", func() {
			publisher, err := backend.NewPublisher(cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("requires brokers for kafka", func() {
			cfg.EventStream.Provider = config.EventStreamKafka
			cfg.EventStream.Brokers = ""
			_, err := backend.NewPublisher(cfg, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("at least one broker")))
		})

		It("builds a pooled kafka publisher", func() {
			cfg.EventStream.Provider = config.EventStreamKafka
			cfg.EventStream.Brokers = "localhost:9092"
			publisher, err := backend.NewPublisher(cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher).To(BeAssignableToTypeOf(&worker.Pool{}))
			Expect(publisher.Close()).To(Succeed())
		})
	})

	Describe("NewCompleter", func() {
		It("builds the default ollama client without a key", func() {
			completer, err := backend.NewCompleter(cfg, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(completer).NotTo(BeNil())
		})

		It("rejects unknown providers", func() {
			cfg.Model.Provider = "mystery"
			_, err := backend.NewCompleter(cfg, tmpDir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unknown provider type")))
		})
	})

	Describe("NewLogger", func() {
		newCmd := func(args ...string) (*cobra.Command, *bytes.Buffer) {
			var stderr bytes.Buffer
			cmd := &cobra.Command{Use: "chat"}
			cmd.Flags().Bool("debug", false, "")
			cmd.Flags().String("log-level", "info", "")
			cmd.SetErr(&stderr)
			Expect(cmd.Flags().Parse(args)).To(Succeed())
			return cmd, &stderr
		}

		It("writes prefixed lines to the command's stderr", func() {
			cmd, stderr := newCmd()
			backend.NewLogger(cmd).Info("ready")

			Expect(stderr.String()).To(ContainSubstring("mnemo"))
			Expect(stderr.String()).To(ContainSubstring("ready"))
			Expect(stderr.String()).To(ContainSubstring("chat"))
		})

		It("honors --log-level", func() {
			cmd, stderr := newCmd("--log-level", "warn")
			log := backend.NewLogger(cmd)
			log.Info("quiet")
			log.Warn("loud")

			Expect(stderr.String()).NotTo(ContainSubstring("quiet"))
			Expect(stderr.String()).To(ContainSubstring("loud"))
		})

		It("lets --debug win over --log-level", func() {
			cmd, stderr := newCmd("--log-level", "error", "--debug")
			backend.NewLogger(cmd).Debug("details")

			Expect(stderr.String()).To(ContainSubstring("details"))
		})

		It("warns about an unknown level", func() {
			cmd, stderr := newCmd("--log-level", "chatty")
			backend.NewLogger(cmd)

			Expect(stderr.String()).To(ContainSubstring("unknown log level"))
		})
	})

	Describe("LoadConfig", func() {
		It("lets bound flags override defaults", func() {
			var limit int
			cmd := &cobra.Command{Use: "test"}
			cmd.Flags().String("config-dir", tmpDir, "")
			config.AddIntFlag(cmd, config.Flags, config.FlagTokenLimit, &limit)
			Expect(cmd.Flags().Set("token-limit", "1234")).To(Succeed())

			loaded, err := backend.LoadConfig(cmd, config.FlagTokenLimit)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Memory.TokenLimit).To(Equal(1234))
			Expect(loaded.Storage.Driver).To(Equal(config.StorageSQLite))
		})
	})
})
