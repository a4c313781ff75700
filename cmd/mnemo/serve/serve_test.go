package servecmder

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
)

var _ = Describe("NewServeCmd", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mnemo-serve-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})
	})

	newCmd := func(args ...string) *cobra.Command {
		cmd := NewServeCmd()
		cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
		cmd.PersistentFlags().String("log-level", "info", "Log level")
		cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	It("registers the server flags", func() {
		cmd := NewServeCmd()
		for _, name := range []string{"no-mcp", "log-file", "storage", "listen", "token-limit", "eventstream", "brokers"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("rejects positional arguments", func() {
		Expect(newCmd("extra").Execute()).To(HaveOccurred())
	})

	It("fails before listening when the store cannot be opened", func() {
		err := newCmd("--storage", "postgres").Execute()
		Expect(err).To(MatchError(ContainSubstring("postgres")))
	})

	It("appends JSON records to the log file", func() {
		logFile := filepath.Join(tmpDir, "serve.log")
		err := newCmd("--storage", "inmemory", "--eventstream", "carrier-pigeon", "--log-file", logFile).Execute()
		Expect(err).To(HaveOccurred())

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())

		var record map[string]any
		line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
		Expect(json.Unmarshal([]byte(line), &record)).To(Succeed())
		Expect(record["msg"]).To(Equal("using in-memory storage"))
	})

	It("fails on an unknown event stream provider", func() {
		err := newCmd("--storage", "inmemory", "--eventstream", "carrier-pigeon").Execute()
		Expect(err).To(HaveOccurred())
	})
})
