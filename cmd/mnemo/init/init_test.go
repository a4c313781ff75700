package initcmder

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/config"
)

var _ = Describe("runInit", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mnemo-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})
		out = &bytes.Buffer{}
	})

	It("creates the .mnemo directory", func() {
		Expect(runInit(out, tmpDir, "")).To(Succeed())
		Expect(filepath.Join(tmpDir, ".mnemo")).To(BeADirectory())
		Expect(out.String()).To(ContainSubstring("Initialized"))
	})

	It("is idempotent", func() {
		Expect(runInit(out, tmpDir, "")).To(Succeed())
		Expect(runInit(out, tmpDir, "")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes a preset config", func() {
		Expect(runInit(out, tmpDir, "anthropic")).To(Succeed())

		data, err := os.ReadFile(filepath.Join(tmpDir, ".mnemo", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Model.Provider).To(Equal("anthropic"))
	})

	It("keeps an existing config", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".mnemo"), 0o755)).To(Succeed())
		path := filepath.Join(tmpDir, ".mnemo", "config.toml")
		Expect(os.WriteFile(path, []byte("version = 0\n"), 0o600)).To(Succeed())

		Expect(runInit(out, tmpDir, "openai")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Keeping existing config"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("version = 0\n"))
	})

	It("rejects unknown presets before touching the filesystem", func() {
		Expect(runInit(out, tmpDir, "mystery")).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".mnemo")).NotTo(BeADirectory())
	})
})
