package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())

		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("targets credentials.toml in the override directory", func() {
		Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[providers.openai]
api_key = "sk-test-key"
`
			Expect(os.WriteFile(mgr.GetTarget(), []byte(data), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers["openai"].APIKey).To(Equal("sk-test-key"))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(mgr.GetTarget(), []byte("not valid [[["), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists credentials with restricted permissions", func() {
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil credentials", func() {
			Expect(mgr.Save(nil)).To(HaveOccurred())
		})
	})

	Describe("keys", func() {
		It("stores, overwrites and removes keys per provider", func() {
			Expect(mgr.SetKey("openai", "sk-old")).To(Succeed())
			Expect(mgr.SetKey("openai", "sk-new")).To(Succeed())
			Expect(mgr.SetKey("anthropic", "sk-ant")).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-new"))

			providers, err := mgr.ListProviders()
			Expect(err).NotTo(HaveOccurred())
			Expect(providers).To(Equal([]string{"anthropic", "openai"}))

			Expect(mgr.RemoveKey("openai")).To(Succeed())
			key, err = mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())

			key, err = mgr.GetKey("anthropic")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-ant"))
		})

		It("rejects providers that take no key", func() {
			Expect(mgr.SetKey("ollama", "x")).To(MatchError(ContainSubstring("unsupported provider")))
		})

		It("treats removing an unknown provider as a no-op", func() {
			Expect(mgr.RemoveKey("nonexistent")).To(Succeed())
		})
	})

	Describe("ResolveKey", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "")
			Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())
		})

		It("prefers the configured key", func() {
			key, source, err := mgr.ResolveKey("openai", "sk-config")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-config"))
			Expect(source).To(Equal(credentials.SourceConfig))
		})

		It("falls back to the environment", func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "sk-env")

			key, source, err := mgr.ResolveKey("openai", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-env"))
			Expect(source).To(Equal(credentials.SourceEnv))
		})

		It("falls back to the stored credential", func() {
			key, source, err := mgr.ResolveKey("openai", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-stored"))
			Expect(source).To(Equal(credentials.SourceStore))
		})

		It("resolves nothing for keyless providers", func() {
			key, source, err := mgr.ResolveKey("ollama", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
			Expect(source).To(Equal(credentials.SourceNone))
		})
	})
})

var _ = Describe("EnvVarForProvider", func() {
	It("maps providers to their environment variables", func() {
		Expect(credentials.EnvVarForProvider("openai")).To(Equal("OPENAI_API_KEY"))
		Expect(credentials.EnvVarForProvider("anthropic")).To(Equal("ANTHROPIC_API_KEY"))
		Expect(credentials.EnvVarForProvider("unknown")).To(BeEmpty())
	})
})

var _ = Describe("IsSupportedProvider", func() {
	It("accepts providers that need an API key", func() {
		Expect(credentials.SupportedProviders()).To(ConsistOf("openai", "anthropic"))
		Expect(credentials.IsSupportedProvider("openai")).To(BeTrue())
		Expect(credentials.IsSupportedProvider("ollama")).To(BeFalse())
	})
})

var _ = Describe("Mask", func() {
	It("keeps only the last four characters", func() {
		Expect(credentials.Mask("sk-abcdef1234")).To(Equal("****1234"))
		Expect(credentials.Mask("abc")).To(Equal("****"))
	})
})
