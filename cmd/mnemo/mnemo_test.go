package mnemocmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mnemocmder "github.com/papercomputeco/mnemo/cmd/mnemo"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

var _ = Describe("NewMnemoCmd", func() {
	It("registers every subcommand", func() {
		cmd := mnemocmder.NewMnemoCmd()

		var names []string
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"auth", "chat", "codec", "config", "init",
			"serve", "sessions", "stats", "version",
		))
	})

	It("declares the global flags", func() {
		cmd := mnemocmder.NewMnemoCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("log-level")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().ShorthandLookup("d")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("prints the version", func() {
		cmd := mnemocmder.NewMnemoCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: " + utils.Version))
	})

	It("round-trips text through the codec subcommand", func() {
		cmd := mnemocmder.NewMnemoCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"codec", "check", "hello memory"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Round trip verified"))
	})
})
