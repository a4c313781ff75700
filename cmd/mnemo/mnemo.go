// Package mnemocmder
package mnemocmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/mnemo/cmd/mnemo/auth"
	chatcmder "github.com/papercomputeco/mnemo/cmd/mnemo/chat"
	codeccmder "github.com/papercomputeco/mnemo/cmd/mnemo/codec"
	configcmder "github.com/papercomputeco/mnemo/cmd/mnemo/config"
	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	servecmder "github.com/papercomputeco/mnemo/cmd/mnemo/serve"
	sessionscmder "github.com/papercomputeco/mnemo/cmd/mnemo/sessions"
	statscmder "github.com/papercomputeco/mnemo/cmd/mnemo/stats"
	versioncmder "github.com/papercomputeco/mnemo/cmd/version"
)

const mnemoLongDesc string = `Mnemo is bounded-context conversation memory for LLM chats.

Every turn is compressed into a session store. When the live context grows
past its token budget, the oldest turns are reabsorbed as a summary, and
prior turns can be recalled by similarity.

Get started using:
  mnemo init           Create a local .mnemo/ directory
  mnemo chat           Chat with memory backed by the session store
  mnemo serve          Run the memory API and MCP server
  mnemo sessions       List, show, rename and delete sessions`

const mnemoShortDesc string = "Mnemo - Conversation Memory"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mnemo",
		Short:        mnemoShortDesc,
		Long:         mnemoLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")

	// Add subcommands
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(codeccmder.NewCodecCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
