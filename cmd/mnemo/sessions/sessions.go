// Package sessionscmder provides the sessions command for listing,
// inspecting, renaming and deleting stored conversation sessions.
package sessionscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/backend"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

const sessionsLongDesc string = `Inspect and manage stored conversation sessions.

Use subcommands to work with sessions:
  mnemo sessions list                  List sessions, most recent first
  mnemo sessions show <id>             Show a session and its stored turns
  mnemo sessions rename <id> <title>   Give a session a custom title
  mnemo sessions delete <id>           Delete a session and its turns`

const sessionsShortDesc string = "Manage stored conversation sessions"

// commander carries the storage flag targets shared by every subcommand.
type commander struct {
	storageDriver string
	sqlitePath    string
	postgresDSN   string
}

func NewSessionsCmd() *cobra.Command {
	cmder := &commander{}

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   sessionsShortDesc,
		Long:    sessionsLongDesc,
	}

	for _, sub := range []*cobra.Command{
		cmder.newListCmd(),
		cmder.newShowCmd(),
		cmder.newRenameCmd(),
		cmder.newDeleteCmd(),
	} {
		cmder.addStorageFlags(sub)
		cmd.AddCommand(sub)
	}

	return cmd
}

func (c *commander) addStorageFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &c.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &c.postgresDSN)
}

// withManager opens the configured store and hands fn a manager over it.
// The manager never activates a session.
func (c *commander) withManager(cmd *cobra.Command, fn func(ctx context.Context, m *memory.Manager, out io.Writer) error) error {
	cfg, err := backend.LoadConfig(cmd, config.StorageFlags...)
	if err != nil {
		return err
	}

	logger := backend.NewLogger(cmd)
	ctx := cmd.Context()

	driver, err := backend.OpenStore(ctx, cfg, backend.ConfigDir(cmd), logger.With("component", "store"))
	if err != nil {
		return err
	}
	defer driver.Close()

	m := memory.NewManager(driver, cfg.MemoryConfig(), memory.WithLogger(logger))
	return fn(ctx, m, cmd.OutOrStdout())
}

func (c *commander) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withManager(cmd, runList)
		},
	}
}

func runList(ctx context.Context, m *memory.Manager, out io.Writer) error {
	sessions, err := m.Sessions(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintf(out, "\n  %s No stored sessions.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	width := cliui.TerminalWidth()
	fmt.Fprintln(out)
	for _, s := range sessions {
		tokens, err := m.StoredTokensForSession(ctx, s.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.IDStyle.Render(s.ID),
			cliui.NameStyle.Render(s.Title),
			cliui.DimStyle.Render(fmt.Sprintf("%d tokens, updated %s", tokens, s.LastUpdated.Local().Format("2006-01-02 15:04"))),
		)
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(cliui.Fit(s.Preview, width-4)))
	}
	fmt.Fprintln(out)
	return nil
}

func (c *commander) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its stored turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *memory.Manager, out io.Writer) error {
				return runShow(ctx, m, out, args[0])
			})
		},
	}
}

func runShow(ctx context.Context, m *memory.Manager, out io.Writer, id string) error {
	s, err := m.Session(ctx, id)
	if err != nil {
		return err
	}

	history, err := m.SessionHistory(ctx, id)
	if err != nil {
		return err
	}

	total := 0
	for _, h := range history {
		total += h.Tokens
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Session:"), cliui.IDStyle.Render(s.ID))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Title:"), cliui.NameStyle.Render(s.Title))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Created:"), cliui.ValueStyle.Render(s.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Preview:"), cliui.ValueStyle.Render(s.Preview))
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Stored:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%d turns, %d tokens", len(history), total)))

	for i, h := range history {
		fmt.Fprintf(out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%3d", i+1)),
			cliui.ValueStyle.Render(h.Title),
			cliui.DimStyle.Render(fmt.Sprintf("(%d tokens, %s)", h.Tokens, h.Time.Local().Format("15:04:05"))),
		)
	}
	if len(history) > 0 {
		fmt.Fprintln(out)
	}
	return nil
}

func (c *commander) newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Give a session a custom title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *memory.Manager, out io.Writer) error {
				return runRename(ctx, m, out, args[0], args[1])
			})
		},
	}
}

func runRename(ctx context.Context, m *memory.Manager, out io.Writer, id, title string) error {
	if err := m.RenameSession(ctx, id, title); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s Renamed %s to %s\n\n",
		cliui.SuccessMark,
		cliui.IDStyle.Render(id),
		cliui.NameStyle.Render(title),
	)
	return nil
}

func (c *commander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its stored turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, m *memory.Manager, out io.Writer) error {
				return runDelete(ctx, m, out, args[0])
			})
		},
	}
}

func runDelete(ctx context.Context, m *memory.Manager, out io.Writer, id string) error {
	if _, err := m.Session(ctx, id); err != nil {
		return err
	}
	if err := m.DeleteSession(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
	return nil
}
