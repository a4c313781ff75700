// Package chatcmder provides the chat command: an interactive conversation
// with the configured model, backed by mnemo memory.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/backend"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	sessionID    string
	systemPrompt string

	// Flag targets. Values reach the config through viper bindings.
	storageDriver    string
	sqlitePath       string
	postgresDSN      string
	tokenLimit       int
	reabsorbInterval int
	minTokens        int
	grading          bool
	history          bool
	topK             int
	provider         string
	target           string
	model            string
	eventStream      string
	brokers          string
	topic            string

	logger *slog.Logger
}

var chatFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagTokenLimit,
	config.FlagReabsorbInterval,
	config.FlagMinTokens,
	config.FlagGrading,
	config.FlagHistory,
	config.FlagTopK,
	config.FlagProvider,
	config.FlagModelTarget,
	config.FlagModel,
	config.FlagEventStream,
	config.FlagBrokers,
	config.FlagTopic,
}

const chatLongDesc string = `Start an interactive chat backed by mnemo memory.

Every assistant reply passes the admission filter and, if admitted, is
compressed and stored under the chat session. Under token pressure the
oldest stored turn is reabsorbed into the system prompt. Start a message
with "recall <topic>" to pull the most relevant stored turns back into
context.

Pass --session to resume a previous session; its stored turns are loaded
back into the recall cache.

Examples:
  mnemo chat
  mnemo chat --provider anthropic --model claude-sonnet-4-5
  mnemo chat --session 0b6e4c1e-... --token-limit 4000`

const chatShortDesc string = "Interactive chat with bounded-context memory"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := backend.LoadConfig(cmd, chatFlags...)
			if err != nil {
				return err
			}

			cmder.logger = backend.NewLogger(cmd)
			return cmder.run(cmd.Context(), cfg, backend.ConfigDir(cmd), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Resume the session with this id")
	cmd.Flags().StringVar(&cmder.systemPrompt, "system", defaultSystemPrompt, "System prompt for the conversation")

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddIntFlag(cmd, config.Flags, config.FlagTokenLimit, &cmder.tokenLimit)
	config.AddIntFlag(cmd, config.Flags, config.FlagReabsorbInterval, &cmder.reabsorbInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagMinTokens, &cmder.minTokens)
	config.AddBoolFlag(cmd, config.Flags, config.FlagGrading, &cmder.grading)
	config.AddBoolFlag(cmd, config.Flags, config.FlagHistory, &cmder.history)
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModelTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cfg *config.Config, configDir string, in io.Reader, out io.Writer) error {
	driver, err := backend.OpenStore(ctx, cfg, configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.NewPublisher(cfg, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	model, err := backend.NewCompleter(cfg, configDir, c.logger)
	if err != nil {
		return err
	}

	manager := memory.NewManager(driver, cfg.MemoryConfig(),
		memory.WithLogger(c.logger),
		memory.WithPublisher(publisher),
	)

	fmt.Fprintln(out)
	if c.sessionID != "" {
		if err := manager.SetChatID(ctx, c.sessionID); err != nil {
			return fmt.Errorf("resuming session: %w", err)
		}
		stored, err := manager.StoredTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.IDStyle.Render(utils.Head(c.sessionID, 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d stored tokens)", stored)),
		)
	} else {
		id, err := manager.CreateSession(ctx, "")
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		fmt.Fprintf(out, "  %s New chat session %s\n",
			cliui.DimStyle.Render("●"),
			cliui.IDStyle.Render(utils.Head(id, 8)+"..."),
		)
	}

	fmt.Fprintf(out, "  %s %s\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(cfg.Model.Provider+"/"+cfg.Model.Model),
	)
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Say 'recall <topic>' to pull relevant memories. /exit or Ctrl+D to quit."))

	conv := newConversation(manager, model, c.systemPrompt, c.logger)
	if err := c.loop(ctx, conv, in, out); err != nil {
		return err
	}

	summary, err := manager.Summary(ctx)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func (c *chatCommander) loop(ctx context.Context, conv *conversation, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	interactive := cliui.IsInteractive()

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" || strings.EqualFold(input, "exit") {
			break
		}

		r, err := conv.step(ctx, input)
		if err != nil {
			return err
		}

		if r.Recalled > 0 {
			fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark,
				cliui.DimStyle.Render(fmt.Sprintf("Recalled %d relevant memories", r.Recalled)))
		}
		if r.Reabsorbed {
			fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark,
				cliui.DimStyle.Render("Reabsorbed prior context"))
		}

		text := r.Text
		if interactive {
			if rendered, err := cliui.RenderMarkdown(text); err == nil {
				text = strings.TrimSpace(rendered)
			}
		}
		fmt.Fprintf(out, "%s%s\n\n", assistantPrompt, text)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func printSummary(out io.Writer, s memory.Summary) {
	m := s.Metrics
	fmt.Fprintf(out, "\n  %s\n", cliui.KeyStyle.Render("Memory summary"))
	rows := [][2]string{
		{"Session", s.SessionID},
		{"Stored tokens", fmt.Sprintf("%d / %d", s.StoredTokens, s.TokenLimit)},
		{"Expansion", fmt.Sprintf("%.2fx", s.Expansion)},
		{"Stores", fmt.Sprintf("%d", m.Stores)},
		{"Skipped", fmt.Sprintf("%d (short %d, low grade %d)", m.Skipped(), m.SkippedShort, m.SkippedLowGrade)},
		{"Reabsorbs", fmt.Sprintf("%d", m.Reabsorbs)},
		{"Recalls", fmt.Sprintf("%d", m.SemanticRecalls)},
		{"Bytes saved", fmt.Sprintf("%d", m.BytesSaved)},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.KeyStyle.Render(cliui.Fit(row[0]+":", 15)),
			cliui.ValueStyle.Render(row[1]),
		)
	}
	fmt.Fprintln(out)
}
