// Package statscmder provides the stats command: storage and compression
// totals across every stored session.
package statscmder

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/backend"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/codec"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

type statsCommander struct {
	storageDriver string
	sqlitePath    string
	postgresDSN   string
}

const statsLongDesc string = `Show storage and compression totals for the session store.

Every stored turn is decoded to measure how much the codec saved, so
undecodable payloads are counted separately.

Examples:
  mnemo stats
  mnemo stats --sqlite ./mnemo.db`

const statsShortDesc string = "Show session store statistics"

// report aggregates the store contents.
type report struct {
	Sessions     int
	Turns        int
	Tokens       int
	PayloadBytes int
	TextBytes    int
	Undecodable  int
	Tags         map[codec.Tag]int
}

// Ratio is plaintext bytes per payload byte over every decodable turn.
func (r report) Ratio() float64 {
	if r.PayloadBytes == 0 {
		return 1
	}
	return float64(r.TextBytes) / float64(r.PayloadBytes)
}

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := backend.LoadConfig(cmd, config.StorageFlags...)
			if err != nil {
				return err
			}

			logger := backend.NewLogger(cmd)
			driver, err := backend.OpenStore(cmd.Context(), cfg, backend.ConfigDir(cmd), logger)
			if err != nil {
				return err
			}
			defer driver.Close()

			var r report
			err = cliui.Step(cmd.ErrOrStderr(), "Reading session store", func() error {
				r, err = collect(cmd.Context(), driver)
				return err
			})
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), r)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)

	return cmd
}

func collect(ctx context.Context, driver storage.Driver) (report, error) {
	r := report{Tags: make(map[codec.Tag]int)}

	sessions, err := driver.ListSessions(ctx)
	if err != nil {
		return r, fmt.Errorf("listing sessions: %w", err)
	}
	r.Sessions = len(sessions)

	for _, s := range sessions {
		turns, err := driver.ListTurns(ctx, s.ID)
		if err != nil {
			return r, fmt.Errorf("listing turns for session %s: %w", s.ID, err)
		}

		for _, t := range turns {
			r.Turns++
			r.Tokens += t.TokenCount

			text, err := codec.Decode(t.Payload)
			if err != nil {
				r.Undecodable++
				continue
			}

			tag, _ := codec.Inspect(t.Payload)
			r.Tags[tag]++
			r.PayloadBytes += len(t.Payload)
			r.TextBytes += len(text)
		}
	}

	return r, nil
}

func printReport(out io.Writer, r report) {
	row := func(key, value string) {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.KeyStyle.Render(cliui.Fit(key+":", 14)),
			cliui.ValueStyle.Render(value),
		)
	}

	fmt.Fprintln(out)
	row("Sessions", fmt.Sprintf("%d", r.Sessions))
	row("Turns", fmt.Sprintf("%d", r.Turns))
	row("Tokens", fmt.Sprintf("%d", r.Tokens))
	row("Text bytes", fmt.Sprintf("%d", r.TextBytes))
	row("Stored bytes", fmt.Sprintf("%d", r.PayloadBytes))
	row("Ratio", fmt.Sprintf("%.2fx", r.Ratio()))

	tags := make([]codec.Tag, 0, len(r.Tags))
	for tag := range r.Tags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, tag := range tags {
		row("  "+tag.String(), fmt.Sprintf("%d turns", r.Tags[tag]))
	}

	if r.Undecodable > 0 {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.WarnStyle.Render("!"),
			cliui.WarnStyle.Render(fmt.Sprintf("%d turns could not be decoded", r.Undecodable)),
		)
	}
	fmt.Fprintln(out)
}
