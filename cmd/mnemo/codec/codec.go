// Package codeccmder provides the codec command for checking how a text
// encodes into a stored payload.
package codeccmder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/codec"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/tokens"
)

const codecLongDesc string = `Inspect the stored-turn codec.

  mnemo codec check [text]     Encode text, verify it round-trips, and
                               report the chosen compression and ratio
  mnemo codec decode <payload> Decode a stored payload back to text`

const codecShortDesc string = "Inspect the stored-turn codec"

func NewCodecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codec",
		Short: codecShortDesc,
		Long:  codecLongDesc,
	}

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newDecodeCmd())

	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [text]",
		Short: "Encode text and verify the round trip",
		Long:  "Encode text and verify the round trip. Reads stdin when no text is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}
			return runCheck(cmd.OutOrStdout(), text)
		},
	}
}

func runCheck(out io.Writer, text string) error {
	payload := codec.Encode(text)

	tag, err := codec.Inspect(payload)
	if err != nil {
		return err
	}

	decoded, err := codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("decoding fresh payload: %w", err)
	}
	if decoded != text {
		return errors.New("round trip mismatch: decoded text differs from input")
	}

	row := func(key, value string) {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.KeyStyle.Render(cliui.Fit(key+":", 14)),
			cliui.ValueStyle.Render(value),
		)
	}

	fmt.Fprintln(out)
	row("Compression", tag.String())
	row("Tokens", fmt.Sprintf("%d", tokens.Count(text)))
	row("Text bytes", fmt.Sprintf("%d", len(text)))
	row("Stored bytes", fmt.Sprintf("%d", len(payload)))
	row("Ratio", fmt.Sprintf("%.2fx", codec.Ratio(text, payload)))
	row("Blake3", memory.ContentHash(text))
	fmt.Fprintf(out, "  %s Round trip verified\n\n", cliui.SuccessMark)
	return nil
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload>",
		Short: "Decode a stored payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := codec.Decode(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
