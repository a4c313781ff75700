// Package initcmder provides the init command for initializing a local .mnemo
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/config"
)

const (
	dirName = ".mnemo"
)

const initLongDesc string = `Initialize a new .mnemo/ directory in the current working directory.

Creates a local .mnemo/ directory that takes precedence over the default
~/.mnemo/ directory for the session store, configuration and credentials.
This is useful for keeping separate conversation memory per project.

With --preset, also writes a config.toml whose model section targets the
named provider. An existing config.toml is never overwritten.

Examples:
  mnemo init
  mnemo init --preset anthropic`

const initShortDesc string = "Initialize a local .mnemo/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), cwd, preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		"Write a config.toml for a provider ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func runInit(out io.Writer, cwd, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .mnemo directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .mnemo directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil {
		fmt.Fprintf(out, "Keeping existing config: %s\n", cfger.GetTarget())
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s preset config: %s\n", preset, cfger.GetTarget())
	return nil
}
