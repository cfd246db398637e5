// Package cmd wires the datum command tree. Commands resolve settings
// once in the root pre-run and thread an explicit printer and settings
// value into the pipeline packages.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/config"
	"github.com/simkjels/datumhub-cli/pkg/console"
)

const version = "0.4.0"

var (
	flagRegistry string
	flagOutput   string
	flagQuiet    bool
	flagVerbose  bool

	// Settings holds the resolved configuration, available to all
	// subcommands after PersistentPreRunE completes.
	Settings *config.Settings

	// Cfg is the loaded global config file (auth, defaults).
	Cfg *config.Config

	printer *console.Printer
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "datum",
		Short: "Open datasets, open source",
		Long: `datum publishes and consumes open datasets with a familiar, composable CLI.

Datasets are identified as publisher/namespace/dataset:version.
Omit :version where a command resolves the latest published version.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			Cfg, err = config.Load()
			if err != nil {
				return err
			}
			Settings, err = config.LoadSettings(flagRegistry, flagOutput)
			if err != nil {
				return err
			}
			format, err := console.ParseFormat(Settings.Output)
			if err != nil {
				return err
			}
			printer = console.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format, flagQuiet, flagVerbose)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagRegistry, "registry", "", "registry URL or local path (overrides config)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: table | json | plain")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "emit additional diagnostic information")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newUnpublishCmd())
	root.AddCommand(newPullCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newRegisterCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// exitError carries a specific process exit code out of a command.
// Commands that have already rendered their own error output return one
// with an empty message.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitWithCode(code int) error { return &exitError{code: code} }

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}
