package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmc/nbfix"
	"github.com/tmc/nbfix/internal/config"
	"github.com/tmc/nbfix/internal/logger"
	"github.com/tmc/nbfix/internal/ui"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	// exitRestoreFailed means the notebook may be damaged on disk.
	exitRestoreFailed = 2
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nbfix [flags] <notebook.ipynb>",
	Short: "Repair notebook widget metadata so GitHub can render it",
	Long: `Repair the metadata.widgets block of a Jupyter notebook.

GitHub refuses to render notebooks whose metadata.widgets lacks a "state"
key. nbfix adds the missing key (policy ensure-state, the default) or drops
metadata.widgets altogether (policy strip-widgets).

Before anything is written a copy of the notebook is saved next to it as
<notebook><suffix> (".backup" by default). If rewriting fails the notebook is
restored from that copy.

Example usage:
  nbfix analysis.ipynb
  nbfix --policy strip-widgets analysis.ipynb
  nbfix --backup-cleanup keep-always analysis.ipynb`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRepair,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./nbfix.yaml or ~/.config/nbfix/nbfix.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.Flags().String("policy", "ensure-state", "widget policy (ensure-state, strip-widgets)")
	rootCmd.Flags().Int("indent", 1, "spaces per indentation level in the rewritten notebook")
	rootCmd.Flags().String("backup-suffix", ".backup", "suffix appended to the notebook path for the backup copy")
	rootCmd.Flags().String("backup-cleanup", "remove-on-no-op", "when to delete the backup (keep-always, remove-on-success, remove-on-no-op)")
	rootCmd.Flags().BoolP("yes", "y", false, "do not ask before repairing files without a .ipynb extension")
}

// loadApp loads configuration for cmd and builds its logger.
func loadApp(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	reportError(rootCmd, err)
	return exitCode(err)
}

func exitCode(err error) int {
	var rerr *nbfix.RestoreError
	if errors.As(err, &rerr) {
		return exitRestoreFailed
	}
	return exitFailure
}

func reportError(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	var rerr *nbfix.RestoreError
	switch {
	case errors.As(err, &rerr):
		fmt.Fprintf(w, "%s %v\n", ui.RenderAlarm("RESTORE FAILED"), rerr)
		fmt.Fprintf(w, "   %s may be damaged. Recover it manually from %s if that file still exists.\n", rerr.Path, rerr.Backup)
	case errors.Is(err, nbfix.ErrNotFound):
		fmt.Fprintf(w, "%s %v\n", ui.RenderFail("✗"), err)
	case errors.Is(err, nbfix.ErrMalformedDocument):
		fmt.Fprintf(w, "%s %v\n", ui.RenderFail("✗"), err)
		fmt.Fprintf(w, "   The notebook is not valid JSON and could not be repaired automatically.\n")
	default:
		fmt.Fprintf(w, "%s %v\n", ui.RenderFail("Error:"), err)
		fmt.Fprintf(w, "Run '%s --help' for usage.\n", cmd.CommandPath())
	}
}
