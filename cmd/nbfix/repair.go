package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tmc/nbfix"
	"github.com/tmc/nbfix/internal/ui"
)

// confirm asks whether to go on with a file that does not look like a
// notebook. Tests replace it.
var confirm = confirmPrompt

func runRepair(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", nbfix.ErrNotFound, path)
		}
		return err
	}

	assumeYes, _ := cmd.Flags().GetBool("yes")
	// Case-sensitive, as Jupyter only ever writes lower-case .ipynb.
	if !strings.HasSuffix(path, ".ipynb") && !assumeYes {
		fmt.Fprintf(out, "%s %s does not have a .ipynb extension\n", ui.RenderWarn("⚠"), path)
		ok, err := confirm(cmd, path)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted, notebook left unchanged.")
			return nil
		}
	}

	cfg, log, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	rcfg, err := nbfix.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	res, err := nbfix.NewRepairer(afero.NewOsFs(), rcfg, log).Repair(path)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

func printResult(w io.Writer, res *nbfix.RepairResult) {
	if res.Modified {
		fmt.Fprintf(w, "%s Repaired %s (%s)\n", ui.RenderPass("✓"), res.Path, ui.RenderAccent(string(res.Rule)))
		if res.TextRepaired {
			fmt.Fprintf(w, "   Also removed trailing commas that made the JSON invalid\n")
		}
	} else {
		fmt.Fprintf(w, "%s No changes needed for %s\n", ui.RenderPass("✓"), res.Path)
	}
	switch {
	case res.BackupPath == "":
		fmt.Fprintf(w, "   %s no backup was taken\n", ui.RenderWarn("⚠"))
	case !res.BackupRemoved:
		fmt.Fprintf(w, "   Backup: %s\n", ui.RenderMuted(res.BackupPath))
	}
}

func confirmPrompt(cmd *cobra.Command, path string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return confirmLine(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	var ok bool
	err := huh.NewConfirm().
		Title("Continue anyway?").
		Description(path).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// confirmLine reads a y/n answer from piped input, where huh cannot draw.
func confirmLine(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Continue anyway? (y/n): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}
