// Command repairnotebook reads a notebook on stdin and writes the repaired
// notebook to stdout. It exits 1 if the notebook could not be read.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tmc/nbfix/notebooks"
)

var (
	flagPolicy   = flag.String("policy", string(notebooks.PolicyEnsureState), "widget policy (ensure-state, strip-widgets)")
	flagIndent   = flag.Int("indent", 1, "spaces per indentation level")
	flagTruncate = flag.Bool("complete-truncated", false, "try to close notebooks that end early")
)

func main() {
	flag.Parse()
	ret, err := run(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	os.Exit(ret)
}

func run(stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	policy, err := notebooks.ParsePolicy(*flagPolicy)
	if err != nil {
		return 2, err
	}
	if *flagIndent < 0 {
		return 2, fmt.Errorf("%w: %d", notebooks.ErrInvalidIndent, *flagIndent)
	}
	in, err := io.ReadAll(stdin)
	if err != nil {
		return 1, err
	}
	opts := notebooks.DefaultOptions()
	opts.Policy = policy
	opts.Indent = *flagIndent
	opts.CompleteTruncated = *flagTruncate

	res, err := notebooks.RepairBytes(in, opts)
	if err != nil {
		return 1, err
	}
	out := in
	if res.Modified {
		out = res.Output
	}
	if _, err := stdout.Write(out); err != nil {
		return 1, err
	}
	fmt.Fprintf(stderr, "rule: %s\n", res.Rule)
	return 0, nil
}
