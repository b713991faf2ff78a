package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmc/nbfix"
)

const brokenNB = `{"metadata": {"widgets": {"abc123": {}}}}`

// setup isolates config discovery and captures command output.
func setup(t *testing.T) (dir string, out *bytes.Buffer) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out = &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	return dir, out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExecuteRepairsNotebook(t *testing.T) {
	dir, out := setup(t)
	path := filepath.Join(dir, "analysis.ipynb")
	writeFile(t, path, brokenNB)

	require.Equal(t, exitOK, execute([]string{path}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"state": {}`)
	assert.Contains(t, out.String(), "Repaired")
	assert.Contains(t, out.String(), "state-key-added")

	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, brokenNB, string(backup))
}

func TestExecuteMissingArgument(t *testing.T) {
	setup(t)
	assert.Equal(t, exitFailure, execute([]string{}))
}

func TestExecuteNotFound(t *testing.T) {
	dir, out := setup(t)
	assert.Equal(t, exitFailure, execute([]string{filepath.Join(dir, "missing.ipynb")}))
	assert.Contains(t, out.String(), "not found")
}

func TestExecuteMalformed(t *testing.T) {
	dir, _ := setup(t)
	path := filepath.Join(dir, "broken.ipynb")
	writeFile(t, path, `{"metadata": }`)

	assert.Equal(t, exitFailure, execute([]string{path}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"metadata": }`, string(got))
}

func TestExecuteDeclinedPrompt(t *testing.T) {
	dir, out := setup(t)
	path := filepath.Join(dir, "notebook.json")
	writeFile(t, path, brokenNB)

	asked := false
	confirm = func(*cobra.Command, string) (bool, error) {
		asked = true
		return false, nil
	}
	t.Cleanup(func() { confirm = confirmPrompt })

	assert.Equal(t, exitOK, execute([]string{path}))
	assert.True(t, asked)
	assert.Contains(t, out.String(), "Aborted")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, brokenNB, string(got))
	_, err = os.Stat(path + ".backup")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExecuteUpperCaseExtensionPrompts(t *testing.T) {
	dir, _ := setup(t)
	path := filepath.Join(dir, "ANALYSIS.IPYNB")
	writeFile(t, path, brokenNB)

	asked := false
	confirm = func(*cobra.Command, string) (bool, error) {
		asked = true
		return false, nil
	}
	t.Cleanup(func() { confirm = confirmPrompt })

	assert.Equal(t, exitOK, execute([]string{path}))
	assert.True(t, asked, ".IPYNB should not be treated as a notebook extension")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, brokenNB, string(got))
}

func TestExecuteAcceptedPrompt(t *testing.T) {
	dir, _ := setup(t)
	path := filepath.Join(dir, "notebook.json")
	writeFile(t, path, brokenNB)

	confirm = func(*cobra.Command, string) (bool, error) { return true, nil }
	t.Cleanup(func() { confirm = confirmPrompt })

	assert.Equal(t, exitOK, execute([]string{path}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"state": {}`)
}

func TestConfirmLine(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{" y \n", true},
		{"yes\n", false},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirmLine(strings.NewReader(tt.in), &out)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q", tt.in)
		assert.Contains(t, out.String(), "(y/n)")
	}
}

func TestExitCode(t *testing.T) {
	restore := &nbfix.RestoreError{Path: "a", Backup: "a.backup", Cause: errors.New("x"), Err: errors.New("y")}
	assert.Equal(t, exitRestoreFailed, exitCode(restore))
	assert.Equal(t, exitRestoreFailed, exitCode(fmt.Errorf("wrapped: %w", restore)))
	assert.Equal(t, exitFailure, exitCode(nbfix.ErrNotFound))
	assert.Equal(t, exitFailure, exitCode(&nbfix.BackupError{Path: "a", Err: errors.New("x")}))
}
