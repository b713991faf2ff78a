package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps config discovery away from the developer's own files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "ensure-state", cfg.Repair.Policy)
	assert.Equal(t, 1, cfg.Repair.Indent)
	assert.True(t, cfg.Repair.PersistTextFixes)
	assert.False(t, cfg.Repair.CompleteTruncated)
	assert.Equal(t, ".backup", cfg.Backup.Suffix)
	assert.True(t, cfg.Backup.Required)
	assert.Equal(t, "remove-on-no-op", cfg.Backup.Cleanup)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repair:
  policy: strip-widgets
  indent: 2
backup:
  cleanup: keep-always
  required: false
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "strip-widgets", cfg.Repair.Policy)
	assert.Equal(t, 2, cfg.Repair.Indent)
	assert.Equal(t, "keep-always", cfg.Backup.Cleanup)
	assert.False(t, cfg.Backup.Required)
}

func TestLoadDiscoversConfigInWorkingDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nbfix.yaml"), []byte("backup:\n  suffix: .orig\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ".orig", cfg.Backup.Suffix)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NBFIX_REPAIR_POLICY", "strip-widgets")
	t.Setenv("NBFIX_BACKUP_REQUIRED", "false")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "strip-widgets", cfg.Repair.Policy)
	assert.False(t, cfg.Backup.Required)
}

func TestLoadFlagsWin(t *testing.T) {
	isolate(t)
	t.Setenv("NBFIX_REPAIR_POLICY", "strip-widgets")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("policy", "ensure-state", "")
	flags.Int("indent", 1, "")
	require.NoError(t, flags.Parse([]string{"--policy", "ensure-state", "--indent", "4"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "ensure-state", cfg.Repair.Policy)
	assert.Equal(t, 4, cfg.Repair.Indent)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"NBFIX_REPAIR_POLICY":  "both",
		"NBFIX_REPAIR_INDENT":  "0",
		"NBFIX_BACKUP_CLEANUP": "sometimes",
		"NBFIX_BACKUP_SUFFIX":  "/tmp/x",
		"NBFIX_LOGGER_LEVEL":   "loud",
		"NBFIX_SERVER_PORT":    "70000",
	}
	for env, val := range tests {
		t.Run(env, func(t *testing.T) {
			isolate(t)
			t.Setenv(env, val)
			_, err := Load("", nil)
			assert.Error(t, err)
		})
	}
}
