// Package nbfix repairs the metadata.widgets block of Jupyter notebooks that
// keeps GitHub from rendering them.
package nbfix

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/tmc/nbfix/internal/config"
	"github.com/tmc/nbfix/internal/logger"
	"github.com/tmc/nbfix/notebooks"
)

// Config configures a Repairer.
type Config struct {
	Options        notebooks.Options
	BackupSuffix   string
	BackupRequired bool
	Cleanup        BackupCleanup
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Options:        notebooks.DefaultOptions(),
		BackupSuffix:   ".backup",
		BackupRequired: true,
		Cleanup:        RemoveOnNoOp,
	}
}

// ConfigFrom translates loaded application configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	policy, err := notebooks.ParsePolicy(cfg.Repair.Policy)
	if err != nil {
		return Config{}, err
	}
	cleanup, err := ParseBackupCleanup(cfg.Backup.Cleanup)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Options: notebooks.Options{
			Policy:            policy,
			Indent:            cfg.Repair.Indent,
			PersistTextFixes:  cfg.Repair.PersistTextFixes,
			CompleteTruncated: cfg.Repair.CompleteTruncated,
		},
		BackupSuffix:   cfg.Backup.Suffix,
		BackupRequired: cfg.Backup.Required,
		Cleanup:        cleanup,
	}, nil
}

// Repairer fixes notebooks on disk. It keeps no state between calls.
type Repairer struct {
	fs  afero.Fs
	cfg Config
	log *logger.Logger
}

func NewRepairer(fsys afero.Fs, cfg Config, log *logger.Logger) *Repairer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BackupSuffix == "" {
		cfg.BackupSuffix = DefaultConfig().BackupSuffix
	}
	return &Repairer{fs: fsys, cfg: cfg, log: log.WithComponent("repairer")}
}

// RepairResult reports what Repair did.
type RepairResult struct {
	Path string
	Rule notebooks.Rule
	// TextRepaired is set when the notebook only parsed after textual repair.
	TextRepaired bool
	// Modified is set when the notebook on disk was rewritten.
	Modified bool
	// BackupPath is empty when no backup could be taken. It may name a
	// backup left by an earlier run that already held the same bytes.
	BackupPath string
	// BackupCreated is set when this run wrote BackupPath. Backups this run
	// did not create are never removed.
	BackupCreated bool
	BackupRemoved bool
}

// Repair applies the configured widget policy to the notebook at path.
//
// A backup is written before anything else. If rewriting the notebook fails,
// the original is restored from that backup; a *RestoreError means even that
// failed. Unchanged notebooks are never rewritten. A symlinked notebook is
// rewritten at the link's target; the link stays in place.
func (r *Repairer) Repair(path string) (*RepairResult, error) {
	log := r.log.WithFields("path", path)

	info, err := r.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	perm := info.Mode().Perm()

	target, err := resolveLink(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if target != path {
		log.Debugw("following symlink", "target", target)
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Debugw("read notebook", "bytes", len(data))

	res := &RepairResult{Path: path}
	backupPath, created, err := takeBackup(r.fs, path+r.cfg.BackupSuffix, data, perm)
	if err != nil {
		berr := &BackupError{Path: backupPath, Err: err}
		if r.cfg.BackupRequired {
			return nil, berr
		}
		log.WithError(berr).Warn("continuing without a backup")
	} else {
		res.BackupPath = backupPath
		res.BackupCreated = created
		log.Debugw("backup ready", "backup", backupPath, "created", created)
	}

	out, err := notebooks.RepairBytes(data, r.cfg.Options)
	if err != nil {
		// Nothing has been written to path, so there is nothing to restore.
		return nil, fmt.Errorf("repair %s: %w", path, err)
	}
	res.Rule = out.Rule
	res.TextRepaired = out.TextRepaired

	if out.Modified {
		if err := replaceFile(r.fs, target, out.Output, perm); err != nil {
			return nil, r.restore(log, target, res.BackupPath, perm, err)
		}
		res.Modified = true
		log.Infow("rewrote notebook", "rule", out.Rule, "text_repaired", out.TextRepaired)
	} else {
		log.Infow("notebook left unchanged", "rule", out.Rule)
	}

	if res.BackupCreated && r.cfg.Cleanup.shouldRemove(res.Modified) {
		if err := r.fs.Remove(res.BackupPath); err != nil {
			log.WithError(err).Warnw("could not remove backup", "backup", res.BackupPath)
		} else {
			res.BackupRemoved = true
		}
	}
	return res, nil
}

func (r *Repairer) restore(log *logger.Logger, path, backupPath string, perm fs.FileMode, cause error) error {
	if backupPath == "" {
		return fmt.Errorf("rewrite %s (no backup to restore from): %w", path, cause)
	}
	log.WithError(cause).Warnw("rewrite failed, restoring from backup", "backup", backupPath)

	orig, err := afero.ReadFile(r.fs, backupPath)
	if err == nil {
		// Write in place: the temp+rename route is what just failed.
		err = writeSynced(r.fs, path, orig, perm)
	}
	if err != nil {
		rerr := &RestoreError{Path: path, Backup: backupPath, Cause: cause, Err: err}
		log.WithError(rerr).Error("restore from backup failed")
		return rerr
	}
	return fmt.Errorf("rewrite %s (restored from %s): %w", path, backupPath, cause)
}
