package nbfix

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// maxBackups bounds the <backup>.N names tried before giving up.
const maxBackups = 100

// BackupCleanup decides when the backup file is removed after a repair.
// Backups are never removed after a failure.
type BackupCleanup string

const (
	KeepAlways BackupCleanup = "keep-always"
	// RemoveOnSuccess removes the backup after any successful repair,
	// whether or not the notebook was rewritten.
	RemoveOnSuccess BackupCleanup = "remove-on-success"
	// RemoveOnNoOp removes the backup only when nothing was rewritten.
	RemoveOnNoOp BackupCleanup = "remove-on-no-op"
)

func ParseBackupCleanup(s string) (BackupCleanup, error) {
	switch c := BackupCleanup(s); c {
	case KeepAlways, RemoveOnSuccess, RemoveOnNoOp:
		return c, nil
	}
	return "", fmt.Errorf("unknown backup cleanup mode %q", s)
}

func (c BackupCleanup) shouldRemove(modified bool) bool {
	switch c {
	case RemoveOnSuccess:
		return true
	case RemoveOnNoOp:
		return !modified
	}
	return false
}

// takeBackup saves data next to path. An existing backup is never
// overwritten: if it already holds data it is reused, otherwise the next free
// name in <base>.1, <base>.2, ... is used. created reports whether the file
// was written by this call; only such backups may be cleaned up afterwards.
func takeBackup(fsys afero.Fs, base string, data []byte, perm os.FileMode) (path string, created bool, err error) {
	for i := 0; i < maxBackups; i++ {
		path = base
		if i > 0 {
			path = fmt.Sprintf("%s.%d", base, i)
		}
		existing, err := afero.ReadFile(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			if err := writeSynced(fsys, path, data, perm); err != nil {
				return path, false, err
			}
			return path, true, nil
		}
		if err != nil {
			return path, false, err
		}
		if bytes.Equal(existing, data) {
			return path, false, nil
		}
	}
	return base, false, fmt.Errorf("%d backups of this notebook already exist", maxBackups)
}

// resolveLink follows symlinks at path so a rewrite replaces the notebook
// they point at instead of the link itself. Filesystems without symlink
// support return path unchanged.
func resolveLink(fsys afero.Fs, path string) (string, error) {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := fsys.(afero.LinkReader)
	if !ok {
		return path, nil
	}
	for i := 0; i < 40; i++ {
		info, lstatCalled, err := lstater.LstatIfPossible(path)
		if err != nil {
			return "", err
		}
		if !lstatCalled || info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		dest, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		path = dest
	}
	return "", fmt.Errorf("%s: too many levels of symbolic links", path)
}

// writeSynced writes data to path and syncs it before closing, so the caller
// knows the bytes are on disk before it touches anything else.
func writeSynced(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// replaceFile swaps data in at path through a sibling temp file, so path holds
// either its old content or all of data.
func replaceFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	tmp := path + ".nbfix-tmp"
	if err := writeSynced(fs, tmp, data, perm); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	return nil
}
