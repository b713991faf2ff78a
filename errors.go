package nbfix

import (
	"errors"
	"fmt"

	"github.com/tmc/nbfix/notebooks"
)

var (
	// ErrNotFound is returned when the notebook path does not exist.
	ErrNotFound = errors.New("notebook not found")

	// ErrMalformedDocument is returned when neither the structured parse nor
	// the textual fallback could read the notebook.
	ErrMalformedDocument = notebooks.ErrMalformedDocument
)

// BackupError reports that the backup copy could not be written.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("create backup %s: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// RestoreError reports that a failed rewrite could not be undone. The
// notebook at Path may be damaged; Backup, if it still exists, holds the
// original bytes.
type RestoreError struct {
	Path   string
	Backup string
	// Cause is the failure that triggered the restore.
	Cause error
	// Err is the failure of the restore itself.
	Err error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore %s from %s failed: %v (after: %v)", e.Path, e.Backup, e.Err, e.Cause)
}

func (e *RestoreError) Unwrap() []error { return []error{e.Err, e.Cause} }
