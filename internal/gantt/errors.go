package gantt

import (
	"fmt"

	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Mapping input problems are InvalidArgument errors, missing view
// configuration is FailedPrecondition. Both carry the offending field as a
// detail.

func newValidationError(field, msg string, err error) error {
	return cerr.NewError(cerr.InvalidArgument, msg, err).AddDetail(field, msg)
}

func newConfigurationError(msg string, err error) error {
	return cerr.NewError(cerr.FailedPrecondition, msg, err).AddDetail("date_start", msg)
}

// IsValidationError reports whether err is a malformed or missing field on
// a mapping input. Such errors are never retried.
func IsValidationError(err error) bool {
	return cerr.IsCode(err, cerr.InvalidArgument)
}

// IsConfigurationError reports whether err came from an unusable field
// mapping.
func IsConfigurationError(err error) bool {
	return cerr.IsCode(err, cerr.FailedPrecondition)
}

// PersistError is a failed write of one queued edit. It never aborts the
// other edits of the same flush.
type PersistError struct {
	RecordID string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist record %s: %v", e.RecordID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
