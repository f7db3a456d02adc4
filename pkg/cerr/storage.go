package cerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazz187/taskgantt/pkg/storage"
)

// StorageOp names the storage call that failed.
type StorageOp string

const (
	StorageRead   StorageOp = "read"
	StorageWrite  StorageOp = "write"
	StorageCreate StorageOp = "create"
	StorageDelete StorageOp = "delete"
)

// WrapStorageError turns a storage failure on target into an *Error.
// Missing paths are NotFound except for writes, taken paths are
// AlreadyExists, and anything else is Internal.
func WrapStorageError(op StorageOp, target string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound) && op != StorageWrite:
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	case errors.Is(err, storage.ErrExists):
		return NewError(AlreadyExists, fmt.Sprintf("%s already exists", target), err)
	case errors.Is(err, context.Canceled):
		return NewError(Canceled, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(DeadlineExceeded, "storage timed out", err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, target, err))
}
