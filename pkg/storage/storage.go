package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested path does not exist in storage.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by Create when the path is already taken.
	ErrExists = errors.New("already exists")
)

// Storage is a flat file store addressed by slash separated paths relative
// to its root. List only returns direct children of the given prefix.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or replaces path. Readers never see a partial write.
	Write(ctx context.Context, path string, data []byte) error
	// Create is Write that fails with ErrExists instead of replacing, checked
	// atomically with the write.
	Create(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
