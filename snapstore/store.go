// Package snapstore stores neighbor-table snapshots as named blobs.
//
// Implementations exist for the local file system (LocalStore), Amazon S3
// (package s3) and MinIO or other S3-compatible servers (package minio).
package snapstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Store reads and writes whole snapshots.
type Store interface {
	// Put writes data under name, replacing any previous snapshot.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the snapshot stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
}
