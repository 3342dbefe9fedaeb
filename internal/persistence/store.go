package persistence

import (
	"context"
	"errors"
)

// ErrNoDocument is returned by a DocumentStore that has never been written.
var ErrNoDocument = errors.New("no document stored")

// DocumentStore holds the single durable document for an installation.
// Write must replace the previous document atomically: a failed or
// interrupted write leaves the previous document readable.
type DocumentStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}
