package core

import (
	"context"
	"io"
)

var ErrFileNotFound = NewNotFoundError("file")

// FileStore stores uploaded files. Names are slash separated paths, e.g. "assignments/<id>.wav".
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	// Open returns ErrFileNotFound when there is no file with that name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
