// Package filestore keeps uploaded files on the local disk or in a Google Cloud Storage bucket.
package filestore

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
)

const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// New returns the FileStore of the configured backend.
func New(ctx context.Context, conf core.StorageConfig) (core.FileStore, error) {
	switch strings.ToLower(conf.Backend) {
	case BackendLocal, "":
		return NewLocal(conf.LocalDir)
	case BackendGCS:
		return NewGCS(ctx, conf.GCSBucket, conf.GCSCredentialsFile)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Backend)
	}
}

// cleanName rejects names escaping the store's root.
func cleanName(name string) (string, error) {
	name = strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if name == "" {
		return "", errors.New("empty file name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", errors.Errorf("invalid file name %q", name)
		}
	}
	return name, nil
}
