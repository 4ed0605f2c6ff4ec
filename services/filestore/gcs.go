package filestore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/muziki/core"
)

type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ core.FileStore = (*GCS)(nil)

// NewGCS stores files in bucket. Application default credentials are used when credentialsFile is empty.
func NewGCS(ctx context.Context, bucket, credentialsFile string, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("a GCS bucket is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS client")
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *GCS) Save(ctx context.Context, name string, r io.Reader) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	w := g.bucket.Object(name).NewWriter(ctx)
	if _, err = io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "uploading file")
	}
	return errors.Wrap(w.Close(), "uploading file")
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	rc, err := g.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, core.ErrFileNotFound
	}
	return rc, err
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err = g.bucket.Object(name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
