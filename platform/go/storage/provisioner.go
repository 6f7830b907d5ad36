package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
)

// BlobWriter persists a media blob at a resolved location.
type BlobWriter interface {
	Put(ctx context.Context, loc ObjectLocation, contentType string, body io.Reader) error
}

// GCSProvisioner writes media objects to Google Cloud Storage.
type GCSProvisioner struct {
	client *gcs.Client
}

func NewGCSProvisioner(client *gcs.Client) *GCSProvisioner {
	if client == nil {
		panic("storage client is required")
	}
	return &GCSProvisioner{client: client}
}

func (p *GCSProvisioner) Put(ctx context.Context, loc ObjectLocation, contentType string, body io.Reader) error {
	w := p.client.Bucket(loc.Bucket).Object(loc.FullPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", loc.FullPath, err)
	}
	return w.Close()
}

// CheckBucket verifies the bucket exists and credentials can read its metadata.
// Called once at startup so misconfiguration surfaces before the first upload.
func (p *GCSProvisioner) CheckBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket required")
	}
	if _, err := p.client.Bucket(bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", bucket, err)
	}
	return nil
}

// LocalProvisioner writes media objects under a root directory. Used in
// development and in tests where no GCS credentials exist; the bucket becomes
// the first path segment.
type LocalProvisioner struct {
	Root string
}

func NewLocalProvisioner(root string) *LocalProvisioner {
	if root == "" {
		panic("media root directory is required")
	}
	return &LocalProvisioner{Root: root}
}

func (p *LocalProvisioner) Put(_ context.Context, loc ObjectLocation, _ string, body io.Reader) error {
	path := filepath.Join(p.Root, loc.Bucket, filepath.FromSlash(loc.FullPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	return nil
}

var (
	_ BlobWriter = (*GCSProvisioner)(nil)
	_ BlobWriter = (*LocalProvisioner)(nil)
)
