package port

import (
	"context"
	"io"
)

// UploadInput encapsulates the parameters needed to upload an object.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// UploadOutput contains the result of a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage abstracts cloud object storage operations.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Delete(ctx context.Context, bucket, key string) error
	GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}

// CatalogSink receives the files of one catalog. Paths are relative to the
// catalog root and use forward slashes.
type CatalogSink interface {
	WriteFile(ctx context.Context, path string, data []byte, contentType string) error
	// URI identifies the catalog root, e.g. a directory or s3://bucket/prefix.
	URI() string
	// Discard removes everything written so far. Used when a catalog write
	// fails half way.
	Discard(ctx context.Context) error
}

// CatalogSinkFactory opens a sink for a new catalog.
type CatalogSinkFactory interface {
	Open(ctx context.Context, name string) (CatalogSink, error)
}
