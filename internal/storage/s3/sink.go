package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"folio/internal/port"
)

// Sink writes catalog files as objects under bucket/prefix.
type Sink struct {
	storage port.ObjectStorage
	bucket  string
	prefix  string

	mu      sync.Mutex
	written []string
}

// URI returns s3://bucket/prefix.
func (s *Sink) URI() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// Key returns the object key of a catalog file.
func (s *Sink) Key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Sink) WriteFile(ctx context.Context, name string, data []byte, contentType string) error {
	key := s.Key(name)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, key)
	s.mu.Unlock()
	return nil
}

// Discard deletes every object this sink uploaded.
func (s *Sink) Discard(ctx context.Context) error {
	s.mu.Lock()
	keys := s.written
	s.written = nil
	s.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := s.storage.Delete(ctx, s.bucket, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFactory opens catalogs under a common prefix in one bucket.
type SinkFactory struct {
	storage port.ObjectStorage
	bucket  string
	prefix  string
}

// NewSinkFactory creates a SinkFactory. prefix may be empty.
func NewSinkFactory(storage port.ObjectStorage, bucket, prefix string) *SinkFactory {
	return &SinkFactory{storage: storage, bucket: bucket, prefix: prefix}
}

// Open returns a sink rooted at prefix/name.
func (f *SinkFactory) Open(_ context.Context, name string) (port.CatalogSink, error) {
	if name == "" {
		return nil, fmt.Errorf("s3.Open: empty catalog name")
	}
	return &Sink{storage: f.storage, bucket: f.bucket, prefix: path.Join(f.prefix, name)}, nil
}

// PresignCatalog returns a time-limited download link for a catalog file,
// given the catalog URI recorded at write time.
func (f *SinkFactory) PresignCatalog(ctx context.Context, uri, name string, expirySeconds int64) (string, error) {
	root := "s3://" + f.bucket + "/"
	if len(uri) <= len(root) || uri[:len(root)] != root {
		return "", fmt.Errorf("s3.PresignCatalog: %q is not in bucket %s", uri, f.bucket)
	}
	return f.storage.GetPresignedURL(ctx, f.bucket, path.Join(uri[len(root):], name), expirySeconds)
}
