// Package local writes catalogs to the filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"folio/internal/port"
)

// Sink writes catalog files below a root directory.
type Sink struct {
	root string
}

// NewSink creates the root directory and returns a Sink over it.
func NewSink(root string) (*Sink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local.NewSink: %w", err)
	}
	return &Sink{root: root}, nil
}

func (s *Sink) URI() string { return s.root }

func (s *Sink) WriteFile(_ context.Context, name string, data []byte, _ string) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	// Write to a temp file and rename so readers never see half a file.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Discard removes the catalog directory.
func (s *Sink) Discard(context.Context) error {
	return os.RemoveAll(s.root)
}

func (s *Sink) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("local: path %q escapes the catalog root", name)
	}
	return filepath.Join(s.root, clean), nil
}

// SinkFactory opens catalogs as sub-directories of a base directory.
type SinkFactory struct {
	base string
}

func NewSinkFactory(base string) *SinkFactory {
	return &SinkFactory{base: base}
}

// Open creates base/name. An existing catalog of the same name is replaced.
func (f *SinkFactory) Open(_ context.Context, name string) (port.CatalogSink, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("local.Open: invalid catalog name %q", name)
	}
	dir := filepath.Join(f.base, name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("local.Open: %w", err)
	}
	sink, err := NewSink(dir)
	if err != nil {
		return nil, err
	}
	return sink, nil
}
