// Package detections loads detector output files.
package detections

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"folio/internal/domain"
)

// Format is the encoding of a detections file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension; unknown extensions are
// read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a detections file. Pages without a detection DPI inherit the
// document's, and a page index missing from every page is filled from the
// file order.
func Load(path string) (*domain.DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detections.Load: %w", err)
	}
	doc, err := Decode(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("detections.Load %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses data in the given format.
func Decode(data []byte, format Format) (*domain.DocumentInput, error) {
	var doc domain.DocumentInput
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", domain.ErrInvalidInput, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: json: %v", domain.ErrInvalidInput, err)
		}
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", domain.ErrInvalidInput)
	}

	indexed := false
	for _, p := range doc.Pages {
		if p.Index != 0 {
			indexed = true
			break
		}
	}
	for i := range doc.Pages {
		p := &doc.Pages[i]
		if !indexed {
			p.Index = i
		}
		if p.DetectionDPI == 0 {
			p.DetectionDPI = doc.DetectionDPI
		}
		if p.Width <= 0 || p.Height <= 0 {
			return nil, domain.NewPageError(p.Index, fmt.Errorf("%w: page size %gx%g", domain.ErrInvalidInput, p.Width, p.Height))
		}
	}
	return &doc, nil
}

// ResolveImages points every page without an image at
// dir/page_%04d.png when that file exists, with dpi as its resolution.
func ResolveImages(doc *domain.DocumentInput, dir string, dpi int) {
	if dir == "" {
		return
	}
	for i := range doc.Pages {
		p := &doc.Pages[i]
		if p.ImagePath != "" {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("page_%04d.png", p.Index))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p.ImagePath = path
		if p.ImageDPI == 0 {
			p.ImageDPI = dpi
		}
	}
}
