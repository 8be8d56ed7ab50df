package port

import (
	"context"
	"image"

	"folio/internal/geometry"
)

// RegionInput locates one region of a PDF page.
type RegionInput struct {
	PDFPath string
	Page    int
	BBox    geometry.BBox
}

// TextExtractor pulls the text inside a region. Used for Text, Title and
// List regions.
type TextExtractor interface {
	ExtractText(ctx context.Context, input RegionInput) (string, error)
}

// TableExtractor renders a Table region as text (Markdown or CSV).
type TableExtractor interface {
	ExtractTable(ctx context.Context, input RegionInput) (string, error)
}

// ImageCropper cuts a Figure region out of a page raster.
type ImageCropper interface {
	Crop(ctx context.Context, page image.Image, pageDPI int, bbox geometry.BBox) (image.Image, error)
}
