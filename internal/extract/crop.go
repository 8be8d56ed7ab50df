package extract

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// FigureCropper cuts regions out of a page raster. It implements
// port.ImageCropper.
type FigureCropper struct{}

// Crop scales bbox to the raster's DPI and copies that region, clipped to
// the image.
func (FigureCropper) Crop(_ context.Context, page image.Image, pageDPI int, bbox geometry.BBox) (image.Image, error) {
	px := bbox
	if pageDPI > 0 {
		px = geometry.Scale(bbox, bbox.DPI, pageDPI)
	}
	bounds := page.Bounds()
	r := image.Rect(
		int(math.Floor(px.X1)), int(math.Floor(px.Y1)),
		int(math.Ceil(px.X2)), int(math.Ceil(px.Y2)),
	).Add(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return nil, fmt.Errorf("extract.Crop: %w: region %s is outside the page image", domain.ErrInvalidInput, px)
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), page, r.Min, draw.Src)
	return dst, nil
}
