package layout

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// PageGeometry is the page size in detection pixels.
type PageGeometry struct {
	Width  float64
	Height float64
	DPI    int
}

// GeometryOf returns the pixel geometry of a page input.
func GeometryOf(in domain.PageInput) PageGeometry {
	return PageGeometry{
		Width:  geometry.PointsToPixels(in.Width, in.DetectionDPI),
		Height: geometry.PointsToPixels(in.Height, in.DetectionDPI),
		DPI:    in.DetectionDPI,
	}
}

// BuildBoxes validates detector records and converts them into boxes at the
// page's detection DPI. Records produced at another DPI are scaled; a record
// DPI of 0 means the page DPI.
func BuildBoxes(in domain.PageInput, maxBoxes int) ([]domain.Box, error) {
	if in.DetectionDPI <= 0 {
		return nil, fmt.Errorf("%w: detection dpi must be positive, got %d", domain.ErrInvalidInput, in.DetectionDPI)
	}
	if in.Width <= 0 || in.Height <= 0 || math.IsNaN(in.Width) || math.IsNaN(in.Height) {
		return nil, fmt.Errorf("%w: page size %vx%v is not positive", domain.ErrInvalidInput, in.Width, in.Height)
	}
	if maxBoxes > 0 && len(in.Detections) > maxBoxes {
		return nil, fmt.Errorf("%w: %d detections, cap is %d", domain.ErrTooManyBoxes, len(in.Detections), maxBoxes)
	}

	boxes := make([]domain.Box, 0, len(in.Detections))
	for i, d := range in.Detections {
		dpi := d.DPI
		if dpi == 0 {
			dpi = in.DetectionDPI
		}
		if dpi < 0 {
			return nil, fmt.Errorf("%w: detection %d: negative dpi %d", domain.ErrInvalidInput, i, dpi)
		}
		bbox, err := geometry.FromSlice(d.BBox, dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: detection %d: %v", domain.ErrInvalidInput, i, err)
		}
		if !bbox.IsValid() {
			return nil, fmt.Errorf("%w: detection %d: empty or inverted bbox %s", domain.ErrInvalidInput, i, bbox)
		}
		if math.IsNaN(d.Score) || d.Score < 0 || d.Score > 1 {
			return nil, fmt.Errorf("%w: detection %d: score %v outside [0,1]", domain.ErrInvalidInput, i, d.Score)
		}
		if dpi != in.DetectionDPI {
			bbox = geometry.Scale(bbox, dpi, in.DetectionDPI)
		}
		boxes = append(boxes, domain.Box{
			ID:    RawID(in.Index, i),
			BBox:  bbox,
			Label: domain.ParseClassLabel(d.Label),
			Score: d.Score,
		})
	}
	return boxes, nil
}

// CheckDPI compares the extent of boxes with the page size at the detection
// DPI. A failure usually means the detector ran at a different DPI than the
// one recorded; it is reported, never fatal.
func CheckDPI(boxes []domain.Box, g PageGeometry, log *zap.Logger) geometry.BoundsReport {
	bbs := make([]geometry.BBox, len(boxes))
	for i, b := range boxes {
		bbs[i] = b.BBox
	}
	r := geometry.ValidateAll(g.Width, g.Height, bbs, geometry.DefaultBoundsTolerance)
	if !r.OK() && log != nil {
		log.Warn("box extent exceeds page at detection dpi",
			zap.Int("dpi", g.DPI),
			zap.Float64("page_width_px", g.Width),
			zap.Float64("page_height_px", g.Height),
			zap.Float64("max_x", r.MaxX),
			zap.Float64("max_y", r.MaxY),
		)
	}
	return r
}

// SortBoxes orders boxes by (y1, x1, id), the canonical output order of
// every stage.
func SortBoxes(boxes []domain.Box) {
	sort.Slice(boxes, func(i, j int) bool {
		return lessYXID(boxes[i], boxes[j])
	})
}

func lessYXID(a, b domain.Box) bool {
	if a.BBox.Y1 != b.BBox.Y1 {
		return a.BBox.Y1 < b.BBox.Y1
	}
	if a.BBox.X1 != b.BBox.X1 {
		return a.BBox.X1 < b.BBox.X1
	}
	return a.ID < b.ID
}

func cloneBoxes(boxes []domain.Box) []domain.Box {
	return append([]domain.Box(nil), boxes...)
}
