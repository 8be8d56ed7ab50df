package geometry

// DefaultBoundsTolerance is the slack allowed beyond the page edge before a
// box is reported as out of bounds.
const DefaultBoundsTolerance = 0.05

// PointsToPixels converts a length in PDF points to pixels at dpi.
func PointsToPixels(pt float64, dpi int) float64 {
	return pt * float64(dpi) / PointsPerInch
}

// PixelsToPoints converts a length in pixels at dpi to PDF points.
func PixelsToPoints(px float64, dpi int) float64 {
	if dpi <= 0 {
		return px
	}
	return px * PointsPerInch / float64(dpi)
}

// BoundsReport describes how far a set of boxes reaches past the page.
type BoundsReport struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	MaxX       float64 `json:"max_x"`
	MaxY       float64 `json:"max_y"`
	WidthOK    bool    `json:"width_ok"`
	HeightOK   bool    `json:"height_ok"`
}

// OK reports whether both axes are within tolerance.
func (r BoundsReport) OK() bool { return r.WidthOK && r.HeightOK }

// ValidateWithin checks that bbox lies inside a pageW x pageH page (same units
// and DPI as bbox) with the given relative tolerance.
func ValidateWithin(pageW, pageH float64, bbox BBox, tolerance float64) bool {
	return bbox.X2 <= pageW*(1+tolerance) && bbox.Y2 <= pageH*(1+tolerance)
}

// ValidateAll checks the maximum extent of boxes against a pageW x pageH
// page. A box set with no elements is always within bounds.
func ValidateAll(pageW, pageH float64, boxes []BBox, tolerance float64) BoundsReport {
	r := BoundsReport{PageWidth: pageW, PageHeight: pageH}
	for _, b := range boxes {
		if b.X2 > r.MaxX {
			r.MaxX = b.X2
		}
		if b.Y2 > r.MaxY {
			r.MaxY = b.Y2
		}
	}
	r.WidthOK = r.MaxX <= pageW*(1+tolerance)
	r.HeightOK = r.MaxY <= pageH*(1+tolerance)
	return r
}
