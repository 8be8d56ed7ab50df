// Package geometry provides axis-aligned rectangle primitives tagged with the
// DPI at which their coordinates were produced.
//
// Coordinates use a top-left origin with y growing downward. A BBox is only
// meaningful together with its DPI; converting between DPIs goes through Scale
// so that no silent integer cast ever happens.
package geometry

import (
	"fmt"
	"math"
)

// PointsPerInch is the PDF user-space resolution.
const PointsPerInch = 72

// BBox is an axis-aligned rectangle in pixel space at DPI.
type BBox struct {
	X1  float64 `json:"x1"`
	Y1  float64 `json:"y1"`
	X2  float64 `json:"x2"`
	Y2  float64 `json:"y2"`
	DPI int     `json:"dpi"`
}

// New builds a BBox from corner coordinates.
func New(x1, y1, x2, y2 float64, dpi int) BBox {
	return BBox{X1: x1, Y1: y1, X2: x2, Y2: y2, DPI: dpi}
}

// FromSlice builds a BBox from an [x1, y1, x2, y2] slice.
func FromSlice(c []float64, dpi int) (BBox, error) {
	if len(c) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 coordinates, got %d", len(c))
	}
	return New(c[0], c[1], c[2], c[3], dpi), nil
}

// Array returns the corners as [x1, y1, x2, y2].
func (b BBox) Array() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Width returns x2-x1, which may be negative for an inverted box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns y2-y1, which may be negative for an inverted box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// CenterX returns the horizontal center.
func (b BBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical center.
func (b BBox) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Area returns max(0, w) * max(0, h).
func (b BBox) Area() float64 {
	return math.Max(0, b.Width()) * math.Max(0, b.Height())
}

// IsValid reports whether the box is finite, non-empty and not inverted.
func (b BBox) IsValid() bool {
	for _, v := range b.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Intersection returns the clipped rectangle shared by a and b. ok is false
// when the two boxes do not share any area.
func Intersection(a, b BBox) (BBox, bool) {
	r := BBox{
		X1:  math.Max(a.X1, b.X1),
		Y1:  math.Max(a.Y1, b.Y1),
		X2:  math.Min(a.X2, b.X2),
		Y2:  math.Min(a.Y2, b.Y2),
		DPI: a.DPI,
	}
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return BBox{}, false
	}
	return r, true
}

// OverlapArea returns the area shared by a and b; 0 if they are disjoint or
// only touch along an edge.
func OverlapArea(a, b BBox) float64 {
	r, ok := Intersection(a, b)
	if !ok {
		return 0
	}
	return r.Area()
}

// Overlaps reports whether a and b share a positive area.
func Overlaps(a, b BBox) bool {
	return OverlapArea(a, b) > 0
}

// IoU returns the intersection over union of a and b, or 0 when the union is
// empty.
func IoU(a, b BBox) float64 {
	inter := OverlapArea(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ContainsRatio returns the fraction of b covered by a.
func ContainsRatio(a, b BBox) float64 {
	area := b.Area()
	if area <= 0 {
		return 0
	}
	return OverlapArea(a, b) / area
}

// Union returns the smallest rectangle enclosing a and b. The result keeps
// a's DPI.
func Union(a, b BBox) BBox {
	return BBox{
		X1:  math.Min(a.X1, b.X1),
		Y1:  math.Min(a.Y1, b.Y1),
		X2:  math.Max(a.X2, b.X2),
		Y2:  math.Max(a.Y2, b.Y2),
		DPI: a.DPI,
	}
}

// UnionAll folds Union over boxes. It panics on an empty slice.
func UnionAll(boxes []BBox) BBox {
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = Union(out, b)
	}
	return out
}

// Scale converts b from fromDPI to toDPI. Each coordinate is multiplied
// before dividing so that integer-ratio conversions stay exact.
func Scale(b BBox, fromDPI, toDPI int) BBox {
	if fromDPI == toDPI || fromDPI <= 0 {
		b.DPI = toDPI
		return b
	}
	f, t := float64(fromDPI), float64(toDPI)
	return BBox{
		X1:  b.X1 * t / f,
		Y1:  b.Y1 * t / f,
		X2:  b.X2 * t / f,
		Y2:  b.Y2 * t / f,
		DPI: toDPI,
	}
}

// To rescales b from its own DPI to dpi.
func (b BBox) To(dpi int) BBox {
	return Scale(b, b.DPI, dpi)
}

// ToPoints returns b expressed in PDF points (72 per inch).
func (b BBox) ToPoints() [4]float64 {
	return b.To(PointsPerInch).Array()
}

// Clamp returns b with negative coordinates raised to zero. Detectors emit
// small negatives at page margins; they are removed before persistence.
func (b BBox) Clamp() BBox {
	b.X1 = math.Max(0, b.X1)
	b.Y1 = math.Max(0, b.Y1)
	b.X2 = math.Max(0, b.X2)
	b.Y2 = math.Max(0, b.Y2)
	return b
}

// String renders b as "[x1,y1,x2,y2]@dpi".
func (b BBox) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]@%d", b.X1, b.Y1, b.X2, b.Y2, b.DPI)
}
