package layout

import (
	"github.com/tidwall/rtree"

	"folio/internal/geometry"
)

// spatialIndex maps rectangles to slot numbers.
type spatialIndex struct {
	tr rtree.RTreeG[int]
}

func corners(b geometry.BBox) (lo, hi [2]float64) {
	return [2]float64{b.X1, b.Y1}, [2]float64{b.X2, b.Y2}
}

func (s *spatialIndex) insert(b geometry.BBox, slot int) {
	lo, hi := corners(b)
	s.tr.Insert(lo, hi, slot)
}

func (s *spatialIndex) remove(b geometry.BBox, slot int) {
	lo, hi := corners(b)
	s.tr.Delete(lo, hi, slot)
}

// search returns the slots whose rectangles intersect or touch b.
func (s *spatialIndex) search(b geometry.BBox) []int {
	var hits []int
	lo, hi := corners(b)
	s.tr.Search(lo, hi, func(_, _ [2]float64, slot int) bool {
		hits = append(hits, slot)
		return true
	})
	return hits
}
