package layout

import (
	"sort"

	"folio/internal/domain"
)

// Region is where a box sits relative to the column structure.
type Region string

const (
	RegionSingle     Region = "single"
	RegionTopSpan    Region = "top_spanning"
	RegionLeft       Region = "left"
	RegionRight      Region = "right"
	RegionBottomSpan Region = "bottom_spanning"
)

// ColumnLayout is the detected column structure of a page.
type ColumnLayout struct {
	TwoColumn bool    `json:"two_column"`
	Midline   float64 `json:"midline,omitempty"`
	// Regions maps box ids to their region; every box is RegionSingle on a
	// single-column page.
	Regions map[string]Region `json:"regions"`
}

// ColumnDetector decides between one and two columns from the x positions
// of narrow text regions.
type ColumnDetector struct {
	config ColumnConfig
}

// NewColumnDetector creates a detector with default thresholds.
func NewColumnDetector() *ColumnDetector {
	return &ColumnDetector{config: DefaultColumnConfig()}
}

// NewColumnDetectorWithConfig creates a detector with custom thresholds.
func NewColumnDetectorWithConfig(config ColumnConfig) *ColumnDetector {
	return &ColumnDetector{config: config}
}

// Midline returns the column split for boxes on a page pageWidth pixels wide.
// ok is false for a single-column page.
func (d *ColumnDetector) Midline(boxes []domain.Box, pageWidth float64) (float64, bool) {
	var cands []domain.Box
	for _, b := range boxes {
		if (b.Label == domain.LabelText || b.Label == domain.LabelList) &&
			b.BBox.Width() < d.config.CandidateWidthRatio*pageWidth {
			cands = append(cands, b)
		}
	}
	if len(cands) < d.config.MinCandidates {
		return 0, false
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].BBox.X1 != cands[j].BBox.X1 {
			return cands[i].BBox.X1 < cands[j].BBox.X1
		}
		return cands[i].ID < cands[j].ID
	})

	meanWidth := 0.0
	for _, c := range cands {
		meanWidth += c.BBox.Width()
	}
	meanWidth /= float64(len(cands))

	split := -1
	for i := 1; i < len(cands); i++ {
		if cands[i].BBox.X1-cands[i-1].BBox.X1 > d.config.GapFactor*meanWidth {
			if split >= 0 {
				return 0, false
			}
			split = i
		}
	}
	if split < 0 {
		return 0, false
	}

	// The gutter runs from the right edge of the left group to the first x1
	// of the right group.
	gapLeft := 0.0
	for _, c := range cands[:split] {
		if c.BBox.X2 > gapLeft {
			gapLeft = c.BBox.X2
		}
	}
	gapRight := cands[split].BBox.X1
	mid := (gapLeft + gapRight) / 2
	if gapLeft >= gapRight {
		mid = (cands[split-1].BBox.X1 + gapRight) / 2
	}

	if mid < d.config.MidlineMin*pageWidth || mid > d.config.MidlineMax*pageWidth {
		return 0, false
	}
	return mid, true
}

// Detect classifies every box on a page of the given pixel size.
func (d *ColumnDetector) Detect(boxes []domain.Box, pageWidth, pageHeight float64) ColumnLayout {
	out := ColumnLayout{Regions: make(map[string]Region, len(boxes))}
	mid, ok := d.Midline(boxes, pageWidth)
	if !ok {
		for _, b := range boxes {
			out.Regions[b.ID] = RegionSingle
		}
		return out
	}
	out.TwoColumn = true
	out.Midline = mid

	meanY2 := 0.0
	for _, b := range boxes {
		meanY2 += b.BBox.Y2
	}
	meanY2 /= float64(len(boxes))

	for _, b := range boxes {
		out.Regions[b.ID] = d.classify(b, mid, meanY2, pageWidth, pageHeight)
	}
	return out
}

func (d *ColumnDetector) classify(b domain.Box, mid, meanY2, pageWidth, pageHeight float64) Region {
	c := d.config
	if b.Label == domain.LabelTitle &&
		b.BBox.Width() >= c.FullWidthRatio*pageWidth &&
		b.BBox.Y1 >= c.BottomRegionRatio*pageHeight {
		return RegionBottomSpan
	}
	spanning := b.BBox.Width() > c.SpanningWidthRatio*pageWidth ||
		(b.BBox.X1 < mid-c.SpanningMargin && b.BBox.X2 > mid+c.SpanningMargin)
	if spanning {
		if b.BBox.Y2 < meanY2 {
			return RegionTopSpan
		}
		return RegionBottomSpan
	}
	if b.BBox.CenterX() < mid {
		return RegionLeft
	}
	return RegionRight
}
