package layout

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"folio/internal/domain"
)

// ReadingOrderDetector turns a column layout into a total order over boxes.
type ReadingOrderDetector struct {
	columns *ColumnDetector
	config  ColumnConfig
	log     *zap.Logger
}

// NewReadingOrderDetector creates an orderer. A nil logger disables logging.
func NewReadingOrderDetector(config ColumnConfig, log *zap.Logger) *ReadingOrderDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReadingOrderDetector{
		columns: NewColumnDetectorWithConfig(config),
		config:  config,
		log:     log,
	}
}

var regionRank = map[Region]int{
	RegionTopSpan:    0,
	RegionLeft:       1,
	RegionRight:      2,
	RegionBottomSpan: 3,
}

// Order returns the ids of boxes in reading order and the column layout it
// was derived from.
func (r *ReadingOrderDetector) Order(ctx context.Context, boxes []domain.Box, page PageGeometry) ([]string, ColumnLayout, error) {
	if err := ctx.Err(); err != nil {
		return nil, ColumnLayout{}, fmt.Errorf("layout.Order: %w: %v", domain.ErrCanceled, err)
	}

	cols := r.columns.Detect(boxes, page.Width, page.Height)
	sorted := cloneBoxes(boxes)
	if cols.TwoColumn {
		sort.Slice(sorted, func(i, j int) bool {
			ri, rj := regionRank[cols.Regions[sorted[i].ID]], regionRank[cols.Regions[sorted[j].ID]]
			if ri != rj {
				return ri < rj
			}
			return lessYXID(sorted[i], sorted[j])
		})
	} else {
		tol := r.config.RowTolerance
		if tol <= 0 {
			tol = 1
		}
		sort.Slice(sorted, func(i, j int) bool {
			ri, rj := math.Round(sorted[i].BBox.Y1/tol), math.Round(sorted[j].BBox.Y1/tol)
			if ri != rj {
				return ri < rj
			}
			if sorted[i].BBox.X1 != sorted[j].BBox.X1 {
				return sorted[i].BBox.X1 < sorted[j].BBox.X1
			}
			return sorted[i].ID < sorted[j].ID
		})
	}

	order := make([]string, len(sorted))
	for i, b := range sorted {
		order[i] = b.ID
	}
	r.log.Debug("reading order",
		zap.Bool("two_column", cols.TwoColumn),
		zap.Float64("midline", cols.Midline),
		zap.Int("boxes", len(order)),
	)
	return order, cols, nil
}
