package caption_test

import (
	"folio/internal/domain"
	"folio/internal/geometry"
)

const testDPI = 200

func box(id string, label domain.ClassLabel, x1, y1, x2, y2, score float64) domain.Box {
	return domain.Box{ID: id, BBox: geometry.New(x1, y1, x2, y2, testDPI), Label: label, Score: score}
}

// page builds a page whose reading order is the order of boxes.
func page(boxes ...domain.Box) domain.Page {
	order := make([]string, len(boxes))
	for i, b := range boxes {
		order[i] = b.ID
	}
	return domain.Page{
		Width:        576,
		Height:       792,
		DetectionDPI: testDPI,
		Boxes:        boxes,
		ReadingOrder: order,
	}
}

func figureWithCaption() domain.Page {
	return page(
		box("F", domain.LabelFigure, 200, 300, 1400, 900, 0.9),
		box("C", domain.LabelText, 400, 930, 1200, 1000, 0.8),
		box("P", domain.LabelText, 100, 1100, 1500, 1400, 0.9),
	)
}
