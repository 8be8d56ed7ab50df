package service_test

import (
	"folio/internal/caption"
	"folio/internal/domain"
	"folio/internal/layout"
	"folio/internal/service"
)

const testDPI = 200

func detection(label string, x1, y1, x2, y2, score float64) domain.Detection {
	return domain.Detection{BBox: []float64{x1, y1, x2, y2}, Label: label, Score: score}
}

// figurePage holds a figure, its caption and a paragraph on a letter page.
func figurePage(index int) domain.PageInput {
	return domain.PageInput{
		Index:        index,
		Width:        576,
		Height:       792,
		DetectionDPI: testDPI,
		Detections: []domain.Detection{
			detection("Figure", 200, 300, 1400, 900, 0.9),
			detection("Text", 400, 930, 1200, 1000, 0.8),
			detection("Text", 100, 1100, 1500, 1400, 0.9),
		},
	}
}

func settings() service.LayoutSettings {
	return service.LayoutSettings{
		Layout:       layout.DefaultConfig(),
		Captions:     domain.CaptionsGeometric,
		Caption:      caption.DefaultConfig(),
		DetectionDPI: testDPI,
		ImageDPI:     100,
	}
}
