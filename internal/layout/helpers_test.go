package layout_test

import (
	"math/rand"

	"folio/internal/domain"
	"folio/internal/geometry"
)

const testDPI = 200

func box(id string, label domain.ClassLabel, x1, y1, x2, y2, score float64) domain.Box {
	return domain.Box{
		ID:    id,
		BBox:  geometry.New(x1, y1, x2, y2, testDPI),
		Label: label,
		Score: score,
	}
}

func detection(label string, x1, y1, x2, y2, score float64) domain.Detection {
	return domain.Detection{BBox: []float64{x1, y1, x2, y2}, Label: label, Score: score}
}

// letterPage is 576x792 pt, which is 1600x2200 px at 200 dpi.
func letterPage(dets ...domain.Detection) domain.PageInput {
	return domain.PageInput{
		Index:        0,
		Width:        576,
		Height:       792,
		DetectionDPI: testDPI,
		Detections:   dets,
	}
}

var randomLabels = []string{"Text", "Title", "List", "Table", "Figure", "Caption"}

func randomPage(rng *rand.Rand, n int) domain.PageInput {
	in := letterPage()
	for i := 0; i < n; i++ {
		x1 := float64(rng.Intn(1400))
		y1 := float64(rng.Intn(2000))
		w := float64(20 + rng.Intn(600))
		h := float64(20 + rng.Intn(400))
		in.Detections = append(in.Detections, detection(
			randomLabels[rng.Intn(len(randomLabels))],
			x1, y1, x1+w, y1+h,
			float64(rng.Intn(101))/100,
		))
	}
	return in
}

func ids(boxes []domain.Box) []string {
	out := make([]string, len(boxes))
	for i, b := range boxes {
		out[i] = b.ID
	}
	return out
}
