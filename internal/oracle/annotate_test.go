package oracle_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"folio/internal/domain"
	"folio/internal/oracle"
	"folio/internal/port"
)

func whitePage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestAnnotate_DrawsOutlineWithoutTouchingSource(t *testing.T) {
	src := whitePage(200, 200)
	out := oracle.Annotate(src, []port.AnnotatedBox{
		{ID: "F0", Label: domain.LabelFigure, BBox: [4]float64{50, 50, 150, 150}},
	})

	assert.Equal(t, src.Bounds(), out.Bounds())
	// Left edge of the outline is coloured; the interior is untouched.
	assert.NotEqual(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(51, 100))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(100, 100))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(51, 100))
}

func TestAnnotate_ClipsBoxesOutsideImage(t *testing.T) {
	src := whitePage(100, 100)
	out := oracle.Annotate(src, []port.AnnotatedBox{
		{ID: "t0", Label: domain.LabelText, BBox: [4]float64{500, 500, 600, 600}},
		{ID: "t1", Label: domain.LabelText, BBox: [4]float64{-20, -20, 40, 40}},
	})
	assert.Equal(t, src.Bounds(), out.Bounds())
}
