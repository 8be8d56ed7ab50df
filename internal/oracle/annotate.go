package oracle

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"folio/internal/domain"
	"folio/internal/port"
)

var labelColors = map[domain.ClassLabel]color.RGBA{
	domain.LabelFigure:  {R: 220, G: 20, B: 60, A: 255},
	domain.LabelTable:   {R: 30, G: 90, B: 220, A: 255},
	domain.LabelText:    {R: 20, G: 150, B: 60, A: 255},
	domain.LabelTitle:   {R: 200, G: 120, B: 0, A: 255},
	domain.LabelList:    {R: 130, G: 40, B: 170, A: 255},
	domain.LabelUnknown: {R: 110, G: 110, B: 110, A: 255},
}

func colorOf(l domain.ClassLabel) color.RGBA {
	if c, ok := labelColors[l]; ok {
		return c
	}
	return labelColors[domain.LabelUnknown]
}

// Annotate returns a copy of img with every box outlined and tagged with its
// short id. Box coordinates must already be in img's pixel space.
func Annotate(img image.Image, boxes []port.AnnotatedBox) *image.RGBA {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	for _, b := range boxes {
		r := image.Rect(
			int(math.Floor(b.BBox[0])), int(math.Floor(b.BBox[1])),
			int(math.Ceil(b.BBox[2])), int(math.Ceil(b.BBox[3])),
		).Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		c := colorOf(b.Label)
		thickness := 2
		if b.Label.IsPrimary() {
			thickness = 4
		}
		outline(canvas, r, c, thickness)
		tag(canvas, r, b.ID, c)
	}
	return canvas
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA, t int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// tag draws the id on a filled label above the box, or inside it when the
// box touches the top edge.
func tag(dst *image.RGBA, r image.Rectangle, id string, c color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, id).Ceil() + 6
	height := face.Metrics().Height.Ceil() + 4

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	bg := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, bg, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(bg.Min.X+3, bg.Min.Y+face.Metrics().Ascent.Ceil()+2),
	}
	d.DrawString(id)
}
