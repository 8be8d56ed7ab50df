// Package extract routes refined regions to the extractor for their label.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"folio/internal/domain"
	"folio/internal/port"
)

// Extraction is what came out of one region. Text is set for text-bearing
// regions and tables, Image for figures.
type Extraction struct {
	BoxID string
	Text  *string
	Image image.Image
}

// Dispatcher sends Text, Title and List regions to the text extractor, Table
// regions to the table extractor and Figure regions to the cropper. Any of
// the three may be nil, in which case those regions are skipped.
type Dispatcher struct {
	text    port.TextExtractor
	table   port.TableExtractor
	cropper port.ImageCropper
	log     *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(text port.TextExtractor, table port.TableExtractor, cropper port.ImageCropper, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{text: text, table: table, cropper: cropper, log: log.With(zap.String("component", "extract"))}
}

// Extract runs the routed extractors over page in reading order. A failing
// region is logged and skipped; only cancellation aborts the page.
func (d *Dispatcher) Extract(ctx context.Context, pdfPath string, page domain.Page, img *domain.PageImage) (map[string]Extraction, error) {
	out := make(map[string]Extraction, len(page.Boxes))
	for _, id := range page.ReadingOrder {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("extract.Extract: %w: %v", domain.ErrCanceled, err)
		}
		b, ok := page.BoxByID(id)
		if !ok {
			continue
		}

		ex, err := d.extractOne(ctx, pdfPath, page.Index, b, img)
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("extract.Extract: %w: %v", domain.ErrCanceled, ctx.Err())
			}
			d.log.Warn("region extraction failed",
				zap.Int("page", page.Index),
				zap.String("box", b.ID),
				zap.String("label", string(b.Label)),
				zap.Error(err),
			)
			continue
		}
		if ex.Text != nil || ex.Image != nil {
			ex.BoxID = b.ID
			out[b.ID] = ex
		}
	}
	return out, nil
}

var errNoImage = errors.New("no page image")

func (d *Dispatcher) extractOne(ctx context.Context, pdfPath string, pageIndex int, b domain.Box, img *domain.PageImage) (Extraction, error) {
	in := port.RegionInput{PDFPath: pdfPath, Page: pageIndex, BBox: b.BBox}
	switch {
	case b.Label.IsTextual():
		if d.text == nil {
			return Extraction{}, nil
		}
		s, err := d.text.ExtractText(ctx, in)
		if err != nil {
			return Extraction{}, err
		}
		return textExtraction(s), nil
	case b.Label == domain.LabelTable:
		if d.table == nil {
			return Extraction{}, nil
		}
		s, err := d.table.ExtractTable(ctx, in)
		if err != nil {
			return Extraction{}, err
		}
		return textExtraction(s), nil
	case b.Label == domain.LabelFigure:
		if d.cropper == nil {
			return Extraction{}, nil
		}
		if img == nil || img.Image == nil {
			return Extraction{}, errNoImage
		}
		crop, err := d.cropper.Crop(ctx, img.Image, img.DPI, b.BBox)
		if err != nil {
			return Extraction{}, err
		}
		return Extraction{Image: crop}, nil
	}
	return Extraction{}, nil
}

// textExtraction normalises s to NFC; empty text counts as nothing found.
func textExtraction(s string) Extraction {
	s = norm.NFC.String(s)
	if s == "" {
		return Extraction{}
	}
	return Extraction{Text: &s}
}
