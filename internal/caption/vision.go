package caption

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/geometry"
	"folio/internal/oracle"
	"folio/internal/port"
)

var shortPrefix = map[domain.ClassLabel]string{
	domain.LabelFigure:  "F",
	domain.LabelTable:   "T",
	domain.LabelText:    "t",
	domain.LabelTitle:   "H",
	domain.LabelList:    "L",
	domain.LabelUnknown: "U",
}

// ShortID is the label drawn next to the index-th box on the oracle image.
func ShortID(label domain.ClassLabel, index int) string {
	p, ok := shortPrefix[label]
	if !ok {
		p = "U"
	}
	return fmt.Sprintf("%s%d", p, index)
}

// VisionAssociator asks a caption oracle to pair captions on an annotated
// page raster. Any oracle failure or invalid answer falls back to the
// geometric associator.
type VisionAssociator struct {
	oracle   port.CaptionOracle
	fallback *GeometricAssociator
	log      *zap.Logger
}

// NewVisionAssociator creates a vision associator. A nil logger disables
// logging.
func NewVisionAssociator(o port.CaptionOracle, fallback *GeometricAssociator, log *zap.Logger) *VisionAssociator {
	if log == nil {
		log = zap.NewNop()
	}
	return &VisionAssociator{oracle: o, fallback: fallback, log: log}
}

// Associate implements layout.Associator. It returns an error only when ctx
// is done.
func (v *VisionAssociator) Associate(ctx context.Context, page domain.Page, img *domain.PageImage) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return page, fmt.Errorf("caption.Associate: %w: %v", domain.ErrCanceled, err)
	}
	if img == nil || img.Image == nil || v.oracle == nil {
		v.log.Info("no page image for caption oracle, using geometric association", zap.Int("page", page.Index))
		return v.fallback.Associate(ctx, page, nil)
	}

	pairs, err := v.ask(ctx, page, img)
	if err != nil {
		if ctx.Err() != nil {
			return page, fmt.Errorf("caption.Associate: %w: %v", domain.ErrCanceled, ctx.Err())
		}
		v.log.Info("caption oracle failed, using geometric association",
			zap.Int("page", page.Index),
			zap.Bool("invalid_response", errors.Is(err, domain.ErrInvalidOracleResponse)),
			zap.Error(err),
		)
		return v.fallback.Associate(ctx, page, nil)
	}
	return Apply(page, pairs), nil
}

func (v *VisionAssociator) ask(ctx context.Context, page domain.Page, img *domain.PageImage) ([]Pair, error) {
	imageDPI := img.DPI
	if imageDPI <= 0 {
		imageDPI = page.DetectionDPI
	}

	short := make(map[string]string, len(page.Boxes))
	annotated := make([]port.AnnotatedBox, 0, len(page.Boxes))
	for i, id := range page.ReadingOrder {
		b, ok := page.BoxByID(id)
		if !ok {
			continue
		}
		sid := ShortID(b.Label, i)
		short[sid] = b.ID
		annotated = append(annotated, port.AnnotatedBox{
			ID:    sid,
			Label: b.Label,
			BBox:  geometry.Scale(b.BBox, page.DetectionDPI, imageDPI).Array(),
		})
	}

	canvas := oracle.Annotate(img.Image, annotated)
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encoding annotated page: %w", err)
	}

	bounds := canvas.Bounds()
	out, err := v.oracle.Associate(ctx, port.OracleInput{
		Image:       buf.Bytes(),
		ContentType: "image/png",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Boxes:       annotated,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailed, err)
	}

	pairs := make([]Pair, 0, len(out.Associations))
	for _, a := range out.Associations {
		// An element the oracle left uncaptioned.
		if a.CaptionID == "" {
			continue
		}
		primary, ok := short[a.PrimaryID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown element id %q", domain.ErrInvalidOracleResponse, a.PrimaryID)
		}
		caption, ok := short[a.CaptionID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown caption id %q", domain.ErrInvalidOracleResponse, a.CaptionID)
		}
		pairs = append(pairs, Pair{PrimaryID: primary, CaptionID: caption, Confidence: a.Confidence})
	}
	if err := ValidatePairs(page.Boxes, pairs); err != nil {
		return nil, err
	}
	v.log.Debug("caption oracle answered",
		zap.Int("page", page.Index),
		zap.String("model", out.ModelUsed),
		zap.Int("associations", len(pairs)),
	)
	return pairs, nil
}
