package caption_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folio/internal/caption"
	"folio/internal/domain"
	"folio/internal/port"
	"folio/mocks"
)

// pageImage is the letter page rendered at 100 dpi.
func pageImage() *domain.PageImage {
	return &domain.PageImage{Image: image.NewRGBA(image.Rect(0, 0, 800, 1100)), DPI: 100}
}

func newVision(o port.CaptionOracle) *caption.VisionAssociator {
	return caption.NewVisionAssociator(o, caption.NewGeometricAssociator(caption.DefaultConfig(), nil), nil)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "F0", caption.ShortID(domain.LabelFigure, 0))
	assert.Equal(t, "T3", caption.ShortID(domain.LabelTable, 3))
	assert.Equal(t, "t12", caption.ShortID(domain.LabelText, 12))
	assert.Equal(t, "U1", caption.ShortID(domain.ClassLabel("Equation"), 1))
}

func TestVision_UsesOracleAnswer(t *testing.T) {
	o := new(mocks.MockCaptionOracle)
	o.On("Associate", mock.Anything, mock.MatchedBy(func(in port.OracleInput) bool {
		return in.ContentType == "image/png" &&
			in.Width == 800 && in.Height == 1100 &&
			len(in.Boxes) == 3 &&
			in.Boxes[0].ID == "F0" &&
			in.Boxes[0].BBox == [4]float64{100, 150, 700, 450} &&
			in.Boxes[1].ID == "t1" && in.Boxes[2].ID == "t2"
	})).Return(&port.OracleOutput{
		Associations: []port.OracleAssociation{{PrimaryID: "F0", CaptionID: "t1", Confidence: 0.95}},
		ModelUsed:    "test",
	}, nil)

	out, err := newVision(o).Associate(context.Background(), figureWithCaption(), pageImage())
	require.NoError(t, err)
	o.AssertExpectations(t)

	assert.Equal(t, []string{"F", "C", "P"}, out.ReadingOrder)
	require.Len(t, out.Groups, 2)
	assert.Equal(t, "C", out.Groups[0].Caption.ID)
	assert.Equal(t, 0.95, out.Groups[0].Confidence)
}

func TestVision_SkipsUncaptionedAssociations(t *testing.T) {
	o := new(mocks.MockCaptionOracle)
	o.On("Associate", mock.Anything, mock.Anything).Return(&port.OracleOutput{
		Associations: []port.OracleAssociation{
			{PrimaryID: "F0", CaptionID: "", Confidence: 0.4},
			{PrimaryID: "F0", CaptionID: "t1", Confidence: 0.95},
		},
	}, nil)

	out, err := newVision(o).Associate(context.Background(), figureWithCaption(), pageImage())
	require.NoError(t, err)
	require.Len(t, out.Groups, 2)
	assert.Equal(t, "C", out.Groups[0].Caption.ID)
	assert.Equal(t, 0.95, out.Groups[0].Confidence)
}

func TestVision_FallsBackToGeometric(t *testing.T) {
	tests := []struct {
		name string
		out  *port.OracleOutput
		err  error
	}{
		{"oracle error", nil, errors.New("timeout")},
		{"unknown id", &port.OracleOutput{Associations: []port.OracleAssociation{{PrimaryID: "F0", CaptionID: "t9", Confidence: 0.9}}}, nil},
		{"text primary", &port.OracleOutput{Associations: []port.OracleAssociation{{PrimaryID: "t2", CaptionID: "t1", Confidence: 0.9}}}, nil},
		{"confidence out of range", &port.OracleOutput{Associations: []port.OracleAssociation{{PrimaryID: "F0", CaptionID: "t1", Confidence: 3}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := new(mocks.MockCaptionOracle)
			if tt.err != nil {
				o.On("Associate", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				o.On("Associate", mock.Anything, mock.Anything).Return(tt.out, nil)
			}

			out, err := newVision(o).Associate(context.Background(), figureWithCaption(), pageImage())
			require.NoError(t, err)
			require.Len(t, out.Groups, 2)
			assert.Equal(t, "C", out.Groups[0].Caption.ID)
			assert.InDelta(t, 0.8, out.Groups[0].Confidence, 1e-9, "geometric confidence")
		})
	}
}

func TestVision_NoImageSkipsOracle(t *testing.T) {
	o := new(mocks.MockCaptionOracle)
	out, err := newVision(o).Associate(context.Background(), figureWithCaption(), nil)
	require.NoError(t, err)
	assert.Len(t, out.Groups, 2)
	o.AssertNotCalled(t, "Associate", mock.Anything, mock.Anything)
}

func TestVision_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := new(mocks.MockCaptionOracle)
	o.On("Associate", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)

	_, err := newVision(o).Associate(ctx, figureWithCaption(), pageImage())
	assert.ErrorIs(t, err, domain.ErrCanceled)
}
