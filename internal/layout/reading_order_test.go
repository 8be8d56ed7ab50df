package layout_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/domain"
	"folio/internal/layout"
)

func twoColumnPage() []domain.Box {
	return []domain.Box{
		box("FO", domain.LabelTitle, 100, 2100, 1500, 2180, 0.9),
		box("R2", domain.LabelText, 900, 950, 1500, 1500, 0.9),
		box("L1", domain.LabelText, 100, 200, 700, 900, 0.9),
		box("TI", domain.LabelTitle, 100, 50, 1500, 150, 0.95),
		box("R1", domain.LabelText, 900, 200, 1500, 900, 0.9),
		box("L2", domain.LabelText, 100, 950, 700, 1500, 0.9),
	}
}

func TestColumnDetector_TwoColumns(t *testing.T) {
	d := layout.NewColumnDetector()
	cols := d.Detect(twoColumnPage(), 1600, 2200)

	require.True(t, cols.TwoColumn)
	assert.Equal(t, 800.0, cols.Midline)
	assert.Equal(t, layout.RegionTopSpan, cols.Regions["TI"])
	assert.Equal(t, layout.RegionLeft, cols.Regions["L1"])
	assert.Equal(t, layout.RegionLeft, cols.Regions["L2"])
	assert.Equal(t, layout.RegionRight, cols.Regions["R1"])
	assert.Equal(t, layout.RegionRight, cols.Regions["R2"])
	assert.Equal(t, layout.RegionBottomSpan, cols.Regions["FO"])
}

func TestColumnDetector_TooFewCandidates(t *testing.T) {
	d := layout.NewColumnDetector()
	_, ok := d.Midline([]domain.Box{
		box("L1", domain.LabelText, 100, 200, 700, 900, 0.9),
		box("R1", domain.LabelText, 900, 200, 1500, 900, 0.9),
		box("L2", domain.LabelText, 100, 950, 700, 1500, 0.9),
	}, 1600)
	assert.False(t, ok)
}

func TestColumnDetector_MidlineOutOfRange(t *testing.T) {
	// Narrow sidebar on the far right: the gutter midline sits at 75% of
	// the width.
	d := layout.NewColumnDetector()
	_, ok := d.Midline([]domain.Box{
		box("a", domain.LabelText, 100, 100, 1000, 200, 0.9),
		box("b", domain.LabelText, 110, 300, 1010, 400, 0.9),
		box("c", domain.LabelText, 1400, 100, 1550, 200, 0.9),
		box("d", domain.LabelText, 1400, 300, 1550, 400, 0.9),
	}, 1600)
	assert.False(t, ok)
}

func TestColumnDetector_SeveralGapsIsSingleColumn(t *testing.T) {
	d := layout.NewColumnDetector()
	_, ok := d.Midline([]domain.Box{
		box("a", domain.LabelText, 100, 100, 400, 200, 0.9),
		box("b", domain.LabelText, 600, 100, 900, 200, 0.9),
		box("c", domain.LabelText, 1100, 100, 1400, 200, 0.9),
		box("d", domain.LabelText, 1100, 300, 1400, 400, 0.9),
	}, 1600)
	assert.False(t, ok)
}

func TestOrder_TwoColumnWithSpanningTitle(t *testing.T) {
	o := layout.NewReadingOrderDetector(layout.DefaultColumnConfig(), nil)
	order, cols, err := o.Order(context.Background(), twoColumnPage(), testPage)
	require.NoError(t, err)
	assert.True(t, cols.TwoColumn)
	assert.Equal(t, []string{"TI", "L1", "L2", "R1", "R2", "FO"}, order)
}

func TestColumnDetector_FullWidthBottomTitle(t *testing.T) {
	// Tall columns push the mean y2 below the footer, so only the title rule
	// keeps it out of the top-spanning group.
	boxes := []domain.Box{
		box("L1", domain.LabelText, 100, 200, 700, 2190, 0.9),
		box("L2", domain.LabelText, 100, 300, 700, 2190, 0.9),
		box("R1", domain.LabelText, 900, 200, 1500, 2190, 0.9),
		box("R2", domain.LabelText, 900, 300, 1500, 2190, 0.9),
		box("FO", domain.LabelTitle, 100, 1800, 1500, 1850, 0.9),
		box("FT", domain.LabelText, 100, 1800, 1500, 1850, 0.9),
	}
	cols := layout.NewColumnDetector().Detect(boxes, 1600, 2200)
	require.True(t, cols.TwoColumn)
	assert.Equal(t, layout.RegionBottomSpan, cols.Regions["FO"])
	assert.Equal(t, layout.RegionTopSpan, cols.Regions["FT"])
}

func TestOrder_SingleColumnRows(t *testing.T) {
	// b and a sit on the same 20px row, so they read left to right.
	boxes := []domain.Box{
		box("c", domain.LabelText, 100, 400, 1500, 500, 0.9),
		box("b", domain.LabelText, 900, 102, 1500, 200, 0.9),
		box("a", domain.LabelText, 100, 108, 700, 200, 0.9),
	}
	o := layout.NewReadingOrderDetector(layout.DefaultColumnConfig(), nil)
	order, cols, err := o.Order(context.Background(), boxes, testPage)
	require.NoError(t, err)
	assert.False(t, cols.TwoColumn)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestOrder_Empty(t *testing.T) {
	o := layout.NewReadingOrderDetector(layout.DefaultColumnConfig(), nil)
	order, _, err := o.Order(context.Background(), nil, testPage)
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestOrder_PermutationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	o := layout.NewReadingOrderDetector(layout.DefaultColumnConfig(), nil)
	for i := 0; i < 200; i++ {
		boxes, err := layout.BuildBoxes(randomPage(rng, rng.Intn(30)), 0)
		require.NoError(t, err)

		order, _, err := o.Order(context.Background(), boxes, testPage)
		require.NoError(t, err)
		require.NoError(t, layout.CheckPermutation(boxes, order))
		assert.ElementsMatch(t, ids(boxes), order)
	}
}
