package layout_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/domain"
	"folio/internal/geometry"
	"folio/internal/layout"
)

func TestMerge_SameClassScenario(t *testing.T) {
	m := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	a := box("A", domain.LabelText, 100, 100, 500, 200, 0.9)
	b := box("B", domain.LabelText, 110, 110, 510, 210, 0.8)
	c := box("C", domain.LabelText, 1000, 1000, 1100, 1100, 0.7)

	out, err := m.Merge(context.Background(), []domain.Box{c, b, a})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, geometry.New(100, 100, 510, 210, testDPI), out[0].BBox)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, domain.LabelText, out[0].Label)
	assert.Equal(t, layout.MergedID([]string{"A", "B"}), out[0].ID)
	assert.Equal(t, c, out[1])
}

func TestMerge_IdenticalBoxesKeepMaxScore(t *testing.T) {
	m := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	out, err := m.Merge(context.Background(), []domain.Box{
		box("A", domain.LabelTable, 10, 10, 300, 300, 0.4),
		box("B", domain.LabelTable, 10, 10, 300, 300, 0.8),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.8, out[0].Score)
}

func TestMerge_DifferentLabelsUntouched(t *testing.T) {
	m := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	in := []domain.Box{
		box("A", domain.LabelText, 10, 10, 300, 300, 0.4),
		box("B", domain.LabelFigure, 10, 10, 300, 300, 0.8),
	}
	out, err := m.Merge(context.Background(), in)
	require.NoError(t, err)
	assert.ElementsMatch(t, in, out)
}

func TestMerge_TransitiveClosure(t *testing.T) {
	// A-B and B-C overlap, A-C do not; all three fuse.
	m := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	out, err := m.Merge(context.Background(), []domain.Box{
		box("A", domain.LabelText, 0, 0, 100, 100, 0.5),
		box("B", domain.LabelText, 50, 0, 150, 100, 0.6),
		box("C", domain.LabelText, 100, 0, 200, 100, 0.7),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, geometry.New(0, 0, 200, 100, testDPI), out[0].BBox)
	assert.Equal(t, 0.7, out[0].Score)
}

func TestMerge_UnionCreatesNewMerge(t *testing.T) {
	// A and B each cover 40% of C; their union covers 60%.
	m := layout.NewMerger(0.5, domain.MergeModeContainment, nil)
	out, err := m.Merge(context.Background(), []domain.Box{
		box("A", domain.LabelText, 0, 0, 100, 100, 0.5),
		box("B", domain.LabelText, 50, 0, 150, 100, 0.6),
		box("C", domain.LabelText, 0, 70, 150, 120, 0.7),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, geometry.New(0, 0, 150, 120, testDPI), out[0].BBox)
	assert.Equal(t, 0.7, out[0].Score)
}

func TestMerge_ContainmentMode(t *testing.T) {
	outer := box("O", domain.LabelText, 0, 0, 1000, 1000, 0.9)
	inner := box("I", domain.LabelText, 100, 100, 200, 200, 0.3)

	iou := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	out, err := iou.Merge(context.Background(), []domain.Box{outer, inner})
	require.NoError(t, err)
	assert.Len(t, out, 2, "IoU is only 0.01")

	contain := layout.NewMerger(0.5, domain.MergeModeContainment, nil)
	out, err = contain.Merge(context.Background(), []domain.Box{outer, inner})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, outer.BBox, out[0].BBox)
}

func TestMerge_ZeroThresholdMergesWholeClass(t *testing.T) {
	m := layout.NewMerger(0, domain.MergeModeIoU, nil)
	out, err := m.Merge(context.Background(), []domain.Box{
		box("A", domain.LabelText, 0, 0, 10, 10, 0.5),
		box("B", domain.LabelText, 500, 500, 510, 510, 0.5),
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestMerge_LabelOutsideClosedSetIsKept(t *testing.T) {
	m := layout.NewMerger(0.1, domain.MergeModeIoU, nil)
	out, err := m.Merge(context.Background(), []domain.Box{
		box("E", domain.ClassLabel("Equation"), 10, 10, 300, 300, 0.6),
		box("U", domain.LabelUnknown, 20, 20, 310, 310, 0.7),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.LabelUnknown, out[0].Label)
	assert.Equal(t, 0.7, out[0].Score)
}

func TestMerge_Empty(t *testing.T) {
	out, err := layout.NewMerger(0.1, domain.MergeModeIoU, nil).Merge(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMerge_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := layout.NewMerger(0.1, domain.MergeModeIoU, nil).Merge(ctx, []domain.Box{
		box("A", domain.LabelText, 0, 0, 10, 10, 0.5),
	})
	assert.ErrorIs(t, err, domain.ErrCanceled)
}

func TestMerge_SameClassBoundProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, mode := range []domain.MergeMode{domain.MergeModeIoU, domain.MergeModeContainment} {
		for _, thr := range []float64{0.05, 0.1, 0.5, 0.9} {
			m := layout.NewMerger(thr, mode, nil)
			for i := 0; i < 50; i++ {
				boxes, err := layout.BuildBoxes(randomPage(rng, 1+rng.Intn(40)), 0)
				require.NoError(t, err)

				out, err := m.Merge(context.Background(), boxes)
				require.NoError(t, err)
				require.NoError(t, layout.CheckSameClass(out, thr, mode))
				require.NoError(t, layout.CheckBoxes(out))
			}
		}
	}
}
