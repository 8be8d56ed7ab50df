package geometry_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/geometry"
)

func TestArea(t *testing.T) {
	assert.Equal(t, 100.0, geometry.New(0, 0, 10, 10, 200).Area())
	assert.Equal(t, 0.0, geometry.New(10, 0, 0, 10, 200).Area(), "inverted box has no area")
}

func TestOverlapArea(t *testing.T) {
	tests := []struct {
		name string
		a, b geometry.BBox
		want float64
	}{
		{"disjoint", geometry.New(0, 0, 10, 10, 200), geometry.New(20, 20, 30, 30, 200), 0},
		{"touching edge", geometry.New(0, 0, 10, 10, 200), geometry.New(10, 0, 20, 10, 200), 0},
		{"partial", geometry.New(0, 0, 10, 10, 200), geometry.New(5, 5, 15, 15, 200), 25},
		{"nested", geometry.New(0, 0, 10, 10, 200), geometry.New(2, 2, 4, 4, 200), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, geometry.OverlapArea(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, geometry.OverlapArea(tt.b, tt.a), 1e-9)
		})
	}
}

func TestIoU(t *testing.T) {
	a := geometry.New(100, 100, 500, 200, 200)
	b := geometry.New(110, 110, 510, 210, 200)
	// 390*90 / (40000 + 40000 - 35100)
	assert.InDelta(t, 35100.0/44900.0, geometry.IoU(a, b), 1e-9)
	assert.Equal(t, 1.0, geometry.IoU(a, a))
	assert.Equal(t, 0.0, geometry.IoU(geometry.BBox{}, geometry.BBox{}))
}

func TestContainsRatio(t *testing.T) {
	outer := geometry.New(0, 0, 100, 100, 200)
	inner := geometry.New(10, 10, 20, 20, 200)
	assert.Equal(t, 1.0, geometry.ContainsRatio(outer, inner))
	assert.InDelta(t, 0.01, geometry.ContainsRatio(inner, outer), 1e-9)
}

func TestUnion(t *testing.T) {
	u := geometry.Union(geometry.New(100, 100, 500, 200, 200), geometry.New(110, 110, 510, 210, 200))
	assert.Equal(t, geometry.New(100, 100, 510, 210, 200), u)
}

func TestScale_ExactIntegerRatio(t *testing.T) {
	b := geometry.New(800, 1000, 1600, 2000, 200)

	down := geometry.Scale(b, 200, 150)
	assert.Equal(t, geometry.New(600, 750, 1200, 1500, 150), down)

	back := geometry.Scale(down, 150, 200)
	assert.Equal(t, b, back)
}

func TestScale_RoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dpis := []int{72, 96, 150, 200, 300, 600}
	for i := 0; i < 500; i++ {
		x1 := rng.Float64() * 3000
		y1 := rng.Float64() * 3000
		b := geometry.New(x1, y1, x1+1+rng.Float64()*500, y1+1+rng.Float64()*500, dpis[rng.Intn(len(dpis))])
		to := dpis[rng.Intn(len(dpis))]

		rt := geometry.Scale(geometry.Scale(b, b.DPI, to), to, b.DPI)
		require.Equal(t, b.DPI, rt.DPI)
		for k, v := range b.Array() {
			require.InDelta(t, v, rt.Array()[k], 1e-6)
		}
	}
}

func TestToPoints(t *testing.T) {
	b := geometry.New(200, 400, 600, 800, 200)
	assert.Equal(t, [4]float64{72, 144, 216, 288}, b.ToPoints())
}

func TestIsValid(t *testing.T) {
	assert.True(t, geometry.New(0, 0, 1, 1, 200).IsValid())
	assert.False(t, geometry.New(0, 0, 0, 1, 200).IsValid())
	assert.False(t, geometry.New(5, 0, 1, 1, 200).IsValid())
	assert.False(t, geometry.New(0, 0, math.NaN(), 1, 200).IsValid())
	assert.True(t, geometry.New(-3, -2, 10, 10, 200).IsValid(), "small negatives are allowed")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, geometry.New(0, 0, 10, 10, 200), geometry.New(-3, -2, 10, 10, 200).Clamp())
}

func TestValidateWithin(t *testing.T) {
	tol := geometry.DefaultBoundsTolerance
	assert.True(t, geometry.ValidateWithin(1600, 2200, geometry.New(0, 0, 1600, 2200, 200), tol))
	assert.True(t, geometry.ValidateWithin(1600, 2200, geometry.New(0, 0, 1670, 2300, 200), tol))
	assert.False(t, geometry.ValidateWithin(1600, 2200, geometry.New(0, 0, 1700, 100, 200), tol))
	assert.False(t, geometry.ValidateWithin(1600, 2200, geometry.New(0, 0, 100, 2400, 200), tol))
}

func TestValidateAll(t *testing.T) {
	boxes := []geometry.BBox{
		geometry.New(0, 0, 1600, 2100, 200),
		geometry.New(10, 10, 1650, 200, 200),
	}
	r := geometry.ValidateAll(1600, 2200, boxes, geometry.DefaultBoundsTolerance)
	assert.True(t, r.OK())

	boxes = append(boxes, geometry.New(0, 0, 1700, 2400, 200))
	r = geometry.ValidateAll(1600, 2200, boxes, geometry.DefaultBoundsTolerance)
	assert.False(t, r.WidthOK)
	assert.False(t, r.HeightOK)
	assert.Equal(t, 1700.0, r.MaxX)
}

func TestPointsPixels(t *testing.T) {
	assert.Equal(t, 1600.0, geometry.PointsToPixels(576, 200))
	assert.Equal(t, 576.0, geometry.PixelsToPoints(1600, 200))
}
