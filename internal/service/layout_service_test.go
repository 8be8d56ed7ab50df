package service_test

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folio/internal/domain"
	"folio/internal/layout"
	"folio/internal/service"
	"folio/mocks"
)

func TestLayoutService_GeometricCaptions(t *testing.T) {
	svc := service.NewLayoutService(settings(), nil, nil, nil)
	out, err := svc.Refine(context.Background(), &service.RefineInput{Page: figurePage(0)})
	require.NoError(t, err)
	assert.False(t, out.Cached)

	page := out.Result.Page
	assert.Equal(t, []string{layout.RawID(0, 0), layout.RawID(0, 1), layout.RawID(0, 2)}, page.ReadingOrder)
	require.Len(t, page.Groups, 2)
	require.NotNil(t, page.Groups[0].Caption)
	assert.Equal(t, layout.RawID(0, 1), page.Groups[0].Caption.ID)
	assert.InDelta(t, 0.8, page.Groups[0].Confidence, 1e-9)
}

func TestLayoutService_Overrides(t *testing.T) {
	svc := service.NewLayoutService(settings(), nil, nil, nil)

	out, err := svc.Refine(context.Background(), &service.RefineInput{
		Page:      figurePage(0),
		Overrides: service.RefineOverrides{Captions: "none"},
	})
	require.NoError(t, err)
	assert.Len(t, out.Result.Page.Groups, 3)

	bad := 1.5
	tests := []struct {
		name string
		o    service.RefineOverrides
	}{
		{"policy", service.RefineOverrides{Policy: "loudest"}},
		{"threshold", service.RefineOverrides{MergeThreshold: &bad}},
		{"merge mode", service.RefineOverrides{MergeMode: "fuzzy"}},
		{"captions", service.RefineOverrides{Captions: "telepathy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Refine(context.Background(), &service.RefineInput{Page: figurePage(0), Overrides: tt.o})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLayoutService_ContainmentModeDefaultThreshold(t *testing.T) {
	// The smaller box is 30% covered: IoU 0.11 merges at 0.1, containment
	// keeps both at its 0.5 default.
	page := domain.PageInput{
		Width:        576,
		Height:       792,
		DetectionDPI: testDPI,
		Detections: []domain.Detection{
			detection("Text", 100, 100, 500, 300, 0.9),
			detection("Text", 440, 100, 640, 300, 0.8),
		},
	}
	svc := service.NewLayoutService(settings(), nil, nil, nil)

	out, err := svc.Refine(context.Background(), &service.RefineInput{Page: page, SkipCache: true})
	require.NoError(t, err)
	assert.Len(t, out.Result.Stages.Merged, 1)

	out, err = svc.Refine(context.Background(), &service.RefineInput{
		Page:      page,
		Overrides: service.RefineOverrides{MergeMode: "containment"},
		SkipCache: true,
	})
	require.NoError(t, err)
	assert.Len(t, out.Result.Stages.Merged, 2)

	explicit := 0.2
	out, err = svc.Refine(context.Background(), &service.RefineInput{
		Page:      page,
		Overrides: service.RefineOverrides{MergeMode: "containment", MergeThreshold: &explicit},
		SkipCache: true,
	})
	require.NoError(t, err)
	assert.Len(t, out.Result.Stages.Merged, 1)
}

func TestLayoutService_DefaultsDetectionDPI(t *testing.T) {
	in := figurePage(0)
	in.DetectionDPI = 0
	out, err := service.NewLayoutService(settings(), nil, nil, nil).Refine(context.Background(), &service.RefineInput{Page: in})
	require.NoError(t, err)
	assert.Equal(t, testDPI, out.Result.Page.DetectionDPI)
}

func TestLayoutService_VisionWithoutImageSkipsOracle(t *testing.T) {
	oracle := new(mocks.MockCaptionOracle)
	s := settings()
	s.Captions = domain.CaptionsVision

	out, err := service.NewLayoutService(s, oracle, nil, nil).Refine(context.Background(), &service.RefineInput{Page: figurePage(0)})
	require.NoError(t, err)
	require.NotNil(t, out.Result.Page.Groups[0].Caption)
	oracle.AssertNotCalled(t, "Associate", mock.Anything, mock.Anything)
}

func TestLayoutService_CacheHit(t *testing.T) {
	cache := new(mocks.MockPageCache)
	cached := &domain.Page{Index: 0, DetectionDPI: testDPI}
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(cached, true, nil)

	out, err := service.NewLayoutService(settings(), nil, cache, nil).Refine(context.Background(), &service.RefineInput{Page: figurePage(0)})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, *cached, out.Result.Page)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLayoutService_CacheMissStoresPage(t *testing.T) {
	cache := new(mocks.MockPageCache)
	key, err := service.CacheKey(figurePage(0), layout.DefaultConfig(), domain.CaptionsGeometric)
	require.NoError(t, err)
	cache.On("Get", mock.Anything, key).Return(nil, false, nil)
	cache.On("Set", mock.Anything, key, mock.AnythingOfType("*domain.Page"), mock.Anything).Return(nil)

	out, err := service.NewLayoutService(settings(), nil, cache, nil).Refine(context.Background(), &service.RefineInput{Page: figurePage(0)})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	cache.AssertExpectations(t)
}

func TestLayoutService_SkipCache(t *testing.T) {
	cache := new(mocks.MockPageCache)
	_, err := service.NewLayoutService(settings(), nil, cache, nil).Refine(context.Background(),
		&service.RefineInput{Page: figurePage(0), SkipCache: true})
	require.NoError(t, err)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestLayoutService_TooManyBoxes(t *testing.T) {
	s := settings()
	s.Layout.MaxBoxes = 2
	_, err := service.NewLayoutService(s, nil, nil, nil).Refine(context.Background(), &service.RefineInput{Page: figurePage(3)})
	assert.ErrorIs(t, err, domain.ErrTooManyBoxes)
	var pe *domain.PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Page)
}

func TestCacheKey(t *testing.T) {
	a, err := service.CacheKey(figurePage(0), layout.DefaultConfig(), domain.CaptionsGeometric)
	require.NoError(t, err)
	b, err := service.CacheKey(figurePage(0), layout.DefaultConfig(), domain.CaptionsGeometric)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := service.CacheKey(figurePage(0), layout.DefaultConfig(), domain.CaptionsNone)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := service.CacheKey(figurePage(0), layout.DefaultConfig().WithMergeThreshold(0.3), domain.CaptionsGeometric)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestDecodeImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 40, 20))))
	require.NoError(t, f.Close())

	img, err := service.DecodeImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())

	_, err = service.DecodeImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestLayoutService_UnreadableImageIsIgnored(t *testing.T) {
	in := figurePage(0)
	in.ImagePath = filepath.Join(t.TempDir(), "missing.png")
	out, err := service.NewLayoutService(settings(), nil, nil, nil).Refine(context.Background(), &service.RefineInput{Page: in})
	require.NoError(t, err)
	assert.Nil(t, out.Image)
}
