package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // page rasters
	_ "image/png"
	"os"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"folio/internal/caption"
	"folio/internal/config"
	"folio/internal/domain"
	"folio/internal/layout"
	"folio/internal/port"
)

// RefineOverrides are per-request changes to the configured layout
// settings. Zero values leave the setting alone.
type RefineOverrides struct {
	Policy         string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	MergeThreshold *float64 `json:"merge_threshold,omitempty" yaml:"merge_threshold,omitempty"`
	MergeMode      string   `json:"merge_mode,omitempty" yaml:"merge_mode,omitempty"`
	Captions       string   `json:"captions,omitempty" yaml:"captions,omitempty"`
}

// Validate checks the override values without applying them.
func (o RefineOverrides) Validate() error {
	if o.Policy != "" {
		if _, err := domain.ParsePolicyKind(o.Policy); err != nil {
			return err
		}
	}
	if o.MergeMode != "" {
		if _, err := domain.ParseMergeMode(o.MergeMode); err != nil {
			return err
		}
	}
	if o.Captions != "" {
		if _, err := domain.ParseCaptionMode(o.Captions); err != nil {
			return err
		}
	}
	if t := o.MergeThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: merge threshold %g outside [0,1]", domain.ErrInvalidInput, *t)
	}
	return nil
}

// RefineInput is one page to refine.
type RefineInput struct {
	Page      domain.PageInput
	Overrides RefineOverrides
	// SkipCache forces a fresh run. Catalog builds need the stage outputs,
	// which the cache does not keep.
	SkipCache bool
}

// RefineOutput is a refined page. Result holds the stage outputs of a fresh
// run; on a cache hit only Result.Page is set.
type RefineOutput struct {
	Result *layout.Result
	Image  *domain.PageImage
	Cached bool
}

// LayoutService refines single pages.
type LayoutService interface {
	Refine(ctx context.Context, input *RefineInput) (*RefineOutput, error)
}

// LayoutSettings are the defaults a LayoutService runs with.
type LayoutSettings struct {
	Layout       layout.Config
	Captions     domain.CaptionMode
	Caption      caption.Config
	DetectionDPI int
	// ImageDPI is assumed for page rasters that do not state their DPI.
	ImageDPI int
	CacheTTL time.Duration
}

// SettingsFromConfig builds LayoutSettings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) (LayoutSettings, error) {
	lc, err := cfg.Layout.ToLayout()
	if err != nil {
		return LayoutSettings{}, err
	}
	mode, err := cfg.Layout.CaptionMode()
	if err != nil {
		return LayoutSettings{}, err
	}
	return LayoutSettings{
		Layout:       lc,
		Captions:     mode,
		Caption:      caption.DefaultConfig(),
		DetectionDPI: cfg.Layout.DetectionDPI,
		ImageDPI:     cfg.Oracle.ImageDPI,
		CacheTTL:     cfg.Redis.TTL,
	}, nil
}

type layoutService struct {
	settings LayoutSettings
	oracle   port.CaptionOracle
	cache    port.PageCache
	log      *zap.Logger
}

// NewLayoutService creates a LayoutService. oracle and cache may be nil.
func NewLayoutService(settings LayoutSettings, oracle port.CaptionOracle, cache port.PageCache, log *zap.Logger) LayoutService {
	if log == nil {
		log = zap.NewNop()
	}
	return &layoutService{
		settings: settings,
		oracle:   oracle,
		cache:    cache,
		log:      log.With(zap.String("component", "layout_service")),
	}
}

func (s *layoutService) Refine(ctx context.Context, input *RefineInput) (*RefineOutput, error) {
	in := input.Page
	if in.DetectionDPI == 0 {
		in.DetectionDPI = s.settings.DetectionDPI
	}
	cfg, mode, err := s.resolveConfig(input.Overrides)
	if err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil && !input.SkipCache {
		key, err = CacheKey(in, cfg, mode)
		if err != nil {
			return nil, fmt.Errorf("layoutService.Refine: %w", err)
		}
		page, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("page cache read failed", zap.Error(err))
		} else if found {
			return &RefineOutput{Result: &layout.Result{Page: *page}, Cached: true}, nil
		}
	}

	img := s.loadImage(in)
	refiner := layout.NewRefiner(cfg, s.associator(mode), s.log)
	res, err := refiner.Refine(ctx, in, img)
	if err != nil {
		return &RefineOutput{Result: res, Image: img}, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, &res.Page, s.settings.CacheTTL); err != nil {
			s.log.Warn("page cache write failed", zap.Error(err))
		} else {
			s.log.Info("page cached", zap.Int("page", in.Index))
		}
	}
	return &RefineOutput{Result: res, Image: img}, nil
}

func (s *layoutService) resolveConfig(o RefineOverrides) (layout.Config, domain.CaptionMode, error) {
	cfg := s.settings.Layout
	mode := s.settings.Captions
	if o.Policy != "" {
		kind, err := domain.ParsePolicyKind(o.Policy)
		if err != nil {
			return cfg, mode, err
		}
		p := domain.PolicyOf(kind)
		p.ConfidenceWeight = cfg.Policy.ConfidenceWeight
		p.AreaWeight = cfg.Policy.AreaWeight
		p.AreaNorm = cfg.Policy.AreaNorm
		p.TypeBonus = cfg.Policy.TypeBonus
		cfg = cfg.WithPolicy(p)
	}
	if o.MergeMode != "" {
		m, err := domain.ParseMergeMode(o.MergeMode)
		if err != nil {
			return cfg, mode, err
		}
		// A mode switch without a threshold takes the new mode's default.
		if m != cfg.MergeMode && o.MergeThreshold == nil {
			cfg = cfg.WithMergeThreshold(layout.DefaultMergeThresholdFor(m))
		}
		cfg.MergeMode = m
	}
	if o.MergeThreshold != nil {
		cfg = cfg.WithMergeThreshold(*o.MergeThreshold)
	}
	if o.Captions != "" {
		m, err := domain.ParseCaptionMode(o.Captions)
		if err != nil {
			return cfg, mode, err
		}
		mode = m
	}
	if err := cfg.Validate(); err != nil {
		return cfg, mode, err
	}
	return cfg, mode, nil
}

func (s *layoutService) associator(mode domain.CaptionMode) layout.Associator {
	switch mode {
	case domain.CaptionsNone:
		return nil
	case domain.CaptionsVision:
		geo := caption.NewGeometricAssociator(s.settings.Caption, s.log)
		if s.oracle == nil {
			s.log.Info("vision captions requested without an oracle; using geometric association")
			return geo
		}
		return caption.NewVisionAssociator(s.oracle, geo, s.log)
	default:
		return caption.NewGeometricAssociator(s.settings.Caption, s.log)
	}
}

// loadImage decodes the page raster, if any. A raster that cannot be read
// is logged and ignored; every consumer can work without one.
func (s *layoutService) loadImage(in domain.PageInput) *domain.PageImage {
	if in.ImagePath == "" {
		return nil
	}
	img, err := DecodeImage(in.ImagePath)
	if err != nil {
		s.log.Warn("page image unreadable", zap.Int("page", in.Index), zap.String("path", in.ImagePath), zap.Error(err))
		return nil
	}
	dpi := in.ImageDPI
	if dpi == 0 {
		dpi = s.settings.ImageDPI
	}
	return &domain.PageImage{Image: img, DPI: dpi}
}

// DecodeImage reads a PNG, JPEG, TIFF or WebP file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// cacheKeyInput is everything that influences a refined page.
type cacheKeyInput struct {
	Page           domain.PageInput     `json:"page"`
	MergeThreshold float64              `json:"merge_threshold"`
	MergeMode      domain.MergeMode     `json:"merge_mode"`
	Policy         domain.ScoringPolicy `json:"policy"`
	MinBoxArea     float64              `json:"min_box_area"`
	MaxBoxes       int                  `json:"max_boxes"`
	NestedRatio    float64              `json:"nested_ratio"`
	GrazingRatio   float64              `json:"grazing_ratio"`
	Columns        layout.ColumnConfig  `json:"columns"`
	AbstractHook   bool                 `json:"abstract_hook"`
	ListPenalty    float64              `json:"list_abstract_penalty"`
	Captions       domain.CaptionMode   `json:"captions"`
}

// CacheKey digests a page and the configuration it is refined with.
func CacheKey(in domain.PageInput, cfg layout.Config, mode domain.CaptionMode) (string, error) {
	data, err := json.Marshal(cacheKeyInput{
		Page:           in,
		MergeThreshold: cfg.MergeThreshold,
		MergeMode:      cfg.MergeMode,
		Policy:         cfg.Policy,
		MinBoxArea:     cfg.MinBoxArea,
		MaxBoxes:       cfg.MaxBoxes,
		NestedRatio:    cfg.NestedRatio,
		GrazingRatio:   cfg.GrazingRatio,
		Columns:        cfg.Columns,
		AbstractHook:   cfg.AbstractDetector != nil,
		ListPenalty:    cfg.ListAbstractPenalty,
		Captions:       mode,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
