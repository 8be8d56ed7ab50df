package layout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// Associator groups a reading-ordered page into semantic groups. It may move
// a caption next to its primary in the reading order and must leave every
// other id where it was.
type Associator interface {
	Associate(ctx context.Context, page domain.Page, img *domain.PageImage) (domain.Page, error)
}

// Stages keeps each stage's output for auditing.
type Stages struct {
	Raw       []domain.Box           `json:"raw"`
	Merged    []domain.Box           `json:"merged"`
	Resolved  []domain.Box           `json:"resolved"`
	Ordered   []string               `json:"ordered"`
	Groups    []domain.SemanticGroup `json:"groups"`
	Conflicts []Conflict             `json:"conflicts"`
}

// Result is a refined page plus the data gathered while producing it.
type Result struct {
	Page        domain.Page           `json:"page"`
	Stages      Stages                `json:"stages"`
	Columns     ColumnLayout          `json:"columns"`
	Iterations  int                   `json:"resolver_iterations"`
	Bounds      geometry.BoundsReport `json:"bounds"`
	Diagnostics []string              `json:"diagnostics,omitempty"`
}

// Refiner runs the four layout stages on one page.
type Refiner struct {
	cfg        Config
	merger     *Merger
	resolver   *Resolver
	order      *ReadingOrderDetector
	associator Associator
	log        *zap.Logger
}

// NewRefiner wires the stages for cfg. associator may be nil, in which case
// every box becomes a standalone group.
func NewRefiner(cfg Config, associator Associator, log *zap.Logger) *Refiner {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "layout"))
	return &Refiner{
		cfg:        cfg,
		merger:     NewMerger(cfg.MergeThreshold, cfg.MergeMode, log),
		resolver:   NewResolver(cfg, log),
		order:      NewReadingOrderDetector(cfg.Columns, log),
		associator: associator,
		log:        log,
	}
}

// Config returns the configuration the refiner was built with.
func (r *Refiner) Config() Config { return r.cfg }

// Refine validates in and runs merge, resolve, order and caption association.
// img is optional and only used by associators that look at the page. When
// ctx is canceled mid-way, the returned result holds the last completed stage
// with Page.Partial set, and the error wraps domain.ErrCanceled.
func (r *Refiner) Refine(ctx context.Context, in domain.PageInput, img *domain.PageImage) (*Result, error) {
	page := domain.Page{
		Index:        in.Index,
		Width:        in.Width,
		Height:       in.Height,
		DetectionDPI: in.DetectionDPI,
	}
	res := &Result{Page: page}
	log := r.log.With(zap.Int("page", in.Index))

	raw, err := BuildBoxes(in, r.cfg.MaxBoxes)
	if err != nil {
		return nil, domain.NewPageError(in.Index, err)
	}
	res.Stages.Raw = raw
	geom := GeometryOf(in)
	res.Bounds = CheckDPI(raw, geom, log)
	if !res.Bounds.OK() {
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("box extent %.0fx%.0f exceeds page %.0fx%.0f at %d dpi",
			res.Bounds.MaxX, res.Bounds.MaxY, geom.Width, geom.Height, geom.DPI))
	}

	merged, err := r.merger.Merge(ctx, raw)
	if err != nil {
		return r.partial(res, merged, nil, err)
	}
	res.Stages.Merged = merged
	if err := r.check(log, res, "merge", CheckSameClass(merged, r.cfg.MergeThreshold, r.cfg.MergeMode)); err != nil {
		return nil, domain.NewPageError(in.Index, err)
	}

	scorer := NewScorer(r.cfg, geom)
	res.Stages.Conflicts = AnalyzeConflicts(merged, scorer)

	resolved, err := r.resolver.Resolve(ctx, merged, geom)
	if err != nil {
		if errors.Is(err, domain.ErrCanceled) {
			return r.partial(res, resolved.Boxes, nil, err)
		}
		return nil, domain.NewPageError(in.Index, err)
	}
	res.Iterations = resolved.Iterations
	res.Stages.Resolved = resolved.Boxes
	if resolved.Forced > 0 {
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("resolver cap reached after %d iterations; %d boxes discarded by cleanup",
			resolved.Iterations, resolved.Forced))
	}
	log.Debug("overlaps resolved",
		zap.Int("in", len(merged)),
		zap.Int("out", len(resolved.Boxes)),
		zap.Int("iterations", resolved.Iterations),
		zap.Int("merges", resolved.Merges),
		zap.Int("discards", resolved.Drops),
		zap.Int("shrinks", resolved.Shrink),
	)

	order, cols, err := r.order.Order(ctx, resolved.Boxes, geom)
	if err != nil {
		return r.partial(res, resolved.Boxes, nil, err)
	}
	res.Columns = cols
	res.Stages.Ordered = order
	if err := r.check(log, res, "order", CheckPermutation(resolved.Boxes, order)); err != nil {
		return nil, domain.NewPageError(in.Index, err)
	}

	page.Boxes = resolved.Boxes
	page.ReadingOrder = order
	if r.associator != nil {
		page, err = r.associator.Associate(ctx, page, img)
		if err != nil {
			if errors.Is(err, domain.ErrCanceled) {
				return r.partial(res, resolved.Boxes, order, err)
			}
			return nil, domain.NewPageError(in.Index, err)
		}
	} else {
		page.Groups = StandaloneGroups(page.Boxes, page.ReadingOrder)
	}
	res.Stages.Groups = page.Groups

	if err := r.check(log, res, "order", CheckPermutation(page.Boxes, page.ReadingOrder)); err != nil {
		return nil, domain.NewPageError(in.Index, err)
	}
	if err := r.check(log, res, "captions", CheckGroups(page.Boxes, page.Groups)); err != nil {
		return nil, domain.NewPageError(in.Index, err)
	}

	res.Page = page
	return res, nil
}

// check applies a post-condition: fatal in debug mode, logged otherwise.
func (r *Refiner) check(log *zap.Logger, res *Result, stage string, violation error) error {
	if violation == nil {
		return nil
	}
	if r.cfg.Debug {
		return fmt.Errorf("layout.Refine: %s: %w: %v", stage, domain.ErrInternal, violation)
	}
	log.Warn("post-condition failed", zap.String("stage", stage), zap.Error(violation))
	res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("%s: %v", stage, violation))
	return nil
}

func (r *Refiner) partial(res *Result, boxes []domain.Box, order []string, err error) (*Result, error) {
	res.Page.Boxes = boxes
	res.Page.ReadingOrder = order
	res.Page.Partial = true
	r.log.Debug("refinement canceled", zap.Int("page", res.Page.Index), zap.Error(err))
	return res, domain.NewPageError(res.Page.Index, err)
}

// StandaloneGroups makes every box its own caption-less group, in reading
// order.
func StandaloneGroups(boxes []domain.Box, order []string) []domain.SemanticGroup {
	byID := make(map[string]domain.Box, len(boxes))
	for _, b := range boxes {
		byID[b.ID] = b
	}
	groups := make([]domain.SemanticGroup, 0, len(order))
	for _, id := range order {
		if b, ok := byID[id]; ok {
			groups = append(groups, domain.SemanticGroup{Primary: b, Confidence: 1})
		}
	}
	return groups
}
