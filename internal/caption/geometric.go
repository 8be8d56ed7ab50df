package caption

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"folio/internal/domain"
)

// Candidate is a Text box considered as a caption for a primary.
type Candidate struct {
	Caption    domain.Box
	Distance   float64
	Below      bool
	Aligned    bool
	Likelihood float64
	Score      float64
}

// Confidence is the likelihood discounted by distance, in [0,1].
func (c Candidate) Confidence(maxDistance float64) float64 {
	v := c.Likelihood * (1 - math.Max(c.Distance, 0)/maxDistance)
	return math.Max(0, math.Min(1, v))
}

// GeometricAssociator pairs captions with primaries from box positions alone.
type GeometricAssociator struct {
	cfg Config
	log *zap.Logger
}

// NewGeometricAssociator creates a geometric associator. A nil logger
// disables logging.
func NewGeometricAssociator(cfg Config, log *zap.Logger) *GeometricAssociator {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeometricAssociator{cfg: cfg, log: log}
}

// Likelihood scores how much t looks like a caption for p.
func (a *GeometricAssociator) Likelihood(t, p domain.Box) (float64, bool) {
	c := a.cfg
	v := c.BaseLikelihood
	if h := t.BBox.Height(); h >= c.HeightMin && h <= c.HeightMax {
		v += c.HeightBonus
	}
	if w := t.BBox.Width(); w >= c.WidthMin && w <= c.WidthMax {
		v += c.WidthBonus
	}
	aligned := math.Abs(t.BBox.CenterX()-p.BBox.CenterX()) <= c.AlignTolerance
	if aligned {
		v += c.AlignBonus
	}
	return v, aligned
}

// Candidates returns the Text boxes within reach of primary that pass the
// likelihood threshold, best first.
func (a *GeometricAssociator) Candidates(primary domain.Box, boxes []domain.Box) []Candidate {
	c := a.cfg
	var out []Candidate
	for _, t := range boxes {
		if t.Label != domain.LabelText || t.ID == primary.ID {
			continue
		}
		below := t.BBox.Y1 - primary.BBox.Y2
		above := primary.BBox.Y1 - t.BBox.Y2

		var dist float64
		var isBelow bool
		switch {
		case below > -c.Tolerance && below <= c.MaxDistance:
			dist, isBelow = below, true
		case above > -c.Tolerance && above <= c.MaxDistance:
			dist = above
		default:
			continue
		}

		likelihood, aligned := a.Likelihood(t, primary)
		if likelihood <= c.MinLikelihood {
			continue
		}
		score := likelihood * (1 - math.Max(dist, 0)/c.MaxDistance)
		if aligned {
			score *= c.AlignedMultiplier
		}
		if isBelow {
			score *= c.BelowMultiplier
		}
		out = append(out, Candidate{
			Caption:    t,
			Distance:   dist,
			Below:      isBelow,
			Aligned:    aligned,
			Likelihood: likelihood,
			Score:      score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Caption.ID < out[j].Caption.ID
	})
	return out
}

// Pairs returns the caption assignment for boxes. Each primary takes its
// best candidate; when two primaries want the same caption the higher score
// wins and the other primary goes without.
func (a *GeometricAssociator) Pairs(boxes []domain.Box) []Pair {
	type proposal struct {
		primary string
		cand    Candidate
	}
	var props []proposal
	for _, p := range boxes {
		if !p.Label.IsPrimary() {
			continue
		}
		if cands := a.Candidates(p, boxes); len(cands) > 0 {
			props = append(props, proposal{primary: p.ID, cand: cands[0]})
		}
	}
	sort.Slice(props, func(i, j int) bool {
		if props[i].cand.Score != props[j].cand.Score {
			return props[i].cand.Score > props[j].cand.Score
		}
		return props[i].primary < props[j].primary
	})

	taken := make(map[string]bool, len(props))
	pairs := make([]Pair, 0, len(props))
	for _, pr := range props {
		if taken[pr.cand.Caption.ID] {
			a.log.Debug("caption claimed by a better primary",
				zap.String("primary", pr.primary),
				zap.String("caption", pr.cand.Caption.ID),
			)
			continue
		}
		taken[pr.cand.Caption.ID] = true
		pairs = append(pairs, Pair{
			PrimaryID:  pr.primary,
			CaptionID:  pr.cand.Caption.ID,
			Confidence: pr.cand.Confidence(a.cfg.MaxDistance),
		})
	}
	return pairs
}

// Associate groups the page using geometric pairing. img is ignored.
func (a *GeometricAssociator) Associate(ctx context.Context, page domain.Page, _ *domain.PageImage) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return page, fmt.Errorf("caption.Associate: %w: %v", domain.ErrCanceled, err)
	}
	return Apply(page, a.Pairs(page.Boxes)), nil
}

// Standalone makes every box its own caption-less group.
type Standalone struct{}

// Associate implements layout.Associator.
func (Standalone) Associate(ctx context.Context, page domain.Page, _ *domain.PageImage) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return page, fmt.Errorf("caption.Associate: %w: %v", domain.ErrCanceled, err)
	}
	return Apply(page, nil), nil
}
