package layout

import (
	"math"
	"sort"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// AbstractDetector reports whether a List box looks like an abstract block.
type AbstractDetector func(b domain.Box, page PageGeometry) bool

// LooksLikeAbstract flags List boxes that start in the top third of the page
// and cover at least a tenth of it.
func LooksLikeAbstract(b domain.Box, page PageGeometry) bool {
	if b.Label != domain.LabelList || page.Width <= 0 || page.Height <= 0 {
		return false
	}
	return b.BBox.Y1 < page.Height/3 && b.BBox.Area() >= 0.1*page.Width*page.Height
}

// Scorer assigns a policy score to boxes and ranks them.
type Scorer struct {
	policy   domain.ScoringPolicy
	abstract AbstractDetector
	penalty  float64
	page     PageGeometry
}

// NewScorer builds a scorer for cfg's policy on a page.
func NewScorer(cfg Config, page PageGeometry) Scorer {
	return Scorer{
		policy:   cfg.Policy,
		abstract: cfg.AbstractDetector,
		penalty:  cfg.ListAbstractPenalty,
		page:     page,
	}
}

// Score returns b's score under the policy. Split ranks by label priority.
func (s Scorer) Score(b domain.Box) float64 {
	var v float64
	switch s.policy.Kind {
	case domain.PolicyPriority, domain.PolicySplit:
		v = float64(b.Label.Priority())
	case domain.PolicyLarger:
		v = b.BBox.Area()
	case domain.PolicyConfident:
		v = b.Score
	default:
		v = s.weighted(b)
	}
	if s.abstract != nil && b.Label == domain.LabelList && s.abstract(b, s.page) {
		v *= s.penalty
	}
	return v
}

func (s Scorer) weighted(b domain.Box) float64 {
	cw, aw := s.policy.ConfidenceWeight, s.policy.AreaWeight
	if cw+aw <= 0 {
		cw, aw = domain.DefaultConfidenceWeight, domain.DefaultAreaWeight
	}
	norm := s.policy.AreaNorm
	if norm <= 0 {
		norm = domain.DefaultAreaNorm
	}
	total := cw + aw
	area := math.Min(b.BBox.Area()/norm, 1)
	v := (cw/total)*b.Score + (aw/total)*area
	if bonus, ok := s.policy.TypeBonus[b.Label]; ok {
		v *= 1 + bonus
	}
	return v
}

// Better reports whether a outranks b: higher score, then priority, then
// area, then (y1, x1, id) ascending.
func (s Scorer) Better(a, b domain.Box) bool {
	return s.better(a, s.Score(a), b, s.Score(b))
}

func (s Scorer) better(a domain.Box, sa float64, b domain.Box, sb float64) bool {
	if sa != sb {
		return sa > sb
	}
	if pa, pb := a.Label.Priority(), b.Label.Priority(); pa != pb {
		return pa > pb
	}
	if aa, ab := a.BBox.Area(), b.BBox.Area(); aa != ab {
		return aa > ab
	}
	return lessYXID(a, b)
}

// Rank sorts boxes best first.
func (s Scorer) Rank(boxes []domain.Box) {
	scores := make(map[string]float64, len(boxes))
	for _, b := range boxes {
		scores[b.ID] = s.Score(b)
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		return s.better(boxes[i], scores[boxes[i].ID], boxes[j], scores[boxes[j].ID])
	})
}

// Conflict describes one cross-label overlap and which box the policy keeps.
type Conflict struct {
	BoxA           string            `json:"box_a"`
	BoxB           string            `json:"box_b"`
	LabelA         domain.ClassLabel `json:"label_a"`
	LabelB         domain.ClassLabel `json:"label_b"`
	ScoreA         float64           `json:"score_a"`
	ScoreB         float64           `json:"score_b"`
	OverlapArea    float64           `json:"overlap_area"`
	OverlapPercent float64           `json:"overlap_percent"`
	Winner         string            `json:"winner"`
}

// AnalyzeConflicts lists every overlapping pair with different labels and
// the box the scorer would keep. The percentage is relative to the smaller
// box. Pairs are ordered by (a, b) position in (y1, x1, id) order.
func AnalyzeConflicts(boxes []domain.Box, s Scorer) []Conflict {
	sorted := cloneBoxes(boxes)
	SortBoxes(sorted)

	var idx spatialIndex
	for i, b := range sorted {
		idx.insert(b.BBox, i)
	}

	var out []Conflict
	for i, a := range sorted {
		hits := idx.search(a.BBox)
		sort.Ints(hits)
		for _, j := range hits {
			if j <= i {
				continue
			}
			b := sorted[j]
			if a.Label == b.Label {
				continue
			}
			ov := geometry.OverlapArea(a.BBox, b.BBox)
			if ov <= 0 {
				continue
			}
			sa, sb := s.Score(a), s.Score(b)
			winner := b.ID
			if s.better(a, sa, b, sb) {
				winner = a.ID
			}
			out = append(out, Conflict{
				BoxA:           a.ID,
				BoxB:           b.ID,
				LabelA:         a.Label,
				LabelB:         b.Label,
				ScoreA:         sa,
				ScoreB:         sb,
				OverlapArea:    ov,
				OverlapPercent: 100 * ov / math.Min(a.BBox.Area(), b.BBox.Area()),
				Winner:         winner,
			})
		}
	}
	return out
}
