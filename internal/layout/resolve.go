package layout

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// Action is what the resolver did with one overlapping pair.
type Action string

const (
	ActionMerge   Action = "merge"
	ActionDiscard Action = "discard"
	ActionShrink  Action = "shrink"
)

// OverlapInfo describes how much of each box the shared area covers.
type OverlapInfo struct {
	Area   float64
	RatioA float64
	RatioB float64
	Nested bool
}

// Overlap measures a against b. nestedRatio is the coverage at which one box
// counts as inside the other.
func Overlap(a, b geometry.BBox, nestedRatio float64) OverlapInfo {
	ov := geometry.OverlapArea(a, b)
	info := OverlapInfo{Area: ov}
	if ov <= 0 {
		return info
	}
	if area := a.Area(); area > 0 {
		info.RatioA = ov / area
	}
	if area := b.Area(); area > 0 {
		info.RatioB = ov / area
	}
	info.Nested = math.Max(info.RatioA, info.RatioB) >= nestedRatio
	return info
}

// ResolveResult is the outcome of a resolver run.
type ResolveResult struct {
	Boxes []domain.Box
	// Iterations counts sweeps over the box set, including the final clean one.
	Iterations int
	// Forced is the number of boxes dropped by the cleanup pass that runs
	// when the iteration cap is hit with overlaps left.
	Forced int
	Merges int
	Drops  int
	Shrink int
}

// Resolver removes every cross-class overlap.
type Resolver struct {
	cfg Config
	log *zap.Logger
}

// NewResolver creates a resolver. A nil logger disables logging.
func NewResolver(cfg Config, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cfg: cfg, log: log}
}

type slot struct {
	box   domain.Box
	score float64
	alive bool
}

type resolveState struct {
	slots  []slot
	idx    spatialIndex
	scorer Scorer
}

func (st *resolveState) set(i int, b domain.Box) {
	if st.slots[i].alive {
		st.idx.remove(st.slots[i].box.BBox, i)
	}
	st.slots[i] = slot{box: b, score: st.scorer.Score(b), alive: true}
	st.idx.insert(b.BBox, i)
}

func (st *resolveState) kill(i int) {
	if !st.slots[i].alive {
		return
	}
	st.idx.remove(st.slots[i].box.BBox, i)
	st.slots[i].alive = false
}

func (st *resolveState) better(i, j int) bool {
	a, b := st.slots[i], st.slots[j]
	return st.scorer.better(a.box, a.score, b.box, b.score)
}

// order returns alive slots best first.
func (st *resolveState) order() []int {
	var out []int
	for i, s := range st.slots {
		if s.alive {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return st.better(out[a], out[b]) })
	return out
}

// firstOverlap returns the best-ranked alive slot overlapping slot i.
func (st *resolveState) firstOverlap(i int, rank map[int]int) (int, bool) {
	best, found := -1, false
	for _, j := range st.idx.search(st.slots[i].box.BBox) {
		if j == i || !st.slots[j].alive {
			continue
		}
		if geometry.OverlapArea(st.slots[i].box.BBox, st.slots[j].box.BBox) <= 0 {
			continue
		}
		if !found || rankOf(rank, j) < rankOf(rank, best) || (rankOf(rank, j) == rankOf(rank, best) && j < best) {
			best, found = j, true
		}
	}
	return best, found
}

// rankOf returns j's position in the sweep order; slots created mid-sweep
// rank last.
func rankOf(rank map[int]int, j int) int {
	if r, ok := rank[j]; ok {
		return r
	}
	return math.MaxInt
}

// Resolve returns an overlap-free box set scored on page. The sweep loop
// is capped at 2*len(boxes) iterations; any overlap surviving the cap is
// removed by discarding the lower-ranked box of each pair.
func (r *Resolver) Resolve(ctx context.Context, boxes []domain.Box, page PageGeometry) (*ResolveResult, error) {
	st := &resolveState{
		slots:  make([]slot, 0, len(boxes)),
		scorer: NewScorer(r.cfg, page),
	}
	for _, b := range boxes {
		st.slots = append(st.slots, slot{})
		st.set(len(st.slots)-1, b)
	}

	res := &ResolveResult{}
	limit := 2 * len(boxes)
	if limit < 1 {
		limit = 1
	}

	clean := false
	for res.Iterations < limit {
		if err := ctx.Err(); err != nil {
			res.Boxes = st.collect()
			return res, fmt.Errorf("layout.Resolve: %w: %v", domain.ErrCanceled, err)
		}
		res.Iterations++
		if r.sweep(st, res) == 0 {
			clean = true
			break
		}
	}

	if !clean {
		r.log.Warn("overlap resolver hit its iteration cap",
			zap.Int("iterations", res.Iterations),
			zap.Int("boxes", len(boxes)),
		)
		res.Forced = r.discardRemaining(st)
	}

	res.Boxes = st.collect()
	if err := CheckNoOverlap(res.Boxes); err != nil {
		if r.cfg.Debug {
			return res, fmt.Errorf("layout.Resolve: %w: %v", domain.ErrInternal, err)
		}
		r.log.Warn("overlap post-condition failed", zap.Error(err))
	}
	return res, nil
}

// sweep visits alive slots best first and resolves the first overlap found
// for each. It returns the number of pairs resolved.
func (r *Resolver) sweep(st *resolveState, res *ResolveResult) int {
	order := st.order()
	rank := make(map[int]int, len(order))
	for pos, i := range order {
		rank[i] = pos
	}

	resolved := 0
	for _, i := range order {
		if !st.slots[i].alive {
			continue
		}
		j, ok := st.firstOverlap(i, rank)
		if !ok {
			continue
		}
		resolved++
		switch r.resolvePair(st, i, j) {
		case ActionMerge:
			res.Merges++
		case ActionDiscard:
			res.Drops++
		case ActionShrink:
			res.Shrink++
		}
	}
	return resolved
}

func (r *Resolver) resolvePair(st *resolveState, i, j int) Action {
	a, b := st.slots[i].box, st.slots[j].box
	info := Overlap(a.BBox, b.BBox, r.cfg.NestedRatio)

	if a.Label == b.Label {
		st.kill(j)
		st.set(i, domain.Box{
			ID:    MergedID([]string{a.ID, b.ID}),
			BBox:  geometry.Union(a.BBox, b.BBox),
			Label: a.Label,
			Score: math.Max(a.Score, b.Score),
		})
		return ActionMerge
	}

	if !info.Nested && (r.cfg.Policy.Kind == domain.PolicySplit || math.Max(info.RatioA, info.RatioB) < r.cfg.GrazingRatio) {
		na, nb := ShrinkApart(a.BBox, b.BBox)
		r.place(st, i, a, na)
		r.place(st, j, b, nb)
		return ActionShrink
	}

	if st.better(i, j) {
		st.kill(j)
	} else {
		st.kill(i)
	}
	return ActionDiscard
}

// place stores a shrunk box, dropping it when it falls under MinBoxArea.
func (r *Resolver) place(st *resolveState, i int, b domain.Box, bbox geometry.BBox) {
	if !bbox.IsValid() || bbox.Area() < r.cfg.MinBoxArea {
		st.kill(i)
		return
	}
	b.BBox = bbox
	st.set(i, b)
}

// ShrinkApart cuts a and b at the middle of their overlap along its shorter
// dimension so they become disjoint. The box starting further left (or
// higher) keeps the first part.
func ShrinkApart(a, b geometry.BBox) (geometry.BBox, geometry.BBox) {
	ov, ok := geometry.Intersection(a, b)
	if !ok {
		return a, b
	}
	if ov.Width() < ov.Height() {
		cut := (ov.X1 + ov.X2) / 2
		if a.X1 < b.X1 || (a.X1 == b.X1 && a.CenterX() <= b.CenterX()) {
			a.X2, b.X1 = cut, cut
		} else {
			b.X2, a.X1 = cut, cut
		}
		return a, b
	}
	cut := (ov.Y1 + ov.Y2) / 2
	if a.Y1 < b.Y1 || (a.Y1 == b.Y1 && a.CenterY() <= b.CenterY()) {
		a.Y2, b.Y1 = cut, cut
	} else {
		b.Y2, a.Y1 = cut, cut
	}
	return a, b
}

// discardRemaining drops the lower-ranked box of every pair that still
// overlaps. It returns the number of boxes dropped.
func (r *Resolver) discardRemaining(st *resolveState) int {
	dropped := 0
	for _, i := range st.order() {
		if !st.slots[i].alive {
			continue
		}
		for {
			j, ok := st.firstOverlap(i, nil)
			if !ok {
				break
			}
			loser := j
			if st.better(j, i) {
				loser = i
			}
			st.kill(loser)
			dropped++
			if loser == i {
				break
			}
		}
	}
	return dropped
}

func (st *resolveState) collect() []domain.Box {
	out := make([]domain.Box, 0, len(st.slots))
	for _, s := range st.slots {
		if s.alive {
			out = append(out, s.box)
		}
	}
	SortBoxes(out)
	return out
}
