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

// Merger fuses overlapping boxes that share a label.
type Merger struct {
	threshold float64
	mode      domain.MergeMode
	log       *zap.Logger
}

// NewMerger creates a merger. A nil logger disables logging.
func NewMerger(threshold float64, mode domain.MergeMode, log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	if mode == "" {
		mode = domain.MergeModeIoU
	}
	return &Merger{threshold: threshold, mode: mode, log: log}
}

// MergeRatio returns the value compared against the merge threshold for a
// and b: IoU, or the share of the smaller box covered by the other.
func MergeRatio(a, b geometry.BBox, mode domain.MergeMode) float64 {
	if mode == domain.MergeModeContainment {
		smaller := math.Min(a.Area(), b.Area())
		if smaller <= 0 {
			return 0
		}
		return geometry.OverlapArea(a, b) / smaller
	}
	return geometry.IoU(a, b)
}

func (m *Merger) matches(a, b geometry.BBox) bool {
	if m.threshold <= 0 {
		return true
	}
	return MergeRatio(a, b, m.mode) >= m.threshold
}

// Merge runs the same-class merge until no two boxes of one label reach the
// threshold. Output is sorted by (y1, x1, id). On cancellation the boxes
// merged so far are returned together with domain.ErrCanceled.
func (m *Merger) Merge(ctx context.Context, boxes []domain.Box) ([]domain.Box, error) {
	byLabel := make(map[domain.ClassLabel][]domain.Box)
	for _, b := range boxes {
		b.Label = domain.ParseClassLabel(string(b.Label))
		byLabel[b.Label] = append(byLabel[b.Label], b)
	}

	out := make([]domain.Box, 0, len(boxes))
	var canceled error
	for _, label := range domain.AllLabels {
		group := byLabel[label]
		if len(group) == 0 {
			continue
		}
		if canceled == nil {
			merged, err := m.mergeClass(ctx, group)
			if err != nil {
				canceled = err
			}
			group = merged
		}
		out = append(out, group...)
	}
	SortBoxes(out)
	return out, canceled
}

func (m *Merger) mergeClass(ctx context.Context, boxes []domain.Box) ([]domain.Box, error) {
	current := cloneBoxes(boxes)
	for pass := 0; ; pass++ {
		if err := ctx.Err(); err != nil {
			return current, fmt.Errorf("layout.Merge: %w: %v", domain.ErrCanceled, err)
		}
		next, merges := m.mergePass(current)
		current = next
		if merges == 0 {
			m.log.Debug("same-class merge converged",
				zap.String("label", string(boxes[0].Label)),
				zap.Int("in", len(boxes)),
				zap.Int("out", len(current)),
				zap.Int("passes", pass+1),
			)
			return current, nil
		}
	}
}

// mergePass seeds clusters in descending-area order and grows each one to
// its transitive closure among the boxes not yet claimed.
func (m *Merger) mergePass(boxes []domain.Box) ([]domain.Box, int) {
	sort.Slice(boxes, func(i, j int) bool {
		ai, aj := boxes[i].BBox.Area(), boxes[j].BBox.Area()
		if ai != aj {
			return ai > aj
		}
		return lessYXID(boxes[i], boxes[j])
	})

	var idx spatialIndex
	if m.threshold > 0 {
		for i, b := range boxes {
			idx.insert(b.BBox, i)
		}
	}

	claimed := make([]bool, len(boxes))
	out := make([]domain.Box, 0, len(boxes))
	merges := 0
	for seed := range boxes {
		if claimed[seed] {
			continue
		}
		claimed[seed] = true
		cluster := []int{seed}
		for q := 0; q < len(cluster); q++ {
			member := boxes[cluster[q]]
			for _, j := range m.candidates(&idx, member.BBox, len(boxes)) {
				if claimed[j] || !m.matches(member.BBox, boxes[j].BBox) {
					continue
				}
				claimed[j] = true
				cluster = append(cluster, j)
			}
		}
		if len(cluster) == 1 {
			out = append(out, boxes[seed])
			continue
		}
		merges++
		out = append(out, fuse(boxes, cluster))
	}
	return out, merges
}

// candidates returns slots that may match bbox, in ascending slot order so
// cluster growth is deterministic.
func (m *Merger) candidates(idx *spatialIndex, bbox geometry.BBox, n int) []int {
	if m.threshold <= 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	hits := idx.search(bbox)
	sort.Ints(hits)
	return hits
}

func fuse(boxes []domain.Box, cluster []int) domain.Box {
	ids := make([]string, 0, len(cluster))
	bbs := make([]geometry.BBox, 0, len(cluster))
	score := 0.0
	for _, i := range cluster {
		ids = append(ids, boxes[i].ID)
		bbs = append(bbs, boxes[i].BBox)
		score = math.Max(score, boxes[i].Score)
	}
	return domain.Box{
		ID:    MergedID(ids),
		BBox:  geometry.UnionAll(bbs),
		Label: boxes[cluster[0]].Label,
		Score: score,
	}
}
