package layout

import (
	"fmt"

	"folio/internal/domain"
	"folio/internal/geometry"
)

// CheckBoxes fails on any empty or inverted box.
func CheckBoxes(boxes []domain.Box) error {
	for _, b := range boxes {
		if !b.BBox.IsValid() {
			return fmt.Errorf("box %s is empty or inverted: %s", b.ID, b.BBox)
		}
	}
	return nil
}

// CheckSameClass fails when two boxes of one label still reach the merge
// threshold.
func CheckSameClass(boxes []domain.Box, threshold float64, mode domain.MergeMode) error {
	if threshold <= 0 {
		seen := make(map[domain.ClassLabel]string)
		for _, b := range boxes {
			if other, ok := seen[b.Label]; ok {
				return fmt.Errorf("boxes %s and %s share label %s", other, b.ID, b.Label)
			}
			seen[b.Label] = b.ID
		}
		return nil
	}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			a, b := boxes[i], boxes[j]
			if a.Label != b.Label {
				continue
			}
			if r := MergeRatio(a.BBox, b.BBox, mode); r >= threshold {
				return fmt.Errorf("boxes %s and %s (%s) have merge ratio %.4f >= %.4f", a.ID, b.ID, a.Label, r, threshold)
			}
		}
	}
	return nil
}

// CheckNoOverlap fails when any two boxes share a positive area.
func CheckNoOverlap(boxes []domain.Box) error {
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if ov := geometry.OverlapArea(boxes[i].BBox, boxes[j].BBox); ov > 0 {
				return fmt.Errorf("boxes %s and %s overlap by %.2f", boxes[i].ID, boxes[j].ID, ov)
			}
		}
	}
	return nil
}

// CheckPermutation fails unless order lists every box id exactly once.
func CheckPermutation(boxes []domain.Box, order []string) error {
	if len(order) != len(boxes) {
		return fmt.Errorf("reading order has %d ids for %d boxes", len(order), len(boxes))
	}
	want := make(map[string]bool, len(boxes))
	for _, b := range boxes {
		want[b.ID] = true
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if !want[id] {
			return fmt.Errorf("reading order has unknown id %s", id)
		}
		if seen[id] {
			return fmt.Errorf("reading order repeats id %s", id)
		}
		seen[id] = true
	}
	return nil
}

// CheckGroups fails unless every box belongs to exactly one group and every
// caption is a Text box distinct from its primary.
func CheckGroups(boxes []domain.Box, groups []domain.SemanticGroup) error {
	want := make(map[string]bool, len(boxes))
	for _, b := range boxes {
		want[b.ID] = true
	}
	seen := make(map[string]bool, len(boxes))
	for _, g := range groups {
		if g.Confidence < 0 || g.Confidence > 1 {
			return fmt.Errorf("group %s has confidence %v outside [0,1]", g.Primary.ID, g.Confidence)
		}
		if g.Caption != nil {
			if g.Caption.Label != domain.LabelText {
				return fmt.Errorf("caption %s of %s is %s, not Text", g.Caption.ID, g.Primary.ID, g.Caption.Label)
			}
			if g.Caption.ID == g.Primary.ID {
				return fmt.Errorf("group %s captions itself", g.Primary.ID)
			}
		}
		for _, id := range g.Members() {
			if !want[id] {
				return fmt.Errorf("group member %s is not a surviving box", id)
			}
			if seen[id] {
				return fmt.Errorf("box %s belongs to more than one group", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%d of %d boxes are not in any group", len(want)-len(seen), len(want))
	}
	return nil
}
