package domain

import (
	"fmt"
	"strings"
)

// ClassLabel is the closed set of region classes emitted by the detector.
type ClassLabel string

const (
	LabelText    ClassLabel = "Text"
	LabelTitle   ClassLabel = "Title"
	LabelList    ClassLabel = "List"
	LabelTable   ClassLabel = "Table"
	LabelFigure  ClassLabel = "Figure"
	LabelUnknown ClassLabel = "Unknown"
)

// AllLabels lists every label in a fixed order used for reports.
var AllLabels = []ClassLabel{LabelText, LabelTitle, LabelList, LabelTable, LabelFigure, LabelUnknown}

// priorityRank is read-only after init.
var priorityRank = map[ClassLabel]int{
	LabelTitle:   5,
	LabelTable:   4,
	LabelFigure:  4,
	LabelList:    3,
	LabelText:    2,
	LabelUnknown: 1,
}

// ParseClassLabel maps a detector string onto the closed label set. Matching
// is case-insensitive; anything unrecognised becomes LabelUnknown.
func ParseClassLabel(s string) ClassLabel {
	s = strings.TrimSpace(s)
	for _, l := range AllLabels {
		if strings.EqualFold(s, string(l)) {
			return l
		}
	}
	return LabelUnknown
}

// Priority returns the label's rank for the Priority policy and tie-breaks.
func (l ClassLabel) Priority() int {
	if r, ok := priorityRank[l]; ok {
		return r
	}
	return priorityRank[LabelUnknown]
}

// IsTextual reports whether the label is routed to a text extractor.
func (l ClassLabel) IsTextual() bool {
	return l == LabelText || l == LabelTitle || l == LabelList
}

// IsPrimary reports whether the label can own a caption.
func (l ClassLabel) IsPrimary() bool {
	return l == LabelFigure || l == LabelTable
}

// PolicyKind selects how the overlap resolver scores competing boxes.
type PolicyKind string

const (
	PolicyPriority  PolicyKind = "priority"
	PolicyLarger    PolicyKind = "larger"
	PolicyConfident PolicyKind = "confident"
	PolicyWeighted  PolicyKind = "weighted"
	PolicySplit     PolicyKind = "split"
)

// ParsePolicyKind validates a policy name.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch k := PolicyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PolicyPriority, PolicyLarger, PolicyConfident, PolicyWeighted, PolicySplit:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidInput, s)
}

// MergeMode selects the same-class merge criterion.
type MergeMode string

const (
	MergeModeIoU         MergeMode = "iou"
	MergeModeContainment MergeMode = "containment"
)

// ParseMergeMode validates a merge mode name.
func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MergeModeIoU, MergeModeContainment:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown merge mode %q", ErrInvalidInput, s)
}

// CaptionMode selects the caption associator.
type CaptionMode string

const (
	CaptionsGeometric CaptionMode = "geometric"
	CaptionsVision    CaptionMode = "vision"
	CaptionsNone      CaptionMode = "none"
)

// ParseCaptionMode validates a caption mode name.
func ParseCaptionMode(s string) (CaptionMode, error) {
	switch m := CaptionMode(strings.ToLower(strings.TrimSpace(s))); m {
	case CaptionsGeometric, CaptionsVision, CaptionsNone:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown caption mode %q", ErrInvalidInput, s)
}
