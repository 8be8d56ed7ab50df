// Package layout turns raw detector boxes into a clean, non-overlapping,
// reading-ordered page. The stages run in a fixed sequence:
//
//	validate -> merge (same class) -> resolve (cross class) -> order -> associate captions
//
// All thresholds are in detection pixels at the page's detection DPI.
package layout

import (
	"fmt"

	"folio/internal/domain"
)

// Defaults shared by the CLI, the HTTP API and tests.
const (
	DefaultMergeThreshold            = 0.1
	DefaultContainmentMergeThreshold = 0.5
	DefaultMinBoxArea                = 100.0
	DefaultMaxBoxes                  = 10000
	DefaultListAbstractPenalty       = 0.6
)

// DefaultMergeThresholdFor is the merge threshold a mode runs with when
// none is configured.
func DefaultMergeThresholdFor(mode domain.MergeMode) float64 {
	if mode == domain.MergeModeContainment {
		return DefaultContainmentMergeThreshold
	}
	return DefaultMergeThreshold
}

// Config holds every threshold the core uses. A Config is a value: build it
// once at startup and pass it down; nothing in this package mutates it.
type Config struct {
	// MergeThreshold gates same-class merging. IoU in MergeModeIoU, coverage
	// of the smaller box in MergeModeContainment.
	MergeThreshold float64
	MergeMode      domain.MergeMode

	Policy domain.ScoringPolicy

	// MinBoxArea drops shrunk fragments smaller than this (pixels squared).
	MinBoxArea float64

	// MaxBoxes caps the number of detections accepted per page.
	MaxBoxes int

	// NestedRatio is the coverage at which one box counts as inside another.
	NestedRatio float64

	// GrazingRatio is the coverage below which two boxes are shrunk apart
	// instead of one being discarded.
	GrazingRatio float64

	Columns ColumnConfig

	// AbstractDetector, when set, marks List boxes that look like an
	// abstract; their score is multiplied by ListAbstractPenalty.
	AbstractDetector    AbstractDetector
	ListAbstractPenalty float64

	// Debug turns post-condition failures into ErrInternal instead of a
	// logged warning.
	Debug bool
}

// ColumnConfig holds the column detector and reading-order thresholds.
type ColumnConfig struct {
	// CandidateWidthRatio: Text/List boxes narrower than this share of the
	// page width vote for columns.
	// Default: 0.6
	CandidateWidthRatio float64

	// MinCandidates below which the page is single column.
	// Default: 4
	MinCandidates int

	// GapFactor: an x1 gap is significant above GapFactor * mean candidate width.
	// Default: 0.5
	GapFactor float64

	// MidlineMin and MidlineMax bound the accepted midline as page-width ratios.
	// Default: 0.3 and 0.7
	MidlineMin float64
	MidlineMax float64

	// SpanningWidthRatio: boxes wider than this share of the page span both columns.
	// Default: 0.6
	SpanningWidthRatio float64

	// SpanningMargin is how far past the midline a box must reach on both
	// sides to count as spanning.
	// Default: 50
	SpanningMargin float64

	// RowTolerance groups boxes into rows in single-column ordering.
	// Default: 20
	RowTolerance float64

	// FullWidthRatio and BottomRegionRatio define the full-width-bottom rule
	// for titles.
	// Default: 0.75 and 0.8
	FullWidthRatio    float64
	BottomRegionRatio float64
}

// DefaultColumnConfig returns the standard column thresholds.
func DefaultColumnConfig() ColumnConfig {
	return ColumnConfig{
		CandidateWidthRatio: 0.6,
		MinCandidates:       4,
		GapFactor:           0.5,
		MidlineMin:          0.3,
		MidlineMax:          0.7,
		SpanningWidthRatio:  0.6,
		SpanningMargin:      50,
		RowTolerance:        20,
		FullWidthRatio:      0.75,
		BottomRegionRatio:   0.8,
	}
}

// DefaultConfig returns the standard configuration: IoU merge at 0.1,
// Weighted{0.7, 0.3} resolution, no abstract hook.
func DefaultConfig() Config {
	return Config{
		MergeThreshold:      DefaultMergeThreshold,
		MergeMode:           domain.MergeModeIoU,
		Policy:              domain.WeightedPolicy(),
		MinBoxArea:          DefaultMinBoxArea,
		MaxBoxes:            DefaultMaxBoxes,
		NestedRatio:         0.95,
		GrazingRatio:        0.2,
		Columns:             DefaultColumnConfig(),
		ListAbstractPenalty: DefaultListAbstractPenalty,
	}
}

// Validate rejects configurations the stages cannot run with.
func (c Config) Validate() error {
	if c.MergeThreshold < 0 || c.MergeThreshold > 1 {
		return fmt.Errorf("%w: merge threshold %v outside [0,1]", domain.ErrInvalidInput, c.MergeThreshold)
	}
	if _, err := domain.ParseMergeMode(string(c.MergeMode)); err != nil {
		return err
	}
	if _, err := domain.ParsePolicyKind(string(c.Policy.Kind)); err != nil {
		return err
	}
	if c.Policy.Kind == domain.PolicyWeighted {
		if c.Policy.ConfidenceWeight < 0 || c.Policy.AreaWeight < 0 || c.Policy.ConfidenceWeight+c.Policy.AreaWeight == 0 {
			return fmt.Errorf("%w: weighted policy needs non-negative weights with a positive sum", domain.ErrInvalidInput)
		}
		if c.Policy.AreaNorm <= 0 {
			return fmt.Errorf("%w: area normaliser must be positive", domain.ErrInvalidInput)
		}
	}
	if c.MaxBoxes <= 0 {
		return fmt.Errorf("%w: max boxes must be positive", domain.ErrInvalidInput)
	}
	if c.MinBoxArea < 0 {
		return fmt.Errorf("%w: min box area must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// WithPolicy returns a copy of c using policy.
func (c Config) WithPolicy(policy domain.ScoringPolicy) Config {
	c.Policy = policy
	return c
}

// WithMergeThreshold returns a copy of c using threshold.
func (c Config) WithMergeThreshold(threshold float64) Config {
	c.MergeThreshold = threshold
	return c
}
