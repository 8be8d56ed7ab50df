package domain

// Defaults for the weighted scoring policy.
const (
	DefaultConfidenceWeight = 0.7
	DefaultAreaWeight       = 0.3
	DefaultAreaNorm         = 4e6
)

// ScoringPolicy drives the overlap resolver's keep/discard decisions.
// ConfidenceWeight, AreaWeight, AreaNorm and TypeBonus apply to
// PolicyWeighted only.
type ScoringPolicy struct {
	Kind             PolicyKind             `json:"kind"`
	ConfidenceWeight float64                `json:"confidence_weight,omitempty"`
	AreaWeight       float64                `json:"area_weight,omitempty"`
	AreaNorm         float64                `json:"area_norm,omitempty"`
	TypeBonus        map[ClassLabel]float64 `json:"type_bonus,omitempty"`
}

// WeightedPolicy returns the default Weighted{0.7, 0.3} policy.
func WeightedPolicy() ScoringPolicy {
	return ScoringPolicy{
		Kind:             PolicyWeighted,
		ConfidenceWeight: DefaultConfidenceWeight,
		AreaWeight:       DefaultAreaWeight,
		AreaNorm:         DefaultAreaNorm,
	}
}

// PolicyOf returns a policy of the given kind; Weighted gets default weights.
func PolicyOf(kind PolicyKind) ScoringPolicy {
	if kind == PolicyWeighted {
		return WeightedPolicy()
	}
	return ScoringPolicy{Kind: kind}
}
