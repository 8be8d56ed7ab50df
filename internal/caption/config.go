// Package caption pairs figures and tables with the text regions that
// caption them and builds the semantic groups handed to extractors.
package caption

// Config holds the geometric caption thresholds, in detection pixels.
type Config struct {
	// Tolerance lets a caption overlap its primary by a few pixels.
	Tolerance float64
	// MaxDistance is the largest vertical gap between primary and caption.
	MaxDistance float64

	BaseLikelihood float64
	MinLikelihood  float64

	HeightMin, HeightMax float64
	HeightBonus          float64
	WidthMin, WidthMax   float64
	WidthBonus           float64
	AlignTolerance       float64
	AlignBonus           float64

	// AlignedMultiplier scales the score of centre-aligned candidates.
	AlignedMultiplier float64
	// BelowMultiplier scales the score of candidates below the primary.
	BelowMultiplier float64
}

// DefaultConfig returns the standard caption thresholds.
func DefaultConfig() Config {
	return Config{
		Tolerance:         10,
		MaxDistance:       150,
		BaseLikelihood:    0.5,
		MinLikelihood:     0.6,
		HeightMin:         20,
		HeightMax:         100,
		HeightBonus:       0.2,
		WidthMin:          200,
		WidthMax:          1200,
		WidthBonus:        0.2,
		AlignTolerance:    50,
		AlignBonus:        0.1,
		AlignedMultiplier: 1.2,
		BelowMultiplier:   1.5,
	}
}
