package port

import (
	"context"

	"folio/internal/domain"
)

// AnnotatedBox is a region drawn on the oracle image. ID is the short
// label printed next to it (for example "F0" or "t3"); BBox is in image
// pixels.
type AnnotatedBox struct {
	ID    string
	Label domain.ClassLabel
	BBox  [4]float64
}

// OracleInput carries an annotated page raster and the regions drawn on it.
type OracleInput struct {
	Image       []byte
	ContentType string
	Width       int
	Height      int
	Boxes       []AnnotatedBox
}

// OracleAssociation pairs a primary region with its caption by short id.
type OracleAssociation struct {
	PrimaryID  string  `json:"element_id"`
	CaptionID  string  `json:"caption_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// OracleOutput is the oracle's raw answer. It is untrusted until validated.
type OracleOutput struct {
	Associations []OracleAssociation
	Unmatched    []string
	ModelUsed    string
}

// CaptionOracle abstracts an external decision source for caption
// association.
type CaptionOracle interface {
	Associate(ctx context.Context, input OracleInput) (*OracleOutput, error)
}
