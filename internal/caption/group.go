package caption

import (
	"fmt"
	"math"

	"folio/internal/domain"
)

// Pair links a primary box to its caption by box id.
type Pair struct {
	PrimaryID  string  `json:"primary_id"`
	CaptionID  string  `json:"caption_id"`
	Confidence float64 `json:"confidence"`
}

// ValidatePairs checks pairs against the page: primaries are Figure or
// Table boxes, captions are Text boxes, the two differ, confidences lie in
// [0,1], and no box is used twice.
func ValidatePairs(boxes []domain.Box, pairs []Pair) error {
	byID := make(map[string]domain.Box, len(boxes))
	for _, b := range boxes {
		byID[b.ID] = b
	}
	used := make(map[string]bool, 2*len(pairs))
	for _, p := range pairs {
		primary, ok := byID[p.PrimaryID]
		if !ok {
			return fmt.Errorf("%w: unknown primary %q", domain.ErrInvalidOracleResponse, p.PrimaryID)
		}
		if !primary.Label.IsPrimary() {
			return fmt.Errorf("%w: primary %q is %s", domain.ErrInvalidOracleResponse, p.PrimaryID, primary.Label)
		}
		caption, ok := byID[p.CaptionID]
		if !ok {
			return fmt.Errorf("%w: unknown caption %q", domain.ErrInvalidOracleResponse, p.CaptionID)
		}
		if caption.Label != domain.LabelText {
			return fmt.Errorf("%w: caption %q is %s", domain.ErrInvalidOracleResponse, p.CaptionID, caption.Label)
		}
		if p.PrimaryID == p.CaptionID {
			return fmt.Errorf("%w: %q captions itself", domain.ErrInvalidOracleResponse, p.PrimaryID)
		}
		if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("%w: confidence %v outside [0,1]", domain.ErrInvalidOracleResponse, p.Confidence)
		}
		for _, id := range []string{p.PrimaryID, p.CaptionID} {
			if used[id] {
				return fmt.Errorf("%w: box %q used in more than one association", domain.ErrInvalidOracleResponse, id)
			}
			used[id] = true
		}
	}
	return nil
}

// Apply returns page with groups built from pairs. Each caption moves to
// directly after its primary in the reading order; every other box keeps
// its place. Groups follow the reading order of their primaries, and boxes
// not in any pair become standalone groups with confidence 1. pairs must
// already be valid.
func Apply(page domain.Page, pairs []Pair) domain.Page {
	byID := make(map[string]domain.Box, len(page.Boxes))
	for _, b := range page.Boxes {
		byID[b.ID] = b
	}
	captionOf := make(map[string]Pair, len(pairs))
	isCaption := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		captionOf[p.PrimaryID] = p
		isCaption[p.CaptionID] = true
	}

	order := make([]string, 0, len(page.ReadingOrder))
	groups := make([]domain.SemanticGroup, 0, len(page.ReadingOrder))
	for _, id := range page.ReadingOrder {
		if isCaption[id] {
			continue
		}
		order = append(order, id)
		g := domain.SemanticGroup{Primary: byID[id], Confidence: 1}
		if p, ok := captionOf[id]; ok {
			c := byID[p.CaptionID]
			g.Caption = &c
			g.Confidence = p.Confidence
			order = append(order, p.CaptionID)
		}
		groups = append(groups, g)
	}

	page.ReadingOrder = order
	page.Groups = groups
	return page
}
