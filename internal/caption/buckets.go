package caption

import "folio/internal/domain"

// Buckets splits groups by what extracts them. Each bucket keeps the
// reading order of the input.
type Buckets struct {
	Figures []domain.SemanticGroup `json:"figures"`
	Tables  []domain.SemanticGroup `json:"tables"`
	Text    []domain.SemanticGroup `json:"text"`
	Other   []domain.SemanticGroup `json:"other"`
}

// Bucketize sorts groups into extraction buckets by primary label.
func Bucketize(groups []domain.SemanticGroup) Buckets {
	var b Buckets
	for _, g := range groups {
		switch {
		case g.Primary.Label == domain.LabelFigure:
			b.Figures = append(b.Figures, g)
		case g.Primary.Label == domain.LabelTable:
			b.Tables = append(b.Tables, g)
		case g.Primary.Label.IsTextual():
			b.Text = append(b.Text, g)
		default:
			b.Other = append(b.Other, g)
		}
	}
	return b
}
