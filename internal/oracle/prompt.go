package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"folio/internal/domain"
	"folio/internal/port"
)

// BuildCaptionPrompt returns the caption association prompt for an annotated
// page image. Every region is listed with its short id so the model can only
// answer with ids that are drawn on the image.
func BuildCaptionPrompt(boxes []port.AnnotatedBox) string {
	var regions strings.Builder
	for _, b := range boxes {
		fmt.Fprintf(&regions, "- %s: %s at [%.0f, %.0f, %.0f, %.0f]\n",
			b.ID, b.Label, b.BBox[0], b.BBox[1], b.BBox[2], b.BBox[3])
	}

	return `You are a document layout assistant. The image is one page of a document. Every detected region is outlined and labelled with a short id: F = figure, T = table, t = text, H = title, L = list, U = unknown.

Decide which text region, if any, is the caption of each figure and table.

RULES:
- Only figures (F) and tables (T) can own a caption.
- Only text regions (t) can be captions.
- A text region captions at most one figure or table, and each figure or table has at most one caption.
- Captions usually start with "Figure", "Fig.", "Table" or a number, and sit directly above or below their figure or table.
- Leave a figure or table unmatched rather than guessing.
- Use only ids from the region list below.

Regions (pixel coordinates x1, y1, x2, y2):
` + regions.String() + `
Return ONLY valid JSON with no markdown formatting, no code fences and no explanation, using this schema:
{
  "associations": [
    {"element_id": "F0", "caption_id": "t1", "confidence": 0.0, "reasoning": ""}
  ],
  "unmatched_figures_tables": [],
  "identified_captions": []
}`
}

// captionAnswer is the JSON document the prompt asks for.
type captionAnswer struct {
	Associations []port.OracleAssociation `json:"associations"`
	Unmatched    []string                 `json:"unmatched_figures_tables"`
	Captions     []string                 `json:"identified_captions"`
}

// ParseAnswer decodes the model's JSON text. Code fences are tolerated since
// some models add them despite the prompt.
func ParseAnswer(text, model string) (*port.OracleOutput, error) {
	text = stripFences(text)
	var ans captionAnswer
	if err := json.Unmarshal([]byte(text), &ans); err != nil {
		return nil, fmt.Errorf("%w: parsing LLM JSON output: %v (raw: %s)", domain.ErrInvalidOracleResponse, err, Truncate(text, 500))
	}
	return &port.OracleOutput{
		Associations: ans.Associations,
		Unmatched:    ans.Unmatched,
		ModelUsed:    model,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Truncate shortens s to maxLen bytes for error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
