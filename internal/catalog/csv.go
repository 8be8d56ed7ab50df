package catalog

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"

	"folio/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the elements.csv header row.
var columns = []string{
	"Element ID",
	"Page",
	"Type",
	"X1",
	"Y1",
	"X2",
	"Y2",
	"Confidence",
	"Reading Order",
	"Group",
	"Caption Of",
	"Image",
	"Content",
}

// CSVWriter wraps csv.Writer for exporting elements.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteElements converts elements to rows and writes them.
func (w *CSVWriter) WriteElements(elements []domain.Element) error {
	for i := range elements {
		if err := w.csv.Write(elementToRow(&elements[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

func elementToRow(el *domain.Element) []string {
	row := make([]string, len(columns))
	row[0] = el.ElementID
	row[1] = strconv.Itoa(el.PageNum)
	row[2] = string(el.ElementType)
	for i, v := range el.BBox {
		row[3+i] = formatCoord(v)
	}
	row[7] = strconv.FormatFloat(el.Confidence, 'f', 4, 64)
	row[8] = strconv.Itoa(el.ReadingOrder)
	row[9] = strconv.Itoa(el.GroupIndex)
	row[10] = deref(el.CaptionOf)
	row[11] = deref(el.ImagePath)
	row[12] = deref(el.Content)
	return row
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeName cleans a document name for use as a catalog directory or
// object prefix. Replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeName(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}
