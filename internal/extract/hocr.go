package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"folio/internal/geometry"
	"folio/internal/port"
)

// hocrWord is one ocrx_word span with its line number.
type hocrWord struct {
	text string
	line int
	bbox geometry.BBox
}

// HOCRExtractor reads text from per-page hOCR files, such as those produced
// by Tesseract or an OCR service, named page_0000.hocr, page_0001.hocr and
// so on. Coordinates in the files are at DPI. It implements
// port.TextExtractor and port.TableExtractor.
type HOCRExtractor struct {
	dir string
	dpi int

	mu    sync.Mutex
	pages map[int][]hocrWord
}

// NewHOCRExtractor creates an extractor over the hOCR files in dir.
func NewHOCRExtractor(dir string, dpi int) *HOCRExtractor {
	return &HOCRExtractor{dir: dir, dpi: dpi, pages: map[int][]hocrWord{}}
}

// HOCRFileName is the file name expected for a page.
func HOCRFileName(page int) string {
	return fmt.Sprintf("page_%04d.hocr", page)
}

// ExtractText returns the words whose centres fall inside the region, one
// hOCR line per output line.
func (e *HOCRExtractor) ExtractText(_ context.Context, in port.RegionInput) (string, error) {
	lines, err := e.lines(in)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractTable returns the region's lines with cells separated by tabs.
// hOCR has no cell structure, so each word becomes a cell.
func (e *HOCRExtractor) ExtractTable(_ context.Context, in port.RegionInput) (string, error) {
	lines, err := e.lines(in)
	if err != nil {
		return "", err
	}
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(l, " ", "\t")
	}
	return strings.Join(lines, "\n"), nil
}

func (e *HOCRExtractor) lines(in port.RegionInput) ([]string, error) {
	words, err := e.page(in.Page)
	if err != nil {
		return nil, err
	}
	region := geometry.Scale(in.BBox, in.BBox.DPI, e.dpi)

	var lines []string
	var cur []string
	last := -1
	for _, w := range words {
		cx, cy := w.bbox.CenterX(), w.bbox.CenterY()
		if cx < region.X1 || cx > region.X2 || cy < region.Y1 || cy > region.Y2 {
			continue
		}
		if w.line != last && len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
			cur = cur[:0]
		}
		last = w.line
		cur = append(cur, w.text)
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines, nil
}

func (e *HOCRExtractor) page(index int) ([]hocrWord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if words, ok := e.pages[index]; ok {
		return words, nil
	}
	data, err := os.ReadFile(filepath.Join(e.dir, HOCRFileName(index)))
	if err != nil {
		return nil, fmt.Errorf("extract.HOCR: %w", err)
	}
	words, err := parseHOCRWords(data, e.dpi)
	if err != nil {
		return nil, fmt.Errorf("extract.HOCR: page %d: %w", index, err)
	}
	e.pages[index] = words
	return words, nil
}

// parseHOCRWords returns the ocrx_word spans of an hOCR document in document
// order. Latin-1 documents are decoded to UTF-8 first.
func parseHOCRWords(data []byte, dpi int) ([]hocrWord, error) {
	if isLatin1(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding latin-1: %w", err)
		}
		data = decoded
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var words []hocrWord
	line := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class, title := attr(n, "class"), attr(n, "title")
			switch {
			case strings.Contains(class, "ocr_line") || strings.Contains(class, "ocr_caption") || strings.Contains(class, "ocr_header"):
				line++
			case strings.Contains(class, "ocrx_word"):
				if b, ok := titleBBox(title, dpi); ok {
					if text := strings.TrimSpace(textOf(n)); text != "" {
						words = append(words, hocrWord{text: text, line: line, bbox: b})
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return words, nil
}

func isLatin1(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	s := strings.ToLower(string(head))
	return strings.Contains(s, "charset=iso-8859-1") || strings.Contains(s, "charset=latin1")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// titleBBox reads the "bbox x1 y1 x2 y2" property of an hOCR title.
func titleBBox(title string, dpi int) (geometry.BBox, bool) {
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(part)
		if len(fields) < 5 || fields[0] != "bbox" {
			continue
		}
		var c [4]float64
		for i := range c {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return geometry.BBox{}, false
			}
			c[i] = v
		}
		b := geometry.New(c[0], c[1], c[2], c[3], dpi)
		return b, b.IsValid()
	}
	return geometry.BBox{}, false
}
