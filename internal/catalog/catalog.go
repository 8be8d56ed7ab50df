// Package catalog turns refined pages into the on-disk catalog of a
// document: JSON indexes, stage audit files, extracted text, thumbnails and
// element exports.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"folio/internal/domain"
	"folio/internal/extract"
	"folio/internal/layout"
)

// PipelineVersion is recorded in every catalog's metadata.
const PipelineVersion = "folio-1"

// PageOutput is everything produced for one page.
type PageOutput struct {
	Result      *layout.Result
	Extractions map[string]extract.Extraction
	// Image is the page raster, if one was available. It feeds thumbnails.
	Image *domain.PageImage
}

// Source describes the PDF the catalog was built from.
type Source struct {
	Path       string    `json:"absolute_path"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified"`
}

// SkippedPage is a page left out of the catalog and why.
type SkippedPage struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

type Metadata struct {
	Created         time.Time     `json:"created"`
	DetectionDPI    int           `json:"detection_dpi"`
	TotalPages      int           `json:"total_pages"`
	PipelineVersion string        `json:"pipeline_version"`
	Source          string        `json:"source,omitempty"`
	SkippedPages    []SkippedPage `json:"skipped_pages,omitempty"`
}

// PageInfo is the per-page entry of catalog.json. Sizes are in points.
type PageInfo struct {
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	DetectionDPI int      `json:"detection_dpi"`
	TwoColumn    bool     `json:"two_column"`
	ElementIDs   []string `json:"element_ids"`
}

type Statistics struct {
	TotalElements   int            `json:"total_elements"`
	TextExtracted   int            `json:"text_extracted"`
	ImageReferences int            `json:"image_references"`
	ByType          map[string]int `json:"by_type"`
	ByPage          map[string]int `json:"by_page"`
}

// Catalog is the content of catalog.json.
type Catalog struct {
	Metadata   Metadata            `json:"metadata"`
	Pages      map[string]PageInfo `json:"pages"`
	Elements   []domain.Element    `json:"elements"`
	Statistics Statistics          `json:"statistics"`
}

// ElementID formats the id of the n-th element of a document (1-based),
// found on the given 1-based page.
func ElementID(pageNum, n int) string {
	return fmt.Sprintf("elem_%03d_%04d", pageNum, n)
}

// Build assembles the catalog for pages. Pages are taken in index order and
// elements in reading order; the element counter runs across the whole
// document. Page numbers in the catalog are 1-based.
func Build(created time.Time, detectionDPI int, src Source, pages []PageOutput, skipped []SkippedPage) *Catalog {
	sorted := make([]PageOutput, 0, len(pages))
	for _, p := range pages {
		if p.Result != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.Page.Index < sorted[j].Result.Page.Index
	})

	cat := &Catalog{
		Metadata: Metadata{
			Created:         created,
			DetectionDPI:    detectionDPI,
			TotalPages:      len(sorted) + len(skipped),
			PipelineVersion: PipelineVersion,
			Source:          src.Filename,
			SkippedPages:    skipped,
		},
		Pages:    make(map[string]PageInfo, len(sorted)),
		Elements: []domain.Element{},
		Statistics: Statistics{
			ByType: map[string]int{},
			ByPage: map[string]int{},
		},
	}

	counter := 0
	for _, po := range sorted {
		page := po.Result.Page
		pageNum := page.Index + 1
		key := strconv.Itoa(pageNum)
		info := PageInfo{
			Width:        page.Width,
			Height:       page.Height,
			DetectionDPI: page.DetectionDPI,
			TwoColumn:    po.Result.Columns.TwoColumn,
			ElementIDs:   []string{},
		}

		groupOf, captionOf := groupIndex(page.Groups)
		elementOf := make(map[string]string, len(page.ReadingOrder))
		start := len(cat.Elements)
		for rank, id := range page.ReadingOrder {
			b, ok := page.BoxByID(id)
			if !ok {
				continue
			}
			counter++
			eid := ElementID(pageNum, counter)
			elementOf[id] = eid

			el := domain.Element{
				ElementID:    eid,
				BoxID:        b.ID,
				PageNum:      pageNum,
				ElementType:  b.Label,
				BBox:         b.BBox.Clamp().ToPoints(),
				Confidence:   b.Score,
				ReadingOrder: rank,
				GroupIndex:   groupOf[id],
			}
			el.SyncColumns()
			if ex, ok := po.Extractions[id]; ok {
				el.Content = ex.Text
				if ex.Image != nil {
					path := FigurePath(eid)
					el.ImagePath = &path
				}
			}
			switch {
			case el.Content != nil:
				cat.Statistics.TextExtracted++
			case b.Label == domain.LabelFigure || b.Label == domain.LabelTable:
				cat.Statistics.ImageReferences++
			}

			cat.Elements = append(cat.Elements, el)
			info.ElementIDs = append(info.ElementIDs, eid)
			cat.Statistics.ByType[string(b.Label)]++
		}
		for i := start; i < len(cat.Elements); i++ {
			if primary, ok := captionOf[cat.Elements[i].BoxID]; ok {
				if eid, ok := elementOf[primary]; ok {
					cat.Elements[i].CaptionOf = &eid
				}
			}
		}

		cat.Pages[key] = info
		cat.Statistics.ByPage[key] = len(info.ElementIDs)
	}
	cat.Statistics.TotalElements = counter
	return cat
}

// groupIndex maps box ids to the index of their group, and caption ids to
// the id of their primary.
func groupIndex(groups []domain.SemanticGroup) (map[string]int, map[string]string) {
	groupOf := make(map[string]int, len(groups))
	captionOf := make(map[string]string)
	for i, g := range groups {
		groupOf[g.Primary.ID] = i
		if g.Caption != nil {
			groupOf[g.Caption.ID] = i
			captionOf[g.Caption.ID] = g.Primary.ID
		}
	}
	return groupOf, captionOf
}

// IndexByType lists element ids per element type, in catalog order.
func (c *Catalog) IndexByType() map[string][]string {
	idx := map[string][]string{}
	for _, el := range c.Elements {
		idx[string(el.ElementType)] = append(idx[string(el.ElementType)], el.ElementID)
	}
	return idx
}

// TextElements returns the elements that carry extracted text.
func (c *Catalog) TextElements() []domain.Element {
	out := []domain.Element{}
	for _, el := range c.Elements {
		if el.Content != nil {
			out = append(out, el)
		}
	}
	return out
}

// FigurePath is where a figure crop is stored, relative to the catalog root.
func FigurePath(elementID string) string {
	return "figures/" + elementID + ".png"
}

// ThumbnailPath is where an element preview is stored.
func ThumbnailPath(elementID string) string {
	return "thumbnails/" + elementID + ".png"
}

// TextPath is where an element's extracted text is stored.
func TextPath(elementID string) string {
	return "text_content/" + elementID + ".txt"
}
