package domain

import (
	"image"
	"time"

	"github.com/google/uuid"

	"folio/internal/geometry"
)

// Box is one detected or derived layout region. Coordinates are in detection
// pixels at BBox.DPI.
type Box struct {
	ID    string        `json:"id"`
	BBox  geometry.BBox `json:"bbox"`
	Label ClassLabel    `json:"label"`
	Score float64       `json:"score"`
}

// SemanticGroup is a primary region with an optional caption.
type SemanticGroup struct {
	Primary    Box     `json:"primary"`
	Caption    *Box    `json:"caption,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Members returns the ids owned by the group.
func (g SemanticGroup) Members() []string {
	if g.Caption == nil {
		return []string{g.Primary.ID}
	}
	return []string{g.Primary.ID, g.Caption.ID}
}

// Page is the refined layout of one PDF page. Width and Height are in PDF
// points; every box shares DetectionDPI.
type Page struct {
	Index        int             `json:"index"`
	Width        float64         `json:"width"`
	Height       float64         `json:"height"`
	DetectionDPI int             `json:"detection_dpi"`
	Boxes        []Box           `json:"boxes"`
	ReadingOrder []string        `json:"reading_order"`
	Groups       []SemanticGroup `json:"groups"`
	// Partial is set when refinement stopped early; such a page must not be
	// persisted as final.
	Partial bool `json:"partial,omitempty"`
}

// BoxByID returns the box with id, if present.
func (p Page) BoxByID(id string) (Box, bool) {
	for _, b := range p.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

// PageImage is a raster of a page and the DPI it was rendered at.
type PageImage struct {
	Image image.Image
	DPI   int
}

// Detection is one raw record from the upstream layout detector.
type Detection struct {
	BBox  []float64 `json:"bbox" yaml:"bbox"`
	Label string    `json:"label" yaml:"label"`
	Score float64   `json:"score" yaml:"score"`
	// DPI is the resolution the record was produced at; 0 means the page's
	// detection DPI.
	DPI int `json:"dpi,omitempty" yaml:"dpi,omitempty"`
}

// PageInput is a page as it arrives from the detector.
type PageInput struct {
	Index        int         `json:"index" yaml:"index"`
	Width        float64     `json:"width" yaml:"width"`
	Height       float64     `json:"height" yaml:"height"`
	DetectionDPI int         `json:"detection_dpi" yaml:"detection_dpi"`
	Detections   []Detection `json:"detections" yaml:"detections"`
	// ImagePath optionally points at a raster of the page, used by the vision
	// caption oracle and the figure cropper.
	ImagePath string `json:"image_path,omitempty" yaml:"image_path,omitempty"`
	ImageDPI  int    `json:"image_dpi,omitempty" yaml:"image_dpi,omitempty"`
}

// DocumentInput is the full detector output for one PDF.
type DocumentInput struct {
	SourcePath   string      `json:"source_path" yaml:"source_path"`
	DetectionDPI int         `json:"detection_dpi" yaml:"detection_dpi"`
	Pages        []PageInput `json:"pages" yaml:"pages"`
}

// Document is a persisted catalog header.
type Document struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Filename        string    `db:"filename" json:"filename"`
	SourcePath      string    `db:"source_path" json:"source_path"`
	SizeBytes       int64     `db:"size_bytes" json:"size_bytes"`
	DetectionDPI    int       `db:"detection_dpi" json:"detection_dpi"`
	TotalPages      int       `db:"total_pages" json:"total_pages"`
	SkippedPages    int       `db:"skipped_pages" json:"skipped_pages"`
	TotalElements   int       `db:"total_elements" json:"total_elements"`
	PipelineVersion string    `db:"pipeline_version" json:"pipeline_version"`
	CatalogURI      string    `db:"catalog_uri" json:"catalog_uri"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	DownloadURL     string    `db:"-" json:"download_url,omitempty"`
}

// Element is one surviving box as persisted in a catalog. BBox is in PDF
// points.
type Element struct {
	ElementID    string     `db:"element_id" json:"element_id"`
	DocumentID   uuid.UUID  `db:"document_id" json:"-"`
	BoxID        string     `db:"box_id" json:"box_id"`
	PageNum      int        `db:"page_num" json:"page_num"`
	ElementType  ClassLabel `db:"element_type" json:"element_type"`
	X1           float64    `db:"x1" json:"-"`
	Y1           float64    `db:"y1" json:"-"`
	X2           float64    `db:"x2" json:"-"`
	Y2           float64    `db:"y2" json:"-"`
	BBox         [4]float64 `db:"-" json:"bbox"`
	Confidence   float64    `db:"confidence" json:"confidence"`
	ReadingOrder int        `db:"reading_order" json:"reading_order"`
	GroupIndex   int        `db:"group_index" json:"group_index"`
	CaptionOf    *string    `db:"caption_of" json:"caption_of,omitempty"`
	Content      *string    `db:"content" json:"content,omitempty"`
	ImagePath    *string    `db:"image_path" json:"image_path,omitempty"`
}

// SyncBBox copies the flat coordinate columns into BBox after a DB scan.
func (e *Element) SyncBBox() {
	e.BBox = [4]float64{e.X1, e.Y1, e.X2, e.Y2}
}

// SyncColumns copies BBox into the flat coordinate columns before a DB write.
func (e *Element) SyncColumns() {
	e.X1, e.Y1, e.X2, e.Y2 = e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3]
}
