package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/extract"
	"folio/internal/port"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeText     = "text/plain; charset=utf-8"
	contentTypeMarkdown = "text/markdown; charset=utf-8"
	contentTypeCSV      = "text/csv; charset=utf-8"
	contentTypePNG      = "image/png"
	contentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Options controls the optional parts of a catalog.
type Options struct {
	Thumbnails    bool
	ThumbnailSize int
}

// Writer serialises catalogs into a port.CatalogSink.
type Writer struct {
	opts    Options
	cropper port.ImageCropper
	log     *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(opts Options, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = 256
	}
	return &Writer{opts: opts, cropper: extract.FigureCropper{}, log: log.With(zap.String("component", "catalog"))}
}

// Write stores cat and the per-page artefacts of pages. Any sink failure
// aborts the write with ErrCatalogWriteFailed.
func (w *Writer) Write(ctx context.Context, sink port.CatalogSink, src Source, cat *Catalog, pages []PageOutput) error {
	put := func(path string, data []byte, contentType string) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCanceled, err)
		}
		if err := sink.WriteFile(ctx, path, data, contentType); err != nil {
			return fmt.Errorf("catalog.Write: %w: %s: %v", domain.ErrCatalogWriteFailed, path, err)
		}
		return nil
	}
	putJSON := func(path string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("catalog.Write: %w: encoding %s: %v", domain.ErrCatalogWriteFailed, path, err)
		}
		return put(path, data, contentTypeJSON)
	}

	if err := putJSON("catalog.json", cat); err != nil {
		return err
	}
	if err := putJSON("elements.json", cat.Elements); err != nil {
		return err
	}
	if err := putJSON("index_by_type.json", cat.IndexByType()); err != nil {
		return err
	}
	if err := putJSON("text_elements.json", cat.TextElements()); err != nil {
		return err
	}
	if err := putJSON("pdf_reference.json", src); err != nil {
		return err
	}

	for _, po := range pages {
		if po.Result == nil {
			continue
		}
		for _, st := range stageFiles(po) {
			if err := putJSON(StagePath(po.Result.Page.Index, st.name), st.data); err != nil {
				return err
			}
		}
	}

	byBox := elementsByBox(cat)
	for _, po := range pages {
		if po.Result == nil {
			continue
		}
		for _, id := range po.Result.Page.ReadingOrder {
			el, ok := byBox[boxKey{po.Result.Page.Index + 1, id}]
			if !ok {
				continue
			}
			ex := po.Extractions[id]
			if el.Content != nil {
				if err := put(TextPath(el.ElementID), []byte(*el.Content), contentTypeText); err != nil {
					return err
				}
			}
			if ex.Image != nil {
				data, err := encodePNG(ex.Image)
				if err != nil {
					return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCatalogWriteFailed, err)
				}
				if err := put(FigurePath(el.ElementID), data, contentTypePNG); err != nil {
					return err
				}
			}
			if w.opts.Thumbnails {
				if err := w.writeThumbnail(ctx, put, po, id, el.ElementID, ex); err != nil {
					return err
				}
			}
		}
	}

	if err := put("summary_report.md", []byte(SummaryReport(cat)), contentTypeMarkdown); err != nil {
		return err
	}

	var csvBuf bytes.Buffer
	csvBuf.Write(BOM)
	cw := NewCSVWriter(&csvBuf)
	if err := cw.WriteHeader(); err != nil {
		return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCatalogWriteFailed, err)
	}
	if err := cw.WriteElements(cat.Elements); err != nil {
		return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCatalogWriteFailed, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCatalogWriteFailed, err)
	}
	if err := put("elements.csv", csvBuf.Bytes(), contentTypeCSV); err != nil {
		return err
	}

	xlsx, err := XLSX(cat)
	if err != nil {
		return fmt.Errorf("catalog.Write: %w: xlsx: %v", domain.ErrCatalogWriteFailed, err)
	}
	if err := put("elements.xlsx", xlsx, contentTypeXLSX); err != nil {
		return err
	}

	w.log.Info("catalog written",
		zap.String("uri", sink.URI()),
		zap.Int("pages", len(cat.Pages)),
		zap.Int("elements", cat.Statistics.TotalElements),
	)
	return nil
}

// writeThumbnail previews a region from the page raster, falling back to
// the figure crop. Regions without either are skipped.
func (w *Writer) writeThumbnail(ctx context.Context, put func(string, []byte, string) error, po PageOutput, boxID, elementID string, ex extract.Extraction) error {
	var src image.Image
	if po.Image != nil && po.Image.Image != nil {
		b, _ := po.Result.Page.BoxByID(boxID)
		crop, err := w.cropper.Crop(ctx, po.Image.Image, po.Image.DPI, b.BBox)
		if err != nil {
			w.log.Warn("thumbnail crop failed", zap.String("element", elementID), zap.Error(err))
		} else {
			src = crop
		}
	}
	if src == nil {
		src = ex.Image
	}
	if src == nil {
		return nil
	}
	data, err := encodePNG(Thumbnail(src, w.opts.ThumbnailSize))
	if err != nil {
		return fmt.Errorf("catalog.Write: %w: %v", domain.ErrCatalogWriteFailed, err)
	}
	return put(ThumbnailPath(elementID), data, contentTypePNG)
}

// StagePath is where one page's stage file is stored.
func StagePath(pageIndex int, name string) string {
	return fmt.Sprintf("stages/page_%03d/%s.json", pageIndex+1, name)
}

type stageFile struct {
	name string
	data any
}

func stageFiles(po PageOutput) []stageFile {
	r := po.Result
	return []stageFile{
		{"stage1_raw", r.Stages.Raw},
		{"stage2_merged", r.Stages.Merged},
		{"stage3_resolved", r.Stages.Resolved},
		{"stage4_ordered", map[string]any{
			"reading_order": r.Stages.Ordered,
			"columns":       r.Columns,
		}},
		{"stage5_grouped", r.Stages.Groups},
		{"stage_conflicts", map[string]any{
			"conflicts":   r.Stages.Conflicts,
			"iterations":  r.Iterations,
			"bounds":      r.Bounds,
			"diagnostics": r.Diagnostics,
		}},
	}
}

type boxKey struct {
	page int
	box  string
}

func elementsByBox(cat *Catalog) map[boxKey]domain.Element {
	m := make(map[boxKey]domain.Element, len(cat.Elements))
	for _, el := range cat.Elements {
		m[boxKey{el.PageNum, el.BoxID}] = el
	}
	return m
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
