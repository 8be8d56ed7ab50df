package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/internal/catalog"
	"folio/internal/domain"
	"folio/internal/extract"
	"folio/internal/port"
)

// BuildCatalogInput is a whole document's detector output plus options.
type BuildCatalogInput struct {
	Document  domain.DocumentInput
	Name      string
	Overrides RefineOverrides
}

// PageFailure is a page left out of a catalog.
type PageFailure struct {
	Page int
	Err  error
}

// PageSummary describes one catalogued page.
type PageSummary struct {
	Page        int      `json:"page"`
	Boxes       int      `json:"boxes"`
	TwoColumn   bool     `json:"two_column"`
	Iterations  int      `json:"resolver_iterations"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// CatalogSummary is the outcome of a catalog build.
type CatalogSummary struct {
	Document *domain.Document      `json:"document"`
	Pages    []PageSummary         `json:"pages"`
	Skipped  []catalog.SkippedPage `json:"skipped_pages,omitempty"`
	Stats    catalog.Statistics    `json:"statistics"`
	Failures []PageFailure         `json:"-"`
}

// CatalogService builds and reads document catalogs.
type CatalogService interface {
	Build(ctx context.Context, input *BuildCatalogInput) (*CatalogSummary, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListElements(ctx context.Context, id uuid.UUID, elementType *domain.ClassLabel) ([]domain.Element, error)
}

// CatalogWorkers bounds page-level parallelism.
type CatalogWorkers struct {
	PageConcurrency int
	PageTimeout     time.Duration
}

type catalogService struct {
	layout     LayoutService
	dispatcher *extract.Dispatcher
	sinks      port.CatalogSinkFactory
	repo       port.CatalogRepository
	writer     *catalog.Writer
	workers    CatalogWorkers
	dpi        int
	log        *zap.Logger
}

// NewCatalogService creates a CatalogService. dispatcher and repo may be
// nil: without a dispatcher no content is extracted, without a repo the
// catalog only goes to the sink.
func NewCatalogService(
	layoutSvc LayoutService,
	dispatcher *extract.Dispatcher,
	sinks port.CatalogSinkFactory,
	repo port.CatalogRepository,
	writer *catalog.Writer,
	workers CatalogWorkers,
	detectionDPI int,
	log *zap.Logger,
) CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	if workers.PageConcurrency <= 0 {
		workers.PageConcurrency = 1
	}
	return &catalogService{
		layout:     layoutSvc,
		dispatcher: dispatcher,
		sinks:      sinks,
		repo:       repo,
		writer:     writer,
		workers:    workers,
		dpi:        detectionDPI,
		log:        log.With(zap.String("component", "catalog_service")),
	}
}

type pageOutcome struct {
	out catalog.PageOutput
	err error
}

func (s *catalogService) Build(ctx context.Context, input *BuildCatalogInput) (*CatalogSummary, error) {
	doc := input.Document
	if doc.DetectionDPI == 0 {
		doc.DetectionDPI = s.dpi
	}
	if doc.DetectionDPI <= 0 {
		return nil, fmt.Errorf("%w: detection dpi must be positive", domain.ErrInvalidInput)
	}
	if err := input.Overrides.Validate(); err != nil {
		return nil, fmt.Errorf("catalogService.Build: %w", err)
	}
	seen := make(map[int]bool, len(doc.Pages))
	for _, p := range doc.Pages {
		if seen[p.Index] {
			return nil, fmt.Errorf("%w: page %d appears twice", domain.ErrInvalidInput, p.Index)
		}
		seen[p.Index] = true
	}

	outcomes := s.refinePages(ctx, doc, input.Overrides)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("catalogService.Build: %w: %v", domain.ErrCanceled, err)
	}

	summary := &CatalogSummary{}
	var pages []catalog.PageOutput
	for i, o := range outcomes {
		index := doc.Pages[i].Index
		if o.err != nil {
			s.log.Warn("page skipped", zap.Int("page", index), zap.Error(o.err))
			summary.Failures = append(summary.Failures, PageFailure{Page: index, Err: o.err})
			summary.Skipped = append(summary.Skipped, catalog.SkippedPage{Page: index, Reason: o.err.Error()})
			continue
		}
		r := o.out.Result
		pages = append(pages, o.out)
		summary.Pages = append(summary.Pages, PageSummary{
			Page:        index,
			Boxes:       len(r.Page.Boxes),
			TwoColumn:   r.Columns.TwoColumn,
			Iterations:  r.Iterations,
			Diagnostics: r.Diagnostics,
		})
	}

	src := sourceOf(doc.SourcePath)
	name := input.Name
	if name == "" {
		name = strings.TrimSuffix(src.Filename, filepath.Ext(src.Filename))
	}
	name = catalog.SanitizeName(name)

	created := time.Now().UTC()
	cat := catalog.Build(created, doc.DetectionDPI, src, pages, summary.Skipped)
	summary.Stats = cat.Statistics

	sink, err := s.sinks.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("catalogService.Build: %w: %v", domain.ErrCatalogWriteFailed, err)
	}
	if err := s.writer.Write(ctx, sink, src, cat, pages); err != nil {
		if derr := sink.Discard(context.WithoutCancel(ctx)); derr != nil {
			s.log.Error("discarding partial catalog failed", zap.String("uri", sink.URI()), zap.Error(derr))
		}
		return nil, err
	}

	record := &domain.Document{
		ID:              uuid.New(),
		Filename:        src.Filename,
		SourcePath:      src.Path,
		SizeBytes:       src.SizeBytes,
		DetectionDPI:    doc.DetectionDPI,
		TotalPages:      cat.Metadata.TotalPages,
		SkippedPages:    len(summary.Skipped),
		TotalElements:   cat.Statistics.TotalElements,
		PipelineVersion: catalog.PipelineVersion,
		CatalogURI:      sink.URI(),
		CreatedAt:       created,
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record, cat.Elements); err != nil {
			s.log.Error("persisting catalog failed", zap.String("document_id", record.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("catalogService.Build: %w: %v", domain.ErrCatalogWriteFailed, err)
		}
	}
	summary.Document = record
	return summary, nil
}

// refinePages runs every page through the layout service and the extractors
// with at most PageConcurrency pages in flight. Outcomes keep input order.
func (s *catalogService) refinePages(ctx context.Context, doc domain.DocumentInput, overrides RefineOverrides) []pageOutcome {
	outcomes := make([]pageOutcome, len(doc.Pages))
	sem := make(chan struct{}, s.workers.PageConcurrency)
	var wg sync.WaitGroup

	for i := range doc.Pages {
		page := doc.Pages[i]
		if page.DetectionDPI == 0 {
			page.DetectionDPI = doc.DetectionDPI
		}

		select {
		case <-ctx.Done():
			outcomes[i] = pageOutcome{err: fmt.Errorf("%w: %v", domain.ErrCanceled, ctx.Err())}
			continue
		case sem <- struct{}{}: // acquire
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // release

			pageCtx := ctx
			if s.workers.PageTimeout > 0 {
				var cancel context.CancelFunc
				pageCtx, cancel = context.WithTimeout(ctx, s.workers.PageTimeout)
				defer cancel()
			}
			outcomes[i] = s.processPage(pageCtx, doc.SourcePath, page, overrides)
		}(i)
	}
	wg.Wait()
	return outcomes
}

func (s *catalogService) processPage(ctx context.Context, pdfPath string, page domain.PageInput, overrides RefineOverrides) pageOutcome {
	out, err := s.layout.Refine(ctx, &RefineInput{Page: page, Overrides: overrides, SkipCache: true})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return pageOutcome{err: fmt.Errorf("%w: page timed out: %v", domain.ErrCanceled, err)}
		}
		return pageOutcome{err: err}
	}
	if out.Result.Page.Partial {
		return pageOutcome{err: fmt.Errorf("%w: refinement stopped early", domain.ErrCanceled)}
	}

	po := catalog.PageOutput{Result: out.Result, Image: out.Image}
	if s.dispatcher != nil {
		ex, err := s.dispatcher.Extract(ctx, pdfPath, out.Result.Page, out.Image)
		if err != nil {
			return pageOutcome{err: err}
		}
		po.Extractions = ex
	}
	return pageOutcome{out: po}
}

// catalogLinker is implemented by sinks that can hand out download links.
type catalogLinker interface {
	PresignCatalog(ctx context.Context, uri, name string, expirySeconds int64) (string, error)
}

const catalogLinkExpiry = 15 * 60

func (s *catalogService) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if linker, ok := s.sinks.(catalogLinker); ok {
		url, err := linker.PresignCatalog(ctx, doc.CatalogURI, "catalog.json", catalogLinkExpiry)
		if err != nil {
			s.log.Warn("presigning catalog failed", zap.String("document_id", id.String()), zap.Error(err))
		} else {
			doc.DownloadURL = url
		}
	}
	return doc, nil
}

func (s *catalogService) ListElements(ctx context.Context, id uuid.UUID, elementType *domain.ClassLabel) ([]domain.Element, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListElements(ctx, id, elementType)
}

// sourceOf describes the PDF at path. A missing file still yields its name.
func sourceOf(path string) catalog.Source {
	src := catalog.Source{Path: path, Filename: filepath.Base(path)}
	if path == "" {
		src.Filename = "document"
		return src
	}
	if abs, err := filepath.Abs(path); err == nil {
		src.Path = abs
	}
	if fi, err := os.Stat(path); err == nil {
		src.SizeBytes = fi.Size()
		src.ModifiedAt = fi.ModTime().UTC()
	}
	return src
}
