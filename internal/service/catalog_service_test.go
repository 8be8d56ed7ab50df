package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folio/internal/catalog"
	"folio/internal/domain"
	"folio/internal/extract"
	"folio/internal/service"
	"folio/internal/storage/local"
	s3sink "folio/internal/storage/s3"
	"folio/mocks"
)

func crowdedPage(index int) domain.PageInput {
	in := figurePage(index)
	for i := 0; i < 3; i++ {
		y := float64(1500 + 100*i)
		in.Detections = append(in.Detections, detection("Text", 100, y, 500, y+50, 0.5))
	}
	return in
}

func newCatalogService(t *testing.T, repo *mocks.MockCatalogRepo, text *mocks.MockTextExtractor, base string) service.CatalogService {
	t.Helper()
	s := settings()
	s.Layout.MaxBoxes = 5
	layoutSvc := service.NewLayoutService(s, nil, nil, nil)

	var dispatcher *extract.Dispatcher
	if text != nil {
		dispatcher = extract.NewDispatcher(text, nil, nil, nil)
	}
	workers := service.CatalogWorkers{PageConcurrency: 2, PageTimeout: 5 * time.Second}
	// A nil *MockCatalogRepo would be a non-nil interface.
	if repo == nil {
		return service.NewCatalogService(layoutSvc, dispatcher, local.NewSinkFactory(base), nil,
			catalog.NewWriter(catalog.Options{}, nil), workers, testDPI, nil)
	}
	return service.NewCatalogService(layoutSvc, dispatcher, local.NewSinkFactory(base), repo,
		catalog.NewWriter(catalog.Options{}, nil), workers, testDPI, nil)
}

func TestCatalogService_Build(t *testing.T) {
	base := t.TempDir()
	repo := new(mocks.MockCatalogRepo)
	repo.On("Create", mock.Anything,
		mock.MatchedBy(func(d *domain.Document) bool {
			return d.TotalPages == 3 && d.SkippedPages == 1 && d.TotalElements == 6 && d.Filename == "paper.pdf"
		}),
		mock.MatchedBy(func(els []domain.Element) bool { return len(els) == 6 }),
	).Return(nil)

	text := new(mocks.MockTextExtractor)
	text.On("ExtractText", mock.Anything, mock.Anything).Return("extracted", nil)

	svc := newCatalogService(t, repo, text, base)
	summary, err := svc.Build(context.Background(), &service.BuildCatalogInput{
		Document: domain.DocumentInput{
			SourcePath:   "paper.pdf",
			DetectionDPI: testDPI,
			Pages:        []domain.PageInput{figurePage(2), crowdedPage(1), figurePage(0)},
		},
	})
	require.NoError(t, err)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 1, summary.Failures[0].Page)
	assert.ErrorIs(t, summary.Failures[0].Err, domain.ErrTooManyBoxes)
	require.Len(t, summary.Skipped, 1)

	require.Len(t, summary.Pages, 2)
	assert.Equal(t, 2, summary.Pages[0].Page, "summaries follow input order")
	assert.Equal(t, 6, summary.Stats.TotalElements)
	assert.Equal(t, 4, summary.Stats.TextExtracted)
	assert.Equal(t, filepath.Join(base, "paper"), summary.Document.CatalogURI)

	for _, name := range []string{"catalog.json", "elements.csv", "text_content/elem_001_0002.txt", "stages/page_003/stage1_raw.json"} {
		_, err := os.Stat(filepath.Join(base, "paper", filepath.FromSlash(name)))
		assert.NoError(t, err, name)
	}
	repo.AssertExpectations(t)
}

func TestCatalogService_WriteFailureDiscardsSink(t *testing.T) {
	sink := new(mocks.MockCatalogSink)
	sink.On("WriteFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	sink.On("Discard", mock.Anything).Return(nil)
	sink.On("URI").Return("mem://x").Maybe()
	sinks := new(mocks.MockCatalogSinkFactory)
	sinks.On("Open", mock.Anything, "report").Return(sink, nil)

	svc := service.NewCatalogService(service.NewLayoutService(settings(), nil, nil, nil), nil, sinks, nil,
		catalog.NewWriter(catalog.Options{}, nil), service.CatalogWorkers{PageConcurrency: 1}, testDPI, nil)
	_, err := svc.Build(context.Background(), &service.BuildCatalogInput{
		Name:     "report",
		Document: domain.DocumentInput{Pages: []domain.PageInput{figurePage(0)}},
	})
	assert.ErrorIs(t, err, domain.ErrCatalogWriteFailed)
	sink.AssertCalled(t, "Discard", mock.Anything)
}

func TestCatalogService_RepoFailure(t *testing.T) {
	repo := new(mocks.MockCatalogRepo)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	svc := newCatalogService(t, repo, nil, t.TempDir())
	_, err := svc.Build(context.Background(), &service.BuildCatalogInput{
		Document: domain.DocumentInput{SourcePath: "a.pdf", Pages: []domain.PageInput{figurePage(0)}},
	})
	assert.ErrorIs(t, err, domain.ErrCatalogWriteFailed)
}

func TestCatalogService_DuplicatePages(t *testing.T) {
	svc := newCatalogService(t, nil, nil, t.TempDir())
	_, err := svc.Build(context.Background(), &service.BuildCatalogInput{
		Document: domain.DocumentInput{Pages: []domain.PageInput{figurePage(0), figurePage(0)}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCatalogService_InvalidOverrides(t *testing.T) {
	svc := newCatalogService(t, nil, nil, t.TempDir())
	threshold := 1.5
	for _, ov := range []service.RefineOverrides{
		{Policy: "loudest"},
		{MergeMode: "fuzzy"},
		{Captions: "llm"},
		{MergeThreshold: &threshold},
	} {
		_, err := svc.Build(context.Background(), &service.BuildCatalogInput{
			Document:  domain.DocumentInput{Pages: []domain.PageInput{figurePage(0)}},
			Overrides: ov,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", ov)
	}
}

func TestCatalogService_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newCatalogService(t, nil, nil, t.TempDir())
	_, err := svc.Build(ctx, &service.BuildCatalogInput{
		Document: domain.DocumentInput{Pages: []domain.PageInput{figurePage(0)}},
	})
	assert.ErrorIs(t, err, domain.ErrCanceled)
}

func TestCatalogService_EmptyDocument(t *testing.T) {
	base := t.TempDir()
	svc := newCatalogService(t, nil, nil, base)
	summary, err := svc.Build(context.Background(), &service.BuildCatalogInput{Name: "empty"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Stats.TotalElements)
	assert.FileExists(t, filepath.Join(base, "empty", "catalog.json"))
}

func TestCatalogService_Reads(t *testing.T) {
	id := uuid.New()
	repo := new(mocks.MockCatalogRepo)
	doc := &domain.Document{ID: id, Filename: "paper.pdf"}
	figure := domain.LabelFigure
	repo.On("GetByID", mock.Anything, id).Return(doc, nil)
	repo.On("ListElements", mock.Anything, id, &figure).Return([]domain.Element{{ElementID: "elem_001_0001"}}, nil)

	svc := newCatalogService(t, repo, nil, t.TempDir())
	got, err := svc.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	els, err := svc.ListElements(context.Background(), id, &figure)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	noRepo := newCatalogService(t, nil, nil, t.TempDir())
	_, err = noRepo.GetDocument(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogService_GetDocumentPresignsS3Catalog(t *testing.T) {
	id := uuid.New()
	repo := new(mocks.MockCatalogRepo)
	repo.On("GetByID", mock.Anything, id).Return(&domain.Document{ID: id, CatalogURI: "s3://catalogs/paper"}, nil)
	storage := new(mocks.MockObjectStorage)
	storage.On("GetPresignedURL", mock.Anything, "catalogs", "paper/catalog.json", int64(900)).Return("https://signed", nil)

	svc := service.NewCatalogService(service.NewLayoutService(settings(), nil, nil, nil), nil,
		s3sink.NewSinkFactory(storage, "catalogs", ""), repo,
		catalog.NewWriter(catalog.Options{}, nil), service.CatalogWorkers{}, testDPI, nil)
	doc, err := svc.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://signed", doc.DownloadURL)
}
