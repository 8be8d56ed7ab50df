package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"folio/internal/domain"
	"folio/internal/port"
)

type catalogRepo struct {
	db *sqlx.DB
}

// NewCatalogRepo creates a new PostgreSQL-backed CatalogRepository.
func NewCatalogRepo(db *sqlx.DB) port.CatalogRepository {
	return &catalogRepo{db: db}
}

// Create inserts the document header and all of its elements in one
// transaction.
func (r *catalogRepo) Create(ctx context.Context, doc *domain.Document, elements []domain.Element) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalogRepo.Create begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO catalog_documents (
			id, filename, source_path, size_bytes, detection_dpi,
			total_pages, skipped_pages, total_elements, pipeline_version,
			catalog_uri, created_at
		) VALUES (
			:id, :filename, :source_path, :size_bytes, :detection_dpi,
			:total_pages, :skipped_pages, :total_elements, :pipeline_version,
			:catalog_uri, :created_at
		)`, doc)
	if err != nil {
		return fmt.Errorf("catalogRepo.Create document: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO catalog_elements (
			document_id, element_id, box_id, page_num, element_type,
			x1, y1, x2, y2, confidence, reading_order, group_index,
			caption_of, content, image_path
		) VALUES (
			:document_id, :element_id, :box_id, :page_num, :element_type,
			:x1, :y1, :x2, :y2, :confidence, :reading_order, :group_index,
			:caption_of, :content, :image_path
		)`)
	if err != nil {
		return fmt.Errorf("catalogRepo.Create prepare: %w", err)
	}
	defer stmt.Close()

	for i := range elements {
		el := elements[i]
		el.DocumentID = doc.ID
		el.SyncColumns()
		if _, err := stmt.ExecContext(ctx, el); err != nil {
			return fmt.Errorf("catalogRepo.Create element %s: %w", el.ElementID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalogRepo.Create commit: %w", err)
	}
	return nil
}

func (r *catalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM catalog_documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("catalogRepo.GetByID: %w", err)
	}
	return &doc, nil
}

// ListElements returns a document's elements in page and reading order,
// optionally filtered by type.
func (r *catalogRepo) ListElements(ctx context.Context, documentID uuid.UUID, elementType *domain.ClassLabel) ([]domain.Element, error) {
	query := "SELECT * FROM catalog_elements WHERE document_id = $1"
	args := []interface{}{documentID}
	if elementType != nil {
		query += " AND element_type = $2"
		args = append(args, string(*elementType))
	}
	query += " ORDER BY page_num, reading_order"

	var elements []domain.Element
	if err := r.db.SelectContext(ctx, &elements, query, args...); err != nil {
		return nil, fmt.Errorf("catalogRepo.ListElements: %w", err)
	}
	for i := range elements {
		elements[i].SyncBBox()
	}
	return elements, nil
}

func (r *catalogRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
