package port

import (
	"context"

	"github.com/google/uuid"

	"folio/internal/domain"
)

// CatalogRepository persists catalog headers and their elements.
type CatalogRepository interface {
	Create(ctx context.Context, doc *domain.Document, elements []domain.Element) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListElements(ctx context.Context, documentID uuid.UUID, elementType *domain.ClassLabel) ([]domain.Element, error)
	Ping(ctx context.Context) error
}
