package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"folio/internal/domain"
)

// MockCatalogRepo is a mock implementation of port.CatalogRepository.
type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) Create(ctx context.Context, doc *domain.Document, elements []domain.Element) error {
	args := m.Called(ctx, doc, elements)
	return args.Error(0)
}

func (m *MockCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockCatalogRepo) ListElements(ctx context.Context, documentID uuid.UUID, elementType *domain.ClassLabel) ([]domain.Element, error) {
	args := m.Called(ctx, documentID, elementType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Element), args.Error(1)
}

func (m *MockCatalogRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
