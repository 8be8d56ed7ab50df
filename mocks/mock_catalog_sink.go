package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"folio/internal/port"
)

// MockCatalogSink is a mock implementation of port.CatalogSink.
type MockCatalogSink struct {
	mock.Mock
}

func (m *MockCatalogSink) WriteFile(ctx context.Context, path string, data []byte, contentType string) error {
	args := m.Called(ctx, path, data, contentType)
	return args.Error(0)
}

func (m *MockCatalogSink) URI() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCatalogSink) Discard(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCatalogSinkFactory is a mock implementation of port.CatalogSinkFactory.
type MockCatalogSinkFactory struct {
	mock.Mock
}

func (m *MockCatalogSinkFactory) Open(ctx context.Context, name string) (port.CatalogSink, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.CatalogSink), args.Error(1)
}
