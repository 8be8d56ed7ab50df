package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"folio/internal/port"
)

// MockTextExtractor is a mock implementation of port.TextExtractor.
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, input port.RegionInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockTableExtractor is a mock implementation of port.TableExtractor.
type MockTableExtractor struct {
	mock.Mock
}

func (m *MockTableExtractor) ExtractTable(ctx context.Context, input port.RegionInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}
