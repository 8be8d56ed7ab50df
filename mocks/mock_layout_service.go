package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"folio/internal/service"
)

// MockLayoutService is a mock implementation of service.LayoutService.
type MockLayoutService struct {
	mock.Mock
}

func (m *MockLayoutService) Refine(ctx context.Context, input *service.RefineInput) (*service.RefineOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefineOutput), args.Error(1)
}
