package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"folio/internal/port"
)

// MockCaptionOracle is a mock implementation of port.CaptionOracle.
type MockCaptionOracle struct {
	mock.Mock
}

func (m *MockCaptionOracle) Associate(ctx context.Context, input port.OracleInput) (*port.OracleOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.OracleOutput), args.Error(1)
}
