package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"folio/internal/domain"
)

// MockPageCache is a mock implementation of port.PageCache.
type MockPageCache struct {
	mock.Mock
}

func (m *MockPageCache) Get(ctx context.Context, key string) (*domain.Page, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Page), args.Bool(1), args.Error(2)
}

func (m *MockPageCache) Set(ctx context.Context, key string, page *domain.Page, ttl time.Duration) error {
	args := m.Called(ctx, key, page, ttl)
	return args.Error(0)
}
