package port

import (
	"context"
	"time"

	"folio/internal/domain"
)

// PageCache stores refined pages keyed by a digest of their input.
type PageCache interface {
	// Get returns the cached page; found is false on a miss.
	Get(ctx context.Context, key string) (page *domain.Page, found bool, err error)
	Set(ctx context.Context, key string, page *domain.Page, ttl time.Duration) error
}
