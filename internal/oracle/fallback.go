package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/port"
)

// circuitState tracks rate-limit backoff for a single oracle.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackOracle tries oracles in order, skipping those with open circuits.
// It implements port.CaptionOracle.
type FallbackOracle struct {
	oracles  []port.CaptionOracle
	circuits []*circuitState
	names    []string
	log      *zap.Logger
}

// NewFallbackOracle creates a FallbackOracle from an ordered list of oracles and their names.
func NewFallbackOracle(oracles []port.CaptionOracle, names []string, log *zap.Logger) *FallbackOracle {
	if log == nil {
		log = zap.NewNop()
	}
	circuits := make([]*circuitState, len(oracles))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackOracle{
		oracles:  oracles,
		circuits: circuits,
		names:    names,
		log:      log.With(zap.String("component", "oracle")),
	}
}

func (f *FallbackOracle) Associate(ctx context.Context, input port.OracleInput) (*port.OracleOutput, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, o := range f.oracles {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.log.Info("skipping oracle with open circuit",
				zap.String("provider", f.names[i]),
				zap.Time("reset_at", resetAt),
			)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := o.Associate(ctx, input)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("oracle.Associate: %w", ctx.Err())
		}

		f.log.Info("oracle failed", zap.String("provider", f.names[i]), zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		rl := NewRateLimitError("all", fmt.Errorf("%w: all oracles rate limited", domain.ErrOracleFailed), int(retryAfter.Seconds()))
		return nil, rl
	}

	return nil, fmt.Errorf("%w: all oracles failed: %w", domain.ErrOracleFailed, lastErr)
}
