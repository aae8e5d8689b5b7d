package storage

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"manyame-permits/internal/pkg/metrics"
)

// BreakerConfig tunes the storage circuit breaker
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultBreakerConfig trips after five consecutive failures and tries again after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "document-storage",
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// BreakerStore guards another FileStore with a circuit breaker. While the
// circuit is open calls fail fast with gobreaker.ErrOpenState.
type BreakerStore struct {
	inner FileStore
	cb    *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerStore wraps inner
func NewBreakerStore(inner FileStore, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.StorageBreakerState.Set(float64(stateValue(to)))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("storage circuit breaker changed state")
		},
		// A missing blob is a caller problem, not a storage outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrInvalidLocator)
		},
	}
	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// Store implements FileStore
func (b *BreakerStore) Store(ctx context.Context, key string, data []byte) (string, error) {
	var locator string
	_, err := b.cb.Execute(func() ([]byte, error) {
		var err error
		locator, err = b.inner.Store(ctx, key, data)
		return nil, err
	})
	return locator, err
}

// Retrieve implements FileStore
func (b *BreakerStore) Retrieve(ctx context.Context, locator string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.inner.Retrieve(ctx, locator)
	})
}

// Delete implements FileStore
func (b *BreakerStore) Delete(ctx context.Context, locator string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.Delete(ctx, locator)
	})
	return err
}

// State reports the breaker state
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
