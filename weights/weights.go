// Package weights aggregates corpus-wide multipliers and caches them with a TTL.
package weights

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"casevalue-backend/metrics"
	"casevalue-backend/models"
)

var ErrDataUnavailable = errors.New("historical corpus unavailable for weights")

// DefaultTTL is how long a snapshot is served before recomputation
const DefaultTTL = 24 * time.Hour

// Corpus is the full-scan read surface the cache aggregates over
type Corpus interface {
	ScanSettled(ctx context.Context) ([]models.HistoricalCase, error)
}

// Clock abstracts wall time so staleness is testable
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// Cache serves WeightsSnapshot values, recomputing when the current one is stale.
// Readers never observe a partially built snapshot.
type Cache struct {
	corpus  Corpus
	clock   Clock
	ttl     time.Duration
	logger  *zap.Logger
	current atomic.Pointer[models.WeightsSnapshot]
	group   singleflight.Group
}

// CacheOption is a functional option for Cache
type CacheOption func(*Cache)

// WithClock sets the clock
func WithClock(clock Clock) CacheOption {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithTTL sets the snapshot lifetime
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a weights cache over corpus
func NewCache(corpus Corpus, opts ...CacheOption) *Cache {
	c := &Cache{
		corpus: corpus,
		clock:  SystemClock(),
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current snapshot, recomputing it first if missing or expired.
// Concurrent callers share a single recomputation.
func (c *Cache) Get(ctx context.Context) (*models.WeightsSnapshot, error) {
	if snap := c.current.Load(); snap != nil && !c.stale(snap) {
		return snap, nil
	}

	v, err, _ := c.group.Do("weights", func() (interface{}, error) {
		// Another caller may have refreshed while we waited
		if snap := c.current.Load(); snap != nil && !c.stale(snap) {
			return snap, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.WeightsSnapshot), nil
}

// Invalidate drops the current snapshot so the next Get recomputes
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

func (c *Cache) stale(snap *models.WeightsSnapshot) bool {
	return c.clock.Now().Sub(snap.ComputedAt) >= c.ttl
}

func (c *Cache) refresh(ctx context.Context) (*models.WeightsSnapshot, error) {
	if c.corpus == nil {
		metrics.WeightsRefreshes.WithLabelValues("unavailable").Inc()
		return nil, ErrDataUnavailable
	}

	cases, err := c.corpus.ScanSettled(ctx)
	if err != nil {
		metrics.WeightsRefreshes.WithLabelValues("error").Inc()
		c.logger.Warn("weights refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	snap, err := Compute(cases, c.clock.Now())
	if err != nil {
		metrics.WeightsRefreshes.WithLabelValues("empty").Inc()
		return nil, err
	}

	c.current.Store(snap)
	metrics.WeightsRefreshes.WithLabelValues("ok").Inc()
	c.logger.Info("weights refreshed",
		zap.Int("cases", snap.CaseCount),
		zap.Float64("corpus_mean", snap.CorpusMean),
	)
	return snap, nil
}
