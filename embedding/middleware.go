package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"casevalue-backend/digest"
)

// rateLimitedEmbedder paces calls to a rate-limited embedding service
type rateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a token bucket of limit requests per second with burst
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next Embedder) Embedder {
		return &rateLimitedEmbedder{next: next, limiter: limiter}
	}
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Embed(ctx, text)
}

func (r *rateLimitedEmbedder) Model() string { return r.next.Model() }

// timeoutEmbedder bounds every call so a stalled provider cannot block an evaluation
type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// TimeoutMiddleware cancels calls that exceed timeout
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Embedder) Embedder {
		return &timeoutEmbedder{next: next, timeout: timeout}
	}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if t.timeout <= 0 {
		return t.next.Embed(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, text)
}

func (t *timeoutEmbedder) Model() string { return t.next.Model() }

// cachedEmbedder stores vectors in Redis keyed by model and text
type cachedEmbedder struct {
	next   Embedder
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

const cacheKeyPrefix = "casevalue:embedding:"

// CacheMiddleware serves repeated texts from Redis. Cache errors never fail
// the call; they fall through to the wrapped embedder.
func CacheMiddleware(client *redis.Client, ttl time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Embedder) Embedder {
		if client == nil {
			return next
		}
		return &cachedEmbedder{next: next, client: client, ttl: ttl, logger: logger}
	}
}

// CacheKey derives the Redis key for a model/text pair
func CacheKey(model, text string) (string, error) {
	sum, err := digest.Of(map[string]string{"model": model, "text": text})
	if err != nil {
		return "", err
	}
	return cacheKeyPrefix + sum, nil
}

func (c *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key, err := CacheKey(c.next.Model(), text)
	if err != nil {
		return c.next.Embed(ctx, text)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v []float32
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil && len(v) == Dimensions {
			return v, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(v); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(setErr))
		}
	}
	return v, nil
}

func (c *cachedEmbedder) Model() string { return c.next.Model() }
