package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider names an embedding backend
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Options configures a provider and its middleware stack
type Options struct {
	Provider  Provider
	Purpose   Purpose // defaults to PurposeQuery
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables limiting
	Burst     int
	Redis     *redis.Client
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// New builds the configured embedder wrapped as cache -> timeout -> rate limit -> provider.
// Document embedders are never cached so query vectors cannot leak into the corpus.
// The returned func releases provider resources.
func New(ctx context.Context, opts Options) (Embedder, func(), error) {
	var base Embedder
	closeFn := func() {}

	switch opts.Provider {
	case ProviderGemini, "":
		client, err := NewGeminiClient(ctx, opts.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		base = NewGeminiEmbedder(client, opts.Model, opts.Purpose)
		closeFn = func() { _ = client.Close() }
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, nil, fmt.Errorf("openai api key not set")
		}
		base = NewOpenAIEmbedder(opts.APIKey, opts.Model)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}

	var mws []Middleware
	if opts.Redis != nil && opts.Purpose != PurposeDocument {
		mws = append(mws, CacheMiddleware(opts.Redis, opts.CacheTTL, opts.Logger))
	}
	if opts.Timeout > 0 {
		mws = append(mws, TimeoutMiddleware(opts.Timeout))
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		mws = append(mws, RateLimitMiddleware(rate.Limit(opts.RateLimit), burst))
	}

	return Chain(base, mws...), closeFn, nil
}
