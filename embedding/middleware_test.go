package embedding

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubEmbedder struct {
	calls int
	delay time.Duration
	trace *[]string
	name  string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.trace != nil {
		*s.trace = append(*s.trace, s.name)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return make([]float32, Dimensions), nil
}

func (s *stubEmbedder) Model() string { return "stub" }

func tracing(name string, trace *[]string) Middleware {
	return func(next Embedder) Embedder {
		return &tracingEmbedder{next: next, name: name, trace: trace}
	}
}

type tracingEmbedder struct {
	next  Embedder
	name  string
	trace *[]string
}

func (t *tracingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	*t.trace = append(*t.trace, t.name)
	return t.next.Embed(ctx, text)
}

func (t *tracingEmbedder) Model() string { return t.next.Model() }

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	var trace []string
	base := &stubEmbedder{trace: &trace, name: "base"}

	e := Chain(base, tracing("outer", &trace), tracing("inner", &trace))
	_, err := e.Embed(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, trace)
	assert.Equal(t, "stub", e.Model())
}

func TestTimeoutMiddleware_CancelsSlowProvider(t *testing.T) {
	base := &stubEmbedder{delay: time.Second}
	e := Chain(base, TimeoutMiddleware(10*time.Millisecond))

	_, err := e.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitMiddleware_HonorsContext(t *testing.T) {
	base := &stubEmbedder{}
	e := Chain(base, RateLimitMiddleware(rate.Every(time.Hour), 1))

	_, err := e.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "second")

	assert.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

func TestCacheMiddleware_NilClientIsPassthrough(t *testing.T) {
	base := &stubEmbedder{}
	e := Chain(base, CacheMiddleware(nil, time.Minute, nil))

	assert.Same(t, base, e)
}

func TestCacheKey(t *testing.T) {
	a, err := CacheKey("m", "neck pain")
	require.NoError(t, err)
	b, err := CacheKey("m", "neck pain")
	require.NoError(t, err)
	c, err := CacheKey("other", "neck pain")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, cacheKeyPrefix)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	norm := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, checkDimensions(make([]float32, Dimensions)))
	assert.ErrorIs(t, checkDimensions(make([]float32, 3)), ErrDimension)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), Options{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)

	_, _, err = New(context.Background(), Options{Provider: ProviderOpenAI})
	assert.Error(t, err)
}

func TestNew_OpenAIStack(t *testing.T) {
	e, closeFn, err := New(context.Background(), Options{
		Provider:  ProviderOpenAI,
		APIKey:    "sk-test",
		Timeout:   time.Second,
		RateLimit: 5,
	})
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, DefaultOpenAIModel, e.Model())
}
