// Package embedding provides the semantic embedding clients used by retrieval
// and the middleware that bounds them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Dimensions is the vector width stored in the historical corpus
const Dimensions = 768

var (
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
	ErrEmptyText       = errors.New("embedding text is empty")
	ErrDimension       = errors.New("embedding has unexpected dimensions")
)

// Embedder turns text into a unit-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Purpose tells asymmetric providers which side of a retrieval pair is being embedded
type Purpose string

const (
	PurposeQuery    Purpose = "query"
	PurposeDocument Purpose = "document"
)

// Middleware wraps an Embedder with cross-cutting behavior
type Middleware func(Embedder) Embedder

// Chain applies middleware so the first listed is the outermost
func Chain(e Embedder, mws ...Middleware) Embedder {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	norm := 0.0
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// checkDimensions validates a provider response
func checkDimensions(v []float32) error {
	if len(v) != Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(v), Dimensions)
	}
	return nil
}
