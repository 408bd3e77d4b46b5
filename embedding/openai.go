package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"casevalue-backend/metrics"
)

// DefaultOpenAIModel is truncated to Dimensions on request
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIEmbedder embeds text through the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder from an API key
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

// Model returns the embedding model name
func (o *OpenAIEmbedder) Model() string { return o.model }

// Embed returns the normalized embedding for text
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: Dimensions,
	})
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("openai", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		metrics.EmbeddingRequests.WithLabelValues("openai", "empty").Inc()
		return nil, ErrEmbeddingFailed
	}

	values := resp.Data[0].Embedding
	if err := checkDimensions(values); err != nil {
		metrics.EmbeddingRequests.WithLabelValues("openai", "error").Inc()
		return nil, err
	}

	metrics.EmbeddingRequests.WithLabelValues("openai", "ok").Inc()
	return Normalize(values), nil
}
