package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"casevalue-backend/metrics"
)

// DefaultGeminiModel produces 768-dimension vectors
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder embeds text through the Gemini embedding model
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	taskType genai.TaskType
}

// NewGeminiClient creates a Gemini client from an API key
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

// NewGeminiEmbedder creates an embedder over an existing client. Corpus documents
// and case queries must be embedded with their matching purpose.
func NewGeminiEmbedder(client *genai.Client, model string, purpose Purpose) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model, taskType: geminiTaskType(purpose)}
}

func geminiTaskType(purpose Purpose) genai.TaskType {
	if purpose == PurposeDocument {
		return genai.TaskTypeRetrievalDocument
	}
	return genai.TaskTypeRetrievalQuery
}

// TaskType returns the Gemini task type sent with every request
func (g *GeminiEmbedder) TaskType() genai.TaskType { return g.taskType }

// Model returns the embedding model name
func (g *GeminiEmbedder) Model() string { return g.model }

// Embed returns the normalized embedding for text
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if g.client == nil {
		return nil, fmt.Errorf("%w: gemini client not set", ErrEmbeddingFailed)
	}

	em := g.client.EmbeddingModel(g.model)
	em.TaskType = g.taskType

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("gemini", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if res == nil || res.Embedding == nil {
		metrics.EmbeddingRequests.WithLabelValues("gemini", "empty").Inc()
		return nil, ErrEmbeddingFailed
	}

	values := res.Embedding.Values
	if err := checkDimensions(values); err != nil {
		metrics.EmbeddingRequests.WithLabelValues("gemini", "error").Inc()
		return nil, err
	}

	metrics.EmbeddingRequests.WithLabelValues("gemini", "ok").Inc()
	return Normalize(values), nil
}
