package embedding

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewGeminiEmbedder_TaskTypeFollowsPurpose(t *testing.T) {
	tests := []struct {
		name     string
		purpose  Purpose
		expected genai.TaskType
	}{
		{name: "unset defaults to query", purpose: "", expected: genai.TaskTypeRetrievalQuery},
		{name: "query", purpose: PurposeQuery, expected: genai.TaskTypeRetrievalQuery},
		{name: "document", purpose: PurposeDocument, expected: genai.TaskTypeRetrievalDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeminiEmbedder(nil, "", tt.purpose)
			assert.Equal(t, tt.expected, g.TaskType())
			assert.Equal(t, DefaultGeminiModel, g.Model())
		})
	}
}

func TestNew_DocumentEmbedderSkipsCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	tests := []struct {
		name    string
		purpose Purpose
		cached  bool
	}{
		{name: "query", purpose: PurposeQuery, cached: true},
		{name: "document", purpose: PurposeDocument, cached: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, closeFn, err := New(context.Background(), Options{
				Provider: ProviderOpenAI,
				Purpose:  tt.purpose,
				APIKey:   "sk-test",
				Redis:    client,
				Logger:   zap.NewNop(),
			})
			require.NoError(t, err)
			defer closeFn()

			_, isCached := e.(*cachedEmbedder)
			assert.Equal(t, tt.cached, isCached)
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), Options{Provider: "cohere"})
	assert.Error(t, err)
}
