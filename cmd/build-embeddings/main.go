package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"casevalue-backend/app"
	"casevalue-backend/config"
	"casevalue-backend/embedding"
	"casevalue-backend/models"
	"casevalue-backend/repository"
	"casevalue-backend/retrieval"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		importPath string
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "build-embeddings",
		Short: "Import settled cases and backfill their embeddings",
		Long: "Optionally imports historical cases from a JSON array, then embeds every\n" +
			"case that has no embedding yet using the same description the retriever builds.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize <= 0 {
				return fmt.Errorf("batch size must be positive, got %d", batchSize)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if importPath != "" {
				cases, err := readCases(importPath)
				if err != nil {
					return err
				}
				n, err := importCases(ctx, a.Corpus, cases)
				if err != nil {
					return err
				}
				logger.Info("✓ Imported historical cases", zap.Int("count", n))
			}

			embedder, closeEmbedder, err := embedding.New(ctx, documentEmbeddingOptions(cfg, logger))
			if err != nil {
				return fmt.Errorf("embedding provider unavailable, check CASEVALUE_EMBEDDING_* settings: %w", err)
			}
			defer closeEmbedder()

			stats, err := backfill(ctx, a.Corpus, embedder, batchSize, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Embedding build complete: %d embedded, %d failed\n", stats.embedded, stats.failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&importPath, "import", "", "JSON file holding an array of historical cases to upsert first")
	cmd.Flags().IntVar(&batchSize, "batch", 50, "cases fetched per backfill round")

	return cmd
}

// documentEmbeddingOptions reuses the server's provider settings but embeds
// corpus cases as retrieval documents and bypasses the query vector cache.
func documentEmbeddingOptions(cfg *config.Config, logger *zap.Logger) embedding.Options {
	opts := app.EmbeddingOptions(cfg, nil, logger)
	opts.Purpose = embedding.PurposeDocument
	return opts
}

// corpusWriter is the repository surface the tool needs
type corpusWriter interface {
	Upsert(ctx context.Context, hc models.HistoricalCase, filters models.SimilarityFilters) error
	ListMissingEmbeddings(ctx context.Context, limit int) ([]models.HistoricalCase, error)
	UpdateEmbedding(ctx context.Context, id string, vector []float32) error
}

var _ corpusWriter = (*repository.HistoricalCaseRepository)(nil)

func readCases(path string) ([]models.HistoricalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	var cases []models.HistoricalCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	return cases, nil
}

func importCases(ctx context.Context, corpus corpusWriter, cases []models.HistoricalCase) (int, error) {
	for i, hc := range cases {
		if hc.ID == "" {
			return i, fmt.Errorf("case at index %d has no id", i)
		}
		if err := corpus.Upsert(ctx, hc, retrieval.BuildFilters(hc.Record)); err != nil {
			return i, err
		}
	}
	return len(cases), nil
}

type backfillStats struct {
	embedded int
	failed   int
}

// backfill embeds cases until none are missing. Cases that fail are skipped
// for the rest of the run so a persistent provider error cannot loop forever.
func backfill(ctx context.Context, corpus corpusWriter, embedder embedding.Embedder, batchSize int, logger *zap.Logger) (backfillStats, error) {
	var stats backfillStats
	failed := map[string]bool{}

	for {
		batch, err := corpus.ListMissingEmbeddings(ctx, batchSize+len(failed))
		if err != nil {
			return stats, fmt.Errorf("failed to list cases without embeddings: %w", err)
		}

		progressed := false
		for _, hc := range batch {
			if failed[hc.ID] {
				continue
			}
			progressed = true

			vector, err := embedder.Embed(ctx, retrieval.Describe(hc.Record, hc.Narrative))
			if err == nil {
				err = corpus.UpdateEmbedding(ctx, hc.ID, vector)
			}
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				logger.Warn("failed to embed case", zap.String("case_id", hc.ID), zap.Error(err))
				failed[hc.ID] = true
				stats.failed++
				continue
			}
			stats.embedded++
		}

		if !progressed {
			return stats, nil
		}
		logger.Info("embedding progress", zap.Int("embedded", stats.embedded), zap.Int("failed", stats.failed))
	}
}
