package main

import (
	"context"
	"fmt"

	"casevalue-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const historicalCasesSQL = `
CREATE TABLE IF NOT EXISTS historical_cases (
    id TEXT PRIMARY KEY,

    -- Case record
    accident_type TEXT,
    venue TEXT,
    primary_injury TEXT,
    injury_description TEXT,
    surgery_types TEXT[] NOT NULL DEFAULT '{}',
    surgery_count INTEGER,
    injection_types TEXT[] NOT NULL DEFAULT '{}',
    injection_count INTEGER,
    tbi_severity TEXT,
    treatment_gap_days INTEGER,
    treatment_duration_days INTEGER,
    pending_surgery BOOLEAN NOT NULL DEFAULT false,
    liability_percent DOUBLE PRECISION,
    economic_damages DOUBLE PRECISION,
    demand_amount DOUBLE PRECISION,
    policy_limits DOUBLE PRECISION,
    incident_date TIMESTAMPTZ,
    plaintiff_age INTEGER,
    narrative TEXT,

    -- Outcome; only positive settlements are comparables
    settlement_amount DOUBLE PRECISION NOT NULL,

    -- Derived filter hints, written on import
    liability_bucket TEXT,
    policy_bucket TEXT,
    injury_category TEXT,

    embedding vector(768),

    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);`

const caseEvaluationsSQL = `
CREATE TABLE IF NOT EXISTS case_evaluations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    case_id TEXT,
    fingerprint TEXT,
    method TEXT NOT NULL,
    gross_amount BIGINT NOT NULL,
    net_amount BIGINT NOT NULL,
    proposal_amount BIGINT NOT NULL,
    result JSONB NOT NULL,
    report_path TEXT,
    created_at TIMESTAMPTZ DEFAULT NOW()
);`

// matchFunctionSQL ranks by cosine similarity, scaled up 5% per matching
// filter hint. The hints never exclude rows. The inner query takes a wider
// candidate pool by raw distance so the HNSW index serves it.
const matchFunctionSQL = `
CREATE OR REPLACE FUNCTION match_historical_cases(
    query_embedding vector(768),
    filter_liability_bucket TEXT,
    filter_policy_bucket TEXT,
    filter_tbi_level INTEGER,
    filter_has_surgery BOOLEAN,
    filter_injury_category TEXT,
    match_count INTEGER
)
RETURNS TABLE (
    id TEXT,
    accident_type TEXT,
    venue TEXT,
    primary_injury TEXT,
    injury_description TEXT,
    surgery_types TEXT[],
    surgery_count INTEGER,
    injection_types TEXT[],
    injection_count INTEGER,
    tbi_severity TEXT,
    treatment_gap_days INTEGER,
    treatment_duration_days INTEGER,
    pending_surgery BOOLEAN,
    liability_percent DOUBLE PRECISION,
    economic_damages DOUBLE PRECISION,
    demand_amount DOUBLE PRECISION,
    policy_limits DOUBLE PRECISION,
    incident_date TIMESTAMPTZ,
    plaintiff_age INTEGER,
    narrative TEXT,
    settlement_amount DOUBLE PRECISION,
    similarity DOUBLE PRECISION
)
LANGUAGE sql STABLE
AS $$
    SELECT
        c.id, c.accident_type, c.venue, c.primary_injury, c.injury_description,
        c.surgery_types, c.surgery_count, c.injection_types, c.injection_count,
        c.tbi_severity, c.treatment_gap_days, c.treatment_duration_days, c.pending_surgery,
        c.liability_percent, c.economic_damages, c.demand_amount, c.policy_limits,
        c.incident_date, c.plaintiff_age, c.narrative, c.settlement_amount,
        (1 - c.distance) * (1
            + CASE WHEN c.liability_bucket = filter_liability_bucket THEN 0.05 ELSE 0 END
            + CASE WHEN c.policy_bucket = filter_policy_bucket THEN 0.05 ELSE 0 END
            + CASE WHEN (CASE
                            WHEN trim(c.tbi_severity) = '3' OR c.tbi_severity ILIKE '%severe%' THEN 3
                            WHEN trim(c.tbi_severity) = '2' OR c.tbi_severity ILIKE '%moderate%' THEN 2
                            WHEN trim(c.tbi_severity) = '1' OR c.tbi_severity ILIKE '%mild%' THEN 1
                            ELSE 0 END) = filter_tbi_level THEN 0.05 ELSE 0 END
            + CASE WHEN (COALESCE(c.surgery_count, cardinality(c.surgery_types)) > 0) = filter_has_surgery
                   THEN 0.05 ELSE 0 END
            + CASE WHEN filter_injury_category <> '' AND c.injury_category = filter_injury_category
                   THEN 0.05 ELSE 0 END
        ) AS similarity
    FROM (
        SELECT hc.*, hc.embedding <=> query_embedding AS distance
        FROM historical_cases hc
        WHERE hc.settlement_amount > 0
          AND hc.embedding IS NOT NULL
        ORDER BY hc.embedding <=> query_embedding
        LIMIT match_count * 4
    ) c
    ORDER BY similarity DESC, c.id
    LIMIT match_count;
$$;`

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx := context.Background()

	// The vector extension must exist before the pool registers the vector type
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalw("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Warnw("Failed to create pgvector extension", zap.Error(err))
	} else {
		log.Info("✓ pgvector extension enabled")
	}

	tables := []struct {
		name string
		sql  string
	}{
		{"historical_cases", historicalCasesSQL},
		{"case_evaluations", caseEvaluationsSQL},
		{"match_historical_cases()", matchFunctionSQL},
	}
	for _, tbl := range tables {
		if _, err := pool.Exec(ctx, tbl.sql); err != nil {
			log.Fatalw("Failed to create "+tbl.name, zap.Error(err))
		}
		log.Infof("✓ Created %s", tbl.name)
	}

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_historical_embedding_hnsw ON historical_cases
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Settled cases",
			sql:  "CREATE INDEX IF NOT EXISTS idx_historical_settled ON historical_cases(id) WHERE settlement_amount > 0;",
		},
		{
			name: "Missing embeddings",
			sql:  "CREATE INDEX IF NOT EXISTS idx_historical_missing_embedding ON historical_cases(id) WHERE embedding IS NULL;",
		},
		{
			name: "Venue filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_historical_venue ON historical_cases(lower(venue));",
		},
		{
			name: "Evaluation fingerprint lookup",
			sql:  "CREATE INDEX IF NOT EXISTS idx_evaluations_fingerprint ON case_evaluations(fingerprint);",
		},
		{
			name: "Evaluations by case",
			sql:  "CREATE INDEX IF NOT EXISTS idx_evaluations_case_id ON case_evaluations(case_id) WHERE case_id IS NOT NULL;",
		},
	}

	created := 0
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx.sql); err != nil {
			log.Warnw("Failed to create index", "index", idx.name, zap.Error(err))
			continue
		}
		created++
		log.Infof("✓ Created index: %s", idx.name)
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: historical_cases, case_evaluations")
	fmt.Println("   Function: match_historical_cases")
	fmt.Printf("   Indexes: %d of %d created\n", created, len(indexes))
}
