package repository

import (
	"context"
	"fmt"

	"casevalue-backend/embedding"
	"casevalue-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// HistoricalCaseRepository handles database operations for the settled case corpus
type HistoricalCaseRepository struct {
	db *pgxpool.Pool
}

// NewHistoricalCaseRepository creates a new historical case repository
func NewHistoricalCaseRepository(db *pgxpool.Pool) *HistoricalCaseRepository {
	return &HistoricalCaseRepository{db: db}
}

const historicalCaseColumns = `
			id, accident_type, venue, primary_injury, injury_description,
			surgery_types, surgery_count, injection_types, injection_count,
			tbi_severity, treatment_gap_days, treatment_duration_days, pending_surgery,
			liability_percent, economic_damages, demand_amount, policy_limits,
			incident_date, plaintiff_age, narrative, settlement_amount`

// SearchSimilar runs the hybrid similarity function: cosine similarity to
// embedding, boosted for each matching filter hint. Only settled cases are returned.
func (r *HistoricalCaseRepository) SearchSimilar(
	ctx context.Context,
	vector []float32,
	filters models.SimilarityFilters,
	limit int,
) ([]models.HistoricalCase, error) {
	if len(vector) != embedding.Dimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", embedding.Dimensions, len(vector))
	}

	query := `
		SELECT ` + historicalCaseColumns + `, similarity
		FROM match_historical_cases($1, $2, $3, $4, $5, $6, $7)`

	rows, err := r.db.Query(ctx, query,
		pgvector.NewVector(vector),
		filters.LiabilityBucket,
		filters.PolicyBucket,
		filters.TBILevel,
		filters.HasSurgery,
		filters.InjuryCategory,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar cases: %w", err)
	}
	defer rows.Close()

	var cases []models.HistoricalCase
	for rows.Next() {
		var hc models.HistoricalCase
		dest := append(historicalCaseDest(&hc), &hc.Similarity)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan similar case: %w", err)
		}
		cases = append(cases, hc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similar cases: %w", err)
	}

	return cases, nil
}

// ScanSettled reads every case with a positive settlement
func (r *HistoricalCaseRepository) ScanSettled(ctx context.Context) ([]models.HistoricalCase, error) {
	query := `
		SELECT ` + historicalCaseColumns + `
		FROM historical_cases
		WHERE settlement_amount > 0
		ORDER BY id`

	return r.list(ctx, query)
}

// ListMissingEmbeddings returns up to limit cases that have no embedding yet
func (r *HistoricalCaseRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.HistoricalCase, error) {
	query := `
		SELECT ` + historicalCaseColumns + `
		FROM historical_cases
		WHERE embedding IS NULL
		ORDER BY id
		LIMIT $1`

	return r.list(ctx, query, limit)
}

// UpdateEmbedding stores the embedding for a case
func (r *HistoricalCaseRepository) UpdateEmbedding(ctx context.Context, id string, vector []float32) error {
	if len(vector) != embedding.Dimensions {
		return fmt.Errorf("embedding must be %d dimensions, got %d", embedding.Dimensions, len(vector))
	}

	query := `
		UPDATE historical_cases
		SET embedding = $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("historical case %s not found", id)
	}
	return nil
}

// Upsert inserts or replaces a corpus case and derives its filter buckets.
// The embedding is cleared so the backfill picks the case up again.
func (r *HistoricalCaseRepository) Upsert(ctx context.Context, hc models.HistoricalCase, filters models.SimilarityFilters) error {
	rec := hc.Record
	query := `
		INSERT INTO historical_cases (
			id, accident_type, venue, primary_injury, injury_description,
			surgery_types, surgery_count, injection_types, injection_count,
			tbi_severity, treatment_gap_days, treatment_duration_days, pending_surgery,
			liability_percent, economic_damages, demand_amount, policy_limits,
			incident_date, plaintiff_age, narrative, settlement_amount,
			liability_bucket, policy_bucket, injury_category
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (id) DO UPDATE SET
			accident_type = EXCLUDED.accident_type,
			venue = EXCLUDED.venue,
			primary_injury = EXCLUDED.primary_injury,
			injury_description = EXCLUDED.injury_description,
			surgery_types = EXCLUDED.surgery_types,
			surgery_count = EXCLUDED.surgery_count,
			injection_types = EXCLUDED.injection_types,
			injection_count = EXCLUDED.injection_count,
			tbi_severity = EXCLUDED.tbi_severity,
			treatment_gap_days = EXCLUDED.treatment_gap_days,
			treatment_duration_days = EXCLUDED.treatment_duration_days,
			pending_surgery = EXCLUDED.pending_surgery,
			liability_percent = EXCLUDED.liability_percent,
			economic_damages = EXCLUDED.economic_damages,
			demand_amount = EXCLUDED.demand_amount,
			policy_limits = EXCLUDED.policy_limits,
			incident_date = EXCLUDED.incident_date,
			plaintiff_age = EXCLUDED.plaintiff_age,
			narrative = EXCLUDED.narrative,
			settlement_amount = EXCLUDED.settlement_amount,
			liability_bucket = EXCLUDED.liability_bucket,
			policy_bucket = EXCLUDED.policy_bucket,
			injury_category = EXCLUDED.injury_category,
			embedding = NULL,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		hc.ID,
		rec.AccidentType,
		rec.Venue,
		rec.PrimaryInjury,
		rec.InjuryDescription,
		nonNilStrings(rec.SurgeryTypes),
		rec.SurgeryCount,
		nonNilStrings(rec.InjectionTypes),
		rec.InjectionCount,
		rec.TBISeverity,
		rec.TreatmentGapDays,
		rec.TreatmentDurationDays,
		rec.PendingSurgery,
		rec.LiabilityPercent,
		rec.EconomicDamages,
		rec.DemandAmount,
		rec.PolicyLimits,
		rec.IncidentDate,
		rec.PlaintiffAge,
		hc.Narrative,
		hc.Settlement,
		filters.LiabilityBucket,
		filters.PolicyBucket,
		filters.InjuryCategory,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert historical case %s: %w", hc.ID, err)
	}
	return nil
}

func (r *HistoricalCaseRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.HistoricalCase, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical cases: %w", err)
	}
	defer rows.Close()

	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.HistoricalCase, error) {
		var hc models.HistoricalCase
		err := row.Scan(historicalCaseDest(&hc)...)
		return hc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan historical cases: %w", err)
	}
	return cases, nil
}

// historicalCaseDest lists scan targets in historicalCaseColumns order
func historicalCaseDest(hc *models.HistoricalCase) []interface{} {
	rec := &hc.Record
	return []interface{}{
		&hc.ID,
		&nullString{&rec.AccidentType},
		&nullString{&rec.Venue},
		&nullString{&rec.PrimaryInjury},
		&nullString{&rec.InjuryDescription},
		&rec.SurgeryTypes,
		&rec.SurgeryCount,
		&rec.InjectionTypes,
		&rec.InjectionCount,
		&nullString{&rec.TBISeverity},
		&rec.TreatmentGapDays,
		&rec.TreatmentDurationDays,
		&rec.PendingSurgery,
		&rec.LiabilityPercent,
		&rec.EconomicDamages,
		&rec.DemandAmount,
		&rec.PolicyLimits,
		&rec.IncidentDate,
		&rec.PlaintiffAge,
		&nullString{&hc.Narrative},
		&hc.Settlement,
	}
}

// nullString scans a nullable text column into a plain string
type nullString struct {
	dst *string
}

func (n *nullString) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*n.dst = ""
	case string:
		*n.dst = v
	case []byte:
		*n.dst = string(v)
	default:
		return fmt.Errorf("cannot scan %T into string", src)
	}
	return nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
