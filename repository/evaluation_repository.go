package repository

import (
	"context"
	"errors"
	"fmt"

	"casevalue-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEvaluationNotFound = errors.New("evaluation not found")

// EvaluationRepository handles database operations for stored evaluations
type EvaluationRepository struct {
	db *pgxpool.Pool
}

// NewEvaluationRepository creates a new evaluation repository
func NewEvaluationRepository(db *pgxpool.Pool) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Create stores an evaluation result
func (r *EvaluationRepository) Create(ctx context.Context, ev *models.StoredEvaluation) error {
	query := `
		INSERT INTO case_evaluations (
			case_id, fingerprint, method, gross_amount, net_amount, proposal_amount, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		ev.CaseID,
		ev.Result.Fingerprint,
		string(ev.Result.Method),
		ev.Result.GrossAmount,
		ev.Result.NetAmount,
		ev.Result.ProposalAmount,
		ev.Result,
	).Scan(&ev.ID, &ev.CreatedAt)

	return err
}

// GetByID retrieves an evaluation by ID
func (r *EvaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoredEvaluation, error) {
	ev := &models.StoredEvaluation{}
	query := `
		SELECT id, case_id, result, report_path, created_at
		FROM case_evaluations
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&ev.ID,
		&ev.CaseID,
		&ev.Result,
		&ev.ReportPath,
		&ev.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEvaluationNotFound
	}
	if err != nil {
		return nil, err
	}

	return ev, nil
}

// UpdateReportPath records where the evaluation report was archived
func (r *EvaluationRepository) UpdateReportPath(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE case_evaluations SET report_path = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, path)
	if err != nil {
		return fmt.Errorf("failed to update report path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEvaluationNotFound
	}
	return nil
}
