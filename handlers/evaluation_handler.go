package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"casevalue-backend/models"
	"casevalue-backend/repository"
	"casevalue-backend/service"
	"casevalue-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluator values a case
type Evaluator interface {
	Evaluate(ctx context.Context, req service.EvaluateRequest) (*service.EvaluateResult, error)
}

// EvaluationStore persists evaluation results
type EvaluationStore interface {
	Create(ctx context.Context, ev *models.StoredEvaluation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoredEvaluation, error)
	UpdateReportPath(ctx context.Context, id uuid.UUID, path string) error
}

const reportName = "report.txt"

// EvaluationHandler handles HTTP requests for case evaluations
type EvaluationHandler struct {
	evaluator Evaluator
	store     EvaluationStore
	reports   storage.Storage
	weights   service.WeightsProvider
	logger    *zap.Logger
}

// NewEvaluationHandler creates a new evaluation handler. reports and weights may be nil.
func NewEvaluationHandler(
	evaluator Evaluator,
	store EvaluationStore,
	reports storage.Storage,
	weights service.WeightsProvider,
	logger *zap.Logger,
) *EvaluationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationHandler{
		evaluator: evaluator,
		store:     store,
		reports:   reports,
		weights:   weights,
		logger:    logger,
	}
}

// RegisterRoutes mounts the evaluation endpoints on an /api group
func (h *EvaluationHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/evaluations", h.CreateEvaluation)
	api.GET("/evaluations/:id", h.GetEvaluation)
	api.GET("/evaluations/:id/report", h.GetReport)
	api.GET("/weights", h.GetWeights)
}

// CreateEvaluationRequest represents the request body for evaluating a case
type CreateEvaluationRequest struct {
	Case          models.CaseInput      `json:"case"`
	Narrative     string                `json:"narrative"`
	Strategy      *models.StrategyHints `json:"strategy,omitempty"`
	IgnoreWeights *bool                 `json:"ignore_weights,omitempty"`
}

// CreateEvaluation handles POST /api/evaluations
func (h *EvaluationHandler) CreateEvaluation(c *gin.Context) {
	var req CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := c.Request.Context()
	result, err := h.evaluator.Evaluate(ctx, service.EvaluateRequest{
		Case:          req.Case,
		Narrative:     req.Narrative,
		Strategy:      req.Strategy,
		IgnoreWeights: req.IgnoreWeights,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "EVALUATION_FAILED", err.Error())
		return
	}

	stored := &models.StoredEvaluation{Result: *result.Evaluation}
	if req.Case.CaseID != "" {
		caseID := req.Case.CaseID
		stored.CaseID = &caseID
	}
	if err := h.store.Create(ctx, stored); err != nil {
		respondError(c, http.StatusInternalServerError, "PERSIST_FAILED", err.Error())
		return
	}

	// The report archive is best effort; the evaluation is already stored
	if h.reports != nil {
		report := service.RenderReport(req.Case.CaseID, &stored.Result)
		key, err := h.reports.Put(ctx, stored.ID, reportName, strings.NewReader(report))
		if err != nil {
			h.logger.Warn("failed to archive evaluation report", zap.String("evaluation_id", stored.ID.String()), zap.Error(err))
		} else if err := h.store.UpdateReportPath(ctx, stored.ID, key); err != nil {
			h.logger.Warn("failed to record report path", zap.String("evaluation_id", stored.ID.String()), zap.Error(err))
		} else {
			stored.ReportPath = &key
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    stored,
	})
}

// GetEvaluation handles GET /api/evaluations/:id
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	stored, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stored,
	})
}

// GetReport handles GET /api/evaluations/:id/report
func (h *EvaluationHandler) GetReport(c *gin.Context) {
	stored, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.reports == nil || stored.ReportPath == nil {
		respondError(c, http.StatusNotFound, "REPORT_NOT_FOUND", "No report archived for this evaluation")
		return
	}

	reader, err := h.reports.Get(c.Request.Context(), *stored.ReportPath)
	if errors.Is(err, storage.ErrReportNotFound) {
		respondError(c, http.StatusNotFound, "REPORT_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED", err.Error())
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+stored.ID.String()+`.txt"`)
	c.DataFromReader(http.StatusOK, -1, "text/plain; charset=utf-8", reader, nil)
}

// GetWeights handles GET /api/weights
func (h *EvaluationHandler) GetWeights(c *gin.Context) {
	if h.weights == nil {
		respondError(c, http.StatusServiceUnavailable, "WEIGHTS_UNAVAILABLE", "Weights cache not configured")
		return
	}

	snapshot, err := h.weights.Get(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "WEIGHTS_UNAVAILABLE", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}

func (h *EvaluationHandler) lookup(c *gin.Context) (*models.StoredEvaluation, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid evaluation ID format")
		return nil, false
	}

	stored, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrEvaluationNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Evaluation not found")
		return nil, false
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", err.Error())
		return nil, false
	}
	return stored, true
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
