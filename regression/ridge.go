// Package regression fits a ridge-regularized linear model on a retrieved
// neighborhood and predicts the query case's settlement.
package regression

import (
	"context"
	"errors"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"casevalue-backend/models"
	"casevalue-backend/money"
)

const (
	// MinimumCaseValue floors predictions from sparse or degenerate neighborhoods
	MinimumCaseValue = 25000.0
	// PrimaryAlpha is the ridge penalty for embedding-retrieved neighbors
	PrimaryAlpha = 0.3
	// FallbackAlpha is the heavier penalty for structured-only neighbors
	FallbackAlpha = 0.8

	pivotEpsilon = 1e-12
	dimensions   = models.FeatureCount + 1 // intercept + features
)

var (
	ErrNoNeighbors    = errors.New("no neighbors to fit")
	ErrSingularMatrix = errors.New("normal equations are singular")
)

// Fit solves (XᵗX + αI')β = Xᵗy over the neighbors, where I' leaves the
// intercept unpenalized, then predicts the target. Neighbors without a
// positive settlement are ignored.
func Fit(ctx context.Context, target models.CaseFeatures, neighbors []models.HistoricalCase, alpha float64) (*models.RegressionResult, error) {
	_, span := otel.Tracer("regression").Start(ctx, "regression.Fit")
	defer span.End()

	usable := make([]models.HistoricalCase, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Settlement > 0 {
			usable = append(usable, n)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoNeighbors
	}
	if alpha < 0 {
		alpha = 0
	}

	x := make([][]float64, len(usable))
	y := make([]float64, len(usable))
	ids := make([]string, len(usable))
	for i, n := range usable {
		x[i] = designRow(n.Features)
		y[i] = n.Settlement
		ids[i] = n.ID
	}

	beta, err := Solve(NormalEquations(x, y, alpha))
	var raw float64
	if err != nil {
		// Only reachable with alpha == 0; the neighborhood mean is the safe estimate
		raw = mean(y)
		beta = nil
	} else {
		raw = dot(designRow(target), beta)
	}

	prediction := money.Round(raw)
	if float64(prediction) < MinimumCaseValue {
		prediction = int64(MinimumCaseValue)
	}

	confidence := Confidence(target, usable)

	span.SetAttributes(
		attribute.Int("neighbors", len(usable)),
		attribute.Float64("alpha", alpha),
		attribute.Int64("prediction", prediction),
		attribute.Float64("confidence", confidence),
	)

	return &models.RegressionResult{
		Prediction:   prediction,
		Confidence:   confidence,
		NeighborIDs:  ids,
		Coefficients: beta,
		Alpha:        alpha,
	}, nil
}

// designRow prepends the intercept to the scaled feature vector
func designRow(f models.CaseFeatures) []float64 {
	scaled := f.Scaled()
	row := make([]float64, dimensions)
	row[0] = 1
	copy(row[1:], scaled[:])
	return row
}

// NormalEquations builds the augmented system [XᵗX + αI' | Xᵗy]. Column 0 is
// the intercept and receives no penalty.
func NormalEquations(x [][]float64, y []float64, alpha float64) [][]float64 {
	p := 0
	if len(x) > 0 {
		p = len(x[0])
	}
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p+1)
	}

	for r, row := range x {
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][p] += row[i] * y[r]
		}
	}
	for i := 1; i < p; i++ {
		a[i][i] += alpha
	}
	return a
}

// Solve runs Gaussian elimination with partial pivoting on an augmented
// n x (n+1) matrix. The input is modified.
func Solve(a [][]float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotEpsilon {
			return nil, ErrSingularMatrix
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	beta := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := a[i][n]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * beta[j]
		}
		beta[i] = sum / a[i][i]
	}
	return beta, nil
}

// Confidence is the mean cosine similarity between the target and each
// neighbor's scaled features, as a 0-100 score. It measures how representative
// the neighborhood is, not goodness of fit.
func Confidence(target models.CaseFeatures, neighbors []models.HistoricalCase) float64 {
	if len(neighbors) == 0 {
		return 0
	}
	t := target.Scaled()
	total := 0.0
	for _, n := range neighbors {
		v := n.Features.Scaled()
		total += cosine(t[:], v[:])
	}
	score := total / float64(len(neighbors)) * 100
	return math.Max(0, math.Min(100, score))
}

func cosine(a, b []float64) float64 {
	var ab, aa, bb float64
	for i := range a {
		ab += a[i] * b[i]
		aa += a[i] * a[i]
		bb += b[i] * b[i]
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
