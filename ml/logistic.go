package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is a binary classifier with an L2 penalty of ||w||²/(2C).
// The intercept is not penalised. Weights start at zero, so fitting is deterministic.
type LogisticRegression struct {
	Weights       []float64 `json:"weights"`
	Intercept     float64   `json:"intercept"`
	C             float64   `json:"c"`
	MaxIterations int       `json:"max_iterations"`
	Iterations    int       `json:"iterations"`
	Status        string    `json:"status"`
}

func NewLogisticRegression(c float64, maxIterations int) *LogisticRegression {
	if c <= 0 {
		c = 1
	}
	if maxIterations <= 0 {
		maxIterations = 1000
	}
	return &LogisticRegression{C: c, MaxIterations: maxIterations}
}

// Fit minimises the penalised log-loss of X against y (0/1) with L-BFGS.
func (m *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.New("features or labels empty")
	}
	if r != len(y) {
		return fmt.Errorf("features and labels size mismatch: %d rows, %d labels", r, len(y))
	}
	lambda := 1 / m.C

	z := mat.NewVecDense(r, nil)
	resid := mat.NewVecDense(r, nil)
	grad := mat.NewVecDense(c, nil)
	margins := func(theta []float64) {
		z.MulVec(X, mat.NewVecDense(c, theta[:c]))
		for i := 0; i < r; i++ {
			z.SetVec(i, z.AtVec(i)+theta[c])
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			margins(theta)
			loss := 0.0
			for i := 0; i < r; i++ {
				zi := z.AtVec(i)
				loss += softplus(zi) - y[i]*zi
			}
			w := theta[:c]
			return loss + 0.5*lambda*floats.Dot(w, w)
		},
		Grad: func(g, theta []float64) {
			margins(theta)
			for i := 0; i < r; i++ {
				resid.SetVec(i, sigmoid(z.AtVec(i))-y[i])
			}
			grad.MulVec(X.T(), resid)
			for j := 0; j < c; j++ {
				g[j] = grad.AtVec(j) + lambda*theta[j]
			}
			g[c] = mat.Sum(resid)
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   m.MaxIterations,
		GradientThreshold: 1e-6,
	}
	result, err := optimize.Minimize(problem, make([]float64, c+1), settings, &optimize.LBFGS{})
	if result == nil || !allFinite(result.X) {
		if err == nil {
			err = errors.New("optimizer produced non-finite weights")
		}
		return fmt.Errorf("fit logistic regression: %w", err)
	}

	m.Weights = append([]float64(nil), result.X[:c]...)
	m.Intercept = result.X[c]
	m.Iterations = result.MajorIterations
	m.Status = result.Status.String()
	return nil
}

// PredictProba returns P(y=1|x).
func (m *LogisticRegression) PredictProba(x []float64) (float64, error) {
	if len(m.Weights) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(x) != len(m.Weights) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Weights), len(x))
	}
	return sigmoid(floats.Dot(m.Weights, x) + m.Intercept), nil
}

// Coefficients returns a copy of the per-feature weights.
func (m *LogisticRegression) Coefficients() []float64 {
	return append([]float64(nil), m.Weights...)
}

func (m *LogisticRegression) validate(features int) error {
	if len(m.Weights) != features {
		return fmt.Errorf("classifier has %d weights for %d features", len(m.Weights), features)
	}
	if !allFinite(m.Weights) || !allFinite([]float64{m.Intercept}) {
		return errors.New("classifier has non-finite weights")
	}
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1+e^z) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
