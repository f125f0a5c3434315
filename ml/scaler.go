package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minStd keeps constant columns from producing non-finite output.
const minStd = 1e-12

// StandardScaler standardises each column to zero mean and unit variance.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes population mean and standard deviation per column of X.
func FitScaler(X mat.Matrix) (*StandardScaler, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.New("cannot fit scaler on empty matrix")
	}
	s := &StandardScaler{Mean: make([]float64, c), Std: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if std < minStd || math.IsNaN(std) || math.IsInf(std, 0) {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

func (s *StandardScaler) Len() int { return len(s.Mean) }

// Transform returns a standardised copy of x.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformMatrix standardises every row of X into a new matrix.
func (s *StandardScaler) TransformMatrix(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d columns, got %d", len(s.Mean), c)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Std[j]
	}, X)
	return out, nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return fmt.Errorf("scaler has %d means and %d deviations", len(s.Mean), len(s.Std))
	}
	for j, std := range s.Std {
		if std <= 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			return fmt.Errorf("scaler column %d has invalid deviation %v", j, std)
		}
	}
	return nil
}
