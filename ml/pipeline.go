package ml

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"churnguard/dataset"
)

// FitOptions control the training pipeline.
type FitOptions struct {
	TestRatio     float64
	Seed          int64
	C             float64
	MaxIterations int
	// FitOnFull refits the shipped classifier on every row after the
	// held-out evaluation. When false the evaluated model is shipped as is.
	FitOnFull bool
	Source    string
	Now       func() time.Time
}

// Fit runs encoder, scaler and classifier fitting over ds. The encoder and
// scaler always see the full dataset; the classifier is first fit on the
// training split to produce Metrics.
func Fit(ds *dataset.Dataset, opts FitOptions) (*FittedModel, error) {
	if ds == nil || ds.Len() < 2 {
		return nil, errors.New("need at least two rows to fit")
	}
	if len(ds.Labels) != ds.Len() {
		return nil, fmt.Errorf("dataset has %d rows and %d labels", ds.Len(), len(ds.Labels))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	pre, X, err := FitPreprocessor(ds)
	if err != nil {
		return nil, err
	}
	y := make([]float64, len(ds.Labels))
	for i, label := range ds.Labels {
		y[i] = float64(label)
	}

	train, test := TrainTestSplit(ds.Len(), opts.TestRatio, opts.Seed)
	classifier := NewLogisticRegression(opts.C, opts.MaxIterations)
	if err := classifier.Fit(selectRows(X, train), pick(y, train)); err != nil {
		return nil, err
	}

	yTrue := make([]int, len(test))
	yPred := make([]int, len(test))
	for k, i := range test {
		p, err := classifier.PredictProba(X.RawRowView(i))
		if err != nil {
			return nil, err
		}
		yTrue[k] = ds.Labels[i]
		if LabelFor(p) == "Yes" {
			yPred[k] = 1
		}
	}
	metrics := Evaluate(yTrue, yPred)
	metrics.TrainRows = len(train)

	if opts.FitOnFull {
		classifier = NewLogisticRegression(opts.C, opts.MaxIterations)
		if err := classifier.Fit(X, y); err != nil {
			return nil, err
		}
	}

	model := &FittedModel{
		Preprocessor: pre,
		Classifier:   classifier,
		Metrics:      metrics,
		Source:       opts.Source,
		TrainingRows: ds.Len(),
		FitOnFull:    opts.FitOnFull,
		TrainedAt:    now().UTC(),
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func selectRows(X *mat.Dense, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		out.SetRow(k, X.RawRowView(i))
	}
	return out
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
