package ml

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Threshold splits probabilities into labels; a score must exceed it to be "Yes".
const Threshold = 0.5

// Prediction is the answer for one record.
type Prediction struct {
	Probability float64 `json:"churn_score"`
	Label       string  `json:"churn_prediction"`
}

// LabelFor maps a probability to "Yes" or "No". Exactly Threshold is "No".
func LabelFor(p float64) string {
	if p > Threshold {
		return "Yes"
	}
	return "No"
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FittedModel is everything needed to score a raw record. It is never mutated
// after Fit or UnmarshalModel returns it.
type FittedModel struct {
	Preprocessor *Preprocessor       `json:"preprocessor"`
	Classifier   *LogisticRegression `json:"classifier"`
	Metrics      Metrics             `json:"metrics"`
	Source       string              `json:"source"`
	TrainingRows int                 `json:"training_rows"`
	FitOnFull    bool                `json:"fit_on_full"`
	TrainedAt    time.Time           `json:"trained_at"`
}

func (m *FittedModel) Schema() Schema { return m.Preprocessor.Schema }

// Predict encodes, scales and scores record.
func (m *FittedModel) Predict(record map[string]any) (Prediction, error) {
	vector, err := m.Preprocessor.Vector(record)
	if err != nil {
		return Prediction{}, err
	}
	p, err := m.Classifier.PredictProba(vector)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Probability: p, Label: LabelFor(p)}, nil
}

// Importance ranks every feature by the absolute value of its coefficient,
// largest first. Ties keep schema order.
func (m *FittedModel) Importance() []FeatureImportance {
	coef := m.Classifier.Coefficients()
	out := make([]FeatureImportance, len(coef))
	for j, w := range coef {
		out[j] = FeatureImportance{Feature: m.Preprocessor.Schema[j].Name, Importance: math.Abs(w)}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

// Validate checks that the parts of the model agree on the feature count.
func (m *FittedModel) Validate() error {
	if m.Preprocessor == nil || m.Classifier == nil {
		return errors.New("model is missing its preprocessor or classifier")
	}
	if err := m.Preprocessor.validate(); err != nil {
		return err
	}
	return m.Classifier.validate(len(m.Preprocessor.Schema))
}
