package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"churnguard/dataset"
	"churnguard/testutil"
)

func fitSynthetic(t *testing.T) *FittedModel {
	t.Helper()
	model, err := Fit(testutil.ChurnDataset(800, 7), FitOptions{
		TestRatio:     0.2,
		Seed:          42,
		C:             1,
		MaxIterations: 1000,
		FitOnFull:     true,
		Source:        "memory",
		Now:           func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return model
}

func TestFitPipeline(t *testing.T) {
	model := fitSynthetic(t)

	if got := model.Schema().Names(); len(got) != len(testutil.Columns) {
		t.Fatalf("unexpected schema: %v", got)
	}
	for i, col := range model.Schema() {
		if col.Name != testutil.Columns[i] {
			t.Fatalf("schema order changed: %v", model.Schema().Names())
		}
	}
	if model.Schema()[0].Kind != Categorical || model.Schema()[3].Kind != Numeric {
		t.Fatalf("unexpected kinds: %+v", model.Schema())
	}
	if model.Metrics.TestRows != 160 || model.Metrics.TrainRows != 640 {
		t.Fatalf("unexpected split sizes: %+v", model.Metrics)
	}
	if model.Metrics.Accuracy < 0.8 {
		t.Fatalf("expected accuracy >= 0.8, got %v", model.Metrics.Accuracy)
	}
	if model.TrainingRows != 800 || !model.FitOnFull || model.Source != "memory" {
		t.Fatalf("unexpected model metadata: %+v", model)
	}
}

func TestPredictHighAndLowChurn(t *testing.T) {
	model := fitSynthetic(t)

	high, err := model.Predict(testutil.HighChurnRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high.Label != "Yes" || high.Probability < 0.5 {
		t.Fatalf("expected churn, got %+v", high)
	}

	low, err := model.Predict(testutil.LoyalRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if low.Label != "No" || low.Probability >= 0.5 {
		t.Fatalf("expected no churn, got %+v", low)
	}

	again, _ := model.Predict(testutil.HighChurnRecord())
	if again != high {
		t.Fatalf("prediction is not idempotent: %+v vs %+v", high, again)
	}
}

func TestPredictInvalidRecords(t *testing.T) {
	model := fitSynthetic(t)

	missing := testutil.HighChurnRecord()
	delete(missing, "tenure")
	if _, err := model.Predict(missing); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected missing field, got %v", err)
	}

	unknown := testutil.HighChurnRecord()
	unknown["Contract"] = "Weekly"
	if _, err := model.Predict(unknown); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}

	wrong := testutil.HighChurnRecord()
	wrong["MonthlyCharges"] = "a lot"
	if _, err := model.Predict(wrong); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected wrong type, got %v", err)
	}

	extra := testutil.HighChurnRecord()
	extra["customerID"] = "C00001"
	if _, err := model.Predict(extra); err != nil {
		t.Fatalf("extra keys should be ignored, got %v", err)
	}
}

func TestImportanceSorted(t *testing.T) {
	model := fitSynthetic(t)
	ranked := model.Importance()
	if len(ranked) != len(testutil.Columns) {
		t.Fatalf("expected %d entries, got %d", len(testutil.Columns), len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Importance > ranked[i-1].Importance {
			t.Fatalf("importance not descending: %+v", ranked)
		}
	}
	if ranked[0].Importance <= 0 {
		t.Fatalf("expected a non-zero top importance: %+v", ranked[0])
	}
}

func TestLabelForTieBreak(t *testing.T) {
	if LabelFor(0.5) != "No" {
		t.Fatal("a score of exactly 0.5 must map to No")
	}
	if LabelFor(0.5000001) != "Yes" {
		t.Fatal("a score above 0.5 must map to Yes")
	}
	if LabelFor(0) != "No" || LabelFor(1) != "Yes" {
		t.Fatal("unexpected labels at the extremes")
	}
}

func TestModelArtifactRoundTrip(t *testing.T) {
	model := fitSynthetic(t)
	data, err := MarshalModel(model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored, err := UnmarshalModel(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, record := range []map[string]any{testutil.HighChurnRecord(), testutil.LoyalRecord()} {
		before, _ := model.Predict(record)
		after, err := restored.Predict(record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if before != after {
			t.Fatalf("prediction changed after round trip: %+v vs %+v", before, after)
		}
	}
	if !restored.TrainedAt.Equal(model.TrainedAt) || restored.Metrics != model.Metrics {
		t.Fatalf("metadata changed after round trip")
	}
}

func TestUnmarshalModelRejectsBadArtifacts(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"wrong format":     `{"format":"pickle","model":{}}`,
		"no model":         `{"format":"churn-logreg/v1"}`,
		"weight mismatch":  `{"format":"churn-logreg/v1","model":{"preprocessor":{"schema":[{"name":"tenure","kind":"numeric"}],"encoding":{},"scaler":{"mean":[1],"std":[1]}},"classifier":{"weights":[1,2]}}}`,
		"missing encoding": `{"format":"churn-logreg/v1","model":{"preprocessor":{"schema":[{"name":"gender","kind":"categorical"}],"encoding":{},"scaler":{"mean":[1],"std":[1]}},"classifier":{"weights":[1]}}}`,
	}
	for name, payload := range cases {
		if _, err := UnmarshalModel([]byte(payload)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFitNeedsRows(t *testing.T) {
	if _, err := Fit(testutil.ChurnDataset(1, 1), FitOptions{}); err == nil {
		t.Fatal("expected error for a single row")
	}
}

func TestFitSkipsNonFiniteCells(t *testing.T) {
	csv := "tenure,Contract,TotalCharges,Churn\n" +
		"1,Month-to-month,29.85,Yes\n" +
		"2,Month-to-month,NaN,No\n" +
		"40,Two year,2400.5,No\n" +
		"3,Month-to-month,150.2,Yes\n" +
		"60,One year,inf,No\n" +
		"55,Two year,3300,No\n"
	path := filepath.Join(t.TempDir(), "churn.csv")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	src := &dataset.CSVSource{Path: path, Options: dataset.Options{LabelColumn: "Churn", PositiveLabel: "Yes"}}
	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 4 || ds.Dropped != 2 {
		t.Fatalf("expected 4 rows and 2 dropped, got %d and %d", ds.Len(), ds.Dropped)
	}

	model, err := Fit(ds, FitOptions{TestRatio: 0.25, Seed: 42, C: 1, MaxIterations: 200, FitOnFull: true})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if model.Schema()[2].Kind != Numeric {
		t.Fatalf("TotalCharges should be numeric: %+v", model.Schema())
	}
}
