// Package testutil builds deterministic churn datasets for tests.
package testutil

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"

	"churnguard/dataset"
)

var (
	contracts = []string{"Month-to-month", "One year", "Two year"}
	payments  = []string{"Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)"}
	genders   = []string{"Female", "Male"}
	yesNo     = []string{"Yes", "No"}
)

// Columns is the feature order of ChurnDataset.
var Columns = []string{"gender", "SeniorCitizen", "Partner", "tenure", "Contract", "PaymentMethod", "MonthlyCharges", "TotalCharges"}

// ChurnDataset generates n customers whose churn falls with tenure and longer
// contracts and rises with monthly charges, so short-tenure month-to-month
// customers churn and long-tenure ones mostly stay.
func ChurnDataset(n int, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &dataset.Dataset{Columns: append([]string(nil), Columns...)}
	for i := 0; i < n; i++ {
		tenure := float64(rng.Intn(73))
		contract := contracts[rng.Intn(len(contracts))]
		monthly := math.Round((18+rng.Float64()*100)*100) / 100
		record := dataset.Record{
			"gender":         genders[rng.Intn(2)],
			"SeniorCitizen":  float64(rng.Intn(2)),
			"Partner":        yesNo[rng.Intn(2)],
			"tenure":         tenure,
			"Contract":       contract,
			"PaymentMethod":  payments[rng.Intn(len(payments))],
			"MonthlyCharges": monthly,
			"TotalCharges":   math.Round(tenure*monthly*100) / 100,
		}
		score := 2.5 - 0.08*tenure + 0.02*(monthly-60)
		switch contract {
		case "Month-to-month":
			score += 1.5
		case "Two year":
			score -= 1
		}
		label := 0
		if score > 0 {
			label = 1
		}
		ds.Rows = append(ds.Rows, record)
		ds.Labels = append(ds.Labels, label)
	}
	return ds
}

// ChurnCSV renders ChurnDataset as CSV with a customerID column and a Churn label.
func ChurnCSV(n int, seed int64) string {
	ds := ChurnDataset(n, seed)
	var b strings.Builder
	b.WriteString("customerID," + strings.Join(Columns, ",") + ",Churn\n")
	for i, row := range ds.Rows {
		fmt.Fprintf(&b, "C%05d", i)
		for _, col := range Columns {
			switch v := row[col].(type) {
			case float64:
				fmt.Fprintf(&b, ",%v", v)
			default:
				fmt.Fprintf(&b, ",%s", v)
			}
		}
		if ds.Labels[i] == 1 {
			b.WriteString(",Yes\n")
		} else {
			b.WriteString(",No\n")
		}
	}
	return b.String()
}

// HighChurnRecord is a new month-to-month customer on a mid-range plan.
func HighChurnRecord() map[string]any {
	return map[string]any{
		"gender":         "Female",
		"SeniorCitizen":  0.0,
		"Partner":        "Yes",
		"tenure":         1.0,
		"Contract":       "Month-to-month",
		"PaymentMethod":  "Electronic check",
		"MonthlyCharges": 70.35,
		"TotalCharges":   70.35,
	}
}

// LoyalRecord is a long-tenure two-year customer.
func LoyalRecord() map[string]any {
	return map[string]any{
		"gender":         "Male",
		"SeniorCitizen":  0.0,
		"Partner":        "No",
		"tenure":         70.0,
		"Contract":       "Two year",
		"PaymentMethod":  "Mailed check",
		"MonthlyCharges": 25.0,
		"TotalCharges":   1750.0,
	}
}

// Source serves a fixed dataset and counts loads. Err, when set, is returned instead.
type Source struct {
	Data  *dataset.Dataset
	Err   error
	loads atomic.Int32
}

func (s *Source) Name() string { return "memory" }

func (s *Source) Load(ctx context.Context) (*dataset.Dataset, error) {
	s.loads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrUnavailable, err)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Data, nil
}

func (s *Source) Loads() int { return int(s.loads.Load()) }
