package ml

import (
	"encoding/json"
	"errors"
	"testing"

	"churnguard/dataset"
)

func TestFitEncodingSortsCategories(t *testing.T) {
	schema := Schema{{Name: "Contract", Kind: Categorical}, {Name: "tenure", Kind: Numeric}}
	rows := []dataset.Record{
		{"Contract": "Two year", "tenure": 60.0},
		{"Contract": "Month-to-month", "tenure": 1.0},
		{"Contract": "One year", "tenure": 20.0},
		{"Contract": "Month-to-month", "tenure": 3.0},
	}
	table := FitEncoding(schema, rows)

	want := []string{"Month-to-month", "One year", "Two year"}
	got := table.Categories("Contract")
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
		code, err := table.Encode("Contract", want[i])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != float64(i) {
			t.Fatalf("expected code %d for %q, got %v", i, want[i], code)
		}
	}
	if table.Has("tenure") {
		t.Fatal("numeric column should not be encoded")
	}
}

func TestEncodeRejectsUnknownAndWrongType(t *testing.T) {
	table := FitEncoding(Schema{{Name: "gender", Kind: Categorical}}, []dataset.Record{{"gender": "Female"}, {"gender": "Male"}})

	_, err := table.Encode("gender", "Other")
	if !errors.Is(err, ErrUnknownCategory) || !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	_, err = table.Encode("gender", true)
	if !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected wrong type, got %v", err)
	}
}

func TestEncodingTableJSON(t *testing.T) {
	table := FitEncoding(Schema{{Name: "Partner", Kind: Categorical}}, []dataset.Record{{"Partner": "Yes"}, {"Partner": "No"}})
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"Partner":["No","Yes"]}` {
		t.Fatalf("unexpected encoding json: %s", data)
	}

	var restored EncodingTable
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code, err := restored.Encode("Partner", "Yes")
	if err != nil || code != 1 {
		t.Fatalf("expected code 1, got %v (%v)", code, err)
	}

	if err := json.Unmarshal([]byte(`{"Partner":["No","No"]}`), &restored); err == nil {
		t.Fatal("expected duplicate category error")
	}
}
