package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"churnguard/dataset"
)

// EncodingTable maps every categorical column's observed values to integer codes.
// Codes follow the sorted order of the values seen at fit time.
type EncodingTable struct {
	columns map[string]map[string]int
	values  map[string][]string
}

// FitEncoding scans the categorical columns of schema over rows.
func FitEncoding(schema Schema, rows []dataset.Record) *EncodingTable {
	values := make(map[string][]string)
	for _, col := range schema {
		if col.Kind != Categorical {
			continue
		}
		seen := make(map[string]bool)
		for _, row := range rows {
			s, ok := categoryString(row[col.Name])
			if !ok || seen[s] {
				continue
			}
			seen[s] = true
			values[col.Name] = append(values[col.Name], s)
		}
		sort.Strings(values[col.Name])
	}
	return newEncodingTable(values)
}

func newEncodingTable(values map[string][]string) *EncodingTable {
	t := &EncodingTable{
		columns: make(map[string]map[string]int, len(values)),
		values:  values,
	}
	for col, vs := range values {
		codes := make(map[string]int, len(vs))
		for i, v := range vs {
			codes[v] = i
		}
		t.columns[col] = codes
	}
	return t
}

// Encode returns the code of value in column.
func (t *EncodingTable) Encode(column string, value any) (float64, error) {
	codes, ok := t.columns[column]
	if !ok {
		return 0, fmt.Errorf("no encoding for column %q", column)
	}
	s, ok := categoryString(value)
	if !ok {
		return 0, fmt.Errorf("%w: column %q expects a string, got %T", ErrWrongType, column, value)
	}
	code, ok := codes[s]
	if !ok {
		return 0, fmt.Errorf("%w: column %q has no category %q", ErrUnknownCategory, column, s)
	}
	return float64(code), nil
}

// Categories lists the known values of column in code order.
func (t *EncodingTable) Categories(column string) []string {
	out := make([]string, len(t.values[column]))
	copy(out, t.values[column])
	return out
}

func (t *EncodingTable) Has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

func (t *EncodingTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.values)
}

func (t *EncodingTable) UnmarshalJSON(data []byte) error {
	var values map[string][]string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	for col, vs := range values {
		seen := make(map[string]bool, len(vs))
		for _, v := range vs {
			if seen[v] {
				return fmt.Errorf("duplicate category %q in column %q", v, col)
			}
			seen[v] = true
		}
	}
	*t = *newEncodingTable(values)
	return nil
}

func categoryString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
