package ml

import (
	"errors"
	"fmt"
	"strconv"

	"churnguard/dataset"
)

var (
	// ErrInvalidRecord is the parent of every per-record input error.
	ErrInvalidRecord   = errors.New("invalid record")
	ErrMissingField    = fmt.Errorf("%w: missing field", ErrInvalidRecord)
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidRecord)
	ErrWrongType       = fmt.Errorf("%w: wrong type", ErrInvalidRecord)
)

type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered list of model inputs.
type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// InferSchema keeps the dataset column order. A column is numeric when every
// value is a number or a string that parses as one.
func InferSchema(ds *dataset.Dataset) (Schema, error) {
	if ds == nil || len(ds.Columns) == 0 {
		return nil, errors.New("dataset has no columns")
	}
	schema := make(Schema, len(ds.Columns))
	for i, name := range ds.Columns {
		kind := Numeric
		for _, row := range ds.Rows {
			if !isNumber(row[name]) {
				kind = Categorical
				break
			}
		}
		schema[i] = Column{Name: name, Kind: kind}
	}
	return schema, nil
}

func isNumber(v any) bool {
	switch t := v.(type) {
	case float64:
		return true
	case string:
		_, err := strconv.ParseFloat(t, 64)
		return err == nil
	}
	return false
}
