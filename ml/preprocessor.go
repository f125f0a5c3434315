package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"churnguard/dataset"
)

// Preprocessor turns a raw record into a Feature Vector. It is fit once and
// shared by training and inference.
type Preprocessor struct {
	Schema   Schema          `json:"schema"`
	Encoding *EncodingTable  `json:"encoding"`
	Scaler   *StandardScaler `json:"scaler"`
}

// FitPreprocessor infers the schema, fits the encoder and scaler on the whole
// dataset and returns the standardised training matrix.
func FitPreprocessor(ds *dataset.Dataset) (*Preprocessor, *mat.Dense, error) {
	schema, err := InferSchema(ds)
	if err != nil {
		return nil, nil, err
	}
	p := &Preprocessor{Schema: schema, Encoding: FitEncoding(schema, ds.Rows)}

	raw := mat.NewDense(len(ds.Rows), len(schema), nil)
	for i, row := range ds.Rows {
		vector, err := p.Encode(row)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		raw.SetRow(i, vector)
	}

	p.Scaler, err = FitScaler(raw)
	if err != nil {
		return nil, nil, err
	}
	scaled, err := p.Scaler.TransformMatrix(raw)
	if err != nil {
		return nil, nil, err
	}
	return p, scaled, nil
}

// Encode maps record onto the schema without scaling. Every schema column
// must be present; keys outside the schema are ignored.
func (p *Preprocessor) Encode(record map[string]any) ([]float64, error) {
	vector := make([]float64, len(p.Schema))
	var missing []string
	for j, col := range p.Schema {
		value, ok := record[col.Name]
		if !ok || value == nil {
			missing = append(missing, col.Name)
			continue
		}
		var err error
		switch col.Kind {
		case Categorical:
			vector[j], err = p.Encoding.Encode(col.Name, value)
		default:
			vector[j], err = numeric(col.Name, value)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return vector, nil
}

// Vector encodes and standardises record.
func (p *Preprocessor) Vector(record map[string]any) ([]float64, error) {
	raw, err := p.Encode(record)
	if err != nil {
		return nil, err
	}
	return p.Scaler.Transform(raw)
}

func (p *Preprocessor) validate() error {
	if len(p.Schema) == 0 {
		return errors.New("empty schema")
	}
	if p.Scaler == nil || p.Encoding == nil {
		return errors.New("preprocessor is missing its scaler or encoding")
	}
	if err := p.Scaler.validate(); err != nil {
		return err
	}
	if p.Scaler.Len() != len(p.Schema) {
		return fmt.Errorf("scaler covers %d columns, schema has %d", p.Scaler.Len(), len(p.Schema))
	}
	for _, col := range p.Schema {
		switch col.Kind {
		case Categorical:
			if !p.Encoding.Has(col.Name) {
				return fmt.Errorf("no encoding for categorical column %q", col.Name)
			}
		case Numeric:
		default:
			return fmt.Errorf("column %q has unknown kind %q", col.Name, col.Kind)
		}
	}
	return nil
}

func numeric(column string, value any) (float64, error) {
	var f float64
	switch t := value.(type) {
	case float64:
		f = t
	case json.Number:
		v, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: column %q expects a number, got %q", ErrWrongType, column, t)
		}
		f = v
	case int:
		f = float64(t)
	case bool:
		if t {
			f = 1
		}
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: column %q expects a number, got %q", ErrWrongType, column, t)
		}
		f = v
	default:
		return 0, fmt.Errorf("%w: column %q expects a number, got %T", ErrWrongType, column, value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: column %q is not finite", ErrWrongType, column)
	}
	return f, nil
}
