// Package dataset fetches the labelled customer table used to fit and analyse the model.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"churnguard/config"
)

var (
	// ErrUnavailable means the source could not be reached or read in time.
	ErrUnavailable = errors.New("dataset unavailable")
	// ErrMalformed means the source answered but its content is unusable.
	ErrMalformed = errors.New("malformed dataset")
)

// Record maps a column name to a string (categorical) or float64 (numeric) value.
type Record map[string]any

// Dataset is a cleaned table: every row has a value for every column and a label.
type Dataset struct {
	Columns []string
	Rows    []Record
	Labels  []int
	Dropped int
}

func (d *Dataset) Len() int { return len(d.Rows) }

// Source loads a Dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}

// Options are shared by every Source implementation.
type Options struct {
	LabelColumn   string
	PositiveLabel string
	Exclude       []string
	Timeout       time.Duration
	Client        *http.Client
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// NewSource builds the Source described by cfg.
func NewSource(cfg config.DatasetConfig, client *http.Client) (Source, error) {
	opts := Options{
		LabelColumn:   cfg.LabelColumn,
		PositiveLabel: cfg.PositiveLabel,
		Exclude:       cfg.ExcludeColumns,
		Timeout:       cfg.Timeout,
		Client:        client,
	}
	switch cfg.Kind {
	case "huggingface":
		return &HuggingFaceSource{
			Endpoint: cfg.Endpoint,
			Dataset:  cfg.Name,
			Config:   cfg.Subset,
			Split:    cfg.Split,
			Options:  opts,
		}, nil
	case "csv":
		if cfg.Charset != "" {
			if _, err := htmlindex.Get(cfg.Charset); err != nil {
				return nil, fmt.Errorf("unknown charset %q: %w", cfg.Charset, err)
			}
		}
		return &CSVSource{Path: cfg.Path, Charset: cfg.Charset, Options: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported dataset kind %q", cfg.Kind)
	}
}

// assemble drops incomplete rows, splits off the label and removes excluded columns.
func assemble(columns []string, raw []map[string]any, opts Options) (*Dataset, error) {
	labelSeen := false
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}
	features := make([]string, 0, len(columns))
	for _, name := range columns {
		if name == opts.LabelColumn {
			labelSeen = true
			continue
		}
		if excluded[name] {
			continue
		}
		features = append(features, name)
	}
	if !labelSeen {
		return nil, fmt.Errorf("%w: label column %q not found", ErrMalformed, opts.LabelColumn)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrMalformed)
	}

	ds := &Dataset{Columns: features}
	for _, row := range raw {
		label, ok := parseLabel(row[opts.LabelColumn], opts.PositiveLabel)
		if !ok {
			ds.Dropped++
			continue
		}
		record := make(Record, len(features))
		complete := true
		for _, name := range features {
			value, ok := normalize(row[name])
			if !ok {
				complete = false
				break
			}
			record[name] = value
		}
		if !complete {
			ds.Dropped++
			continue
		}
		ds.Rows = append(ds.Rows, record)
		ds.Labels = append(ds.Labels, label)
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("%w: no complete rows out of %d", ErrMalformed, len(raw))
	}
	return ds, nil
}

// normalize maps a raw cell to string or float64; ok is false for missing cells.
func normalize(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		// NaN and Inf markers count as missing.
		if f, err := strconv.ParseFloat(s, 64); err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return nil, false
		}
		return s, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return finite(f)
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1.0, true
		}
		return 0.0, true
	default:
		return nil, false
	}
}

func finite(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func parseLabel(v any, positive string) (int, bool) {
	value, ok := normalize(v)
	if !ok {
		return 0, false
	}
	switch t := value.(type) {
	case float64:
		if t != 0 {
			return 1, true
		}
		return 0, true
	case string:
		if strings.EqualFold(t, positive) || t == "1" || strings.EqualFold(t, "true") {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Float reads a numeric cell, accepting numeric strings as CSV sources produce them.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func fetch(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json, text/csv")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrUnavailable, url, resp.StatusCode)
	}
	return resp.Body, nil
}
