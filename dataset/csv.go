package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// CSVSource reads a headed CSV table from a local path or an http(s) URL.
// Charset names a non UTF-8 encoding such as "latin1" or "gbk".
type CSVSource struct {
	Path    string
	Charset string
	Options
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var reader io.Reader = bufio.NewReader(body)
	if s.Charset != "" && !strings.EqualFold(s.Charset, "utf-8") {
		enc, err := htmlindex.Get(s.Charset)
		if err != nil {
			return nil, fmt.Errorf("unknown charset %q: %w", s.Charset, err)
		}
		reader = transform.NewReader(reader, enc.NewDecoder())
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, s.readErr(ctx, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]any
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, s.readErr(ctx, err)
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return assemble(header, rows, s.Options)
}

func (s *CSVSource) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(s.Path, "http://") || strings.HasPrefix(s.Path, "https://") {
		return fetch(ctx, s.client(), s.Path)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return f, nil
}

func (s *CSVSource) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
