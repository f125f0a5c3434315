package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	defaultHubEndpoint = "https://datasets-server.huggingface.co"
	maxHubPageSize     = 100
)

// HuggingFaceSource pages through the datasets-server rows API.
type HuggingFaceSource struct {
	Endpoint string
	Dataset  string
	Config   string
	Split    string
	PageSize int
	Options
}

type hubRowsPage struct {
	Features []struct {
		Name string `json:"name"`
	} `json:"features"`
	Rows []struct {
		Row map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func (s *HuggingFaceSource) Name() string {
	return fmt.Sprintf("huggingface:%s/%s/%s", s.Dataset, s.Config, s.Split)
}

func (s *HuggingFaceSource) Load(ctx context.Context) (*Dataset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pageSize := s.PageSize
	if pageSize <= 0 || pageSize > maxHubPageSize {
		pageSize = maxHubPageSize
	}

	var (
		columns []string
		rows    []map[string]any
		offset  int
	)
	for {
		page, err := s.page(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if columns == nil {
			columns = make([]string, 0, len(page.Features))
			for _, f := range page.Features {
				columns = append(columns, f.Name)
			}
		}
		for _, r := range page.Rows {
			rows = append(rows, r.Row)
		}
		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal {
			break
		}
	}
	return assemble(columns, rows, s.Options)
}

func (s *HuggingFaceSource) page(ctx context.Context, offset, length int) (*hubRowsPage, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultHubEndpoint
	}
	q := url.Values{}
	q.Set("dataset", s.Dataset)
	q.Set("config", s.Config)
	q.Set("split", s.Split)
	q.Set("offset", fmt.Sprint(offset))
	q.Set("length", fmt.Sprint(length))
	target := strings.TrimRight(endpoint, "/") + "/rows?" + q.Encode()

	body, err := fetch(ctx, s.client(), target)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	var page hubRowsPage
	if err := decoder.Decode(&page); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: decode rows page at offset %d: %v", ErrMalformed, offset, err)
	}
	return &page, nil
}
