package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnguard/config"
)

const telcoCSV = `customerID,gender,tenure,Contract,MonthlyCharges,TotalCharges,Churn
0001,Female,1,Month-to-month,29.85,29.85,No
0002,Male,34,One year,56.95,1889.5,No
0003,Male,2,Month-to-month,53.85,108.15,Yes
0004,Female,0,Two year,52.55, ,No
0005,Female,8,Month-to-month,99.65,820.5,
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func csvOptions() Options {
	return Options{LabelColumn: "Churn", PositiveLabel: "Yes", Exclude: []string{"customerID"}, Timeout: time.Second}
}

func TestCSVSourceDropsIncompleteRows(t *testing.T) {
	src := &CSVSource{Path: writeFile(t, "telco.csv", []byte(telcoCSV)), Options: csvOptions()}

	ds, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"gender", "tenure", "Contract", "MonthlyCharges", "TotalCharges"}, ds.Columns)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 2, ds.Dropped)
	assert.Equal(t, []int{0, 0, 1}, ds.Labels)
	assert.Equal(t, "Month-to-month", ds.Rows[2]["Contract"])
	_, hasID := ds.Rows[0]["customerID"]
	assert.False(t, hasID)
}

func TestCSVSourceDropsNonFiniteMarkers(t *testing.T) {
	data := "tenure,TotalCharges,Churn\n1,29.85,No\n2,NaN,No\n3,nan,Yes\n4,Inf,Yes\n5,-Infinity,No\n6,120.5,Yes\n"
	src := &CSVSource{Path: writeFile(t, "nan.csv", []byte(data)), Options: Options{LabelColumn: "Churn", PositiveLabel: "Yes"}}

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 4, ds.Dropped)
	assert.Equal(t, "29.85", ds.Rows[0]["TotalCharges"])
	assert.Equal(t, "120.5", ds.Rows[1]["TotalCharges"])
}

func TestCSVSourceDecodesCharset(t *testing.T) {
	data := []byte("city,tenure,Churn\nCaf\xe9,3,Yes\nParis,40,No\n")
	src := &CSVSource{
		Path:    writeFile(t, "latin1.csv", data),
		Charset: "latin1",
		Options: Options{LabelColumn: "Churn", PositiveLabel: "Yes"},
	}

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Café", ds.Rows[0]["city"])
}

func TestCSVSourceOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, telcoCSV)
	}))
	defer srv.Close()

	src := &CSVSource{Path: srv.URL + "/telco.csv", Options: csvOptions()}
	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}

func TestCSVSourceErrors(t *testing.T) {
	_, err := (&CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv"), Options: csvOptions()}).Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	noLabel := writeFile(t, "nolabel.csv", []byte("a,b\n1,2\n"))
	_, err = (&CSVSource{Path: noLabel, Options: csvOptions()}).Load(context.Background())
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	empty := writeFile(t, "empty.csv", nil)
	_, err = (&CSVSource{Path: empty, Options: csvOptions()}).Load(context.Background())
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func hubServer(t *testing.T, total int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/rows", r.URL.Path)
		assert.Equal(t, "org/churn", r.URL.Query().Get("dataset"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		length, _ := strconv.Atoi(r.URL.Query().Get("length"))

		type row struct {
			Row map[string]any `json:"row"`
		}
		var rows []row
		for i := offset; i < offset+length && i < total; i++ {
			churn := "No"
			if i%2 == 0 {
				churn = "Yes"
			}
			rows = append(rows, row{Row: map[string]any{
				"gender":         "Female",
				"SeniorCitizen":  i % 2,
				"Partner":        true,
				"tenure":         i,
				"MonthlyCharges": 20.5 + float64(i),
				"Churn":          churn,
			}})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"name": "gender"}, {"name": "SeniorCitizen"}, {"name": "Partner"},
				{"name": "tenure"}, {"name": "MonthlyCharges"}, {"name": "Churn"},
			},
			"rows":           rows,
			"num_rows_total": total,
		})
	}))
}

func TestHuggingFaceSourcePages(t *testing.T) {
	var calls int32
	srv := hubServer(t, 25, &calls)
	defer srv.Close()

	src := &HuggingFaceSource{
		Endpoint: srv.URL,
		Dataset:  "org/churn",
		Config:   "default",
		Split:    "train",
		PageSize: 10,
		Options:  Options{LabelColumn: "Churn", PositiveLabel: "yes"},
	}
	ds, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 25, ds.Len())
	assert.Equal(t, []string{"gender", "SeniorCitizen", "Partner", "tenure", "MonthlyCharges"}, ds.Columns)
	assert.Equal(t, 1, ds.Labels[0])
	assert.Equal(t, 0, ds.Labels[1])
	assert.Equal(t, 1.0, ds.Rows[3]["SeniorCitizen"])
	assert.Equal(t, 1.0, ds.Rows[3]["Partner"])
	assert.Equal(t, 3.0, ds.Rows[3]["tenure"])
	assert.Equal(t, "huggingface:org/churn/default/train", src.Name())
}

func TestHuggingFaceSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := &HuggingFaceSource{Endpoint: srv.URL, Dataset: "org/churn", Options: Options{LabelColumn: "Churn"}}
	_, err := src.Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestHuggingFaceSourceTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := &HuggingFaceSource{
		Endpoint: srv.URL,
		Dataset:  "org/churn",
		Options:  Options{LabelColumn: "Churn", Timeout: 50 * time.Millisecond},
	}
	start := time.Now()
	_, err := src.Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewSource(t *testing.T) {
	cfg := config.Default().Dataset
	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceSource{}, src)

	cfg.Kind = "csv"
	cfg.Path = "telco.csv"
	cfg.Charset = "klingon"
	_, err = NewSource(cfg, nil)
	assert.Error(t, err)

	cfg.Charset = "gbk"
	src, err = NewSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "csv:telco.csv", src.Name())
}

func TestFloat(t *testing.T) {
	v, ok := Float(" 12 ")
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)

	v, ok = Float(3.5)
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = Float("twelve")
	assert.False(t, ok)
}
