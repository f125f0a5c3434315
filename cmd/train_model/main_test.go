package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnguard/db"
	"churnguard/testutil"
)

func writeConfig(t *testing.T, driver, storePath string) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "churn.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testutil.ChurnCSV(300, 9)), 0o644))

	cfg := fmt.Sprintf(`log:
  level: error
dataset:
  kind: csv
  path: %s
  exclude_columns: [customerID]
store:
  driver: %s
  path: %s
training:
  max_iterations: 300
`, csvPath, driver, storePath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainModelSavesToSQLite(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "churn.db")
	out, err := run(t, "--config", writeConfig(t, "sqlite", storePath), "--history", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "trained on 300 rows")
	assert.Contains(t, out, "model saved to sqlite store")
	assert.Contains(t, out, "TRAINED AT")

	store, err := db.OpenSQLite(storePath)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Load(context.Background())
	assert.NoError(t, err)
}

func TestTrainModelFailsWhenSaveFails(t *testing.T) {
	storeDir := t.TempDir()
	// A directory where the artifact belongs makes the final rename fail.
	blocker := filepath.Join(storeDir, db.ModelName+".json")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	out, err := run(t, "--config", writeConfig(t, "file", storeDir))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to save model")
	assert.NotContains(t, out, "model saved")
}

func TestTrainModelRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: redis\n"), 0o644))

	_, err := run(t, "-c", path)
	assert.ErrorContains(t, err, "unsupported store driver")
}
