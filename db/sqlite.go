package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"churnguard/ml"
)

const schema = `
    CREATE TABLE IF NOT EXISTS model_artifacts (
        name VARCHAR(50) PRIMARY KEY,
        payload BLOB NOT NULL,
        saved_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    `

// SQLiteStore keeps the model artifact in a single row of model_artifacts and
// appends a training_log entry on every save.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &SQLiteStore{db: database}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, model *ml.FittedModel) error {
	payload, err := ml.MarshalModel(model)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
        INSERT OR REPLACE INTO model_artifacts (name, payload, saved_at)
        VALUES (?, ?, ?)`,
		ModelName, payload, time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO training_log (model_name, accuracy, precision, recall, f1, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ModelName, model.Metrics.Accuracy, model.Metrics.Precision, model.Metrics.Recall,
		model.Metrics.F1, model.TrainedAt, model.TrainingRows)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) (*ml.FittedModel, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
        SELECT payload FROM model_artifacts WHERE name = ?`, ModelName).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ml.UnmarshalModel(payload)
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	F1         float64   `json:"f1"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// TrainingLog returns the most recent saves, newest first.
func (s *SQLiteStore) TrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, accuracy, precision, recall, f1, trained_at, data_points
        FROM training_log
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.Accuracy, &log.Precision, &log.Recall, &log.F1, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
