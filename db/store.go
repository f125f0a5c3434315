// Package db persists the fitted churn model.
package db

import (
	"context"
	"errors"
	"fmt"

	"churnguard/config"
	"churnguard/ml"
)

// ModelName is the single well-known key the model is stored under.
const ModelName = "churn-model"

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("model not found")

// Store saves and restores the fitted model. The last Save wins.
type Store interface {
	Save(ctx context.Context, model *ml.FittedModel) error
	Load(ctx context.Context) (*ml.FittedModel, error)
	Close() error
}

// Open builds the Store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "file":
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
