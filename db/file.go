package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"churnguard/ml"
)

// FileStore writes the artifact to <dir>/churn-model.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, ModelName+".json")
}

// Save replaces the artifact atomically through a temp file and rename.
func (s *FileStore) Save(ctx context.Context, model *ml.FittedModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := ml.MarshalModel(model)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ModelName+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path())
}

func (s *FileStore) Load(ctx context.Context) (*ml.FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ml.UnmarshalModel(payload)
}

func (s *FileStore) Close() error { return nil }
