package service

import (
	"go.uber.org/zap"

	"churnguard/config"
	"churnguard/dataset"
	"churnguard/db"
	"churnguard/ml"
)

// Build wires a Service from configuration. The caller owns the returned
// store and must close it.
func Build(cfg *config.Config, logger *zap.Logger) (*Service, db.Store, error) {
	source, err := dataset.NewSource(cfg.Dataset, nil)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.Open(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	svc := New(source, store, Options{
		Fit:            FitOptions(cfg.Training, source.Name()),
		TenureColumn:   cfg.Dataset.TenureColumn,
		ProgressionTTL: cfg.Analytics.ProgressionTTL,
		Logger:         logger,
	})
	return svc, store, nil
}

// FitOptions translates the training section of the configuration.
func FitOptions(t config.TrainingConfig, source string) ml.FitOptions {
	return ml.FitOptions{
		TestRatio:     t.TestRatio,
		Seed:          t.Seed,
		C:             t.C,
		MaxIterations: t.MaxIterations,
		FitOnFull:     t.FullCorpus(),
		Source:        source,
	}
}
