// Package service owns the fitted churn model and answers prediction and
// analytics requests against it.
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"churnguard/dataset"
	"churnguard/db"
	"churnguard/ml"
)

type Options struct {
	Fit          ml.FitOptions
	TenureColumn string
	// ProgressionTTL memoises ChurnProgression results; zero disables it.
	ProgressionTTL time.Duration
	Logger         *zap.Logger
}

// Service moves from Uninitialized to Ready exactly once, in Start. The
// published model is read without locks and never changes afterwards.
type Service struct {
	source dataset.Source
	store  db.Store
	opts   Options
	log    *zap.Logger

	model       atomic.Pointer[ml.FittedModel]
	progression *expirable.LRU[string, []TenureBucket]
}

func New(source dataset.Source, store db.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TenureColumn == "" {
		opts.TenureColumn = "tenure"
	}
	if opts.Fit.Source == "" && source != nil {
		opts.Fit.Source = source.Name()
	}
	s := &Service{
		source: source,
		store:  store,
		opts:   opts,
		log:    logger.Named("service"),
	}
	if opts.ProgressionTTL > 0 {
		s.progression = expirable.NewLRU[string, []TenureBucket](1, nil, opts.ProgressionTTL)
	}
	return s
}

// Start restores the model from the store, or fits and saves a new one when
// nothing usable is stored.
func (s *Service) Start(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	model, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.log.Info("model restored from store",
			zap.Int("features", len(model.Schema())),
			zap.Time("trained_at", model.TrainedAt))
		s.model.Store(model)
		return nil
	case errors.Is(err, db.ErrNotFound):
		s.log.Info("no stored model, training a new one")
	default:
		s.log.Warn("stored model unusable, training a new one", zap.Error(err))
	}

	model, err = s.Fit(ctx)
	if err != nil {
		return err
	}
	// An unsaved model still serves; the next start retrains.
	if err := s.Save(ctx, model); err != nil {
		s.log.Error("saving model failed", zap.Error(err))
	}
	s.model.Store(model)
	return nil
}

// Fit loads the dataset and runs the training pipeline. The result is
// neither saved nor published.
func (s *Service) Fit(ctx context.Context) (*ml.FittedModel, error) {
	start := time.Now()
	ds, err := s.source.Load(ctx)
	if err != nil {
		return nil, dataErr(err)
	}
	s.log.Info("dataset loaded",
		zap.String("source", s.source.Name()),
		zap.Int("rows", ds.Len()),
		zap.Int("dropped", ds.Dropped))

	model, err := ml.Fit(ds, s.opts.Fit)
	if err != nil {
		return nil, newError(KindInternal, "fit model: %w", err)
	}
	s.log.Info("model trained",
		zap.Float64("accuracy", model.Metrics.Accuracy),
		zap.Float64("precision", model.Metrics.Precision),
		zap.Float64("recall", model.Metrics.Recall),
		zap.Float64("f1", model.Metrics.F1),
		zap.Int("iterations", model.Classifier.Iterations),
		zap.String("status", model.Classifier.Status),
		zap.Bool("fit_on_full", model.FitOnFull),
		zap.Duration("took", time.Since(start)))
	return model, nil
}

// Save writes model to the store.
func (s *Service) Save(ctx context.Context, model *ml.FittedModel) error {
	if err := s.store.Save(ctx, model); err != nil {
		return newError(KindInternal, "save model: %w", err)
	}
	return nil
}

func (s *Service) Ready() bool { return s.model.Load() != nil }

// Model returns the published model or ErrModelNotLoaded.
func (s *Service) Model() (*ml.FittedModel, error) {
	model := s.model.Load()
	if model == nil {
		return nil, ErrModelNotLoaded
	}
	return model, nil
}

// Predict scores one raw record.
func (s *Service) Predict(record map[string]any) (ml.Prediction, error) {
	model, err := s.Model()
	if err != nil {
		return ml.Prediction{}, err
	}
	prediction, err := model.Predict(record)
	if errors.Is(err, ml.ErrInvalidRecord) {
		return ml.Prediction{}, &Error{Kind: KindInvalidInput, Err: err}
	}
	if err != nil {
		return ml.Prediction{}, newError(KindInternal, "predict: %w", err)
	}
	return prediction, nil
}

// DefaultReasons is the number of features TrendingReasons returns by default.
const DefaultReasons = 5

// TrendingReasons returns the limit features with the largest absolute
// coefficients, largest first.
func (s *Service) TrendingReasons(limit int) ([]ml.FeatureImportance, error) {
	model, err := s.Model()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReasons
	}
	ranked := model.Importance()
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

type ModelInfo struct {
	Features     ml.Schema           `json:"features"`
	Categories   map[string][]string `json:"categories"`
	Metrics      ml.Metrics          `json:"metrics"`
	Source       string              `json:"source"`
	TrainingRows int                 `json:"training_rows"`
	FitOnFull    bool                `json:"fit_on_full"`
	Iterations   int                 `json:"iterations"`
	Status       string              `json:"status"`
	TrainedAt    time.Time           `json:"trained_at"`
}

// ModelInfo describes the published model.
func (s *Service) ModelInfo() (*ModelInfo, error) {
	model, err := s.Model()
	if err != nil {
		return nil, err
	}
	categories := make(map[string][]string)
	for _, col := range model.Schema() {
		if col.Kind == ml.Categorical {
			categories[col.Name] = model.Preprocessor.Encoding.Categories(col.Name)
		}
	}
	return &ModelInfo{
		Features:     model.Schema(),
		Categories:   categories,
		Metrics:      model.Metrics,
		Source:       model.Source,
		TrainingRows: model.TrainingRows,
		FitOnFull:    model.FitOnFull,
		Iterations:   model.Classifier.Iterations,
		Status:       model.Classifier.Status,
		TrainedAt:    model.TrainedAt,
	}, nil
}

func dataErr(err error) error {
	if errors.Is(err, dataset.ErrUnavailable) {
		return &Error{Kind: KindDataUnavailable, Err: err}
	}
	return newError(KindInternal, "load dataset: %w", err)
}
