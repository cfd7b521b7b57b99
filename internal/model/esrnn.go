// Package model composes the smoothing engine, the window orchestrator and
// the recurrent predictor into the ES-RNN forecaster.
package model

import (
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/config"
	"github.com/inferloop/esrnn/internal/params"
	"github.com/inferloop/esrnn/internal/predictor"
	"github.com/inferloop/esrnn/internal/rnn"
	"github.com/inferloop/esrnn/internal/series"
	"github.com/inferloop/esrnn/internal/smoothing"
	"github.com/inferloop/esrnn/internal/windows"
	"github.com/inferloop/esrnn/pkg/errors"
)

// Recorder receives forward-pass instrumentation.
// *metrics.PrometheusMetrics implements it.
type Recorder interface {
	RecordForward(mode string, windows, series int, duration time.Duration)
	RecordFailure(mode, errorType string, duration time.Duration)
	RecordSnapshot()
}

// TrainOutput is what a training forward pass hands to the loss computation.
type TrainOutput struct {
	Targets     []*mat.Dense // normalised targets per window, nil in eval mode
	Predictions []*mat.Dense // normalised predictions per window
	Levels      *mat.Dense   // batch x n_time
}

// ESRNN is the hybrid exponential smoothing and recurrent network forecaster.
// Switching modes is not safe for concurrent use.
type ESRNN struct {
	config       *config.ModelConfig
	logger       *logrus.Logger
	metrics      Recorder
	engine       smoothing.Engine
	store        *params.Store
	orchestrator *windows.Orchestrator
	predictor    *predictor.Predictor
	training     bool
}

// Option configures an ESRNN.
type Option func(*options)

type options struct {
	logger       *logrus.Logger
	metrics      Recorder
	noise        windows.NoiseSource
	store        *params.Store
	storeOptions []params.Option
	factory      predictor.LayerFactory
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records every forward pass in r.
func WithMetrics(r Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithNoiseSource replaces the seeded source of training noise.
func WithNoiseSource(src windows.NoiseSource) Option {
	return func(o *options) { o.noise = src }
}

// WithStore shares an existing parameter store. It must match n_series and
// the seasonal periods of the configuration.
func WithStore(store *params.Store) Option {
	return func(o *options) { o.store = store }
}

// WithStoreOptions passes initial values to the parameter store the model creates.
func WithStoreOptions(opts ...params.Option) Option {
	return func(o *options) { o.storeOptions = append(o.storeOptions, opts...) }
}

// WithLayerFactory replaces the recurrent layer constructor.
func WithLayerFactory(f predictor.LayerFactory) Option {
	return func(o *options) { o.factory = f }
}

// New validates cfg and assembles the model. It starts in training mode.
func New(cfg *config.ModelConfig, opts ...Option) (*ESRNN, error) {
	if cfg == nil {
		cfg = config.DefaultModelConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}

	engine, err := smoothing.NewEngine(cfg.Seasonality)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = params.NewStore(cfg.NSeries, cfg.Seasonality, o.storeOptions...)
		if err != nil {
			return nil, err
		}
	} else if err := checkStore(store, cfg); err != nil {
		return nil, err
	}

	noise := o.noise
	if noise == nil && cfg.NoiseStd > 0 {
		noise = rand.New(rand.NewSource(cfg.Seed + 1))
	}

	predOpts := []predictor.Option{predictor.WithLogger(o.logger)}
	if o.factory != nil {
		predOpts = append(predOpts, predictor.WithLayerFactory(o.factory))
	}
	pred, err := predictor.New(cfg, rand.New(rand.NewSource(cfg.Seed)), predOpts...)
	if err != nil {
		return nil, err
	}

	m := &ESRNN{
		config:       cfg,
		logger:       o.logger,
		metrics:      o.metrics,
		engine:       engine,
		store:        store,
		orchestrator: windows.NewOrchestrator(cfg, engine, noise),
		predictor:    pred,
		training:     true,
	}

	m.logger.WithFields(logrus.Fields{
		"n_series":    cfg.NSeries,
		"input_size":  cfg.InputSize,
		"output_size": cfg.OutputSize,
		"seasonality": cfg.Seasonality,
		"cell_type":   cfg.CellType,
	}).Info("ES-RNN model initialized")

	return m, nil
}

// Train switches to training mode.
func (m *ESRNN) Train() { m.training = true }

// Eval switches to evaluation mode.
func (m *ESRNN) Eval() { m.training = false }

// Training reports whether the model is in training mode.
func (m *ESRNN) Training() bool { return m.training }

// Config returns a copy of the model configuration.
func (m *ESRNN) Config() *config.ModelConfig { return m.config.Clone() }

// Store returns the parameter store shared with the optimizer.
func (m *ESRNN) Store() *params.Store { return m.store }

// Predictor returns the recurrent network.
func (m *ESRNN) Predictor() *predictor.Predictor { return m.predictor }

// Parameters returns the network weights for the optimizer.
func (m *ESRNN) Parameters() []*rnn.Parameter { return m.predictor.Parameters() }

// Forward runs the windows of the current mode through the network. In
// training mode every sliding window is produced with noisy inputs and
// targets; in eval mode only the last window, without targets.
func (m *ESRNN) Forward(batch *series.Batch) (*TrainOutput, error) {
	mode := windows.ModePredict
	if m.training {
		mode = windows.ModeTrain
	}

	start := time.Now()
	set, preds, err := m.run(batch, mode)
	if err != nil {
		m.fail(mode, batch, start, err)
		return nil, err
	}
	m.succeed(mode, batch, set, start)

	return &TrainOutput{
		Targets:     set.Targets,
		Predictions: preds,
		Levels:      set.State.Levels,
	}, nil
}

// Predict returns the batch x output_size raw-scale forecast following the
// last observation, regardless of the current mode.
func (m *ESRNN) Predict(batch *series.Batch) (*mat.Dense, error) {
	mode := windows.ModePredict
	start := time.Now()

	set, preds, err := m.run(batch, mode)
	if err != nil {
		m.fail(mode, batch, start, err)
		return nil, err
	}

	yHat, err := m.engine.Predict(preds[len(preds)-1], set.State)
	if err != nil {
		m.fail(mode, batch, start, err)
		return nil, err
	}

	m.succeed(mode, batch, set, start)
	return yHat, nil
}

// Decompose returns the level and seasonal sequences of the batch.
func (m *ESRNN) Decompose(batch *series.Batch) (*smoothing.State, error) {
	if batch == nil {
		return nil, errors.NewPreconditionError(errors.CodeEmptyBatch, "nil batch")
	}
	if err := batch.Validate(m.config.ExogenousSize, m.config.NSeries); err != nil {
		return nil, err
	}
	snap, err := m.snapshot(batch.Idxs)
	if err != nil {
		return nil, err
	}
	return m.engine.ComputeState(batch.Y, snap)
}

func (m *ESRNN) run(batch *series.Batch, mode windows.Mode) (*windows.Set, []*mat.Dense, error) {
	if batch == nil {
		return nil, nil, errors.NewPreconditionError(errors.CodeEmptyBatch, "nil batch")
	}
	if err := batch.Validate(m.config.ExogenousSize, m.config.NSeries); err != nil {
		return nil, nil, err
	}

	snap, err := m.snapshot(batch.Idxs)
	if err != nil {
		return nil, nil, err
	}

	state, err := m.engine.ComputeState(batch.Y, snap)
	if err != nil {
		return nil, nil, err
	}

	set, err := m.orchestrator.Build(batch, state, mode)
	if err != nil {
		return nil, nil, err
	}

	preds, err := m.predictor.Forward(set.Inputs)
	if err != nil {
		return nil, nil, err
	}
	return set, preds, nil
}

func (m *ESRNN) snapshot(idxs []int) (*params.Snapshot, error) {
	snap, err := m.store.Snapshot(idxs)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordSnapshot()
	}
	return snap, nil
}

func (m *ESRNN) succeed(mode windows.Mode, batch *series.Batch, set *windows.Set, start time.Time) {
	elapsed := time.Since(start)
	if m.metrics != nil {
		m.metrics.RecordForward(string(mode), set.Len(), batch.Size(), elapsed)
	}
	m.logger.WithFields(logrus.Fields{
		"mode":       mode,
		"batch_size": batch.Size(),
		"n_time":     batch.NTime(),
		"windows":    set.Len(),
		"duration":   elapsed,
	}).Debug("Forward pass completed")
}

func (m *ESRNN) fail(mode windows.Mode, batch *series.Batch, start time.Time, err error) {
	elapsed := time.Since(start)
	errType := string(errors.ErrorTypeInternal)
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		errType = string(appErr.Type)
	}
	if m.metrics != nil {
		m.metrics.RecordFailure(string(mode), errType, elapsed)
	}

	fields := logrus.Fields{"mode": mode, "error_type": errType, "duration": elapsed}
	if batch != nil && batch.Y != nil {
		fields["batch_size"] = batch.Size()
	}
	m.logger.WithError(err).WithFields(fields).Debug("Forward pass aborted")
}

func checkStore(store *params.Store, cfg *config.ModelConfig) error {
	if store.NSeries() != cfg.NSeries {
		return errors.NewConfigurationError(errors.CodeInvalidSize, "parameter store does not match n_series").
			WithContext("store_series", store.NSeries()).
			WithContext("n_series", cfg.NSeries)
	}
	periods := store.Periods()
	if len(periods) != len(cfg.Seasonality) {
		return errors.NewConfigurationError(errors.CodeInvalidSeasonality, "parameter store does not match seasonality")
	}
	for k, p := range periods {
		if p != cfg.Seasonality[k] {
			return errors.NewConfigurationError(errors.CodeInvalidSeasonality, "parameter store does not match seasonality").
				WithContext("period", k)
		}
	}
	return nil
}
