package commands

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/inferloop/esrnn/internal/config"
	"github.com/inferloop/esrnn/internal/model"
	"github.com/inferloop/esrnn/internal/observability/metrics"
	"github.com/inferloop/esrnn/internal/params"
	"github.com/inferloop/esrnn/internal/series"
)

// Runtime carries what every sub-command needs once flags and config are parsed.
type Runtime struct {
	ConfigFile  string
	MetricsFile string

	Config *config.Config
	Logger *logrus.Logger
	RunID  string
}

// Init loads the configuration through v and builds the logger.
func (r *Runtime) Init(v *viper.Viper) error {
	if r.ConfigFile != "" {
		v.SetConfigFile(r.ConfigFile)
	}
	cfg, err := config.FromViper(v, r.ConfigFile != "")
	if err != nil {
		return err
	}

	r.Config = cfg
	r.Logger = SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	r.RunID = uuid.New().String()

	r.Logger.WithFields(logrus.Fields{
		"run_id": r.RunID,
		"config": v.ConfigFileUsed(),
	}).Debug("Configuration loaded")
	return nil
}

// SetupLogger builds a logrus logger. Unknown levels fall back to info.
func SetupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// log returns an entry tagged with the run id.
func (r *Runtime) log() *logrus.Entry {
	return r.Logger.WithField("run_id", r.RunID)
}

// newModel sizes the model for the ids present in batch and attaches metrics
// when enabled or when a metrics file was requested.
func (r *Runtime) newModel(batch *series.Batch, storeOpts ...params.Option) (*model.ESRNN, *metrics.PrometheusMetrics, error) {
	cfg := r.Config.Model.Clone()
	for _, idx := range batch.Idxs {
		if idx >= cfg.NSeries {
			cfg.NSeries = idx + 1
		}
	}
	if cfg.NSeries != r.Config.Model.NSeries {
		r.log().WithField("n_series", cfg.NSeries).Info("Parameter tables resized to fit series ids")
	}

	opts := []model.Option{
		model.WithLogger(r.Logger),
		model.WithStoreOptions(storeOpts...),
	}

	var pm *metrics.PrometheusMetrics
	if r.Config.Metrics.Enabled || r.MetricsFile != "" {
		var err error
		pm, err = metrics.NewPrometheusMetrics(&metrics.PrometheusConfig{
			Namespace: r.Config.Metrics.Namespace,
			Subsystem: "model",
		}, r.Logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, model.WithMetrics(pm))
	}

	m, err := model.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, pm, nil
}

// flushMetrics writes the registry when a metrics file was requested.
func (r *Runtime) flushMetrics(pm *metrics.PrometheusMetrics) error {
	if pm == nil || r.MetricsFile == "" {
		return nil
	}
	return pm.WriteToTextfile(r.MetricsFile)
}
