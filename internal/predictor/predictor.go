// Package predictor stacks dilated recurrent layers into the forecasting
// network that maps normalised input windows to normalised forecasts.
package predictor

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/config"
	"github.com/inferloop/esrnn/internal/rnn"
	"github.com/inferloop/esrnn/pkg/errors"
)

// LayerFactory builds the recurrent layer for one dilation group.
type LayerFactory func(inputSize, hiddenSize int, dilations []int, cellType string, rng *rand.Rand) (rnn.Layer, error)

// DefaultLayerFactory builds a DRNN using every dilation of the group.
func DefaultLayerFactory(inputSize, hiddenSize int, dilations []int, cellType string, rng *rand.Rand) (rnn.Layer, error) {
	return rnn.NewDRNN(inputSize, hiddenSize, len(dilations), dilations, cellType, rng)
}

// Predictor is the recurrent stack followed by an optional tanh projection and
// a linear adapter to the forecast horizon.
type Predictor struct {
	logger  *logrus.Logger
	layers  []rnn.Layer
	nl      *rnn.DenseLayer // nil unless add_nl_layer
	adapter *rnn.DenseLayer
}

// Option configures a Predictor.
type Option func(*options)

type options struct {
	factory LayerFactory
	logger  *logrus.Logger
}

// WithLayerFactory replaces the recurrent layer constructor.
func WithLayerFactory(f LayerFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds one layer per dilation group. The first group reads
// input_size+exogenous_size features, the rest read state_hsize.
func New(cfg *config.ModelConfig, rng *rand.Rand, opts ...Option) (*Predictor, error) {
	o := &options{factory: DefaultLayerFactory}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	if len(cfg.Dilations) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidDilations, "at least one dilation group is required")
	}

	p := &Predictor{
		logger: o.logger,
		layers: make([]rnn.Layer, len(cfg.Dilations)),
	}

	in := cfg.WindowWidth()
	for g, group := range cfg.Dilations {
		layer, err := o.factory(in, cfg.StateHSize, group, cfg.CellType, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to build dilation group %d: %w", g, err)
		}
		if layer.InputSize() != in || layer.HiddenSize() != cfg.StateHSize {
			return nil, errors.NewShapeError(errors.CodeSequenceShape,
				fmt.Sprintf("group %d layer is %dx%d, want %dx%d", g, layer.InputSize(), layer.HiddenSize(), in, cfg.StateHSize))
		}
		p.layers[g] = layer
		in = cfg.StateHSize
	}

	if cfg.AddNLLayer {
		p.nl = rnn.NewDenseLayer(cfg.StateHSize, cfg.StateHSize, rng)
	}
	p.adapter = rnn.NewDenseLayer(cfg.StateHSize, cfg.OutputSize, rng)

	p.logger.WithFields(logrus.Fields{
		"groups":       len(p.layers),
		"dilations":    cfg.Dilations,
		"cell_type":    cfg.CellType,
		"state_hsize":  cfg.StateHSize,
		"add_nl_layer": cfg.AddNLLayer,
	}).Debug("Recurrent predictor initialized")

	return p, nil
}

// Forward maps every window (batch x input) to a batch x output_size forecast.
func (p *Predictor) Forward(inputs []*mat.Dense) ([]*mat.Dense, error) {
	seq := inputs
	for g, layer := range p.layers {
		out, _, err := layer.Forward(seq)
		if err != nil {
			return nil, fmt.Errorf("dilation group %d: %w", g, err)
		}
		if len(out) != len(seq) {
			return nil, errors.NewShapeError(errors.CodeSequenceShape,
				fmt.Sprintf("dilation group %d returned %d steps for %d", g, len(out), len(seq)))
		}
		if g > 0 {
			for t := range out {
				var sum mat.Dense
				sum.Add(out[t], seq[t])
				out[t] = &sum
			}
		}
		seq = out
	}

	preds := make([]*mat.Dense, len(seq))
	for t, h := range seq {
		if p.nl != nil {
			projected, err := p.nl.Forward(h)
			if err != nil {
				return nil, err
			}
			projected.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, projected)
			h = projected
		}
		y, err := p.adapter.Forward(h)
		if err != nil {
			return nil, err
		}
		preds[t] = y
	}
	return preds, nil
}

// Layers returns the recurrent layers, one per dilation group.
func (p *Predictor) Layers() []rnn.Layer {
	return p.layers
}

// Projection returns the tanh projection layer, or nil when disabled.
func (p *Predictor) Projection() *rnn.DenseLayer {
	return p.nl
}

// Adapter returns the output adapter.
func (p *Predictor) Adapter() *rnn.DenseLayer {
	return p.adapter
}

// Parameters returns every trainable weight of the network.
func (p *Predictor) Parameters() []*rnn.Parameter {
	var ps []*rnn.Parameter
	for g, layer := range p.layers {
		for _, param := range layer.Parameters() {
			named := *param
			named.Name = fmt.Sprintf("group%d.%s", g, param.Name)
			ps = append(ps, &named)
		}
	}
	if p.nl != nil {
		ps = append(ps, p.nl.Parameters("nl")...)
	}
	ps = append(ps, p.adapter.Parameters("adapter")...)
	return ps
}
