// Package windows slices series batches into normalised input and target
// windows for the recurrent predictor.
package windows

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/config"
	"github.com/inferloop/esrnn/internal/series"
	"github.com/inferloop/esrnn/internal/smoothing"
	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

// Mode selects which windows are produced.
type Mode string

const (
	// ModeTrain produces every window with a complete target region.
	ModeTrain Mode = constants.ModeTrain
	// ModePredict produces the single window ending at the last observation.
	ModePredict Mode = constants.ModePredict
)

// NoiseSource supplies standard normal draws. *rand.Rand satisfies it.
type NoiseSource interface {
	NormFloat64() float64
}

// Set is the window batch of one forward pass.
type Set struct {
	Inputs  []*mat.Dense // one batch x (input_size+exogenous_size) matrix per window
	Targets []*mat.Dense // one batch x output_size matrix per window, nil outside training
	Offsets []int
	State   *smoothing.State
}

// Len returns the number of windows.
func (s *Set) Len() int {
	return len(s.Inputs)
}

// Offsets returns the window start offsets for a series of length nTime.
func Offsets(nTime, inputSize, outputSize int, mode Mode) ([]int, error) {
	var offsets []int
	switch mode {
	case ModeTrain:
		last := nTime - inputSize - outputSize
		for o := 0; o <= last; o++ {
			offsets = append(offsets, o)
		}
	case ModePredict:
		if o := nTime - inputSize; o >= 0 {
			offsets = []int{o}
		}
	default:
		return nil, errors.NewInternalError(fmt.Sprintf("unknown window mode %q", mode))
	}

	if len(offsets) == 0 {
		return nil, errors.NewPreconditionError(errors.CodeSeriesTooShort,
			fmt.Sprintf("series of length %d too short for input %d and output %d in %s mode",
				nTime, inputSize, outputSize, mode)).
			WithContext("n_time", nTime)
	}
	return offsets, nil
}

// AddGaussianNoise returns m plus independent N(0, std^2) draws from src.
func AddGaussianNoise(m mat.Matrix, std float64, src NoiseSource) *mat.Dense {
	out := mat.DenseCopyOf(m)
	if std == 0 || src == nil {
		return out
	}
	out.Apply(func(_, _ int, v float64) float64 {
		return v + std*src.NormFloat64()
	}, out)
	return out
}

// Orchestrator builds window sets from a batch and its smoothing state.
type Orchestrator struct {
	engine        smoothing.Engine
	inputSize     int
	outputSize    int
	exogenousSize int
	noiseStd      float64
	anchor        string
	noise         NoiseSource
}

// NewOrchestrator creates an orchestrator for the model configuration. noise
// may be nil, in which case no noise is added.
func NewOrchestrator(cfg *config.ModelConfig, engine smoothing.Engine, noise NoiseSource) *Orchestrator {
	return &Orchestrator{
		engine:        engine,
		inputSize:     cfg.InputSize,
		outputSize:    cfg.OutputSize,
		exogenousSize: cfg.ExogenousSize,
		noiseStd:      cfg.NoiseStd,
		anchor:        cfg.TargetLevelAnchor,
		noise:         noise,
	}
}

// Build assembles the windows for mode. Training windows carry targets and
// noisy inputs; the prediction window carries neither.
func (o *Orchestrator) Build(batch *series.Batch, state *smoothing.State, mode Mode) (*Set, error) {
	if got := batch.ExogenousSize(); got != o.exogenousSize {
		return nil, errors.NewShapeError(errors.CodeExogenousMismatch,
			fmt.Sprintf("exogenous width %d does not match configured %d", got, o.exogenousSize))
	}
	if batch.Categories != nil {
		if r, _ := batch.Categories.Dims(); r != batch.Size() {
			return nil, errors.NewShapeError(errors.CodeExogenousMismatch,
				fmt.Sprintf("got %d category rows for %d series", r, batch.Size()))
		}
	}

	offsets, err := Offsets(batch.NTime(), o.inputSize, o.outputSize, mode)
	if err != nil {
		return nil, err
	}

	set := &Set{
		Inputs:  make([]*mat.Dense, 0, len(offsets)),
		Offsets: offsets,
		State:   state,
	}
	if mode == ModeTrain {
		set.Targets = make([]*mat.Dense, 0, len(offsets))
	}

	for _, off := range offsets {
		inEnd := off + o.inputSize
		input, err := o.engine.Normalize(batch.Y, state, off, inEnd, inEnd-1)
		if err != nil {
			return nil, err
		}
		if mode == ModeTrain {
			input = AddGaussianNoise(input, o.noiseStd, o.noise)
		}
		set.Inputs = append(set.Inputs, o.appendExogenous(input, batch.Categories))

		if mode != ModeTrain {
			continue
		}
		outEnd := inEnd + o.outputSize
		target, err := o.engine.Normalize(batch.Y, state, inEnd, outEnd, o.targetAnchor(inEnd, outEnd))
		if err != nil {
			return nil, err
		}
		set.Targets = append(set.Targets, target)
	}

	return set, nil
}

func (o *Orchestrator) targetAnchor(start, end int) int {
	if o.anchor == constants.TargetAnchorOutputStart {
		return start
	}
	return end - 1
}

func (o *Orchestrator) appendExogenous(input, categories *mat.Dense) *mat.Dense {
	if categories == nil {
		return input
	}
	var out mat.Dense
	out.Augment(input, categories)
	return &out
}
