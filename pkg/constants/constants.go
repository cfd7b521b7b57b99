package constants

// Application constants
const (
	// Application metadata
	AppName        = "esrnn"
	AppDescription = "Exponential smoothing + dilated RNN hybrid forecaster"
	AppVersion     = "0.1.0"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Model defaults
	DefaultInputSize     = 7
	DefaultOutputSize    = 7
	DefaultStateHSize    = 40
	DefaultNoiseStd      = 0.001
	DefaultCellType      = CellTypeLSTM
	DefaultDevice        = DeviceCPU
	DefaultSeed          = 1
	DefaultTargetAnchor  = TargetAnchorOutputEnd
	DefaultMetricsPrefix = "esrnn"

	// Raw (pre-activation) initial values of the per-series tables. The
	// logistic of 0.5 is ~0.62 and exp(0.5) is ~1.65.
	DefaultRawLevelSmoothing    = 0.5
	DefaultRawSeasonalSmoothing = 0.5
	DefaultRawInitialSeasonal   = 0.5
)

// Recurrent cell types
const (
	CellTypeLSTM = "LSTM"
	CellTypeGRU  = "GRU"
	CellTypeRNN  = "RNN"
)

// Devices
const (
	DeviceCPU = "cpu"
)

// Forward pass modes
const (
	ModeTrain   = "train"
	ModePredict = "predict"
)

// Target normalisation anchors
const (
	// TargetAnchorOutputEnd normalises a target window by the level at its last index.
	TargetAnchorOutputEnd = "output_end"
	// TargetAnchorOutputStart normalises a target window by the level at its first index.
	TargetAnchorOutputStart = "output_start"
)

// SupportedCellTypes lists the cell types understood by the recurrent layers.
var SupportedCellTypes = []string{CellTypeLSTM, CellTypeGRU, CellTypeRNN}

// MaxImplementedSeasonalities is the largest seasonality arity with a working recursion.
const MaxImplementedSeasonalities = 1

// MaxSeasonalities is the largest seasonality arity the configuration accepts.
const MaxSeasonalities = 2
