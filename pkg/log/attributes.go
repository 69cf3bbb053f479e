package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "NuSVR".
	ModelNameKey = "model.name"

	// OperationKey is the ML operation: "fit", "predict", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or subsystem emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "validation", "inference".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of rows in the data being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of columns in the data being processed.
	FeaturesKey = "data.features"

	// TargetsKey is the number of target columns.
	TargetsKey = "data.targets"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	AccuracyKey   = "metrics.accuracy"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
)

// Benchmark sweep and OOB tracking.
const (
	// ConfigKey names the benchmark configuration being run.
	ConfigKey = "bench.config"

	// ParamNameKey is the hyperparameter varied by the sweep.
	ParamNameKey = "bench.param"

	// ParamValueKey is the current value of the varied hyperparameter.
	ParamValueKey = "bench.value"

	// ComplexityKey is the model complexity measured at a sweep point.
	ComplexityKey = "bench.complexity"

	// ErrorMetricKey is the held-out prediction error at a sweep point.
	ErrorMetricKey = "bench.error"

	// LatencyKey is the mean predict wall-clock time in seconds.
	LatencyKey = "bench.latency_s"

	// NEstimatorsKey is the ensemble size.
	NEstimatorsKey = "ensemble.n_estimators"

	// OOBErrorKey is 1 - out-of-bag score.
	OOBErrorKey = "ensemble.oob_error"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Reproducibility.
const (
	RandomSeedKey = "config.random_seed"
	RunIDKey      = "bench.run_id"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
