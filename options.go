package condset

import (
	"log/slog"
)

// Defaults for the conditioning set.
const (
	DefaultDepth           = 4
	DefaultModuloSelection = 0.1
	DefaultMAC             = 5
	DefaultMDR             = 0.1
)

// Defaults for jobs.
const (
	// DefaultIBD2Threshold is the heterozygote overlap above which a
	// same-individual neighbor pair is treated as IBD2.
	DefaultIBD2Threshold = 0.75

	// DefaultRandomStates is the number of draws made for a window with too
	// few states.
	DefaultRandomStates = 100

	// DefaultMinStates is the state count below which a window falls back
	// to random states.
	DefaultMinStates = 2
)

type options struct {
	depth            int
	moduloSelection  float64
	mac              int
	mdr              float64
	memoryLimit      int64
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures the conditioning set.
type Option func(*options)

// WithDepth sets the number of neighbors kept per haplotype and group.
func WithDepth(depth int) Option {
	return func(o *options) {
		o.depth = depth
	}
}

// WithModuloSelection sets the width, in centimorgans, of site groups.
// Sites whose genetic positions round to the same multiple share a group.
func WithModuloSelection(cm float64) Option {
	return func(o *options) {
		o.moduloSelection = cm
	}
}

// WithMAC sets the minimum minor allele count of swept sites.
func WithMAC(mac int) Option {
	return func(o *options) {
		o.mac = mac
	}
}

// WithMDR sets the maximum missing data rate of swept sites.
func WithMDR(mdr float64) Option {
	return func(o *options) {
		o.mdr = mdr
	}
}

// WithMemoryLimit bounds the bytes the neighbor table may take.
// Zero disables the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := condset.NewJSONLogger(slog.LevelInfo)
//	cs, _ := condset.New(variants, panel, condset.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		depth:            DefaultDepth,
		moduloSelection:  DefaultModuloSelection,
		mac:              DefaultMAC,
		mdr:              DefaultMDR,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

type jobOptions struct {
	seed             uint64
	ibd2Threshold    float64
	randomStates     int
	minStates        int
	metricsCollector MetricsCollector
	logger           *Logger
}

// JobOption configures a Job.
type JobOption func(*jobOptions)

// WithSeed seeds the random haplotype ordering used for fallback states.
func WithSeed(seed uint64) JobOption {
	return func(o *jobOptions) {
		o.seed = seed
	}
}

// WithIBD2Threshold sets the heterozygote overlap above which a pair of
// haplotypes from one individual is removed.
func WithIBD2Threshold(threshold float64) JobOption {
	return func(o *jobOptions) {
		o.ibd2Threshold = threshold
	}
}

// WithRandomStates sets the number of ordering draws for a window with too
// few states.
func WithRandomStates(n int) JobOption {
	return func(o *jobOptions) {
		o.randomStates = n
	}
}

// WithMinStates sets the state count below which a window falls back to
// random states.
func WithMinStates(n int) JobOption {
	return func(o *jobOptions) {
		o.minStates = n
	}
}

// WithJobMetrics configures the metrics collector of a job.
func WithJobMetrics(mc MetricsCollector) JobOption {
	return func(o *jobOptions) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithJobLogger configures the logger of a job.
func WithJobLogger(logger *Logger) JobOption {
	return func(o *jobOptions) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

func applyJobOptions(optFns []JobOption) jobOptions {
	o := jobOptions{
		seed:             1,
		ibd2Threshold:    DefaultIBD2Threshold,
		randomStates:     DefaultRandomStates,
		minStates:        DefaultMinStates,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
