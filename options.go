package bcsymbols

import (
	"log/slog"
	"time"

	"github.com/ThaSiouL/bc-symbols-mcp/codec"
	"github.com/ThaSiouL/bc-symbols-mcp/compress"
	"github.com/ThaSiouL/bc-symbols-mcp/eviction"
)

const (
	// DefaultTTL bounds container entry age.
	DefaultTTL = 30 * time.Minute

	// DefaultCacheCeiling caps the lazy cache footprint.
	DefaultCacheCeiling = 100 << 20

	// DefaultPartitionCeiling caps the partitioned store footprint.
	DefaultPartitionCeiling = 64 << 20

	// DefaultBatchSize is the progressive-load batch size.
	DefaultBatchSize = 50

	// DefaultBackgroundSlots bounds concurrent background load tasks.
	DefaultBackgroundSlots = 2
)

type options struct {
	ttl              time.Duration
	cacheCeiling     int64
	partitionCeiling int64
	memoryLimit      int64
	batchSize        int
	parallelism      int
	pause            time.Duration
	slots            int
	strategy         eviction.Strategy
	codec            codec.Codec
	compressor       compress.Compressor
	metricsCollector MetricsCollector
	logger           *Logger
	now              func() time.Time
}

// Option configures Engine construction.
type Option func(*options)

// WithTTL bounds how long an admitted container stays valid, measured
// from admission. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithCacheCeiling caps the lazy cache's estimated footprint in bytes.
// Zero disables memory-triggered eviction.
func WithCacheCeiling(bytes int64) Option {
	return func(o *options) {
		o.cacheCeiling = bytes
	}
}

// WithPartitionCeiling caps the partitioned store's stored bytes. Zero
// disables memory-triggered eviction. Metadata blobs never count as
// victims.
func WithPartitionCeiling(bytes int64) Option {
	return func(o *options) {
		o.partitionCeiling = bytes
	}
}

// WithMemoryLimit sets a hard process-wide budget enforced by the
// resource controller. Zero means track usage without enforcing.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithBatchSize sets the progressive-load batch size.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithLoadParallelism bounds concurrent materializations within one
// load batch.
func WithLoadParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithInterBatchPause sleeps between load batches to yield.
func WithInterBatchPause(d time.Duration) Option {
	return func(o *options) {
		o.pause = d
	}
}

// WithBackgroundSlots bounds how many background load tasks run at
// once.
func WithBackgroundSlots(n int) Option {
	return func(o *options) {
		o.slots = n
	}
}

// WithEvictionStrategy picks eviction victims for both stores.
// If nil is passed, eviction.Recency is used.
func WithEvictionStrategy(s eviction.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithCodec configures the codec used for footprint estimation and
// partition payload encoding.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompressor compresses partition payloads. If nil is passed,
// payloads are stored raw.
func WithCompressor(c compress.Compressor) Option {
	return func(o *options) {
		if c == nil {
			c = compress.None{}
		}
		o.compressor = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bcsymbols.BasicMetricsCollector{}
//	eng, _ := bcsymbols.New(bcsymbols.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := bcsymbols.NewJSONLogger(slog.LevelInfo)
//	eng, _ := bcsymbols.New(bcsymbols.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
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

// WithClock overrides the engine's clock. Embedders with their own
// time source (or tests) can pin expiry and eviction decisions to it.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		ttl:              DefaultTTL,
		cacheCeiling:     DefaultCacheCeiling,
		partitionCeiling: DefaultPartitionCeiling,
		batchSize:        DefaultBatchSize,
		slots:            DefaultBackgroundSlots,
		strategy:         eviction.Recency{},
		compressor:       compress.None{},
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
