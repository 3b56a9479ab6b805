package tapesort

import (
	"go.uber.org/zap"

	"github.com/tamirms/tapesort/internal/tape"
)

const (
	defaultTapes     = 3
	defaultChunkSize = 1 << 20

	minTapes = 2
	maxTapes = 64
	minOrder = 2
	maxOrder = 64
)

// Option is a functional option for configuring a FileSorter.
type Option func(*config)

type config struct {
	tapes          int
	order          int // 0 means "same as tapes"
	chunkSize      int
	tempDir        string
	skipMalformed  bool
	compactWorkers int
	verify         bool
	logger         *zap.Logger
}

func defaultConfig() *config {
	return &config{
		tapes:          defaultTapes,
		chunkSize:      defaultChunkSize,
		compactWorkers: 1,
		logger:         zap.NewNop(),
	}
}

// WithTapes sets the number of tapes. For the polyphase strategy this is the
// total m, of which m-1 receive the initial distribution. For the balanced
// strategy it is the size of each of its two tape groups. Straight and
// natural merges always use three tapes and ignore it.
func WithTapes(n int) Option {
	return func(c *config) {
		c.tapes = n
	}
}

// WithOrder sets the generalized Fibonacci order of the polyphase schedule.
// Default is the tape count.
func WithOrder(k int) Option {
	return func(c *config) {
		c.order = k
	}
}

// WithChunkSize sets how many values are sorted in memory at once before
// the tape phase. This bounds the working memory to roughly 4*n bytes.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithTempDir sets the directory under which each sort creates its private
// workspace. Default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *config) {
		c.tempDir = dir
	}
}

// WithSkipMalformed drops lines that are not integers, logging each one,
// instead of failing the sort with *errors.ParseError. The policy applies
// to every strategy and to every tape read.
func WithSkipMalformed() Option {
	return func(c *config) {
		c.skipMalformed = true
	}
}

// WithCompactionWorkers overlaps the per-round tape compactions of the
// polyphase strategy on n goroutines. Default 1 compacts sequentially.
func WithCompactionWorkers(n int) Option {
	return func(c *config) {
		c.compactWorkers = n
	}
}

// WithVerify compares the multiset of the sorted result with the input's
// before the input is replaced.
func WithVerify() Option {
	return func(c *config) {
		c.verify = true
	}
}

// WithLogger sets the sink for progress and diagnostic logging. A nil logger
// disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

func (c *config) effectiveOrder() int {
	if c.order == 0 {
		return c.tapes
	}
	return c.order
}

func (c *config) tapeOptions() tape.Options {
	return tape.Options{
		SkipMalformed: c.skipMalformed,
		Logger:        c.logger,
	}
}
