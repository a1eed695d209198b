package alloc

import (
	"log/slog"

	"github.com/joshuapare/heapkit/heap/seglist"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
)

// DefaultChunkSize is the minimum extension in bytes. 196 rounds to 50
// words, so a fresh heap holds one 200-byte free block.
const DefaultChunkSize = 196

// Config controls allocator sizing and diagnostics.
type Config struct {
	// ChunkSize is the minimum number of bytes requested from the arena per
	// extension. Values below MinBlockSize are raised to it.
	ChunkSize int

	// Classes is the number of free-list size classes.
	Classes int

	// Logger receives allocator logs. Nil means logger.L.
	Logger *slog.Logger

	// Trace logs every operation at debug level. Defaults to whether
	// HEAPKIT_LOG_ALLOC is set.
	Trace bool

	// CheckEveryOp runs the heap checker after every mutating call and fails
	// the call with ErrCorrupt when it finds violations.
	CheckEveryOp bool
}

// DefaultConfig returns the reference sizing: 196-byte chunks, ten classes.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Classes:   seglist.DefaultClasses,
		Trace:     logger.AllocTracing(),
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithChunkSize sets the minimum extension size in bytes.
func WithChunkSize(n int) Option {
	return func(c *Config) { c.ChunkSize = n }
}

// WithClasses sets the number of size classes.
func WithClasses(n int) Option {
	return func(c *Config) { c.Classes = n }
}

// WithLogger sets the allocator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithTrace turns per-operation debug logging on or off.
func WithTrace(on bool) Option {
	return func(c *Config) { c.Trace = on }
}

// WithCheckEveryOp turns on the per-operation heap check.
func WithCheckEveryOp(on bool) Option {
	return func(c *Config) { c.CheckEveryOp = on }
}

func (c *Config) normalize() {
	c.ChunkSize = max(c.ChunkSize, format.MinBlockSize)
	if c.Classes <= 0 {
		c.Classes = seglist.DefaultClasses
	}
	if c.Logger == nil {
		c.Logger = logger.L
	}
}
