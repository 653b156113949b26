package ingestion

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/storage"
)

// Report summarizes a batch written by one of the writers.
type Report struct {
	Processed int // items looked at
	Written   int // rows inserted or updated
	Failures  []Failure
}

// Err joins every per-item failure, or returns nil.
func (r *Report) Err() error {
	return joinFailures(r.Failures)
}

func (r *Report) fail(path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
}

type writerConfig struct {
	logger     *slog.Logger
	dedupe     bool
	progress   io.Writer
	attempts   int
	retryDelay time.Duration
}

func newWriterConfig(component string, opts []WriterOption) writerConfig {
	cfg := writerConfig{
		logger:     slog.Default(),
		progress:   io.Discard,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = cfg.logger.With("component", component)
	return cfg
}

// WriterOption configures Persister, Backfiller, FaceLinker and
// LocalImporter.
type WriterOption func(*writerConfig)

// WithDeduplication stores a path key with every picture row and skips rows
// whose key already exists. Face rows are inserted ignoring duplicate ids.
// Without it a second run duplicates every row.
func WithDeduplication() WriterOption {
	return func(c *writerConfig) {
		c.dedupe = true
	}
}

// WithProgress writes a progress line to w while a batch runs.
// Default is no progress output.
func WithProgress(w io.Writer) WriterOption {
	return func(c *writerConfig) {
		if w != nil {
			c.progress = w
		}
	}
}

// WithWriterRetry sets how often a failed remote lookup is attempted.
// Values below 1 are ignored.
func WithWriterRetry(attempts int, delay time.Duration) WriterOption {
	return func(c *writerConfig) {
		if attempts >= 1 {
			c.attempts = attempts
			c.retryDelay = delay
		}
	}
}

// WithWriterLogger sets a custom logger.
// Default is slog.Default().
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// insertPicture adds one dbx_pictures row and reports whether a row was
// written. taken may be nil.
func insertPicture(ctx context.Context, exec storage.Executor, dedupe bool, path string, topic core.Topic, taken *time.Time) (bool, error) {
	cols := []string{"path", "topic"}
	vals := []any{path, string(topic)}
	if taken != nil {
		cols = append(cols, "taken")
		vals = append(vals, *taken)
	}
	if dedupe {
		cols = append(cols, "path_key")
		vals = append(vals, core.IDFromContent(path).Hex())
	}

	insert := squirrel.Insert("dbx_pictures").Columns(cols...).Values(vals...)
	if dedupe {
		insert = insert.Options(exec.Dialect().InsertIgnore())
	}
	result, err := exec.ExecBuilder(ctx, insert)
	if err != nil {
		return false, err
	}
	return affected(result), nil
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

// affected reports whether a statement touched a row. Drivers that cannot
// tell are assumed to have written it.
func affected(result rowsAffected) bool {
	n, err := result.RowsAffected()
	return err != nil || n > 0
}
