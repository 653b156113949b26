package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gargbot/archivist/batch"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote"
	"github.com/gargbot/archivist/storage"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Pipeline classifies the pictures of a remote folder tree by their EXIF
// keywords. Downloads run concurrently on a bounded worker pool.
type Pipeline struct {
	store          remote.Store
	walker         *remote.Walker
	pool           *ants.Pool
	limiter        *rate.Limiter
	attempts       int
	retryDelay     time.Duration
	checkpoints    storage.CheckpointRepository
	checkpointName string
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent downloads.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithRetry sets how often a failed download is attempted and the delay
// before the first retry. The delay doubles on every further retry.
// Default is 3 attempts starting at 500ms.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return batch.ErrInvalidMaxAttempts
		}
		p.attempts = attempts
		p.retryDelay = delay
		return nil
	}
}

// WithRateLimit caps downloads at perSecond across all workers.
// Zero or less disables the limit, which is the default.
func WithRateLimit(perSecond float64) Option {
	return func(p *Pipeline) error {
		if perSecond <= 0 {
			p.limiter = nil
			return nil
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

// WithCheckpoints makes listings incremental. The listing cursor is loaded
// from repo under name before a run and stored by SaveCheckpoint after it.
func WithCheckpoints(repo storage.CheckpointRepository, name string) Option {
	return func(p *Pipeline) error {
		if repo == nil {
			return ErrCheckpointRepositoryRequired
		}
		p.checkpoints = repo
		p.checkpointName = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a classification pipeline reading from store.
// Call Release when done with it.
func NewPipeline(store remote.Store, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      store,
		pool:       pool,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion.pipeline")

	walker, err := remote.NewWalker(store, remote.WithWalkerLogger(p.logger))
	if err != nil {
		p.Release()
		return nil, err
	}
	p.walker = walker

	return p, nil
}

// Release stops the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Failure records an item that could not be processed.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }
func (f Failure) Unwrap() error { return f.Err }

func joinFailures(failures []Failure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// ClassifyResult is the outcome of one Classify run.
type ClassifyResult struct {
	Pictures   *core.TopicAccumulator
	Scanned    int  // listing entries seen, folders included
	Candidates int  // entries downloaded for inspection
	Excluded   int  // candidates without a matching keyword
	Resumed    bool // listing continued from a saved cursor
	Failures   []Failure

	// Cursor is the last listing cursor seen. SaveCheckpoint stores it.
	Cursor string
}

// Err joins every per-picture failure, or returns nil.
func (r *ClassifyResult) Err() error {
	return joinFailures(r.Failures)
}

// outcome is what a worker reports for one candidate. seq is the
// candidate's position in the listing.
type outcome struct {
	seq     int
	path    string
	topic   core.Topic
	matched bool
	err     error
}

// Classify lists root and classifies every JPEG below it. Pictures end up
// in the result in listing order regardless of which download finished
// first. A failing picture is recorded in the result and the rest carry on.
// A listing failure stops scheduling; the pictures classified so far are
// returned along with the error.
func (p *Pipeline) Classify(ctx context.Context, root string) (*ClassifyResult, error) {
	res := &ClassifyResult{Pictures: core.NewTopicAccumulator()}

	var walkOpts []remote.WalkOption
	if p.checkpoints != nil {
		cp, err := p.checkpoints.LoadCheckpoint(ctx, p.checkpointName)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil && cp.Cursor != "" {
			walkOpts = append(walkOpts, remote.ResumeFrom(cp.Cursor))
			res.Resumed = true
			res.Cursor = cp.Cursor
			p.logger.Info("resuming listing", "checkpoint", p.checkpointName, "updated", cp.UpdatedAt)
		}
	}
	walkOpts = append(walkOpts, remote.OnCursor(func(cursor string) {
		res.Cursor = cursor
	}))

	results := make(chan outcome, p.pool.Cap())
	var collected []outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range results {
			collected = append(collected, o)
		}
	}()

	var (
		wg      sync.WaitGroup
		listErr error
		seq     int
	)
	for entry, err := range p.walker.Walk(ctx, root, walkOpts...) {
		if err != nil {
			listErr = err
			break
		}
		res.Scanned++
		if !entry.IsCandidate() {
			continue
		}
		res.Candidates++

		n, path := seq, entry.Path
		seq++
		wg.Add(1)
		// Submit blocks while every worker is busy.
		if err := p.pool.Submit(func() {
			defer wg.Done()
			results <- p.classify(ctx, n, path)
		}); err != nil {
			wg.Done()
			results <- outcome{seq: n, path: path, err: fmt.Errorf("submit: %w", err)}
		}
	}

	wg.Wait()
	close(results)
	<-done

	sort.Slice(collected, func(i, j int) bool { return collected[i].seq < collected[j].seq })
	for _, o := range collected {
		switch {
		case o.err != nil:
			p.logger.Warn("picture failed", "path", o.path, "error", o.err)
			res.Failures = append(res.Failures, Failure{Path: o.path, Err: o.err})
		case !o.matched:
			res.Excluded++
		default:
			if err := res.Pictures.Add(core.ClassifiedPicture{Path: o.path, Topic: o.topic}); err != nil {
				res.Failures = append(res.Failures, Failure{Path: o.path, Err: err})
			}
		}
	}

	p.logger.Info("classification finished",
		"root", root,
		"scanned", res.Scanned,
		"candidates", res.Candidates,
		"classified", res.Pictures.Len(),
		"excluded", res.Excluded,
		"failed", len(res.Failures))

	if listErr != nil {
		return res, listErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// classify downloads one picture and reads its topic. A picture without
// keywords is reported unmatched, not failed.
func (p *Pipeline) classify(ctx context.Context, seq int, path string) (o outcome) {
	o = outcome{seq: seq, path: path}
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("panic: %v", r)
		}
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			o.err = err
			return o
		}
	}

	data, err := p.download(ctx, path)
	if err != nil {
		o.err = fmt.Errorf("download: %w", err)
		return o
	}

	tag, err := ReadKeywords(bytes.NewReader(data))
	if errors.Is(err, ErrNoKeywords) {
		return o
	}
	if err != nil {
		o.err = err
		return o
	}
	o.topic, o.matched = core.ClassifyTag(tag)
	return o
}

func (p *Pipeline) download(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := batch.RetryWithBackoff(ctx, func() error {
		rc, err := p.store.Download(ctx, path)
		if err != nil {
			if errors.Is(err, remote.ErrPathRejected) || ctx.Err() != nil {
				return batch.Permanent(err)
			}
			return err
		}
		defer rc.Close()

		data, err = io.ReadAll(rc)
		return err
	}, p.attempts, p.retryDelay)
	return data, err
}

// SaveCheckpoint stores the listing cursor of res so the next Classify
// only sees what changed since. Nothing is stored when checkpoints are
// disabled or when res has failures, so failed pictures are retried.
func (p *Pipeline) SaveCheckpoint(ctx context.Context, res *ClassifyResult) error {
	if p.checkpoints == nil || res == nil || res.Cursor == "" {
		return nil
	}
	if len(res.Failures) > 0 {
		p.logger.Warn("checkpoint not advanced", "checkpoint", p.checkpointName, "failed", len(res.Failures))
		return nil
	}
	cp := &core.Checkpoint{Name: p.checkpointName, Cursor: res.Cursor}
	if err := p.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// ResetCheckpoint forgets the saved listing cursor so the next Classify
// lists the whole tree again.
func (p *Pipeline) ResetCheckpoint(ctx context.Context) error {
	if p.checkpoints == nil {
		return nil
	}
	return p.checkpoints.DeleteCheckpoint(ctx, p.checkpointName)
}
