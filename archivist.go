// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package archivist imports a group's chat-log history and picture archive
// into a relational database.
package archivist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gargbot/archivist/config"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/ingestion"
	"github.com/gargbot/archivist/msnlog"
	"github.com/gargbot/archivist/remote"
	"github.com/gargbot/archivist/remote/dropbox"
	"github.com/gargbot/archivist/storage"
	"github.com/gargbot/archivist/storage/badger"
	"github.com/gargbot/archivist/storage/sqldb"
	"github.com/google/uuid"
)

// CheckpointName is the key under which the picture listing cursor is kept.
const CheckpointName = "dbx_pictures"

// ErrRemoteStoreRequired is returned by picture operations when neither a
// Dropbox token nor a remote store was configured.
var ErrRemoteStoreRequired = errors.New("remote store required: set dropbox.token")

type Archive struct {
	cfg         *config.Config
	db          *sql.DB
	dialect     storage.Dialect
	exec        *sqldb.Executor
	backend     *badger.Backend
	checkpoints storage.CheckpointRepository
	store       remote.Store
	progress    io.Writer
	runID       string
	logger      *slog.Logger
}

// Option configures an Archive.
type Option func(*options)

type options struct {
	store    remote.Store
	logger   *slog.Logger
	progress io.Writer
}

// WithRemoteStore replaces the Dropbox client built from the configured token.
func WithRemoteStore(store remote.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProgress writes progress lines of long batches to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// New opens the database described by cfg, brings its schema up to date
// and pins a connection for the run. The checkpoint store is opened when
// incremental picture runs are enabled.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	runID := uuid.NewString()
	logger := o.logger.With("run", runID)

	db, dialect, err := sqldb.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		cfg:      cfg,
		db:       db,
		dialect:  dialect,
		store:    o.store,
		progress: o.progress,
		runID:    runID,
		logger:   logger,
	}

	if _, err := a.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a.exec = sqldb.NewExecutor(db, sqldb.WithDialect(dialect), sqldb.WithLogger(logger))
	if err := a.exec.Connect(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Pictures.Incremental {
		dir, err := config.ExpandPath(cfg.Pictures.CheckpointDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		backend, err := badger.OpenBackend(dir, false, badger.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open checkpoints: %w", err)
		}
		a.backend = backend
		a.checkpoints = badger.NewCheckpointRepository(backend)
	}

	if a.store == nil && cfg.Dropbox.Token != "" {
		client, err := dropbox.New(cfg.Dropbox.Token,
			dropbox.WithTimeout(cfg.Dropbox.RequestTimeout),
			dropbox.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = client
	}

	logger.Info("archive opened", "driver", dialect, "incremental", cfg.Pictures.Incremental)
	return a, nil
}

// Close releases the pinned connection, the database pool and the
// checkpoint store. Uncommitted statements are rolled back.
func (a *Archive) Close() error {
	var errs []error
	if a.exec != nil {
		errs = append(errs, a.exec.Close())
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	errs = append(errs, a.db.Close())
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("error closing archive", "err", err)
		return err
	}
	return nil
}

// RunID identifies this run in log output.
func (a *Archive) RunID() string {
	return a.runID
}

// Migrate applies pending schema migrations and returns the schema version.
func (a *Archive) Migrate(ctx context.Context) (int, error) {
	runner := sqldb.NewMigrationRunner(a.db, a.dialect)
	if err := runner.Run(ctx); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	return runner.Version(ctx)
}

// ImportLogs imports every archive in dir, or in the configured log
// directory when dir is empty.
func (a *Archive) ImportLogs(ctx context.Context, dir string) (*msnlog.ImportReport, error) {
	if dir == "" {
		dir = a.cfg.Logs.Dir
	}
	parser := msnlog.NewParser(
		msnlog.WithAllowedParticipants(a.cfg.Logs.AllowedParticipants...),
		msnlog.WithParserLogger(a.logger))

	opts := []msnlog.ImporterOption{msnlog.WithImporterLogger(a.logger)}
	if a.cfg.Logs.Dedupe {
		opts = append(opts, msnlog.WithDeduplication())
	}
	importer, err := msnlog.NewImporter(a.exec, parser, opts...)
	if err != nil {
		return nil, err
	}
	return importer.ImportAll(ctx, dir)
}

// ClassifyReport is the outcome of ClassifyPictures.
type ClassifyReport struct {
	*ingestion.ClassifyResult
	Persisted int
}

// ClassifyPictures classifies every picture below the configured Dropbox
// root and stores the classified ones. With incremental runs only pictures
// added since the last clean run are looked at. Nothing is stored when the
// listing fails.
func (a *Archive) ClassifyPictures(ctx context.Context) (*ClassifyReport, error) {
	if a.store == nil {
		return nil, ErrRemoteStoreRequired
	}
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return nil, err
		}
	}

	pcfg := a.cfg.Pictures
	opts := []ingestion.Option{
		ingestion.WithPoolSize(pcfg.PoolSize),
		ingestion.WithRetry(pcfg.MaxRetries, pcfg.RetryDelay),
		ingestion.WithRateLimit(pcfg.RateLimit),
		ingestion.WithLogger(a.logger),
	}
	if a.checkpoints != nil {
		opts = append(opts, ingestion.WithCheckpoints(a.checkpoints, CheckpointName))
	}
	pipeline, err := ingestion.NewPipeline(a.store, opts...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	res, err := pipeline.Classify(ctx, a.cfg.Dropbox.Root)
	if err != nil {
		return &ClassifyReport{ClassifyResult: res}, err
	}

	persister, err := ingestion.NewPersister(a.exec, a.writerOptions()...)
	if err != nil {
		return nil, err
	}
	n, err := persister.Persist(ctx, res.Pictures)
	if err != nil {
		return &ClassifyReport{ClassifyResult: res}, err
	}
	report := &ClassifyReport{ClassifyResult: res, Persisted: n}

	if err := pipeline.SaveCheckpoint(ctx, res); err != nil {
		return report, err
	}
	return report, nil
}

// ResetCheckpoint makes the next incremental run list the whole tree.
func (a *Archive) ResetCheckpoint(ctx context.Context) error {
	if a.checkpoints == nil {
		return nil
	}
	return a.checkpoints.DeleteCheckpoint(ctx, CheckpointName)
}

// BackfillTakenDates fills in the capture time of stored pictures that
// have none, from the remote store's media info.
func (a *Archive) BackfillTakenDates(ctx context.Context) (*ingestion.BackfillReport, error) {
	if a.store == nil {
		return nil, ErrRemoteStoreRequired
	}
	b, err := ingestion.NewBackfiller(a.exec, a.store, a.writerOptions()...)
	if err != nil {
		return nil, err
	}
	return b.BackfillTakenDates(ctx)
}

// AddFaces registers the configured people.
func (a *Archive) AddFaces(ctx context.Context) (int, error) {
	f, err := ingestion.NewFaceLinker(a.exec, a.writerOptions()...)
	if err != nil {
		return 0, err
	}
	return f.AddFaces(ctx, a.cfg.Faces.Names)
}

// AddFacePictures links people to pictures from the JSON file at path, or
// from the configured links file when path is empty.
func (a *Archive) AddFacePictures(ctx context.Context, path string) (*ingestion.Report, error) {
	if path == "" {
		path = a.cfg.Faces.LinksFile
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open face links: %w", err)
	}
	defer file.Close()

	nickToID := make(map[string]int, len(a.cfg.Faces.Names))
	for id, name := range a.cfg.Faces.Names {
		nickToID[name] = id
	}

	f, err := ingestion.NewFaceLinker(a.exec, a.writerOptions()...)
	if err != nil {
		return nil, err
	}
	return f.AddFacePictures(ctx, file, nickToID)
}

// AddLocalPictures files the JPEGs of a local folder under topic. The
// stored paths sit below root, or below the configured Dropbox root when
// root is empty.
func (a *Archive) AddLocalPictures(ctx context.Context, folder string, topic core.Topic, root string) (*ingestion.LocalReport, error) {
	if root == "" {
		root = a.cfg.Dropbox.Root
	}
	l, err := ingestion.NewLocalImporter(a.exec, a.writerOptions()...)
	if err != nil {
		return nil, err
	}
	return l.AddLocalPictures(ctx, folder, topic, root)
}

func (a *Archive) writerOptions() []ingestion.WriterOption {
	opts := []ingestion.WriterOption{
		ingestion.WithWriterLogger(a.logger),
		ingestion.WithWriterRetry(a.cfg.Pictures.MaxRetries, a.cfg.Pictures.RetryDelay),
		ingestion.WithProgress(a.progress),
	}
	if a.cfg.Pictures.Dedupe {
		opts = append(opts, ingestion.WithDeduplication())
	}
	return opts
}
