package msnlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/storage"
)

// ArchiveExt is the file extension of Messenger history archives.
const ArchiveExt = ".xml"

// FileFailure records an archive that could not be parsed to the end.
type FileFailure struct {
	File string
	Err  error
}

// ImportReport summarizes one directory import.
type ImportReport struct {
	Files    int // archives opened
	Events   int // rows inserted
	Skipped  int // directory entries that are not archives
	Failures []FileFailure
}

// Err joins every per-file failure, or returns nil.
func (r *ImportReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.File, f.Err))
	}
	return errors.Join(errs...)
}

// Importer loads a directory of archives into msn_messages.
type Importer struct {
	exec   storage.Executor
	parser *Parser
	dedupe bool
	logger *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithDeduplication stores a content key with every row and skips rows whose
// key already exists, making re-imports idempotent. Without it a second
// import of the same directory duplicates every row.
func WithDeduplication() ImporterOption {
	return func(i *Importer) {
		i.dedupe = true
	}
}

// WithImporterLogger sets a custom logger.
// Default is slog.Default().
func WithImporterLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewImporter creates an importer writing through exec.
func NewImporter(exec storage.Executor, parser *Parser, opts ...ImporterOption) (*Importer, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	if parser == nil {
		return nil, ErrParserRequired
	}
	i := &Importer{
		exec:   exec,
		parser: parser,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "msnlog.importer")
	return i, nil
}

// ImportAll imports every archive in dir, in name order, and commits once.
//
// A malformed archive is recorded in the report and the next one is
// processed; events read from it before the fault stay imported. A failing
// statement rolls back the whole run. The returned error joins the per-file
// failures.
func (i *Importer) ImportAll(ctx context.Context, dir string) (*ImportReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var names []string
	report := &ImportReport{}
	for _, entry := range entries {
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ArchiveExt) || !isArchiveFile(dir, entry) {
			report.Skipped++
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			_ = i.exec.Rollback()
			return report, err
		}

		report.Files++
		n, parseErr, execErr := i.importFile(ctx, filepath.Join(dir, name))
		report.Events += n
		if execErr != nil {
			_ = i.exec.Rollback()
			return report, fmt.Errorf("import %s: %w", name, execErr)
		}
		if parseErr != nil {
			i.logger.Error("archive import failed", "file", name, "imported", n, "err", parseErr)
			report.Failures = append(report.Failures, FileFailure{File: name, Err: parseErr})
			continue
		}
		i.logger.Info("archive imported", "file", name, "events", n)
	}

	if err := i.exec.Commit(); err != nil {
		return report, err
	}

	i.logger.Info("import finished",
		"files", report.Files, "events", report.Events, "failed", len(report.Failures))
	return report, report.Err()
}

func (i *Importer) importFile(ctx context.Context, path string) (n int, parseErr, execErr error) {
	for event, err := range i.parser.Parse(path) {
		if err != nil {
			return n, err, nil
		}
		if err := i.insert(ctx, event); err != nil {
			if errors.Is(err, core.ErrInvalidArchiveEvent) {
				return n, err, nil
			}
			return n, nil, err
		}
		n++
	}
	return n, nil, nil
}

func (i *Importer) insert(ctx context.Context, event *core.ArchiveEvent) error {
	if err := core.ValidateArchiveEvent(event); err != nil {
		return err
	}

	toUsers, err := encodeRecipients(event.To)
	if err != nil {
		return err
	}

	var color any
	if event.Color != "" {
		color = event.Color
	}

	columns := []string{"session_ID", "msg_type", "msg_source", "msg_time",
		"from_user", "to_users", "msg_text", "msg_color"}
	values := []any{event.SessionID, string(event.Kind), event.SourceFile, event.Timestamp,
		event.From, toUsers, event.Body, color}

	b := squirrel.Insert("msn_messages")
	if i.dedupe {
		b = b.Options(i.exec.Dialect().InsertIgnore())
		columns = append(columns, "msg_key")
		values = append(values, event.Key().Hex())
	}

	_, err = i.exec.ExecBuilder(ctx, b.Columns(columns...).Values(values...))
	return err
}

// isArchiveFile reports whether entry is a regular file, following symlinks.
func isArchiveFile(dir string, entry os.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}

// encodeRecipients renders a recipient list as a JSON array, or NULL when
// the event has none.
func encodeRecipients(to []string) (any, error) {
	if to == nil {
		return nil, nil
	}
	data, err := json.Marshal(to)
	if err != nil {
		return nil, fmt.Errorf("encode recipients: %w", err)
	}
	return string(data), nil
}
