package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/storage"
)

// LocalReport summarizes one local folder import.
type LocalReport struct {
	Report
	NoTakenDate int // pictures stored without a capture time
}

// LocalImporter adds pictures from a local folder to dbx_pictures.
type LocalImporter struct {
	exec   storage.Executor
	dedupe bool
	logger *slog.Logger
}

// NewLocalImporter creates a local importer writing through exec.
func NewLocalImporter(exec storage.Executor, opts ...WriterOption) (*LocalImporter, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	cfg := newWriterConfig("ingestion.local", opts)
	return &LocalImporter{exec: exec, dedupe: cfg.dedupe, logger: cfg.logger}, nil
}

// AddLocalPictures files every .jpg and .jpeg in folder under topic. The
// stored path is root followed by the lower-cased file name, which is
// where the file is expected to live in the remote store. The capture time
// comes from the EXIF DateTimeOriginal tag when present. Unreadable files
// are recorded in the report and skipped; rows are committed together.
func (l *LocalImporter) AddLocalPictures(ctx context.Context, folder string, topic core.Topic, root string) (*LocalReport, error) {
	if err := core.ValidateTopic(topic); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}

	report := &LocalReport{}
	for _, entry := range entries {
		if entry.IsDir() || !isJPEG(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			l.rollback()
			return report, err
		}
		report.Processed++

		file := filepath.Join(folder, entry.Name())
		taken, err := takenDate(file)
		switch {
		case errors.Is(err, ErrNoTakenDate):
			report.NoTakenDate++
		case err != nil:
			l.logger.Warn("picture skipped", "file", file, "error", err)
			report.fail(file, err)
			continue
		}

		path := strings.TrimSuffix(root, "/") + "/" + strings.ToLower(entry.Name())
		ok, err := insertPicture(ctx, l.exec, l.dedupe, path, topic, taken)
		if err != nil {
			l.rollback()
			return report, fmt.Errorf("insert %s: %w", path, err)
		}
		if ok {
			report.Written++
		}
	}

	if err := l.exec.Commit(); err != nil {
		return report, fmt.Errorf("commit local pictures: %w", err)
	}
	l.logger.Info("local pictures added",
		"folder", folder,
		"topic", topic,
		"written", report.Written,
		"failed", len(report.Failures))
	return report, nil
}

func isJPEG(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// takenDate returns nil and ErrNoTakenDate for a file without a capture time.
func takenDate(file string) (*time.Time, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTakenDate(f)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (l *LocalImporter) rollback() {
	if err := l.exec.Rollback(); err != nil {
		l.logger.Warn("rollback failed", "error", err)
	}
}
