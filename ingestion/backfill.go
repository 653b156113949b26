package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/batch"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote"
	"github.com/gargbot/archivist/storage"
)

// BackfillReport summarizes one backfill run.
type BackfillReport struct {
	Report
	NoTimeTaken int // pictures the remote store has no capture time for
}

// Backfiller fills in the capture time of pictures stored without one.
type Backfiller struct {
	exec   storage.Executor
	store  remote.Store
	cfg    writerConfig
	logger *slog.Logger
}

// NewBackfiller creates a backfiller reading capture times from store.
func NewBackfiller(exec storage.Executor, store remote.Store, opts ...WriterOption) (*Backfiller, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := newWriterConfig("ingestion.backfill", opts)
	return &Backfiller{exec: exec, store: store, cfg: cfg, logger: cfg.logger}, nil
}

// BackfillTakenDates looks up the capture time of every picture whose taken
// column is NULL and stores it. Pictures are handled one at a time; a
// failed lookup is recorded in the report and the run carries on. All
// updates are committed together at the end.
func (b *Backfiller) BackfillTakenDates(ctx context.Context) (*BackfillReport, error) {
	pending, err := b.pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	progress := batch.NewProgressTracker(b.cfg.progress, "backfill", len(pending), 10)
	progress.Start()

	for _, pic := range pending {
		if err := ctx.Err(); err != nil {
			b.rollback()
			return report, err
		}
		report.Processed++

		taken, err := b.timeTaken(ctx, pic.Path)
		switch {
		case errors.Is(err, remote.ErrNoTimeTaken):
			report.NoTimeTaken++
			progress.Increment(1)
			continue
		case err != nil:
			b.logger.Warn("capture time lookup failed", "path", pic.Path, "error", err)
			report.fail(pic.Path, err)
			progress.Fail()
			continue
		}

		update := squirrel.Update("dbx_pictures").
			Set("taken", taken).
			Where(squirrel.Eq{"pic_id": pic.PicID})
		if _, err := b.exec.ExecBuilder(ctx, update); err != nil {
			b.rollback()
			return report, fmt.Errorf("update picture %d: %w", pic.PicID, err)
		}
		report.Written++
		progress.Increment(1)
	}
	progress.Finish()

	if err := b.exec.Commit(); err != nil {
		return report, fmt.Errorf("commit capture times: %w", err)
	}
	b.logger.Info("backfill finished",
		"pending", len(pending),
		"updated", report.Written,
		"no_time_taken", report.NoTimeTaken,
		"failed", len(report.Failures),
		"elapsed", progress.Elapsed())
	return report, nil
}

// pending reads every picture without a capture time. The rows are closed
// before any update runs on the same connection.
func (b *Backfiller) pending(ctx context.Context) ([]core.PictureRecord, error) {
	query := squirrel.Select("pic_id", "path").
		From("dbx_pictures").
		Where(squirrel.Eq{"taken": nil}).
		OrderBy("pic_id")
	rows, err := b.exec.QueryBuilder(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pending pictures: %w", err)
	}
	defer rows.Close()

	var out []core.PictureRecord
	for rows.Next() {
		var rec core.PictureRecord
		if err := rows.Scan(&rec.PicID, &rec.Path); err != nil {
			return nil, fmt.Errorf("scan picture: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending pictures: %w", err)
	}
	return out, nil
}

func (b *Backfiller) timeTaken(ctx context.Context, path string) (time.Time, error) {
	var taken time.Time
	err := batch.RetryWithBackoff(ctx, func() error {
		t, err := b.store.TimeTaken(ctx, path)
		if err != nil {
			if errors.Is(err, remote.ErrNoTimeTaken) || errors.Is(err, remote.ErrPathRejected) || ctx.Err() != nil {
				return batch.Permanent(err)
			}
			return err
		}
		taken = t.UTC()
		return nil
	}, b.cfg.attempts, b.cfg.retryDelay)
	return taken, err
}

func (b *Backfiller) rollback() {
	if err := b.exec.Rollback(); err != nil {
		b.logger.Warn("rollback failed", "error", err)
	}
}
