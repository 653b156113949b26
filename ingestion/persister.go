package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/storage"
)

// Persister writes classified pictures to dbx_pictures.
type Persister struct {
	exec   storage.Executor
	dedupe bool
	logger *slog.Logger
}

// NewPersister creates a persister writing through exec.
func NewPersister(exec storage.Executor, opts ...WriterOption) (*Persister, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	cfg := newWriterConfig("ingestion.persister", opts)
	return &Persister{exec: exec, dedupe: cfg.dedupe, logger: cfg.logger}, nil
}

// Persist inserts one row per accumulated picture, topic by topic in
// declaration order, and commits once. It returns the number of rows
// written. Any insert failure rolls the whole batch back.
func (p *Persister) Persist(ctx context.Context, acc *core.TopicAccumulator) (int, error) {
	written := 0
	for _, topic := range core.Topics {
		for _, path := range acc.Paths(topic) {
			ok, err := insertPicture(ctx, p.exec, p.dedupe, path, topic, nil)
			if err != nil {
				p.rollback()
				return 0, fmt.Errorf("insert %s: %w", path, err)
			}
			if ok {
				written++
			}
		}
		p.logger.Debug("topic persisted", "topic", topic, "pictures", len(acc.Paths(topic)))
	}

	if err := p.exec.Commit(); err != nil {
		return 0, fmt.Errorf("commit pictures: %w", err)
	}
	p.logger.Info("pictures persisted", "written", written, "total", acc.Len())
	return written, nil
}

func (p *Persister) rollback() {
	if err := p.exec.Rollback(); err != nil {
		p.logger.Warn("rollback failed", "error", err)
	}
}
