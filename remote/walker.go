package remote

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/gargbot/archivist/core"
)

// Walker enumerates folder listings page by page.
type Walker struct {
	store  Store
	logger *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithWalkerLogger sets a custom logger.
// Default is slog.Default().
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalker creates a walker over store.
func NewWalker(store Store, opts ...WalkerOption) (*Walker, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	w := &Walker{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "remote.walker")
	return w, nil
}

type walkConfig struct {
	cursor   string
	onCursor func(cursor string)
}

// WalkOption configures a single walk.
type WalkOption func(*walkConfig)

// ResumeFrom continues a previous walk from cursor instead of listing the
// root again.
func ResumeFrom(cursor string) WalkOption {
	return func(c *walkConfig) {
		c.cursor = cursor
	}
}

// OnCursor calls fn with the cursor of every page after its entries have
// been yielded. The last call carries the cursor to resume from next time.
func OnCursor(fn func(cursor string)) WalkOption {
	return func(c *walkConfig) {
		c.onCursor = fn
	}
}

// Walk lists root recursively and yields every entry, folders included,
// following continuation cursors until the listing is exhausted. Each call
// starts a new listing. A listing error is yielded once and ends the walk.
func (w *Walker) Walk(ctx context.Context, root string, opts ...WalkOption) iter.Seq2[core.RemoteEntry, error] {
	cfg := &walkConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(yield func(core.RemoteEntry, error) bool) {
		var (
			page *ListPage
			err  error
		)
		if cfg.cursor != "" {
			page, err = w.store.ListFolderContinue(ctx, cfg.cursor)
		} else {
			page, err = w.store.ListFolder(ctx, root, true)
		}

		pages := 0
		for {
			if err != nil {
				yield(core.RemoteEntry{}, fmt.Errorf("list %s (page %d): %w", root, pages+1, err))
				return
			}
			pages++

			for _, entry := range page.Entries {
				if !yield(entry, nil) {
					return
				}
			}
			if cfg.onCursor != nil && page.Cursor != "" {
				cfg.onCursor(page.Cursor)
			}

			if !page.HasMore {
				w.logger.Debug("listing exhausted", "root", root, "pages", pages)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(core.RemoteEntry{}, err)
				return
			}
			page, err = w.store.ListFolderContinue(ctx, page.Cursor)
		}
	}
}
