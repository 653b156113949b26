package remote

import (
	"context"
	"io"
	"time"

	"github.com/gargbot/archivist/core"
)

// ListPage is one page of a folder listing.
type ListPage struct {
	Entries []core.RemoteEntry
	Cursor  string // opaque continuation token
	HasMore bool
}

// Store is the subset of the remote file service archivist uses.
type Store interface {
	// ListFolder returns the first page of the listing of path.
	ListFolder(ctx context.Context, path string, recursive bool) (*ListPage, error)

	// ListFolderContinue returns the page following cursor.
	ListFolderContinue(ctx context.Context, cursor string) (*ListPage, error)

	// Download opens the content of the file at path. The caller closes it.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// TimeTaken returns the capture time recorded in the file's media info.
	// Returns ErrNoTimeTaken when the service has none.
	TimeTaken(ctx context.Context, path string) (time.Time, error)
}
