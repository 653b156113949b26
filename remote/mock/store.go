package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote"
)

// Store is an in-memory remote.Store. Listings are served from Pages when
// set; otherwise a single page is built from the stored files.
type Store struct {
	mu sync.Mutex

	// Pages are returned in order: the first by ListFolder, the rest by
	// ListFolderContinue with the cursor of the page before.
	Pages []remote.ListPage

	files map[string][]byte
	taken map[string]time.Time

	// ListErr fails ListFolder; ContinueErr fails ListFolderContinue.
	ListErr     error
	ContinueErr error

	// DownloadFunc overrides Download when set.
	DownloadFunc func(ctx context.Context, path string) (io.ReadCloser, error)

	// TimeTakenFunc overrides TimeTaken when set.
	TimeTakenFunc func(ctx context.Context, path string) (time.Time, error)

	listCalls     int
	continueCalls int
	downloads     map[string]int
	takenCalls    int
}

var _ remote.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		files:     make(map[string][]byte),
		taken:     make(map[string]time.Time),
		downloads: make(map[string]int),
	}
}

// AddFile stores content under path. Paths are lower-cased like the real
// service reports them.
func (s *Store) AddFile(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[strings.ToLower(path)] = content
}

// SetTimeTaken records the capture time the store reports for path.
func (s *Store) SetTimeTaken(path string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taken[strings.ToLower(path)] = t
}

// ListFolder implements remote.Store.
func (s *Store) ListFolder(ctx context.Context, path string, recursive bool) (*remote.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	if len(s.Pages) > 0 {
		page := s.Pages[0]
		return &page, nil
	}

	prefix := strings.TrimSuffix(strings.ToLower(path), "/") + "/"
	var paths []string
	for p := range s.files {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	page := &remote.ListPage{Cursor: "cursor-final"}
	for _, p := range paths {
		page.Entries = append(page.Entries, core.RemoteEntry{Path: p})
	}
	return page, nil
}

// ListFolderContinue implements remote.Store.
func (s *Store) ListFolderContinue(ctx context.Context, cursor string) (*remote.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.continueCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ContinueErr != nil {
		return nil, s.ContinueErr
	}
	for i, page := range s.Pages {
		if page.Cursor == cursor && i+1 < len(s.Pages) {
			next := s.Pages[i+1]
			return &next, nil
		}
	}
	if len(s.Pages) == 0 || cursor == s.Pages[len(s.Pages)-1].Cursor {
		// Nothing changed since the last page.
		return &remote.ListPage{Cursor: cursor}, nil
	}
	return nil, fmt.Errorf("%w: unknown cursor %q", remote.ErrPathRejected, cursor)
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.downloads[path]++
	fn := s.DownloadFunc
	content, ok := s.files[path]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", remote.ErrPathRejected, path)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// TimeTaken implements remote.Store.
func (s *Store) TimeTaken(ctx context.Context, path string) (time.Time, error) {
	s.mu.Lock()
	s.takenCalls++
	fn := s.TimeTakenFunc
	t, ok := s.taken[path]
	_, exists := s.files[path]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, path)
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if !ok {
		if !exists {
			return time.Time{}, fmt.Errorf("%w: %s not found", remote.ErrPathRejected, path)
		}
		return time.Time{}, remote.ErrNoTimeTaken
	}
	return t, nil
}

// ListCalls returns how many times ListFolder was called.
func (s *Store) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// ContinueCalls returns how many times ListFolderContinue was called.
func (s *Store) ContinueCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.continueCalls
}

// Downloads returns how many times path was downloaded.
func (s *Store) Downloads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[path]
}

// TotalDownloads returns the number of Download calls across all paths.
func (s *Store) TotalDownloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.downloads {
		n += c
	}
	return n
}

// TimeTakenCalls returns how many times TimeTaken was called.
func (s *Store) TimeTakenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takenCalls
}
