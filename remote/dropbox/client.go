// Package dropbox implements remote.Store over the Dropbox HTTP API.
package dropbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/users"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote"
)

// ErrTokenRequired is returned when no access token is configured.
var ErrTokenRequired = errors.New("dropbox access token required")

// Client talks to one Dropbox account.
//
// The SDK does not accept a context, so cancellation is checked before each
// call and the HTTP client timeout bounds how long a call can hang.
type Client struct {
	files  files.Client
	users  users.Client
	logger *slog.Logger
}

var _ remote.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// WithTimeout bounds every HTTP request.
// Default is one minute.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client. WithTimeout is ignored when set.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
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

// New creates a client for the account owning token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	o := &options{
		timeout: time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	cfg := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
		Client:   o.httpClient,
	}
	return &Client{
		files:  files.New(cfg),
		users:  users.New(cfg),
		logger: o.logger.With("component", "dropbox"),
	}, nil
}

// Ping verifies the token by fetching the current account.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	acct, err := c.users.GetCurrentAccount()
	if err != nil {
		return fmt.Errorf("get current account: %w", err)
	}
	c.logger.Info("connected to dropbox", "account", acct.AccountId)
	return nil
}

// ListFolder implements remote.Store.
func (c *Client) ListFolder(ctx context.Context, path string, recursive bool) (*remote.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arg := files.NewListFolderArg(path)
	arg.Recursive = recursive

	res, err := c.files.ListFolder(arg)
	if err != nil {
		var apiErr files.ListFolderAPIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s: %w", remote.ErrPathRejected, path, err)
		}
		return nil, fmt.Errorf("list folder %s: %w", path, err)
	}
	return toPage(res), nil
}

// ListFolderContinue implements remote.Store.
func (c *Client) ListFolderContinue(ctx context.Context, cursor string) (*remote.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.files.ListFolderContinue(files.NewListFolderContinueArg(cursor))
	if err != nil {
		var apiErr files.ListFolderContinueAPIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: cursor: %w", remote.ErrPathRejected, err)
		}
		return nil, fmt.Errorf("list folder continue: %w", err)
	}
	return toPage(res), nil
}

// Download implements remote.Store.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, content, err := c.files.Download(files.NewDownloadArg(path))
	if err != nil {
		var apiErr files.DownloadAPIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s: %w", remote.ErrPathRejected, path, err)
		}
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	return content, nil
}

// TimeTaken implements remote.Store.
func (c *Client) TimeTaken(ctx context.Context, path string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	arg := files.NewGetMetadataArg(path)
	arg.IncludeMediaInfo = true

	md, err := c.files.GetMetadata(arg)
	if err != nil {
		var apiErr files.GetMetadataAPIError
		if errors.As(err, &apiErr) {
			return time.Time{}, fmt.Errorf("%w: %s: %w", remote.ErrPathRejected, path, err)
		}
		return time.Time{}, fmt.Errorf("get metadata %s: %w", path, err)
	}

	file, ok := md.(*files.FileMetadata)
	if !ok || file.MediaInfo == nil || file.MediaInfo.Metadata == nil {
		return time.Time{}, fmt.Errorf("%w: %s", remote.ErrNoTimeTaken, path)
	}

	var taken *time.Time
	switch m := file.MediaInfo.Metadata.(type) {
	case *files.PhotoMetadata:
		taken = m.TimeTaken
	case *files.VideoMetadata:
		taken = m.TimeTaken
	}
	if taken == nil {
		return time.Time{}, fmt.Errorf("%w: %s", remote.ErrNoTimeTaken, path)
	}
	return taken.UTC(), nil
}

func toPage(res *files.ListFolderResult) *remote.ListPage {
	page := &remote.ListPage{
		Entries: make([]core.RemoteEntry, 0, len(res.Entries)),
		Cursor:  res.Cursor,
		HasMore: res.HasMore,
	}
	for _, e := range res.Entries {
		switch m := e.(type) {
		case *files.FileMetadata:
			page.Entries = append(page.Entries, core.RemoteEntry{Path: m.PathLower})
		case *files.FolderMetadata:
			page.Entries = append(page.Entries, core.RemoteEntry{Path: m.PathLower, IsFolder: true})
		}
	}
	return page
}
