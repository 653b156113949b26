package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/config"
	"github.com/gargbot/archivist/storage"
	"github.com/gargbot/archivist/storage/sqldb"
	"github.com/stretchr/testify/require"
)

func newSQLiteExecutor(t *testing.T) (*sqldb.Executor, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := sqldb.Open(config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "archive.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqldb.Migrate(ctx, db, dialect))

	exec := sqldb.NewExecutor(db, sqldb.WithDialect(dialect))
	require.NoError(t, exec.Connect(ctx))
	t.Cleanup(func() { exec.Close() })
	return exec, db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func picturePaths(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT path FROM dbx_pictures ORDER BY pic_id")
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		require.NoError(t, rows.Scan(&p))
		out = append(out, p)
	}
	require.NoError(t, rows.Err())
	return out
}

type statement struct {
	sql  string
	args []any
}

// recordingExecutor records rendered statements and fails the statement
// numbered failAt (1-based) when set.
type recordingExecutor struct {
	mu         sync.Mutex
	statements []statement
	failAt     int
	commits    int
	rollbacks  int
}

var _ storage.Executor = (*recordingExecutor)(nil)

var errStatement = errors.New("statement failed")

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (e *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statements = append(e.statements, statement{sql: query, args: args})
	if e.failAt == len(e.statements) {
		return nil, errStatement
	}
	return fakeResult{}, nil
}

func (e *recordingExecutor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("query not supported")
}

func (e *recordingExecutor) ExecBuilder(ctx context.Context, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return e.Exec(ctx, query, args...)
}

func (e *recordingExecutor) QueryBuilder(ctx context.Context, b squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, query, args...)
}

func (e *recordingExecutor) Commit() error {
	e.commits++
	return nil
}

func (e *recordingExecutor) Rollback() error {
	e.rollbacks++
	return nil
}

func (e *recordingExecutor) Dialect() storage.Dialect {
	return storage.DialectMySQL
}
