package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/storage"
)

// Executor runs statements over one pinned connection with autocommit off.
//
// Statements accumulate in a lazily begun transaction until Commit. A lock
// wait timeout leaves the transaction intact, so after a successful ping the
// statement runs once more on it. Any other operational error drops the
// transaction: the executor pings the connection and replaces it if the ping
// fails. If statements were pending in the dropped transaction the call fails
// with ErrTransactionLost; otherwise the statement runs exactly once more.
//
// By default every statement runs directly on the transaction. OpenCursor
// switches to a held cursor: each distinct statement is prepared once and
// reused until CloseCursor, Commit, Rollback or a reconnect.
type Executor struct {
	mu       sync.Mutex
	db       *sql.DB
	conn     *sql.Conn
	tx       *sql.Tx
	stmts    map[string]*sql.Stmt // nil unless a cursor is held
	pending  int
	dialect  storage.Dialect
	logLevel slog.Level
	logger   *slog.Logger
}

var _ storage.Executor = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDialect sets the SQL flavor of the underlying database.
// Default is storage.DialectMySQL.
func WithDialect(dialect storage.Dialect) Option {
	return func(e *Executor) {
		e.dialect = dialect
	}
}

// WithStatementLogLevel sets the level statements are logged at.
// Default is slog.LevelDebug.
func WithStatementLogLevel(level slog.Level) Option {
	return func(e *Executor) {
		e.logLevel = level
	}
}

// NewExecutor creates an executor on top of db. Call Connect before use.
func NewExecutor(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{
		db:       db,
		dialect:  storage.DialectMySQL,
		logLevel: slog.LevelDebug,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// Connect pins a connection from the pool. Calling it again is a no-op.
func (e *Executor) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return nil
	}
	return e.connect(ctx)
}

func (e *Executor) connect(ctx context.Context) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	e.conn = conn
	return nil
}

// Dialect reports the SQL flavor of the underlying database.
func (e *Executor) Dialect() storage.Dialect {
	return e.dialect
}

// OpenCursor starts reusing prepared statements across calls.
func (e *Executor) OpenCursor() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stmts == nil {
		e.stmts = make(map[string]*sql.Stmt)
	}
}

// CloseCursor closes every held statement and returns to transient mode.
func (e *Executor) CloseCursor() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, stmt := range e.stmts {
		errs = append(errs, stmt.Close())
	}
	e.stmts = nil
	return errors.Join(errs...)
}

// Exec runs a statement that returns no rows.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res sql.Result
	err := e.run(ctx, query, args, func() error {
		tx, err := e.begin(ctx)
		if err != nil {
			return err
		}
		if e.stmts == nil {
			res, err = tx.ExecContext(ctx, query, args...)
			return err
		}
		stmt, err := e.prepare(ctx, tx, query)
		if err != nil {
			return err
		}
		res, err = stmt.ExecContext(ctx, args...)
		return err
	})
	return res, err
}

// Query runs a statement that returns rows. The rows must be closed before
// the next statement is issued.
func (e *Executor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rows *sql.Rows
	err := e.run(ctx, query, args, func() error {
		tx, err := e.begin(ctx)
		if err != nil {
			return err
		}
		if e.stmts == nil {
			rows, err = tx.QueryContext(ctx, query, args...)
			return err
		}
		stmt, err := e.prepare(ctx, tx, query)
		if err != nil {
			return err
		}
		rows, err = stmt.QueryContext(ctx, args...)
		return err
	})
	return rows, err
}

// ExecBuilder renders b and runs it with Exec.
func (e *Executor) ExecBuilder(ctx context.Context, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return e.Exec(ctx, query, args...)
}

// QueryBuilder renders b and runs it with Query.
func (e *Executor) QueryBuilder(ctx context.Context, b squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return e.Query(ctx, query, args...)
}

// run logs the statement, executes attempt and, on an operational error,
// recovers the connection and executes it one more time.
func (e *Executor) run(ctx context.Context, query string, args []any, attempt func() error) error {
	if e.conn == nil {
		return storage.ErrNotConnected
	}

	e.logStatement(ctx, query, args)

	err := attempt()
	if err == nil {
		e.pending++
		return nil
	}
	if !IsOperational(err) {
		return err
	}

	if e.tx != nil && keepsTransaction(err) {
		perr := e.conn.PingContext(ctx)
		if perr == nil {
			e.logger.Info("connection still alive, retrying statement in open transaction",
				"err", err, "pending_statements", e.pending)
			return e.retry(attempt)
		}
		e.logger.Warn("ping failed after statement error", "err", perr)
		lost := e.pending
		e.endTx()
		if rerr := e.replaceConn(ctx); rerr != nil {
			return fmt.Errorf("%w: %w (original error: %v)", ErrReconnectFailed, rerr, err)
		}
		return e.afterLostTx(lost, attempt, err)
	}

	lost := e.pending
	e.logger.Warn("database error, attempting reconnect", "err", err, "discarded_statements", lost)
	if rerr := e.reconnect(ctx); rerr != nil {
		return fmt.Errorf("%w: %w (original error: %v)", ErrReconnectFailed, rerr, err)
	}
	return e.afterLostTx(lost, attempt, err)
}

// afterLostTx retries attempt on a fresh transaction, unless statements of
// the dropped one would silently go missing.
func (e *Executor) afterLostTx(lost int, attempt func() error, cause error) error {
	if lost > 0 {
		e.logger.Error("uncommitted statements discarded", "statements", lost, "err", cause)
		return fmt.Errorf("%w: %d uncommitted statements discarded: %w", ErrTransactionLost, lost, cause)
	}
	return e.retry(attempt)
}

func (e *Executor) retry(attempt func() error) error {
	if err := attempt(); err != nil {
		return fmt.Errorf("%w: %w", ErrRetryFailed, err)
	}
	e.pending++
	return nil
}

func (e *Executor) begin(ctx context.Context) (*sql.Tx, error) {
	if e.tx != nil {
		return e.tx, nil
	}
	// The transaction outlives the call that opened it.
	tx, err := e.conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, err
	}
	e.tx = tx
	return tx, nil
}

func (e *Executor) prepare(ctx context.Context, tx *sql.Tx, query string) (*sql.Stmt, error) {
	if stmt, ok := e.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	e.stmts[query] = stmt
	return stmt, nil
}

// reconnect drops the current transaction and keeps the connection if it
// still answers a ping. Otherwise it opens a new one.
func (e *Executor) reconnect(ctx context.Context) error {
	e.endTx()

	if e.conn != nil {
		err := e.conn.PingContext(ctx)
		if err == nil {
			e.logger.Info("connection still alive")
			return nil
		}
		e.logger.Warn("ping failed, opening a new connection", "err", err)
	}
	return e.replaceConn(ctx)
}

func (e *Executor) replaceConn(ctx context.Context) error {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
	if err := e.connect(ctx); err != nil {
		return err
	}
	e.logger.Info("reconnected to database")
	return nil
}

// endTx drops the current transaction, ignoring rollback errors, and forgets
// statements prepared on it.
func (e *Executor) endTx() {
	if e.tx != nil {
		_ = e.tx.Rollback()
		e.tx = nil
	}
	if e.stmts != nil {
		e.stmts = make(map[string]*sql.Stmt)
	}
	e.pending = 0
}

func (e *Executor) logStatement(ctx context.Context, query string, args []any) {
	if !e.logger.Enabled(ctx, e.logLevel) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("could not render statement for logging", "panic", r)
		}
	}()
	e.logger.Log(ctx, e.logLevel, "executing statement", "sql", Interpolate(query, args))
}

// Commit commits every statement since the last commit.
func (e *Executor) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return nil
	}
	n := e.pending
	err := e.tx.Commit()
	e.tx = nil
	e.pending = 0
	if e.stmts != nil {
		e.stmts = make(map[string]*sql.Stmt)
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	e.logger.Debug("committed", "statements", n)
	return nil
}

// Rollback discards every statement since the last commit.
func (e *Executor) Rollback() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return nil
	}
	err := e.tx.Rollback()
	e.tx = nil
	e.pending = 0
	if e.stmts != nil {
		e.stmts = make(map[string]*sql.Stmt)
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back uncommitted work and releases the pinned connection.
// It does not close the underlying *sql.DB.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.tx != nil {
		if e.pending > 0 {
			e.logger.Warn("closing with uncommitted statements", "statements", e.pending)
		}
		if err := e.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
		e.tx = nil
		e.pending = 0
	}
	e.stmts = nil
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release connection: %w", err))
		}
		e.conn = nil
	}
	return errors.Join(errs...)
}
