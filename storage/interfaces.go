// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/core"
)

// Executor runs SQL statements inside one open transaction that the caller
// ends with Commit or Rollback.
type Executor interface {
	// Exec runs a statement that returns no rows.
	// A dropped connection is reconnected and the statement retried once,
	// unless uncommitted statements were lost with it.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Query runs a statement that returns rows. The caller closes the rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// ExecBuilder renders a squirrel statement and runs it with Exec.
	ExecBuilder(ctx context.Context, b squirrel.Sqlizer) (sql.Result, error)

	// QueryBuilder renders a squirrel statement and runs it with Query.
	QueryBuilder(ctx context.Context, b squirrel.Sqlizer) (*sql.Rows, error)

	// Commit makes every statement since the last commit durable.
	Commit() error

	// Rollback discards every statement since the last commit.
	Rollback() error

	// Dialect reports which SQL flavor the executor talks.
	Dialect() Dialect
}

// CheckpointRepository persists listing checkpoints by name.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint under its name.
	// Sets UpdatedAt to the current time.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint stored under name.
	// Returns nil and no error when none has been saved yet.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint forgets the checkpoint stored under name.
	DeleteCheckpoint(ctx context.Context, name string) error
}
