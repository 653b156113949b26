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


// Package storage provides the storage abstraction layer for archivist.
//
// Two kinds of storage are involved in an ingestion run:
//
//   - Executor: the relational store that receives messages, pictures and
//     faces. Implemented by storage/sqldb on top of database/sql.
//   - CheckpointRepository: a small key-value store remembering where a
//     remote listing left off. Implemented by storage/badger.
//
// # Usage
//
// Open the relational store and pin a connection:
//
//	db, dialect, err := sqldb.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exec := sqldb.NewExecutor(db, sqldb.WithDialect(dialect))
//	if err := exec.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
// Use in tests with in-memory checkpoints:
//
//	repo, backend, err := badger.NewMemoryCheckpointRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Transactions
//
// The executor has no implicit transaction boundaries. Statements accumulate
// in one transaction until the caller commits, so callers batch a logical
// unit of work (a directory of archives, a classification run) and commit
// once.
//
// # Context Support
//
// All blocking methods accept context.Context for cancellation and timeout
// support.
package storage
