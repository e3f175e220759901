// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/sqlitepool"
)

// taskSchema creates the task result tables. Results and invocation
// links are keyed by task CID; INSERT OR IGNORE keeps retried writes
// idempotent without read-before-write.
const taskSchema = `
CREATE TABLE IF NOT EXISTS task_results (
	task   TEXT PRIMARY KEY,
	result BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS task_invocations (
	task       TEXT PRIMARY KEY,
	invocation TEXT NOT NULL
);
`

// OpenPool opens the SQLite pool shared by the link and task stores,
// applying their schemas on each connection.
func OpenPool(cfg sqlitepool.Config) (*sqlitepool.Pool, error) {
	userOnConnect := cfg.OnConnect
	cfg.OnConnect = func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteScript(conn, linkSchema, nil); err != nil {
			return fmt.Errorf("applying link schema: %w", err)
		}
		if err := sqlitex.ExecuteScript(conn, taskSchema, nil); err != nil {
			return fmt.Errorf("applying task schema: %w", err)
		}
		if userOnConnect != nil {
			return userOnConnect(conn)
		}
		return nil
	}
	return sqlitepool.Open(cfg)
}

// SQLTaskStore is the SQLite-backed task result store.
type SQLTaskStore struct {
	pool *sqlitepool.Pool
}

// NewSQLTaskStore creates a task store on the given pool.
func NewSQLTaskStore(pool *sqlitepool.Pool) *SQLTaskStore {
	return &SQLTaskStore{pool: pool}
}

// PutResult stores the CBOR-encoded outcome for a task. The first
// write wins; retried writes of the same task are no-ops, which is
// correct because results are content-derived from the receipt.
func (s *SQLTaskStore) PutResult(ctx context.Context, task cid.CID, result []byte) error {
	if task.IsZero() {
		return fmt.Errorf("task store: zero task CID")
	}
	if len(result) == 0 {
		return fmt.Errorf("task store: empty result for task %s", task.Ref())
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO task_results (task, result) VALUES (?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{task.String(), result},
		})
	if err != nil {
		return fmt.Errorf("task store: putting result for %s: %w", task.Ref(), err)
	}
	return nil
}

// PutInvocationLink records which invocation produced the task's
// result. Idempotent.
func (s *SQLTaskStore) PutInvocationLink(ctx context.Context, task, invocation cid.CID) error {
	if task.IsZero() || invocation.IsZero() {
		return fmt.Errorf("task store: zero CID in invocation link %s -> %s", task.Ref(), invocation.Ref())
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO task_invocations (task, invocation) VALUES (?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{task.String(), invocation.String()},
		})
	if err != nil {
		return fmt.Errorf("task store: putting invocation link for %s: %w", task.Ref(), err)
	}
	return nil
}

// GetResult returns the stored result bytes for a task, or
// ErrNotFound.
func (s *SQLTaskStore) GetResult(ctx context.Context, task cid.CID) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: %w", err)
	}
	defer s.pool.Put(conn)

	var result []byte
	err = sqlitex.Execute(conn,
		"SELECT result FROM task_results WHERE task = ?",
		&sqlitex.ExecOptions{
			Args: []any{task.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				result = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, result)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: getting result for %s: %w", task.Ref(), err)
	}
	if result == nil {
		return nil, fmt.Errorf("task store: result for %s: %w", task.Ref(), ErrNotFound)
	}
	return result, nil
}

// GetInvocationLink returns the invocation recorded for a task, or
// ErrNotFound.
func (s *SQLTaskStore) GetInvocationLink(ctx context.Context, task cid.CID) (cid.CID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return cid.CID{}, fmt.Errorf("task store: %w", err)
	}
	defer s.pool.Put(conn)

	var invocation string
	err = sqlitex.Execute(conn,
		"SELECT invocation FROM task_invocations WHERE task = ?",
		&sqlitex.ExecOptions{
			Args: []any{task.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				invocation = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return cid.CID{}, fmt.Errorf("task store: getting invocation link for %s: %w", task.Ref(), err)
	}
	if invocation == "" {
		return cid.CID{}, fmt.Errorf("task store: invocation link for %s: %w", task.Ref(), ErrNotFound)
	}

	parsed, err := cid.Parse(invocation)
	if err != nil {
		return cid.CID{}, fmt.Errorf("task store: corrupt invocation cid for %s: %w", task.Ref(), err)
	}
	return parsed, nil
}
