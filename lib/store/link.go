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

// linkSchema creates the link table. The primary key spans namespace,
// source, and archive, making PutLink naturally idempotent via INSERT
// OR IGNORE. rowid preserves insertion order so GetLink can return
// the earliest recorded archive deterministically.
const linkSchema = `
CREATE TABLE IF NOT EXISTS links (
	namespace TEXT NOT NULL,
	source    TEXT NOT NULL,
	archive   TEXT NOT NULL,
	PRIMARY KEY (namespace, source, archive)
);
`

// SQLLinkStore is the SQLite-backed link store.
type SQLLinkStore struct {
	pool *sqlitepool.Pool
}

// NewSQLLinkStore creates a link store on the given pool. The schema
// is applied through the pool's OnConnect hook by [OpenPool].
func NewSQLLinkStore(pool *sqlitepool.Pool) *SQLLinkStore {
	return &SQLLinkStore{pool: pool}
}

// PutLink records that source arrived inside archive. Replayed writes
// of the same edge are no-ops.
func (s *SQLLinkStore) PutLink(ctx context.Context, source, archive cid.CID, namespace Namespace) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if source.IsZero() || archive.IsZero() {
		return fmt.Errorf("link store: zero CID in link %s -> %s", source.Ref(), archive.Ref())
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("link store: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO links (namespace, source, archive) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{string(namespace), source.String(), archive.String()},
		})
	if err != nil {
		return fmt.Errorf("link store: putting %s link %s -> %s: %w",
			namespace, source.Ref(), archive.Ref(), err)
	}
	return nil
}

// GetLink returns the earliest archive recorded for source in the
// given namespace, or ErrNotFound.
func (s *SQLLinkStore) GetLink(ctx context.Context, source cid.CID, namespace Namespace) (cid.CID, error) {
	if err := validateNamespace(namespace); err != nil {
		return cid.CID{}, err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return cid.CID{}, fmt.Errorf("link store: %w", err)
	}
	defer s.pool.Put(conn)

	var archive string
	err = sqlitex.Execute(conn,
		"SELECT archive FROM links WHERE namespace = ? AND source = ? ORDER BY rowid LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{string(namespace), source.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				archive = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return cid.CID{}, fmt.Errorf("link store: getting %s link for %s: %w", namespace, source.Ref(), err)
	}
	if archive == "" {
		return cid.CID{}, fmt.Errorf("link store: %s link for %s: %w", namespace, source.Ref(), ErrNotFound)
	}

	parsed, err := cid.Parse(archive)
	if err != nil {
		return cid.CID{}, fmt.Errorf("link store: corrupt archive cid for %s: %w", source.Ref(), err)
	}
	return parsed, nil
}
