// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the service-standard SQLite connection
// pool backing the link store, the task result store, and the stream
// log.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode so concurrent pipeline requests can read links while
// another request writes, NORMAL synchronous for process-crash
// durability without fsync-per-commit overhead, and a busy timeout so
// concurrent writers wait instead of failing with SQLITE_BUSY.
//
// Losing a committed write on an OS crash is acceptable here: every
// row is derived from archive bytes the caller retries, and all
// writes are idempotent on content identifiers. The durable source of
// truth is the archive blob store.
//
// Callers [Pool.Take] a connection, perform work, and [Pool.Put] it
// back. Connections are NOT safe for concurrent use — each goroutine
// holds its own connection for the duration of its work.
package sqlitepool
