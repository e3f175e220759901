// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/sqlitepool"
)

// logSchema creates the append-only record log. Sequence numbers are
// assigned per partition inside the publish transaction, so readers
// see a gap-free, ordered log per partition.
const logSchema = `
CREATE TABLE IF NOT EXISTS records (
	partition  INTEGER NOT NULL,
	sequence   INTEGER NOT NULL,
	record_cid TEXT NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (partition, sequence)
);
CREATE INDEX IF NOT EXISTS idx_records_cid ON records(record_cid);
`

// Log is the SQLite-backed partitioned record log. Publish appends a
// batch in a single transaction, which is what gives downstream
// consumers per-archive batch atomicity: either every record from an
// archive is visible or none is.
type Log struct {
	pool       *sqlitepool.Pool
	partitions int
	logger     *slog.Logger
}

// LogConfig holds the parameters for opening a stream log.
type LogConfig struct {
	// Path is the filesystem path to the log database file.
	// Required.
	Path string

	// Partitions is the number of partitions records are sharded
	// into by archive CID. Defaults to 4 if zero. Changing the count
	// on an existing log reshards future records only — safe, since
	// consumers are told not to assume cross-partition order.
	Partitions int

	// PoolSize is the SQLite connection pool size. Defaults per
	// sqlitepool.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// OpenLog opens the partitioned record log, creating the database and
// schema if needed.
func OpenLog(cfg LogConfig) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("stream log: Path is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("stream log: Logger is required")
	}

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, logSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stream log: %w", err)
	}

	return &Log{
		pool:       pool,
		partitions: partitions,
		logger:     cfg.Logger,
	}, nil
}

// Close closes the underlying pool.
func (l *Log) Close() error {
	return l.pool.Close()
}

// Publish appends records to the log in one transaction. An empty
// batch is a no-op. A failure leaves nothing appended.
func (l *Log) Publish(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("stream log: publish: %w", err)
	}
	defer l.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("stream log: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	// All records in a batch come from one archive, so they share a
	// partition; computing per record keeps the log correct if that
	// ever changes.
	next := make(map[int]int64)
	for i := range records {
		partition := l.partitionFor(records[i].ArchiveCID)
		sequence, ok := next[partition]
		if !ok {
			sequence, err = nextSequence(conn, partition)
			if err != nil {
				return err
			}
		}
		if err = l.insertRecord(conn, partition, sequence, &records[i]); err != nil {
			return err
		}
		next[partition] = sequence + 1
	}

	l.logger.Info("records published",
		"count", len(records),
		"archive", records[0].ArchiveCID.Ref(),
	)
	return nil
}

// StoredRecord is a record read back from the log, with its position.
type StoredRecord struct {
	Partition int
	Sequence  int64
	Record    Record
}

// ReadPartition returns up to limit records from one partition with
// sequence numbers strictly greater than after. Pass after = -1 to
// read from the beginning. This is the consumer-side contract used by
// metrics and billing aggregators.
func (l *Log) ReadPartition(ctx context.Context, partition int, after int64, limit int) ([]StoredRecord, error) {
	if partition < 0 || partition >= l.partitions {
		return nil, fmt.Errorf("stream log: partition %d out of range [0, %d)", partition, l.partitions)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("stream log: limit must be positive")
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream log: read: %w", err)
	}
	defer l.pool.Put(conn)

	var out []StoredRecord
	err = sqlitex.Execute(conn,
		"SELECT sequence, payload FROM records WHERE partition = ? AND sequence > ? ORDER BY sequence LIMIT ?",
		&sqlitex.ExecOptions{
			Args: []any{partition, after, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var record Record
				if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &record); err != nil {
					return fmt.Errorf("decoding record payload: %w", err)
				}
				out = append(out, StoredRecord{
					Partition: partition,
					Sequence:  stmt.ColumnInt64(0),
					Record:    record,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("stream log: reading partition %d: %w", partition, err)
	}
	return out, nil
}

// Partitions returns the configured partition count.
func (l *Log) Partitions() int { return l.partitions }

// partitionFor shards by the archive CID so one archive's records
// land in one partition while different archives spread out.
func (l *Log) partitionFor(archive cid.CID) int {
	return int(archive[0]) % l.partitions
}

// nextSequence returns the next unused sequence in a partition. Runs
// inside the publish transaction, so concurrent publishers cannot
// race for the same sequence.
func nextSequence(conn *sqlite.Conn, partition int) (int64, error) {
	var next int64
	err := sqlitex.Execute(conn,
		"SELECT COALESCE(MAX(sequence), -1) + 1 FROM records WHERE partition = ?",
		&sqlitex.ExecOptions{
			Args: []any{partition},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				next = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("stream log: next sequence for partition %d: %w", partition, err)
	}
	return next, nil
}

// insertRecord appends one record at the given position.
func (l *Log) insertRecord(conn *sqlite.Conn, partition int, sequence int64, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("stream log: encoding record: %w", err)
	}

	err = sqlitex.Execute(conn,
		"INSERT INTO records (partition, sequence, record_cid, payload) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{partition, sequence, record.Value.CID.String(), string(payload)},
		})
	if err != nil {
		return fmt.Errorf("stream log: inserting record %s: %w", record.Value.CID.Ref(), err)
	}
	return nil
}
