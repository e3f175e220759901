// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/sqlitepool"
)

func newTestPool(t *testing.T) *sqlitepool.Pool {
	t.Helper()
	pool, err := OpenPool(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "store.db"),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("OpenPool failed: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestLinkPutGetRoundTrip(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))
	ctx := context.Background()

	source := cid.SumInvocation([]byte("invocation"))
	archive := cid.SumArchive([]byte("archive"))

	if err := linkStore.PutLink(ctx, source, archive, Inbound); err != nil {
		t.Fatalf("PutLink failed: %v", err)
	}

	got, err := linkStore.GetLink(ctx, source, Inbound)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if got != archive {
		t.Errorf("GetLink = %s, want %s", got, archive)
	}
}

func TestLinkNamespacesIndependent(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))
	ctx := context.Background()

	source := cid.SumInvocation([]byte("appears in both roles"))
	inboundArchive := cid.SumArchive([]byte("first archive"))
	outboundArchive := cid.SumArchive([]byte("second archive"))

	if err := linkStore.PutLink(ctx, source, inboundArchive, Inbound); err != nil {
		t.Fatal(err)
	}
	if err := linkStore.PutLink(ctx, source, outboundArchive, Outbound); err != nil {
		t.Fatal(err)
	}

	gotIn, err := linkStore.GetLink(ctx, source, Inbound)
	if err != nil {
		t.Fatal(err)
	}
	gotOut, err := linkStore.GetLink(ctx, source, Outbound)
	if err != nil {
		t.Fatal(err)
	}
	if gotIn != inboundArchive {
		t.Errorf("inbound link = %s, want %s", gotIn, inboundArchive)
	}
	if gotOut != outboundArchive {
		t.Errorf("outbound link = %s, want %s", gotOut, outboundArchive)
	}
}

func TestLinkPutIdempotent(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))
	ctx := context.Background()

	source := cid.SumInvocation([]byte("inv"))
	archive := cid.SumArchive([]byte("arc"))

	for i := 0; i < 3; i++ {
		if err := linkStore.PutLink(ctx, source, archive, Inbound); err != nil {
			t.Fatalf("PutLink attempt %d failed: %v", i, err)
		}
	}

	got, err := linkStore.GetLink(ctx, source, Inbound)
	if err != nil {
		t.Fatal(err)
	}
	if got != archive {
		t.Errorf("GetLink = %s, want %s", got, archive)
	}
}

func TestLinkEarliestArchiveWins(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))
	ctx := context.Background()

	source := cid.SumInvocation([]byte("inv"))
	first := cid.SumArchive([]byte("first"))
	second := cid.SumArchive([]byte("second"))

	if err := linkStore.PutLink(ctx, source, first, Inbound); err != nil {
		t.Fatal(err)
	}
	if err := linkStore.PutLink(ctx, source, second, Inbound); err != nil {
		t.Fatal(err)
	}

	got, err := linkStore.GetLink(ctx, source, Inbound)
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Errorf("GetLink = %s, want earliest %s", got, first)
	}
}

func TestLinkGetMissing(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))

	_, err := linkStore.GetLink(context.Background(), cid.SumInvocation([]byte("never linked")), Inbound)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLink of missing link = %v, want ErrNotFound", err)
	}
}

func TestLinkRejectsInvalidNamespace(t *testing.T) {
	linkStore := NewSQLLinkStore(newTestPool(t))
	ctx := context.Background()

	source := cid.SumInvocation([]byte("inv"))
	archive := cid.SumArchive([]byte("arc"))

	if err := linkStore.PutLink(ctx, source, archive, Namespace("sideways")); err == nil {
		t.Error("PutLink accepted an invalid namespace")
	}
	if _, err := linkStore.GetLink(ctx, source, Namespace("")); err == nil {
		t.Error("GetLink accepted an empty namespace")
	}
}

func TestTaskResultRoundTrip(t *testing.T) {
	taskStore := NewSQLTaskStore(newTestPool(t))
	ctx := context.Background()

	task := cid.SumInvocation([]byte("task"))
	result := []byte{0xa1, 0x62, 0x6f, 0x6b, 0xa0} // CBOR {"ok": {}}

	if err := taskStore.PutResult(ctx, task, result); err != nil {
		t.Fatalf("PutResult failed: %v", err)
	}

	got, err := taskStore.GetResult(ctx, task)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if !bytes.Equal(got, result) {
		t.Error("result bytes changed across round trip")
	}
}

func TestTaskResultIdempotent(t *testing.T) {
	taskStore := NewSQLTaskStore(newTestPool(t))
	ctx := context.Background()

	task := cid.SumInvocation([]byte("task"))
	result := []byte("first write")

	if err := taskStore.PutResult(ctx, task, result); err != nil {
		t.Fatal(err)
	}
	// A retried write carries the same content-derived bytes; a
	// no-op is indistinguishable from an overwrite. Use different
	// bytes here only to observe that the first write is preserved.
	if err := taskStore.PutResult(ctx, task, []byte("retried write")); err != nil {
		t.Fatal(err)
	}

	got, err := taskStore.GetResult(ctx, task)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, result) {
		t.Error("retried PutResult overwrote the original result")
	}
}

func TestTaskInvocationLinkRoundTrip(t *testing.T) {
	taskStore := NewSQLTaskStore(newTestPool(t))
	ctx := context.Background()

	task := cid.SumInvocation([]byte("task"))
	invocation := cid.SumInvocation([]byte("invocation"))

	if err := taskStore.PutInvocationLink(ctx, task, invocation); err != nil {
		t.Fatalf("PutInvocationLink failed: %v", err)
	}

	got, err := taskStore.GetInvocationLink(ctx, task)
	if err != nil {
		t.Fatalf("GetInvocationLink failed: %v", err)
	}
	if got != invocation {
		t.Errorf("GetInvocationLink = %s, want %s", got, invocation)
	}
}

func TestTaskGetMissing(t *testing.T) {
	taskStore := NewSQLTaskStore(newTestPool(t))
	ctx := context.Background()
	task := cid.SumInvocation([]byte("never stored"))

	if _, err := taskStore.GetResult(ctx, task); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetResult = %v, want ErrNotFound", err)
	}
	if _, err := taskStore.GetInvocationLink(ctx, task); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetInvocationLink = %v, want ErrNotFound", err)
	}
}
