// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/storacha/ucanstream/lib/cid"
)

func newTestBlobStore(t *testing.T) *FSBlobStore {
	t.Helper()
	blobStore, err := NewFSBlobStore(filepath.Join(t.TempDir(), "archives"))
	if err != nil {
		t.Fatalf("NewFSBlobStore failed: %v", err)
	}
	return blobStore
}

func TestBlobPutGetRoundTrip(t *testing.T) {
	blobStore := newTestBlobStore(t)
	ctx := context.Background()

	data := []byte("archive bytes with some repetition repetition repetition")
	id := cid.SumArchive(data)

	if err := blobStore.Put(ctx, id, data); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := blobStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Get returned different bytes than Put stored")
	}
}

func TestBlobPutIdempotent(t *testing.T) {
	blobStore := newTestBlobStore(t)
	ctx := context.Background()

	data := []byte("stored exactly once")
	id := cid.SumArchive(data)

	if err := blobStore.Put(ctx, id, data); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := blobStore.Put(ctx, id, data); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := blobStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("duplicate Put corrupted the blob")
	}
}

func TestBlobGetMissing(t *testing.T) {
	blobStore := newTestBlobStore(t)

	_, err := blobStore.Get(context.Background(), cid.SumArchive([]byte("never stored")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of missing blob = %v, want ErrNotFound", err)
	}
}

func TestBlobGetDetectsCorruption(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archives")
	blobStore, err := NewFSBlobStore(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("original content")
	id := cid.SumArchive(data)
	if err := blobStore.Put(ctx, id, data); err != nil {
		t.Fatal(err)
	}

	// Overwrite the blob with bytes that decompress fine but hash
	// differently.
	other := []byte("tampered content")
	otherID := cid.SumArchive(other)
	if err := blobStore.Put(ctx, otherID, other); err != nil {
		t.Fatal(err)
	}
	otherPath := blobStore.blobPath(otherID)
	if err := os.MkdirAll(filepath.Dir(blobStore.blobPath(id)), 0o755); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(otherPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(blobStore.blobPath(id), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := blobStore.Get(ctx, id); err == nil {
		t.Error("Get returned corrupted content without error")
	}
}

func TestBlobStoreReopens(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archives")
	ctx := context.Background()

	first, err := NewFSBlobStore(root)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("survives reopen")
	id := cid.SumArchive(data)
	if err := first.Put(ctx, id, data); err != nil {
		t.Fatal(err)
	}

	second, err := NewFSBlobStore(root)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	got, err := second.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("blob changed across reopen")
	}
}

func TestBlobPutRejectsZeroCID(t *testing.T) {
	blobStore := newTestBlobStore(t)
	if err := blobStore.Put(context.Background(), cid.CID{}, []byte("data")); err == nil {
		t.Error("Put accepted the zero CID")
	}
}
