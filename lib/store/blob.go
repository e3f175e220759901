// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/storacha/ucanstream/lib/cid"
)

// Directory names within the blob store root.
const (
	blobDir = "blobs"
	tmpDir  = "tmp"
)

// blobExtension marks stored archives as zstd-compressed. Part of the
// on-disk format; changing it orphans existing blobs.
const blobExtension = ".archive.zst"

// FSBlobStore stores archive bytes on the local filesystem, one file
// per archive CID, zstd-compressed at rest. Archives are CBOR with
// repeated DIDs and map keys, which zstd compresses well.
//
// Writes go to a temp file and are renamed into place, so a
// concurrent reader never observes a partial blob and concurrent
// writers of the same CID converge on identical content.
type FSBlobStore struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFSBlobStore creates a blob store rooted at the given directory,
// creating the directory structure if needed.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, blobDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating blob store directory %s: %w", dir, err)
		}
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("blob store: initializing zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("blob store: initializing zstd decoder: %w", err)
	}

	return &FSBlobStore{root: root, encoder: encoder, decoder: decoder}, nil
}

// Put stores archive bytes under their CID. A blob that already
// exists is left untouched and the call succeeds.
func (s *FSBlobStore) Put(ctx context.Context, id cid.CID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id.IsZero() {
		return fmt.Errorf("blob store: zero CID")
	}

	path := s.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		// Content addressing: same CID means same bytes. No-op.
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("blob store: stat %s: %w", id.Ref(), err)
	}

	compressed := s.encoder.EncodeAll(data, nil)

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "put-*")
	if err != nil {
		return fmt.Errorf("blob store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("blob store: writing %s: %w", id.Ref(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blob store: closing temp file for %s: %w", id.Ref(), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob store: creating shard directory for %s: %w", id.Ref(), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("blob store: committing %s: %w", id.Ref(), err)
	}
	return nil
}

// Get returns the archive bytes stored under id, or ErrNotFound. The
// content is re-hashed on read: a mismatch means on-disk corruption
// and is reported as an error rather than returning wrong bytes.
func (s *FSBlobStore) Get(ctx context.Context, id cid.CID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(s.blobPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob store: archive %s: %w", id.Ref(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: reading %s: %w", id.Ref(), err)
	}

	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("blob store: decompressing %s: %w", id.Ref(), err)
	}

	if cid.SumArchive(data) != id {
		return nil, fmt.Errorf("blob store: content of %s does not match its CID", id.Ref())
	}
	return data, nil
}

// blobPath returns the on-disk location for a CID, sharded by the
// first two hex characters to keep directory fan-out bounded.
func (s *FSBlobStore) blobPath(id cid.CID) string {
	name := id.String()
	return filepath.Join(s.root, blobDir, name[:2], name+blobExtension)
}
