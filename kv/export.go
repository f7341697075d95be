package kv

import (
	"context"
	"encoding/hex"
	"io"
	"slices"

	jsoniter "github.com/json-iterator/go"
	"github.com/nickyhof/GovernanceDB/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const snapshotVersion = 1

type snapshotDocument struct {
	Version int             `json:"version"`
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// WriteSnapshot writes the checkpoint of src to w. Entries are sorted by key
// so equal checkpoints produce identical documents.
func WriteSnapshot(w io.Writer, src CheckpointReader) error {
	doc := snapshotDocument{Version: snapshotVersion, Entries: []snapshotEntry{}}
	keys := map[string]core.Hash256{}
	err := src.ForEachCheckpoint(func(key core.Hash256, value []byte) error {
		doc.Entries = append(doc.Entries, snapshotEntry{Key: key.String(), Value: value})
		keys[key.String()] = key
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortFunc(doc.Entries, func(a, b snapshotEntry) int {
		return keys[a.Key].Compare(keys[b.Key])
	})

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return core.Backend("write snapshot", err)
	}
	return nil
}

// ReadSnapshot loads a document produced by WriteSnapshot into a new
// MemoryStore whose current state and checkpoint are both the snapshot.
func ReadSnapshot(r io.Reader, opts ...Option) (*MemoryStore, error) {
	var doc snapshotDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, core.InvalidArgument("read snapshot", "%v", err)
	}
	if doc.Version != snapshotVersion {
		return nil, core.InvalidArgument("read snapshot", "unsupported version %d", doc.Version)
	}

	store := NewMemoryStore(opts...)
	for _, e := range doc.Entries {
		var key core.Hash256
		raw, err := hex.DecodeString(e.Key)
		if err != nil || len(raw) != len(key) {
			return nil, core.InvalidArgument("read snapshot", "bad key %q", e.Key)
		}
		copy(key[:], raw)
		store.current[key] = e.Value
	}
	if err := store.CommitCheckpoint(); err != nil {
		return nil, err
	}
	return store, nil
}

// Export writes the checkpoint of src to url (local path, file://, s3://).
func Export(ctx context.Context, src CheckpointReader, url string, cfg *S3Config) error {
	w, err := openWriter(ctx, url, cfg)
	if err != nil {
		return core.Backend("export", err)
	}
	if err := WriteSnapshot(w, src); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return core.Backend("export", err)
	}
	return nil
}

// Import loads a snapshot from url (local path, file://, s3://, http(s)://).
func Import(ctx context.Context, url string, cfg *S3Config, opts ...Option) (*MemoryStore, error) {
	r, err := openReader(ctx, url, cfg)
	if err != nil {
		return nil, core.Backend("import", err)
	}
	defer r.Close()
	return ReadSnapshot(r, opts...)
}
