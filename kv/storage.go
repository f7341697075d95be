package kv

import (
	"github.com/nickyhof/GovernanceDB/core"
	"go.uber.org/zap"
)

// Storage is a key-value store with single-generation checkpoint semantics.
// Implementations are not safe for concurrent use.
type Storage interface {
	// CommitCheckpoint replaces the checkpoint with a copy of the current state.
	// The previous checkpoint is lost.
	CommitCheckpoint() error
	// RevertToLatestCheckpoint replaces the current state with a copy of the
	// checkpoint, dropping every mutation since the last CommitCheckpoint.
	RevertToLatestCheckpoint() error
	InsertOrUpdate(key core.Hash256, value []byte) error
	// Remove fails with core.ErrNotFound if the key is absent.
	Remove(key core.Hash256) error
	// Get fails with core.ErrNotFound if the key is absent.
	Get(key core.Hash256) ([]byte, error)
	// Contain reports whether the key is present. Absence is not an error.
	Contain(key core.Hash256) (bool, error)
}

// CheckpointReader exposes the checkpoint of a store for export.
type CheckpointReader interface {
	ForEachCheckpoint(fn func(key core.Hash256, value []byte) error) error
}

type options struct {
	logger     *zap.Logger
	syncWrites bool
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the logger. Stores log nothing by default.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSyncWrites makes badger fsync every write. Ignored by MemoryStore.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

func defaultOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// contain implements Contain on top of a Get lookup.
func contain(get func(core.Hash256) ([]byte, error), key core.Hash256) (bool, error) {
	_, err := get(key)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
