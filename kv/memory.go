package kv

import (
	"bytes"
	"errors"
	"maps"

	"github.com/nickyhof/GovernanceDB/core"
	"go.uber.org/zap"
)

type snapshot map[core.Hash256][]byte

// MemoryStore keeps both snapshots in memory. Stored values are never
// mutated in place, so snapshots share value slices safely.
type MemoryStore struct {
	current    snapshot
	checkpoint snapshot
	log        *zap.Logger
}

var _ Storage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions(opts)
	return &MemoryStore{
		current:    snapshot{},
		checkpoint: snapshot{},
		log:        o.logger,
	}
}

// Open returns an independent copy of the store.
func (s *MemoryStore) Open() *MemoryStore {
	return &MemoryStore{
		current:    maps.Clone(s.current),
		checkpoint: maps.Clone(s.checkpoint),
		log:        s.log,
	}
}

func (s *MemoryStore) CommitCheckpoint() error {
	s.checkpoint = maps.Clone(s.current)
	s.log.Debug("checkpoint committed", zap.Int("keys", len(s.checkpoint)))
	return nil
}

func (s *MemoryStore) RevertToLatestCheckpoint() error {
	s.current = maps.Clone(s.checkpoint)
	s.log.Debug("reverted to checkpoint", zap.Int("keys", len(s.current)))
	return nil
}

func (s *MemoryStore) InsertOrUpdate(key core.Hash256, value []byte) error {
	s.current[key] = bytes.Clone(value)
	return nil
}

func (s *MemoryStore) Remove(key core.Hash256) error {
	if _, ok := s.current[key]; !ok {
		return core.NotFound("remove", "key %s", key)
	}
	delete(s.current, key)
	return nil
}

func (s *MemoryStore) Get(key core.Hash256) ([]byte, error) {
	v, ok := s.current[key]
	if !ok {
		return nil, core.NotFound("get", "key %s", key)
	}
	return bytes.Clone(v), nil
}

func (s *MemoryStore) Contain(key core.Hash256) (bool, error) {
	return contain(s.Get, key)
}

// Len returns the number of keys in the current state.
func (s *MemoryStore) Len() int {
	return len(s.current)
}

func (s *MemoryStore) ForEachCheckpoint(fn func(key core.Hash256, value []byte) error) error {
	for k, v := range s.checkpoint {
		if err := fn(k, bytes.Clone(v)); err != nil {
			return err
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
