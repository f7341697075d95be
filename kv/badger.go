package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/nickyhof/GovernanceDB/core"
	"go.uber.org/zap"
)

var (
	generationPrefix = []byte("g/")
	metaCurrent      = []byte("meta/current")
	metaCheckpoint   = []byte("meta/checkpoint")
	metaNext         = []byte("meta/next")
)

const maxConflictRetries = 10

// BadgerStore persists both snapshots in a badger database. Each snapshot is
// a generation of keys under "g/<id>/"; the meta keys name the generation
// holding the current state and the one holding the checkpoint.
type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger

	mu         sync.RWMutex
	current    uint64
	checkpoint uint64
}

var _ Storage = (*BadgerStore)(nil)

// badgerLogger routes badger's own logging to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// NewBadgerStore creates an empty store backed by an in-memory badger database.
func NewBadgerStore(opts ...Option) (*BadgerStore, error) {
	o := defaultOptions(opts)
	return openBadger(badger.DefaultOptions("").WithInMemory(true), o)
}

// OpenBadgerStore opens, or creates, a store persisted in dir.
func OpenBadgerStore(dir string, opts ...Option) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, core.Backend("open store", fmt.Errorf("mkdir: %w", err))
	}
	o := defaultOptions(opts)
	return openBadger(badger.DefaultOptions(dir).WithSyncWrites(o.syncWrites), o)
}

func openBadger(bopts badger.Options, o options) (*BadgerStore, error) {
	db, err := badger.Open(bopts.
		WithLogger(badgerLogger{o.logger.Named("badger").Sugar()}).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, core.Backend("open store", fmt.Errorf("open KV: %w", err))
	}

	s := &BadgerStore{db: db, log: o.logger}
	if err := s.loadGenerations(); err != nil {
		db.Close()
		return nil, core.Backend("open store", err)
	}
	o.logger.Debug("badger store opened",
		zap.String("dir", bopts.Dir),
		zap.Bool("in_memory", bopts.InMemory),
		zap.Uint64("current", s.current),
		zap.Uint64("checkpoint", s.checkpoint))
	return s, nil
}

// loadGenerations reads the meta keys, creating them for a new database, and
// drops generations left behind by an interrupted commit or revert.
func (s *BadgerStore) loadGenerations() error {
	err := s.update(func(txn *badger.Txn) error {
		current, err := getUint64(txn, metaCurrent)
		if errors.Is(err, badger.ErrKeyNotFound) {
			s.current, s.checkpoint = 1, 2
			if err := setUint64(txn, metaCurrent, 1); err != nil {
				return err
			}
			if err := setUint64(txn, metaCheckpoint, 2); err != nil {
				return err
			}
			return setUint64(txn, metaNext, 3)
		}
		if err != nil {
			return err
		}
		checkpoint, err := getUint64(txn, metaCheckpoint)
		if err != nil {
			return err
		}
		s.current, s.checkpoint = current, checkpoint
		return nil
	})
	if err != nil {
		return err
	}

	orphans, err := s.orphanGenerations()
	if err != nil {
		return err
	}
	for _, gen := range orphans {
		s.log.Debug("dropping orphaned generation", zap.Uint64("generation", gen))
		if err := s.db.DropPrefix(generationKey(gen)); err != nil {
			return err
		}
	}
	return nil
}

// orphanGenerations lists the generations that neither snapshot points to.
func (s *BadgerStore) orphanGenerations() ([]uint64, error) {
	var orphans []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: generationPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); {
			gen, ok := parseGeneration(it.Item().Key())
			if !ok {
				it.Next()
				continue
			}
			if gen != s.current && gen != s.checkpoint {
				orphans = append(orphans, gen)
			}
			// skip the rest of this generation
			it.Seek(generationKey(gen + 1))
		}
		return nil
	})
	return orphans, err
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return core.Backend("close store", err)
	}
	return nil
}

func (s *BadgerStore) CommitCheckpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, n, err := s.copyGeneration(s.current)
	if err != nil {
		return core.Backend("commit checkpoint", err)
	}
	old := s.checkpoint
	if err := s.switchGeneration(metaCheckpoint, gen); err != nil {
		s.dropGeneration(gen)
		return core.Backend("commit checkpoint", err)
	}
	s.checkpoint = gen
	s.dropGeneration(old)

	s.log.Debug("checkpoint committed", zap.Int("keys", n), zap.Uint64("generation", gen))
	return nil
}

func (s *BadgerStore) RevertToLatestCheckpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, n, err := s.copyGeneration(s.checkpoint)
	if err != nil {
		return core.Backend("revert to checkpoint", err)
	}
	old := s.current
	if err := s.switchGeneration(metaCurrent, gen); err != nil {
		s.dropGeneration(gen)
		return core.Backend("revert to checkpoint", err)
	}
	s.current = gen
	s.dropGeneration(old)

	s.log.Debug("reverted to checkpoint", zap.Int("keys", n), zap.Uint64("generation", gen))
	return nil
}

func (s *BadgerStore) InsertOrUpdate(key core.Hash256, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(s.current, key), value)
	})
	if err != nil {
		return core.Backend("insert", err)
	}
	return nil
}

func (s *BadgerStore) Remove(key core.Hash256) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := entryKey(s.current, key)
	err := s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	return rewriteError("remove", key, err)
}

func (s *BadgerStore) Get(key core.Hash256) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(entryKey(s.current, key))
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)
		return e
	})
	if err != nil {
		return nil, rewriteError("get", key, err)
	}
	return value, nil
}

func (s *BadgerStore) Contain(key core.Hash256) (bool, error) {
	return contain(s.Get, key)
}

func (s *BadgerStore) ForEachCheckpoint(fn func(key core.Hash256, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.forEach(s.checkpoint, fn)
}

// forEach iterates the entries of a generation in key order.
func (s *BadgerStore) forEach(gen uint64, fn func(key core.Hash256, value []byte) error) error {
	prefix := generationKey(gen)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var key core.Hash256
			copy(key[:], it.Item().Key()[len(prefix):])
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return core.Backend("read generation", err)
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// copyGeneration writes a copy of generation from under a fresh generation id
// with a write batch, so the copy is not bound by the transaction size limit.
// Nothing points at the new generation until switchGeneration.
func (s *BadgerStore) copyGeneration(from uint64) (uint64, int, error) {
	gen, err := s.allocateGeneration()
	if err != nil {
		return 0, 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	n := 0
	err = s.forEach(from, func(key core.Hash256, value []byte) error {
		n++
		return wb.Set(entryKey(gen, key), value)
	})
	if err == nil {
		err = wb.Flush()
	}
	if err != nil {
		s.dropGeneration(gen)
		return 0, 0, err
	}
	return gen, n, nil
}

func (s *BadgerStore) allocateGeneration() (uint64, error) {
	var gen uint64
	err := s.update(func(txn *badger.Txn) error {
		next, err := getUint64(txn, metaNext)
		if err != nil {
			return err
		}
		gen = next
		return setUint64(txn, metaNext, next+1)
	})
	return gen, err
}

// switchGeneration points a meta key at gen in one small transaction.
func (s *BadgerStore) switchGeneration(meta []byte, gen uint64) error {
	return s.update(func(txn *badger.Txn) error {
		return setUint64(txn, meta, gen)
	})
}

// dropGeneration removes an unreferenced generation. A failure only leaves
// garbage behind, which the next open collects.
func (s *BadgerStore) dropGeneration(gen uint64) {
	if err := s.db.DropPrefix(generationKey(gen)); err != nil {
		s.log.Warn("failed to drop generation", zap.Uint64("generation", gen), zap.Error(err))
	}
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	return backoff.Retry(func() error {
		err := s.db.Update(fn)
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), maxConflictRetries),
	)
}

// generationKey returns the prefix "g/<id>/" of a generation. The id is big
// endian so generations sort by id.
func generationKey(gen uint64) []byte {
	k := make([]byte, 0, len(generationPrefix)+9)
	k = append(k, generationPrefix...)
	k = binary.BigEndian.AppendUint64(k, gen)
	return append(k, '/')
}

func parseGeneration(key []byte) (uint64, bool) {
	rest, ok := bytes.CutPrefix(key, generationPrefix)
	if !ok || len(rest) < 9 || rest[8] != '/' {
		return 0, false
	}
	return binary.BigEndian.Uint64(rest[:8]), true
}

func entryKey(gen uint64, key core.Hash256) []byte {
	return append(generationKey(gen), key[:]...)
}

func getUint64(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err != nil {
		return 0, err
	}
	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("meta key %s holds %d bytes", key, len(val))
		}
		v = binary.BigEndian.Uint64(val)
		return nil
	})
	return v, err
}

func setUint64(txn *badger.Txn, key []byte, v uint64) error {
	return txn.Set(key, binary.BigEndian.AppendUint64(nil, v))
}

func rewriteError(op string, key core.Hash256, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return core.NotFound(op, "key %s", key)
	default:
		return core.Backend(op, err)
	}
}
