package kv

import (
	"testing"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name       string
	new        func(t *testing.T) Storage
	checkpoint func(t *testing.T, s Storage) map[core.Hash256][]byte
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T) Storage {
				return NewMemoryStore()
			},
			checkpoint: func(t *testing.T, s Storage) map[core.Hash256][]byte {
				return readCheckpoint(t, s.(CheckpointReader))
			},
		},
		{
			name: "badger",
			new: func(t *testing.T) Storage {
				s, err := NewBadgerStore()
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			},
			checkpoint: func(t *testing.T, s Storage) map[core.Hash256][]byte {
				return readCheckpoint(t, s.(CheckpointReader))
			},
		},
	}
}

func readCheckpoint(t *testing.T, r CheckpointReader) map[core.Hash256][]byte {
	out := map[core.Hash256][]byte{}
	require.NoError(t, r.ForEachCheckpoint(func(key core.Hash256, value []byte) error {
		out[key] = value
		return nil
	}))
	return out
}

func key(s string) core.Hash256 {
	return core.HashString(s)
}

func seed(t *testing.T, s Storage) {
	for _, k := range []string{"1", "2", "3", "4"} {
		require.NoError(t, s.InsertOrUpdate(key(k), []byte(k)))
	}
}

func assertValue(t *testing.T, s Storage, k, want string) {
	t.Helper()
	got, err := s.Get(key(k))
	require.NoError(t, err)
	assert.Equal(t, []byte(want), got)
}

func assertAbsent(t *testing.T, s Storage, k string) {
	t.Helper()
	_, err := s.Get(key(k))
	assert.ErrorIs(t, err, core.ErrNotFound)
	ok, err := s.Contain(key(k))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyStore(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			assertAbsent(t, s, "1")
			assert.Empty(t, b.checkpoint(t, s))
		})
	}
}

func TestLookupConsistency(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			require.NoError(t, s.InsertOrUpdate(key("a"), []byte("v1")))
			assertValue(t, s, "a", "v1")

			ok, err := s.Contain(key("a"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, s.InsertOrUpdate(key("a"), []byte("v2")))
			assertValue(t, s, "a", "v2")

			require.NoError(t, s.Remove(key("a")))
			assertAbsent(t, s, "a")
		})
	}
}

func TestRemoveMissingKey(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			assert.ErrorIs(t, s.Remove(key("nope")), core.ErrNotFound)
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			value := []byte("abc")
			require.NoError(t, s.InsertOrUpdate(key("a"), value))
			value[0] = 'x'

			got, err := s.Get(key("a"))
			require.NoError(t, err)
			got[1] = 'y'

			assertValue(t, s, "a", "abc")
		})
	}
}

func TestCheckpointScenario(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			seed(t, s)

			for _, k := range []string{"1", "2", "3", "4"} {
				assertValue(t, s, k, k)
			}
			assertAbsent(t, s, "5")

			require.NoError(t, s.CommitCheckpoint())
			checkpoint := b.checkpoint(t, s)
			assert.Len(t, checkpoint, 4)
			assert.Equal(t, []byte("1"), checkpoint[key("1")])

			require.NoError(t, s.InsertOrUpdate(key("5"), []byte("5")))
			assertValue(t, s, "5", "5")
			assert.NotContains(t, b.checkpoint(t, s), key("5"))

			require.NoError(t, s.RevertToLatestCheckpoint())
			assertAbsent(t, s, "5")
			for _, k := range []string{"1", "2", "3", "4"} {
				assertValue(t, s, k, k)
			}
		})
	}
}

func TestCheckpointIsolation(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			seed(t, s)
			require.NoError(t, s.CommitCheckpoint())

			require.NoError(t, s.InsertOrUpdate(key("1"), []byte("changed")))
			require.NoError(t, s.Remove(key("2")))
			require.NoError(t, s.InsertOrUpdate(key("9"), []byte("9")))

			checkpoint := b.checkpoint(t, s)
			assert.Equal(t, []byte("1"), checkpoint[key("1")])
			assert.Contains(t, checkpoint, key("2"))

			require.NoError(t, s.RevertToLatestCheckpoint())
			assertValue(t, s, "1", "1")
			assertValue(t, s, "2", "2")
			assertAbsent(t, s, "9")

			// mutating after a revert must not leak into the checkpoint
			require.NoError(t, s.InsertOrUpdate(key("3"), []byte("again")))
			assert.Equal(t, []byte("3"), b.checkpoint(t, s)[key("3")])
		})
	}
}

func TestSingleGenerationHistory(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			seed(t, s)
			require.NoError(t, s.CommitCheckpoint())

			require.NoError(t, s.InsertOrUpdate(key("5"), []byte("5")))
			require.NoError(t, s.CommitCheckpoint())

			require.NoError(t, s.InsertOrUpdate(key("6"), []byte("6")))
			require.NoError(t, s.RevertToLatestCheckpoint())

			// the first checkpoint is gone: "5" survives the revert
			assertValue(t, s, "5", "5")
			assertAbsent(t, s, "6")
		})
	}
}

func TestRevertWithoutCheckpoint(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			seed(t, s)
			require.NoError(t, s.RevertToLatestCheckpoint())
			assertAbsent(t, s, "1")
		})
	}
}
