package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOpenIsIndependent(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	require.NoError(t, s.CommitCheckpoint())

	clone := s.Open()
	require.NoError(t, clone.InsertOrUpdate(key("5"), []byte("5")))
	require.NoError(t, clone.Remove(key("1")))
	require.NoError(t, clone.CommitCheckpoint())

	assertAbsent(t, s, "5")
	assertValue(t, s, "1", "1")
	assert.NotContains(t, s.checkpoint, key("5"))
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 4, clone.Len())
}
