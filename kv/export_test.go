package kv

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	require.NoError(t, s.CommitCheckpoint())
	require.NoError(t, s.InsertOrUpdate(key("uncommitted"), []byte("x")))

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, s))

	restored, err := ReadSnapshot(&buf)
	require.NoError(t, err)

	for _, k := range []string{"1", "2", "3", "4"} {
		assertValue(t, restored, k, k)
	}
	assertAbsent(t, restored, "uncommitted")
	assert.Len(t, restored.checkpoint, 4)
}

func TestSnapshotIsDeterministic(t *testing.T) {
	a := NewMemoryStore()
	b := NewMemoryStore()
	for _, k := range []string{"1", "2", "3"} {
		require.NoError(t, a.InsertOrUpdate(key(k), []byte(k)))
	}
	for _, k := range []string{"3", "1", "2"} {
		require.NoError(t, b.InsertOrUpdate(key(k), []byte(k)))
	}
	require.NoError(t, a.CommitCheckpoint())
	require.NoError(t, b.CommitCheckpoint())

	var bufA, bufB bytes.Buffer
	require.NoError(t, WriteSnapshot(&bufA, a))
	require.NoError(t, WriteSnapshot(&bufB, b))
	assert.Equal(t, bufA.String(), bufB.String())
}

func TestExportImportFile(t *testing.T) {
	s, err := NewBadgerStore()
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)
	require.NoError(t, s.CommitCheckpoint())

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	require.NoError(t, Export(ctx, s, path, nil))

	restored, err := Import(ctx, "file://"+path, nil)
	require.NoError(t, err)
	assertValue(t, restored, "3", "3")
	assert.Equal(t, 4, restored.Len())
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Import(ctx, filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, core.ErrBackend)

	_, err = ReadSnapshot(strings.NewReader(`{"version": 7, "entries": []}`))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = ReadSnapshot(strings.NewReader(`{"version": 1, "entries": [{"key": "zz"}]}`))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDetectScheme(t *testing.T) {
	tests := map[string]urlScheme{
		"s3://bucket/key":   schemeS3,
		"S3://bucket/key":   schemeS3,
		"https://host/file": schemeHTTPS,
		"http://host/file":  schemeHTTP,
		"file:///tmp/x":     schemeFile,
		"/tmp/x":            schemeLocal,
	}
	for path, want := range tests {
		assert.Equal(t, want, detectScheme(path), path)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, k, err := parseS3URL("s3://governance/state/latest.json")
	require.NoError(t, err)
	assert.Equal(t, "governance", bucket)
	assert.Equal(t, "state/latest.json", k)

	_, _, err = parseS3URL("s3://bucket-only")
	assert.Error(t, err)
}

func TestHTTPDoesNotSupportWriting(t *testing.T) {
	err := Export(context.Background(), NewMemoryStore(), "https://example.com/state.json", nil)
	assert.ErrorIs(t, err, core.ErrBackend)
}
