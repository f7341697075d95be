package ps

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBlob(t *testing.T, p *Persistence, root plumbing.Hash, path string) string {
	t.Helper()
	tree, err := object.GetTree(p.repo.Storer, root)
	require.NoError(t, err)
	f, err := tree.File(path)
	require.NoError(t, err)
	contents, err := f.Contents()
	require.NoError(t, err)
	return contents
}

func TestBatchUpdateTree(t *testing.T) {
	p := newTestRepo(t, nil)

	one, err := p.createBlob([]byte("one"))
	require.NoError(t, err)
	two, err := p.createBlob([]byte("two"))
	require.NoError(t, err)

	root, err := p.batchUpdateTree(plumbing.ZeroHash, []TreeChange{
		{Path: "top", BlobHash: one},
		{Path: "dir/a", BlobHash: one},
		{Path: "dir/nested/b", BlobHash: two},
	})
	require.NoError(t, err)
	assert.Equal(t, "one", readBlob(t, p, root, "top"))
	assert.Equal(t, "one", readBlob(t, p, root, "dir/a"))
	assert.Equal(t, "two", readBlob(t, p, root, "dir/nested/b"))

	entries, err := p.getTreeEntries(root)
	require.NoError(t, err)
	assert.Equal(t, filemode.Dir, entries["dir"].Mode)
	assert.Equal(t, filemode.Regular, entries["top"].Mode)

	// deleting the only file of a directory removes the directory
	root, err = p.batchUpdateTree(root, []TreeChange{{Path: "dir/nested/b", IsDelete: true}})
	require.NoError(t, err)
	entries, err = p.getTreeEntries(root)
	require.NoError(t, err)
	dir, err := p.getTreeEntries(entries["dir"].Hash)
	require.NoError(t, err)
	assert.NotContains(t, dir, "nested")

	empty, err := p.batchUpdateTree(root, []TreeChange{
		{Path: "top", IsDelete: true},
		{Path: "dir", IsDelete: true},
	})
	require.NoError(t, err)
	assert.Equal(t, plumbing.ZeroHash, empty)
}

func TestReplaceReserved(t *testing.T) {
	p := newTestRepo(t, map[string]string{"README": "keep"})
	head, err := p.headCommit()
	require.NoError(t, err)

	first, err := p.replaceReserved(head.TreeHash, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	require.NoError(t, err)
	second, err := p.replaceReserved(first, map[string][]byte{"a": []byte("3")})
	require.NoError(t, err)

	assert.Equal(t, "keep", readBlob(t, p, second, "README"))
	assert.Equal(t, "3", readBlob(t, p, second, "reserved/a"))

	tree, err := object.GetTree(p.repo.Storer, second)
	require.NoError(t, err)
	_, err = tree.File("reserved/b")
	assert.ErrorIs(t, err, object.ErrFileNotFound)

	require.NoError(t, p.checkReservedOnly("test", head.TreeHash, second))
	assert.Error(t, p.checkReservedOnly("test", plumbing.ZeroHash, second))
}

func TestWriteCommitEmptyTree(t *testing.T) {
	p := newTestRepo(t, nil)
	h, err := p.writeCommit(plumbing.ZeroHash, nil, "orphan")
	require.NoError(t, err)

	c, err := p.repo.CommitObject(h)
	require.NoError(t, err)
	tree, err := c.Tree()
	require.NoError(t, err)
	assert.Empty(t, tree.Entries)
	assert.Equal(t, testIdentity.Email, c.Author.Email)
}

func TestSyncWorktreeToEmptyTree(t *testing.T) {
	p := newTestRepo(t, map[string]string{
		"README":          "hello\n",
		"dir/sub/a.txt":   "a\n",
		"dir/sub/b/c.txt": "c\n",
	})
	h, err := p.writeCommit(plumbing.ZeroHash, nil, "empty")
	require.NoError(t, err)
	require.NoError(t, p.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, h)))

	require.NoError(t, p.syncWorktree())

	wt, err := p.repo.Worktree()
	require.NoError(t, err)
	entries, err := wt.Filesystem.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
