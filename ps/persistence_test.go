package ps

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/GovernanceDB/core"
)

var testIdentity = core.Identity{Name: "tester", Email: "tester@example.com"}

// unknownCommit names no object in any test repository.
var unknownCommit, _ = core.ParseCommitHash(strings.Repeat("ab", 20))

func newTestRepo(t *testing.T, files map[string]string) *Persistence {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0644))
	}
	p, err := InitMemory(WithIdentity(testIdentity), WithWorkTree(fs))
	require.NoError(t, err)
	return p
}

func mustCommit(t *testing.T, p *Persistence, message string) core.CommitHash {
	t.Helper()
	h, err := p.CreateCommit(message, nil)
	require.NoError(t, err)
	return h
}

func mustHead(t *testing.T, p *Persistence) core.CommitHash {
	t.Helper()
	h, err := p.GetHead()
	require.NoError(t, err)
	return h
}

// mustMerge stores a commit with two parents and points branch at it.
func mustMerge(t *testing.T, p *Persistence, branch string, a, b core.CommitHash) core.CommitHash {
	t.Helper()
	first, err := p.repo.CommitObject(toPlumbing(a))
	require.NoError(t, err)
	h, err := p.writeCommit(first.TreeHash, []plumbing.Hash{toPlumbing(a), toPlumbing(b)}, "merge\n\n")
	require.NoError(t, err)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), h)
	require.NoError(t, p.repo.Storer.SetReference(ref))
	return fromPlumbing(h)
}

func TestInitMemory(t *testing.T) {
	p := newTestRepo(t, map[string]string{"README": "hello\n"})
	assert.True(t, p.IsInitialized())

	branch, err := p.GetCurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, DefaultBranch, branch)

	head := mustHead(t, p)
	initial, err := p.GetInitialCommit()
	require.NoError(t, err)
	assert.Equal(t, head, initial)

	diff, err := p.ShowCommit(head)
	require.NoError(t, err)
	assert.Contains(t, diff, "+hello")
}

func TestInitialBranchOption(t *testing.T) {
	p, err := InitMemory(WithInitialBranch("trunk"))
	require.NoError(t, err)

	branches, err := p.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []core.Branch{"trunk"}, branches)

	_, err = InitMemory(WithInitialBranch(""))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestPersistenceNotInitialized(t *testing.T) {
	var p Persistence
	assert.False(t, p.IsInitialized())

	_, err := p.GetHead()
	assert.ErrorIs(t, err, core.ErrInvalidRepository)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitAndOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("data\n"), 0644))

	p, err := Init(dir, WithIdentity(testIdentity))
	require.NoError(t, err)
	head := mustHead(t, p)
	assert.Equal(t, dir, p.Dir())
	require.NoError(t, p.Close())

	_, err = Init(dir)
	assert.ErrorIs(t, err, core.ErrAlreadyExists)

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, head, mustHead(t, reopened))

	diff, err := reopened.ShowCommit(head)
	require.NoError(t, err)
	assert.Contains(t, diff, "README")
}

func TestInitFailureLeavesNoRepository(t *testing.T) {
	dir := t.TempDir()

	_, err := Init(dir, WithInitialBranch(""))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = os.Stat(filepath.Join(dir, ".git"))
	assert.True(t, os.IsNotExist(err))

	p, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositoryLock(t *testing.T) {
	dir := t.TempDir()
	p, err := Init(dir)
	require.NoError(t, err)

	_, err = Open(dir)
	assert.ErrorIs(t, err, core.ErrBackend)
	assert.ErrorIs(t, err, ErrRepositoryLocked)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.GetHead()
	assert.ErrorIs(t, err, ErrNotInitialized)

	again, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestConcurrentQueries(t *testing.T) {
	p := newTestRepo(t, nil)
	for i := 0; i < 5; i++ {
		mustCommit(t, p, "step")
	}
	head := mustHead(t, p)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ancestors, err := p.ListAncestors(head, core.NoLimit)
			if err == nil && len(ancestors) != 5 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
