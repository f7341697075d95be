package ps

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/GovernanceDB/core"
)

// linearRepo builds genesis <- c1 <- c2 on main.
func linearRepo(t *testing.T) (p *Persistence, genesis, c1, c2 core.CommitHash) {
	t.Helper()
	p = newTestRepo(t, nil)
	genesis = mustHead(t, p)
	c1 = mustCommit(t, p, "c1")
	c2 = mustCommit(t, p, "c2")
	return p, genesis, c1, c2
}

func TestListAncestors(t *testing.T) {
	p, genesis, c1, c2 := linearRepo(t)

	ancestors, err := p.ListAncestors(c2, core.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1, genesis}, ancestors)

	ancestors, err = p.ListAncestors(c2, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1}, ancestors)

	ancestors, err = p.ListAncestors(c2, 0)
	require.NoError(t, err)
	assert.Empty(t, ancestors)

	ancestors, err = p.ListAncestors(genesis, core.NoLimit)
	require.NoError(t, err)
	assert.Empty(t, ancestors)

	_, err = p.ListAncestors(unknownCommit, core.NoLimit)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListAncestorsMerge(t *testing.T) {
	p, genesis, c1, c2 := linearRepo(t)
	merge := mustMerge(t, p, "merged", c2, genesis)
	mustCommit(t, p, "after")

	_, err := p.ListAncestors(merge, core.NoLimit)
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	// the walk stops before reaching the merge
	ancestors, err := p.ListAncestors(c2, core.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1, genesis}, ancestors)
}

func TestListDescendants(t *testing.T) {
	p, genesis, c1, c2 := linearRepo(t)

	descendants, err := p.ListDescendants(genesis, core.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1, c2}, descendants)

	descendants, err = p.ListDescendants(genesis, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1}, descendants)

	descendants, err = p.ListDescendants(c2, core.NoLimit)
	require.NoError(t, err)
	assert.Empty(t, descendants)

	_, err = p.ListDescendants(unknownCommit, core.NoLimit)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestForkedHistory(t *testing.T) {
	p, genesis, c1, c2 := linearRepo(t)

	require.NoError(t, p.CheckoutDetach(c1))
	d1 := mustCommit(t, p, "d1")
	require.NoError(t, p.CreateBranch("fork", d1))

	children, err := p.ListChildren(c1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.CommitHash{c2, d1}, children)

	children, err = p.ListChildren(genesis)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1}, children)

	_, err = p.ListDescendants(genesis, core.NoLimit)
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	// the fork lies beyond the limit
	descendants, err := p.ListDescendants(genesis, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{c1}, descendants)

	base, err := p.FindMergeBase(c2, d1)
	require.NoError(t, err)
	assert.Equal(t, c1, base)

	base, err = p.FindMergeBase(c2, genesis)
	require.NoError(t, err)
	assert.Equal(t, genesis, base)
}

func TestListChildrenOrder(t *testing.T) {
	p := newTestRepo(t, nil)
	genesis := mustHead(t, p)

	var want []core.CommitHash
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, p.CheckoutDetach(genesis))
		h := mustCommit(t, p, name)
		require.NoError(t, p.CreateTag(name, h))
		want = append(want, h)
	}

	children, err := p.ListChildren(genesis)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.ElementsMatch(t, want, children)

	for i := 1; i < len(children); i++ {
		prev, err := p.repo.CommitObject(toPlumbing(children[i-1]))
		require.NoError(t, err)
		next, err := p.repo.CommitObject(toPlumbing(children[i]))
		require.NoError(t, err)
		if prev.Committer.When.Equal(next.Committer.When) {
			assert.Negative(t, children[i-1].Compare(children[i]))
		} else {
			assert.True(t, prev.Committer.When.Before(next.Committer.When))
		}
	}
}

func TestInitialCommitAndUnrelatedHistory(t *testing.T) {
	p, genesis, _, c2 := linearRepo(t)

	initial, err := p.GetInitialCommit()
	require.NoError(t, err)
	assert.Equal(t, genesis, initial)

	orphan, err := p.writeCommit(plumbing.ZeroHash, nil, "orphan\n\n")
	require.NoError(t, err)
	require.NoError(t, p.CreateBranch("orphan", fromPlumbing(orphan)))

	_, err = p.GetInitialCommit()
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	_, err = p.FindMergeBase(c2, fromPlumbing(orphan))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = p.FindMergeBase(c2, unknownCommit)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestShowCommitUnknown(t *testing.T) {
	p := newTestRepo(t, nil)
	_, err := p.ShowCommit(unknownCommit)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
