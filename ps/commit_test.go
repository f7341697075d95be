package ps

import (
	"testing"

	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/GovernanceDB/codec"
	"github.com/nickyhof/GovernanceDB/core"
)

func testState() *core.ReservedState {
	delegatee := "alice"
	return &core.ReservedState{
		GenesisInfo: core.GenesisInfo{
			ChainName:         "testchain",
			GenesisHeight:     0,
			GenesisSignatures: []string{"sig-alice", "sig-bob"},
		},
		Members: []core.Member{
			{PublicKey: "pk-alice", Name: "alice", GovernanceVotingPower: 1, ConsensusVotingPower: 1},
			{PublicKey: "pk-bob", Name: "bob", GovernanceVotingPower: 1, ConsensusVotingPower: 1, GovernanceDelegatee: &delegatee},
		},
		ConsensusLeaderOrder: []string{"alice", "bob"},
		Version:              "0.1.0",
	}
}

func TestCreateCommitWithDiff(t *testing.T) {
	p := newTestRepo(t, map[string]string{"a.txt": "hello\n"})
	genesis := mustHead(t, p)

	diff := "diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-hello\n+world\n" +
		"diff --git a/b.txt b/b.txt\nnew file mode 100644\n--- /dev/null\n+++ b/b.txt\n@@ -0,0 +1 @@\n+new\n"
	hash, err := p.CreateCommit("edit", &diff)
	require.NoError(t, err)
	assert.Equal(t, hash, mustHead(t, p))

	ancestors, err := p.ListAncestors(hash, core.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{genesis}, ancestors)

	shown, err := p.ShowCommit(hash)
	require.NoError(t, err)
	assert.Contains(t, shown, "-hello")
	assert.Contains(t, shown, "+world")
	assert.Contains(t, shown, "+new")

	wt, err := p.repo.Worktree()
	require.NoError(t, err)
	status, err := wt.Status()
	require.NoError(t, err)
	assert.True(t, status.IsClean())
}

func TestCreateCommitDeletion(t *testing.T) {
	p := newTestRepo(t, map[string]string{"a.txt": "hello\n", "keep.txt": "keep\n"})

	diff := "diff --git a/a.txt b/a.txt\ndeleted file mode 100644\n--- a/a.txt\n+++ /dev/null\n@@ -1 +0,0 @@\n-hello\n"
	hash, err := p.CreateCommit("delete", &diff)
	require.NoError(t, err)

	shown, err := p.ShowCommit(hash)
	require.NoError(t, err)
	assert.Contains(t, shown, "a.txt")
	assert.NotContains(t, shown, "keep.txt")
}

func TestCreateCommitBadDiff(t *testing.T) {
	p := newTestRepo(t, map[string]string{"a.txt": "hello\n"})
	head := mustHead(t, p)

	conflicting := "diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-other\n+world\n"
	_, err := p.CreateCommit("edit", &conflicting)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	missing := "diff --git a/x.txt b/x.txt\n--- a/x.txt\n+++ b/x.txt\n@@ -1 +1 @@\n-a\n+b\n"
	_, err = p.CreateCommit("edit", &missing)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	assert.Equal(t, head, mustHead(t, p))
	wt, err := p.repo.Worktree()
	require.NoError(t, err)
	data, err := util.ReadFile(wt.Filesystem, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestSemanticCommitRoundTrip(t *testing.T) {
	p := newTestRepo(t, map[string]string{"README": "chain\n"})

	want := core.SemanticCommit{Title: "genesis state", Body: "initial members", ReservedState: testState()}
	hash, err := p.CreateSemanticCommit(want)
	require.NoError(t, err)
	assert.Equal(t, hash, mustHead(t, p))

	got, err := p.ReadSemanticCommit(hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	shown, err := p.ShowCommit(hash)
	require.NoError(t, err)
	assert.Contains(t, shown, codec.ReservedDir+"/"+codec.MembersFile)
	assert.NotContains(t, shown, "README")

	// the working tree follows HEAD
	wt, err := p.repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Filesystem.Stat(codec.ReservedDir + "/" + codec.VersionFile)
	assert.NoError(t, err)
}

func TestSemanticCommitEmptyLists(t *testing.T) {
	p := newTestRepo(t, nil)

	want := core.SemanticCommit{Title: "empty members", ReservedState: &core.ReservedState{
		GenesisInfo:          core.GenesisInfo{ChainName: "testchain", GenesisSignatures: []string{}},
		Members:              []core.Member{},
		ConsensusLeaderOrder: []string{},
		Version:              "0.1.0",
	}}
	hash, err := p.CreateSemanticCommit(want)
	require.NoError(t, err)

	got, err := p.ReadSemanticCommit(hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NotNil(t, got.ReservedState.Members)
}

func TestSemanticCommitRejectsInvalidUTF8(t *testing.T) {
	p := newTestRepo(t, nil)
	head := mustHead(t, p)

	state := testState()
	state.ConsensusLeaderOrder = []string{"\xff\xfe"}
	_, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "bad leader", ReservedState: state})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Equal(t, head, mustHead(t, p))
}

func TestSemanticCommitWithoutState(t *testing.T) {
	p := newTestRepo(t, nil)
	_, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "state", ReservedState: testState()})
	require.NoError(t, err)

	want := core.SemanticCommit{Title: "agenda", Body: "vote on something"}
	hash, err := p.CreateSemanticCommit(want)
	require.NoError(t, err)

	got, err := p.ReadSemanticCommit(hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Nil(t, got.ReservedState)
}

func TestSemanticCommitReplacesState(t *testing.T) {
	p := newTestRepo(t, nil)
	_, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "first", ReservedState: testState()})
	require.NoError(t, err)

	state := testState()
	state.Members = state.Members[:1]
	state.ConsensusLeaderOrder = []string{"alice"}
	want := core.SemanticCommit{Title: "expel bob", ReservedState: state}
	hash, err := p.CreateSemanticCommit(want)
	require.NoError(t, err)

	got, err := p.ReadSemanticCommit(hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSemanticCommitRequiresCleanTree(t *testing.T) {
	p := newTestRepo(t, nil)
	head := mustHead(t, p)
	wt, err := p.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(wt.Filesystem, "stray.txt", []byte("x"), 0644))

	_, err = p.CreateSemanticCommit(core.SemanticCommit{Title: "t"})
	assert.ErrorIs(t, err, core.ErrInvalidRepository)
	assert.Equal(t, head, mustHead(t, p))

	require.NoError(t, p.CheckoutClean())
	_, err = p.CreateSemanticCommit(core.SemanticCommit{Title: "t"})
	assert.NoError(t, err)
}

func TestSemanticCommitRejectsMultilineTitle(t *testing.T) {
	p := newTestRepo(t, nil)
	_, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "a\nb"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSemanticCommitDetached(t *testing.T) {
	p := newTestRepo(t, nil)
	genesis := mustHead(t, p)
	mainHead := mustCommit(t, p, "second")
	require.NoError(t, p.CheckoutDetach(genesis))

	hash, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "detached", ReservedState: testState()})
	require.NoError(t, err)
	assert.Equal(t, hash, mustHead(t, p))

	at, err := p.LocateBranch("main")
	require.NoError(t, err)
	assert.Equal(t, mainHead, at)
}

func TestReadSemanticCommitRejects(t *testing.T) {
	p := newTestRepo(t, map[string]string{"a.txt": "hello\n"})
	genesis := mustHead(t, p)

	// the genesis commit adds a.txt outside of the reserved directory
	_, err := p.ReadSemanticCommit(genesis)
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	diff := "diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-hello\n+world\n"
	plain, err := p.CreateCommit("edit\n\n", &diff)
	require.NoError(t, err)
	_, err = p.ReadSemanticCommit(plain)
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	merge := mustMerge(t, p, "merged", plain, genesis)
	_, err = p.ReadSemanticCommit(merge)
	assert.ErrorIs(t, err, core.ErrInvalidRepository)

	_, err = p.ReadSemanticCommit(unknownCommit)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRunGarbageCollection(t *testing.T) {
	p, err := Init(t.TempDir(), WithIdentity(testIdentity))
	require.NoError(t, err)
	defer p.Close()

	genesis := mustHead(t, p)
	head, err := p.CreateSemanticCommit(core.SemanticCommit{Title: "state", ReservedState: testState()})
	require.NoError(t, err)

	require.NoError(t, p.CheckoutDetach(genesis))
	dangling := mustCommit(t, p, "dangling")
	require.NoError(t, p.Checkout("main"))

	require.NoError(t, p.RunGarbageCollection())

	_, err = p.repo.CommitObject(toPlumbing(dangling))
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)

	ancestors, err := p.ListAncestors(head, core.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []core.CommitHash{genesis}, ancestors)

	got, err := p.ReadSemanticCommit(head)
	require.NoError(t, err)
	assert.Equal(t, testState(), got.ReservedState)
}
