package ps

import (
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/codec"
	"github.com/nickyhof/GovernanceDB/core"
)

const reservedPrefix = codec.ReservedDir + "/"

// CreateCommit commits the working tree onto HEAD. A non-nil diff is applied
// to the working tree first.
func (p *Persistence) CreateCommit(message string, diff *string) (core.CommitHash, error) {
	const op = "create commit"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	if diff != nil {
		wt, err := p.repo.Worktree()
		if err != nil {
			return core.ZeroCommitHash, translate(op, err)
		}
		if err := applyDiff(op, wt.Filesystem, *diff); err != nil {
			return core.ZeroCommitHash, err
		}
	}

	hash, err := p.commitWorktree(op, message)
	if err != nil {
		return core.ZeroCommitHash, err
	}
	p.log.Debug("commit created", zap.Stringer("commit", hash))
	return hash, nil
}

// CreateSemanticCommit commits a change confined to the reserved directory.
// The working tree must be clean.
func (p *Persistence) CreateSemanticCommit(commit core.SemanticCommit) (core.CommitHash, error) {
	const op = "create semantic commit"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	payload, err := codec.Encode(commit)
	if err != nil {
		return core.ZeroCommitHash, err
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	status, err := wt.Status()
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	if !status.IsClean() {
		return core.ZeroCommitHash, core.InvalidRepository(op, "working tree is not clean")
	}

	head, err := p.headCommit()
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	baseTree := plumbing.ZeroHash
	var parents []plumbing.Hash
	if head != nil {
		baseTree = head.TreeHash
		parents = []plumbing.Hash{head.Hash}
	}

	treeHash := baseTree
	if payload.Files != nil {
		if treeHash, err = p.replaceReserved(baseTree, payload.Files); err != nil {
			return core.ZeroCommitHash, translate(op, err)
		}
	}

	if err := p.checkReservedOnly(op, baseTree, treeHash); err != nil {
		return core.ZeroCommitHash, err
	}

	hash, err := p.writeCommit(treeHash, parents, payload.Message)
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	if err := p.advanceHead(hash); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	if err := p.syncWorktree(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	p.log.Info("semantic commit created",
		zap.String("title", commit.Title),
		zap.Bool("reserved_state", commit.ReservedState != nil),
		zap.Stringer("commit", fromPlumbing(hash)))
	return fromPlumbing(hash), nil
}

// replaceReserved swaps the reserved subtree of root for files.
func (p *Persistence) replaceReserved(root plumbing.Hash, files map[string][]byte) (plumbing.Hash, error) {
	changes := []TreeChange{{Path: codec.ReservedDir, IsDelete: true}}
	for name, data := range files {
		blob, err := p.createBlob(data)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		changes = append(changes, TreeChange{Path: reservedPrefix + name, BlobHash: blob})
	}
	return p.batchUpdateTree(root, changes)
}

// checkReservedOnly fails unless every path that differs between the two
// trees lies in the reserved directory.
func (p *Persistence) checkReservedOnly(op string, from, to plumbing.Hash) error {
	fromTree, err := p.treeOrNil(from)
	if err != nil {
		return translate(op, err)
	}
	toTree, err := p.treeOrNil(to)
	if err != nil {
		return translate(op, err)
	}
	_, err = reservedChanged(op, fromTree, toTree)
	return err
}

// reservedChanged reports whether the diff between the trees touches the
// reserved directory. Changes anywhere else are an error.
func reservedChanged(op string, from, to *object.Tree) (bool, error) {
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return false, translate(op, err)
	}

	touched := false
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if !strings.HasPrefix(name, reservedPrefix) {
			return false, core.InvalidRepository(op, "commit changes %s outside of %s", name, reservedPrefix)
		}
		touched = true
	}
	return touched, nil
}

func (p *Persistence) treeOrNil(hash plumbing.Hash) (*object.Tree, error) {
	if hash == plumbing.ZeroHash {
		return nil, nil
	}
	return object.GetTree(p.repo.Storer, hash)
}

// ReadSemanticCommit decodes a commit created by CreateSemanticCommit
func (p *Persistence) ReadSemanticCommit(commit core.CommitHash) (core.SemanticCommit, error) {
	const op = "read semantic commit"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.SemanticCommit{}, translate(op, err)
	}

	c, err := p.repo.CommitObject(toPlumbing(commit))
	if err != nil {
		return core.SemanticCommit{}, translate(op, err)
	}
	if c.NumParents() > 1 {
		return core.SemanticCommit{}, core.InvalidRepository(op, "%s is a merge commit", commit.Short())
	}

	tree, parentTree, err := p.commitTrees(c)
	if err != nil {
		return core.SemanticCommit{}, translate(op, err)
	}

	touched, err := reservedChanged(op, parentTree, tree)
	if err != nil {
		return core.SemanticCommit{}, err
	}

	payload := codec.Payload{Message: c.Message}
	if touched {
		if payload.Files, err = readReserved(op, tree); err != nil {
			return core.SemanticCommit{}, err
		}
	}
	return codec.Decode(payload)
}

// commitTrees returns the tree of c and of its first parent, nil for a root
// commit.
func (p *Persistence) commitTrees(c *object.Commit) (tree, parentTree *object.Tree, err error) {
	if tree, err = c.Tree(); err != nil {
		return nil, nil, err
	}
	if c.NumParents() == 0 {
		return tree, nil, nil
	}
	parent, err := c.Parent(0)
	if err != nil {
		return nil, nil, err
	}
	if parentTree, err = parent.Tree(); err != nil {
		return nil, nil, err
	}
	return tree, parentTree, nil
}

func readReserved(op string, tree *object.Tree) (map[string][]byte, error) {
	sub, err := tree.Tree(codec.ReservedDir)
	if errors.Is(err, object.ErrDirectoryNotFound) {
		return nil, core.InvalidRepository(op, "reserved state was removed")
	}
	if err != nil {
		return nil, translate(op, err)
	}

	files := make(map[string][]byte)
	err = sub.Files().ForEach(func(f *object.File) error {
		contents, err := f.Contents()
		if err != nil {
			return err
		}
		files[f.Name] = []byte(contents)
		return nil
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return files, nil
}

// RunGarbageCollection deletes loose objects unreachable from any reference
func (p *Persistence) RunGarbageCollection() error {
	const op = "run garbage collection"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	err := p.repo.Prune(git.PruneOptions{
		OnlyObjectsOlderThan: time.Now(),
		Handler:              p.repo.DeleteObject,
	})
	if errors.Is(err, git.ErrLooseObjectsNotSupported) {
		p.log.Debug("storage does not support pruning")
		return nil
	}
	if err != nil {
		return translate(op, err)
	}
	p.log.Debug("garbage collected")
	return nil
}
