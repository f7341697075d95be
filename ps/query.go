package ps

import (
	"errors"
	"slices"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/GovernanceDB/core"
)

// GetHead returns the commit HEAD points to
func (p *Persistence) GetHead() (core.CommitHash, error) {
	const op = "get head"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	ref, err := p.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return core.ZeroCommitHash, core.NotFound(op, "HEAD has no commit")
	}
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	return fromPlumbing(ref.Hash()), nil
}

// GetInitialCommit returns the single root commit reachable from any
// reference.
func (p *Persistence) GetInitialCommit() (core.CommitHash, error) {
	const op = "get initial commit"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	var roots []plumbing.Hash
	err := p.walkReachable(func(c *object.Commit) {
		if c.NumParents() == 0 {
			roots = append(roots, c.Hash)
		}
	})
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	switch len(roots) {
	case 0:
		return core.ZeroCommitHash, core.NotFound(op, "repository has no commit")
	case 1:
		return fromPlumbing(roots[0]), nil
	default:
		return core.ZeroCommitHash, core.InvalidRepository(op, "%d root commits", len(roots))
	}
}

// ShowCommit returns the unified diff of commit against its first parent
func (p *Persistence) ShowCommit(commit core.CommitHash) (string, error) {
	const op = "show commit"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return "", translate(op, err)
	}

	c, err := p.repo.CommitObject(toPlumbing(commit))
	if err != nil {
		return "", translate(op, err)
	}

	tree, parentTree, err := p.commitTrees(c)
	if err != nil {
		return "", translate(op, err)
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return "", translate(op, err)
	}
	patch, err := changes.Patch()
	if err != nil {
		return "", translate(op, err)
	}
	return patch.String(), nil
}

// ListAncestors walks first parents from commit, the direct parent first. It
// fails on a merge commit. max < 0 disables the limit.
func (p *Persistence) ListAncestors(commit core.CommitHash, max int) ([]core.CommitHash, error) {
	const op = "list ancestors"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	c, err := p.repo.CommitObject(toPlumbing(commit))
	if err != nil {
		return nil, translate(op, err)
	}

	ancestors := []core.CommitHash{}
	for max < 0 || len(ancestors) < max {
		switch c.NumParents() {
		case 0:
			return ancestors, nil
		case 1:
		default:
			return nil, core.InvalidRepository(op, "%s is a merge commit", c.Hash.String()[:7])
		}

		if c, err = c.Parent(0); err != nil {
			return nil, translate(op, err)
		}
		ancestors = append(ancestors, fromPlumbing(c.Hash))
	}
	return ancestors, nil
}

// ListDescendants walks children from commit, the direct child first. It
// fails on a commit with several children. max < 0 disables the limit.
func (p *Persistence) ListDescendants(commit core.CommitHash, max int) ([]core.CommitHash, error) {
	const op = "list descendants"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return nil, translate(op, err)
	}

	children, err := p.childIndex()
	if err != nil {
		return nil, translate(op, err)
	}

	descendants := []core.CommitHash{}
	for max < 0 || len(descendants) < max {
		next := children[hash]
		switch len(next) {
		case 0:
			return descendants, nil
		case 1:
		default:
			return nil, core.InvalidRepository(op, "%s has %d children", hash.String()[:7], len(next))
		}
		hash = next[0].Hash
		descendants = append(descendants, fromPlumbing(hash))
	}
	return descendants, nil
}

// ListChildren returns the direct children of commit reachable from any
// reference, ordered by committer time then hash.
func (p *Persistence) ListChildren(commit core.CommitHash) ([]core.CommitHash, error) {
	const op = "list children"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return nil, translate(op, err)
	}

	index, err := p.childIndex()
	if err != nil {
		return nil, translate(op, err)
	}

	commits := slices.Clone(index[hash])
	slices.SortFunc(commits, func(a, b *object.Commit) int {
		if c := a.Committer.When.Compare(b.Committer.When); c != 0 {
			return c
		}
		return fromPlumbing(a.Hash).Compare(fromPlumbing(b.Hash))
	})

	children := make([]core.CommitHash, len(commits))
	for i, c := range commits {
		children[i] = fromPlumbing(c.Hash)
	}
	return children, nil
}

// FindMergeBase returns the nearest common ancestor of two commits
func (p *Persistence) FindMergeBase(commit1, commit2 core.CommitHash) (core.CommitHash, error) {
	const op = "find merge base"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	c1, err := p.repo.CommitObject(toPlumbing(commit1))
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	c2, err := p.repo.CommitObject(toPlumbing(commit2))
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	bases, err := c1.MergeBase(c2)
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	switch len(bases) {
	case 0:
		return core.ZeroCommitHash, core.NotFound(op, "%s and %s are unrelated", commit1.Short(), commit2.Short())
	case 1:
		return fromPlumbing(bases[0].Hash), nil
	default:
		return core.ZeroCommitHash, core.InvalidRepository(op, "%d merge bases", len(bases))
	}
}

// tips returns the commits pointed to by HEAD and every branch, tag and
// remote tracking branch.
func (p *Persistence) tips() ([]*object.Commit, error) {
	seen := make(map[plumbing.Hash]bool)
	var tips []*object.Commit
	add := func(hash plumbing.Hash) error {
		hash, err := p.peel(hash)
		if err != nil {
			return err
		}
		if seen[hash] {
			return nil
		}
		seen[hash] = true
		c, err := p.repo.CommitObject(hash)
		if err != nil {
			return err
		}
		tips = append(tips, c)
		return nil
	}

	if head, err := p.repo.Head(); err == nil {
		if err := add(head.Hash()); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, err
	}

	refs, err := p.repo.References()
	if err != nil {
		return nil, err
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if !name.IsBranch() && !name.IsTag() && !name.IsRemote() {
			return nil
		}
		return add(ref.Hash())
	})
	if err != nil {
		return nil, err
	}
	return tips, nil
}

// walkReachable visits every commit reachable from tips once.
func (p *Persistence) walkReachable(fn func(c *object.Commit)) error {
	stack, err := p.tips()
	if err != nil {
		return err
	}

	seen := make(map[plumbing.Hash]bool)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		fn(c)

		for _, ph := range c.ParentHashes {
			if seen[ph] {
				continue
			}
			parent, err := p.repo.CommitObject(ph)
			if err != nil {
				return err
			}
			stack = append(stack, parent)
		}
	}
	return nil
}

// childIndex maps every reachable commit to its children.
func (p *Persistence) childIndex() (map[plumbing.Hash][]*object.Commit, error) {
	index := make(map[plumbing.Hash][]*object.Commit)
	err := p.walkReachable(func(c *object.Commit) {
		for _, ph := range c.ParentHashes {
			index[ph] = append(index[ph], c)
		}
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
