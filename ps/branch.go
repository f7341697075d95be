package ps

import (
	"errors"
	"slices"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
)

// ListBranches returns all branch names in lexical order
func (p *Persistence) ListBranches() ([]core.Branch, error) {
	const op = "list branches"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	refs, err := p.repo.Branches()
	if err != nil {
		return nil, translate(op, err)
	}

	branches := []core.Branch{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, translate(op, err)
	}
	slices.Sort(branches)
	return branches, nil
}

// LocateBranch returns the commit the branch points to
func (p *Persistence) LocateBranch(branch core.Branch) (core.CommitHash, error) {
	const op = "locate branch"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	ref, err := p.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return core.ZeroCommitHash, core.NotFound(op, "branch %s", branch)
	}
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	return fromPlumbing(ref.Hash()), nil
}

// GetBranches returns the branches pointing at commit in lexical order
func (p *Persistence) GetBranches(commit core.CommitHash) ([]core.Branch, error) {
	const op = "get branches"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	target := toPlumbing(commit)
	if _, err := p.repo.CommitObject(target); err != nil {
		return nil, translate(op, err)
	}

	refs, err := p.repo.Branches()
	if err != nil {
		return nil, translate(op, err)
	}

	branches := []core.Branch{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Hash() == target {
			branches = append(branches, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, translate(op, err)
	}
	slices.Sort(branches)
	return branches, nil
}

// GetCurrentBranch returns the branch HEAD points to
func (p *Persistence) GetCurrentBranch() (core.Branch, error) {
	const op = "get current branch"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return "", translate(op, err)
	}
	return p.currentBranch(op)
}

// currentBranch reads HEAD without resolving it, so an unborn branch is
// still reported.
func (p *Persistence) currentBranch(op string) (core.Branch, error) {
	head, err := p.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", translate(op, err)
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short(), nil
	}
	return "", core.DetachedHead(op, fromPlumbing(head.Hash()))
}

// CreateBranch creates a branch at commit. It fails if the branch exists.
func (p *Persistence) CreateBranch(branch core.Branch, commit core.CommitHash) error {
	const op = "create branch"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}
	if branch == "" {
		return core.InvalidArgument(op, "empty branch name")
	}

	name := plumbing.NewBranchReferenceName(branch)
	if _, err := p.repo.Storer.Reference(name); err == nil {
		return core.AlreadyExists(op, "branch %s", branch)
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return translate(op, err)
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(name, hash)); err != nil {
		return translate(op, err)
	}
	p.log.Debug("branch created", zap.String("branch", branch), zap.Stringer("commit", commit))
	return nil
}

// MoveBranch points an existing branch at commit. The checked out branch
// cannot be moved.
func (p *Persistence) MoveBranch(branch core.Branch, commit core.CommitHash) error {
	const op = "move branch"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	name, err := p.existingBranch(op, branch)
	if err != nil {
		return err
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return translate(op, err)
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(name, hash)); err != nil {
		return translate(op, err)
	}
	p.log.Debug("branch moved", zap.String("branch", branch), zap.Stringer("commit", commit))
	return nil
}

// DeleteBranch removes a branch. The checked out branch cannot be deleted.
func (p *Persistence) DeleteBranch(branch core.Branch) error {
	const op = "delete branch"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	name, err := p.existingBranch(op, branch)
	if err != nil {
		return err
	}

	if err := p.repo.Storer.RemoveReference(name); err != nil {
		return translate(op, err)
	}
	p.log.Debug("branch deleted", zap.String("branch", branch))
	return nil
}

// existingBranch checks that branch exists and is not checked out.
func (p *Persistence) existingBranch(op string, branch core.Branch) (plumbing.ReferenceName, error) {
	name := plumbing.NewBranchReferenceName(branch)
	if _, err := p.repo.Storer.Reference(name); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", core.NotFound(op, "branch %s", branch)
		}
		return "", translate(op, err)
	}

	current, err := p.currentBranch(op)
	if err == nil && current == branch {
		return "", core.InvalidRepository(op, "branch %s is checked out", branch)
	}
	return name, nil
}

// Checkout switches HEAD and the working tree to an existing branch
func (p *Persistence) Checkout(branch core.Branch) error {
	const op = "checkout"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	name := plumbing.NewBranchReferenceName(branch)
	if _, err := p.repo.Storer.Reference(name); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return core.NotFound(op, "branch %s", branch)
		}
		return translate(op, err)
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return translate(op, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: name}); err != nil {
		if errors.Is(err, git.ErrUnstagedChanges) {
			return core.InvalidRepository(op, "working tree has unstaged changes")
		}
		return translate(op, err)
	}
	p.log.Debug("checked out branch", zap.String("branch", branch))
	return nil
}

// CheckoutDetach moves HEAD to commit without a branch
func (p *Persistence) CheckoutDetach(commit core.CommitHash) error {
	const op = "checkout detach"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return translate(op, err)
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return translate(op, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		if errors.Is(err, git.ErrUnstagedChanges) {
			return core.InvalidRepository(op, "working tree has unstaged changes")
		}
		return translate(op, err)
	}
	p.log.Debug("detached HEAD", zap.Stringer("commit", commit))
	return nil
}

// CheckoutClean discards changes of the working tree, untracked files included
func (p *Persistence) CheckoutClean() error {
	const op = "checkout clean"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	if err := p.syncWorktree(); err != nil {
		return translate(op, err)
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return translate(op, err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return translate(op, err)
	}
	return nil
}
