package ps

import (
	"errors"
	"slices"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
)

// ListTags returns all tag names in lexical order
func (p *Persistence) ListTags() ([]core.Tag, error) {
	const op = "list tags"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	tags := []core.Tag{}
	err := p.forEachTag(func(name string, _ plumbing.Hash) {
		tags = append(tags, name)
	})
	if err != nil {
		return nil, translate(op, err)
	}
	slices.Sort(tags)
	return tags, nil
}

// LocateTag returns the commit a tag points to. Annotated tags are peeled.
func (p *Persistence) LocateTag(tag core.Tag) (core.CommitHash, error) {
	const op = "locate tag"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	ref, err := p.repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) || errors.Is(err, plumbing.ErrReferenceNotFound) {
		return core.ZeroCommitHash, core.NotFound(op, "tag %s", tag)
	}
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}

	hash, err := p.peel(ref.Hash())
	if err != nil {
		return core.ZeroCommitHash, translate(op, err)
	}
	return fromPlumbing(hash), nil
}

// GetTags returns the tags pointing at commit in lexical order
func (p *Persistence) GetTags(commit core.CommitHash) ([]core.Tag, error) {
	const op = "get tags"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	target := toPlumbing(commit)
	if _, err := p.repo.CommitObject(target); err != nil {
		return nil, translate(op, err)
	}

	tags := []core.Tag{}
	err := p.forEachTag(func(name string, hash plumbing.Hash) {
		if hash == target {
			tags = append(tags, name)
		}
	})
	if err != nil {
		return nil, translate(op, err)
	}
	slices.Sort(tags)
	return tags, nil
}

// CreateTag creates a lightweight tag at commit
func (p *Persistence) CreateTag(tag core.Tag, commit core.CommitHash) error {
	const op = "create tag"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}
	if tag == "" {
		return core.InvalidArgument(op, "empty tag name")
	}

	hash := toPlumbing(commit)
	if _, err := p.repo.CommitObject(hash); err != nil {
		return translate(op, err)
	}

	if _, err := p.repo.CreateTag(tag, hash, nil); err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return core.AlreadyExists(op, "tag %s", tag)
		}
		return translate(op, err)
	}
	p.log.Debug("tag created", zap.String("tag", tag), zap.Stringer("commit", commit))
	return nil
}

// RemoveTag deletes a tag
func (p *Persistence) RemoveTag(tag core.Tag) error {
	const op = "remove tag"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	if err := p.repo.DeleteTag(tag); err != nil {
		if errors.Is(err, git.ErrTagNotFound) || errors.Is(err, plumbing.ErrReferenceNotFound) {
			return core.NotFound(op, "tag %s", tag)
		}
		return translate(op, err)
	}
	p.log.Debug("tag removed", zap.String("tag", tag))
	return nil
}

// forEachTag calls fn with every tag and the commit it peels to.
func (p *Persistence) forEachTag(fn func(name string, commit plumbing.Hash)) error {
	refs, err := p.repo.Tags()
	if err != nil {
		return err
	}
	return refs.ForEach(func(ref *plumbing.Reference) error {
		hash, err := p.peel(ref.Hash())
		if err != nil {
			return err
		}
		fn(ref.Name().Short(), hash)
		return nil
	})
}

// peel resolves an annotated tag object to its commit. Other hashes are
// returned as is.
func (p *Persistence) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	tag, err := p.repo.TagObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return hash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}
