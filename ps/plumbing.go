package ps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/GovernanceDB/core"
)

// createBlob stores data as a blob object without touching the working tree
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}
	return hash, nil
}

// getTreeEntries reads the entries of a tree keyed by name. ZeroHash is the
// empty tree.
func (p *Persistence) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(p.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

// buildTreeFromEntries stores a tree object made of entries
func (p *Persistence) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// git orders directories as if their name had a trailing slash
	sort.Slice(entries, func(i, j int) bool {
		nameI, nameJ := entries[i].Name, entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}
	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}

// TreeChange is a single change applied by batchUpdateTree
type TreeChange struct {
	Path     string        // slash separated, e.g. "reserved/members.json"
	BlobHash plumbing.Hash // ignored when IsDelete is set
	IsDelete bool
}

// batchUpdateTree applies changes to a tree, rebuilding each touched
// directory once. A path naming a directory with IsDelete removes the whole
// subtree. The result is ZeroHash when the tree ends up empty.
func (p *Persistence) batchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	grouped := make(map[string][]TreeChange)
	var leafChanges []TreeChange
	for _, change := range changes {
		dir, rest, nested := strings.Cut(change.Path, "/")
		if !nested {
			leafChanges = append(leafChanges, change)
			continue
		}
		grouped[dir] = append(grouped[dir], TreeChange{
			Path:     rest,
			BlobHash: change.BlobHash,
			IsDelete: change.IsDelete,
		})
	}

	entries, err := p.getTreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, change := range leafChanges {
		if change.IsDelete {
			delete(entries, change.Path)
			continue
		}
		entries[change.Path] = object.TreeEntry{
			Name: change.Path,
			Mode: filemode.Regular,
			Hash: change.BlobHash,
		}
	}

	for dir, subChanges := range grouped {
		subTreeHash := plumbing.ZeroHash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}

		newSubTreeHash, err := p.batchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, dir)
			continue
		}
		entries[dir] = object.TreeEntry{
			Name: dir,
			Mode: filemode.Dir,
			Hash: newSubTreeHash,
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}
	return p.buildTreeFromEntries(entrySlice)
}

// headCommit returns the commit at HEAD, or nil if HEAD is unborn.
func (p *Persistence) headCommit() (*object.Commit, error) {
	ref, err := p.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.repo.CommitObject(ref.Hash())
}

// writeCommit stores a commit object on top of parents. A ZeroHash tree is
// stored as the empty tree.
func (p *Persistence) writeCommit(treeHash plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
	if treeHash == plumbing.ZeroHash {
		var err error
		if treeHash, err = p.buildTreeFromEntries(nil); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	sig := p.signature()
	commit := &object.Commit{
		Author:       *sig,
		Committer:    *sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}
	return hash, nil
}

// advanceHead moves the branch HEAD points to, or HEAD itself when detached.
func (p *Persistence) advanceHead(commit plumbing.Hash) error {
	head, err := p.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return err
	}

	name := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		name = head.Target()
	}
	return p.repo.Storer.SetReference(plumbing.NewHashReference(name, commit))
}

// syncWorktree makes the working tree match HEAD
func (p *Persistence) syncWorktree() error {
	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}

	commit, err := p.headCommit()
	if err != nil || commit == nil {
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return err
	}

	// reset refuses an empty tree ("base dir cannot be removed")
	if len(tree.Entries) == 0 {
		fs := wt.Filesystem
		entries, err := fs.ReadDir("/")
		if err != nil {
			return fmt.Errorf("failed to read working tree: %w", err)
		}
		for _, entry := range entries {
			if entry.Name() == git.GitDirName {
				continue
			}
			if err := util.RemoveAll(fs, entry.Name()); err != nil {
				return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: commit.Hash,
	})
}

// commitWorktree stages every change of the working tree, deletions
// included, and commits it on HEAD.
func (p *Persistence) commitWorktree(op, message string) (core.CommitHash, error) {
	wt, err := p.repo.Worktree()
	if err != nil {
		return core.ZeroCommitHash, core.Backend(op, err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return core.ZeroCommitHash, core.Backend(op, err)
	}

	sig := p.signature()
	hash, err := wt.Commit(message, &git.CommitOptions{
		All:               true,
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return core.ZeroCommitHash, core.Backend(op, err)
	}
	return fromPlumbing(hash), nil
}
