package core

import "context"

// NoLimit disables the max argument of ListAncestors and ListDescendants.
const NoLimit = -1

// Remote is a named remote location.
type Remote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RemoteTrackingBranch is a branch of a remote as last fetched.
type RemoteTrackingBranch struct {
	Remote string     `json:"remote"`
	URL    string     `json:"url"`
	Branch Branch     `json:"branch"`
	Commit CommitHash `json:"commit"`
}

// RepositoryReader is the read-only part of the repository contract. Its
// methods may be called concurrently.
type RepositoryReader interface {
	// ListBranches returns the list of branches.
	ListBranches() ([]Branch, error)
	// LocateBranch returns the commit that the branch points to.
	LocateBranch(branch Branch) (CommitHash, error)
	// GetBranches returns the branches pointing at the commit.
	GetBranches(commit CommitHash) ([]Branch, error)

	ListTags() ([]Tag, error)
	LocateTag(tag Tag) (CommitHash, error)
	GetTags(commit CommitHash) ([]Tag, error)

	// ReadSemanticCommit decodes a commit back into a SemanticCommit.
	ReadSemanticCommit(commit CommitHash) (SemanticCommit, error)

	GetHead() (CommitHash, error)
	// GetCurrentBranch fails with ErrDetachedHead when HEAD is detached.
	GetCurrentBranch() (Branch, error)
	// GetInitialCommit fails if the repository is empty.
	GetInitialCommit() (CommitHash, error)
	// ShowCommit returns the diff of the commit against its first parent.
	ShowCommit(commit CommitHash) (string, error)

	// ListAncestors lists the ancestors of the commit, the direct parent
	// first. It fails if it meets a merge commit.
	ListAncestors(commit CommitHash, max int) ([]CommitHash, error)
	// ListDescendants lists the descendants of the commit, the direct child
	// first. It fails if it meets a commit with several children.
	ListDescendants(commit CommitHash, max int) ([]CommitHash, error)
	// ListChildren returns every direct child of the commit.
	ListChildren(commit CommitHash) ([]CommitHash, error)
	// FindMergeBase returns the nearest common ancestor of the two commits.
	FindMergeBase(commit1, commit2 CommitHash) (CommitHash, error)

	ListRemotes() ([]Remote, error)
	ListRemoteTrackingBranches() ([]RemoteTrackingBranch, error)
}

// Repository is a handle on a commit graph. Implementations own their
// storage location exclusively for their whole lifetime; mutating calls must
// be serialized by the caller or the implementation.
type Repository interface {
	RepositoryReader

	CreateBranch(branch Branch, commit CommitHash) error
	MoveBranch(branch Branch, commit CommitHash) error
	DeleteBranch(branch Branch) error

	CreateTag(tag Tag, commit CommitHash) error
	RemoveTag(tag Tag) error

	// CreateCommit commits the working tree, after applying diff if not nil.
	CreateCommit(message string, diff *string) (CommitHash, error)
	// CreateSemanticCommit commits a change confined to the reserved region.
	CreateSemanticCommit(commit SemanticCommit) (CommitHash, error)
	// RunGarbageCollection removes objects unreachable from any reference.
	RunGarbageCollection() error

	// CheckoutClean discards working tree changes and untracked files.
	CheckoutClean() error
	Checkout(branch Branch) error
	// CheckoutDetach moves HEAD to the commit in detached mode.
	CheckoutDetach(commit CommitHash) error

	AddRemote(name, url string) error
	RemoveRemote(name string) error
	FetchAll(ctx context.Context) error
}
