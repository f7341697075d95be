// Package core provides core types used throughout GovernanceDB.
//
// The package defines the identifier types (Hash256, CommitHash, Branch, Tag),
// the governance payload types (ReservedState, SemanticCommit), the error
// taxonomy shared by every layer, and the Repository contract that commit
// graph adapters implement.
//
// # Identifiers
//
// Hash256 is the 32-byte content digest used as the key type of the state
// store:
//
//	key := core.HashString("members/alice")
//	fmt.Println(key) // 64 hex characters
//
// CommitHash identifies a commit in the graph store. It is opaque to callers;
// adapters decide how their native object ids map onto it.
//
// # Errors
//
// Every operation returns a *core.Error whose kind can be tested with
// errors.Is:
//
//	_, err := repo.LocateBranch("missing")
//	if errors.Is(err, core.ErrNotFound) {
//	    // fall back
//	}
//
// # Repository
//
// RepositoryReader holds the read-only queries and may be shared between
// goroutines. Repository adds the mutating operations, which callers must
// serialize:
//
//	var repo core.Repository = persistence
//	head, _ := repo.GetHead()
//	ancestors, err := repo.ListAncestors(head, core.NoLimit)
package core
