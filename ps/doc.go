// Package ps provides the commit graph repository of GovernanceDB.
//
// Persistence implements core.Repository on top of go-git. Branches, tags,
// remotes and the working tree are plain git, so any git client can inspect
// a repository. Governance decisions are recorded as semantic commits whose
// diff is confined to the reserved/ directory.
//
// # Memory Repository
//
// For tests or ephemeral nodes:
//
//	repo, err := ps.InitMemory(ps.WithIdentity(identity))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Repository
//
// Init creates the repository and commits the content of the directory as
// the genesis commit. Open reopens it. A file repository is locked for the
// lifetime of its handle:
//
//	repo, err := ps.Open("/path/to/data", ps.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Semantic Commits
//
//	hash, err := repo.CreateSemanticCommit(core.SemanticCommit{
//	    Title:         "update members",
//	    ReservedState: &state,
//	})
//	commit, err := repo.ReadSemanticCommit(hash)
//
// # Concurrency
//
// Queries take a read lock and may run concurrently. Mutations take the
// write lock. References are only moved after every object of a commit is
// stored.
package ps
