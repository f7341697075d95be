// Package GovernanceDB keeps the governance state of a blockchain in a git
// repository.
//
// Every governance decision is a semantic commit: a title, a body and an
// optional reserved state (genesis info, members, consensus leader order and
// version) stored as JSON files under the reserved/ directory of the tree.
// Plain git tooling can inspect, clone and fetch the history.
//
// # Quick Start
//
//	repo, _ := ps.InitMemory(ps.WithIdentity(core.Identity{Name: "node", Email: "node@example.com"}))
//	gdb := GovernanceDB.Open(repo, kv.NewMemoryStore())
//
//	hash, _ := gdb.Record(core.SemanticCommit{
//	    Title:         "genesis",
//	    ReservedState: &state,
//	})
//
//	err := gdb.Apply(func(s kv.Storage) error {
//	    return s.InsertOrUpdate(core.HashString("height"), []byte("1"))
//	})
//
// # Packages
//
//   - core: hashes, error kinds and the Repository contract
//   - kv: checkpointed key-value stores (memory and badger) with snapshot export
//   - codec: the deterministic encoding of semantic commits
//   - ps: the go-git implementation of core.Repository
//   - dlogger: zap logger construction
//
// # Errors
//
// Every error carries one of the kinds of package core. Test them with
// errors.Is:
//
//	if errors.Is(err, core.ErrNotFound) {
//	    ...
//	}
package GovernanceDB
