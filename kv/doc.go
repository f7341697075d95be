// Package kv provides the versioned key-value state store of GovernanceDB.
//
// A store keeps two snapshots of a Hash256 → bytes mapping: the current
// working state, which every mutation touches, and the checkpoint, the last
// state explicitly promoted as known-good. Only one generation of history is
// kept:
//
//	store := kv.NewMemoryStore()
//	store.InsertOrUpdate(core.HashString("a"), []byte("1"))
//	store.CommitCheckpoint()                 // checkpoint = {a}
//	store.InsertOrUpdate(core.HashString("b"), []byte("2"))
//	store.RevertToLatestCheckpoint()         // current = {a} again
//
// # Backends
//
// MemoryStore keeps both snapshots in Go maps. BadgerStore keeps each
// snapshot as a generation of keys in a badger database. Commit and revert
// copy one generation into a fresh one with a write batch, then switch a
// single meta key to it and drop the generation it replaced, so neither is
// bound by badger's transaction size limit:
//
//	store, err := kv.OpenBadgerStore("/var/lib/governance/state")
//	defer store.Close()
//
// # Snapshots
//
// The checkpoint of any store can be exported to a local file or an S3
// object and loaded back into a fresh MemoryStore:
//
//	err := kv.Export(ctx, store, "s3://bucket/state.json", &kv.S3Config{Region: "eu-west-1"})
//	restored, err := kv.Import(ctx, "s3://bucket/state.json", nil)
package kv
