// Package codec translates semantic commits to and from what the graph store
// persists.
//
// A SemanticCommit becomes a Payload: the commit message, built from the
// title and the body, and the set of files of the reserved region when the
// commit carries a reserved state.
//
//	payload, err := codec.Encode(core.SemanticCommit{Title: "add member", ReservedState: &state})
//	// payload.Message == "add member\n\n"
//	// payload.Files["members.json"] == ...
//
// Encoding is deterministic, and Decode(Encode(x)) equals x.
package codec
