package codec

import (
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/nickyhof/GovernanceDB/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReservedDir is the root of the reserved region in the working tree.
const ReservedDir = "reserved"

// Files of the reserved region, relative to ReservedDir.
const (
	GenesisInfoFile          = "genesis_info.json"
	MembersFile              = "members.json"
	ConsensusLeaderOrderFile = "consensus_leader_order.json"
	VersionFile              = "version"
)

const separator = "\n\n"

// Payload is what a semantic commit is stored as.
type Payload struct {
	Message string
	// Files of the reserved region keyed by path relative to ReservedDir, nil
	// when the commit does not change the reserved state.
	Files map[string][]byte
}

// Encode converts a semantic commit to its payload.
func Encode(c core.SemanticCommit) (Payload, error) {
	if strings.Contains(c.Title, "\n") {
		return Payload{}, core.InvalidArgument("encode semantic commit", "title must be a single line")
	}

	p := Payload{Message: EncodeMessage(c.Title, c.Body)}
	if c.ReservedState == nil {
		return p, nil
	}

	files, err := EncodeReservedState(c.ReservedState)
	if err != nil {
		return Payload{}, err
	}
	p.Files = files
	return p, nil
}

// Decode converts a payload back to a semantic commit.
func Decode(p Payload) (core.SemanticCommit, error) {
	title, body, err := DecodeMessage(p.Message)
	if err != nil {
		return core.SemanticCommit{}, err
	}

	c := core.SemanticCommit{Title: title, Body: body}
	if p.Files == nil {
		return c, nil
	}

	state, err := DecodeReservedState(p.Files)
	if err != nil {
		return core.SemanticCommit{}, err
	}
	c.ReservedState = state
	return c, nil
}

// EncodeMessage joins title and body. The separator is always present so an
// empty body survives the round trip.
func EncodeMessage(title, body string) string {
	return title + separator + body
}

func DecodeMessage(message string) (title, body string, err error) {
	title, body, found := strings.Cut(message, separator)
	if !found || strings.Contains(title, "\n") {
		return "", "", core.InvalidArgument("decode semantic commit", "message has no title line")
	}
	return title, body, nil
}

// EncodeReservedState renders the reserved state as the files of the
// reserved region. Nil and empty lists are kept apart, as null and [].
func EncodeReservedState(s *core.ReservedState) (map[string][]byte, error) {
	if err := checkUTF8(s); err != nil {
		return nil, err
	}
	files := make(map[string][]byte, 4)

	for name, v := range map[string]any{
		GenesisInfoFile:          s.GenesisInfo,
		MembersFile:              s.Members,
		ConsensusLeaderOrderFile: s.ConsensusLeaderOrder,
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, core.InvalidArgument("encode reserved state", "%s: %v", name, err)
		}
		files[name] = append(data, '\n')
	}
	files[VersionFile] = []byte(s.Version + "\n")

	return files, nil
}

// DecodeReservedState parses the files of the reserved region.
func DecodeReservedState(files map[string][]byte) (*core.ReservedState, error) {
	var s core.ReservedState

	for name, v := range map[string]any{
		GenesisInfoFile:          &s.GenesisInfo,
		MembersFile:              &s.Members,
		ConsensusLeaderOrderFile: &s.ConsensusLeaderOrder,
	} {
		data, ok := files[name]
		if !ok {
			return nil, core.InvalidArgument("decode reserved state", "missing %s", name)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return nil, core.InvalidArgument("decode reserved state", "%s: %v", name, err)
		}
	}

	version, ok := files[VersionFile]
	if !ok {
		return nil, core.InvalidArgument("decode reserved state", "missing %s", VersionFile)
	}
	s.Version = strings.TrimSuffix(string(version), "\n")
	return &s, nil
}

// checkUTF8 rejects strings that JSON could not carry unchanged.
func checkUTF8(s *core.ReservedState) error {
	const op = "encode reserved state"
	strs := []string{s.GenesisInfo.ChainName, s.Version}
	strs = append(strs, s.GenesisInfo.GenesisSignatures...)
	strs = append(strs, s.ConsensusLeaderOrder...)
	for _, m := range s.Members {
		strs = append(strs, m.PublicKey, m.Name)
		if m.GovernanceDelegatee != nil {
			strs = append(strs, *m.GovernanceDelegatee)
		}
		if m.ConsensusDelegatee != nil {
			strs = append(strs, *m.ConsensusDelegatee)
		}
	}
	for _, str := range strs {
		if !utf8.ValidString(str) {
			return core.InvalidArgument(op, "%q is not valid UTF-8", str)
		}
	}
	return nil
}
