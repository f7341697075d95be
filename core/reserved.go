package core

// ReservedState is the governance state tracked in the reserved region of
// the working tree.
type ReservedState struct {
	GenesisInfo          GenesisInfo `json:"genesis_info"`
	Members              []Member    `json:"members"`
	ConsensusLeaderOrder []string    `json:"consensus_leader_order"`
	Version              string      `json:"version"`
}

type GenesisInfo struct {
	ChainName         string   `json:"chain_name"`
	GenesisHeight     uint64   `json:"genesis_height"`
	GenesisSignatures []string `json:"genesis_signatures"`
}

type Member struct {
	PublicKey             string  `json:"public_key"`
	Name                  string  `json:"name"`
	GovernanceVotingPower uint64  `json:"governance_voting_power"`
	ConsensusVotingPower  uint64  `json:"consensus_voting_power"`
	GovernanceDelegatee   *string `json:"governance_delegatee,omitempty"`
	ConsensusDelegatee    *string `json:"consensus_delegatee,omitempty"`
	Expelled              bool    `json:"expelled"`
}

// Member returns the member with the given name.
func (s *ReservedState) Member(name string) (Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// SemanticCommit is a commit without any diff on the non-reserved region.
type SemanticCommit struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// ReservedState is the new reserved state, set only if the commit changed it.
	ReservedState *ReservedState `json:"reserved_state,omitempty"`
}
