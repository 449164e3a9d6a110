package config

import "fmt"

// Revision pins which provider block the relay chain's recorded head
// corresponds to for a given anchor, and therefore which provider block the
// identity commitment has to be read at. Historical protocol revisions differ
// here, so every revision states its offset explicitly.
type Revision uint8

const (
	// RevisionAnchorHead: the relay parent cited by block N+1 records block N
	// as the provider head. The commitment is read at N.
	RevisionAnchorHead Revision = iota + 1
	// RevisionParentHead: the recorded head is N-1 to compensate for the relay
	// observation lag. The commitment is read at N-1.
	RevisionParentHead
)

func (r Revision) String() string {
	switch r {
	case RevisionAnchorHead:
		return "anchor-head"
	case RevisionParentHead:
		return "parent-head"
	}
	return fmt.Sprintf("Revision(%d)", uint8(r))
}

// CommitmentBlockOffset returns how many blocks below the anchored provider
// block the recorded head and the commitment read are.
func (r Revision) CommitmentBlockOffset() (uint64, error) {
	switch r {
	case RevisionAnchorHead:
		return 0, nil
	case RevisionParentHead:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown protocol revision %d", uint8(r))
}
