package chaintest

import (
	"bytes"

	"github.com/spacemeshos/ed25519"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// DID is the provider-side state of an identity. Its leaves are ordered keys,
// web3name, linked accounts.
type DID struct {
	Subject  shared.Subject
	Keys     []*shared.VerificationKeyLeaf
	Web3Name *shared.Web3NameLeaf
	Accounts []shared.LinkedAccount
	Deleted  bool

	versions []uint16
}

// NewDID returns a DID whose single authentication key is pub.
func NewDID(subject shared.Subject, pub ed25519.PublicKey) *DID {
	return &DID{
		Subject: subject,
		Keys: []*shared.VerificationKeyLeaf{{
			KeyID:        KeyID(pub),
			Relationship: shared.Authentication,
			PublicKey:    shared.PublicKey{Scheme: shared.PublicKeyEd25519, Bytes: pub},
			AddedAt:      1,
		}},
	}
}

// KeyID derives the provider key id of a public key.
func KeyID(pub []byte) shared.Hash {
	return shared.Blake2_256(pub)
}

// leaves returns one slot per potential leaf; the web3name slot is nil if no
// name is claimed.
func (d *DID) leaves() []shared.RevealedLeaf {
	out := make([]shared.RevealedLeaf, 0, len(d.Keys)+1+len(d.Accounts))
	for _, k := range d.Keys {
		out = append(out, k)
	}
	if d.Web3Name != nil {
		out = append(out, d.Web3Name)
	} else {
		out = append(out, nil)
	}
	for _, a := range d.Accounts {
		out = append(out, &shared.LinkedAccountLeaf{Account: a})
	}
	return out
}

// Root is the commitment of the DID: the Merkle root of its leaf digests.
func (d *DID) Root() shared.Hash {
	var digests []shared.Hash
	for _, leaf := range d.leaves() {
		if leaf != nil {
			digests = append(digests, LeafDigest(leaf))
		}
	}
	return merkleRoot(digests)
}

func LeafDigest(leaf shared.RevealedLeaf) shared.Hash {
	b, err := shared.Encode(leaf)
	if err != nil {
		panic(err)
	}
	return shared.Blake2_256(b)
}

func (d *DID) hasVersion(v uint16) bool {
	for _, have := range d.versions {
		if have == v {
			return true
		}
	}
	return false
}

func (d *DID) keyIndex(id shared.Hash) int {
	for i, k := range d.Keys {
		if k.KeyID == id {
			return i
		}
	}
	return -1
}

func (d *DID) accountIndex(acc shared.LinkedAccount) int {
	for i, a := range d.Accounts {
		if bytes.Equal(a, acc) {
			return len(d.Keys) + 1 + i
		}
	}
	return -1
}
