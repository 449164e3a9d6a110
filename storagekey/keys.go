package storagekey

import (
	"encoding/binary"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// Item identifies a storage item by pallet and item name.
type Item struct {
	Pallet string
	Name   string
}

var (
	ParasHeads                = Item{Pallet: "Paras", Name: "Heads"}
	LastRelayChainBlockNumber = Item{Pallet: "ParachainSystem", Name: "LastRelayChainBlockNumber"}
	IdentityCommitments       = Item{Pallet: "DipProvider", Name: "IdentityCommitments"}
	IdentityEntries           = Item{Pallet: "DipConsumer", Name: "IdentityEntries"}
)

// Prefix returns the key of a plain storage value, which is also the prefix
// of every entry of a storage map.
func (i Item) Prefix() []byte {
	return append(Twox128([]byte(i.Pallet)), Twox128([]byte(i.Name))...)
}

// MapKey builds the key of a (multi) map entry. Each component is hashed with
// the hasher at the same position.
func (i Item) MapKey(hashers []Hasher, components ...[]byte) []byte {
	if len(hashers) != len(components) {
		panic("storagekey: number of hashers and key components differ")
	}
	key := i.Prefix()
	for idx, c := range components {
		key = append(key, hashers[idx](c)...)
	}
	return key
}

// ParaHead is the relay key recording the head of parachain id.
func ParaHead(id uint32) []byte {
	return ParasHeads.MapKey([]Hasher{Twox64Concat}, u32(id))
}

// IdentityCommitment is the provider key of the commitment of subject at
// version.
func IdentityCommitment(subject shared.Subject, version uint16) []byte {
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], version)
	return IdentityCommitments.MapKey([]Hasher{Twox64Concat, Twox64Concat}, subject[:], v[:])
}

// IdentityEntry is the consumer key of the subject's identity details.
func IdentityEntry(subject shared.Subject) []byte {
	return IdentityEntries.MapKey([]Hasher{Twox64Concat}, subject[:])
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
