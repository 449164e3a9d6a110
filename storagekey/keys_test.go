package storagekey

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KILTprotocol/dip-sdk/shared"
)

func TestPrefixKnownVectors(t *testing.T) {
	r := require.New(t)

	number := Item{Pallet: "System", Name: "Number"}
	r.Equal("26aa394eea5630e07c48ae0c9558cef702a5c1b19ab7a04f536c519aca4983ac", hex.EncodeToString(number.Prefix()))

	account := Item{Pallet: "System", Name: "Account"}
	r.Equal("26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9", hex.EncodeToString(account.Prefix()))
}

func TestConcatHashersKeepData(t *testing.T) {
	r := require.New(t)
	data := []byte{1, 2, 3, 4}

	twox := Twox64Concat(data)
	r.Len(twox, 8+len(data))
	r.Equal(data, twox[8:])

	r.NotEqual(Twox128([]byte("a")), Twox128([]byte("b")))
}

func TestIdentityCommitmentKeyDependsOnVersion(t *testing.T) {
	r := require.New(t)
	subject := shared.Subject{7}

	k0 := IdentityCommitment(subject, 0)
	k1 := IdentityCommitment(subject, 1)
	r.NotEqual(k0, k1)
	r.Equal(IdentityCommitments.Prefix(), k0[:32])
	// prefix | twox64concat(subject) | twox64concat(version)
	r.Len(k0, 32+8+32+8+2)
	r.Equal(subject[:], k0[40:72])
}

func TestParaHeadKey(t *testing.T) {
	r := require.New(t)
	key := ParaHead(2086)
	r.Len(key, 32+8+4)
	r.Equal([]byte{0x26, 0x08, 0, 0}, key[40:])
}

func TestMapKeyPanicsOnArity(t *testing.T) {
	require.Panics(t, func() {
		IdentityEntries.MapKey([]Hasher{Twox64Concat}, []byte{1}, []byte{2})
	})
}

func TestIdentityEntryKey(t *testing.T) {
	r := require.New(t)
	subject := shared.Subject{9}
	key := IdentityEntry(subject)
	r.Equal(IdentityEntries.Prefix(), key[:32])
	r.Len(key, 32+8+32)
	r.Equal(subject[:], key[40:])
}
