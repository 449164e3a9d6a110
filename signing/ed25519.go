// Package signing holds signing capabilities bound to a verification
// relationship of a subject.
package signing

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/spacemeshos/ed25519"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/shared"
)

// Ed25519Signer signs with an in-memory ed25519 key.
type Ed25519Signer struct {
	key          ed25519.PrivateKey
	relationship shared.KeyRelationship
}

var _ chain.Signer = (*Ed25519Signer)(nil)

func NewEd25519Signer(key ed25519.PrivateKey, relationship shared.KeyRelationship) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length; expected: %d, given: %d", ed25519.PrivateKeySize, len(key))
	}
	if relationship == shared.KeyAgreement {
		return nil, fmt.Errorf("key agreement keys cannot sign")
	}
	return &Ed25519Signer{key: key, relationship: relationship}, nil
}

// NewEd25519SignerFromSeed derives the key from a 32 byte seed.
func NewEd25519SignerFromSeed(seed []byte, relationship shared.KeyRelationship) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length; expected: %d, given: %d", ed25519.SeedSize, len(seed))
	}
	return NewEd25519Signer(ed25519.NewKeyFromSeed(seed), relationship)
}

// GenerateEd25519Signer creates a signer with a fresh random key.
func GenerateEd25519Signer(relationship shared.KeyRelationship) (*Ed25519Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewEd25519Signer(key, relationship)
}

func (s *Ed25519Signer) PublicKey() []byte {
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, s.key[ed25519.PublicKeySize:])
	return pub
}

func (s *Ed25519Signer) Relationship() shared.KeyRelationship {
	return s.relationship
}

func (s *Ed25519Signer) Sign(ctx context.Context, payload []byte) (shared.Signature, error) {
	if err := ctx.Err(); err != nil {
		return shared.Signature{}, err
	}
	return shared.Signature{KeyType: shared.Ed25519, Bytes: ed25519.Sign(s.key, payload)}, nil
}

// Verify reports whether sig is a valid ed25519 signature of payload by pub.
func Verify(pub []byte, payload []byte, sig shared.Signature) bool {
	if sig.KeyType != shared.Ed25519 || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, payload, sig.Bytes)
}
