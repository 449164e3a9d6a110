package shared

import (
	"fmt"

	"github.com/spacemeshos/go-scale"
)

// LeafKind is the enum index of a revealed leaf on the wire.
type LeafKind uint8

const (
	LeafVerificationKey LeafKind = iota
	LeafWeb3Name
	LeafLinkedAccount
)

// RevealedLeaf is one disclosed attribute of a DID. The set of implementations
// is closed: VerificationKeyLeaf, Web3NameLeaf and LinkedAccountLeaf.
type RevealedLeaf interface {
	scale.Encodable
	Kind() LeafKind
}

// KeyRelationship is the verification relationship a key is registered under.
type KeyRelationship uint8

const (
	Authentication KeyRelationship = iota
	CapabilityDelegation
	AssertionMethod
	KeyAgreement
)

var keyRelationships = []string{"authentication", "capabilityDelegation", "assertionMethod", "keyAgreement"}

func (r KeyRelationship) String() string {
	if int(r) < len(keyRelationships) {
		return keyRelationships[r]
	}
	return fmt.Sprintf("KeyRelationship(%d)", uint8(r))
}

// EncodeScale writes the relationship as `Encryption | Verification(rel)`.
func (r KeyRelationship) EncodeScale(e *scale.Encoder) (int, error) {
	if r == KeyAgreement {
		return scale.EncodeByte(e, 0)
	}
	return scale.EncodeByteArray(e, []byte{1, byte(r)})
}

// PublicKeyScheme tags the public key bytes of a verification key leaf.
type PublicKeyScheme uint8

const (
	PublicKeyEd25519 PublicKeyScheme = iota
	PublicKeySr25519
	PublicKeyEcdsa
	PublicKeyX25519
)

type PublicKey struct {
	Scheme PublicKeyScheme
	Bytes  []byte
}

func (k *PublicKey) EncodeScale(e *scale.Encoder) (int, error) {
	// Encryption keys live under a separate outer variant.
	var prefix []byte
	switch k.Scheme {
	case PublicKeyEd25519, PublicKeySr25519, PublicKeyEcdsa:
		prefix = []byte{0, byte(k.Scheme)}
	case PublicKeyX25519:
		prefix = []byte{1, 0}
	default:
		return 0, fmt.Errorf("unknown public key scheme %d", k.Scheme)
	}
	total, err := scale.EncodeByteArray(e, prefix)
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeByteArray(e, k.Bytes)
	return total + n, err
}

type VerificationKeyLeaf struct {
	KeyID        Hash
	Relationship KeyRelationship
	PublicKey    PublicKey
	// AddedAt is the provider block the key was added at.
	AddedAt uint64
}

func (l *VerificationKeyLeaf) Kind() LeafKind { return LeafVerificationKey }

func (l *VerificationKeyLeaf) EncodeScale(e *scale.Encoder) (int, error) {
	return encodeFields(e,
		func(e *scale.Encoder) (int, error) { return scale.EncodeByte(e, byte(LeafVerificationKey)) },
		l.KeyID.EncodeScale,
		l.Relationship.EncodeScale,
		l.PublicKey.EncodeScale,
		func(e *scale.Encoder) (int, error) { return scale.EncodeUint64(e, l.AddedAt) },
	)
}

type Web3NameLeaf struct {
	Name      string
	ClaimedAt uint64
}

func (l *Web3NameLeaf) Kind() LeafKind { return LeafWeb3Name }

func (l *Web3NameLeaf) EncodeScale(e *scale.Encoder) (int, error) {
	return encodeFields(e,
		func(e *scale.Encoder) (int, error) { return scale.EncodeByte(e, byte(LeafWeb3Name)) },
		func(e *scale.Encoder) (int, error) { return scale.EncodeString(e, l.Name) },
		func(e *scale.Encoder) (int, error) { return scale.EncodeUint64(e, l.ClaimedAt) },
	)
}

// LinkedAccount is a 32 byte substrate account or a 20 byte ethereum address.
type LinkedAccount []byte

func (a LinkedAccount) EncodeScale(e *scale.Encoder) (int, error) {
	var variant byte
	switch len(a) {
	case 32:
		variant = 0
	case 20:
		variant = 1
	default:
		return 0, fmt.Errorf("invalid linked account length; expected: 32 or 20, given: %d", len(a))
	}
	total, err := scale.EncodeByte(e, variant)
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeByteArray(e, a)
	return total + n, err
}

func (a LinkedAccount) String() string {
	return HexBytes(a).String()
}

type LinkedAccountLeaf struct {
	Account LinkedAccount
}

func (l *LinkedAccountLeaf) Kind() LeafKind { return LeafLinkedAccount }

func (l *LinkedAccountLeaf) EncodeScale(e *scale.Encoder) (int, error) {
	return encodeFields(e,
		func(e *scale.Encoder) (int, error) { return scale.EncodeByte(e, byte(LeafLinkedAccount)) },
		l.Account.EncodeScale,
	)
}

// DisclosureProof is the selective-disclosure Merkle proof of a DID's
// attributes. Revealed and Blinded together rebuild Root.
type DisclosureProof struct {
	Root     Hash
	Blinded  []Hash
	Revealed []RevealedLeaf
}

// EncodeScale writes `{blinded, revealed}`. The root is implied by the
// commitment and is not part of the wire format.
func (p *DisclosureProof) EncodeScale(e *scale.Encoder) (int, error) {
	total, err := scale.EncodeCompact32(e, uint32(len(p.Blinded)))
	if err != nil {
		return total, err
	}
	for i := range p.Blinded {
		n, err := p.Blinded[i].EncodeScale(e)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err := scale.EncodeCompact32(e, uint32(len(p.Revealed)))
	total += n
	if err != nil {
		return total, err
	}
	for _, leaf := range p.Revealed {
		n, err := leaf.EncodeScale(e)
		total += n
		if err != nil {
			return total, fmt.Errorf("encode %v leaf: %w", leaf.Kind(), err)
		}
	}
	return total, nil
}

func (k LeafKind) String() string {
	switch k {
	case LeafVerificationKey:
		return "verification key"
	case LeafWeb3Name:
		return "web3name"
	case LeafLinkedAccount:
		return "linked account"
	}
	return fmt.Sprintf("LeafKind(%d)", uint8(k))
}

func encodeFields(e *scale.Encoder, fields ...func(*scale.Encoder) (int, error)) (int, error) {
	total := 0
	for _, f := range fields {
		n, err := f(e)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
