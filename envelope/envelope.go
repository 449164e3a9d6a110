// Package envelope defines the version-tagged proof envelope submitted to
// the consumer chain and its wire encoding.
package envelope

import (
	"bytes"
	"fmt"
	"math"

	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// Version is the tag byte of the envelope union. A version fixes the fields
// and their order; adding a field requires a new version.
type Version uint8

const V0 Version = 0

func (v Version) String() string {
	return fmt.Sprintf("V%d", uint8(v))
}

// Envelope is implemented by *SiblingV0 and *ParentV0 only.
type Envelope interface {
	Version() Version
	envelope()
}

// ProviderHeadProof proves the relay chain's record of the provider head.
type ProviderHeadProof struct {
	RelayBlockNumber uint64
	Proof            shared.StorageProof
}

func (p *ProviderHeadProof) EncodeScale(e *scale.Encoder) (int, error) {
	if p.RelayBlockNumber > math.MaxUint32 {
		return 0, fmt.Errorf("relay block number %d overflows u32", p.RelayBlockNumber)
	}
	total, err := scale.EncodeCompact32(e, uint32(p.RelayBlockNumber))
	if err != nil {
		return total, err
	}
	n, err := p.Proof.EncodeScale(e)
	return total + n, err
}

// SiblingV0 is submitted to a parachain that shares the relay chain with
// the provider and resolves relay state roots on its own.
type SiblingV0 struct {
	ProviderHead ProviderHeadProof
	Commitment   shared.StorageProof
	Disclosure   *shared.DisclosureProof
	// Extensions holds the encoded extension elements in configuration order.
	Extensions [][]byte
}

func (*SiblingV0) Version() Version { return V0 }
func (*SiblingV0) envelope()        {}

func (b *SiblingV0) EncodeScale(e *scale.Encoder) (int, error) {
	total, err := encodeProofs(e, &b.ProviderHead, b.Commitment, b.Disclosure)
	if err != nil {
		return total, err
	}
	n, err := encodeExtensions(e, b.Extensions)
	return total + n, err
}

// ParentV0 is submitted to the relay chain. The relay chain does not keep
// the headers of its own past blocks reachable to the verifier, so the
// header the head proof was taken at follows the disclosure proof.
type ParentV0 struct {
	ProviderHead ProviderHeadProof
	Commitment   shared.StorageProof
	Disclosure   *shared.DisclosureProof
	RelayHeader  shared.Header
	Extensions   [][]byte
}

func (*ParentV0) Version() Version { return V0 }
func (*ParentV0) envelope()        {}

func (b *ParentV0) EncodeScale(e *scale.Encoder) (int, error) {
	total, err := encodeProofs(e, &b.ProviderHead, b.Commitment, b.Disclosure)
	if err != nil {
		return total, err
	}
	n, err := b.RelayHeader.EncodeScale(e)
	total += n
	if err != nil {
		return total, fmt.Errorf("relay header: %w", err)
	}
	n, err = encodeExtensions(e, b.Extensions)
	return total + n, err
}

func encodeProofs(e *scale.Encoder, head *ProviderHeadProof, commitment shared.StorageProof, disclosure *shared.DisclosureProof) (int, error) {
	total, err := head.EncodeScale(e)
	if err != nil {
		return total, fmt.Errorf("provider head proof: %w", err)
	}
	n, err := commitment.EncodeScale(e)
	total += n
	if err != nil {
		return total, fmt.Errorf("identity commitment proof: %w", err)
	}
	if disclosure == nil {
		return total, fmt.Errorf("disclosure proof is missing")
	}
	n, err = disclosure.EncodeScale(e)
	total += n
	if err != nil {
		return total, fmt.Errorf("disclosure proof: %w", err)
	}
	return total, nil
}

func encodeExtensions(e *scale.Encoder, extensions [][]byte) (int, error) {
	total := 0
	for i, ext := range extensions {
		n, err := scale.EncodeByteArray(e, ext)
		total += n
		if err != nil {
			return total, fmt.Errorf("extension %d: %w", i, err)
		}
	}
	return total, nil
}

// Encode writes the version tag followed by the body of env.
func Encode(env Envelope) ([]byte, error) {
	var body scale.Encodable
	switch env := env.(type) {
	case *SiblingV0:
		body = env
	case *ParentV0:
		body = env
	default:
		return nil, fmt.Errorf("unsupported envelope %T", env)
	}

	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if _, err := scale.EncodeByte(enc, byte(env.Version())); err != nil {
		return nil, err
	}
	if _, err := body.EncodeScale(enc); err != nil {
		return nil, fmt.Errorf("encode %v envelope: %w", env.Version(), err)
	}
	return buf.Bytes(), nil
}
