package authorizing

import (
	"bytes"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/typereg"
)

// Payload is the tuple a subject signs to authorize a call on a consumer:
// (call, identity details, submitter, expiry block, genesis hash). Each field
// rules out one way of replaying the signature.
type Payload struct {
	Call shared.Call
	// Nonce is nil if the subject has no identity details on the consumer.
	Nonce       *uint64
	Submitter   []byte
	ExpiryBlock uint64
	Genesis     shared.Hash
}

// EncodePayload encodes p with the encoders registered under types.
func EncodePayload(reg *typereg.Registry, types config.TypeNames, p *Payload) ([]byte, error) {
	details, err := reg.Details(types.IdentityDetails)
	if err != nil {
		return nil, err
	}
	account, err := reg.Account(types.AccountID)
	if err != nil {
		return nil, err
	}
	blockNumber, err := reg.BlockNumber(types.BlockNumber)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if _, err := p.Call.EncodeScale(enc); err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	if _, err := details(enc, p.Nonce); err != nil {
		return nil, fmt.Errorf("encode identity details as %s: %w", types.IdentityDetails, err)
	}
	if _, err := account(enc, p.Submitter); err != nil {
		return nil, fmt.Errorf("encode submitter as %s: %w", types.AccountID, err)
	}
	if _, err := blockNumber(enc, p.ExpiryBlock); err != nil {
		return nil, fmt.Errorf("encode expiry block as %s: %w", types.BlockNumber, err)
	}
	if _, err := p.Genesis.EncodeScale(enc); err != nil {
		return nil, fmt.Errorf("encode genesis hash: %w", err)
	}
	return buf.Bytes(), nil
}

// TimeBoundSignature is a signature over a Payload that a verifier must
// reject once the consumer chain is past ExpiryBlock.
type TimeBoundSignature struct {
	Signature   shared.Signature
	ExpiryBlock uint64

	blockNumber typereg.BlockNumberEncoder
}

// EncodeScale writes `{signature, validUntil}` with the block number in the
// consumer's representation.
func (s *TimeBoundSignature) EncodeScale(e *scale.Encoder) (int, error) {
	if s.blockNumber == nil {
		return 0, fmt.Errorf("no block number encoder for time-bound signature")
	}
	total, err := s.Signature.EncodeScale(e)
	if err != nil {
		return total, err
	}
	n, err := s.blockNumber(e, s.ExpiryBlock)
	return total + n, err
}
