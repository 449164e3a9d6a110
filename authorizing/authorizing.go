// Package authorizing produces time-bound signatures authorizing a call on a
// consumer chain on behalf of a subject.
package authorizing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/typereg"
)

var ErrExpiryInPast = errors.New("expiry block is in the past")

type Request struct {
	Subject   shared.Subject
	Signer    chain.Signer
	Call      shared.Call
	Submitter []byte

	// Optional overrides. Unset fields are resolved against the consumer.
	ExpiryBlock *uint64
	Genesis     *shared.Hash
	Types       config.TypeNames
}

type Authorizer struct {
	consumer     chain.Consumer
	registry     *typereg.Registry
	types        config.TypeNames
	expiryOffset uint64
	logger       *zap.Logger
}

func NewAuthorizer(consumer chain.Consumer, opts ...OptionFunc) (*Authorizer, error) {
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &Authorizer{
		consumer:     consumer,
		registry:     options.registry,
		types:        options.types,
		expiryOffset: options.expiryOffset,
		logger:       options.logger,
	}, nil
}

// Payload resolves every field of the payload the subject signs for req.
func (a *Authorizer) Payload(ctx context.Context, req *Request) (*Payload, error) {
	current, err := a.consumer.BestHeight(ctx)
	if err != nil {
		return nil, shared.ConsumerStateReadError{Query: "best block height", Err: err}
	}
	expiry := config.ResolveExpiryBlock(req.ExpiryBlock, current, a.expiryOffset)
	if expiry < current {
		return nil, fmt.Errorf("%w: expiry block %d, consumer height %d", ErrExpiryInPast, expiry, current)
	}

	genesis, err := config.ResolveGenesisHash(ctx, req.Genesis, a.consumer.GenesisHash)
	if err != nil {
		return nil, shared.ConsumerStateReadError{Query: "genesis hash", Err: err}
	}

	details, err := a.consumer.IdentityDetails(ctx, req.Subject)
	if err != nil {
		return nil, shared.ConsumerStateReadError{Query: "identity details", Err: err}
	}
	var nonce *uint64
	if details != nil {
		n := details.Nonce
		nonce = &n
	}

	return &Payload{
		Call:        req.Call,
		Nonce:       nonce,
		Submitter:   req.Submitter,
		ExpiryBlock: expiry,
		Genesis:     genesis,
	}, nil
}

// Authorize signs the payload of req with req.Signer. The signer is invoked
// exactly once and its failure is returned as shared.SigningError.
func (a *Authorizer) Authorize(ctx context.Context, req *Request) (*TimeBoundSignature, error) {
	if req.Signer == nil {
		return nil, errors.New("`Signer` is required")
	}
	payload, err := a.Payload(ctx, req)
	if err != nil {
		return nil, err
	}

	types := config.ResolveTypeNames(a.types, req.Types)
	encoded, err := EncodePayload(a.registry, types, payload)
	if err != nil {
		return nil, fmt.Errorf("encode signature payload: %w", err)
	}
	blockNumber, err := a.registry.BlockNumber(types.BlockNumber)
	if err != nil {
		return nil, err
	}

	relationship := req.Signer.Relationship()
	sig, err := req.Signer.Sign(ctx, encoded)
	if err != nil {
		return nil, shared.SigningError{Relationship: relationship.String(), Err: err}
	}
	if size := sig.KeyType.SignatureSize(); size == 0 || len(sig.Bytes) != size {
		return nil, shared.SigningError{
			Relationship: relationship.String(),
			Err:          fmt.Errorf("invalid `%v` signature length; expected: %d, given: %d", sig.KeyType, size, len(sig.Bytes)),
		}
	}

	a.logger.Debug("authorized call",
		zap.Stringer("subject", req.Subject),
		zap.Stringer("call", req.Call),
		zap.Stringer("relationship", relationship),
		zap.Stringer("key_type", sig.KeyType),
		zap.Uint64("expiry_block", payload.ExpiryBlock),
		zap.Stringer("genesis", payload.Genesis),
		zap.Bool("first_use", payload.Nonce == nil),
	)
	return &TimeBoundSignature{Signature: sig, ExpiryBlock: payload.ExpiryBlock, blockNumber: blockNumber}, nil
}
