// Package commitment proves the subject's identity commitment at the provider
// block an anchor finalizes.
package commitment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/anchor"
	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/storagekey"
)

type Proof struct {
	// Provider block the commitment was read at.
	BlockHeight uint64
	BlockHash   shared.Hash

	Commitment shared.Hash
	Proof      shared.StorageProof
}

type Resolver struct {
	provider chain.Provider
	offset   uint64
	logger   *zap.Logger
}

func NewResolver(provider chain.Provider, opts ...OptionFunc) (*Resolver, error) {
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	offset, err := options.revision.CommitmentBlockOffset()
	if err != nil {
		return nil, err
	}
	return &Resolver{provider: provider, offset: offset, logger: options.logger}, nil
}

// Resolve reads and proves the commitment of subject at version. The block
// it reads at is the anchored provider block minus the revision offset.
// A missing commitment is never substituted by another version.
func (r *Resolver) Resolve(ctx context.Context, subject shared.Subject, a *anchor.ProviderAnchor, version uint16) (*Proof, error) {
	if a.ProviderBlockHeight < r.offset {
		return nil, fmt.Errorf("anchored provider block %d is below the commitment offset %d", a.ProviderBlockHeight, r.offset)
	}
	height := a.ProviderBlockHeight - r.offset
	hash := a.ProviderBlockHash
	if r.offset != 0 {
		var err error
		hash, err = r.provider.BlockHash(ctx, height)
		if err != nil {
			return nil, fmt.Errorf("read provider block hash %d: %w", height, err)
		}
	}

	key := storagekey.IdentityCommitment(subject, version)
	value, err := r.provider.Storage(ctx, key, hash)
	if err != nil {
		return nil, fmt.Errorf("read identity commitment at provider block %d: %w", height, err)
	}
	if value == nil {
		return nil, shared.CommitmentNotFoundError{Subject: subject, Version: version, Block: height}
	}
	if len(value) != shared.HashSize {
		return nil, fmt.Errorf("invalid identity commitment length; expected: %d, given: %d", shared.HashSize, len(value))
	}

	proof, err := r.provider.ReadProof(ctx, [][]byte{key}, hash)
	if err != nil {
		return nil, fmt.Errorf("read proof of identity commitment at provider block %d: %w", height, err)
	}

	out := &Proof{BlockHeight: height, BlockHash: hash, Proof: proof}
	copy(out.Commitment[:], value)

	r.logger.Debug("resolved identity commitment",
		zap.Stringer("subject", subject),
		zap.Uint16("version", version),
		zap.Uint64("provider_block", height),
		zap.Stringer("commitment", out.Commitment),
	)
	return out, nil
}
