// Package anchor resolves a provider block that the relay chain provably
// finalized, together with the relay storage proof of the provider head.
package anchor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/storagekey"
)

// ProviderAnchor ties a provider block to the relay block recording its head.
type ProviderAnchor struct {
	RelayBlockHeight uint64
	RelayBlockHash   shared.Hash

	ProviderBlockHeight uint64
	ProviderBlockHash   shared.Hash

	// RecordedHeight is the provider block whose header the relay block
	// records. It equals ProviderBlockHeight minus the revision offset.
	RecordedHeight uint64
	RecordedHash   shared.Hash

	// Proof is the relay read proof of the provider's `Paras.Heads` entry at
	// RelayBlockHash.
	Proof shared.StorageProof

	// RelayHeader is only filled when the consumer is the relay chain.
	RelayHeader *shared.Header
}

type Resolver struct {
	relay    chain.Relay
	provider chain.Provider
	offset   uint64
	logger   *zap.Logger
}

func NewResolver(relay chain.Relay, provider chain.Provider, opts ...OptionFunc) (*Resolver, error) {
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	offset, err := options.revision.CommitmentBlockOffset()
	if err != nil {
		return nil, err
	}
	return &Resolver{
		relay:    relay,
		provider: provider,
		offset:   offset,
		logger:   options.logger,
	}, nil
}

// Resolve anchors the provider block at target, or at the newest provider
// block with a finalized successor if target is nil. It never falls back to
// an earlier block than requested.
func (r *Resolver) Resolve(ctx context.Context, target *uint64) (*ProviderAnchor, error) {
	finalized, err := r.provider.FinalizedHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("read provider finalized height: %w", err)
	}

	height, ok := config.ResolveAnchorHeight(target, finalized)
	if !ok || height >= finalized {
		return nil, shared.AnchorNotProvableError{
			ProviderBlock:  height,
			FinalizedBlock: finalized,
			Reason:         "no finalized successor block",
		}
	}
	if height < r.offset {
		return nil, shared.AnchorNotProvableError{
			ProviderBlock:  height,
			FinalizedBlock: finalized,
			Reason:         fmt.Sprintf("block is below the recorded head offset %d", r.offset),
		}
	}

	hash, err := r.provider.BlockHash(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("read provider block hash %d: %w", height, err)
	}

	// The successor's relay parent is the first relay block that finalizes
	// the state of height.
	next, err := r.provider.BlockHash(ctx, height+1)
	if err != nil {
		return nil, fmt.Errorf("read provider block hash %d: %w", height+1, err)
	}
	relayHeight, err := r.provider.LastRelayParent(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("read relay parent of provider block %d: %w", height+1, err)
	}

	relayFinalized, err := r.relay.FinalizedHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("read relay finalized height: %w", err)
	}
	if relayHeight > relayFinalized {
		return nil, shared.AnchorNotProvableError{
			ProviderBlock:  height,
			FinalizedBlock: finalized,
			Reason:         fmt.Sprintf("relay block %d is not finalized (relay finalized: %d)", relayHeight, relayFinalized),
		}
	}
	relayHash, err := r.relay.BlockHash(ctx, relayHeight)
	if err != nil {
		return nil, fmt.Errorf("read relay block hash %d: %w", relayHeight, err)
	}

	paraID, err := r.provider.ParaID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read provider para id: %w", err)
	}
	key := storagekey.ParaHead(paraID)

	recordedHeight := height - r.offset
	recordedHash := hash
	if r.offset != 0 {
		recordedHash, err = r.provider.BlockHash(ctx, recordedHeight)
		if err != nil {
			return nil, fmt.Errorf("read provider block hash %d: %w", recordedHeight, err)
		}
	}

	head, err := r.relay.Storage(ctx, key, relayHash)
	if err != nil {
		return nil, fmt.Errorf("read head of para %d at relay block %d: %w", paraID, relayHeight, err)
	}
	if head == nil {
		return nil, shared.AnchorNotProvableError{
			ProviderBlock:  height,
			FinalizedBlock: finalized,
			Reason:         fmt.Sprintf("relay block %d records no head for para %d", relayHeight, paraID),
		}
	}
	headHash, err := headDataHash(head)
	if err != nil {
		return nil, fmt.Errorf("decode head of para %d at relay block %d: %w", paraID, relayHeight, err)
	}
	if headHash != recordedHash {
		return nil, shared.AnchorNotProvableError{
			ProviderBlock:  height,
			FinalizedBlock: finalized,
			Reason: fmt.Sprintf("relay block %d records head %v, expected block %d (%v)",
				relayHeight, headHash, recordedHeight, recordedHash),
		}
	}

	proof, err := r.relay.ReadProof(ctx, [][]byte{key}, relayHash)
	if err != nil {
		return nil, fmt.Errorf("read proof of para %d head at relay block %d: %w", paraID, relayHeight, err)
	}

	r.logger.Debug("resolved provider anchor",
		zap.Uint64("provider_block", height),
		zap.Stringer("provider_hash", hash),
		zap.Uint64("relay_block", relayHeight),
		zap.Stringer("relay_hash", relayHash),
		zap.Int("proof_nodes", len(proof)),
	)

	return &ProviderAnchor{
		RelayBlockHeight:    relayHeight,
		RelayBlockHash:      relayHash,
		ProviderBlockHeight: height,
		ProviderBlockHash:   hash,
		RecordedHeight:      recordedHeight,
		RecordedHash:        recordedHash,
		Proof:               proof,
	}, nil
}

// headDataHash decodes the `HeadData(Vec<u8>)` storage value and hashes the
// header it wraps.
func headDataHash(value []byte) (shared.Hash, error) {
	header, _, err := scale.DecodeByteSlice(scale.NewDecoder(bytes.NewReader(value)))
	if err != nil {
		return shared.Hash{}, err
	}
	return shared.Blake2_256(header), nil
}
