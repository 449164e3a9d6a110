package proving

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/anchor"
	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/commitment"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/envelope"
	"github.com/KILTprotocol/dip-sdk/shared"
)

// Topology is what differs between consumer chains: how the provider state
// is anchored and which envelope carries the proofs.
type Topology interface {
	Name() config.Topology
	ResolveAnchor(ctx context.Context, target *uint64) (*anchor.ProviderAnchor, error)
	ResolveCommitment(ctx context.Context, subject shared.Subject, a *anchor.ProviderAnchor, version uint16) (*commitment.Proof, error)
	BuildEnvelope(parts *Parts) (envelope.Envelope, error)
}

// Parts are the resolved proofs an envelope is built from.
type Parts struct {
	Anchor     *anchor.ProviderAnchor
	Commitment *commitment.Proof
	Disclosure *shared.DisclosureProof
	Extensions [][]byte
}

// TopologyFor returns the topology selected by cfg.
func TopologyFor(cfg *config.Config, relay chain.Relay, provider chain.Provider, logger *zap.Logger) (Topology, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	anchors, err := anchor.NewResolver(relay, provider,
		anchor.WithRevision(cfg.Revision),
		anchor.WithLogger(logger.Named("anchor")),
	)
	if err != nil {
		return nil, err
	}
	commitments, err := commitment.NewResolver(provider,
		commitment.WithRevision(cfg.Revision),
		commitment.WithLogger(logger.Named("commitment")),
	)
	if err != nil {
		return nil, err
	}

	s := &sibling{anchors: anchors, commitments: commitments}
	switch cfg.Topology {
	case config.TopologySibling:
		return s, nil
	case config.TopologyParent:
		return &parent{sibling: s, relay: relay}, nil
	}
	return nil, fmt.Errorf("unknown topology %q", cfg.Topology)
}

// sibling serves a consumer parachain that shares the relay chain with the
// provider.
type sibling struct {
	anchors     *anchor.Resolver
	commitments *commitment.Resolver
}

func (s *sibling) Name() config.Topology { return config.TopologySibling }

func (s *sibling) ResolveAnchor(ctx context.Context, target *uint64) (*anchor.ProviderAnchor, error) {
	return s.anchors.Resolve(ctx, target)
}

func (s *sibling) ResolveCommitment(ctx context.Context, subject shared.Subject, a *anchor.ProviderAnchor, version uint16) (*commitment.Proof, error) {
	return s.commitments.Resolve(ctx, subject, a, version)
}

func (s *sibling) BuildEnvelope(p *Parts) (envelope.Envelope, error) {
	return &envelope.SiblingV0{
		ProviderHead: headProof(p.Anchor),
		Commitment:   p.Commitment.Proof,
		Disclosure:   p.Disclosure,
		Extensions:   p.Extensions,
	}, nil
}

func headProof(a *anchor.ProviderAnchor) envelope.ProviderHeadProof {
	return envelope.ProviderHeadProof{
		RelayBlockNumber: a.RelayBlockHeight,
		Proof:            a.Proof,
	}
}

// parent serves the relay chain as consumer. It embeds the header of the
// relay block the head proof was taken at.
type parent struct {
	*sibling
	relay chain.Relay
}

func (p *parent) Name() config.Topology { return config.TopologyParent }

func (p *parent) ResolveAnchor(ctx context.Context, target *uint64) (*anchor.ProviderAnchor, error) {
	a, err := p.sibling.ResolveAnchor(ctx, target)
	if err != nil {
		return nil, err
	}
	header, err := p.relay.Header(ctx, a.RelayBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("read relay header %d: %w", a.RelayBlockHeight, err)
	}
	hash, err := header.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash relay header %d: %w", a.RelayBlockHeight, err)
	}
	if hash != a.RelayBlockHash {
		return nil, fmt.Errorf("relay header %d hashes to %v, expected %v", a.RelayBlockHeight, hash, a.RelayBlockHash)
	}
	a.RelayHeader = header
	return a, nil
}

func (p *parent) BuildEnvelope(parts *Parts) (envelope.Envelope, error) {
	if parts.Anchor.RelayHeader == nil {
		return nil, fmt.Errorf("anchor at relay block %d carries no relay header", parts.Anchor.RelayBlockHeight)
	}
	return &envelope.ParentV0{
		ProviderHead: headProof(parts.Anchor),
		Commitment:   parts.Commitment.Proof,
		Disclosure:   parts.Disclosure,
		RelayHeader:  *parts.Anchor.RelayHeader,
		Extensions:   parts.Extensions,
	}, nil
}
