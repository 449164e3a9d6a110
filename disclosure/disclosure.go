// Package disclosure obtains selective-disclosure proofs of a subject's
// identity attributes from the provider runtime.
package disclosure

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/shared"
)

type Request struct {
	Subject shared.Subject
	Version uint16

	// KeyRefs are the verification methods to reveal. Each may be a full
	// `did:kilt:<address>#<key id>` reference, a `#<key id>` fragment or a
	// bare hex key id.
	KeyRefs        []string
	RevealWeb3Name bool
	Accounts       []shared.LinkedAccount
}

type Builder struct {
	provider chain.Provider
	logger   *zap.Logger
}

func NewBuilder(provider chain.Provider, opts ...OptionFunc) (*Builder, error) {
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &Builder{provider: provider, logger: options.logger}, nil
}

// Build asks the provider runtime for a proof revealing the requested
// attributes. An empty request yields an existence-only proof. Typed provider
// failures are returned as shared.DisclosureError unchanged.
func (b *Builder) Build(ctx context.Context, req Request) (*shared.DisclosureProof, error) {
	keyIDs := make([]shared.Hash, 0, len(req.KeyRefs))
	for _, ref := range req.KeyRefs {
		id, err := shared.VerificationMethodID(ref)
		if err != nil {
			return nil, err
		}
		keyIDs = append(keyIDs, id)
	}

	proof, err := b.provider.GenerateDisclosureProof(ctx, chain.DisclosureRequest{
		Subject:    req.Subject,
		Version:    req.Version,
		KeyIDs:     keyIDs,
		Accounts:   req.Accounts,
		RevealName: req.RevealWeb3Name,
	})
	var typed shared.DisclosureError
	switch {
	case errors.As(err, &typed):
		return nil, typed
	case err != nil:
		return nil, fmt.Errorf("generate disclosure proof: %w", err)
	}
	if proof.Revealed == nil {
		proof.Revealed = []shared.RevealedLeaf{}
	}

	b.logger.Debug("built disclosure proof",
		zap.Stringer("subject", req.Subject),
		zap.Uint16("version", req.Version),
		zap.Int("revealed", len(proof.Revealed)),
		zap.Int("blinded", len(proof.Blinded)),
		zap.Stringer("root", proof.Root),
	)
	return proof, nil
}
