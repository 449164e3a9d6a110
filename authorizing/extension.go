package authorizing

import (
	"context"
	"fmt"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/envelope"
	"github.com/KILTprotocol/dip-sdk/shared"
)

// Extension adds a time-bound signature of the target call to the envelope.
type Extension struct {
	Authorizer *Authorizer
	Signer     chain.Signer

	ExpiryBlock *uint64
	Genesis     *shared.Hash
	Types       config.TypeNames
}

var _ envelope.Extension = (*Extension)(nil)

func (x *Extension) Name() string {
	return "time-bound-signature"
}

func (x *Extension) Generate(ctx context.Context, in envelope.ExtensionInput) (envelope.Element, error) {
	sig, err := x.Authorizer.Authorize(ctx, &Request{
		Subject:     in.Subject,
		Signer:      x.Signer,
		Call:        in.Call,
		Submitter:   in.Submitter,
		ExpiryBlock: x.ExpiryBlock,
		Genesis:     x.Genesis,
		Types:       x.Types,
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

func (x *Extension) Encode(el envelope.Element) ([]byte, error) {
	sig, ok := el.(*TimeBoundSignature)
	if !ok {
		return nil, fmt.Errorf("unexpected element %T", el)
	}
	return shared.Encode(sig)
}
