// Package chain declares the endpoints a proof composition talks to. Transport
// and connection management live behind these interfaces.
package chain

import (
	"context"
	"errors"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// ErrBlockNotFound is returned by readers for heights above their tip.
var ErrBlockNotFound = errors.New("block not found")

// Reader is the read surface shared by relay, provider and consumer chains.
type Reader interface {
	BlockHash(ctx context.Context, height uint64) (shared.Hash, error)
	Header(ctx context.Context, height uint64) (*shared.Header, error)
	FinalizedHeight(ctx context.Context) (uint64, error)
	// Storage returns the raw value at key, or nil if there is none.
	Storage(ctx context.Context, key []byte, at shared.Hash) ([]byte, error)
	ReadProof(ctx context.Context, keys [][]byte, at shared.Hash) (shared.StorageProof, error)
}

type Relay interface {
	Reader
}

// DisclosureRequest is the input of the provider's proof generation entrypoint.
type DisclosureRequest struct {
	Subject    shared.Subject
	Version    uint16
	KeyIDs     []shared.Hash
	Accounts   []shared.LinkedAccount
	RevealName bool
}

type Provider interface {
	Reader
	ParaID(ctx context.Context) (uint32, error)
	// LastRelayParent returns the relay block height the provider block at
	// hash was built on.
	LastRelayParent(ctx context.Context, at shared.Hash) (uint64, error)
	// GenerateDisclosureProof runs the provider runtime's proof generation.
	// Typed failures are returned as shared.DisclosureError.
	GenerateDisclosureProof(ctx context.Context, req DisclosureRequest) (*shared.DisclosureProof, error)
}

// IdentityDetails is the consumer's replay-protection record of a subject.
type IdentityDetails struct {
	Nonce uint64
}

type Consumer interface {
	Reader
	BestHeight(ctx context.Context) (uint64, error)
	// IdentityDetails returns nil if the subject never acted on the consumer.
	IdentityDetails(ctx context.Context, subject shared.Subject) (*IdentityDetails, error)
	GenesisHash(ctx context.Context) (shared.Hash, error)
	BuildDispatchAs(ctx context.Context, subject shared.Subject, envelope []byte, call shared.Call) (*shared.SubmittableOperation, error)
}

// Signer is a signing capability bound to one verification relationship of
// the subject.
type Signer interface {
	Relationship() shared.KeyRelationship
	Sign(ctx context.Context, payload []byte) (shared.Signature, error)
}
