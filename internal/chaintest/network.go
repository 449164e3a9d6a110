package chaintest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/dispatch"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/storagekey"
)

const DefaultParaID = 2086

// DefaultDispatch is the dispatch-as entrypoint of every consumer in a Network.
var DefaultDispatch = dispatch.NewBuilder(config.DefaultConfig().Consumer)

// Network is a relay chain with one provider parachain and a sibling consumer
// parachain. The relay chain doubles as the consumer of the parent topology.
type Network struct {
	Relay    *Chain
	Provider *Provider
	Sibling  *Consumer
	Parent   *Consumer

	// HeadLag is how many blocks the head recorded by a new relay block trails
	// the provider tip.
	HeadLag uint64
}

func NewNetwork(paraID uint32) *Network {
	relay := NewChain()
	return &Network{
		Relay:    relay,
		Provider: newProvider(paraID),
		Sibling:  NewConsumer(NewChain(), DefaultDispatch),
		Parent:   NewConsumer(relay, DefaultDispatch),
	}
}

// Advance produces a relay block recording the provider head, then a
// provider block built on that relay block with mutate applied to its state.
// It returns the height of the new provider block.
func (n *Network) Advance(mutate func(state map[string][]byte)) uint64 {
	tip := n.Provider.Tip()
	recorded := uint64(0)
	if tip > n.HeadLag {
		recorded = tip - n.HeadLag
	}
	header, err := n.Provider.Header(context.Background(), recorded)
	if err != nil {
		panic(err)
	}
	head, err := encodeHeadData(header)
	if err != nil {
		panic(err)
	}

	n.Relay.Produce(func(state map[string][]byte) {
		state[string(storagekey.ParaHead(n.Provider.id))] = head
	})
	relayParent := n.Relay.Tip()

	n.Provider.Produce(func(state map[string][]byte) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(relayParent))
		state[string(storagekey.LastRelayChainBlockNumber.Prefix())] = b[:]
		if mutate != nil {
			mutate(state)
		}
	})
	return n.Provider.Tip()
}

// AdvanceN advances k rounds and returns the last provider height.
func (n *Network) AdvanceN(k int) uint64 {
	var height uint64
	for i := 0; i < k; i++ {
		height = n.Advance(nil)
	}
	return height
}

// FinalizeAll finalizes the tips of every chain.
func (n *Network) FinalizeAll() {
	n.Relay.Finalize(n.Relay.Tip())
	n.Provider.Finalize(n.Provider.Tip())
	n.Sibling.Finalize(n.Sibling.Tip())
}

// RegisterDID stores the DID on the provider and commits its root at each
// version in a new provider block, whose height is returned.
func (n *Network) RegisterDID(did *DID, versions ...uint16) uint64 {
	n.Provider.mu.Lock()
	n.Provider.dids[did.Subject] = did
	did.versions = append(did.versions, versions...)
	n.Provider.mu.Unlock()

	root := did.Root()
	return n.Advance(func(state map[string][]byte) {
		for _, v := range versions {
			state[string(storagekey.IdentityCommitment(did.Subject, v))] = append([]byte{}, root[:]...)
		}
	})
}

func encodeHeadData(h *shared.Header) ([]byte, error) {
	raw, err := shared.Encode(h)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := scale.EncodeByteSlice(scale.NewEncoder(&buf), raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Provider is the provider parachain with its DID registry.
type Provider struct {
	*Chain
	id uint32

	mu   sync.Mutex
	dids map[shared.Subject]*DID

	// DisclosureErr, if set, is returned by GenerateDisclosureProof.
	DisclosureErr error
}

var _ chain.Provider = (*Provider)(nil)

func newProvider(id uint32) *Provider {
	return &Provider{Chain: NewChain(), id: id, dids: make(map[shared.Subject]*DID)}
}

func (p *Provider) ParaID(context.Context) (uint32, error) {
	return p.id, nil
}

func (p *Provider) LastRelayParent(ctx context.Context, at shared.Hash) (uint64, error) {
	v, err := p.Storage(ctx, storagekey.LastRelayChainBlockNumber.Prefix(), at)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("no relay parent recorded at %v", at)
	}
	return uint64(binary.LittleEndian.Uint32(v)), nil
}

// DeleteDID marks the DID deleted without touching its commitments.
func (p *Provider) DeleteDID(subject shared.Subject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if did, ok := p.dids[subject]; ok {
		did.Deleted = true
	}
}

func (p *Provider) GenerateDisclosureProof(_ context.Context, req chain.DisclosureRequest) (*shared.DisclosureProof, error) {
	if p.DisclosureErr != nil {
		return nil, p.DisclosureErr
	}

	p.mu.Lock()
	did, ok := p.dids[req.Subject]
	p.mu.Unlock()
	if !ok {
		return nil, shared.DisclosureError{Kind: shared.DidNotFound}
	}
	if did.Deleted {
		return nil, shared.DisclosureError{Kind: shared.DidDeleted}
	}
	if !did.hasVersion(req.Version) {
		return nil, shared.DisclosureError{Kind: shared.UnsupportedVersion}
	}

	reveal := make(map[int]bool)
	for _, id := range req.KeyIDs {
		idx := did.keyIndex(id)
		if idx < 0 {
			return nil, shared.DisclosureError{Kind: shared.KeyNotFound}
		}
		reveal[idx] = true
	}
	if req.RevealName {
		if did.Web3Name == nil {
			return nil, shared.DisclosureError{Kind: shared.Web3NameNotFound}
		}
		reveal[len(did.Keys)] = true
	}
	for _, acc := range req.Accounts {
		idx := did.accountIndex(acc)
		if idx < 0 {
			return nil, shared.DisclosureError{Kind: shared.LinkedAccountNotFound}
		}
		reveal[idx] = true
	}

	proof := &shared.DisclosureProof{Root: did.Root(), Revealed: []shared.RevealedLeaf{}}
	for i, leaf := range did.leaves() {
		if reveal[i] {
			proof.Revealed = append(proof.Revealed, leaf)
			continue
		}
		if leaf != nil {
			proof.Blinded = append(proof.Blinded, LeafDigest(leaf))
		}
	}
	return proof, nil
}

// Consumer is a consumer chain accepting dispatch-as calls. Identity details
// live in its state under the DipConsumer identity entries.
type Consumer struct {
	*Chain
	Dispatch dispatch.Builder

	DetailsErr error
	GenesisErr error
}

var _ chain.Consumer = (*Consumer)(nil)

func NewConsumer(c *Chain, b dispatch.Builder) *Consumer {
	return &Consumer{Chain: c, Dispatch: b}
}

// SetNonce stores the subject's identity details in a new consumer block.
func (c *Consumer) SetNonce(subject shared.Subject, nonce uint64) {
	var buf bytes.Buffer
	if _, err := scale.EncodeCompact64(scale.NewEncoder(&buf), nonce); err != nil {
		panic(err)
	}
	c.Produce(func(state map[string][]byte) {
		state[string(storagekey.IdentityEntry(subject))] = buf.Bytes()
	})
}

// IdentityDetails reads the subject's entry at the best block.
func (c *Consumer) IdentityDetails(ctx context.Context, subject shared.Subject) (*chain.IdentityDetails, error) {
	if c.DetailsErr != nil {
		return nil, c.DetailsErr
	}
	best, err := c.BestHeight(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := c.BlockHash(ctx, best)
	if err != nil {
		return nil, err
	}
	raw, err := c.Storage(ctx, storagekey.IdentityEntry(subject), hash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	nonce, _, err := scale.DecodeCompact64(scale.NewDecoder(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode identity entry: %w", err)
	}
	return &chain.IdentityDetails{Nonce: nonce}, nil
}

func (c *Consumer) GenesisHash(ctx context.Context) (shared.Hash, error) {
	if c.GenesisErr != nil {
		return shared.Hash{}, c.GenesisErr
	}
	return c.BlockHash(ctx, 0)
}

func (c *Consumer) BuildDispatchAs(_ context.Context, subject shared.Subject, envelope []byte, call shared.Call) (*shared.SubmittableOperation, error) {
	return c.Dispatch.Build(subject, envelope, call)
}
