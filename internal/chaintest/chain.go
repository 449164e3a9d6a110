// Package chaintest simulates a relay chain with a provider and a consumer
// parachain in memory.
package chaintest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/shared"
)

type block struct {
	header  shared.Header
	hash    shared.Hash
	storage map[string][]byte
}

// Chain is an append-only sequence of blocks with a key-value state.
type Chain struct {
	mu        sync.RWMutex
	blocks    []*block
	finalized uint64
}

var _ chain.Reader = (*Chain)(nil)

func NewChain() *Chain {
	c := &Chain{}
	c.blocks = append(c.blocks, c.seal(nil, 0, map[string][]byte{}))
	return c
}

// Produce appends a block whose state is the parent state after mutate.
func (c *Chain) Produce(mutate func(state map[string][]byte)) shared.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.blocks[len(c.blocks)-1]
	state := make(map[string][]byte, len(parent.storage))
	for k, v := range parent.storage {
		state[k] = v
	}
	if mutate != nil {
		mutate(state)
	}
	b := c.seal(parent, uint32(len(c.blocks)), state)
	c.blocks = append(c.blocks, b)
	return b.hash
}

func (c *Chain) seal(parent *block, number uint32, state map[string][]byte) *block {
	b := &block{storage: state}
	if parent != nil {
		b.header.ParentHash = parent.hash
	}
	b.header.Number = number
	b.header.StateRoot = stateRoot(state)
	hash, err := b.header.Hash()
	if err != nil {
		panic(err)
	}
	b.hash = hash
	return b
}

// Finalize marks every block up to height as finalized.
func (c *Chain) Finalize(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height >= uint64(len(c.blocks)) {
		height = uint64(len(c.blocks)) - 1
	}
	if height > c.finalized {
		c.finalized = height
	}
}

// Tip returns the height of the newest block.
func (c *Chain) Tip() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks)) - 1
}

func (c *Chain) BlockHash(ctx context.Context, height uint64) (shared.Hash, error) {
	b, err := c.block(ctx, height)
	if err != nil {
		return shared.Hash{}, err
	}
	return b.hash, nil
}

func (c *Chain) Header(ctx context.Context, height uint64) (*shared.Header, error) {
	b, err := c.block(ctx, height)
	if err != nil {
		return nil, err
	}
	h := b.header
	return &h, nil
}

func (c *Chain) FinalizedHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalized, nil
}

func (c *Chain) BestHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Tip(), nil
}

func (c *Chain) Storage(ctx context.Context, key []byte, at shared.Hash) ([]byte, error) {
	b, err := c.blockByHash(ctx, at)
	if err != nil {
		return nil, err
	}
	return b.storage[string(key)], nil
}

// ReadProof returns the state root of the block followed by one key||value
// node per requested key.
func (c *Chain) ReadProof(ctx context.Context, keys [][]byte, at shared.Hash) (shared.StorageProof, error) {
	b, err := c.blockByHash(ctx, at)
	if err != nil {
		return nil, err
	}
	proof := shared.StorageProof{append([]byte{}, b.header.StateRoot[:]...)}
	for _, k := range keys {
		node := append(append([]byte{}, k...), b.storage[string(k)]...)
		proof = append(proof, node)
	}
	return proof, nil
}

// StateRoot returns the state root of the block at height.
func (c *Chain) StateRoot(height uint64) shared.Hash {
	b, err := c.block(context.Background(), height)
	if err != nil {
		panic(err)
	}
	return b.header.StateRoot
}

// Reads fail once ctx is done, like an abandoned RPC call.
func (c *Chain) block(ctx context.Context, height uint64) (*block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if height >= uint64(len(c.blocks)) {
		return nil, fmt.Errorf("%w: height %d", chain.ErrBlockNotFound, height)
	}
	return c.blocks[height], nil
}

func (c *Chain) blockByHash(ctx context.Context, hash shared.Hash) (*block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.blocks {
		if b.hash == hash {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: hash %v", chain.ErrBlockNotFound, hash)
}

func stateRoot(state map[string][]byte) shared.Hash {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.Write(state[k])
	}
	return shared.Blake2_256(buf.Bytes())
}
