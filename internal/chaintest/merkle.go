package chaintest

import (
	"github.com/spacemeshos/sha256-simd"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// incrementalTree builds a binary Merkle root over a power-of-two number of
// leaves while only keeping one pending node per layer.
type incrementalTree struct {
	path []shared.Hash
	set  []bool
}

func newTree(width int) *incrementalTree {
	layers := 1
	for w := 1; w < width; w <<= 1 {
		layers++
	}
	return &incrementalTree{path: make([]shared.Hash, layers), set: make([]bool, layers)}
}

func (t *incrementalTree) addLeaf(leaf shared.Hash) {
	active := leaf
	for i := range t.path {
		if !t.set[i] {
			t.path[i] = active
			t.set[i] = true
			return
		}
		active = sum(t.path[i], active)
		t.set[i] = false
	}
}

func (t *incrementalTree) root() shared.Hash {
	return t.path[len(t.path)-1]
}

func sum(left, right shared.Hash) shared.Hash {
	return sha256.Sum256(append(left[:], right[:]...))
}

// merkleRoot pads digests with zero hashes to the next power of two.
func merkleRoot(digests []shared.Hash) shared.Hash {
	width := 1
	for width < len(digests) {
		width <<= 1
	}
	t := newTree(width)
	for i := 0; i < width; i++ {
		if i < len(digests) {
			t.addLeaf(digests[i])
		} else {
			t.addLeaf(shared.Hash{})
		}
	}
	return t.root()
}
