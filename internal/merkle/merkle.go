// Package merkle builds the binary hash tree that commits a block header to
// its transactions.
package merkle

import (
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

// Node is a Merkle tree node. A leaf carries its digest; an internal node
// owns its children and computes its digest on demand.
type Node struct {
	Left  *Node
	Right *Node

	hash     [32]byte
	computed bool
}

// NewLeaf returns a leaf holding digest verbatim.
func NewLeaf(digest [32]byte) *Node {
	return &Node{hash: digest, computed: true}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Hash returns the node digest. An internal node with only a left child
// hashes that child against itself.
func (n *Node) Hash() [32]byte {
	if n.computed {
		return n.hash
	}
	left := n.Left.Hash()
	right := left
	if n.Right != nil {
		right = n.Right.Hash()
	}
	n.hash = hashPair(left, right)
	n.computed = true
	return n.hash
}

func hashPair(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return crypto.DoubleHashBytes(buf[:])
}

// Build constructs a tree over leaves. The list is padded to a power of two
// by repeating its last element and split in halves recursively. The
// caller's slice is not modified.
func Build(leaves [][32]byte) (*Node, error) {
	if len(leaves) == 0 {
		return nil, errs.Invalid("leaves", "empty leaf list")
	}

	size := 1
	for size < len(leaves) {
		size <<= 1
	}
	padded := make([][32]byte, size)
	copy(padded, leaves)
	for i := len(leaves); i < size; i++ {
		padded[i] = leaves[len(leaves)-1]
	}

	return build(padded), nil
}

func build(leaves [][32]byte) *Node {
	if len(leaves) == 1 {
		return NewLeaf(leaves[0])
	}
	half := len(leaves) / 2
	return &Node{Left: build(leaves[:half]), Right: build(leaves[half:])}
}

// Root is shorthand for Build(leaves) followed by Hash.
func Root(leaves [][32]byte) ([32]byte, error) {
	n, err := Build(leaves)
	if err != nil {
		return [32]byte{}, err
	}
	return n.Hash(), nil
}
