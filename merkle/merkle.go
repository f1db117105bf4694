// Package merkle commits an ordered list of transaction ids to a
// single root hash and produces inclusion proofs.
//
// Nodes live in a flat arena and reference each other by index, which
// keeps proof traversal a simple parent-pointer climb.
package merkle

import (
	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
)

const noNode = -1

type node struct {
	hash   string
	left   int
	right  int
	parent int
}

// Tree is a binary hash tree over an ordered leaf list. A tree is
// built once per block and never mutated.
type Tree struct {
	nodes   []node
	root    int
	leaves  []string
	leafPos map[string]int
}

// ProofElement is one sibling hash on the path from a leaf to the
// root. IsLeft records which side the sibling sits on.
type ProofElement struct {
	Hash   string `json:"hash"`
	IsLeft bool   `json:"is_left"`
}

// Proof is an inclusion proof for a single leaf.
type Proof struct {
	LeafHash string         `json:"leaf_hash"`
	Elements []ProofElement `json:"elements"`
	RootHash string         `json:"root_hash"`
}

// NewTree builds a tree from the given leaf hashes. Levels with an odd
// node count (above one) duplicate their last node before pairing, so
// the tree stays binary. An empty leaf list yields a rootless tree.
func NewTree(leaves []string) *Tree {
	t := &Tree{
		root:    noNode,
		leaves:  append([]string(nil), leaves...),
		leafPos: make(map[string]int, len(leaves)),
	}
	if len(leaves) == 0 {
		return t
	}

	level := make([]int, 0, len(leaves))
	for _, leaf := range leaves {
		idx := t.addNode(leaf, noNode, noNode)
		if _, seen := t.leafPos[leaf]; !seen {
			t.leafPos[leaf] = idx
		}
		level = append(level, idx)
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			last := level[len(level)-1]
			dup := t.addNode(t.nodes[last].hash, noNode, noNode)
			level = append(level, dup)
		}
		next := make([]int, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i+1]
			parent := t.addNode(combine(t.nodes[left].hash, t.nodes[right].hash), left, right)
			t.nodes[left].parent = parent
			t.nodes[right].parent = parent
			next = append(next, parent)
		}
		level = next
	}

	t.root = level[0]
	return t
}

func (t *Tree) addNode(hash string, left, right int) int {
	t.nodes = append(t.nodes, node{hash: hash, left: left, right: right, parent: noNode})
	return len(t.nodes) - 1
}

// combine hashes the concatenated raw bytes of two hex hashes.
func combine(left, right string) string {
	leftBytes, err := crypto.StringToHash(left)
	if err != nil {
		leftBytes = nil
	}
	rightBytes, err := crypto.StringToHash(right)
	if err != nil {
		rightBytes = nil
	}
	return crypto.HashToString(crypto.Sha256(append(leftBytes, rightBytes...)))
}

// RootHash returns the root and whether the tree has one. A single
// leaf is its own root; an empty tree has none.
func (t *Tree) RootHash() (string, bool) {
	if t.root == noNode {
		return "", false
	}
	return t.nodes[t.root].hash, true
}

// Contains reports whether the leaf is part of the tree.
func (t *Tree) Contains(leafHash string) bool {
	_, ok := t.leafPos[leafHash]
	return ok
}

// Size is the number of leaves.
func (t *Tree) Size() int { return len(t.leaves) }

// IsEmpty reports whether the tree has no leaves.
func (t *Tree) IsEmpty() bool { return len(t.leaves) == 0 }

// GenerateProof collects the sibling hash and side at each level on
// the way from the leaf up to the root.
func (t *Tree) GenerateProof(leafHash string) (*Proof, error) {
	if t.root == noNode {
		return nil, errors.NewNotFound("cannot generate proof for empty tree")
	}
	idx, ok := t.leafPos[leafHash]
	if !ok {
		return nil, errors.NewNotFound("leaf %s not found in tree", leafHash)
	}

	proof := &Proof{
		LeafHash: leafHash,
		RootHash: t.nodes[t.root].hash,
	}
	for cur := idx; t.nodes[cur].parent != noNode; cur = t.nodes[cur].parent {
		parent := t.nodes[cur].parent
		if t.nodes[parent].left == cur {
			sibling := t.nodes[parent].right
			proof.Elements = append(proof.Elements, ProofElement{Hash: t.nodes[sibling].hash, IsLeft: false})
		} else {
			sibling := t.nodes[parent].left
			proof.Elements = append(proof.Elements, ProofElement{Hash: t.nodes[sibling].hash, IsLeft: true})
		}
	}
	return proof, nil
}

// VerifyProof folds the claimed leaf hash with each recorded sibling
// in order and succeeds iff the result equals the claimed root.
func VerifyProof(proof *Proof) bool {
	current := proof.LeafHash
	for _, elem := range proof.Elements {
		if elem.IsLeft {
			current = combine(elem.Hash, current)
		} else {
			current = combine(current, elem.Hash)
		}
	}
	return current == proof.RootHash
}
