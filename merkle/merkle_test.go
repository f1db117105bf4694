package merkle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
)

func makeLeaves(n int) []string {
	leaves := make([]string, n)
	for i := 0; i < n; i++ {
		leaves[i] = crypto.HashToString(crypto.Sha256([]byte(fmt.Sprintf("tx%d", i))))
	}
	return leaves
}

func TestEmptyTree(t *testing.T) {
	tree := NewTree(nil)
	assert.True(t, tree.IsEmpty())
	_, ok := tree.RootHash()
	assert.False(t, ok)

	_, err := tree.GenerateProof("deadbeef")
	assert.Error(t, err)
}

func TestSingleLeafIsRoot(t *testing.T) {
	leaves := makeLeaves(1)
	tree := NewTree(leaves)

	root, ok := tree.RootHash()
	require.True(t, ok)
	assert.Equal(t, leaves[0], root)

	proof, err := tree.GenerateProof(leaves[0])
	require.NoError(t, err)
	assert.Empty(t, proof.Elements)
	assert.True(t, VerifyProof(proof))
}

func TestProofRoundTripAllSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7, 16} {
		leaves := makeLeaves(n)
		tree := NewTree(leaves)
		require.Equal(t, n, tree.Size())

		for _, leaf := range leaves {
			proof, err := tree.GenerateProof(leaf)
			require.NoError(t, err, "n=%d leaf=%s", n, leaf)
			assert.True(t, VerifyProof(proof), "n=%d leaf=%s", n, leaf)
		}
	}
}

func TestProofFailsForAbsentLeaf(t *testing.T) {
	tree := NewTree(makeLeaves(4))
	absent := crypto.HashToString(crypto.Sha256([]byte("not in tree")))

	_, err := tree.GenerateProof(absent)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestTamperedProofFailsVerification(t *testing.T) {
	leaves := makeLeaves(7)
	tree := NewTree(leaves)

	proof, err := tree.GenerateProof(leaves[3])
	require.NoError(t, err)
	require.NotEmpty(t, proof.Elements)

	proof.Elements[0].Hash = crypto.HashToString(crypto.Sha256([]byte("tampered")))
	assert.False(t, VerifyProof(proof))
}

func TestWrongSideFailsVerification(t *testing.T) {
	leaves := makeLeaves(4)
	tree := NewTree(leaves)

	proof, err := tree.GenerateProof(leaves[0])
	require.NoError(t, err)
	proof.Elements[0].IsLeft = !proof.Elements[0].IsLeft
	assert.False(t, VerifyProof(proof))
}

func TestDeterministicRoot(t *testing.T) {
	leaves := makeLeaves(5)
	root1, ok1 := NewTree(leaves).RootHash()
	root2, ok2 := NewTree(leaves).RootHash()
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, root1, root2)
}

func TestOddLevelDuplicatesLast(t *testing.T) {
	// With three leaves the last one is paired against its own copy,
	// so its sibling hash equals the leaf itself.
	leaves := makeLeaves(3)
	tree := NewTree(leaves)

	proof, err := tree.GenerateProof(leaves[2])
	require.NoError(t, err)
	require.Len(t, proof.Elements, 2)
	assert.Equal(t, leaves[2], proof.Elements[0].Hash)
	assert.True(t, VerifyProof(proof))
}

func TestContains(t *testing.T) {
	leaves := makeLeaves(3)
	tree := NewTree(leaves)

	assert.True(t, tree.Contains(leaves[1]))
	assert.False(t, tree.Contains(crypto.HashToString(crypto.Sha256([]byte("other")))))
}
