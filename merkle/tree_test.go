package merkle

import (
	"bytes"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/types"
)

func leaf(s string) types.Hash {
	var h types.Hash
	copy(h[:], ethcrypto.Keccak256([]byte(s)))
	return h
}

func TestHashPair_Commutative(t *testing.T) {
	a, b := leaf("a"), leaf("b")
	assert.Equal(t, HashPair(a, b), HashPair(b, a))

	lo, hi := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		lo, hi = b, a
	}
	var want types.Hash
	copy(want[:], ethcrypto.Keccak256(lo[:], hi[:]))
	assert.Equal(t, want, HashPair(a, b))
}

func TestTree_AllLeavesVerify(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := make([]types.Hash, n)
		for i := range leaves {
			leaves[i] = leaf(string(rune('a' + i)))
		}

		tree, err := New(leaves)
		require.NoError(t, err)

		for i, l := range leaves {
			proof, err := tree.Proof(l)
			require.NoError(t, err)
			assert.True(t, Verify(tree.Root(), l, proof), "n=%d leaf=%d", n, i)
		}
	}
}

func TestTree_SingleLeafIsRoot(t *testing.T) {
	l := leaf("only")
	tree, err := New([]types.Hash{l})
	require.NoError(t, err)
	assert.Equal(t, l, tree.Root())

	proof, err := tree.Proof(l)
	require.NoError(t, err)
	assert.Empty(t, proof)
}

func TestTree_OddNodePromoted(t *testing.T) {
	a, b, c := leaf("a"), leaf("b"), leaf("c")
	tree, err := New([]types.Hash{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, HashPair(HashPair(a, b), c), tree.Root())

	proof, err := tree.Proof(c)
	require.NoError(t, err)
	assert.Equal(t, []types.Hash{HashPair(a, b)}, proof)
}

func TestTree_SubstitutionRejected(t *testing.T) {
	a, b := leaf("intent-A"), leaf("intent-B")
	tree, err := New([]types.Hash{a, b})
	require.NoError(t, err)

	proofA, err := tree.Proof(a)
	require.NoError(t, err)

	// 以 A 的证明提交 B 以外的意图必须失败
	assert.False(t, Verify(tree.Root(), leaf("intent-C"), proofA))
	assert.False(t, Verify(leaf("other-root"), a, proofA))
}

func TestTree_ProofNotFound(t *testing.T) {
	tree, err := New([]types.Hash{leaf("a"), leaf("b")})
	require.NoError(t, err)

	_, err = tree.Proof(leaf("missing"))
	assert.ErrorIs(t, err, types.ErrProofNotFound)

	_, err = tree.ProofAt(5)
	assert.ErrorIs(t, err, types.ErrProofNotFound)
}

func TestNew_Empty(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, types.ErrEncoding)
}

func TestTree_LeavesCopy(t *testing.T) {
	in := []types.Hash{leaf("a"), leaf("b")}
	tree, err := New(in)
	require.NoError(t, err)

	out := tree.Leaves()
	out[0] = leaf("z")
	assert.Equal(t, in, tree.Leaves())
}
