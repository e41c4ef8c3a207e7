// Package merkle 实现批量意图的 Merkle 树
//
// 叶子是意图摘要，父节点为 keccak256(min(a,b) ++ max(a,b))；
// 层内节点数为奇数时，最后一个节点原样提升到上一层。
package merkle

import (
	"bytes"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// Tree Merkle 树（不可变）
type Tree struct {
	levels [][]types.Hash // levels[0] 为叶子层，最后一层只有根
}

// New 由叶子摘要构建树
func New(leaves []types.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, types.NewEncodingError("merkle tree requires at least one leaf")
	}

	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	t := &Tree{levels: [][]types.Hash{level}}
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// HashPair 有序对哈希，与参数顺序无关
func HashPair(a, b types.Hash) types.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var out types.Hash
	copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	return out
}

// Root 根摘要
func (t *Tree) Root() types.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Leaves 叶子副本
func (t *Tree) Leaves() []types.Hash {
	out := make([]types.Hash, len(t.levels[0]))
	copy(out, t.levels[0])
	return out
}

// Proof 返回叶子的兄弟节点路径（自底向上）
//
// 被提升的节点在该层没有兄弟，不产生证明元素。
func (t *Tree) Proof(leaf types.Hash) ([]types.Hash, error) {
	idx := -1
	for i, l := range t.levels[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, types.NewError(types.KindProofNotFound, fmt.Sprintf("leaf %s is not in the tree", leaf), nil)
	}
	return t.proofAt(idx), nil
}

// ProofAt 按叶子下标返回证明
func (t *Tree) ProofAt(index int) ([]types.Hash, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, types.NewError(types.KindProofNotFound, fmt.Sprintf("leaf index %d out of range", index), nil)
	}
	return t.proofAt(index), nil
}

func (t *Tree) proofAt(idx int) []types.Hash {
	proof := make([]types.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return proof
}

// Verify 校验叶子与证明能否还原出根
func Verify(root, leaf types.Hash, proof []types.Hash) bool {
	cur := leaf
	for _, p := range proof {
		cur = HashPair(cur, p)
	}
	return cur == root
}
