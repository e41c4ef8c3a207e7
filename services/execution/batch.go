package execution

import (
	"context"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/merkle"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// prepareBatch 编码全部意图、构建 Merkle 树并签名根
func (s *executionService) prepareBatch(ctx context.Context, req *BatchRequest) (*Batch, error) {
	// 1. 参数验证
	if err := validateBatchRequest(req); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(accountKey(req.AccountID))
	defer unlock()

	// 2. 派生地址并读取起始 nonce
	accts, err := s.deriver.All(req.AccountID)
	if err != nil {
		return nil, err
	}
	state, err := s.fetchState(ctx, accts.State.Address)
	if err != nil {
		return nil, err
	}
	if err := s.checkCredential(state); err != nil {
		return nil, err
	}
	nonce := state.Nonce
	if req.Nonce != nil {
		nonce = *req.Nonce
	}

	// 3. 逐个编码，第 i 个意图使用 nonce+i
	members := make([]BatchMember, len(req.Intents))
	leaves := make([]types.Hash, len(req.Intents))
	for i, bi := range req.Intents {
		encoded, pkg, err := s.encode(accts, &intent.Intent{
			Nonce:     nonce + uint64(i),
			FeeAmount: bi.FeeAmount,
			FeeAsset:  bi.FeeAsset,
			Preamble:  s.preamble(bi.Preamble),
			Steps:     bi.Steps,
		})
		if err != nil {
			return nil, fmt.Errorf("intent %d: %w", i, err)
		}
		members[i] = BatchMember{
			Nonce:     nonce + uint64(i),
			FeeAmount: bi.FeeAmount,
			FeeAsset:  bi.FeeAsset,
			Encoded:   encoded,
			Package:   pkg,
		}
		leaves[i] = encoded.Hash()
	}

	// 4. 构建 Merkle 树并签名根
	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, err
	}
	signed, err := s.signer.SignDigest(tree.Root())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("batch prepared", "intents", len(members), "root", tree.Root().String(), "startNonce", nonce)
	return &Batch{
		AccountID:    append([]byte(nil), req.AccountID...),
		Accounts:     accts,
		Mode:         req.Mode,
		LookupTables: req.LookupTables,
		Members:      members,
		Tree:         tree,
		Signed:       signed,
	}, nil
}

// prepareBatchMember 以 Merkle 证明构建第 index 个成员的执行交易
func (s *executionService) prepareBatchMember(ctx context.Context, batch *Batch, index int, payer *wallet.FeePayer) (*Prepared, error) {
	// 1. 参数验证
	if batch == nil || batch.Tree == nil || batch.Signed == nil {
		return nil, types.NewEncodingError("batch is not prepared")
	}
	if index < 0 || index >= len(batch.Members) {
		return nil, types.NewEncodingError("batch member %d out of range [0,%d)", index, len(batch.Members))
	}
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}
	unlock := s.locks.Lock(accountKey(batch.AccountID))
	defer unlock()

	// 2. 本地校验证明与签名覆盖的根
	member := batch.Members[index]
	root := batch.Tree.Root()
	if batch.Signed.Digest != root {
		return nil, types.NewError(types.KindChallengeSigning, "batch signature does not cover the merkle root", nil)
	}
	if member.Encoded == nil || member.Package == nil {
		return nil, types.NewEncodingError("batch member %d is not encoded", index)
	}
	leaf := member.Encoded.Hash()
	sentHash, err := s.rehash(batch.Accounts, &intent.Intent{
		Nonce:     member.Nonce,
		FeeAmount: member.FeeAmount,
		FeeAsset:  member.FeeAsset,
	}, member.Encoded.Preamble, member.Package)
	if err != nil {
		return nil, err
	}
	if sentHash != leaf {
		return nil, types.NewError(types.KindHashMismatch,
			fmt.Sprintf("batch member %d package hashes to %s, leaf is %s", index, sentHash, leaf), nil)
	}
	proof, err := batch.Tree.Proof(leaf)
	if err != nil {
		return nil, err
	}
	if !merkle.Verify(root, leaf, proof) {
		return nil, types.NewError(types.KindProofNotFound, "merkle proof does not verify against the signed root", nil)
	}

	// 3. 读取区块哈希与查找表
	chain, err := s.fetchChainContext(ctx, batch.Accounts, batch.LookupTables)
	if err != nil {
		return nil, err
	}

	// 4. 组装交易
	ixs, err := s.builder.executeInstructions(batch.Mode, payer.Address(), batch.Accounts, member.Encoded.Preamble, authorization{
		Signed:     batch.Signed,
		DigestKind: program.DigestMerkleRoot,
		Proof:      proof,
		Fee:        member.FeeAmount,
		FeeAsset:   member.FeeAsset,
	}, member.Package)
	if err != nil {
		return nil, err
	}
	tx, compressed, err := buildTransaction(s.logger, payer, ixs, chain.blockhash.Hash, chain.tables)
	if err != nil {
		return nil, err
	}

	prepared := &Prepared{
		AccountID:   batch.AccountID,
		Accounts:    batch.Accounts,
		Nonce:       member.Nonce,
		Encoded:     member.Encoded,
		Package:     member.Package,
		Signed:      batch.Signed,
		Proof:       proof,
		Transaction: tx,
		Compressed:  compressed,
	}

	// 5. 仅当成员 nonce 即为当前 nonce 时模拟
	if s.config.SimulateBeforeSubmit && member.Nonce == chain.state.Nonce {
		if err := s.simulate(ctx, prepared); err != nil {
			return prepared, err
		}
	}
	return prepared, nil
}

func validateBatchRequest(req *BatchRequest) error {
	if req == nil || len(req.Intents) == 0 {
		return types.NewEncodingError("batch must contain at least one intent")
	}
	if len(req.AccountID) == 0 || len(req.AccountID) > program.MaxAccountIDLength {
		return types.NewEncodingError("account id must be 1..%d bytes", program.MaxAccountIDLength)
	}
	for i, bi := range req.Intents {
		if len(bi.Steps) == 0 {
			return types.NewEncodingError("batch intent %d has no steps", i)
		}
	}
	return nil
}
