package execution

import (
	"context"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/challenge"
	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// defaultOptimisticWindow 乐观验证窗口默认长度（槽位）
const defaultOptimisticWindow = 150

// validateOptimistic 签名意图并发送乐观验证交易
func (s *executionService) validateOptimistic(ctx context.Context, req *PrepareRequest, payer *wallet.FeePayer) (*OptimisticValidation, error) {
	// 1. 参数验证
	if err := validatePrepareRequest(req); err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}
	unlock := s.locks.Lock(accountKey(req.AccountID))
	defer unlock()

	// 2. 派生地址并读取链上状态
	accts, err := s.deriver.All(req.AccountID)
	if err != nil {
		return nil, err
	}
	chain, err := s.fetchChainContext(ctx, accts, nil)
	if err != nil {
		return nil, err
	}
	nonce := chain.state.Nonce
	if req.Nonce != nil {
		nonce = *req.Nonce
	}

	// 3. 编码并签名
	encoded, _, err := s.encode(accts, &intent.Intent{
		Nonce:     nonce,
		FeeAmount: req.FeeAmount,
		FeeAsset:  req.FeeAsset,
		Preamble:  s.preamble(req.Preamble),
		Steps:     req.Steps,
	})
	if err != nil {
		return nil, err
	}
	signed, err := s.signer.Sign(encoded.Bytes, challenge.ModeHashed)
	if err != nil {
		return nil, err
	}

	// 4. 固定目标哈希与窗口
	window := s.config.OptimisticWindowSlots
	if window == 0 {
		window = defaultOptimisticWindow
	}
	targetHash := encoded.Hash()
	maxSlot := chain.blockhash.Slot + window

	ixs, err := s.builder.optimisticValidateInstructions(payer.Address(), accts, authorization{
		Signed:     signed,
		DigestKind: program.DigestIntentHash,
		Fee:        req.FeeAmount,
		FeeAsset:   req.FeeAsset,
	}, targetHash, maxSlot)
	if err != nil {
		return nil, err
	}

	// 5. 发送
	sig, _, err := s.send(ctx, payer, ixs, chain.blockhash.Hash, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("optimistic validation submitted",
		"signature", sig,
		"record", accts.Optimistic.Address.String(),
		"targetHash", targetHash.String(),
		"maxSlot", maxSlot)

	return &OptimisticValidation{
		Signature:  sig,
		Record:     accts.Optimistic.Address,
		TargetHash: targetHash,
		MaxSlot:    maxSlot,
		Nonce:      nonce,
		Encoded:    encoded,
	}, nil
}

// executeOptimistic 本地预检窗口，通过后发送乐观执行交易
func (s *executionService) executeOptimistic(ctx context.Context, req *OptimisticExecuteRequest, payer *wallet.FeePayer) (*SubmitResult, error) {
	// 1. 参数验证
	if req == nil || req.Encoded == nil || len(req.Encoded.Bytes) < 8 {
		return nil, types.NewEncodingError("encoded intent is required")
	}
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}
	unlock := s.locks.Lock(accountKey(req.AccountID))
	defer unlock()

	accts, err := s.deriver.All(req.AccountID)
	if err != nil {
		return nil, err
	}

	// 2. 打包，并由执行包重算将要发送的意图哈希
	header, err := intent.ParseHeader(req.Encoded.Bytes)
	if err != nil {
		return nil, err
	}
	pkg, err := intent.PackEncoded(req.Encoded)
	if err != nil {
		return nil, err
	}
	sentHash, err := s.rehash(accts, header, req.Encoded.Preamble, pkg)
	if err != nil {
		return nil, err
	}

	// 3. 读取窗口与当前槽位，发送前预检
	window, err := s.fetchWindow(ctx, accts.Optimistic.Address)
	if err != nil {
		return nil, err
	}
	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if err := window.CheckExecutable(slot, sentHash); err != nil {
		return nil, err
	}

	// 4. 组装交易
	blockhash, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	var tables []*message.LookupTable
	if len(req.LookupTables) > 0 {
		tables = s.usableTables(ctx, req.LookupTables)
	}
	ixs := s.builder.optimisticExecuteInstructions(payer.Address(), accts, req.Encoded.Preamble, pkg)

	// 5. 发送
	sig, compressed, err := s.send(ctx, payer, ixs, blockhash.Hash, tables)
	if err != nil {
		return nil, err
	}
	s.logger.Info("optimistic execution submitted", "signature", sig, "nonce", header.Nonce, "slot", slot, "maxSlot", window.MaxSlot)
	return &SubmitResult{Signature: sig, Nonce: header.Nonce, Compressed: compressed, Attempts: 1}, nil
}

// postExecuteOptimistic 关闭乐观验证记录
func (s *executionService) postExecuteOptimistic(ctx context.Context, accountID []byte, payer *wallet.FeePayer) (*SubmitResult, error) {
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}
	unlock := s.locks.Lock(accountKey(accountID))
	defer unlock()

	accts, err := s.deriver.All(accountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.fetchWindow(ctx, accts.Optimistic.Address); err != nil {
		return nil, err
	}
	blockhash, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	ix := s.builder.programs.PostExecuteOptimistic(payer.Address(), accts.Optimistic.Address)
	sig, _, err := s.send(ctx, payer, []types.Instruction{ix}, blockhash.Hash, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("optimistic record closed", "signature", sig, "record", accts.Optimistic.Address.String())
	return &SubmitResult{Signature: sig, Attempts: 1}, nil
}

// fetchWindow 读取并解码乐观验证记录
func (s *executionService) fetchWindow(ctx context.Context, record types.Address) (*program.OptimisticValidationWindow, error) {
	info, err := s.client.GetAccountInfo(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("get optimistic record: %w", err)
	}
	if info == nil {
		return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("optimistic record %s not found", record), nil)
	}
	return program.DecodeOptimisticValidation(info.Data)
}

// send 编译、签名并发送
func (s *executionService) send(
	ctx context.Context,
	payer *wallet.FeePayer,
	ixs []types.Instruction,
	blockhash types.Hash,
	tables []*message.LookupTable,
) (string, bool, error) {
	tx, compressed, err := buildTransaction(s.logger, payer, ixs, blockhash, tables)
	if err != nil {
		return "", false, err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return "", false, err
	}
	sig, err := s.client.SendTransaction(ctx, raw)
	if err != nil {
		return "", false, err
	}
	return sig, compressed, nil
}
