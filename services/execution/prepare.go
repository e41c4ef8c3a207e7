package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/weisyn/smart-account-sdk-go/challenge"
	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// chainContext 一次准备所需的链上状态
type chainContext struct {
	state     *program.SmartAccountState
	blockhash *client.Blockhash
	tables    []*message.LookupTable
}

// prepare 单个意图的准备流程（调用方持有账户锁）
func (s *executionService) prepare(ctx context.Context, req *PrepareRequest, payer *wallet.FeePayer) (*Prepared, error) {
	// 1. 参数验证
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}

	// 2. 派生账户地址
	accts, err := s.deriver.All(req.AccountID)
	if err != nil {
		return nil, err
	}

	// 3. 并发读取 nonce、区块哈希与查找表
	chain, err := s.fetchChainContext(ctx, accts, req.LookupTables)
	if err != nil {
		return nil, err
	}
	nonce := chain.state.Nonce
	if req.Nonce != nil {
		nonce = *req.Nonce
	}

	// 4. 编码与打包
	encoded, pkg, err := s.encode(accts, &intent.Intent{
		Nonce:     nonce,
		FeeAmount: req.FeeAmount,
		FeeAsset:  req.FeeAsset,
		Preamble:  s.preamble(req.Preamble),
		Steps:     req.Steps,
	})
	if err != nil {
		return nil, err
	}

	// 5. 签名挑战
	signed, err := s.signer.Sign(encoded.Bytes, challenge.ModeHashed)
	if err != nil {
		return nil, err
	}

	// 6. 组装交易
	ixs, err := s.builder.executeInstructions(req.Mode, payer.Address(), accts, encoded.Preamble, authorization{
		Signed:     signed,
		DigestKind: program.DigestIntentHash,
		Fee:        req.FeeAmount,
		FeeAsset:   req.FeeAsset,
	}, pkg)
	if err != nil {
		return nil, err
	}
	tx, compressed, err := buildTransaction(s.logger, payer, ixs, chain.blockhash.Hash, chain.tables)
	if err != nil {
		return nil, err
	}

	prepared := &Prepared{
		AccountID:   append([]byte(nil), req.AccountID...),
		Accounts:    accts,
		Nonce:       nonce,
		Encoded:     encoded,
		Package:     pkg,
		Signed:      signed,
		Transaction: tx,
		Compressed:  compressed,
	}
	s.logger.Debug("intent prepared",
		"account", accts.Vault.Address.String(),
		"nonce", nonce,
		"intentHash", encoded.Hash().String(),
		"steps", len(encoded.Steps),
		"compressed", compressed)

	// 7. 模拟
	if s.config.SimulateBeforeSubmit && !req.SkipSimulation {
		if err := s.simulate(ctx, prepared); err != nil {
			return prepared, err
		}
	}
	return prepared, nil
}

// fetchChainContext 并发读取状态账户、区块哈希与查找表
func (s *executionService) fetchChainContext(ctx context.Context, accts *program.Accounts, tableAddrs []types.Address) (*chainContext, error) {
	var out chainContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := s.fetchState(gctx, accts.State.Address)
		out.state = state
		return err
	})
	g.Go(func() error {
		bh, err := s.client.GetLatestBlockhash(gctx)
		if err != nil {
			return fmt.Errorf("get latest blockhash: %w", err)
		}
		out.blockhash = bh
		return nil
	})
	if len(tableAddrs) > 0 {
		g.Go(func() error {
			out.tables = s.usableTables(gctx, tableAddrs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.checkCredential(out.state); err != nil {
		return nil, err
	}
	return &out, nil
}

// checkCredential 凭证必须是该智能账户登记的公钥
func (s *executionService) checkCredential(state *program.SmartAccountState) error {
	if pub := s.signer.PublicKey(); pub != nil && !bytes.Equal(pub, state.PublicKey[:]) {
		return types.NewError(types.KindChallengeSigning, "credential does not control this smart account", nil)
	}
	return nil
}

// fetchState 读取并解码状态账户
func (s *executionService) fetchState(ctx context.Context, state types.Address) (*program.SmartAccountState, error) {
	info, err := s.client.GetAccountInfo(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("get smart account state: %w", err)
	}
	if info == nil {
		return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("smart account state %s not found", state), nil)
	}
	if info.Owner != s.deriver.ProgramID() {
		return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("state account %s is not owned by the engine", state), nil)
	}
	return program.DecodeSmartAccountState(info.Data)
}

// usableTables 读取查找表；任何失败都降级为不压缩
func (s *executionService) usableTables(ctx context.Context, addrs []types.Address) []*message.LookupTable {
	tables, err := s.tables.Load(ctx, addrs)
	if err == nil {
		var slot uint64
		slot, err = s.client.GetSlot(ctx)
		for i, t := range tables {
			if err != nil {
				break
			}
			if !t.IsUsableAt(slot) {
				tables[i], err = s.tables.WaitActive(ctx, t.Address)
			}
		}
	}
	if err != nil {
		if !errors.Is(err, types.ErrCompression) {
			err = types.NewError(types.KindCompression, "lookup tables unavailable", err)
		}
		s.logger.Warn("sending uncompressed transaction", "error", err)
		return nil
	}
	return tables
}

// encode 编码意图并打包执行包
func (s *executionService) encode(accts *program.Accounts, in *intent.Intent) (*intent.Encoded, *intent.ExecutionPackage, error) {
	enc := intent.NewEncoder(accts.Vault.Address)
	enc.VaultWritable = !s.config.VaultReadOnly
	if s.config.MaxPayloadSize > 0 {
		enc.MaxPayloadSize = s.config.MaxPayloadSize
	}

	encoded, err := enc.Encode(in)
	if err != nil {
		return nil, nil, err
	}
	pkg, err := intent.PackEncoded(encoded)
	if err != nil {
		return nil, nil, err
	}
	return encoded, pkg, nil
}

// rehash 由执行包还原操作步骤，按头部与前置步骤重算实际发送内容的意图哈希
func (s *executionService) rehash(accts *program.Accounts, header *intent.Intent, preamble []intent.OperationStep, pkg *intent.ExecutionPackage) (types.Hash, error) {
	steps, err := pkg.Steps()
	if err != nil {
		return types.Hash{}, types.NewError(types.KindHashMismatch, "execution package does not unpack", err)
	}
	encoded, _, err := s.encode(accts, &intent.Intent{
		Nonce:     header.Nonce,
		FeeAmount: header.FeeAmount,
		FeeAsset:  header.FeeAsset,
		Preamble:  preamble,
		Steps:     steps,
	})
	if err != nil {
		return types.Hash{}, err
	}
	return encoded.Hash(), nil
}

// preamble 配置的计算预算指令位于调用方前置步骤之前
func (s *executionService) preamble(extra []intent.OperationStep) []intent.OperationStep {
	var steps []intent.OperationStep
	if s.config.ComputeUnitLimit > 0 {
		steps = append(steps, intent.StepFromInstruction(program.SetComputeUnitLimit(s.config.ComputeUnitLimit)))
	}
	if s.config.ComputeUnitPrice > 0 {
		steps = append(steps, intent.StepFromInstruction(program.SetComputeUnitPrice(s.config.ComputeUnitPrice)))
	}
	return append(steps, extra...)
}

// simulate 模拟交易；引擎拒绝原样返回
func (s *executionService) simulate(ctx context.Context, p *Prepared) error {
	raw, err := p.Transaction.Serialize()
	if err != nil {
		return err
	}
	result, err := s.client.SimulateTransaction(ctx, raw)
	if err != nil {
		return err
	}
	p.Simulation = result
	if result.Rejection != nil {
		s.logger.Debug("simulation rejected", "error", result.Rejection.Error(), "traceId", result.Rejection.TraceID)
		return result.Rejection
	}
	return nil
}

func validatePrepareRequest(req *PrepareRequest) error {
	if req == nil {
		return types.NewEncodingError("request is required")
	}
	if len(req.Steps) == 0 {
		return types.NewEncodingError("intent must contain at least one step")
	}
	if len(req.AccountID) == 0 || len(req.AccountID) > program.MaxAccountIDLength {
		return types.NewEncodingError("account id must be 1..%d bytes", program.MaxAccountIDLength)
	}
	return nil
}
