// Package execution 编排智能账户意图的完整执行流程：
// 读取 nonce、编码意图、签名挑战、打包、压缩、模拟与提交。
package execution

import (
	"context"

	"github.com/weisyn/smart-account-sdk-go/challenge"
	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/merkle"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/services/lookuptable"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// Service 意图执行服务接口
//
// 同一智能账户上的操作由服务内部的按账户锁串行化，nonce 从读取到提交期间不会被并发消费。
// payer 参数可选：如果提供则使用，否则使用服务实例的默认 FeePayer。
type Service interface {
	// FetchNonce 读取智能账户当前 nonce（不需要 FeePayer）
	FetchNonce(ctx context.Context, accountID []byte) (uint64, error)

	// Prepare 构建并签名单个意图的执行交易（不发送）
	Prepare(ctx context.Context, req *PrepareRequest, payer ...*wallet.FeePayer) (*Prepared, error)

	// Submit 发送已准备的交易
	Submit(ctx context.Context, prepared *Prepared) (*SubmitResult, error)

	// Execute 准备并提交；引擎返回 InvalidNonce 时重新读取 nonce 并重试（次数由配置限定）
	Execute(ctx context.Context, req *PrepareRequest, payer ...*wallet.FeePayer) (*SubmitResult, error)

	// PrepareBatch 对多个意图构建 Merkle 树并只签名一次根
	PrepareBatch(ctx context.Context, req *BatchRequest) (*Batch, error)

	// PrepareBatchMember 为批量中的第 index 个意图构建携带证明的执行交易
	PrepareBatchMember(ctx context.Context, batch *Batch, index int, payer ...*wallet.FeePayer) (*Prepared, error)

	// ValidateOptimistic 发送乐观验证交易，固定目标哈希与有效槽位窗口
	ValidateOptimistic(ctx context.Context, req *PrepareRequest, payer ...*wallet.FeePayer) (*OptimisticValidation, error)

	// ExecuteOptimistic 本地预检窗口后发送乐观执行交易
	ExecuteOptimistic(ctx context.Context, req *OptimisticExecuteRequest, payer ...*wallet.FeePayer) (*SubmitResult, error)

	// PostExecuteOptimistic 关闭乐观验证记录
	PostExecuteOptimistic(ctx context.Context, accountID []byte, payer ...*wallet.FeePayer) (*SubmitResult, error)
}

// executionService 意图执行服务实现
type executionService struct {
	client  client.LedgerClient
	config  *services.Config
	logger  client.Logger
	deriver *program.Deriver
	builder *txBuilder
	signer  *challenge.Signer
	tables  lookuptable.Service
	locks   *keyedMutex
	payer   *wallet.FeePayer // 可选：默认 FeePayer
}

// NewService 创建执行服务（不带 FeePayer）
//
// credential 为智能账户的通行密钥凭证；config 为 nil 时使用默认配置。
func NewService(ledger client.LedgerClient, config *services.Config, credential wallet.Credential) (Service, error) {
	if config == nil {
		config = services.DefaultConfig()
	}
	programID, err := config.ProgramID()
	if err != nil {
		return nil, err
	}
	return &executionService{
		client:  ledger,
		config:  config,
		logger:  config.Log(),
		deriver: program.NewDeriver(programID, 0),
		builder: &txBuilder{
			programs:      program.NewBuilder(programID),
			vaultWritable: !config.VaultReadOnly,
		},
		signer: challenge.NewSigner(credential),
		tables: lookuptable.NewService(ledger, config),
		locks:  newKeyedMutex(),
	}, nil
}

// NewServiceWithWallet 创建带默认 FeePayer 的执行服务
func NewServiceWithWallet(ledger client.LedgerClient, config *services.Config, credential wallet.Credential, payer *wallet.FeePayer) (Service, error) {
	svc, err := NewService(ledger, config, credential)
	if err != nil {
		return nil, err
	}
	svc.(*executionService).payer = payer
	return svc, nil
}

// getPayer 获取 FeePayer（优先使用参数，其次使用默认 FeePayer）
func (s *executionService) getPayer(payers ...*wallet.FeePayer) *wallet.FeePayer {
	if len(payers) > 0 && payers[0] != nil {
		return payers[0]
	}
	return s.payer
}

// PrepareRequest 单个意图的执行请求
type PrepareRequest struct {
	AccountID []byte                 // 智能账户 ID（1..32 字节）
	Steps     []intent.OperationStep // 操作步骤（至少一个）
	Preamble  []intent.OperationStep // 额外前置步骤（计算预算指令由配置自动添加）
	FeeAmount uint64
	FeeAsset  *types.Address // nil 表示原生币

	// Mode 验证指令变体
	Mode program.ValidationMode
	// LookupTables 用于压缩的查找表（可选，不可用时降级为未压缩交易）
	LookupTables []types.Address
	// Nonce 指定 nonce（nil 表示从链上读取；指定后不做 nonce 刷新重试）
	Nonce *uint64
	// SkipSimulation 跳过提交前模拟
	SkipSimulation bool
}

// Prepared 已签名、待提交的执行交易
type Prepared struct {
	AccountID   []byte
	Accounts    *program.Accounts
	Nonce       uint64
	Encoded     *intent.Encoded
	Package     *intent.ExecutionPackage
	Signed      *challenge.Signed
	Proof       []types.Hash // 仅批量成员
	Transaction *message.Transaction
	Compressed  bool
	Simulation  *client.SimulationResult
}

// IntentHash 意图摘要
func (p *Prepared) IntentHash() types.Hash {
	return p.Encoded.Hash()
}

// SubmitResult 提交结果
type SubmitResult struct {
	Signature  string
	Nonce      uint64
	Compressed bool
	Attempts   int
}

// BatchIntent 批量中的单个意图
type BatchIntent struct {
	Steps     []intent.OperationStep
	Preamble  []intent.OperationStep
	FeeAmount uint64
	FeeAsset  *types.Address
}

// BatchRequest 批量请求；第 i 个意图使用 nonce+i
type BatchRequest struct {
	AccountID []byte
	Intents   []BatchIntent
	Mode      program.ValidationMode
	// LookupTables 用于每个成员交易的查找表（可选）
	LookupTables []types.Address
	// Nonce 起始 nonce（nil 表示从链上读取）
	Nonce *uint64
}

// Batch 已签名的批量意图
type Batch struct {
	AccountID    []byte
	Accounts     *program.Accounts
	Mode         program.ValidationMode
	LookupTables []types.Address
	Members      []BatchMember
	Tree         *merkle.Tree
	Signed       *challenge.Signed // 对 Merkle 根的一次签名
}

// Root Merkle 根
func (b *Batch) Root() types.Hash {
	return b.Tree.Root()
}

// BatchMember 批量成员
type BatchMember struct {
	Nonce     uint64
	FeeAmount uint64
	FeeAsset  *types.Address
	Encoded   *intent.Encoded
	Package   *intent.ExecutionPackage
}

// OptimisticExecuteRequest 乐观执行请求
type OptimisticExecuteRequest struct {
	AccountID []byte
	// Encoded 与验证阶段固定的意图编码
	Encoded *intent.Encoded
	// LookupTables 用于压缩的查找表（可选）
	LookupTables []types.Address
}

// OptimisticValidation 乐观验证结果
type OptimisticValidation struct {
	Signature  string
	Record     types.Address
	TargetHash types.Hash
	MaxSlot    uint64
	Nonce      uint64
	Encoded    *intent.Encoded
}

// FetchNonce 读取 nonce（实现在 prepare.go）
func (s *executionService) FetchNonce(ctx context.Context, accountID []byte) (uint64, error) {
	accts, err := s.deriver.All(accountID)
	if err != nil {
		return 0, err
	}
	state, err := s.fetchState(ctx, accts.State.Address)
	if err != nil {
		return 0, err
	}
	return state.Nonce, nil
}

// Prepare 准备执行交易（实现在 prepare.go）
func (s *executionService) Prepare(ctx context.Context, req *PrepareRequest, payers ...*wallet.FeePayer) (*Prepared, error) {
	if err := validatePrepareRequest(req); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(accountKey(req.AccountID))
	defer unlock()
	return s.prepare(ctx, req, s.getPayer(payers...))
}

// Submit 提交交易（实现在 submit.go）
func (s *executionService) Submit(ctx context.Context, prepared *Prepared) (*SubmitResult, error) {
	if prepared == nil || prepared.Transaction == nil {
		return nil, types.NewEncodingError("prepared transaction is required")
	}
	unlock := s.locks.Lock(accountKey(prepared.AccountID))
	defer unlock()
	return s.submit(ctx, prepared)
}

// Execute 准备并提交（实现在 submit.go）
func (s *executionService) Execute(ctx context.Context, req *PrepareRequest, payers ...*wallet.FeePayer) (*SubmitResult, error) {
	return s.execute(ctx, req, s.getPayer(payers...))
}

// PrepareBatch 准备批量（实现在 batch.go）
func (s *executionService) PrepareBatch(ctx context.Context, req *BatchRequest) (*Batch, error) {
	return s.prepareBatch(ctx, req)
}

// PrepareBatchMember 准备批量成员（实现在 batch.go）
func (s *executionService) PrepareBatchMember(ctx context.Context, batch *Batch, index int, payers ...*wallet.FeePayer) (*Prepared, error) {
	return s.prepareBatchMember(ctx, batch, index, s.getPayer(payers...))
}

// ValidateOptimistic 乐观验证（实现在 optimistic.go）
func (s *executionService) ValidateOptimistic(ctx context.Context, req *PrepareRequest, payers ...*wallet.FeePayer) (*OptimisticValidation, error) {
	return s.validateOptimistic(ctx, req, s.getPayer(payers...))
}

// ExecuteOptimistic 乐观执行（实现在 optimistic.go）
func (s *executionService) ExecuteOptimistic(ctx context.Context, req *OptimisticExecuteRequest, payers ...*wallet.FeePayer) (*SubmitResult, error) {
	return s.executeOptimistic(ctx, req, s.getPayer(payers...))
}

// PostExecuteOptimistic 关闭乐观验证记录（实现在 optimistic.go）
func (s *executionService) PostExecuteOptimistic(ctx context.Context, accountID []byte, payers ...*wallet.FeePayer) (*SubmitResult, error) {
	return s.postExecuteOptimistic(ctx, accountID, s.getPayer(payers...))
}
