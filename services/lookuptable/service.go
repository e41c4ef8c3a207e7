package lookuptable

import (
	"context"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// maxAccountsPerRead 单次 getMultipleAccounts 读取的账户上限
const maxAccountsPerRead = 100

// Service 地址查找表服务接口
//
// 查找表用于把交易中的账户地址压缩为 1 字节索引。表在创建和扩展后需要
// 等待一个槽位才能被引用，WaitActive 负责有界等待。
type Service interface {
	// Create 创建查找表；Addresses 非空时随后扩展
	// payer 参数可选：如果提供则使用，否则使用服务实例的默认 FeePayer
	Create(ctx context.Context, req *CreateRequest, payer ...*wallet.FeePayer) (*CreateResult, error)

	// Extend 向已有查找表追加地址（按块分多笔交易发送）
	Extend(ctx context.Context, req *ExtendRequest, payer ...*wallet.FeePayer) (*ExtendResult, error)

	// WaitActive 等待查找表可用；超时返回 CompressionFailure
	WaitActive(ctx context.Context, table types.Address) (*message.LookupTable, error)

	// Load 读取并解码查找表（不需要 FeePayer）
	Load(ctx context.Context, tables []types.Address) ([]*message.LookupTable, error)
}

// lookupTableService 查找表服务实现
type lookupTableService struct {
	client  client.LedgerClient
	config  *services.Config
	logger  client.Logger
	builder *txBuilder
	payer   *wallet.FeePayer // 可选：默认 FeePayer
}

// NewService 创建查找表服务（不带 FeePayer）
func NewService(ledger client.LedgerClient, config *services.Config) Service {
	if config == nil {
		config = services.DefaultConfig()
	}
	return &lookupTableService{
		client:  ledger,
		config:  config,
		logger:  config.Log(),
		builder: &txBuilder{client: ledger},
	}
}

// NewServiceWithWallet 创建带默认 FeePayer 的查找表服务
func NewServiceWithWallet(ledger client.LedgerClient, config *services.Config, payer *wallet.FeePayer) Service {
	s := NewService(ledger, config).(*lookupTableService)
	s.payer = payer
	return s
}

// getPayer 获取 FeePayer（优先使用参数，其次使用默认 FeePayer）
func (s *lookupTableService) getPayer(payers ...*wallet.FeePayer) *wallet.FeePayer {
	if len(payers) > 0 && payers[0] != nil {
		return payers[0]
	}
	return s.payer
}

// CreateRequest 创建请求
type CreateRequest struct {
	// Addresses 创建后立即写入表中的地址（可选）
	Addresses []types.Address
	// WaitActive 扩展后等待表可用
	WaitActive bool
}

// CreateResult 创建结果
type CreateResult struct {
	Table            types.Address
	Signature        string
	ExtendSignatures []string
	// Loaded 仅在 WaitActive 时返回
	Loaded *message.LookupTable
}

// ExtendRequest 扩展请求
type ExtendRequest struct {
	Table     types.Address
	Addresses []types.Address
}

// ExtendResult 扩展结果
type ExtendResult struct {
	Signatures []string
}

// Create 创建查找表（实现在 create.go）
func (s *lookupTableService) Create(ctx context.Context, req *CreateRequest, payers ...*wallet.FeePayer) (*CreateResult, error) {
	return s.create(ctx, req, payers...)
}

// Extend 扩展查找表（实现在 create.go）
func (s *lookupTableService) Extend(ctx context.Context, req *ExtendRequest, payers ...*wallet.FeePayer) (*ExtendResult, error) {
	return s.extend(ctx, req, payers...)
}

// WaitActive 等待查找表可用（实现在 activation.go）
func (s *lookupTableService) WaitActive(ctx context.Context, table types.Address) (*message.LookupTable, error) {
	return s.waitActive(ctx, table)
}

// Load 读取查找表（实现在 load.go）
func (s *lookupTableService) Load(ctx context.Context, tables []types.Address) ([]*message.LookupTable, error) {
	return s.load(ctx, tables)
}
