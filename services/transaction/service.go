package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// Service 交易提交与确认跟踪服务接口
type Service interface {
	// GetStatuses 查询交易状态；未知签名对应 nil
	GetStatuses(ctx context.Context, signatures []string) ([]*client.SignatureStatus, error)

	// SubmitTransaction 发送已签名交易
	SubmitTransaction(ctx context.Context, tx *message.Transaction) (*SubmitTxResult, error)

	// WaitForConfirmation 轮询直到交易达到配置的确认级别
	// 交易落账但执行失败时返回 EngineRejection
	WaitForConfirmation(ctx context.Context, signature string) (*client.SignatureStatus, error)
}

// transactionService Transaction 服务实现
type transactionService struct {
	client client.LedgerClient
	config *services.Config
	logger client.Logger
}

// NewService 创建 Transaction 服务
func NewService(ledger client.LedgerClient, config *services.Config) Service {
	if config == nil {
		config = services.DefaultConfig()
	}
	return &transactionService{
		client: ledger,
		config: config,
		logger: config.Log(),
	}
}

// SubmitTxResult 交易提交结果
type SubmitTxResult struct {
	Signature string
	Size      int // 序列化字节数
}

// GetStatuses 查询交易状态
func (s *transactionService) GetStatuses(ctx context.Context, signatures []string) ([]*client.SignatureStatus, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	statuses, err := s.client.GetSignatureStatuses(ctx, signatures)
	if err != nil {
		return nil, fmt.Errorf("get signature statuses failed: %w", err)
	}
	return statuses, nil
}

// SubmitTransaction 提交交易
func (s *transactionService) SubmitTransaction(ctx context.Context, tx *message.Transaction) (*SubmitTxResult, error) {
	// 1. 参数验证
	if tx == nil || tx.Message == nil {
		return nil, types.NewEncodingError("transaction is required")
	}
	if missing := tx.MissingSigners(); len(missing) > 0 {
		return nil, types.NewEncodingError("transaction is missing %d signature(s), first %s", len(missing), missing[0])
	}

	// 2. 序列化（超过包大小上限时返回 TransactionTooLarge）
	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}

	// 3. 发送
	sig, err := s.client.SendTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transaction submitted", "signature", sig, "size", len(raw))
	return &SubmitTxResult{Signature: sig, Size: len(raw)}, nil
}

// WaitForConfirmation 等待交易确认
func (s *transactionService) WaitForConfirmation(ctx context.Context, signature string) (*client.SignatureStatus, error) {
	cfg := s.config.Confirmation
	level := client.Commitment(cfg.Level)
	if level == "" {
		level = client.CommitmentConfirmed
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses, err := s.client.GetSignatureStatuses(ctx, []string{signature})
		switch {
		case err != nil:
			s.logger.Debug("signature status query failed", "signature", signature, "error", err)
		case statuses[0] != nil:
			st := statuses[0]
			if st.Err != nil {
				return st, st.Err
			}
			if st.Reached(level) {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for confirmation of %s (level %s): %w", signature, level, ctx.Err())
		case <-ticker.C:
		}
	}
}
