package execution

import (
	"context"

	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// submit 发送交易（调用方持有账户锁）；引擎拒绝不做改写
func (s *executionService) submit(ctx context.Context, p *Prepared) (*SubmitResult, error) {
	raw, err := p.Transaction.Serialize()
	if err != nil {
		return nil, err
	}
	sig, err := s.client.SendTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("intent submitted",
		"signature", sig,
		"nonce", p.Nonce,
		"intentHash", p.Encoded.Hash().String(),
		"compressed", p.Compressed)
	return &SubmitResult{Signature: sig, Nonce: p.Nonce, Compressed: p.Compressed, Attempts: 1}, nil
}

// execute 在账户锁内完成准备与提交；InvalidNonce 时刷新 nonce 重试
func (s *executionService) execute(ctx context.Context, req *PrepareRequest, payer *wallet.FeePayer) (*SubmitResult, error) {
	// 1. 参数验证
	if err := validatePrepareRequest(req); err != nil {
		return nil, err
	}
	retries := s.config.NonceRetries
	if req.Nonce != nil {
		retries = 0
	}

	// 2. 串行化同一账户
	unlock := s.locks.Lock(accountKey(req.AccountID))
	defer unlock()

	// 3. 准备并提交
	for attempt := 1; ; attempt++ {
		result, err := s.prepareAndSubmit(ctx, req, payer)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}
		if !program.IsInvalidNonce(err) || attempt > retries {
			return nil, err
		}
		s.logger.Warn("engine rejected nonce, refreshing", "attempt", attempt, "error", err)
	}
}

func (s *executionService) prepareAndSubmit(ctx context.Context, req *PrepareRequest, payer *wallet.FeePayer) (*SubmitResult, error) {
	prepared, err := s.prepare(ctx, req, payer)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, prepared)
}
