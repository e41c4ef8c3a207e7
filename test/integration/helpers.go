package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/services/transaction"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// WaitForSignature 等待交易达到 confirmed，失败时终止测试
func WaitForSignature(t *testing.T, ledger client.LedgerClient, sig string) *client.SignatureStatus {
	t.Helper()
	cfg := services.DefaultConfig()
	cfg.Confirmation.Timeout = TransactionConfirmTimeout
	cfg.Confirmation.PollInterval = TransactionConfirmInterval

	st, err := transaction.NewService(ledger, cfg).WaitForConfirmation(context.Background(), sig)
	require.NoError(t, err, "等待交易确认失败: %s", sig)
	return st
}

// RequireBalanceChange 校验余额在容差范围内
func RequireBalanceChange(t *testing.T, ledger client.LedgerClient, addr types.Address, expected, tolerance uint64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	actual, err := ledger.GetBalance(ctx, addr)
	require.NoError(t, err, "查询余额失败")

	diff := actual - expected
	if expected > actual {
		diff = expected - actual
	}
	require.LessOrEqual(t, diff, tolerance, "余额差异超出容差范围: 预期=%d, 实际=%d", expected, actual)
}
