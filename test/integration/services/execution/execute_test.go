package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/services/execution"
	"github.com/weisyn/smart-account-sdk-go/test/integration"
	"github.com/weisyn/smart-account-sdk-go/types"
)

const transferAmount = 1_000_000

// TestExecution_VaultTransfer 从智能账户金库转账
//
// 需要预先创建的智能账户，且金库余额足以支付 transferAmount。
func TestExecution_VaultTransfer(t *testing.T) {
	// 1. 连接节点并准备账户
	ledger, cfg := integration.SetupTestLedger(t)
	accountID, credential := integration.TestSmartAccount(t)
	payer := integration.CreateFundedFeePayer(t, ledger)

	svc, err := execution.NewServiceWithWallet(ledger, cfg, credential, payer)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	nonce, err := svc.FetchNonce(ctx, accountID)
	require.NoError(t, err, "读取 nonce 失败")

	// 2. 准备意图：金库 -> 随机地址
	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	accounts, err := program.NewDeriver(programID, 0).All(accountID)
	require.NoError(t, err)
	recipient := integration.RandomAddress(t)
	step := intent.StepFromInstruction(program.SystemTransfer(accounts.Vault.Address, recipient, transferAmount))

	// 3. 执行并等待确认
	result, err := svc.Execute(ctx, &execution.PrepareRequest{
		AccountID: accountID,
		Steps:     []intent.OperationStep{step},
	})
	if rejection, ok := types.IsEngineRejection(err); ok {
		t.Fatalf("引擎拒绝: %s (logs=%v)", rejection.Error(), rejection.Logs)
	}
	require.NoError(t, err)
	integration.WaitForSignature(t, ledger, result.Signature)

	// 4. 验证
	assert.GreaterOrEqual(t, result.Nonce, nonce)
	integration.RequireBalanceChange(t, ledger, recipient, transferAmount, 0)

	after, err := svc.FetchNonce(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, result.Nonce+1, after)
}

// TestExecution_StaleNonceRejected 过期 nonce 被引擎拒绝且原样返回
func TestExecution_StaleNonceRejected(t *testing.T) {
	ledger, cfg := integration.SetupTestLedger(t)
	accountID, credential := integration.TestSmartAccount(t)
	payer := integration.CreateFundedFeePayer(t, ledger)

	svc, err := execution.NewServiceWithWallet(ledger, cfg, credential, payer)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	current, err := svc.FetchNonce(ctx, accountID)
	require.NoError(t, err)
	if current == 0 {
		t.Skip("账户尚未执行过意图，无法构造过期 nonce")
	}
	stale := current - 1

	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	accounts, err := program.NewDeriver(programID, 0).All(accountID)
	require.NoError(t, err)
	step := intent.StepFromInstruction(program.SystemTransfer(accounts.Vault.Address, integration.RandomAddress(t), 1))

	_, err = svc.Prepare(ctx, &execution.PrepareRequest{
		AccountID: accountID,
		Steps:     []intent.OperationStep{step},
		Nonce:     &stale,
	})
	require.Error(t, err)
	_, ok := types.IsEngineRejection(err)
	assert.True(t, ok)
	assert.True(t, program.IsInvalidNonce(err))
}
