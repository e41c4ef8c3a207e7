package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/internal/ledgertest"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

func TestParseEvent_EngineInstructionsOnly(t *testing.T) {
	engine := program.DefaultEngineProgramID
	code := program.ErrCodeInvalidNonce
	note := &client.LogNotification{
		Slot:      12,
		Signature: "sig",
		Logs: []string{
			"Program ComputeBudget111111111111111111111111111111 invoke [1]",
			"Program log: Instruction: SetComputeUnitLimit",
			"Program ComputeBudget111111111111111111111111111111 success",
			"Program " + engine.String() + " invoke [1]",
			"Program log: Instruction: ValidateExecution",
			"Program " + engine.String() + " success",
			"Program " + engine.String() + " invoke [1]",
			"Program log: Instruction: Execute",
			"Program 11111111111111111111111111111111 invoke [2]",
			"Program log: Instruction: Transfer",
			"Program 11111111111111111111111111111111 success",
			"Program " + engine.String() + " failed: custom program error: 0x1770",
		},
		Err: &types.EngineRejection{InstructionIndex: 3, Code: &code},
	}

	ev := ParseEvent(engine, note)
	assert.Equal(t, []string{program.IxValidateExecution, program.IxExecute}, ev.Instructions)
	assert.False(t, ev.Succeeded())
	assert.Equal(t, "InvalidNonce", ev.Rejection.Name)
	assert.Contains(t, ev.String(), "ix=[validate_execution,execute]")
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, program.IxValidateExecutionViaSmartAccount, snakeCase("ValidateExecutionViaSmartAccount"))
	assert.Equal(t, program.IxPostExecuteOptimistic, snakeCase("PostExecuteOptimistic"))
}

func TestEventFilters(t *testing.T) {
	ok := &EngineEvent{Instructions: []string{program.IxExecute}}
	failed := &EngineEvent{Instructions: []string{program.IxValidateOptimistic}, Rejection: &types.EngineRejection{}}

	var none *EventFilters
	assert.True(t, none.match(ok))
	assert.False(t, (&EventFilters{FailedOnly: true}).match(ok))
	assert.True(t, (&EventFilters{FailedOnly: true}).match(failed))
	assert.True(t, (&EventFilters{Instructions: []string{program.IxExecute}}).match(ok))
	assert.False(t, (&EventFilters{Instructions: []string{program.IxExecute}}).match(failed))
}

func TestSubscribeEvents_FromLedger(t *testing.T) {
	ledger := ledgertest.New(50)
	ledger.Subscriptions = true
	engine := program.DefaultEngineProgramID
	ledger.LogsHook = func(tx *message.Transaction) []string {
		return []string{
			"Program " + engine.String() + " invoke [1]",
			"Program log: Instruction: ValidateOptimistic",
			"Program " + engine.String() + " success",
		}
	}

	svc, err := NewService(ledger, services.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := svc.SubscribeEvents(ctx, &EventFilters{Instructions: []string{program.IxValidateOptimistic}})
	require.NoError(t, err)

	payer, err := wallet.NewFeePayerFromSeed(make([]byte, 32))
	require.NoError(t, err)

	// 不提及引擎程序的交易不会推送
	send(t, ledger, payer, program.SystemTransfer(payer.Address(), types.Address{9}, 1))
	ix := program.SystemTransfer(payer.Address(), types.Address{9}, 2)
	ix.Accounts = append(ix.Accounts, types.NewAccountMeta(engine, false, false))
	send(t, ledger, payer, ix)

	select {
	case ev := <-events:
		require.NotNil(t, ev)
		assert.Equal(t, []string{program.IxValidateOptimistic}, ev.Instructions)
		assert.Equal(t, uint64(50), ev.Slot)
		assert.True(t, ev.Succeeded())
	case <-ctx.Done():
		t.Fatal("no engine event")
	}
}

func TestSubscribeEvents_NotSupported(t *testing.T) {
	svc, err := NewService(ledgertest.New(1), nil)
	require.NoError(t, err)
	_, err = svc.SubscribeEvents(context.Background(), nil)
	assert.Error(t, err)
}

func send(t *testing.T, ledger *ledgertest.Ledger, payer *wallet.FeePayer, ix types.Instruction) {
	t.Helper()
	ctx := context.Background()
	bh, err := ledger.GetLatestBlockhash(ctx)
	require.NoError(t, err)
	msg, err := message.Compile(message.CompileInput{Payer: payer.Address(), Instructions: []types.Instruction{ix}, RecentBlockhash: bh.Hash})
	require.NoError(t, err)
	tx := message.NewTransaction(msg)
	require.NoError(t, tx.Sign(payer))
	raw, err := tx.Serialize()
	require.NoError(t, err)
	_, err = ledger.SendTransaction(ctx, raw)
	require.NoError(t, err)
}
