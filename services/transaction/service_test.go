package transaction

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

func newPayer(t *testing.T) *wallet.FeePayer {
	t.Helper()
	payer, err := wallet.NewFeePayerFromSeed(make([]byte, 32))
	require.NoError(t, err)
	return payer
}

func transferTx(t *testing.T, payer *wallet.FeePayer, sign bool) *message.Transaction {
	t.Helper()
	msg, err := message.Compile(message.CompileInput{
		Payer:           payer.Address(),
		Instructions:    []types.Instruction{program.SystemTransfer(payer.Address(), types.Address{7}, 10)},
		RecentBlockhash: types.Hash{1},
	})
	require.NoError(t, err)
	tx := message.NewTransaction(msg)
	if sign {
		require.NoError(t, tx.Sign(payer))
	}
	return tx
}

func fastConfig() *services.Config {
	cfg := services.DefaultConfig()
	cfg.Confirmation.Timeout = 200 * time.Millisecond
	cfg.Confirmation.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestSubmitAndWait(t *testing.T) {
	ledger := ledgertest.New(30)
	svc := NewService(ledger, fastConfig())
	ctx := context.Background()

	res, err := svc.SubmitTransaction(ctx, transferTx(t, newPayer(t), true))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Signature)
	assert.Greater(t, res.Size, 0)
	require.Len(t, ledger.Sent(), 1)

	st, err := svc.WaitForConfirmation(ctx, res.Signature)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), st.Slot)

	statuses, err := svc.GetStatuses(ctx, []string{res.Signature, "unknown"})
	require.NoError(t, err)
	assert.NotNil(t, statuses[0])
	assert.Nil(t, statuses[1])
}

func TestSubmit_RejectsUnsigned(t *testing.T) {
	ledger := ledgertest.New(1)
	svc := NewService(ledger, nil)

	_, err := svc.SubmitTransaction(context.Background(), transferTx(t, newPayer(t), false))
	assert.ErrorIs(t, err, types.ErrEncoding)
	_, err = svc.SubmitTransaction(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrEncoding)
	assert.Empty(t, ledger.Sent())
}

func TestWaitForConfirmation_Level(t *testing.T) {
	ledger := ledgertest.New(1)
	ledger.SetStatus("pending", &client.SignatureStatus{Slot: 1, ConfirmationStatus: client.CommitmentProcessed})

	svc := NewService(ledger, fastConfig())
	_, err := svc.WaitForConfirmation(context.Background(), "pending")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cfg := fastConfig()
	cfg.Confirmation.Level = string(client.CommitmentProcessed)
	st, err := NewService(ledger, cfg).WaitForConfirmation(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, client.CommitmentProcessed, st.ConfirmationStatus)
}

func TestWaitForConfirmation_FailedTransaction(t *testing.T) {
	ledger := ledgertest.New(1)
	code := program.ErrCodeTransactionHashMismatch
	rej := &types.EngineRejection{InstructionIndex: 1, Code: &code}
	ledger.SetStatus("failed", &client.SignatureStatus{Slot: 1, ConfirmationStatus: client.CommitmentConfirmed, Err: rej})

	_, err := NewService(ledger, fastConfig()).WaitForConfirmation(context.Background(), "failed")
	require.Error(t, err)
	assert.Same(t, rej, err)
	assert.True(t, program.HasEngineCode(err, code))
}
