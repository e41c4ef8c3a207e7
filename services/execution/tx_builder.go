package execution

import (
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/challenge"
	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// txBuilder 组装引擎指令与交易
type txBuilder struct {
	programs      *program.Builder
	vaultWritable bool
}

// authorization 验证指令携带的授权材料
type authorization struct {
	Signed     *challenge.Signed
	DigestKind program.DigestKind
	Proof      []types.Hash
	Fee        uint64
	FeeAsset   *types.Address
}

// verifyInstruction 构造 secp256r1 预编译验证指令
func verifyInstruction(signed *challenge.Signed) (types.Instruction, error) {
	ix, err := program.Secp256r1Verify(signed.PublicKey, signed.Signature, signed.Message)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("build secp256r1 verify: %w", err)
	}
	return ix, nil
}

func (b *txBuilder) validateParams(payer types.Address, accts *program.Accounts, verifyIndex uint8, auth authorization) program.ValidateParams {
	return program.ValidateParams{
		FeePayer:          payer,
		State:             accts.State.Address,
		Vault:             accts.Vault.Address,
		VaultWritable:     b.vaultWritable,
		Config:            accts.Config.Address,
		VerifyIxIndex:     verifyIndex,
		DigestKind:        auth.DigestKind,
		Fee:               auth.Fee,
		FeeAsset:          auth.FeeAsset,
		AuthenticatorData: auth.Signed.AuthenticatorData,
		ClientDataJSON:    auth.Signed.ClientDataJSON,
		Proof:             auth.Proof,
	}
}

// executeInstructions 前置步骤 ++ secp256r1 验证 ++ 验证 ++ 执行
func (b *txBuilder) executeInstructions(
	mode program.ValidationMode,
	payer types.Address,
	accts *program.Accounts,
	preamble []intent.OperationStep,
	auth authorization,
	pkg *intent.ExecutionPackage,
) ([]types.Instruction, error) {
	ixs := make([]types.Instruction, 0, len(preamble)+3)
	for _, step := range preamble {
		ixs = append(ixs, step.Instruction())
	}

	verify, err := verifyInstruction(auth.Signed)
	if err != nil {
		return nil, err
	}
	verifyIndex := uint8(len(ixs))
	ixs = append(ixs, verify)

	ixs = append(ixs,
		b.programs.Validate(mode, b.validateParams(payer, accts, verifyIndex, auth)),
		b.programs.Execute(program.ExecuteParams{
			FeePayer: payer,
			State:    accts.State.Address,
			Vault:    accts.Vault.Address,
			Package:  pkg,
		}),
	)
	return ixs, nil
}

// optimisticValidateInstructions secp256r1 验证 ++ 乐观验证
func (b *txBuilder) optimisticValidateInstructions(
	payer types.Address,
	accts *program.Accounts,
	auth authorization,
	targetHash types.Hash,
	maxSlot uint64,
) ([]types.Instruction, error) {
	verify, err := verifyInstruction(auth.Signed)
	if err != nil {
		return nil, err
	}
	params := b.validateParams(payer, accts, 0, auth)
	return []types.Instruction{
		verify,
		b.programs.ValidateOptimistic(params, accts.Optimistic.Address, targetHash, maxSlot),
	}, nil
}

// optimisticExecuteInstructions 前置步骤 ++ 乐观执行
func (b *txBuilder) optimisticExecuteInstructions(
	payer types.Address,
	accts *program.Accounts,
	preamble []intent.OperationStep,
	pkg *intent.ExecutionPackage,
) []types.Instruction {
	ixs := make([]types.Instruction, 0, len(preamble)+1)
	for _, step := range preamble {
		ixs = append(ixs, step.Instruction())
	}
	return append(ixs, b.programs.ExecuteOptimistic(program.ExecuteParams{
		FeePayer: payer,
		State:    accts.State.Address,
		Vault:    accts.Vault.Address,
		Package:  pkg,
	}, accts.Optimistic.Address))
}

// buildTransaction 编译并由 FeePayer 签名；压缩失败时降级为未压缩交易
func buildTransaction(
	logger client.Logger,
	payer *wallet.FeePayer,
	ixs []types.Instruction,
	blockhash types.Hash,
	tables []*message.LookupTable,
) (*message.Transaction, bool, error) {
	compile := func(tables []*message.LookupTable) (*message.Transaction, error) {
		msg, err := message.Compile(message.CompileInput{
			Payer:           payer.Address(),
			Instructions:    ixs,
			RecentBlockhash: blockhash,
			Tables:          tables,
		})
		if err != nil {
			return nil, err
		}
		tx := message.NewTransaction(msg)
		if err := tx.Sign(payer); err != nil {
			return nil, err
		}
		if _, err := tx.Serialize(); err != nil {
			return nil, err
		}
		return tx, nil
	}

	if len(tables) > 0 {
		tx, err := compile(tables)
		if err == nil {
			return tx, len(tx.Message.AddressTableLookups) > 0, nil
		}
		logger.Warn("compressed transaction failed, falling back to uncompressed",
			"error", types.NewError(types.KindCompression, "compile with lookup tables", err))
	}

	tx, err := compile(nil)
	if err != nil {
		return nil, false, err
	}
	return tx, false, nil
}
