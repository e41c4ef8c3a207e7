package program

import (
	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// DigestKind 挑战摘要类型
type DigestKind uint8

const (
	// DigestIntentHash 单个意图的 keccak256
	DigestIntentHash DigestKind = 0
	// DigestMerkleRoot 批量意图的 Merkle 根
	DigestMerkleRoot DigestKind = 1
)

// ValidationMode 验证指令变体
type ValidationMode int

const (
	// ModeDirect 直接验证
	ModeDirect ValidationMode = iota
	// ModeSmartAccount 经由智能账户配置验证
	ModeSmartAccount
)

// ValidateParams 验证指令参数
type ValidateParams struct {
	FeePayer      types.Address
	State         types.Address
	Vault         types.Address
	VaultWritable bool
	Config        types.Address // 仅 ModeSmartAccount 使用

	VerifyIxIndex     uint8
	DigestKind        DigestKind
	Fee               uint64
	FeeAsset          *types.Address
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Proof             []types.Hash
}

// ExecuteParams 执行指令参数
type ExecuteParams struct {
	FeePayer types.Address
	State    types.Address
	Vault    types.Address
	Package  *intent.ExecutionPackage
}

// Builder 引擎指令构造器
type Builder struct {
	ProgramID types.Address
}

// NewBuilder 创建构造器；零地址使用默认引擎程序 ID
func NewBuilder(programID types.Address) *Builder {
	if programID.IsZero() {
		programID = DefaultEngineProgramID
	}
	return &Builder{ProgramID: programID}
}

func (b *Builder) validateBody(w *writer, p ValidateParams) {
	w.u8(p.VerifyIxIndex).
		u8(uint8(p.DigestKind)).
		u64(p.Fee).
		optionAddress(p.FeeAsset).
		bytes(p.AuthenticatorData).
		bytes(p.ClientDataJSON).
		hashes(p.Proof)
}

// Validate 构造 validate_execution / validate_execution_via_smart_account
func (b *Builder) Validate(mode ValidationMode, p ValidateParams) types.Instruction {
	name := IxValidateExecution
	if mode == ModeSmartAccount {
		name = IxValidateExecutionViaSmartAccount
	}

	w := newWriter(Discriminator(name), 64+len(p.AuthenticatorData)+len(p.ClientDataJSON)+32*len(p.Proof))
	b.validateBody(w, p)

	accounts := []types.AccountMeta{
		types.NewAccountMeta(p.FeePayer, true, true),
		types.NewAccountMeta(p.State, false, true),
		types.NewAccountMeta(p.Vault, false, p.VaultWritable),
		types.NewAccountMeta(SysvarInstructionsID, false, false),
	}
	if mode == ModeSmartAccount {
		accounts = append(accounts, types.NewAccountMeta(p.Config, false, false))
	}

	return types.Instruction{ProgramID: b.ProgramID, Accounts: accounts, Data: w.buf}
}

func operationsData(name string, pkg *intent.ExecutionPackage) []byte {
	size := 4
	for _, op := range pkg.Operations {
		size += 5 + len(op.Payload)
	}
	w := newWriter(Discriminator(name), size)
	w.u32(uint32(len(pkg.Operations)))
	for _, op := range pkg.Operations {
		w.bytes(op.Payload).u8(op.AccountCount)
	}
	return w.buf
}

func remainingMetas(pkg *intent.ExecutionPackage) []types.AccountMeta {
	metas := make([]types.AccountMeta, len(pkg.RemainingAccounts))
	copy(metas, pkg.RemainingAccounts)
	return metas
}

// Execute 构造 execute
func (b *Builder) Execute(p ExecuteParams) types.Instruction {
	accounts := []types.AccountMeta{
		types.NewAccountMeta(p.FeePayer, true, true),
		types.NewAccountMeta(p.State, false, true),
		types.NewAccountMeta(p.Vault, false, true),
	}
	accounts = append(accounts, remainingMetas(p.Package)...)

	return types.Instruction{
		ProgramID: b.ProgramID,
		Accounts:  accounts,
		Data:      operationsData(IxExecute, p.Package),
	}
}

// ValidateOptimistic 构造 validate_optimistic：固定目标哈希与过期槽位
func (b *Builder) ValidateOptimistic(p ValidateParams, record types.Address, targetHash types.Hash, maxSlot uint64) types.Instruction {
	w := newWriter(Discriminator(IxValidateOptimistic), 104+len(p.AuthenticatorData)+len(p.ClientDataJSON)+32*len(p.Proof))
	b.validateBody(w, p)
	w.raw(targetHash[:]).u64(maxSlot)

	return types.Instruction{
		ProgramID: b.ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(p.FeePayer, true, true),
			types.NewAccountMeta(p.State, false, true),
			types.NewAccountMeta(p.Vault, false, false),
			types.NewAccountMeta(record, false, true),
			types.NewAccountMeta(SysvarInstructionsID, false, false),
			types.NewAccountMeta(SystemProgramID, false, false),
		},
		Data: w.buf,
	}
}

// ExecuteOptimistic 构造 execute_optimistic
func (b *Builder) ExecuteOptimistic(p ExecuteParams, record types.Address) types.Instruction {
	accounts := []types.AccountMeta{
		types.NewAccountMeta(p.FeePayer, true, true),
		types.NewAccountMeta(p.State, false, true),
		types.NewAccountMeta(p.Vault, false, true),
		types.NewAccountMeta(record, false, true),
		types.NewAccountMeta(SysvarClockID, false, false),
	}
	accounts = append(accounts, remainingMetas(p.Package)...)

	return types.Instruction{
		ProgramID: b.ProgramID,
		Accounts:  accounts,
		Data:      operationsData(IxExecuteOptimistic, p.Package),
	}
}

// PostExecuteOptimistic 构造 post_execute_optimistic
func (b *Builder) PostExecuteOptimistic(feePayer, record types.Address) types.Instruction {
	disc := Discriminator(IxPostExecuteOptimistic)
	return types.Instruction{
		ProgramID: b.ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(feePayer, true, true),
			types.NewAccountMeta(record, false, true),
		},
		Data: disc[:],
	}
}
