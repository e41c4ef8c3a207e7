package types

// AccountMeta 指令涉及的账户及其权限
type AccountMeta struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta 创建账户元信息
func NewAccountMeta(addr Address, signer, writable bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: signer, IsWritable: writable}
}

// Instruction 一条账本指令（程序 ID + 账户列表 + 指令数据）
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}
