// Package intent 实现意图的权限合并、规范字节编码与批量执行打包。
//
// 本包是纯函数式的：给定相同输入，输出逐字节一致，不访问网络、不持有全局状态。
// 编码布局是与外部授权引擎之间冻结的接口契约，字段顺序不可调整。
package intent

import (
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// AccountReference 步骤中引用的账户（地址 + 签名者/可写标志）
//
// 权限合并前标志为调用方声明的局部值，合并后替换为全局裁决值
type AccountReference = types.AccountMeta

// OperationStep 一个原子操作步骤
type OperationStep struct {
	TargetID types.Address      // 目标程序 ID（32 字节）
	Accounts []AccountReference // 有序账户引用
	Payload  []byte             // 不透明载荷
}

// StepFromInstruction 从账本指令构造操作步骤
func StepFromInstruction(ix types.Instruction) OperationStep {
	accounts := make([]AccountReference, len(ix.Accounts))
	copy(accounts, ix.Accounts)
	payload := make([]byte, len(ix.Data))
	copy(payload, ix.Data)
	return OperationStep{
		TargetID: ix.ProgramID,
		Accounts: accounts,
		Payload:  payload,
	}
}

// Instruction 转换回账本指令
func (s OperationStep) Instruction() types.Instruction {
	return types.Instruction{
		ProgramID: s.TargetID,
		Accounts:  s.Accounts,
		Data:      s.Payload,
	}
}

// Intent 调用方声明的一组操作及 nonce/费用元数据
//
// 仅作为编码输入的瞬时值存在
type Intent struct {
	Nonce     uint64          // 必须等于引擎当前序列计数器，单次使用
	FeeAmount uint64          // 费用金额
	FeeAsset  *types.Address  // 费用资产 ID（nil 表示原生币）
	Preamble  []OperationStep // 前置步骤（如计算预算指令），先于操作步骤编码
	Steps     []OperationStep // 操作步骤（至少一个）
}

// RawAccount 调用方提供的原始账户引用（Base58 地址）
type RawAccount struct {
	Address    string `json:"address" yaml:"address"`
	IsSigner   bool   `json:"isSigner" yaml:"isSigner"`
	IsWritable bool   `json:"isWritable" yaml:"isWritable"`
}

// RawOperation 调用方提供的原始操作
type RawOperation struct {
	ProgramID string       `json:"programId" yaml:"programId"`
	Accounts  []RawAccount `json:"accounts" yaml:"accounts"`
	Data      []byte       `json:"data" yaml:"data"`
}

// ParseOperation 解析原始操作为操作步骤
//
// 地址无法解码为 32 字节时返回 EncodingError
func ParseOperation(raw RawOperation) (OperationStep, error) {
	target, err := types.ParseAddress(raw.ProgramID)
	if err != nil {
		return OperationStep{}, types.NewEncodingError("invalid program id %q: %v", raw.ProgramID, err)
	}

	accounts := make([]AccountReference, 0, len(raw.Accounts))
	for i, acc := range raw.Accounts {
		addr, err := types.ParseAddress(acc.Address)
		if err != nil {
			return OperationStep{}, types.NewEncodingError("invalid account %d address %q: %v", i, acc.Address, err)
		}
		accounts = append(accounts, types.NewAccountMeta(addr, acc.IsSigner, acc.IsWritable))
	}

	payload := make([]byte, len(raw.Data))
	copy(payload, raw.Data)

	return OperationStep{
		TargetID: target,
		Accounts: accounts,
		Payload:  payload,
	}, nil
}

// ParseOperations 批量解析原始操作
func ParseOperations(raws []RawOperation) ([]OperationStep, error) {
	steps := make([]OperationStep, 0, len(raws))
	for i, raw := range raws {
		step, err := ParseOperation(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
