package intent

import (
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// MaxAccountsPerStep 单步账户数上限（accountCount 以 u8 编码，且包含目标程序槽位）
const MaxAccountsPerStep = 254

// DeconstructedOperation 拆解后的操作：载荷 + 账户数（1 个目标槽位 + 合并后的账户引用）
type DeconstructedOperation struct {
	Payload      []byte
	AccountCount uint8
}

// ExecutionPackage 执行包
//
// RemainingAccounts 按步骤顺序平铺 [目标程序, 账户引用...]，
// 消费方仅通过 AccountCount 的累计偏移即可还原每一步的账户窗口
type ExecutionPackage struct {
	Operations        []DeconstructedOperation
	RemainingAccounts []AccountReference
}

// StepWindow 还原出的单步账户窗口
type StepWindow struct {
	Payload  []byte
	Target   AccountReference
	Accounts []AccountReference
}

// Pack 将已合并权限的步骤打包为执行包
//
// 目标程序槽位使用 perms 中的裁决（缺失则为只读非签名者），与编码器保持一致
func Pack(steps []OperationStep, perms *PermissionSet) (*ExecutionPackage, error) {
	pkg := &ExecutionPackage{
		Operations: make([]DeconstructedOperation, 0, len(steps)),
	}

	total := 0
	for i, step := range steps {
		if len(step.Accounts) > MaxAccountsPerStep {
			return nil, types.NewEncodingError("step %d references %d accounts, maximum is %d", i, len(step.Accounts), MaxAccountsPerStep)
		}

		count := 1 + len(step.Accounts)
		pkg.Operations = append(pkg.Operations, DeconstructedOperation{
			Payload:      step.Payload,
			AccountCount: uint8(count),
		})

		target, _ := perms.Lookup(step.TargetID)
		pkg.RemainingAccounts = append(pkg.RemainingAccounts, AccountReference{
			Address:    step.TargetID,
			IsSigner:   target.IsSigner,
			IsWritable: target.IsWritable,
		})
		pkg.RemainingAccounts = append(pkg.RemainingAccounts, step.Accounts...)
		total += count
	}

	if total != len(pkg.RemainingAccounts) {
		panic(fmt.Sprintf("intent: packing invariant violated: sum(accountCount)=%d, remaining accounts=%d", total, len(pkg.RemainingAccounts)))
	}

	return pkg, nil
}

// PackEncoded 打包编码结果中的操作步骤（不含前置步骤）
func PackEncoded(enc *Encoded) (*ExecutionPackage, error) {
	return Pack(enc.Steps, enc.Permissions)
}

// TotalAccounts 所有步骤 accountCount 之和
func (p *ExecutionPackage) TotalAccounts() int {
	total := 0
	for _, op := range p.Operations {
		total += int(op.AccountCount)
	}
	return total
}

// Unpack 按累计偏移还原每一步的账户窗口
func Unpack(pkg *ExecutionPackage) ([]StepWindow, error) {
	if pkg.TotalAccounts() != len(pkg.RemainingAccounts) {
		return nil, fmt.Errorf("account count mismatch: operations declare %d, list has %d",
			pkg.TotalAccounts(), len(pkg.RemainingAccounts))
	}

	windows := make([]StepWindow, 0, len(pkg.Operations))
	offset := 0
	for i, op := range pkg.Operations {
		if op.AccountCount == 0 {
			return nil, fmt.Errorf("operation %d has zero account count", i)
		}
		end := offset + int(op.AccountCount)
		window := pkg.RemainingAccounts[offset:end]
		windows = append(windows, StepWindow{
			Payload:  op.Payload,
			Target:   window[0],
			Accounts: window[1:],
		})
		offset = end
	}
	return windows, nil
}

// Steps 将执行包还原为操作步骤（用于重算意图哈希）
func (p *ExecutionPackage) Steps() ([]OperationStep, error) {
	windows, err := Unpack(p)
	if err != nil {
		return nil, err
	}
	steps := make([]OperationStep, len(windows))
	for i, w := range windows {
		steps[i] = OperationStep{
			TargetID: w.Target.Address,
			Accounts: w.Accounts,
			Payload:  w.Payload,
		}
	}
	return steps, nil
}
