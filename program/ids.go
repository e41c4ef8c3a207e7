// Package program 描述智能账户引擎的冻结链上契约
//
// 包含程序 ID、派生地址种子、指令与账户判别符、指令构造器以及账户数据解码。
package program

import "github.com/weisyn/smart-account-sdk-go/types"

// LayoutVersion 契约版本
const LayoutVersion = 1

// 已知程序与系统变量地址
var (
	DefaultEngineProgramID = types.MustParseAddress("61D8BY3u3ZkrSeBTXKSsBxmn7kcjpZW8KbVLges7kEc6")
	SystemProgramID        = types.ZeroAddress
	ComputeBudgetProgramID = types.MustParseAddress("ComputeBudget111111111111111111111111111111")
	AddressLookupTableID   = types.MustParseAddress("AddressLookupTab1e1111111111111111111111111")
	Secp256r1ProgramID     = types.MustParseAddress("Secp256r1SigVerify1111111111111111111111111")
	SysvarInstructionsID   = types.MustParseAddress("Sysvar1nstructions1111111111111111111111111")
	SysvarClockID          = types.MustParseAddress("SysvarC1ock11111111111111111111111111111111")
)

// 派生地址种子前缀
const (
	SeedVault      = "smart_account_vault"
	SeedState      = "smart_account_state"
	SeedConfig     = "smart_account"
	SeedOptimistic = "optimistic_validation"
)

// MaxAccountIDLength 智能账户 ID 最大长度
const MaxAccountIDLength = 32

// 指令名
const (
	IxValidateExecution                = "validate_execution"
	IxValidateExecutionViaSmartAccount = "validate_execution_via_smart_account"
	IxExecute                          = "execute"
	IxValidateOptimistic               = "validate_optimistic"
	IxExecuteOptimistic                = "execute_optimistic"
	IxPostExecuteOptimistic            = "post_execute_optimistic"
)

// 账户类型名
const (
	AccountSmartAccountState    = "SmartAccountState"
	AccountOptimisticValidation = "OptimisticValidation"
)

// IsBuiltinProgram 判断地址是否为运行时内置程序或系统变量
func IsBuiltinProgram(addr types.Address) bool {
	switch addr {
	case SystemProgramID, ComputeBudgetProgramID, AddressLookupTableID,
		Secp256r1ProgramID, SysvarInstructionsID, SysvarClockID:
		return true
	}
	return false
}
