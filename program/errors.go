package program

import (
	"errors"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// 引擎自定义错误码
const (
	ErrCodeInvalidNonce                         uint32 = 6000
	ErrCodeTransactionHashMismatch              uint32 = 6001
	ErrCodeOptimisticValidationExpired          uint32 = 6002
	ErrCodeOptimisticTransactionAlreadyExecuted uint32 = 6003
	ErrCodeInvalidSignature                     uint32 = 6004
	ErrCodeInvalidMerkleProof                   uint32 = 6005
	ErrCodeMissingAccounts                      uint32 = 6006
	ErrCodeExcessAccounts                       uint32 = 6007
	ErrCodeInvalidAccountPermission             uint32 = 6008
	ErrCodeChallengeMismatch                    uint32 = 6009
)

var errorNames = map[uint32]string{
	ErrCodeInvalidNonce:                         "InvalidNonce",
	ErrCodeTransactionHashMismatch:              "TransactionHashMismatch",
	ErrCodeOptimisticValidationExpired:          "OptimisticValidationExpired",
	ErrCodeOptimisticTransactionAlreadyExecuted: "OptimisticTransactionAlreadyExecuted",
	ErrCodeInvalidSignature:                     "InvalidSignature",
	ErrCodeInvalidMerkleProof:                   "InvalidMerkleProof",
	ErrCodeMissingAccounts:                      "MissingAccounts",
	ErrCodeExcessAccounts:                       "ExcessAccounts",
	ErrCodeInvalidAccountPermission:             "InvalidAccountPermission",
	ErrCodeChallengeMismatch:                    "ChallengeMismatch",
}

// ErrorName 错误码对应的名称（未知返回空）
func ErrorName(code uint32) string {
	return errorNames[code]
}

// HasEngineCode 判断错误是否为携带指定错误码的引擎拒绝
func HasEngineCode(err error, code uint32) bool {
	var rej *types.EngineRejection
	if !errors.As(err, &rej) {
		return false
	}
	return rej.HasCode(code)
}

// IsInvalidNonce 引擎因 nonce 过期而拒绝
func IsInvalidNonce(err error) bool {
	return HasEngineCode(err, ErrCodeInvalidNonce)
}
