package types

import (
	"errors"
	"fmt"
)

// ErrorKind SDK 本地错误类别
type ErrorKind string

const (
	// KindEncoding 调用方输入不合法（空步骤、载荷超长、地址格式错误）
	KindEncoding ErrorKind = "ENCODING_ERROR"
	// KindPermissionConflict 权限合并表缺失地址（防御性，按构造不可达）
	KindPermissionConflict ErrorKind = "PERMISSION_CONFLICT"
	// KindProofNotFound 请求的叶子不在 Merkle 树中
	KindProofNotFound ErrorKind = "PROOF_NOT_FOUND"
	// KindChallengeSigning 凭证不可用或拒绝签名
	KindChallengeSigning ErrorKind = "CHALLENGE_SIGNING_FAILURE"
	// KindCompression 查找表未能按时激活（非致命，降级为未压缩交易）
	KindCompression ErrorKind = "COMPRESSION_FAILURE"
	// KindOptimisticWindowExpired 乐观验证窗口已过期（本地预检）
	KindOptimisticWindowExpired ErrorKind = "OPTIMISTIC_WINDOW_EXPIRED"
	// KindOptimisticWindowConsumed 乐观验证窗口已被执行（本地预检）
	KindOptimisticWindowConsumed ErrorKind = "OPTIMISTIC_WINDOW_CONSUMED"
	// KindHashMismatch 执行操作的哈希与固定的目标哈希不一致（本地预检）
	KindHashMismatch ErrorKind = "TRANSACTION_HASH_MISMATCH"
	// KindInvalidState 引擎账户数据无法解码
	KindInvalidState ErrorKind = "INVALID_STATE"
	// KindTransactionTooLarge 序列化交易超过网络包大小
	KindTransactionTooLarge ErrorKind = "TRANSACTION_TOO_LARGE"
)

// SDKError SDK 统一本地错误类型
type SDKError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause=%v)", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// Is 同类别即视为匹配，使 errors.Is(err, types.ErrEncoding) 可用
func (e *SDKError) Is(target error) bool {
	t, ok := target.(*SDKError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// 哨兵错误（仅用于 errors.Is 比较）
var (
	ErrEncoding                 = &SDKError{Kind: KindEncoding}
	ErrPermissionConflict       = &SDKError{Kind: KindPermissionConflict}
	ErrProofNotFound            = &SDKError{Kind: KindProofNotFound}
	ErrChallengeSigning         = &SDKError{Kind: KindChallengeSigning}
	ErrCompression              = &SDKError{Kind: KindCompression}
	ErrOptimisticWindowExpired  = &SDKError{Kind: KindOptimisticWindowExpired}
	ErrOptimisticWindowConsumed = &SDKError{Kind: KindOptimisticWindowConsumed}
	ErrHashMismatch             = &SDKError{Kind: KindHashMismatch}
	ErrInvalidState             = &SDKError{Kind: KindInvalidState}
	ErrTransactionTooLarge      = &SDKError{Kind: KindTransactionTooLarge}
)

// NewEncodingError 创建编码错误
func NewEncodingError(format string, args ...interface{}) *SDKError {
	return &SDKError{Kind: KindEncoding, Message: fmt.Sprintf(format, args...)}
}

// NewError 创建指定类别的错误
func NewError(kind ErrorKind, message string, cause error) *SDKError {
	return &SDKError{Kind: kind, Message: message, Cause: cause}
}

// KindOf 提取错误类别（非 SDKError 返回空）
func KindOf(err error) ErrorKind {
	var sdkErr *SDKError
	if errors.As(err, &sdkErr) {
		return sdkErr.Kind
	}
	return ""
}
