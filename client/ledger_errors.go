package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// LedgerErrorCode LedgerClient 错误码
type LedgerErrorCode string

const (
	LedgerErrCodeNetwork      LedgerErrorCode = "NETWORK_ERROR"
	LedgerErrCodeRPC          LedgerErrorCode = "RPC_ERROR"
	LedgerErrCodeNotFound     LedgerErrorCode = "NOT_FOUND"
	LedgerErrCodeDecodeFailed LedgerErrorCode = "DECODE_FAILED"
)

// LedgerError LedgerClient 统一错误类型
type LedgerError struct {
	Code    LedgerErrorCode
	Method  string
	Message string
	Cause   error
}

func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s %s (cause=%v)", e.Code, e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Method, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Cause
}

func decodeError(method string, err error) error {
	return &LedgerError{Code: LedgerErrCodeDecodeFailed, Method: method, Message: "decode result", Cause: err}
}

// preflightData 提交前模拟失败时 error.data 的结构
type preflightData struct {
	Err  interface{} `json:"err"`
	Logs []string    `json:"logs"`
}

// wrapRPCError 包装传输层错误
//
// 节点在提交前模拟中发现交易失败时，错误数据携带账本 err 与程序日志，
// 这里转为 types.EngineRejection 原样返回。
func wrapRPCError(method string, err error) error {
	if err == nil {
		return nil
	}

	var cliErr *Error
	if !errors.As(err, &cliErr) {
		return err
	}

	switch cliErr.Code {
	case ErrCodeNetwork, ErrCodeTimeout:
		return &LedgerError{Code: LedgerErrCodeNetwork, Method: method, Message: "network error", Cause: err}
	case ErrCodeRPCError:
		if cliErr.RPCCode == RPCCodeSendPreflightFailure && len(cliErr.Data) > 0 {
			var data preflightData
			if json.Unmarshal(cliErr.Data, &data) == nil {
				if rej, ok := types.ParseEngineRejection(data.Err, data.Logs); ok {
					return rej
				}
			}
		}
		return &LedgerError{Code: LedgerErrCodeRPC, Method: method, Message: cliErr.Message, Cause: err}
	default:
		return &LedgerError{Code: LedgerErrCodeRPC, Method: method, Message: cliErr.Message, Cause: err}
	}
}
