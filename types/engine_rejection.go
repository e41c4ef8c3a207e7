package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EngineRejection 外部授权引擎返回的拒绝（原样透传，不做重新解释）
//
// **字段来源**：
// - InstructionIndex / Code / Reason 来自账本返回的 err 结构
// - Name / Message 来自引擎自身的程序日志（如果存在）
// - TraceID / Timestamp 由 SDK 生成，仅用于关联日志
type EngineRejection struct {
	InstructionIndex int     // 失败指令索引（-1 表示交易级错误）
	Code             *uint32 // 自定义错误码（引擎错误从 6000 开始）
	Reason           string  // 账本错误类别，如 "Custom"、"InvalidAccountData"、"BlockhashNotFound"
	Name             string  // 引擎错误名，如 "TransactionHashMismatch"
	Message          string  // 引擎错误描述
	Logs             []string
	Raw              interface{}
	TraceID          string
	Timestamp        string
}

func (e *EngineRejection) Error() string {
	switch {
	case e.Code != nil && e.Name != "":
		return fmt.Sprintf("engine rejected [%d %s] at instruction %d: %s", *e.Code, e.Name, e.InstructionIndex, e.Message)
	case e.Code != nil:
		return fmt.Sprintf("engine rejected [%d] at instruction %d", *e.Code, e.InstructionIndex)
	case e.InstructionIndex >= 0:
		return fmt.Sprintf("engine rejected [%s] at instruction %d", e.Reason, e.InstructionIndex)
	default:
		return fmt.Sprintf("engine rejected [%s]", e.Reason)
	}
}

// HasCode 是否为指定自定义错误码
func (e *EngineRejection) HasCode(code uint32) bool {
	return e.Code != nil && *e.Code == code
}

// IsEngineRejection 检查错误是否为引擎拒绝
func IsEngineRejection(err error) (*EngineRejection, bool) {
	var rej *EngineRejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// anchorErrorPattern 匹配引擎日志中的错误行
var anchorErrorPattern = regexp.MustCompile(`Error Code: (\w+)\. Error Number: (\d+)\. Error Message: (.*?)\.?$`)

// ParseEngineRejection 从账本返回的 err 值与日志解析引擎拒绝
//
// 支持的格式：
//   - "BlockhashNotFound"
//   - {"InstructionError": [1, {"Custom": 6001}]}
//   - {"InstructionError": [0, "InvalidAccountData"]}
//
// errValue 为 nil 时返回 nil, false
func ParseEngineRejection(errValue interface{}, logs []string) (*EngineRejection, bool) {
	if errValue == nil {
		return nil, false
	}

	rej := &EngineRejection{
		InstructionIndex: -1,
		Logs:             logs,
		Raw:              errValue,
		TraceID:          uuid.New().String(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	switch v := errValue.(type) {
	case string:
		rej.Reason = v
	case map[string]interface{}:
		ixErr, ok := v["InstructionError"].([]interface{})
		if !ok || len(ixErr) != 2 {
			// 其他交易级错误，取第一个键作为类别
			for k := range v {
				rej.Reason = k
				break
			}
			break
		}
		if idx, ok := ixErr[0].(float64); ok {
			rej.InstructionIndex = int(idx)
		}
		switch detail := ixErr[1].(type) {
		case string:
			rej.Reason = detail
		case map[string]interface{}:
			if custom, ok := detail["Custom"].(float64); ok {
				code := uint32(custom)
				rej.Code = &code
				rej.Reason = "Custom"
			} else {
				for k := range detail {
					rej.Reason = k
					break
				}
			}
		}
	default:
		rej.Reason = fmt.Sprintf("%v", v)
	}

	// 日志只补充名称与消息，错误码只取自账本的 Custom 值
	for _, line := range logs {
		if rej.Code == nil {
			break
		}
		m := anchorErrorPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil || uint32(num) != *rej.Code {
			continue
		}
		rej.Name = m[1]
		rej.Message = m[3]
		break
	}

	return rej, true
}
