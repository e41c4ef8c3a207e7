package event

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// Service 引擎事件服务接口
type Service interface {
	// SubscribeEvents 订阅调用引擎程序的交易；ctx 结束时通道关闭
	SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *EngineEvent, error)
}

// eventService Event 服务实现
type eventService struct {
	client    client.LedgerClient
	logger    client.Logger
	programID types.Address
}

// NewService 创建 Event 服务
func NewService(ledger client.LedgerClient, config *services.Config) (Service, error) {
	if config == nil {
		config = services.DefaultConfig()
	}
	programID, err := config.ProgramID()
	if err != nil {
		return nil, err
	}
	return &eventService{
		client:    ledger,
		logger:    config.Log(),
		programID: programID,
	}, nil
}

// EventFilters 事件过滤器
type EventFilters struct {
	// Instructions 引擎指令名（如 program.IxExecute），为空表示全部
	Instructions []string
	// FailedOnly 只推送执行失败的交易
	FailedOnly bool
}

func (f *EventFilters) match(ev *EngineEvent) bool {
	if f == nil {
		return true
	}
	if f.FailedOnly && ev.Rejection == nil {
		return false
	}
	if len(f.Instructions) == 0 {
		return true
	}
	for _, want := range f.Instructions {
		for _, got := range ev.Instructions {
			if want == got {
				return true
			}
		}
	}
	return false
}

// EngineEvent 一笔调用引擎程序的交易
type EngineEvent struct {
	Signature    string
	Slot         uint64
	Instructions []string // 按执行顺序的引擎指令名
	Rejection    *types.EngineRejection
	Logs         []string
}

// Succeeded 交易是否执行成功
func (e *EngineEvent) Succeeded() bool {
	return e.Rejection == nil
}

// String 单行摘要
func (e *EngineEvent) String() string {
	status := "ok"
	if e.Rejection != nil {
		status = "rejected: " + e.Rejection.Error()
	}
	return fmt.Sprintf("slot=%d sig=%s ix=[%s] %s", e.Slot, e.Signature, strings.Join(e.Instructions, ","), status)
}

// SubscribeEvents 订阅引擎事件
func (s *eventService) SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *EngineEvent, error) {
	notes, err := s.client.SubscribeLogs(ctx, s.programID)
	if err != nil {
		return nil, fmt.Errorf("subscribe engine logs failed: %w", err)
	}

	out := make(chan *EngineEvent, 10)
	go func() {
		defer close(out)
		for note := range notes {
			ev := ParseEvent(s.programID, note)
			if !filters.match(ev) {
				continue
			}
			s.logger.Debug("engine event", "signature", ev.Signature, "slot", ev.Slot, "instructions", ev.Instructions)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ParseEvent 从日志通知解析引擎事件
//
// 只记录引擎程序自身（含被 CPI 调用时）输出的 "Instruction: X" 日志。
func ParseEvent(programID types.Address, note *client.LogNotification) *EngineEvent {
	ev := &EngineEvent{
		Signature: note.Signature,
		Slot:      note.Slot,
		Rejection: note.Err,
		Logs:      note.Logs,
	}

	engine := "Program " + programID.String() + " "
	var stack []bool
	for _, line := range note.Logs {
		switch {
		case strings.HasPrefix(line, "Program log: "):
			name, ok := strings.CutPrefix(line, "Program log: Instruction: ")
			if ok && len(stack) > 0 && stack[len(stack)-1] {
				ev.Instructions = append(ev.Instructions, snakeCase(name))
			}
		case !strings.HasPrefix(line, "Program "):
		case strings.Contains(line, " invoke ["):
			stack = append(stack, strings.HasPrefix(line, engine))
		case strings.HasSuffix(line, " success") || strings.Contains(line, " failed"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if rej := ev.Rejection; rej != nil && rej.Name == "" && rej.Code != nil {
		rej.Name = program.ErrorName(*rej.Code)
	}
	return ev
}

// snakeCase ValidateOptimistic -> validate_optimistic
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
