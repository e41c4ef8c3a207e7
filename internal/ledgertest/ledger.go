// Package ledgertest 提供内存账本，用于服务层测试。
//
// Ledger 实现 client.LedgerClient：槽位可控、账户可预置、已发送交易可检查，
// 并模拟地址查找表程序的创建与扩展指令。
package ledgertest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// Ledger 内存账本
type Ledger struct {
	mu        sync.Mutex
	slot      uint64
	slotStep  uint64
	blockhash types.Hash
	accounts  map[types.Address]*client.AccountInfo
	sent      []*message.Transaction
	simulated []*message.Transaction
	landed    map[string]uint64
	statuses  map[string]*client.SignatureStatus
	airdrops  int
	logSubs   []logSubscriber

	// SimulateHook 替换默认的模拟结果（默认成功）
	SimulateHook func(tx *message.Transaction) (*client.SimulationResult, error)
	// SendHook 在交易落账前调用；返回错误表示拒绝
	SendHook func(tx *message.Transaction) error
	// LogsHook 生成落账交易的日志，持锁调用（默认每条指令 invoke/success 两行）
	LogsHook func(tx *message.Transaction) []string
	// Subscriptions 为 false 时 SubscribeSlots 返回不支持
	Subscriptions bool
}

var _ client.LedgerClient = (*Ledger)(nil)

// New 创建内存账本
func New(startSlot uint64) *Ledger {
	var bh types.Hash
	bh[0], bh[31] = 0xbb, 0x01
	return &Ledger{
		slot:      startSlot,
		blockhash: bh,
		accounts:  make(map[types.Address]*client.AccountInfo),
		landed:    make(map[string]uint64),
		statuses:  make(map[string]*client.SignatureStatus),
	}
}

// SetSlot 设置当前槽位
func (l *Ledger) SetSlot(slot uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot = slot
}

// SetSlotStep 每次 GetSlot 后槽位前进的步长
func (l *Ledger) SetSlotStep(step uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slotStep = step
}

// SetAccount 预置账户
func (l *Ledger) SetAccount(addr, owner types.Address, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addr] = &client.AccountInfo{Address: addr, Owner: owner, Data: append([]byte(nil), data...), Lamports: 1}
}

// Account 读取账户数据（不存在返回 nil）
func (l *Ledger) Account(addr types.Address) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return append([]byte(nil), acc.Data...)
	}
	return nil
}

// Sent 已落账的交易
func (l *Ledger) Sent() []*message.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*message.Transaction(nil), l.sent...)
}

// Simulated 已模拟的交易
func (l *Ledger) Simulated() []*message.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*message.Transaction(nil), l.simulated...)
}

// GetSlot 返回当前槽位并按步长前进
func (l *Ledger) GetSlot(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	slot := l.slot
	l.slot += l.slotStep
	return slot, nil
}

// GetLatestBlockhash 固定区块哈希
func (l *Ledger) GetLatestBlockhash(ctx context.Context) (*client.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &client.Blockhash{Hash: l.blockhash, LastValidBlockHeight: l.slot + 150, Slot: l.slot}, nil
}

// GetAccountInfo 读取账户
func (l *Ledger) GetAccountInfo(ctx context.Context, addr types.Address) (*client.AccountInfo, error) {
	infos, err := l.GetMultipleAccounts(ctx, []types.Address{addr})
	if err != nil {
		return nil, err
	}
	return infos[0], nil
}

// GetMultipleAccounts 批量读取账户
func (l *Ledger) GetMultipleAccounts(ctx context.Context, addrs []types.Address) ([]*client.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*client.AccountInfo, len(addrs))
	for i, a := range addrs {
		if acc, ok := l.accounts[a]; ok {
			cp := *acc
			cp.Data = append([]byte(nil), acc.Data...)
			out[i] = &cp
		}
	}
	return out, nil
}

// SimulateTransaction 模拟交易
func (l *Ledger) SimulateTransaction(ctx context.Context, rawTx []byte) (*client.SimulationResult, error) {
	tx, err := message.DecodeTransaction(rawTx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.simulated = append(l.simulated, tx)
	slot := l.slot
	l.mu.Unlock()

	if l.SimulateHook != nil {
		return l.SimulateHook(tx)
	}
	return &client.SimulationResult{Slot: slot, UnitsConsumed: 5000}, nil
}

// SendTransaction 落账交易，返回首个签名
func (l *Ledger) SendTransaction(ctx context.Context, rawTx []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tx, err := message.DecodeTransaction(rawTx)
	if err != nil {
		return "", err
	}
	if l.SendHook != nil {
		if err := l.SendHook(tx); err != nil {
			return "", err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.applyLookupTableInstructions(tx.Message)
	l.sent = append(l.sent, tx)
	sig := tx.Signatures[0].String()
	l.landed[sig] = l.slot
	l.notifyLogs(tx, sig)
	return sig, nil
}

type logSubscriber struct {
	ctx      context.Context
	mentions types.Address
	ch       chan *client.LogNotification
}

// SubscribeLogs 推送此后落账且提及 mentions 的交易日志
func (l *Ledger) SubscribeLogs(ctx context.Context, mentions types.Address) (<-chan *client.LogNotification, error) {
	if !l.Subscriptions {
		return nil, client.NewNotSupportedError("logsSubscribe")
	}
	ch := make(chan *client.LogNotification, 16)
	l.mu.Lock()
	l.logSubs = append(l.logSubs, logSubscriber{ctx: ctx, mentions: mentions, ch: ch})
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.logSubs {
			if sub.ch == ch {
				l.logSubs = append(l.logSubs[:i], l.logSubs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// notifyLogs 调用方持锁
func (l *Ledger) notifyLogs(tx *message.Transaction, sig string) {
	if len(l.logSubs) == 0 {
		return
	}
	var logs []string
	if l.LogsHook != nil {
		logs = l.LogsHook(tx)
	} else {
		for _, ix := range tx.Message.Instructions {
			id := tx.Message.AccountKeys[ix.ProgramIDIndex].String()
			logs = append(logs, "Program "+id+" invoke [1]", "Program "+id+" success")
		}
	}
	for _, sub := range l.logSubs {
		if sub.ctx.Err() != nil || !mentions(tx.Message, sub.mentions) {
			continue
		}
		select {
		case sub.ch <- &client.LogNotification{Slot: l.slot, Signature: sig, Logs: logs}:
		default:
		}
	}
}

func mentions(msg *message.Message, addr types.Address) bool {
	for _, key := range msg.AccountKeys {
		if key == addr {
			return true
		}
	}
	return false
}

// SetStatus 覆盖签名的状态
func (l *Ledger) SetStatus(sig string, st *client.SignatureStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[sig] = st
}

// GetSignatureStatuses 已落账交易立即视为 finalized，SetStatus 的值优先
func (l *Ledger) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*client.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*client.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := l.statuses[sig]; ok {
			cp := *st
			out[i] = &cp
			continue
		}
		if slot, ok := l.landed[sig]; ok {
			out[i] = &client.SignatureStatus{Slot: slot, ConfirmationStatus: client.CommitmentFinalized}
		}
	}
	return out, nil
}

// GetBalance 账户余额；不存在的账户为 0
func (l *Ledger) GetBalance(ctx context.Context, addr types.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.Lamports, nil
	}
	return 0, nil
}

// RequestAirdrop 增加余额，必要时创建系统账户
func (l *Ledger) RequestAirdrop(ctx context.Context, addr types.Address, lamports uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &client.AccountInfo{Address: addr, Owner: types.ZeroAddress}
		l.accounts[addr] = acc
	}
	acc.Lamports += lamports
	l.airdrops++
	sig := fmt.Sprintf("airdrop-%d", l.airdrops)
	l.landed[sig] = l.slot
	return sig, nil
}

// SubscribeSlots 每 5ms 推送一个递增槽位
func (l *Ledger) SubscribeSlots(ctx context.Context) (<-chan uint64, error) {
	if !l.Subscriptions {
		return nil, client.NewNotSupportedError("slotSubscribe")
	}
	out := make(chan uint64)
	go func() {
		defer close(out)
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			l.mu.Lock()
			l.slot++
			slot := l.slot
			l.mu.Unlock()
			select {
			case out <- slot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 无操作
func (l *Ledger) Close() error { return nil }

// applyLookupTableInstructions 模拟查找表程序（调用方持有锁）
func (l *Ledger) applyLookupTableInstructions(msg *message.Message) {
	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) || msg.AccountKeys[ci.ProgramIDIndex] != program.AddressLookupTableID {
			continue
		}
		if len(ci.Accounts) < 2 || len(ci.Data) < 4 {
			continue
		}
		tableAddr := msg.AccountKeys[ci.Accounts[0]]
		authority := msg.AccountKeys[ci.Accounts[1]]

		switch binary.LittleEndian.Uint32(ci.Data[:4]) {
		case 0:
			table := &message.LookupTable{
				Address:          tableAddr,
				DeactivationSlot: math.MaxUint64,
				Authority:        &authority,
			}
			l.accounts[tableAddr] = &client.AccountInfo{Address: tableAddr, Owner: program.AddressLookupTableID, Data: message.EncodeLookupTable(table), Lamports: 1}
		case 2:
			acc, ok := l.accounts[tableAddr]
			if !ok || len(ci.Data) < 12 {
				continue
			}
			table, err := message.DecodeLookupTable(tableAddr, acc.Data)
			if err != nil {
				continue
			}
			n := binary.LittleEndian.Uint64(ci.Data[4:12])
			body := ci.Data[12:]
			table.LastExtendedSlotStartIndex = uint8(len(table.Addresses))
			for i := uint64(0); i < n && int(i+1)*types.AddressLength <= len(body); i++ {
				var a types.Address
				copy(a[:], body[i*types.AddressLength:])
				table.Addresses = append(table.Addresses, a)
			}
			table.LastExtendedSlot = l.slot
			acc.Data = message.EncodeLookupTable(table)
		}
	}
}
