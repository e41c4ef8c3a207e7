package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// Blockhash 最近区块哈希
type Blockhash struct {
	Hash                 types.Hash
	LastValidBlockHeight uint64
	Slot                 uint64
}

// AccountInfo 账户信息
type AccountInfo struct {
	Address    types.Address
	Lamports   uint64
	Owner      types.Address
	Data       []byte
	Executable bool
}

// SimulationResult 模拟结果
//
// Rejection 非空表示账本或引擎拒绝了交易（原样透传）。
type SimulationResult struct {
	Slot          uint64
	Logs          []string
	UnitsConsumed uint64
	Rejection     *types.EngineRejection
}

// SignatureStatus 交易确认状态
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64 // nil 表示已最终确认
	ConfirmationStatus Commitment
	// Err 非空表示交易已落账但执行失败
	Err *types.EngineRejection
}

// Reached 是否达到给定确认级别
func (s *SignatureStatus) Reached(level Commitment) bool {
	rank := map[Commitment]int{CommitmentProcessed: 1, CommitmentConfirmed: 2, CommitmentFinalized: 3}
	return rank[s.ConfirmationStatus] >= rank[level]
}

// LogNotification 交易日志通知
type LogNotification struct {
	Slot      uint64
	Signature string
	Logs      []string
	// Err 非空表示交易执行失败
	Err *types.EngineRejection
}

// LedgerClient 账本节点类型化接口
type LedgerClient interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
	// GetAccountInfo 账户不存在时返回 nil, nil
	GetAccountInfo(ctx context.Context, addr types.Address) (*AccountInfo, error)
	// GetMultipleAccounts 结果与输入一一对应，不存在的账户为 nil
	GetMultipleAccounts(ctx context.Context, addrs []types.Address) ([]*AccountInfo, error)
	SimulateTransaction(ctx context.Context, rawTx []byte) (*SimulationResult, error)
	// SendTransaction 返回交易签名（base58）
	SendTransaction(ctx context.Context, rawTx []byte) (string, error)
	// GetSignatureStatuses 交易状态，未知签名为 nil
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
	GetBalance(ctx context.Context, addr types.Address) (uint64, error)
	// RequestAirdrop 仅测试网络可用
	RequestAirdrop(ctx context.Context, addr types.Address, lamports uint64) (string, error)
	// SubscribeSlots 槽位通知；ctx 结束时通道关闭
	SubscribeSlots(ctx context.Context) (<-chan uint64, error)
	// SubscribeLogs 提及 mentions 的交易日志通知；ctx 结束时通道关闭
	SubscribeLogs(ctx context.Context, mentions types.Address) (<-chan *LogNotification, error)
	Close() error
}

// ledgerClient 基于 JSON-RPC 传输的 LedgerClient
type ledgerClient struct {
	transport  Client
	commitment Commitment
	logger     Logger
}

// NewLedgerClient 按配置创建传输层并包装为 LedgerClient
func NewLedgerClient(config *Config) (LedgerClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	transport, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return NewLedgerClientWithTransport(transport, config), nil
}

// NewLedgerClientWithTransport 使用已有传输层
func NewLedgerClientWithTransport(transport Client, config *Config) LedgerClient {
	if config == nil {
		config = DefaultConfig()
	}
	commitment := config.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	return &ledgerClient{transport: transport, commitment: commitment, logger: config.logger()}
}

// rpcContext 带上下文槽位的结果
type rpcContext[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
}

func (c *ledgerClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	raw, err := c.transport.Call(ctx, method, params)
	if err != nil {
		return wrapRPCError(method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return decodeError(method, err)
	}
	return nil
}

func (c *ledgerClient) commitmentParam() map[string]interface{} {
	return map[string]interface{}{"commitment": string(c.commitment)}
}

// GetSlot 当前槽位
func (c *ledgerClient) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []interface{}{c.commitmentParam()}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetLatestBlockhash 最近区块哈希
func (c *ledgerClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var res rpcContext[struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}]
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{c.commitmentParam()}, &res); err != nil {
		return nil, err
	}
	hash, err := types.ParseHash(res.Value.Blockhash)
	if err != nil {
		return nil, decodeError("getLatestBlockhash", err)
	}
	return &Blockhash{Hash: hash, LastValidBlockHeight: res.Value.LastValidBlockHeight, Slot: res.Context.Slot}, nil
}

func (c *ledgerClient) accountParams() map[string]interface{} {
	return map[string]interface{}{"commitment": string(c.commitment), "encoding": "base64"}
}

func decodeAccount(method string, addr types.Address, acc *rpcAccount) (*AccountInfo, error) {
	if acc == nil {
		return nil, nil
	}
	info := &AccountInfo{Address: addr, Lamports: acc.Lamports, Executable: acc.Executable}
	owner, err := types.ParseAddress(acc.Owner)
	if err != nil {
		return nil, decodeError(method, err)
	}
	info.Owner = owner
	if len(acc.Data) != 2 || acc.Data[1] != "base64" {
		return nil, decodeError(method, fmt.Errorf("unexpected account data encoding %v", acc.Data))
	}
	if info.Data, err = base64.StdEncoding.DecodeString(acc.Data[0]); err != nil {
		return nil, decodeError(method, err)
	}
	return info, nil
}

// GetAccountInfo 账户信息
func (c *ledgerClient) GetAccountInfo(ctx context.Context, addr types.Address) (*AccountInfo, error) {
	var res rpcContext[*rpcAccount]
	if err := c.call(ctx, "getAccountInfo", []interface{}{addr.String(), c.accountParams()}, &res); err != nil {
		return nil, err
	}
	return decodeAccount("getAccountInfo", addr, res.Value)
}

// GetMultipleAccounts 批量账户信息
func (c *ledgerClient) GetMultipleAccounts(ctx context.Context, addrs []types.Address) ([]*AccountInfo, error) {
	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = a.String()
	}

	var res rpcContext[[]*rpcAccount]
	if err := c.call(ctx, "getMultipleAccounts", []interface{}{keys, c.accountParams()}, &res); err != nil {
		return nil, err
	}
	if len(res.Value) != len(addrs) {
		return nil, decodeError("getMultipleAccounts", fmt.Errorf("expected %d accounts, got %d", len(addrs), len(res.Value)))
	}

	out := make([]*AccountInfo, len(addrs))
	for i, acc := range res.Value {
		info, err := decodeAccount("getMultipleAccounts", addrs[i], acc)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}

// SimulateTransaction 模拟交易（不校验签名）
func (c *ledgerClient) SimulateTransaction(ctx context.Context, rawTx []byte) (*SimulationResult, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(rawTx),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": string(c.commitment),
			"sigVerify":  false,
		},
	}

	var res rpcContext[struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	}]
	if err := c.call(ctx, "simulateTransaction", params, &res); err != nil {
		return nil, err
	}

	out := &SimulationResult{Slot: res.Context.Slot, Logs: res.Value.Logs, UnitsConsumed: res.Value.UnitsConsumed}
	if rej, ok := types.ParseEngineRejection(res.Value.Err, res.Value.Logs); ok {
		out.Rejection = rej
		c.logger.Debug("simulation rejected", "reason", rej.Reason, "traceId", rej.TraceID)
	}
	return out, nil
}

// SendTransaction 提交交易（节点执行提交前模拟）
func (c *ledgerClient) SendTransaction(ctx context.Context, rawTx []byte) (string, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(rawTx),
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": string(c.commitment),
		},
	}
	var sig string
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// GetSignatureStatuses 查询交易状态
func (c *ledgerClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var res rpcContext[[]*struct {
		Slot               uint64      `json:"slot"`
		Confirmations      *uint64     `json:"confirmations"`
		Err                interface{} `json:"err"`
		ConfirmationStatus string      `json:"confirmationStatus"`
	}]
	params := []interface{}{signatures, map[string]interface{}{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &res); err != nil {
		return nil, err
	}
	if len(res.Value) != len(signatures) {
		return nil, decodeError("getSignatureStatuses", fmt.Errorf("expected %d statuses, got %d", len(signatures), len(res.Value)))
	}

	out := make([]*SignatureStatus, len(signatures))
	for i, v := range res.Value {
		if v == nil {
			continue
		}
		st := &SignatureStatus{Slot: v.Slot, Confirmations: v.Confirmations, ConfirmationStatus: Commitment(v.ConfirmationStatus)}
		if rej, ok := types.ParseEngineRejection(v.Err, nil); ok {
			st.Err = rej
		}
		out[i] = st
	}
	return out, nil
}

// GetBalance 账户余额
func (c *ledgerClient) GetBalance(ctx context.Context, addr types.Address) (uint64, error) {
	var res rpcContext[uint64]
	if err := c.call(ctx, "getBalance", []interface{}{addr.String(), c.commitmentParam()}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// RequestAirdrop 请求测试币
func (c *ledgerClient) RequestAirdrop(ctx context.Context, addr types.Address, lamports uint64) (string, error) {
	var sig string
	if err := c.call(ctx, "requestAirdrop", []interface{}{addr.String(), lamports, c.commitmentParam()}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// SubscribeSlots 订阅槽位变化
func (c *ledgerClient) SubscribeSlots(ctx context.Context) (<-chan uint64, error) {
	raw, err := c.transport.Subscribe(ctx, "slotSubscribe", []interface{}{}, "slotUnsubscribe")
	if err != nil {
		return nil, wrapRPCError("slotSubscribe", err)
	}

	out := make(chan uint64, 1)
	go func() {
		defer close(out)
		for msg := range raw {
			var n struct {
				Slot uint64 `json:"slot"`
			}
			if err := json.Unmarshal(msg, &n); err != nil {
				c.logger.Debug("bad slot notification", "error", err)
				continue
			}
			select {
			case out <- n.Slot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeLogs 订阅提及指定地址的交易日志
func (c *ledgerClient) SubscribeLogs(ctx context.Context, mentions types.Address) (<-chan *LogNotification, error) {
	params := []interface{}{
		map[string]interface{}{"mentions": []string{mentions.String()}},
		c.commitmentParam(),
	}
	raw, err := c.transport.Subscribe(ctx, "logsSubscribe", params, "logsUnsubscribe")
	if err != nil {
		return nil, wrapRPCError("logsSubscribe", err)
	}

	out := make(chan *LogNotification, 16)
	go func() {
		defer close(out)
		for msg := range raw {
			var n rpcContext[struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			}]
			if err := json.Unmarshal(msg, &n); err != nil {
				c.logger.Debug("bad logs notification", "error", err)
				continue
			}
			note := &LogNotification{Slot: n.Context.Slot, Signature: n.Value.Signature, Logs: n.Value.Logs}
			if rej, ok := types.ParseEngineRejection(n.Value.Err, n.Value.Logs); ok {
				note.Err = rej
			}
			select {
			case out <- note:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭传输层
func (c *ledgerClient) Close() error {
	return c.transport.Close()
}
