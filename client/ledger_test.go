package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// rpcServer 按方法名返回固定响应体的 JSON-RPC 测试服务
func rpcServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]jsonRPCRequest) {
	t.Helper()
	var seen []jsonRPCRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req jsonRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		seen = append(seen, req)
		resp, ok := responses[req.Method]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestLedger(t *testing.T, endpoint string) LedgerClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Retry = &RetryConfig{MaxRetries: 0}
	c, err := NewLedgerClient(cfg)
	require.NoError(t, err)
	return c
}

func TestLedgerClient_Reads(t *testing.T) {
	owner := types.MustParseAddress("AddressLookupTab1e1111111111111111111111111")
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})

	srv, seen := rpcServer(t, map[string]string{
		"getSlot":             `{"jsonrpc":"2.0","result":4242,"id":1}`,
		"getLatestBlockhash":  `{"jsonrpc":"2.0","result":{"context":{"slot":7},"value":{"blockhash":"ComputeBudget111111111111111111111111111111","lastValidBlockHeight":99}},"id":1}`,
		"getAccountInfo":      `{"jsonrpc":"2.0","result":{"context":{"slot":7},"value":{"lamports":5,"owner":"` + owner.String() + `","data":["` + data + `","base64"],"executable":false}},"id":1}`,
		"getMultipleAccounts": `{"jsonrpc":"2.0","result":{"context":{"slot":7},"value":[null,{"lamports":1,"owner":"11111111111111111111111111111111","data":["","base64"],"executable":true}]},"id":1}`,
	})
	c := newTestLedger(t, srv.URL)
	ctx := context.Background()

	slot, err := c.GetSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), slot)
	assert.Equal(t, "2.0", (*seen)[0].JSONRPC)

	bh, err := c.GetLatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), bh.LastValidBlockHeight)
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", bh.Hash.String())

	info, err := c.GetAccountInfo(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
	assert.Equal(t, owner, info.Owner)

	accounts, err := c.GetMultipleAccounts(ctx, []types.Address{owner, types.ZeroAddress})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Nil(t, accounts[0])
	assert.True(t, accounts[1].Executable)
}

func TestLedgerClient_SimulationRejection(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{
		"simulateTransaction": `{"jsonrpc":"2.0","result":{"context":{"slot":3},"value":{
			"err":{"InstructionError":[1,{"Custom":6001}]},
			"logs":["Program log: AnchorError occurred. Error Code: TransactionHashMismatch. Error Number: 6001. Error Message: Transaction hash mismatch."],
			"unitsConsumed":1200}},"id":1}`,
	})
	c := newTestLedger(t, srv.URL)

	res, err := c.SimulateTransaction(context.Background(), []byte{0})
	require.NoError(t, err)
	require.NotNil(t, res.Rejection)
	assert.True(t, res.Rejection.HasCode(6001))
	assert.Equal(t, 1, res.Rejection.InstructionIndex)
	assert.Equal(t, "TransactionHashMismatch", res.Rejection.Name)
	assert.Equal(t, uint64(1200), res.UnitsConsumed)
}

func TestLedgerClient_SendPreflightFailure(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{
		"sendTransaction": `{"jsonrpc":"2.0","error":{"code":-32002,"message":"Transaction simulation failed",
			"data":{"err":{"InstructionError":[2,{"Custom":6000}]},"logs":[]}},"id":1}`,
	})
	c := newTestLedger(t, srv.URL)

	_, err := c.SendTransaction(context.Background(), []byte{0})
	require.Error(t, err)
	rej, ok := types.IsEngineRejection(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, rej.HasCode(6000))
	assert.Equal(t, 2, rej.InstructionIndex)
}

func TestLedgerClient_RPCError(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{
		"getSlot": `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":1}`,
	})
	c := newTestLedger(t, srv.URL)

	_, err := c.GetSlot(context.Background())
	var ledgerErr *LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	assert.Equal(t, LedgerErrCodeRPC, ledgerErr.Code)

	var cliErr *Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, -32601, cliErr.RPCCode)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","result":1,"id":1}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Retry = &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	c, err := NewHTTPClient(cfg)
	require.NoError(t, err)

	raw, err := c.Call(context.Background(), "getSlot", nil)
	require.NoError(t, err)
	assert.JSONEq(t, "1", string(raw))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_SubscribeNotSupported(t *testing.T) {
	c, err := NewHTTPClient(DefaultConfig())
	require.NoError(t, err)
	_, err = c.Subscribe(context.Background(), "slotSubscribe", nil, "slotUnsubscribe")
	var cliErr *Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, ErrCodeNotSupported, cliErr.Code)
}

func TestWebSocketClient_SlotSubscription(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req jsonRPCRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "slotSubscribe":
				_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": 11, "id": req.ID})
				for slot := 100; slot < 103; slot++ {
					_ = conn.WriteJSON(map[string]interface{}{
						"jsonrpc": "2.0",
						"method":  "slotNotification",
						"params": map[string]interface{}{
							"subscription": 11,
							"result":       map[string]interface{}{"slot": slot, "parent": slot - 1, "root": slot - 32},
						},
					})
				}
			default:
				_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": true, "id": req.ID})
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Protocol = ProtocolWebSocket
	c, err := NewLedgerClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slots, err := c.SubscribeSlots(ctx)
	require.NoError(t, err)

	var got []uint64
	for s := range slots {
		got = append(got, s)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []uint64{100, 101, 102}, got)
}

func TestWebSocketClient_LogsSubscription(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req jsonRPCRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Method != "logsSubscribe" {
				_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": true, "id": req.ID})
				continue
			}
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": 4, "id": req.ID})
			for _, value := range []map[string]interface{}{
				{"signature": "ok-sig", "err": nil, "logs": []string{"Program log: Instruction: Execute"}},
				{"signature": "bad-sig", "err": map[string]interface{}{"InstructionError": []interface{}{3, map[string]interface{}{"Custom": 6000}}}, "logs": []string{}},
			} {
				_ = conn.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "logsNotification",
					"params": map[string]interface{}{
						"subscription": 4,
						"result":       map[string]interface{}{"context": map[string]interface{}{"slot": 77}, "value": value},
					},
				})
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Protocol = ProtocolWebSocket
	c, err := NewLedgerClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := c.SubscribeLogs(ctx, types.MustParseAddress("AddressLookupTab1e1111111111111111111111111"))
	require.NoError(t, err)

	first := <-logs
	require.NotNil(t, first)
	assert.Equal(t, "ok-sig", first.Signature)
	assert.Equal(t, uint64(77), first.Slot)
	assert.Nil(t, first.Err)

	second := <-logs
	require.NotNil(t, second)
	require.NotNil(t, second.Err)
	assert.Equal(t, 3, second.Err.InstructionIndex)
	assert.True(t, second.Err.HasCode(6000))
}

func TestWebSocketEndpoint(t *testing.T) {
	tests := map[string]string{
		"http://node:8899": "ws://node:8899",
		"https://node":     "wss://node",
		"ws://node":        "ws://node",
		"node:8900":        "ws://node:8900",
	}
	for in, want := range tests {
		assert.Equal(t, want, WebSocketEndpoint(in), in)
	}
	assert.True(t, strings.HasPrefix(WebSocketEndpoint("wss://x"), "wss://"))
}

func TestNewClient_UnsupportedProtocol(t *testing.T) {
	_, err := NewClient(&Config{Protocol: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestLedgerClient_StatusesAndBalance(t *testing.T) {
	addr := types.MustParseAddress("AddressLookupTab1e1111111111111111111111111")
	srv, seen := rpcServer(t, map[string]string{
		"getSignatureStatuses": `{"jsonrpc":"2.0","result":{"context":{"slot":9},"value":[
			{"slot":8,"confirmations":null,"err":null,"confirmationStatus":"finalized"},
			null,
			{"slot":9,"confirmations":1,"err":{"InstructionError":[0,{"Custom":6003}]},"confirmationStatus":"processed"}]},"id":1}`,
		"getBalance":     `{"jsonrpc":"2.0","result":{"context":{"slot":9},"value":2500},"id":1}`,
		"requestAirdrop": `{"jsonrpc":"2.0","result":"airdrop-sig","id":1}`,
	})
	c := newTestLedger(t, srv.URL)
	ctx := context.Background()

	statuses, err := c.GetSignatureStatuses(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Reached(CommitmentConfirmed))
	assert.Nil(t, statuses[0].Err)
	assert.Nil(t, statuses[1])
	assert.False(t, statuses[2].Reached(CommitmentConfirmed))
	require.NotNil(t, statuses[2].Err)
	assert.True(t, statuses[2].Err.HasCode(6003))

	_, err = c.GetSignatureStatuses(ctx, []string{"a"})
	assert.Error(t, err)

	balance, err := c.GetBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), balance)

	sig, err := c.RequestAirdrop(ctx, addr, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, "airdrop-sig", sig)
	assert.Equal(t, "requestAirdrop", (*seen)[len(*seen)-1].Method)
}
