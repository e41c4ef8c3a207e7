package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// websocketClient WebSocket 客户端实现
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	timeout  time.Duration
	logger   Logger

	writeMu sync.Mutex
	closed  atomic.Bool
	nextID  atomic.Uint64

	muReq    sync.Mutex
	requests map[uint64]*pendingCall
	subs     map[uint64]chan json.RawMessage
}

// pendingCall 等待响应的请求；sub 非空表示订阅请求，
// 由读循环在收到订阅 ID 时立即登记，避免丢失紧随其后的通知
type pendingCall struct {
	resp chan *jsonRPCResponse
	sub  chan json.RawMessage
}

// wsMessage 响应或订阅通知
type wsMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonRPCError   `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Result       json.RawMessage `json:"result"`
		Subscription uint64          `json:"subscription"`
	} `json:"params,omitempty"`
}

// WebSocketEndpoint 将 http(s) 端点转换为 ws(s)
func WebSocketEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	default:
		return "ws://" + endpoint
	}
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := WebSocketEndpoint(config.Endpoint)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if config.TLS != nil {
		tlsConfig, err := buildTLSConfig(config.TLS)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsConfig
	}

	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	client := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		timeout:  config.timeout(),
		logger:   config.logger(),
		requests: make(map[uint64]*pendingCall),
		subs:     make(map[uint64]chan json.RawMessage),
	}

	go client.readLoop()
	return client, nil
}

// readLoop 消息读取循环：响应按 ID 分发，通知按订阅 ID 分发
func (c *websocketClient) readLoop() {
	defer c.shutdown()

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !c.closed.Load() {
				c.logger.Warn("websocket read failed", "endpoint", c.endpoint, "error", err)
			}
			return
		}

		if msg.ID != nil {
			c.muReq.Lock()
			pending, ok := c.requests[*msg.ID]
			delete(c.requests, *msg.ID)
			if ok && pending.sub != nil && msg.Error == nil {
				var subID uint64
				if json.Unmarshal(msg.Result, &subID) == nil {
					c.subs[subID] = pending.sub
				}
			}
			c.muReq.Unlock()
			if ok {
				pending.resp <- &jsonRPCResponse{Result: msg.Result, Error: msg.Error, ID: *msg.ID}
			}
			continue
		}

		if msg.Params == nil {
			continue
		}
		// 持锁发送，避免与退订时的 close 竞争；发送不阻塞
		c.muReq.Lock()
		if ch, ok := c.subs[msg.Params.Subscription]; ok {
			select {
			case ch <- msg.Params.Result:
			default:
				// 消费方过慢时丢弃通知
				c.logger.Debug("dropping subscription notification", "method", msg.Method, "subscription", msg.Params.Subscription)
			}
		}
		c.muReq.Unlock()
	}
}

// shutdown 连接断开后释放所有等待者
func (c *websocketClient) shutdown() {
	c.closed.Store(true)
	c.muReq.Lock()
	defer c.muReq.Unlock()
	for id, pending := range c.requests {
		close(pending.resp)
		delete(c.requests, id)
	}
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.call(ctx, method, params, nil)
}

func (c *websocketClient) call(ctx context.Context, method string, params interface{}, sub chan json.RawMessage) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, NewNetworkError(fmt.Errorf("websocket client is closed"))
	}

	reqID := c.nextID.Add(1)
	respCh := make(chan *jsonRPCResponse, 1)
	c.muReq.Lock()
	c.requests[reqID] = &pendingCall{resp: respCh, sub: sub}
	c.muReq.Unlock()

	forget := func() {
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
	}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(&jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: reqID})
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, NewNetworkError(fmt.Errorf("connection closed while waiting for %s", method))
		}
		if resp.Error != nil {
			return nil, resp.Error.toError()
		}
		return resp.Result, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-timer.C:
		forget()
		return nil, NewTimeoutError()
	}
}

// Subscribe 订阅；ctx 结束时调用 unsubscribeMethod 并关闭通道
func (c *websocketClient) Subscribe(ctx context.Context, method string, params interface{}, unsubscribeMethod string) (<-chan json.RawMessage, error) {
	ch := make(chan json.RawMessage, 16)
	raw, err := c.call(ctx, method, params, ch)
	if err != nil {
		// 读循环可能已在超时前登记了订阅
		for _, id := range c.dropSubscription(ch) {
			go c.unsubscribe(unsubscribeMethod, id)
		}
		return nil, fmt.Errorf("subscribe %s: %w", method, err)
	}
	var subID uint64
	if err := json.Unmarshal(raw, &subID); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("invalid subscription id: %s", string(raw)))
	}

	go func() {
		<-ctx.Done()
		c.muReq.Lock()
		_, live := c.subs[subID]
		delete(c.subs, subID)
		if live {
			close(ch)
		}
		c.muReq.Unlock()

		if live {
			c.unsubscribe(unsubscribeMethod, subID)
		}
	}()

	return ch, nil
}

// dropSubscription 移除指向 ch 的订阅登记，返回被移除的订阅 ID
func (c *websocketClient) dropSubscription(ch chan json.RawMessage) []uint64 {
	c.muReq.Lock()
	defer c.muReq.Unlock()
	var ids []uint64
	for id, sub := range c.subs {
		if sub == ch {
			delete(c.subs, id)
			ids = append(ids, id)
		}
	}
	return ids
}

// unsubscribe 尽力通知节点退订
func (c *websocketClient) unsubscribe(method string, subID uint64) {
	if method == "" || c.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.Call(ctx, method, []interface{}{subID}); err != nil {
		c.logger.Debug("unsubscribe failed", "method", method, "subscription", subID, "error", err)
	}
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}
