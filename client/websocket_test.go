package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketClient_DropSubscription(t *testing.T) {
	keep := make(chan json.RawMessage, 1)
	drop := make(chan json.RawMessage, 1)
	c := &websocketClient{subs: map[uint64]chan json.RawMessage{1: keep, 2: drop}}

	assert.Equal(t, []uint64{2}, c.dropSubscription(drop))
	assert.Len(t, c.subs, 1)
	assert.Contains(t, c.subs, uint64(1))
	assert.Empty(t, c.dropSubscription(drop))
}

func TestWebSocketClient_FailedSubscribeLeavesNoRegistration(t *testing.T) {
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
			// 订阅 ID 取请求 ID，保证每次订阅唯一
			var result interface{} = true
			if strings.HasSuffix(req.Method, "Subscribe") {
				result = req.ID
			}
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": result, "id": req.ID})
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cli, err := NewWebSocketClient(cfg)
	require.NoError(t, err)
	defer cli.Close()
	c := cli.(*websocketClient)

	// 截止时间与响应竞争：部分订阅成功，部分在登记后才超时
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%20)*10*time.Microsecond)
		_, _ = c.Subscribe(ctx, "slotSubscribe", nil, "slotUnsubscribe")
		cancel()
	}

	assert.Eventually(t, func() bool {
		c.muReq.Lock()
		defer c.muReq.Unlock()
		return len(c.subs) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
