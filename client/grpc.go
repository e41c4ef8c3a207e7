package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCCallMethod 网关暴露的一元 JSON-RPC 方法
const GRPCCallMethod = "/ledger.v1.JSONRPC/Call"

// jsonCodec 以 JSON 作为 gRPC 载荷编码，网关无需生成的 protobuf 桩代码
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }

// grpcClient gRPC 客户端实现（JSON-RPC 信封经一元调用桥接）
type grpcClient struct {
	conn     *grpc.ClientConn
	endpoint string
	retry    *RetryConfig
	nextID   atomic.Uint64
}

// NewGRPCClient 创建 gRPC 客户端
func NewGRPCClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "http://"), "https://")

	creds := insecure.NewCredentials()
	if config.TLS != nil {
		tlsConfig, err := buildTLSConfig(config.TLS)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.timeout())
	defer cancel()

	conn, err := grpc.DialContext(ctx, endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial gRPC: %w", err))
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}

	return &grpcClient{conn: conn, endpoint: endpoint, retry: retryConfig}, nil
}

// Call 调用 JSON-RPC 方法（通过 gRPC 一元调用）
func (c *grpcClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req := &jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)}

	var resp jsonRPCResponse
	err := withRetry(ctx, func() error {
		err := c.conn.Invoke(ctx, GRPCCallMethod, req, &resp)
		switch status.Code(err) {
		case codes.OK:
			return nil
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return NewNetworkError(err)
		default:
			return &Error{Code: ErrCodeInvalidResponse, Message: "gRPC gateway error", Err: err}
		}
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("gRPC call %s: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error.toError()
	}
	return resp.Result, nil
}

// Subscribe gRPC 网关不提供订阅
func (c *grpcClient) Subscribe(ctx context.Context, method string, params interface{}, unsubscribeMethod string) (<-chan json.RawMessage, error) {
	return nil, NewNotSupportedError("subscription over gRPC, use WebSocket client instead")
}

// Close 关闭连接
func (c *grpcClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
