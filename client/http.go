package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

// httpClient HTTP客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	httpCli := &http.Client{Timeout: config.timeout()}
	if config.TLS != nil {
		tlsConfig, err := buildTLSConfig(config.TLS)
		if err != nil {
			return nil, err
		}
		httpCli.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	logger := config.logger()
	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("Retrying request", "attempt", attempt, "delay", delay, "error", err)
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   httpCli,
		logger:   logger,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// buildTLSConfig 由文件路径构建 TLS 配置
func buildTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.Insecure} //nolint:gosec // 仅开发环境
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Call 调用JSON-RPC方法
func (c *httpClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	reqBody, err := json.Marshal(&jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	if c.debug {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	var (
		status   int
		respBody []byte
	)
	err = withRetry(ctx, func() error {
		// 每次重试都创建新的请求（Body 只能读取一次）
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return NewNetworkError(reqErr)
		}
		defer func() {
			if cerr := httpResp.Body.Close(); cerr != nil {
				c.logger.Warn("Failed to close response body", "error", cerr)
			}
		}()

		if isRetryableHTTPError(httpResp.StatusCode) {
			return NewNetworkError(fmt.Errorf("HTTP error: %d", httpResp.StatusCode))
		}

		body, reqErr := io.ReadAll(httpResp.Body)
		if reqErr != nil {
			return NewNetworkError(fmt.Errorf("read response failed: %w", reqErr))
		}
		status, respBody = httpResp.StatusCode, body
		return nil
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}

	if c.debug {
		c.logger.Debug("JSON-RPC response", "status", status, "body", string(respBody))
	}

	if status != http.StatusOK {
		return nil, NewInvalidResponseError(fmt.Sprintf("HTTP error: %d, body: %s", status, string(respBody)))
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("unmarshal response failed: %v", err))
	}
	if jsonResp.Error != nil {
		return nil, jsonResp.Error.toError()
	}
	return jsonResp.Result, nil
}

// Subscribe HTTP不支持订阅，需要使用WebSocket
func (c *httpClient) Subscribe(ctx context.Context, method string, params interface{}, unsubscribeMethod string) (<-chan json.RawMessage, error) {
	return nil, NewNotSupportedError("subscription over HTTP, use WebSocket client instead")
}

// Close 关闭连接（HTTP客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
