package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
)

// RetryConfig 传输层重试配置
//
// 只覆盖网络层失败；节点返回的 JSON-RPC 错误（含引擎拒绝）由调用方处理。
type RetryConfig struct {
	// MaxRetries 最大重试次数（0 表示不重试）
	MaxRetries int
	// BaseDelay 第一次重试前的退避上限，之后每次翻倍
	BaseDelay time.Duration
	// MaxDelay 单次退避上限
	MaxDelay time.Duration
	// Jitter 在 [0, delay) 内随机取值，避免多个客户端同时重试
	Jitter bool
	// Retryable 判断错误是否可重试（nil 使用 isRetryableError）
	Retryable func(error) bool
	// OnRetry 每次重试前调用
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   4 * time.Second,
		Jitter:     true,
	}
}

// isRetryableError 判断传输层错误是否可重试
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var cliErr *Error
	if errors.As(err, &cliErr) {
		return cliErr.Code == ErrCodeNetwork || cliErr.Code == ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}

// isRetryableHTTPError 5xx 与 429 视为节点过载，可重试
func isRetryableHTTPError(statusCode int) bool {
	return statusCode == 429 || (statusCode >= 500 && statusCode < 600)
}

// backoff 第 attempt 次重试（从 0 开始）的等待时间
func (c *RetryConfig) backoff(attempt int) time.Duration {
	if c.BaseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := c.BaseDelay << attempt
	if delay <= 0 || (c.MaxDelay > 0 && delay > c.MaxDelay) {
		delay = c.MaxDelay
	}
	if !c.Jitter || delay <= 0 {
		return delay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(n.Int64())
}

// withRetry 执行 fn，可重试错误按指数退避重试
func withRetry(ctx context.Context, fn func() error, config *RetryConfig) error {
	if config == nil {
		return fn()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = isRetryableError
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= config.MaxRetries {
			if attempt == 0 {
				return err
			}
			return fmt.Errorf("retry failed after %d attempts: %w", attempt+1, err)
		}

		delay := config.backoff(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
