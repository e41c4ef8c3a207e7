package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// Config 统一的业务服务配置，为执行服务与查找表服务提供引擎地址、重试与压缩参数。
//
// **说明**：
// - 所有字段均为可选，零值使用 DefaultConfig 中的默认值
// - 可由 YAML 文件加载（LoadConfig），命令行工具通过 --config 传入
type Config struct {
	// Node 账本节点连接参数
	Node NodeConfig `yaml:"node"`

	// EngineProgramID 引擎程序地址（base58，空表示默认）
	EngineProgramID string `yaml:"engine_program_id"`

	// VaultReadOnly 金库在意图中以只读身份出现（默认可写）
	VaultReadOnly bool `yaml:"vault_read_only"`

	// MaxPayloadSize 单步载荷上限（字节）
	MaxPayloadSize int `yaml:"max_payload_size"`

	// ComputeUnitLimit / ComputeUnitPrice 非零时在交易前添加计算预算指令
	ComputeUnitLimit uint32 `yaml:"compute_unit_limit"`
	ComputeUnitPrice uint64 `yaml:"compute_unit_price"`

	// NonceRetries 引擎返回 InvalidNonce 时重新读取 nonce 并重签的次数
	NonceRetries int `yaml:"nonce_retries"`

	// OptimisticWindowSlots 乐观验证窗口长度（槽位数）
	OptimisticWindowSlots uint64 `yaml:"optimistic_window_slots"`

	// SimulateBeforeSubmit 提交前先模拟
	SimulateBeforeSubmit bool `yaml:"simulate_before_submit"`

	// LookupTable 查找表参数
	LookupTable LookupTableConfig `yaml:"lookup_table"`

	// Confirmation 交易确认等待参数
	Confirmation ConfirmationConfig `yaml:"confirmation"`

	// KeystoreDir 密钥库目录
	KeystoreDir string `yaml:"keystore_dir"`

	// Logger 日志器（可选，不从文件加载）
	Logger client.Logger `yaml:"-"`
}

// ConfirmationConfig 交易确认参数
type ConfirmationConfig struct {
	// Level 等待达到的确认级别（processed / confirmed / finalized）
	Level        string        `yaml:"level"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NodeConfig 节点连接参数
type NodeConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Protocol       string `yaml:"protocol"`
	Commitment     string `yaml:"commitment"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Debug          bool   `yaml:"debug"`
}

// LookupTableConfig 查找表参数
type LookupTableConfig struct {
	// ActivationTimeout 等待表激活的上限
	ActivationTimeout time.Duration `yaml:"activation_timeout"`
	// PollInterval 轮询槽位的间隔
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxPollAttempts 观测槽位的次数上限（轮询或订阅通知）
	MaxPollAttempts int `yaml:"max_poll_attempts"`
	// ExtendChunkSize 单笔扩展交易携带的地址数
	ExtendChunkSize int `yaml:"extend_chunk_size"`
	// UseSubscription 使用槽位订阅代替轮询（需要 WebSocket 节点）
	UseSubscription bool `yaml:"use_subscription"`
	// LoadConcurrency 并发读取表账户的批次数
	LoadConcurrency int `yaml:"load_concurrency"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Endpoint:       "http://localhost:8899",
			Protocol:       string(client.ProtocolHTTP),
			Commitment:     string(client.CommitmentConfirmed),
			TimeoutSeconds: 30,
		},
		MaxPayloadSize:        1024,
		NonceRetries:          2,
		OptimisticWindowSlots: 150,
		SimulateBeforeSubmit:  true,
		LookupTable: LookupTableConfig{
			ActivationTimeout: 20 * time.Second,
			PollInterval:      400 * time.Millisecond,
			MaxPollAttempts:   50,
			ExtendChunkSize:   20,
			LoadConcurrency:   4,
		},
		Confirmation: ConfirmationConfig{
			Level:        string(client.CommitmentConfirmed),
			Timeout:      60 * time.Second,
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// LoadConfig 从 YAML 文件加载配置，缺省字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 配置
//
// 未知字段视为错误；挑战信封由引擎固定，不接受配置
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("max_payload_size must not be negative")
	}
	if c.NonceRetries < 0 {
		return fmt.Errorf("nonce_retries must not be negative")
	}
	if c.LookupTable.MaxPollAttempts < 0 {
		return fmt.Errorf("lookup_table.max_poll_attempts must not be negative")
	}
	if c.LookupTable.ExtendChunkSize < 0 || c.LookupTable.ExtendChunkSize > 30 {
		return fmt.Errorf("lookup_table.extend_chunk_size must be between 0 and 30")
	}
	switch client.Commitment(c.Confirmation.Level) {
	case "", client.CommitmentProcessed, client.CommitmentConfirmed, client.CommitmentFinalized:
	default:
		return fmt.Errorf("confirmation.level must be processed, confirmed or finalized")
	}
	return nil
}

// ProgramID 引擎程序地址
func (c *Config) ProgramID() (types.Address, error) {
	if c.EngineProgramID == "" {
		return program.DefaultEngineProgramID, nil
	}
	id, err := types.ParseAddress(c.EngineProgramID)
	if err != nil {
		return types.Address{}, fmt.Errorf("engine_program_id: %w", err)
	}
	return id, nil
}

// ClientConfig 转换为客户端配置
func (c *Config) ClientConfig(logger client.Logger) *client.Config {
	cc := client.DefaultConfig()
	if c.Node.Endpoint != "" {
		cc.Endpoint = c.Node.Endpoint
	}
	if c.Node.Protocol != "" {
		cc.Protocol = client.Protocol(c.Node.Protocol)
	}
	if c.Node.Commitment != "" {
		cc.Commitment = client.Commitment(c.Node.Commitment)
	}
	if c.Node.TimeoutSeconds > 0 {
		cc.Timeout = c.Node.TimeoutSeconds
	}
	cc.Debug = c.Node.Debug
	cc.Logger = logger
	return cc
}

// Log 返回配置的日志器；未设置时丢弃日志
func (c *Config) Log() client.Logger {
	if c == nil || c.Logger == nil {
		return client.NopLogger()
	}
	return c.Logger
}
