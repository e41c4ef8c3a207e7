// Package integration 连接真实账本节点的集成测试辅助。
//
// 未设置 SMART_ACCOUNT_NODE 时所有集成测试跳过。
package integration

import (
	"context"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

const (
	// EnvNodeEndpoint 节点端点，例如 http://127.0.0.1:8899
	EnvNodeEndpoint = "SMART_ACCOUNT_NODE"
	// EnvProgramID 已部署的引擎程序 ID（可选，默认使用配置中的程序 ID）
	EnvProgramID = "SMART_ACCOUNT_PROGRAM_ID"
	// EnvAccountID 已创建的智能账户 ID（hex）
	EnvAccountID = "SMART_ACCOUNT_ID"
	// EnvPasskey 智能账户绑定的 P-256 私钥（hex）
	EnvPasskey = "SMART_ACCOUNT_PASSKEY"

	// DefaultTimeout 默认超时时间
	DefaultTimeout = 30 * time.Second
	// TransactionConfirmTimeout 交易确认超时时间
	TransactionConfirmTimeout = 60 * time.Second
	// TransactionConfirmInterval 交易确认轮询间隔
	TransactionConfirmInterval = 500 * time.Millisecond
	// DefaultFunding 每个测试费用支付者的空投金额
	DefaultFunding = 2_000_000_000
)

// TestConfig 返回指向测试节点的 SDK 配置；节点未配置时跳过测试
func TestConfig(t *testing.T) *services.Config {
	t.Helper()
	endpoint := os.Getenv(EnvNodeEndpoint)
	if endpoint == "" {
		t.Skipf("%s 未设置，跳过集成测试", EnvNodeEndpoint)
	}

	cfg := services.DefaultConfig()
	cfg.Node.Endpoint = endpoint
	cfg.Node.TimeoutSeconds = int(DefaultTimeout.Seconds())
	if id := os.Getenv(EnvProgramID); id != "" {
		cfg.EngineProgramID = id
	}
	require.NoError(t, cfg.Validate(), "测试配置无效")
	return cfg
}

// SetupTestLedger 连接节点并确认其可用
func SetupTestLedger(t *testing.T) (client.LedgerClient, *services.Config) {
	t.Helper()
	cfg := TestConfig(t)

	ledger, err := client.NewLedgerClient(cfg.ClientConfig(client.NopLogger()))
	require.NoError(t, err, "创建账本客户端失败")
	t.Cleanup(func() {
		if err := ledger.Close(); err != nil {
			t.Logf("关闭客户端时出现警告: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = ledger.GetSlot(ctx)
	require.NoError(t, err, "节点未运行: %s", cfg.Node.Endpoint)

	return ledger, cfg
}

// CreateFundedFeePayer 创建费用支付者并通过空投充值
func CreateFundedFeePayer(t *testing.T, ledger client.LedgerClient) *wallet.FeePayer {
	t.Helper()
	payer, err := wallet.NewFeePayer()
	require.NoError(t, err, "创建费用支付者失败")

	ctx, cancel := context.WithTimeout(context.Background(), TransactionConfirmTimeout)
	defer cancel()

	sig, err := ledger.RequestAirdrop(ctx, payer.Address(), DefaultFunding)
	require.NoError(t, err, "空投失败（节点可能不支持 requestAirdrop）")
	WaitForSignature(t, ledger, sig)

	balance, err := ledger.GetBalance(ctx, payer.Address())
	require.NoError(t, err)
	require.GreaterOrEqual(t, balance, uint64(DefaultFunding), "空投后余额不足")
	t.Logf("费用支付者已充值: %s (%d)", payer.Address(), balance)
	return payer
}

// TestSmartAccount 读取预先创建的智能账户；未配置时跳过
func TestSmartAccount(t *testing.T) ([]byte, wallet.Credential) {
	t.Helper()
	idHex, keyHex := os.Getenv(EnvAccountID), os.Getenv(EnvPasskey)
	if idHex == "" || keyHex == "" {
		t.Skipf("%s 或 %s 未设置，跳过智能账户测试", EnvAccountID, EnvPasskey)
	}
	accountID, err := hex.DecodeString(idHex)
	require.NoError(t, err, "账户 ID 不是有效的 hex")
	credential, err := wallet.NewPasskeyCredentialFromHex(keyHex)
	require.NoError(t, err, "passkey 私钥无效")
	return accountID, credential
}

// RandomAddress 返回一个新的随机地址
func RandomAddress(t *testing.T) types.Address {
	t.Helper()
	kp, err := wallet.NewFeePayer()
	require.NoError(t, err)
	return kp.Address()
}
