// Command intentctl 是智能账户意图 SDK 的离线与联机工具：
// 派生地址、编码意图、构建 Merkle 证明、解析交易、管理密钥库，
// 以及查询 nonce、交易状态和订阅引擎事件。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
)

var (
	configPath string
	programID  string
	verbose    bool

	cfg    *services.Config
	logger client.Logger

	// newLedger 创建账本客户端，测试中替换为内存账本
	newLedger = func() (client.LedgerClient, error) {
		return client.NewLedgerClient(cfg.ClientConfig(logger))
	}
)

var rootCmd = &cobra.Command{
	Use:           "intentctl",
	Short:         "Smart-account intent tooling",
	Long:          `Derive smart-account addresses, encode intents, build Merkle proofs and inspect transactions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&programID, "program-id", "", "Engine program id (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(merkleCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(nonceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup 加载配置与日志
func setup() error {
	var err error
	if configPath != "" {
		cfg, err = services.LoadConfig(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = services.DefaultConfig()
	}
	if programID != "" {
		cfg.EngineProgramID = programID
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = client.NewZapLogger(zl)
	} else {
		logger = client.NopLogger()
	}
	cfg.Logger = logger
	return nil
}

func engineProgramID() types.Address {
	id, err := cfg.ProgramID()
	if err != nil {
		// setup 已校验
		panic(err)
	}
	return id
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
