package lookuptable

import (
	"context"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// txBuilder 由 FeePayer 单独签名的管理交易
type txBuilder struct {
	client client.LedgerClient
}

// submit 编译、签名并发送一笔传统消息交易，返回交易签名
func (b *txBuilder) submit(ctx context.Context, payer *wallet.FeePayer, ixs []types.Instruction) (string, error) {
	// 1. 获取最新区块哈希
	blockhash, err := b.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	// 2. 编译消息
	msg, err := message.Compile(message.CompileInput{
		Payer:           payer.Address(),
		Instructions:    ixs,
		RecentBlockhash: blockhash.Hash,
	})
	if err != nil {
		return "", fmt.Errorf("compile message: %w", err)
	}

	// 3. 签名
	tx := message.NewTransaction(msg)
	if err := tx.Sign(payer); err != nil {
		return "", err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}

	// 4. 发送
	return b.client.SendTransaction(ctx, raw)
}
