package lookuptable

import (
	"context"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/utils"
)

// load 分块并发读取查找表账户，结果与输入顺序一致
func (s *lookupTableService) load(ctx context.Context, tables []types.Address) ([]*message.LookupTable, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	chunks := utils.BatchArray(tables, maxAccountsPerRead)
	infos, err := utils.ParallelExecute(ctx, chunks, func(ctx context.Context, chunk []types.Address) ([]*client.AccountInfo, error) {
		return s.client.GetMultipleAccounts(ctx, chunk)
	}, s.config.LookupTable.LoadConcurrency)
	if err != nil {
		return nil, fmt.Errorf("load lookup tables: %w", err)
	}

	out := make([]*message.LookupTable, 0, len(tables))
	for ci, chunk := range chunks {
		for i, addr := range chunk {
			var info *client.AccountInfo
			if i < len(infos[ci]) {
				info = infos[ci][i]
			}
			if info == nil {
				return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("lookup table %s not found", addr), nil)
			}
			if info.Owner != program.AddressLookupTableID {
				return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("account %s is not owned by the lookup table program", addr), nil)
			}
			table, err := message.DecodeLookupTable(addr, info.Data)
			if err != nil {
				return nil, err
			}
			out = append(out, table)
		}
	}
	return out, nil
}
