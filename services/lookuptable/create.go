package lookuptable

import (
	"context"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/utils"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// defaultExtendChunkSize 单笔扩展交易的地址数
const defaultExtendChunkSize = 20

// create 创建查找表
func (s *lookupTableService) create(ctx context.Context, req *CreateRequest, payers ...*wallet.FeePayer) (*CreateResult, error) {
	// 1. 参数验证
	if req == nil {
		req = &CreateRequest{}
	}
	payer := s.getPayer(payers...)
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}

	// 2. 以最近槽位派生表地址
	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	ix, table, err := program.CreateLookupTable(payer.Address(), payer.Address(), slot)
	if err != nil {
		return nil, err
	}

	// 3. 发送创建交易
	sig, err := s.builder.submit(ctx, payer, []types.Instruction{ix})
	if err != nil {
		return nil, fmt.Errorf("create lookup table: %w", err)
	}
	s.logger.Info("lookup table created", "table", table.String(), "slot", slot, "signature", sig)

	result := &CreateResult{Table: table, Signature: sig}

	// 4. 可选扩展
	if len(req.Addresses) > 0 {
		ext, err := s.extend(ctx, &ExtendRequest{Table: table, Addresses: req.Addresses}, payer)
		if err != nil {
			return result, err
		}
		result.ExtendSignatures = ext.Signatures
	}

	// 5. 可选等待激活
	if req.WaitActive {
		loaded, err := s.waitActive(ctx, table)
		if err != nil {
			return result, err
		}
		result.Loaded = loaded
	}
	return result, nil
}

// extend 扩展查找表
func (s *lookupTableService) extend(ctx context.Context, req *ExtendRequest, payers ...*wallet.FeePayer) (*ExtendResult, error) {
	// 1. 参数验证
	if err := validateExtendRequest(req); err != nil {
		return nil, err
	}
	payer := s.getPayer(payers...)
	if payer == nil {
		return nil, fmt.Errorf("fee payer is required")
	}

	chunkSize := s.config.LookupTable.ExtendChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultExtendChunkSize
	}

	// 2. 按块顺序发送，表内索引与追加顺序一致
	result := &ExtendResult{}
	for i, chunk := range utils.BatchArray(req.Addresses, chunkSize) {
		ix := program.ExtendLookupTable(req.Table, payer.Address(), payer.Address(), chunk)
		sig, err := s.builder.submit(ctx, payer, []types.Instruction{ix})
		if err != nil {
			return result, fmt.Errorf("extend lookup table chunk %d: %w", i, err)
		}
		s.logger.Debug("lookup table extended", "table", req.Table.String(), "chunk", i, "addresses", len(chunk))
		result.Signatures = append(result.Signatures, sig)
	}
	return result, nil
}

func validateExtendRequest(req *ExtendRequest) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.Table.IsZero() {
		return fmt.Errorf("table address is required")
	}
	if len(req.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	seen := make(map[types.Address]struct{}, len(req.Addresses))
	for _, a := range req.Addresses {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("duplicate address %s", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
