package intent

import (
	"github.com/weisyn/smart-account-sdk-go/types"
)

// Permission 合并后的地址权限裁决
type Permission struct {
	Address     types.Address
	IsSigner    bool
	IsWritable  bool
	Occurrences int // 在全部步骤中出现的次数
}

// PermissionSet 以地址为键、保持首次出现顺序的权限表
type PermissionSet struct {
	index   map[types.Address]int
	entries []Permission
}

func newPermissionSet() *PermissionSet {
	return &PermissionSet{index: make(map[types.Address]int)}
}

// Lookup 查询地址的合并裁决
func (s *PermissionSet) Lookup(addr types.Address) (Permission, bool) {
	if s == nil {
		return Permission{}, false
	}
	i, ok := s.index[addr]
	if !ok {
		return Permission{}, false
	}
	return s.entries[i], true
}

// Len 地址数量
func (s *PermissionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries 按首次出现顺序返回全部裁决（副本）
func (s *PermissionSet) Entries() []Permission {
	if s == nil {
		return nil
	}
	out := make([]Permission, len(s.entries))
	copy(out, s.entries)
	return out
}

// Resolver 权限合并器
//
// 同一地址在所有步骤中的 signer/writable 取逻辑或。
// 金库地址例外：signer 恒为 false，writable 由 VaultWritable 决定，不受任何步骤局部值影响。
type Resolver struct {
	VaultAddress  types.Address
	VaultWritable bool
}

// NewResolver 创建权限合并器（金库默认可写）
func NewResolver(vault types.Address) *Resolver {
	return &Resolver{
		VaultAddress:  vault,
		VaultWritable: true,
	}
}

// Resolve 合并所有步骤的账户权限，并返回使用合并裁决重建的步骤
//
// 输入步骤不会被修改
func (r *Resolver) Resolve(steps []OperationStep) (*PermissionSet, []OperationStep, error) {
	set := newPermissionSet()

	// 第一遍：按步骤顺序合并
	for _, step := range steps {
		for _, ref := range step.Accounts {
			r.merge(set, ref)
		}
	}

	// 第二遍：用最终裁决替换局部标志
	resolved := make([]OperationStep, len(steps))
	for i, step := range steps {
		accounts := make([]AccountReference, len(step.Accounts))
		for j, ref := range step.Accounts {
			perm, ok := set.Lookup(ref.Address)
			if !ok || perm.Occurrences == 0 {
				return nil, nil, types.NewError(types.KindPermissionConflict,
					"no merged permission for "+ref.Address.String(), nil)
			}
			accounts[j] = AccountReference{
				Address:    ref.Address,
				IsSigner:   perm.IsSigner,
				IsWritable: perm.IsWritable,
			}
		}
		payload := make([]byte, len(step.Payload))
		copy(payload, step.Payload)
		resolved[i] = OperationStep{
			TargetID: step.TargetID,
			Accounts: accounts,
			Payload:  payload,
		}
	}

	return set, resolved, nil
}

// merge 合并一次地址出现
func (r *Resolver) merge(set *PermissionSet, ref AccountReference) {
	i, seen := set.index[ref.Address]
	if !seen {
		i = len(set.entries)
		set.index[ref.Address] = i
		set.entries = append(set.entries, Permission{Address: ref.Address})
	}

	perm := &set.entries[i]
	perm.Occurrences++

	if ref.Address == r.VaultAddress {
		perm.IsSigner = false
		perm.IsWritable = r.VaultWritable
		return
	}

	perm.IsSigner = perm.IsSigner || ref.IsSigner
	perm.IsWritable = perm.IsWritable || ref.IsWritable
}
