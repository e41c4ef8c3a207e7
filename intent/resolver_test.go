package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/types"
)

func TestResolve_LogicalOrAcrossSteps(t *testing.T) {
	vault := addr(0x11)
	shared := addr(0x22)
	readonly := addr(0x33)

	steps := []OperationStep{
		{TargetID: addr(0x44), Accounts: []AccountReference{{Address: shared, IsWritable: true}, {Address: readonly}}},
		{TargetID: addr(0x45), Accounts: []AccountReference{{Address: readonly}, {Address: shared, IsSigner: true}}},
		{TargetID: addr(0x46), Accounts: []AccountReference{{Address: shared}}},
	}

	set, resolved, err := NewResolver(vault).Resolve(steps)
	require.NoError(t, err)

	perm, ok := set.Lookup(shared)
	require.True(t, ok)
	assert.True(t, perm.IsSigner)
	assert.True(t, perm.IsWritable)
	assert.Equal(t, 3, perm.Occurrences)

	// 每一次出现都使用合并后的裁决
	for _, step := range resolved {
		for _, ref := range step.Accounts {
			if ref.Address == shared {
				assert.True(t, ref.IsSigner)
				assert.True(t, ref.IsWritable)
			}
			if ref.Address == readonly {
				assert.False(t, ref.IsSigner)
				assert.False(t, ref.IsWritable)
			}
		}
	}

	// 输入不被修改
	assert.False(t, steps[0].Accounts[0].IsSigner)
	assert.False(t, steps[2].Accounts[0].IsWritable)
}

func TestResolve_FirstSeenOrder(t *testing.T) {
	steps := []OperationStep{
		{TargetID: addr(0x44), Accounts: []AccountReference{{Address: addr(0x03)}, {Address: addr(0x01)}}},
		{TargetID: addr(0x44), Accounts: []AccountReference{{Address: addr(0x02)}, {Address: addr(0x03)}}},
	}

	set, _, err := NewResolver(addr(0x11)).Resolve(steps)
	require.NoError(t, err)

	entries := set.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []types.Address{addr(0x03), addr(0x01), addr(0x02)},
		[]types.Address{entries[0].Address, entries[1].Address, entries[2].Address})
	assert.Equal(t, 3, set.Len())
}

func TestResolve_VaultFlagFromConfiguration(t *testing.T) {
	vault := addr(0x11)
	resolver := &Resolver{VaultAddress: vault, VaultWritable: false}

	steps := []OperationStep{
		{TargetID: addr(0x44), Accounts: []AccountReference{{Address: vault, IsSigner: true, IsWritable: true}}},
	}

	_, resolved, err := resolver.Resolve(steps)
	require.NoError(t, err)
	assert.Equal(t, AccountReference{Address: vault}, resolved[0].Accounts[0])
}

func TestPermissionSet_NilSafe(t *testing.T) {
	var set *PermissionSet
	_, ok := set.Lookup(addr(0x01))
	assert.False(t, ok)
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, set.Entries())
}
