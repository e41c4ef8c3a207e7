package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/types"
)

func TestPack_AccountCountInvariant(t *testing.T) {
	vault := addr(0x11)
	in := &Intent{
		Nonce: 1,
		Steps: []OperationStep{
			{TargetID: types.ZeroAddress, Accounts: []AccountReference{{Address: vault, IsWritable: true}, {Address: addr(0x22), IsWritable: true}}, Payload: transferPayload(10)},
			{TargetID: addr(0x44), Payload: []byte{0xaa}},
			{TargetID: addr(0x45), Accounts: []AccountReference{{Address: addr(0x22)}, {Address: addr(0x33), IsSigner: true}, {Address: vault}}, Payload: []byte{0xbb, 0xcc}},
		},
	}

	encoded, err := NewEncoder(vault).Encode(in)
	require.NoError(t, err)

	pkg, err := PackEncoded(encoded)
	require.NoError(t, err)
	require.Len(t, pkg.Operations, 3)

	for i, op := range pkg.Operations {
		assert.Equal(t, uint8(1+len(encoded.Steps[i].Accounts)), op.AccountCount)
	}
	assert.Equal(t, pkg.TotalAccounts(), len(pkg.RemainingAccounts))
	assert.Equal(t, 3+1+4, len(pkg.RemainingAccounts))

	// 目标程序占每个窗口的首位
	assert.Equal(t, types.ZeroAddress, pkg.RemainingAccounts[0].Address)
	assert.Equal(t, addr(0x44), pkg.RemainingAccounts[3].Address)
	assert.Equal(t, addr(0x45), pkg.RemainingAccounts[4].Address)

	// 重复地址在平铺列表中使用合并裁决
	assert.True(t, pkg.RemainingAccounts[2].IsWritable)
	assert.True(t, pkg.RemainingAccounts[5].IsWritable)
}

func TestUnpack_RebuildsStepsAndHash(t *testing.T) {
	vault := addr(0x11)
	in := &Intent{
		Nonce:     9,
		FeeAmount: 5000,
		Steps: []OperationStep{
			{TargetID: addr(0x44), Accounts: []AccountReference{{Address: vault}, {Address: addr(0x22), IsWritable: true}}, Payload: []byte{1, 2, 3}},
			{TargetID: addr(0x45), Accounts: []AccountReference{{Address: addr(0x22)}}, Payload: []byte{4}},
		},
	}

	enc := NewEncoder(vault)
	encoded, err := enc.Encode(in)
	require.NoError(t, err)

	pkg, err := PackEncoded(encoded)
	require.NoError(t, err)

	steps, err := pkg.Steps()
	require.NoError(t, err)

	// 由执行包重算的意图哈希与原始编码一致
	again, err := enc.Encode(&Intent{Nonce: in.Nonce, FeeAmount: in.FeeAmount, Steps: steps})
	require.NoError(t, err)
	assert.Equal(t, encoded.Hash(), again.Hash())

	windows, err := Unpack(pkg)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, []byte{4}, windows[1].Payload)
	assert.Equal(t, addr(0x45), windows[1].Target.Address)
	require.Len(t, windows[1].Accounts, 1)
}

func TestUnpack_Mismatch(t *testing.T) {
	pkg := &ExecutionPackage{
		Operations:        []DeconstructedOperation{{AccountCount: 3}},
		RemainingAccounts: []AccountReference{{Address: addr(0x44)}},
	}
	_, err := Unpack(pkg)
	assert.Error(t, err)

	pkg = &ExecutionPackage{
		Operations:        []DeconstructedOperation{{AccountCount: 0}},
		RemainingAccounts: nil,
	}
	_, err = Unpack(pkg)
	assert.Error(t, err)
}

func TestPack_TooManyAccounts(t *testing.T) {
	accounts := make([]AccountReference, MaxAccountsPerStep+1)
	for i := range accounts {
		accounts[i] = AccountReference{Address: addr(byte(i%200 + 1))}
	}
	_, err := Pack([]OperationStep{{TargetID: addr(0x44), Accounts: accounts}}, nil)
	assert.ErrorIs(t, err, types.ErrEncoding)
}
