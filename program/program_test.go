package program

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/types"
)

func addr(b byte) types.Address {
	var a types.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	id := []byte("wallet-1")
	a, bump, err := FindProgramAddress([][]byte{[]byte(SeedVault), id}, DefaultEngineProgramID)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(a))

	// 相同种子 + bump 可直接重算
	again, err := CreateProgramAddress([][]byte{[]byte(SeedVault), id, {bump}}, DefaultEngineProgramID)
	require.NoError(t, err)
	assert.Equal(t, a, again)

	// 手工计算候选地址
	h := sha256.New()
	h.Write([]byte(SeedVault))
	h.Write(id)
	h.Write([]byte{bump})
	h.Write(DefaultEngineProgramID[:])
	h.Write([]byte("ProgramDerivedAddress"))
	assert.Equal(t, h.Sum(nil), a[:])
}

func TestIsOnCurve_PublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var a types.Address
	copy(a[:], pub)
	assert.True(t, IsOnCurve(a))
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, 33)}, DefaultEngineProgramID)
	assert.ErrorIs(t, err, types.ErrEncoding)

	seeds := make([][]byte, 17)
	_, _, err = FindProgramAddress(seeds, DefaultEngineProgramID)
	assert.ErrorIs(t, err, types.ErrEncoding)
}

func TestDeriver(t *testing.T) {
	d := NewDeriver(DefaultEngineProgramID, 4)
	id := []byte("acct")

	all, err := d.All(id)
	require.NoError(t, err)

	vault, bump, err := FindProgramAddress([][]byte{[]byte(SeedVault), id}, DefaultEngineProgramID)
	require.NoError(t, err)
	assert.Equal(t, Derived{Address: vault, Bump: bump}, all.Vault)

	cached, err := d.Vault(id)
	require.NoError(t, err)
	assert.Equal(t, all.Vault, cached)

	distinct := map[types.Address]bool{all.Vault.Address: true, all.State.Address: true, all.Config.Address: true, all.Optimistic.Address: true}
	assert.Len(t, distinct, 4)

	_, err = d.Vault(nil)
	assert.ErrorIs(t, err, types.ErrEncoding)
	_, err = d.State(make([]byte, 33))
	assert.ErrorIs(t, err, types.ErrEncoding)
}

func TestValidateInstruction(t *testing.T) {
	b := NewBuilder(types.ZeroAddress)
	assert.Equal(t, DefaultEngineProgramID, b.ProgramID)

	asset := addr(0x55)
	p := ValidateParams{
		FeePayer: addr(1), State: addr(2), Vault: addr(3), VaultWritable: true, Config: addr(4),
		VerifyIxIndex:     0,
		DigestKind:        DigestMerkleRoot,
		Fee:               15000,
		FeeAsset:          &asset,
		AuthenticatorData: []byte{0xa, 0xb},
		ClientDataJSON:    []byte("{}"),
		Proof:             []types.Hash{types.Hash(addr(9))},
	}

	ix := b.Validate(ModeSmartAccount, p)
	disc := Discriminator(IxValidateExecutionViaSmartAccount)

	var want []byte
	want = append(want, disc[:]...)
	want = append(want, 0, 1)
	want = binary.LittleEndian.AppendUint64(want, 15000)
	want = append(want, 1)
	want = append(want, asset[:]...)
	want = append(want, 2, 0, 0, 0, 0xa, 0xb)
	want = append(want, 2, 0, 0, 0, '{', '}')
	want = append(want, 1, 0, 0, 0)
	nine := addr(9)
	want = append(want, nine[:]...)
	assert.Equal(t, want, ix.Data)

	require.Len(t, ix.Accounts, 5)
	assert.Equal(t, types.NewAccountMeta(addr(1), true, true), ix.Accounts[0])
	assert.Equal(t, types.NewAccountMeta(SysvarInstructionsID, false, false), ix.Accounts[3])
	assert.Equal(t, types.NewAccountMeta(addr(4), false, false), ix.Accounts[4])

	direct := b.Validate(ModeDirect, p)
	assert.Len(t, direct.Accounts, 4)
	d2 := Discriminator(IxValidateExecution)
	assert.Equal(t, d2[:], direct.Data[:8])
}

func TestExecuteInstruction(t *testing.T) {
	pkg := &intent.ExecutionPackage{
		Operations: []intent.DeconstructedOperation{{Payload: []byte{7, 8}, AccountCount: 2}},
		RemainingAccounts: []intent.AccountReference{
			{Address: addr(0x44)},
			{Address: addr(0x22), IsWritable: true},
		},
	}
	ix := NewBuilder(DefaultEngineProgramID).Execute(ExecuteParams{FeePayer: addr(1), State: addr(2), Vault: addr(3), Package: pkg})

	disc := Discriminator(IxExecute)
	want := append(append([]byte{}, disc[:]...), 1, 0, 0, 0, 2, 0, 0, 0, 7, 8, 2)
	assert.Equal(t, want, ix.Data)
	require.Len(t, ix.Accounts, 5)
	assert.Equal(t, addr(0x44), ix.Accounts[3].Address)
	assert.True(t, ix.Accounts[4].IsWritable)
}

func TestOptimisticInstructions(t *testing.T) {
	b := NewBuilder(DefaultEngineProgramID)
	target := types.Hash(addr(0xee))

	ix := b.ValidateOptimistic(ValidateParams{FeePayer: addr(1), State: addr(2), Vault: addr(3)}, addr(5), target, 900)
	tail := ix.Data[len(ix.Data)-40:]
	assert.Equal(t, target[:], tail[:32])
	assert.Equal(t, uint64(900), binary.LittleEndian.Uint64(tail[32:]))
	require.Len(t, ix.Accounts, 6)
	assert.False(t, ix.Accounts[2].IsWritable)
	assert.Equal(t, SystemProgramID, ix.Accounts[5].Address)

	pkg := &intent.ExecutionPackage{Operations: []intent.DeconstructedOperation{{AccountCount: 1}}, RemainingAccounts: []intent.AccountReference{{Address: addr(0x44)}}}
	exec := b.ExecuteOptimistic(ExecuteParams{FeePayer: addr(1), State: addr(2), Vault: addr(3), Package: pkg}, addr(5))
	require.Len(t, exec.Accounts, 6)
	assert.Equal(t, SysvarClockID, exec.Accounts[4].Address)

	post := b.PostExecuteOptimistic(addr(1), addr(5))
	disc := Discriminator(IxPostExecuteOptimistic)
	assert.Equal(t, disc[:], post.Data)
	assert.Len(t, post.Accounts, 2)
}

func TestSecp256r1Verify(t *testing.T) {
	pub := make([]byte, 33)
	pub[0] = 0x02
	sig := make([]byte, 64)
	sig[0] = 0xaa
	msg := []byte("message bytes")

	ix, err := Secp256r1Verify(pub, sig, msg)
	require.NoError(t, err)
	assert.Equal(t, Secp256r1ProgramID, ix.ProgramID)
	assert.Equal(t, byte(1), ix.Data[0])
	assert.Equal(t, uint16(49), binary.LittleEndian.Uint16(ix.Data[2:]))
	assert.Equal(t, uint16(0xFFFF), binary.LittleEndian.Uint16(ix.Data[4:]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(ix.Data[6:]))
	assert.Equal(t, uint16(113), binary.LittleEndian.Uint16(ix.Data[10:]))
	assert.Equal(t, uint16(len(msg)), binary.LittleEndian.Uint16(ix.Data[12:]))

	parsed, err := ParseSecp256r1(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, pub, parsed.PublicKey)
	assert.Equal(t, sig, parsed.Signature)
	assert.Equal(t, msg, parsed.Message)

	_, err = Secp256r1Verify(pub[:32], sig, msg)
	assert.ErrorIs(t, err, types.ErrEncoding)
}

func TestLookupTableInstructions(t *testing.T) {
	ix, table, err := CreateLookupTable(addr(1), addr(2), 77)
	require.NoError(t, err)
	assert.Equal(t, table, ix.Accounts[0].Address)
	assert.Equal(t, []byte{0, 0, 0, 0}, ix.Data[:4])
	assert.Equal(t, uint64(77), binary.LittleEndian.Uint64(ix.Data[4:12]))
	assert.Len(t, ix.Data, 13)

	ext := ExtendLookupTable(table, addr(1), addr(2), []types.Address{addr(7), addr(8)})
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(ext.Data[4:12]))
	assert.Len(t, ext.Data, 12+64)
}

func TestOptimisticWindow_CheckExecutable(t *testing.T) {
	target := types.Hash(addr(0xaa))
	other := types.Hash(addr(0xbb))

	tests := []struct {
		name   string
		window OptimisticValidationWindow
		slot   uint64
		hash   types.Hash
		want   error
	}{
		{name: "ok at max slot", window: OptimisticValidationWindow{TargetHash: target, MaxSlot: 100}, slot: 100, hash: target},
		{name: "expired", window: OptimisticValidationWindow{TargetHash: target, MaxSlot: 100}, slot: 101, hash: target, want: types.ErrOptimisticWindowExpired},
		{name: "consumed", window: OptimisticValidationWindow{TargetHash: target, MaxSlot: 100, Executed: true}, slot: 50, hash: target, want: types.ErrOptimisticWindowConsumed},
		{name: "substituted operations", window: OptimisticValidationWindow{TargetHash: target, MaxSlot: 100}, slot: 50, hash: other, want: types.ErrHashMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.CheckExecutable(tt.slot, tt.hash)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccountDecoding(t *testing.T) {
	w := &OptimisticValidationWindow{TargetHash: types.Hash(addr(3)), MaxSlot: 12, FeePayer: addr(4), Executed: true}
	decoded, err := DecodeOptimisticValidation(EncodeOptimisticValidation(w))
	require.NoError(t, err)
	assert.Equal(t, w, decoded)

	st := &SmartAccountState{Nonce: 41, VaultBump: 254}
	st.PublicKey[0] = 0x03
	decodedState, err := DecodeSmartAccountState(EncodeSmartAccountState(st))
	require.NoError(t, err)
	assert.Equal(t, st, decodedState)

	_, err = DecodeSmartAccountState(EncodeOptimisticValidation(w))
	assert.ErrorIs(t, err, types.ErrInvalidState)

	data := EncodeSmartAccountState(st)
	_, err = DecodeSmartAccountState(data[:20])
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestErrorNames(t *testing.T) {
	assert.Equal(t, "InvalidNonce", ErrorName(6000))
	assert.Equal(t, "ChallengeMismatch", ErrorName(6009))
	assert.Empty(t, ErrorName(1))

	code := ErrCodeInvalidNonce
	err := &types.EngineRejection{Code: &code}
	assert.True(t, IsInvalidNonce(err))
	assert.False(t, HasEngineCode(err, ErrCodeInvalidSignature))

	// 非 Custom 失败即使日志含 InvalidNonce 也不触发 nonce 刷新
	rej, ok := types.ParseEngineRejection(map[string]interface{}{
		"InstructionError": []interface{}{3.0, "ProgramFailedToComplete"},
	}, []string{"Program log: AnchorError occurred. Error Code: InvalidNonce. Error Number: 6000. Error Message: stale nonce."})
	require.True(t, ok)
	assert.False(t, IsInvalidNonce(rej))
}
