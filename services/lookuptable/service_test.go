package lookuptable

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/internal/ledgertest"
	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/services"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

func testPayer(t *testing.T) *wallet.FeePayer {
	t.Helper()
	p, err := wallet.NewFeePayerFromSeed(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return p
}

func testConfig() *services.Config {
	cfg := services.DefaultConfig()
	cfg.LookupTable.PollInterval = time.Millisecond
	cfg.LookupTable.ActivationTimeout = time.Second
	return cfg
}

func addresses(n int) []types.Address {
	out := make([]types.Address, n)
	for i := range out {
		out[i][0] = byte(i + 1)
		out[i][1] = byte(i >> 8)
		out[i][31] = 0xaa
	}
	return out
}

func putTable(ledger *ledgertest.Ledger, addr types.Address, lastExtended uint64, addrs []types.Address) {
	ledger.SetAccount(addr, program.AddressLookupTableID, message.EncodeLookupTable(&message.LookupTable{
		Address:          addr,
		DeactivationSlot: math.MaxUint64,
		LastExtendedSlot: lastExtended,
		Addresses:        addrs,
	}))
}

func TestCreate_ExtendsInChunksAndWaits(t *testing.T) {
	ledger := ledgertest.New(100)
	ledger.SetSlotStep(1)
	payer := testPayer(t)
	svc := NewServiceWithWallet(ledger, testConfig(), payer)

	want := addresses(45)
	result, err := svc.Create(context.Background(), &CreateRequest{Addresses: want, WaitActive: true})
	require.NoError(t, err)

	_, expected, err := program.CreateLookupTable(payer.Address(), payer.Address(), 100)
	require.NoError(t, err)
	assert.Equal(t, expected, result.Table)
	assert.Len(t, result.ExtendSignatures, 3)
	assert.Len(t, ledger.Sent(), 4)

	require.NotNil(t, result.Loaded)
	assert.Equal(t, want, result.Loaded.Addresses)
	assert.True(t, result.Loaded.IsActive())
}

func TestCreate_RequiresPayer(t *testing.T) {
	svc := NewService(ledgertest.New(1), nil)
	_, err := svc.Create(context.Background(), &CreateRequest{})
	assert.Error(t, err)
	_, err = svc.Extend(context.Background(), &ExtendRequest{Table: addresses(1)[0], Addresses: addresses(2)})
	assert.Error(t, err)
}

func TestExtend_Validation(t *testing.T) {
	svc := NewServiceWithWallet(ledgertest.New(1), testConfig(), testPayer(t))
	table := addresses(1)[0]

	_, err := svc.Extend(context.Background(), nil)
	assert.Error(t, err)
	_, err = svc.Extend(context.Background(), &ExtendRequest{Addresses: addresses(2)})
	assert.Error(t, err)
	_, err = svc.Extend(context.Background(), &ExtendRequest{Table: table})
	assert.Error(t, err)

	dup := addresses(2)
	dup = append(dup, dup[0])
	_, err = svc.Extend(context.Background(), &ExtendRequest{Table: table, Addresses: dup})
	assert.Error(t, err)
}

func TestWaitActive_TimesOutAsCompressionFailure(t *testing.T) {
	ledger := ledgertest.New(100)
	table := addresses(300)[299]
	putTable(ledger, table, 100, addresses(3))

	cfg := testConfig()
	cfg.LookupTable.ActivationTimeout = 30 * time.Millisecond
	svc := NewService(ledger, cfg)

	_, err := svc.WaitActive(context.Background(), table)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCompression)
}

func TestWaitActive_BoundedByPollAttempts(t *testing.T) {
	ledger := ledgertest.New(100)
	table := addresses(300)[299]
	putTable(ledger, table, 100, addresses(3))

	cfg := testConfig()
	cfg.LookupTable.ActivationTimeout = time.Minute
	cfg.LookupTable.MaxPollAttempts = 5
	svc := NewService(ledger, cfg)

	start := time.Now()
	_, err := svc.WaitActive(context.Background(), table)
	assert.ErrorIs(t, err, types.ErrCompression)
	assert.Contains(t, err.Error(), "lookup table")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWaitActive_Deactivated(t *testing.T) {
	ledger := ledgertest.New(100)
	table := addresses(300)[299]
	ledger.SetAccount(table, program.AddressLookupTableID, message.EncodeLookupTable(&message.LookupTable{
		Address:          table,
		DeactivationSlot: 90,
		Addresses:        addresses(1),
	}))

	_, err := NewService(ledger, testConfig()).WaitActive(context.Background(), table)
	assert.ErrorIs(t, err, types.ErrCompression)
}

func TestWaitActive_SlotSubscription(t *testing.T) {
	ledger := ledgertest.New(100)
	ledger.Subscriptions = true
	table := addresses(300)[299]
	putTable(ledger, table, 100, addresses(3))

	cfg := testConfig()
	cfg.LookupTable.UseSubscription = true
	loaded, err := NewService(ledger, cfg).WaitActive(context.Background(), table)
	require.NoError(t, err)
	assert.Len(t, loaded.Addresses, 3)
}

func TestWaitActive_FallsBackToPolling(t *testing.T) {
	ledger := ledgertest.New(100)
	ledger.SetSlotStep(1)
	table := addresses(300)[299]
	putTable(ledger, table, 100, addresses(3))

	cfg := testConfig()
	cfg.LookupTable.UseSubscription = true
	_, err := NewService(ledger, cfg).WaitActive(context.Background(), table)
	require.NoError(t, err)
}

func TestLoad_PreservesOrderAcrossChunks(t *testing.T) {
	ledger := ledgertest.New(100)
	tables := addresses(150)
	for i, a := range tables {
		putTable(ledger, a, uint64(i), addresses(i%4+1))
	}

	loaded, err := NewService(ledger, testConfig()).Load(context.Background(), tables)
	require.NoError(t, err)
	require.Len(t, loaded, len(tables))
	for i, tbl := range loaded {
		assert.Equal(t, tables[i], tbl.Address)
		assert.Equal(t, uint64(i), tbl.LastExtendedSlot)
	}
}

func TestLoad_Errors(t *testing.T) {
	ledger := ledgertest.New(100)
	tables := addresses(2)
	putTable(ledger, tables[0], 1, addresses(1))
	svc := NewService(ledger, testConfig())

	_, err := svc.Load(context.Background(), tables)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	ledger.SetAccount(tables[1], program.SystemProgramID, []byte{1, 2, 3})
	_, err = svc.Load(context.Background(), tables)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	empty, err := svc.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
