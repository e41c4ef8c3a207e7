package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeystore_PasskeyRoundTrip(t *testing.T) {
	km, err := NewKeystoreManager(t.TempDir())
	require.NoError(t, err)
	km.WithIterations(1024)

	cred, err := NewPasskeyCredential()
	require.NoError(t, err)

	_, err = km.SavePasskey("device", cred, "secret")
	require.NoError(t, err)

	loaded, err := km.LoadPasskey("device", "secret")
	require.NoError(t, err)
	assert.Equal(t, cred.PublicKey(), loaded.PublicKey())

	_, err = km.LoadPasskey("device", "wrong")
	assert.Error(t, err)

	// 类型不匹配
	_, err = km.LoadFeePayer("device", "secret")
	assert.Error(t, err)
}

func TestKeystore_FeePayerRoundTrip(t *testing.T) {
	km, err := NewKeystoreManager(t.TempDir())
	require.NoError(t, err)
	km.WithIterations(1024)

	payer, err := NewFeePayer()
	require.NoError(t, err)

	_, err = km.SaveFeePayer("payer", payer, "pw")
	require.NoError(t, err)

	loaded, err := km.LoadFeePayer("payer", "pw")
	require.NoError(t, err)
	assert.Equal(t, payer.Address(), loaded.Address())

	_, err = km.LoadFeePayer("missing", "pw")
	assert.Error(t, err)
}
