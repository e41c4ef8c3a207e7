package wallet

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasskeyCredential_SignVerify(t *testing.T) {
	cred, err := NewPasskeyCredential()
	require.NoError(t, err)

	pub := cred.PublicKey()
	require.Len(t, pub, CompressedPublicKeyLength)
	assert.Contains(t, []byte{0x02, 0x03}, pub[0])

	msg := []byte("authenticator data ++ client data hash")
	for i := 0; i < 16; i++ {
		sig, err := cred.SignMessage(msg)
		require.NoError(t, err)
		require.Len(t, sig, SignatureLength)
		assert.True(t, IsLowS(sig))
		assert.True(t, VerifySignature(pub, msg, sig))
	}

	sig, err := cred.SignMessage(msg)
	require.NoError(t, err)
	assert.False(t, VerifySignature(pub, []byte("other"), sig))
}

func TestPasskeyCredential_RoundTripFromBytes(t *testing.T) {
	cred, err := NewPasskeyCredential()
	require.NoError(t, err)

	restored, err := NewPasskeyCredentialFromBytes(cred.PrivateKeyBytes())
	require.NoError(t, err)
	assert.Equal(t, cred.PublicKey(), restored.PublicKey())

	_, err = NewPasskeyCredentialFromBytes(make([]byte, 32))
	assert.Error(t, err)
	_, err = NewPasskeyCredentialFromHex("0xzz")
	assert.Error(t, err)
}

func TestFeePayer(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	payer, err := NewFeePayerFromSeed(seed)
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := payer.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(payer.Address().Bytes()), msg, sig))

	_, err = NewFeePayerFromSeed([]byte{1})
	assert.Error(t, err)
}
