package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256KnownVector(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashToString(Sha256([]byte("hello"))))
	assert.Equal(t,
		"9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50",
		HashToString(DoubleSha256([]byte("hello"))))
}

func TestHashStringRoundTrip(t *testing.T) {
	raw := Sha256([]byte("payload"))
	decoded, err := StringToHash(HashToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	_, err = StringToHash("not-hex")
	require.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	msg := []byte("transfer 50 to carol")
	sig := kp.Sign(msg)
	assert.True(t, VerifySignature(kp.PublicKey, msg, sig))

	// Tampered message fails.
	assert.False(t, VerifySignature(kp.PublicKey, []byte("transfer 500 to carol"), sig))

	// A different key fails.
	other, err := NewKeyPair()
	require.NoError(t, err)
	assert.False(t, VerifySignature(other.PublicKey, msg, sig))

	// Garbage public key or signature never verifies.
	assert.False(t, VerifySignature([]byte{0x01, 0x02}, msg, sig))
	assert.False(t, VerifySignature(kp.PublicKey, msg, []byte{0x30, 0x00}))
}

func TestKeyPairFromPrivateKey(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	restored, err := KeyPairFromPrivateKey(kp.PrivateKey.Serialize())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, restored.PublicKey)
	assert.Equal(t, kp.Address(), restored.Address())

	_, err = KeyPairFromPrivateKey([]byte{0x01})
	require.Error(t, err)
}

func TestAddressDerivationAndChecksum(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	address := kp.Address()
	assert.True(t, ValidateAddress(address))
	assert.Equal(t, address, PubKeyToAddress(kp.PublicKey))

	// Any corrupted character breaks the checksum.
	corrupted := []byte(address)
	if corrupted[0] == '2' {
		corrupted[0] = '3'
	} else {
		corrupted[0] = '2'
	}
	assert.False(t, ValidateAddress(string(corrupted)))
	assert.False(t, ValidateAddress("tooshort"))
}
