package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519KeyPair(t *testing.T) {
	t.Run("GenerateNewKeyPair", func(t *testing.T) {
		keyPair, err := NewEd25519KeyPair()
		require.NoError(t, err)
		assert.NotNil(t, keyPair)
		assert.Len(t, keyPair.PublicKey, ed25519.PublicKeySize)
		assert.Len(t, keyPair.PrivateKey, ed25519.PrivateKeySize)
	})

	t.Run("KeyPairFromSeed", func(t *testing.T) {
		seed := make([]byte, ed25519.SeedSize)
		for i := range seed {
			seed[i] = byte(i)
		}

		keyPair, err := NewEd25519KeyPairFromSeed(seed)
		require.NoError(t, err)
		assert.NotNil(t, keyPair)

		// Same seed should produce same key pair
		keyPair2, err := NewEd25519KeyPairFromSeed(seed)
		require.NoError(t, err)
		assert.Equal(t, keyPair.PublicKey, keyPair2.PublicKey)
		assert.Equal(t, keyPair.PrivateKey, keyPair2.PrivateKey)
	})

	t.Run("InvalidSeedSize", func(t *testing.T) {
		invalidSeed := []byte("too short")
		_, err := NewEd25519KeyPairFromSeed(invalidSeed)
		assert.Error(t, err)
	})

	t.Run("FromPrivateKey", func(t *testing.T) {
		original, err := NewEd25519KeyPair()
		require.NoError(t, err)

		keyPair, err := NewEd25519KeyPairFromPrivateKey(original.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, original.PublicKey, keyPair.PublicKey)
	})

	t.Run("InvalidPrivateKeySize", func(t *testing.T) {
		_, err := NewEd25519KeyPairFromPrivateKey([]byte("too short"))
		assert.Error(t, err)
	})

	t.Run("Base64Encoding", func(t *testing.T) {
		keyPair, err := NewEd25519KeyPair()
		require.NoError(t, err)

		pubB64 := keyPair.PublicKeyBase64()
		privB64 := keyPair.PrivateKeyBase64()

		assert.NotEmpty(t, pubB64)
		assert.NotEmpty(t, privB64)

		// Should be valid base64
		_, err = base64.StdEncoding.DecodeString(pubB64)
		assert.NoError(t, err)

		_, err = base64.StdEncoding.DecodeString(privB64)
		assert.NoError(t, err)
	})
}
