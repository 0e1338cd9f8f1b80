package messaging

import (
	"crypto/ed25519"
	"crypto/sha512"

	"filippo.io/edwards25519"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// ed25519PrivateToX25519 derives the deterministic X25519 scalar from an
// Ed25519 private key's 32-byte seed, per §4.7 ("This conversion is
// deterministic and must be the same on both sides"). This is the same
// construction libsodium and Aries Askar use: SHA-512 the seed, clamp the
// low 32 bytes.
func ed25519PrivateToX25519(priv ed25519.PrivateKey) []byte {
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	scalar := make([]byte, 32)
	copy(scalar, h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return scalar
}

// ed25519PublicToX25519 converts an Ed25519 public key (an Edwards point)
// to its Montgomery u-coordinate, the X25519 public key, via the
// birational map between the two curve models.
func ed25519PublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid ed25519 public key", err)
	}
	return p.BytesMontgomery(), nil
}
