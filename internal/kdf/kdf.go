// Package kdf derives the wallet master key from a password and persists
// the KDF parameters used to do so in a sidecar file, per §4.1.
package kdf

import (
	"crypto/sha256"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

const (
	// Argon2idMemoryKiB is the fixed memory cost: 64 MiB.
	Argon2idMemoryKiB = 65536
	// Argon2idTime is the fixed time cost.
	Argon2idTime = 3
	// Argon2idParallelism is the fixed parallelism.
	Argon2idParallelism = 1
	// Argon2idKeyLen is the derived key length in bytes.
	Argon2idKeyLen = 32
	// Argon2idSaltLen is the random salt length in bytes.
	Argon2idSaltLen = 16

	// LegacyRounds is the fixed iteration count of the legacy KDF.
	LegacyRounds = 128

	KdfArgon2id = "argon2id"
	KdfLegacy   = "legacy_sha256_sha3"
)

// Sidecar describes the KDF parameters used to derive a wallet's raw key.
// It is persisted as the sibling file "<wallet_path>.kdf.json".
type Sidecar struct {
	Version int    `json:"version"`
	Kdf     string `json:"kdf"`

	// Argon2id fields.
	SaltB64  string `json:"salt_b64,omitempty"`
	MCostKiB int    `json:"m_cost_kib,omitempty"`
	TCost    int    `json:"t_cost,omitempty"`
	PCost    int    `json:"p_cost,omitempty"`
	DkLen    int    `json:"dk_len,omitempty"`

	// Legacy fields.
	Rounds int `json:"rounds,omitempty"`
}

// NewArgon2idSidecar generates a fresh random salt and the default Argon2id
// sidecar parameters.
func NewArgon2idSidecar() (*Sidecar, []byte, error) {
	salt := make([]byte, Argon2idSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, agenterr.Wrap(agenterr.CodeInternal, "failed to generate salt", err)
	}
	sc := &Sidecar{
		Version:  1,
		Kdf:      KdfArgon2id,
		SaltB64:  base64.StdEncoding.EncodeToString(salt),
		MCostKiB: Argon2idMemoryKiB,
		TCost:    Argon2idTime,
		PCost:    Argon2idParallelism,
		DkLen:    Argon2idKeyLen,
	}
	return sc, salt, nil
}

// DeriveArgon2id derives a 32-byte key and renders it as base58 ("raw key").
func DeriveArgon2id(password string, salt []byte, mCostKiB, tCost, pCost int) (string, error) {
	if mCostKiB <= 0 || tCost <= 0 || pCost <= 0 {
		return "", agenterr.New(agenterr.CodeArgon2ParamsInvalid, "argon2id parameters must be positive")
	}
	key := argon2.IDKey([]byte(password), salt, uint32(tCost), uint32(mCostKiB), uint8(pCost), Argon2idKeyLen)
	return base58.Encode(key), nil
}

// DeriveLegacy runs the legacy SHA256‖SHA3-256 iterated KDF: each round
// replaces the running state with SHA3-256(SHA256(state)), starting from
// the UTF-8 password bytes. Supported only for opening pre-existing
// wallets — never used to create new ones.
func DeriveLegacy(password string, rounds int) string {
	state := []byte(password)
	for i := 0; i < rounds; i++ {
		h2 := sha256.Sum256(state)
		h3 := sha3.Sum256(h2[:])
		state = h3[:]
	}
	return base58.Encode(state)
}

// DeriveFromSidecar dispatches to the KDF named by the sidecar.
func DeriveFromSidecar(password string, sc *Sidecar) (string, error) {
	switch sc.Kdf {
	case KdfArgon2id:
		if sc.SaltB64 == "" {
			return "", agenterr.New(agenterr.CodeKdfParamsMissing, "salt_b64 missing from sidecar")
		}
		salt, err := base64.StdEncoding.DecodeString(sc.SaltB64)
		if err != nil {
			return "", agenterr.Wrap(agenterr.CodeKdfParamsInvalid, "invalid salt_b64", err)
		}
		m, t, p := sc.MCostKiB, sc.TCost, sc.PCost
		if m == 0 {
			m = Argon2idMemoryKiB
		}
		if t == 0 {
			t = Argon2idTime
		}
		if p == 0 {
			p = Argon2idParallelism
		}
		return DeriveArgon2id(password, salt, m, t, p)
	case KdfLegacy:
		rounds := sc.Rounds
		if rounds == 0 {
			rounds = LegacyRounds
		}
		return DeriveLegacy(password, rounds), nil
	default:
		return "", agenterr.New(agenterr.CodeKdfUnknown, fmt.Sprintf("unsupported kdf: %s", sc.Kdf))
	}
}

// SidecarPath returns the sibling sidecar path for a wallet database path.
func SidecarPath(walletPath string) string {
	return walletPath + ".kdf.json"
}

// WriteSidecar persists the sidecar atomically: write ".tmp", then rename.
func WriteSidecar(path string, sc *Sidecar) error {
	tmp := path + ".tmp"
	content, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return agenterr.Wrap(agenterr.CodeSidecarWriteFailed, "failed to serialize sidecar", err)
	}
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return agenterr.Wrap(agenterr.CodeSidecarWriteFailed, "failed to write sidecar", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return agenterr.Wrap(agenterr.CodeSidecarWriteFailed, "failed to rename sidecar", err)
	}
	return nil
}

// ReadSidecar loads and parses a sidecar file.
func ReadSidecar(path string) (*Sidecar, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSidecarReadFailed, "failed to read sidecar", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(content, &sc); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSidecarParseFailed, "failed to parse sidecar", err)
	}
	return &sc, nil
}

// LegacySidecar builds the best-effort sidecar written after a successful
// legacy-KDF open, so subsequent opens skip the legacy fallback.
func LegacySidecar() *Sidecar {
	return &Sidecar{
		Version: 1,
		Kdf:     KdfLegacy,
		Rounds:  LegacyRounds,
	}
}

// CleanupWalletFiles best-effort removes every file associated with a
// wallet: the database, its sidecar, SQLite WAL/SHM siblings, and any
// leftover ".tmp" sidecar write. Used when wallet creation fails partway.
func CleanupWalletFiles(walletPath, sidecarPath string) {
	_ = os.Remove(walletPath)
	_ = os.Remove(sidecarPath)
	_ = os.Remove(walletPath + "-wal")
	_ = os.Remove(walletPath + "-shm")
	_ = os.Remove(sidecarPath + ".tmp")
}

// IsWalletAuthError reports whether the underlying store error text
// indicates an AEAD/authentication failure rather than a structural one.
func IsWalletAuthError(msg string) bool {
	needles := []string{
		"cipher: message authentication failed",
		"aead decryption error",
		"authentication failed",
	}
	lower := strings.ToLower(msg)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
