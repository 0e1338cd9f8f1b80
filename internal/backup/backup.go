// Package backup implements §4.8: encrypting the wallet password into a
// standalone file using a password-derived AES-256-GCM key, independent of
// the wallet's own KDF sidecar.
package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/mr-tron/base58"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/kdf"
)

// File is the on-disk backup document of §4.8.
type File struct {
	Version  int    `json:"version"`
	Kdf      string `json:"kdf"`
	SaltB64  string `json:"salt_b64"`
	MCostKiB int    `json:"m_cost_kib"`
	TCost    int    `json:"t_cost"`
	PCost    int    `json:"p_cost"`
	NonceB64 string `json:"nonce_b64"`
	CtB64    string `json:"ct_b64"`
}

// Create derives a fresh Argon2id key from backupPass, seals walletPass
// under AES-256-GCM with a random 12-byte nonce, and writes the result
// atomically (tmp + rename), per SPEC_FULL.md §12.1.
func Create(walletPass, backupPass, backupFilePath string) error {
	if backupFilePath == "" {
		return agenterr.New(agenterr.CodeBackupPathInvalid, "backup file path must not be empty")
	}

	sc, salt, err := kdf.NewArgon2idSidecar()
	if err != nil {
		return err
	}
	keyBytes, err := deriveKeyBytes(backupPass, salt, sc.MCostKiB, sc.TCost, sc.PCost)
	if err != nil {
		return err
	}

	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to generate nonce", err)
	}

	gcm, err := newGCM(keyBytes)
	if err != nil {
		return err
	}
	ct := gcm.Seal(nil, nonce, []byte(walletPass), nil)

	f := File{
		Version:  1,
		Kdf:      kdf.KdfArgon2id,
		SaltB64:  base64.StdEncoding.EncodeToString(salt),
		MCostKiB: sc.MCostKiB,
		TCost:    sc.TCost,
		PCost:    sc.PCost,
		NonceB64: base64.StdEncoding.EncodeToString(nonce),
		CtB64:    base64.StdEncoding.EncodeToString(ct),
	}
	content, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize backup", err)
	}

	tmp := backupFilePath + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return agenterr.Wrap(agenterr.CodeBackupWriteFailed, "failed to write backup file", err)
	}
	if err := os.Rename(tmp, backupFilePath); err != nil {
		return agenterr.Wrap(agenterr.CodeBackupWriteFailed, "failed to rename backup file", err)
	}
	return nil
}

// Recover reverses Create: derive the key from backupPass and the stored
// salt/params, then open the AEAD seal to recover the wallet password.
// A wrong password surfaces as BackupDecryptFailed.
func Recover(backupPass, backupFilePath string) (string, error) {
	content, err := os.ReadFile(backupFilePath)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeBackupReadFailed, "failed to read backup file", err)
	}
	var f File
	if err := json.Unmarshal(content, &f); err != nil {
		return "", agenterr.Wrap(agenterr.CodeBackupFormatInvalid, "failed to parse backup file", err)
	}
	if f.SaltB64 == "" || f.NonceB64 == "" || f.CtB64 == "" {
		return "", agenterr.New(agenterr.CodeBackupFormatInvalid, "backup file missing salt_b64/nonce_b64/ct_b64")
	}

	salt, err := base64.StdEncoding.DecodeString(f.SaltB64)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeBackupFormatInvalid, "invalid salt_b64", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(f.NonceB64)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeBackupFormatInvalid, "invalid nonce_b64", err)
	}
	if len(nonce) != 12 {
		return "", agenterr.New(agenterr.CodeBackupNonceInvalid, "nonce must be 12 bytes")
	}
	ct, err := base64.StdEncoding.DecodeString(f.CtB64)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeBackupFormatInvalid, "invalid ct_b64", err)
	}

	mCost, tCost, pCost := f.MCostKiB, f.TCost, f.PCost
	if mCost == 0 {
		mCost = kdf.Argon2idMemoryKiB
	}
	if tCost == 0 {
		tCost = kdf.Argon2idTime
	}
	if pCost == 0 {
		pCost = kdf.Argon2idParallelism
	}
	keyBytes, err := deriveKeyBytes(backupPass, salt, mCost, tCost, pCost)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(keyBytes)
	if err != nil {
		return "", err
	}
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", agenterr.New(agenterr.CodeBackupDecryptFailed, "wrong password or corrupt backup file")
	}
	return string(pt), nil
}

// deriveKeyBytes derives the Argon2id key and base58-decodes it to raw
// bytes, matching the original's "bs58::decode" step after deriving the
// key string.
func deriveKeyBytes(password string, salt []byte, mCostKiB, tCost, pCost int) ([]byte, error) {
	keyB58, err := kdf.DeriveArgon2id(password, salt, mCostKiB, tCost, pCost)
	if err != nil {
		return nil, err
	}
	key, err := base58.Decode(keyB58)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeBackupKeyInvalid, "failed to decode derived key", err)
	}
	if len(key) != 32 {
		return nil, agenterr.New(agenterr.CodeBackupKeyInvalid, "derived key is not 32 bytes")
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInternal, "failed to init AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInternal, "failed to init GCM", err)
	}
	return gcm, nil
}
