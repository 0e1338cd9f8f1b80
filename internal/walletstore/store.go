package walletstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mr-tron/base58"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// Store is a handle to one wallet database that tasks share; sessions are
// not shared between tasks. It keeps no reference count: Close closes the
// database for every holder of the handle. It owns the AEAD
// key derived from the wallet's raw key and the HMAC key used to index
// encrypted tags deterministically.
type Store struct {
	db       *sql.DB
	path     string
	aead     cipher.AEAD
	tagHmac  []byte
	mu       sync.RWMutex
	closed   bool
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	nonce BLOB NOT NULL,
	ciphertext BLOB NOT NULL,
	PRIMARY KEY (category, name)
);

CREATE TABLE IF NOT EXISTS tags (
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	tag_name TEXT NOT NULL,
	tag_value TEXT NOT NULL,
	encrypted INTEGER NOT NULL,
	FOREIGN KEY (category, name) REFERENCES entries(category, name)
);

CREATE INDEX IF NOT EXISTS idx_tags_lookup ON tags(category, tag_name, tag_value);
CREATE INDEX IF NOT EXISTS idx_tags_entry ON tags(category, name);

CREATE TABLE IF NOT EXISTS keys (
	verkey TEXT PRIMARY KEY,
	alg TEXT NOT NULL,
	nonce BLOB NOT NULL,
	ciphertext BLOB NOT NULL
);
`

// deriveSubkeys expands the base58-decoded raw key into a 32-byte AEAD key
// and a 32-byte tag-HMAC key using two fixed-label SHA-256 derivations, so
// a single raw key serves both the entry cipher and the encrypted-tag index
// without key reuse across purposes.
func deriveSubkeys(rawKey []byte) (aeadKey, hmacKey []byte) {
	a := sha256.Sum256(append([]byte("ssiagent:aead:"), rawKey...))
	h := sha256.Sum256(append([]byte("ssiagent:taghmac:"), rawKey...))
	return a[:], h[:]
}

func newAEAD(rawKey []byte) (cipher.AEAD, []byte, error) {
	aeadKey, hmacKey := deriveSubkeys(rawKey)
	block, err := aes.NewCipher(aeadKey)
	if err != nil {
		return nil, nil, agenterr.Wrap(agenterr.CodeInternal, "failed to init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, agenterr.Wrap(agenterr.CodeInternal, "failed to init AEAD", err)
	}
	return gcm, hmacKey, nil
}

// Provision creates a new wallet database at path, encrypted with rawKey.
// Per the lifecycle invariant in §3, the caller is responsible for writing
// the KDF sidecar before or after this call and for invoking
// kdf.CleanupWalletFiles if anything downstream fails.
func Provision(path string, rawKey []byte) (*Store, error) {
	if path == "" {
		return nil, agenterr.New(agenterr.CodeWalletPathInvalid, "wallet path must not be empty")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, agenterr.New(agenterr.CodeWalletAlreadyExists, "wallet already exists at path")
	}
	s, err := openOrCreate(path, rawKey)
	if err != nil {
		return nil, err
	}
	if err := s.verifyAuth(); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing wallet database at path with rawKey. The caller
// has already resolved rawKey from the KDF sidecar (or the legacy KDF);
// an AEAD failure surfaces here as WalletAuthFailed, never mixed with a
// KDF diagnosis, per §7's propagation policy.
func Open(path string, rawKey []byte) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, agenterr.New(agenterr.CodeWalletNotFound, "wallet database not found")
	}
	s, err := openOrCreate(path, rawKey)
	if err != nil {
		return nil, err
	}
	if err := s.verifyAuth(); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

func openOrCreate(path string, rawKey []byte) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeWalletOpenFailed, "failed to open wallet database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, agenterr.Wrap(agenterr.CodeWalletOpenFailed, "failed to initialize wallet schema", err)
	}
	aead, hmacKey, err := newAEAD(rawKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, aead: aead, tagHmac: hmacKey}, nil
}

// verifyAuth probes a canary entry written on first provision (or writes
// one if absent, for wallets provisioned before this check existed) so a
// wrong password is detected at open time rather than on first real read.
func (s *Store) verifyAuth() error {
	row := s.db.QueryRow(`SELECT nonce, ciphertext FROM entries WHERE category = ? AND name = ?`, "__canary", "__canary")
	var nonce, ct []byte
	err := row.Scan(&nonce, &ct)
	if err == sql.ErrNoRows {
		nonce := make([]byte, s.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return agenterr.Wrap(agenterr.CodeInternal, "failed to generate nonce", err)
		}
		ct := s.aead.Seal(nil, nonce, []byte("ok"), []byte("__canary/__canary"))
		if _, err := s.db.Exec(`INSERT INTO entries (category, name, nonce, ciphertext) VALUES (?, ?, ?, ?)`, "__canary", "__canary", nonce, ct); err != nil {
			return agenterr.Wrap(agenterr.CodeWalletOpenFailed, "failed to write auth canary", err)
		}
		return nil
	}
	if err != nil {
		return agenterr.Wrap(agenterr.CodeWalletOpenFailed, "failed to read auth canary", err)
	}
	if _, err := s.aead.Open(nil, nonce, ct, []byte("__canary/__canary")); err != nil {
		return agenterr.New(agenterr.CodeWalletAuthFailed, "wrong password or corrupt wallet")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return agenterr.New(agenterr.CodeWalletClosed, "wallet is closed")
	}
	return nil
}

// encrypt seals plaintext, binding the (category, name) as AEAD associated
// data so ciphertexts cannot be relocated to a different key.
func (s *Store) encrypt(category, name string, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, agenterr.Wrap(agenterr.CodeInternal, "failed to generate nonce", err)
	}
	ad := []byte(category + "/" + name)
	ct := s.aead.Seal(nil, nonce, plaintext, ad)
	return nonce, ct, nil
}

func (s *Store) decrypt(category, name string, nonce, ciphertext []byte) ([]byte, error) {
	ad := []byte(category + "/" + name)
	pt, err := s.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeWalletAuthFailed, "failed to decrypt entry", err)
	}
	return pt, nil
}

// tagIndexValue returns the value to store/query for a tag: the plaintext
// value for ordinary tags, or a base58-encoded keyed HMAC for encrypted
// tags, so encrypted tags remain equality-filterable without ever being
// recoverable from the index alone.
func (s *Store) tagIndexValue(t Tag) string {
	if !t.Encrypted {
		return t.Value
	}
	mac := hmac.New(sha256.New, s.tagHmac)
	mac.Write([]byte(t.Name))
	mac.Write([]byte{0})
	mac.Write([]byte(t.Value))
	return base58.Encode(mac.Sum(nil))
}

// hashTagValue returns the index form that an encrypted tag named name
// with the given plaintext value is stored under, for use as a TagFilter
// equality value (exposed as Store.HashTagValue).
func (s *Store) hashTagValue(name, value string) string {
	return s.tagIndexValue(Tag{Name: name, Value: value, Encrypted: true})
}
