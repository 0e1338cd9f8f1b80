package messaging

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// Messenger implements §4.7 over a walletstore.Store: DID/key resolution,
// authenticated-box encryption, envelope signing/verification, and the
// SSIFILE2 large-file container.
type Messenger struct {
	store *walletstore.Store
}

// New constructs a Messenger bound to a wallet store.
func New(store *walletstore.Store) *Messenger {
	return &Messenger{store: store}
}

// senderIdentity is the resolved signing key plus its X25519 exchange key.
type senderIdentity struct {
	verkey string
	signer ed25519.PrivateKey
	xpriv  [32]byte
}

func (m *Messenger) resolveSender(senderDID string) (*senderIdentity, error) {
	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	didEntry, err := sess.Fetch("did", senderDID, false)
	if err != nil {
		return nil, err
	}
	var rec struct {
		Verkey string `json:"verkey"`
	}
	if err := json.Unmarshal(didEntry.Value, &rec); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse DID record", err)
	}
	if rec.Verkey == "" {
		return nil, agenterr.New(agenterr.CodeDidInvalid, "DID record has no verkey")
	}

	keyRec, err := sess.FetchKey(rec.Verkey, false)
	if err != nil {
		return nil, err
	}
	priv := ed25519.PrivateKey(keyRec.KeyMaterial)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, agenterr.New(agenterr.CodeInternal, "stored private key has unexpected size")
	}

	var xpriv [32]byte
	copy(xpriv[:], ed25519PrivateToX25519(priv))

	return &senderIdentity{verkey: rec.Verkey, signer: priv, xpriv: xpriv}, nil
}

func targetX25519(targetVerkey string) (*[32]byte, error) {
	pubBytes, err := base58.Decode(targetVerkey)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return nil, agenterr.New(agenterr.CodeInvalidArgument, "target verkey is not a valid base58 ed25519 public key")
	}
	xpub, err := ed25519PublicToX25519(ed25519.PublicKey(pubBytes))
	if err != nil {
		return nil, err
	}
	var out [32]byte
	copy(out[:], xpub)
	return &out, nil
}

func randomNonce24() (*[24]byte, error) {
	var n [24]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInternal, "failed to generate nonce", err)
	}
	return &n, nil
}

// sealBox seals plaintext with crypto_box from senderPriv to targetPub.
func sealBox(plaintext []byte, senderPriv *[32]byte, targetPub *[32]byte) (ciphertext []byte, nonce *[24]byte, err error) {
	nonce, err = randomNonce24()
	if err != nil {
		return nil, nil, err
	}
	ciphertext = box.Seal(nil, plaintext, nonce, targetPub, senderPriv)
	return ciphertext, nonce, nil
}

// openBox opens a crypto_box sealed by senderPub to the holder of
// receiverPriv.
func openBox(ciphertext []byte, nonce *[24]byte, senderPub, receiverPriv *[32]byte) ([]byte, error) {
	pt, ok := box.Open(nil, ciphertext, nonce, senderPub, receiverPriv)
	if !ok {
		return nil, agenterr.New(agenterr.CodeAeadDecryptFailed, "authenticated box failed to open")
	}
	return pt, nil
}
