// Package messaging implements §4.7: versioned, signed envelopes for
// end-to-end authenticated messages and files, plus the streaming
// SSIFILE2 container for large files. Every identity uses Ed25519;
// authenticated boxes run over the X25519 conversion of those same keys.
package messaging

// Sig is the v2 envelope's detached signature block.
type Sig struct {
	Alg          string `json:"alg"`
	SignerVerkey string `json:"signer_verkey"`
	Value        string `json:"value"`
}

// FileMeta describes a small file's name and size, carried in FileBox.meta.
type FileMeta struct {
	Filename string `json:"filename"`
	Bytes    uint64 `json:"bytes"`
}

// MsgBox is the message envelope of §4.7: v1 (legacy, unsigned) and v2
// (signed) share this shape; v1 simply omits V/Type/Sig.
type MsgBox struct {
	Ciphertext    string `json:"ciphertext"`
	Nonce         string `json:"nonce"`
	SenderVerkey  string `json:"sender_verkey"`
	TargetVerkey  string `json:"target_verkey"`
	V             int    `json:"v,omitempty"`
	Type          string `json:"type,omitempty"`
	Sig           *Sig   `json:"sig,omitempty"`
}

// FileBox is the small-file envelope, identical to MsgBox plus Meta.
type FileBox struct {
	Ciphertext   string    `json:"ciphertext"`
	Nonce        string    `json:"nonce"`
	SenderVerkey string    `json:"sender_verkey"`
	TargetVerkey string    `json:"target_verkey"`
	V            int       `json:"v,omitempty"`
	Type         string    `json:"type,omitempty"`
	Meta         *FileMeta `json:"meta,omitempty"`
	Sig          *Sig      `json:"sig,omitempty"`
}

const (
	TypeMsgBox  = "ssi:msgbox"
	TypeFileBox = "ssi:filebox"
	TypeLarge   = "ssi:filebox.large"
	SigAlg      = "ed25519"
	BoxAlg      = "crypto_box_x25519"
	AeadAlg     = "chacha20poly1305"

	// SSIFILE2Magic is the fixed 8-byte container magic of §4.7.
	SSIFILE2Magic = "SSIFILE2"

	// MinChunkSize is the smallest permitted chunk_size for large-file
	// encryption (§9 open question: keeps chunk count well under 2^32).
	MinChunkSize = 64 * 1024
)

// LargeHeader is the SSIFILE2 container's JSON header.
type LargeHeader struct {
	V            int         `json:"v"`
	Type         string      `json:"type"`
	SenderVerkey string      `json:"sender_verkey"`
	TargetVerkey string      `json:"target_verkey"`
	Kek          KekBlock    `json:"kek"`
	Aead         AeadBlock   `json:"aead"`
	Meta         FileMeta    `json:"meta"`
	Sig          Sig         `json:"sig"`
}

// KekBlock is the key-encapsulation header: the content key sealed with
// crypto_box from sender to target.
type KekBlock struct {
	Alg          string `json:"alg"`
	NonceB64     string `json:"nonce_b64"`
	CiphertextB64 string `json:"ciphertext_b64"`
}

// AeadBlock describes the per-chunk AEAD parameters.
type AeadBlock struct {
	Alg        string `json:"alg"`
	ChunkSize  uint32 `json:"chunk_size"`
	FileIDB64  string `json:"file_id_b64"`
	BaseNonceB64 string `json:"base_nonce_b64"`
}
