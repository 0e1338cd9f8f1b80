package messaging

import (
	"fmt"
	"strconv"
)

// canonicalMessagePayload builds the newline-delimited signing payload for
// a v2 message envelope, per §4.7.
func canonicalMessagePayload(senderVerkey, targetVerkey, nonceB64, ciphertextB64 string) []byte {
	return []byte(fmt.Sprintf(
		"v=2\ntype=%s\nsender_verkey=%s\ntarget_verkey=%s\nnonce=%s\nciphertext=%s\n",
		TypeMsgBox, senderVerkey, targetVerkey, nonceB64, ciphertextB64,
	))
}

// canonicalFilePayload builds the small-file signing payload: the message
// payload's five fields plus meta.filename/meta.bytes, per §4.7.
func canonicalFilePayload(senderVerkey, targetVerkey, nonceB64, ciphertextB64, filename string, bytesLen uint64) []byte {
	return []byte(fmt.Sprintf(
		"v=2\ntype=%s\nsender_verkey=%s\ntarget_verkey=%s\nnonce=%s\nciphertext=%s\nmeta.filename=%s\nmeta.bytes=%s\n",
		TypeFileBox, senderVerkey, targetVerkey, nonceB64, ciphertextB64, filename, strconv.FormatUint(bytesLen, 10),
	))
}

// canonicalLargeHeaderPayload builds the SSIFILE2 header's signing
// payload, field order fixed per §4.7.
func canonicalLargeHeaderPayload(h *LargeHeader) []byte {
	return []byte(fmt.Sprintf(
		"v=2\ntype=%s\nsender_verkey=%s\ntarget_verkey=%s\n"+
			"kek.alg=%s\nkek.nonce=%s\nkek.ciphertext=%s\n"+
			"aead.alg=%s\naead.chunk_size=%s\naead.file_id=%s\naead.base_nonce=%s\n"+
			"meta.filename=%s\nmeta.bytes=%s\n",
		TypeLarge, h.SenderVerkey, h.TargetVerkey,
		h.Kek.Alg, h.Kek.NonceB64, h.Kek.CiphertextB64,
		h.Aead.Alg, strconv.FormatUint(uint64(h.Aead.ChunkSize), 10), h.Aead.FileIDB64, h.Aead.BaseNonceB64,
		h.Meta.Filename, strconv.FormatUint(h.Meta.Bytes, 10),
	))
}
