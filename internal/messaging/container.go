package messaging

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// EncryptLargeFile streams inPath into the SSIFILE2 container at outPath,
// per §4.7's layout and encryption steps. chunkSize must be at least
// MinChunkSize.
func (m *Messenger) EncryptLargeFile(senderDID, targetVerkey, inPath, outPath string, chunkSize int) error {
	if chunkSize < MinChunkSize {
		return agenterr.New(agenterr.CodeChunkSizeTooSmall, "chunk_size must be at least 64 KiB")
	}
	sender, err := m.resolveSender(senderDID)
	if err != nil {
		return err
	}
	targetPub, err := targetX25519(targetVerkey)
	if err != nil {
		return err
	}

	in, err := os.Open(inPath)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to open input file", err)
	}
	defer in.Close()
	stat, err := in.Stat()
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to stat input file", err)
	}

	contentKey := make([]byte, 32)
	fileID := make([]byte, 16)
	baseNonce := make([]byte, 12)
	if _, err := rand.Read(contentKey); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to generate content key", err)
	}
	if _, err := rand.Read(fileID); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to generate file id", err)
	}
	if _, err := rand.Read(baseNonce); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to generate base nonce", err)
	}

	kekCt, kekNonce, err := sealBox(contentKey, &sender.xpriv, targetPub)
	if err != nil {
		return err
	}

	header := &LargeHeader{
		V:            2,
		Type:         TypeLarge,
		SenderVerkey: sender.verkey,
		TargetVerkey: targetVerkey,
		Kek: KekBlock{
			Alg:           BoxAlg,
			NonceB64:      base64.StdEncoding.EncodeToString(kekNonce[:]),
			CiphertextB64: base64.StdEncoding.EncodeToString(kekCt),
		},
		Aead: AeadBlock{
			Alg:          AeadAlg,
			ChunkSize:    uint32(chunkSize),
			FileIDB64:    base64.StdEncoding.EncodeToString(fileID),
			BaseNonceB64: base64.StdEncoding.EncodeToString(baseNonce),
		},
		Meta: FileMeta{Filename: filepath.Base(inPath), Bytes: uint64(stat.Size())},
	}
	sig := ed25519.Sign(sender.signer, canonicalLargeHeaderPayload(header))
	header.Sig = Sig{Alg: SigAlg, SignerVerkey: sender.verkey, Value: base64.StdEncoding.EncodeToString(sig)}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize container header", err)
	}

	aead, err := chacha20poly1305.New(contentKey)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to init AEAD", err)
	}

	tmpOut := outPath + ".tmp"
	out, err := os.OpenFile(tmpOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to create output file", err)
	}

	if err := writeSSIFILE2Header(out, headerJSON); err != nil {
		out.Close()
		os.Remove(tmpOut)
		return err
	}

	var baseNonceArr [12]byte
	copy(baseNonceArr[:], baseNonce)

	buf := make([]byte, chunkSize)
	var idx uint32
	for {
		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			nonce := derivedNonce(baseNonceArr, idx)
			ct := aead.Seal(nil, nonce[:], buf[:n], nil)
			if err := writeChunk(out, idx, uint32(n), ct); err != nil {
				out.Close()
				os.Remove(tmpOut)
				return err
			}
			idx++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(tmpOut)
			return agenterr.Wrap(agenterr.CodeInternal, "failed to read input file", readErr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpOut)
		return agenterr.Wrap(agenterr.CodeInternal, "failed to finalize output file", err)
	}
	if err := os.Rename(tmpOut, outPath); err != nil {
		os.Remove(tmpOut)
		return agenterr.Wrap(agenterr.CodeInternal, "failed to rename output file", err)
	}
	return nil
}

// DecryptLargeFile streams an SSIFILE2 container at inPath into outPath,
// verifying the header signature before decrypting a single chunk, per
// §4.7's decryption steps.
func (m *Messenger) DecryptLargeFile(receiverDID, expectedSenderVerkey, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to open container file", err)
	}
	defer in.Close()

	header, err := readSSIFILE2Header(in)
	if err != nil {
		return err
	}
	if header.V < 2 || header.Type != TypeLarge {
		return agenterr.New(agenterr.CodeContainerBadMagic, "unsupported container version or type")
	}
	if header.SenderVerkey != expectedSenderVerkey {
		return agenterr.New(agenterr.CodeSignatureVerificationFailed, "container sender_verkey does not match the expected sender")
	}
	if header.Sig.Alg != SigAlg || header.Sig.SignerVerkey != header.SenderVerkey {
		return agenterr.New(agenterr.CodeSignatureVerificationFailed, "container signature missing or signer mismatch")
	}
	pubBytes, err := base58.Decode(header.Sig.SignerVerkey)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return agenterr.New(agenterr.CodeSignatureVerificationFailed, "invalid container signer verkey")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(header.Sig.Value)
	if err != nil {
		return agenterr.New(agenterr.CodeSignatureVerificationFailed, "invalid container signature encoding")
	}
	if !ed25519.Verify(ed25519.PublicKey(pubBytes), canonicalLargeHeaderPayload(header), sigBytes) {
		return agenterr.New(agenterr.CodeSignatureVerificationFailed, "container signature verification failed")
	}

	receiver, err := m.resolveSender(receiverDID)
	if err != nil {
		return err
	}
	senderPub, err := targetX25519(header.SenderVerkey)
	if err != nil {
		return err
	}
	kekNonceBytes, err := base64.StdEncoding.DecodeString(header.Kek.NonceB64)
	if err != nil || len(kekNonceBytes) != 24 {
		return agenterr.New(agenterr.CodeEnvelopeInvalid, "invalid kek nonce")
	}
	kekCt, err := base64.StdEncoding.DecodeString(header.Kek.CiphertextB64)
	if err != nil {
		return agenterr.New(agenterr.CodeEnvelopeInvalid, "invalid kek ciphertext")
	}
	var kekNonce [24]byte
	copy(kekNonce[:], kekNonceBytes)
	contentKey, err := openBox(kekCt, &kekNonce, senderPub, &receiver.xpriv)
	if err != nil {
		return err
	}

	baseNonceBytes, err := base64.StdEncoding.DecodeString(header.Aead.BaseNonceB64)
	if err != nil || len(baseNonceBytes) != 12 {
		return agenterr.New(agenterr.CodeEnvelopeInvalid, "invalid base nonce")
	}
	var baseNonceArr [12]byte
	copy(baseNonceArr[:], baseNonceBytes)

	aead, err := chacha20poly1305.New(contentKey)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to init AEAD", err)
	}

	tmpOut := outPath + ".tmp"
	out, err := os.OpenFile(tmpOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to create output file", err)
	}

	var total uint64
	var wantIdx uint32
	for {
		idx, plainLen, ct, readErr := readChunk(in)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(tmpOut)
			return readErr
		}
		if idx != wantIdx {
			out.Close()
			os.Remove(tmpOut)
			return agenterr.New(agenterr.CodeContainerTruncated, "chunk index out of order")
		}
		nonce := derivedNonce(baseNonceArr, idx)
		pt, err := aead.Open(nil, nonce[:], ct, nil)
		if err != nil {
			out.Close()
			os.Remove(tmpOut)
			return agenterr.New(agenterr.CodeAeadDecryptFailed, "chunk failed to decrypt")
		}
		if uint32(len(pt)) != plainLen {
			out.Close()
			os.Remove(tmpOut)
			return agenterr.New(agenterr.CodeContainerTruncated, "chunk plaintext length mismatch")
		}
		if _, err := out.Write(pt); err != nil {
			out.Close()
			os.Remove(tmpOut)
			return agenterr.Wrap(agenterr.CodeInternal, "failed to write output file", err)
		}
		total += uint64(len(pt))
		wantIdx++
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpOut)
		return agenterr.Wrap(agenterr.CodeInternal, "failed to finalize output file", err)
	}
	if total != header.Meta.Bytes {
		os.Remove(tmpOut)
		return agenterr.New(agenterr.CodeContainerSizeMismatch, "decrypted byte count does not match header meta.bytes")
	}
	if err := os.Rename(tmpOut, outPath); err != nil {
		os.Remove(tmpOut)
		return agenterr.Wrap(agenterr.CodeInternal, "failed to rename output file", err)
	}
	return nil
}

// derivedNonce XORs the little-endian chunk index into the last 4 bytes
// of base, per §4.7/§9.
func derivedNonce(base [12]byte, idx uint32) [12]byte {
	n := base
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], idx)
	n[8] ^= b[0]
	n[9] ^= b[1]
	n[10] ^= b[2]
	n[11] ^= b[3]
	return n
}

func writeSSIFILE2Header(w io.Writer, headerJSON []byte) error {
	if _, err := w.Write([]byte(SSIFILE2Magic)); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to write magic", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(headerJSON)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to write header length", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to write header", err)
	}
	return nil
}

func readSSIFILE2Header(r io.Reader) (*LargeHeader, error) {
	magic := make([]byte, 8)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, agenterr.New(agenterr.CodeContainerTruncated, "container truncated before magic")
	}
	if string(magic) != SSIFILE2Magic {
		return nil, agenterr.New(agenterr.CodeContainerBadMagic, "bad container magic")
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, agenterr.New(agenterr.CodeContainerTruncated, "container truncated before header length")
	}
	headerLen := binary.LittleEndian.Uint32(lenBuf[:])
	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, agenterr.New(agenterr.CodeContainerTruncated, "container truncated before header")
	}
	var header LargeHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse container header", err)
	}
	return &header, nil
}

func writeChunk(w io.Writer, idx, plainLen uint32, ct []byte) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], idx)
	binary.LittleEndian.PutUint32(hdr[4:8], plainLen)
	if _, err := w.Write(hdr[:]); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to write chunk header", err)
	}
	if _, err := w.Write(ct); err != nil {
		return agenterr.Wrap(agenterr.CodeInternal, "failed to write chunk", err)
	}
	return nil
}

// readChunk reads one "idx‖plain_len‖ciphertext‖tag" record. ct includes
// the trailing 16-byte Poly1305 tag the AEAD expects.
func readChunk(r io.Reader) (idx, plainLen uint32, ct []byte, err error) {
	var hdr [8]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = agenterr.New(agenterr.CodeContainerTruncated, "container truncated mid-chunk-header")
		}
		return 0, 0, nil, err
	}
	idx = binary.LittleEndian.Uint32(hdr[0:4])
	plainLen = binary.LittleEndian.Uint32(hdr[4:8])
	ct = make([]byte, int(plainLen)+chacha20poly1305.Overhead)
	if _, err = io.ReadFull(r, ct); err != nil {
		return 0, 0, nil, agenterr.New(agenterr.CodeContainerTruncated, "container truncated mid-chunk")
	}
	return idx, plainLen, ct, nil
}
