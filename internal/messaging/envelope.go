package messaging

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/mr-tron/base58"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// EncryptMessage seals message for targetVerkey under senderDID's key,
// producing a signed v2 MsgBox envelope, per §4.7.
func (m *Messenger) EncryptMessage(senderDID, targetVerkey, message string) (*MsgBox, error) {
	sender, err := m.resolveSender(senderDID)
	if err != nil {
		return nil, err
	}
	targetPub, err := targetX25519(targetVerkey)
	if err != nil {
		return nil, err
	}

	ct, nonce, err := sealBox([]byte(message), &sender.xpriv, targetPub)
	if err != nil {
		return nil, err
	}
	nonceB64 := base64.StdEncoding.EncodeToString(nonce[:])
	ctB64 := base64.StdEncoding.EncodeToString(ct)

	payload := canonicalMessagePayload(sender.verkey, targetVerkey, nonceB64, ctB64)
	sig := ed25519.Sign(sender.signer, payload)

	return &MsgBox{
		Ciphertext:   ctB64,
		Nonce:        nonceB64,
		SenderVerkey: sender.verkey,
		TargetVerkey: targetVerkey,
		V:            2,
		Type:         TypeMsgBox,
		Sig: &Sig{
			Alg:          SigAlg,
			SignerVerkey: sender.verkey,
			Value:        base64.StdEncoding.EncodeToString(sig),
		},
	}, nil
}

// DecryptMessage opens a MsgBox envelope addressed to receiverDID,
// validating in the order §4.7 requires: verify the v2 signature (if
// present), verify signer==sender_verkey, only then decrypt.
func (m *Messenger) DecryptMessage(receiverDID, senderVerkey string, env *MsgBox) (string, error) {
	if env.SenderVerkey != senderVerkey {
		return "", agenterr.New(agenterr.CodeSignatureVerificationFailed, "envelope sender_verkey does not match the expected sender")
	}
	if err := verifyEnvelopeSig(env.V, env.Sig, env.SenderVerkey, func() []byte {
		return canonicalMessagePayload(env.SenderVerkey, env.TargetVerkey, env.Nonce, env.Ciphertext)
	}); err != nil {
		return "", err
	}

	receiver, err := m.resolveSender(receiverDID)
	if err != nil {
		return "", err
	}
	senderPub, err := targetX25519(senderVerkey)
	if err != nil {
		return "", err
	}
	nonce, ct, err := decodeNonceCiphertext(env.Nonce, env.Ciphertext)
	if err != nil {
		return "", err
	}
	pt, err := openBox(ct, nonce, senderPub, &receiver.xpriv)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// EncryptFile seals a small file's bytes the same way as EncryptMessage,
// additionally signing over meta.filename/meta.bytes.
func (m *Messenger) EncryptFile(senderDID, targetVerkey, filename string, content []byte) (*FileBox, error) {
	sender, err := m.resolveSender(senderDID)
	if err != nil {
		return nil, err
	}
	targetPub, err := targetX25519(targetVerkey)
	if err != nil {
		return nil, err
	}

	ct, nonce, err := sealBox(content, &sender.xpriv, targetPub)
	if err != nil {
		return nil, err
	}
	nonceB64 := base64.StdEncoding.EncodeToString(nonce[:])
	ctB64 := base64.StdEncoding.EncodeToString(ct)
	meta := &FileMeta{Filename: filename, Bytes: uint64(len(content))}

	payload := canonicalFilePayload(sender.verkey, targetVerkey, nonceB64, ctB64, filename, meta.Bytes)
	sig := ed25519.Sign(sender.signer, payload)

	return &FileBox{
		Ciphertext:   ctB64,
		Nonce:        nonceB64,
		SenderVerkey: sender.verkey,
		TargetVerkey: targetVerkey,
		V:            2,
		Type:         TypeFileBox,
		Meta:         meta,
		Sig: &Sig{
			Alg:          SigAlg,
			SignerVerkey: sender.verkey,
			Value:        base64.StdEncoding.EncodeToString(sig),
		},
	}, nil
}

// DecryptFile opens a FileBox the same way DecryptMessage does, returning
// the plaintext bytes and filename.
func (m *Messenger) DecryptFile(receiverDID, senderVerkey string, env *FileBox) ([]byte, string, error) {
	filename, bytesLen := "", uint64(0)
	if env.Meta != nil {
		filename, bytesLen = env.Meta.Filename, env.Meta.Bytes
	}
	if env.SenderVerkey != senderVerkey {
		return nil, "", agenterr.New(agenterr.CodeSignatureVerificationFailed, "envelope sender_verkey does not match the expected sender")
	}
	if err := verifyEnvelopeSig(env.V, env.Sig, env.SenderVerkey, func() []byte {
		return canonicalFilePayload(env.SenderVerkey, env.TargetVerkey, env.Nonce, env.Ciphertext, filename, bytesLen)
	}); err != nil {
		return nil, "", err
	}

	receiver, err := m.resolveSender(receiverDID)
	if err != nil {
		return nil, "", err
	}
	senderPub, err := targetX25519(senderVerkey)
	if err != nil {
		return nil, "", err
	}
	nonce, ct, err := decodeNonceCiphertext(env.Nonce, env.Ciphertext)
	if err != nil {
		return nil, "", err
	}
	pt, err := openBox(ct, nonce, senderPub, &receiver.xpriv)
	if err != nil {
		return nil, "", err
	}
	return pt, filename, nil
}

// verifyEnvelopeSig implements §4.7's validation order: v1 envelopes (no
// sig) are accepted only for messages/small files as legacy compat; any
// v2 envelope, or any envelope carrying a sig block, must verify before a
// single byte is decrypted. A sender_verkey mismatch is fatal regardless
// of signature presence.
func verifyEnvelopeSig(v int, sig *Sig, expectedSenderVerkey string, payload func() []byte) error {
	if v >= 2 || sig != nil {
		if sig == nil {
			return agenterr.New(agenterr.CodeEnvelopeV2MissingSig, "v2 envelope missing signature")
		}
		if sig.Alg != SigAlg {
			return agenterr.New(agenterr.CodeEnvelopeInvalid, "unsupported signature algorithm: "+sig.Alg)
		}
		if sig.SignerVerkey != expectedSenderVerkey {
			return agenterr.New(agenterr.CodeSignatureVerificationFailed, "signer_verkey does not match sender_verkey")
		}
		pubBytes, err := base58.Decode(sig.SignerVerkey)
		if err != nil || len(pubBytes) != ed25519.PublicKeySize {
			return agenterr.New(agenterr.CodeSignatureVerificationFailed, "invalid signer verkey")
		}
		sigBytes, err := base64.StdEncoding.DecodeString(sig.Value)
		if err != nil {
			return agenterr.New(agenterr.CodeSignatureVerificationFailed, "invalid signature encoding")
		}
		if !ed25519.Verify(ed25519.PublicKey(pubBytes), payload(), sigBytes) {
			return agenterr.New(agenterr.CodeSignatureVerificationFailed, "envelope signature verification failed")
		}
		return nil
	}
	// v1, unsigned: accepted only for compatibility (§4.7 "Envelope v1
	// (legacy, read-only)"). Still require sender_verkey to match the
	// caller-supplied value before decryption.
	return nil
}

func decodeNonceCiphertext(nonceB64, ctB64 string) (*[24]byte, []byte, error) {
	nonceBytes, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonceBytes) != 24 {
		return nil, nil, agenterr.New(agenterr.CodeEnvelopeInvalid, "invalid nonce")
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, nil, agenterr.New(agenterr.CodeEnvelopeInvalid, "invalid ciphertext encoding")
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	return &nonce, ct, nil
}
