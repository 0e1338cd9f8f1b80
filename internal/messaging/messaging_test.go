package messaging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/didreg"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

func newTestMessenger(t *testing.T) (*Messenger, string, string) {
	t.Helper()
	store, err := walletstore.Provision(filepath.Join(t.TempDir(), "w.db"), []byte("raw key material for messaging tests!"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := didreg.New(store, nil)
	sender, err := reg.CreateOwnDID("sender")
	require.NoError(t, err)
	receiver, err := reg.CreateOwnDID("receiver")
	require.NoError(t, err)

	return New(store), sender.DID, receiver.DID
}

func verkeyOf(t *testing.T, m *Messenger, did string) string {
	t.Helper()
	id, err := m.resolveSender(did)
	require.NoError(t, err)
	return id.verkey
}

func TestEncryptDecryptMessageRoundTrip(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	senderVerkey := verkeyOf(t, m, senderDID)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	env, err := m.EncryptMessage(senderDID, receiverVerkey, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, env.V)
	assert.Equal(t, SigAlg, env.Sig.Alg)

	pt, err := m.DecryptMessage(receiverDID, senderVerkey, env)
	require.NoError(t, err)
	assert.Equal(t, "hello", pt)
}

func TestDecryptMessageTamperedCiphertextFails(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	senderVerkey := verkeyOf(t, m, senderDID)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	env, err := m.EncryptMessage(senderDID, receiverVerkey, "hello")
	require.NoError(t, err)

	env.Ciphertext = env.Ciphertext[:len(env.Ciphertext)-4] + "AAAA"
	_, err = m.DecryptMessage(receiverDID, senderVerkey, env)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeSignatureVerificationFailed, e.Code)
}

func TestDecryptMessageSenderVerkeyMismatchFails(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	env, err := m.EncryptMessage(senderDID, receiverVerkey, "hello")
	require.NoError(t, err)

	_, err = m.DecryptMessage(receiverDID, receiverVerkey, env)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeSignatureVerificationFailed, e.Code)
}

func TestEncryptDecryptFileRoundTrip(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	senderVerkey := verkeyOf(t, m, senderDID)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	content := []byte("the quick brown fox jumps over the lazy dog")
	env, err := m.EncryptFile(senderDID, receiverVerkey, "fox.txt", content)
	require.NoError(t, err)

	pt, name, err := m.DecryptFile(receiverDID, senderVerkey, env)
	require.NoError(t, err)
	assert.Equal(t, content, pt)
	assert.Equal(t, "fox.txt", name)
}

func TestLargeFileRoundTrip(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	senderVerkey := verkeyOf(t, m, senderDID)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.ssifile2")
	decPath := filepath.Join(dir, "out.bin")

	chunkSize := 64 * 1024
	size := 3*chunkSize + 17
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(inPath, content, 0600))

	require.NoError(t, m.EncryptLargeFile(senderDID, receiverVerkey, inPath, outPath, chunkSize))

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, SSIFILE2Magic, string(raw[:8]))

	require.NoError(t, m.DecryptLargeFile(receiverDID, senderVerkey, outPath, decPath))
	decoded, err := os.ReadFile(decPath)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestLargeFileRejectsSmallChunkSize(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(inPath, []byte("short"), 0600))

	err := m.EncryptLargeFile(senderDID, receiverVerkey, inPath, filepath.Join(dir, "out.ssifile2"), 1024)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeChunkSizeTooSmall, e.Code)
}

func TestLargeFileTamperedChunkFailsAndCleansUpTmp(t *testing.T) {
	m, senderDID, receiverDID := newTestMessenger(t)
	senderVerkey := verkeyOf(t, m, senderDID)
	receiverVerkey := verkeyOf(t, m, receiverDID)

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.ssifile2")
	decPath := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(inPath, []byte("some file content that spans at least one chunk boundary!!"), 0600))

	require.NoError(t, m.EncryptLargeFile(senderDID, receiverVerkey, inPath, outPath, MinChunkSize))

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(outPath, raw, 0600))

	err = m.DecryptLargeFile(receiverDID, senderVerkey, outPath, decPath)
	require.Error(t, err)
	assert.NoFileExists(t, decPath+".tmp")
}
