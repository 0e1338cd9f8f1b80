package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

func TestCreateAndRecoverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.backup.json")

	require.NoError(t, Create("hunter2", "backup-pass", path))
	assert.FileExists(t, path)

	recovered, err := Recover("backup-pass", path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", recovered)
}

func TestRecoverWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.backup.json")
	require.NoError(t, Create("hunter2", "backup-pass", path))

	_, err := Recover("wrong-pass", path)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeBackupDecryptFailed, e.Code)
}

func TestCreateEmptyPath(t *testing.T) {
	err := Create("hunter2", "backup-pass", "")
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeBackupPathInvalid, e.Code)
}

func TestRecoverMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.backup.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1}`), 0600))

	_, err := Recover("backup-pass", path)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeBackupFormatInvalid, e.Code)
}

func TestRecoverBadNonceLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-nonce.backup.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": 1, "kdf": "argon2id",
		"salt_b64": "AAAAAAAAAAAAAAAAAAAAAA==",
		"m_cost_kib": 65536, "t_cost": 3, "p_cost": 1,
		"nonce_b64": "AAAA",
		"ct_b64": "AAAA"
	}`), 0600))

	_, err := Recover("backup-pass", path)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeBackupNonceInvalid, e.Code)
}
