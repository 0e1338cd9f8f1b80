package agent

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

func tempWalletPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "w.db")
}

func TestCreateAndOpen(t *testing.T) {
	path := tempWalletPath(t)

	a, err := Create(path, "correct horse battery staple", Options{})
	require.NoError(t, err)
	assert.Equal(t, path, a.WalletPath())
	assert.NotNil(t, a.DIDs)
	assert.NotNil(t, a.Creds)
	assert.NotNil(t, a.Vault)
	assert.NotNil(t, a.Messages)
	assert.Nil(t, a.Ledger)
	require.NoError(t, a.Close())

	reopened, err := Open(path, "correct horse battery staple", Options{})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.WalletPath())
}

func TestCreateTwiceFails(t *testing.T) {
	path := tempWalletPath(t)

	a, err := Create(path, "password one", Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = Create(path, "password one", Options{})
	require.Error(t, err)
}

func TestOpenMissingWallet(t *testing.T) {
	path := tempWalletPath(t)

	_, err := Open(path, "whatever", Options{})
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeWalletNotFound, e.Code)
}

func TestOpenWrongPassword(t *testing.T) {
	path := tempWalletPath(t)

	a, err := Create(path, "right password", Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = Open(path, "wrong password", Options{})
	require.Error(t, err)
}

func TestDIDCreateRoundTripsThroughAgent(t *testing.T) {
	path := tempWalletPath(t)
	a, err := Create(path, "another password", Options{})
	require.NoError(t, err)
	defer a.Close()

	rec, err := a.DIDs.CreateOwnDID("me")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.DID)

	_, err = a.Vault.ListFull()
	require.NoError(t, err)
}
