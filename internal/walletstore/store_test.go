package walletstore

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

func TestProvisionAndOpen(t *testing.T) {
	path := tempWalletPath(t)
	rawKey := []byte("correct horse battery staple key material!!")

	store, err := Provision(path, rawKey)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, rawKey)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = Open(path, []byte("wrong key material padded to length!!!!!!!"))
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeWalletAuthFailed, e.Code)
}

func TestProvisionTwiceFails(t *testing.T) {
	path := tempWalletPath(t)
	rawKey := []byte("some raw key material of sufficient length")

	store, err := Provision(path, rawKey)
	require.NoError(t, err)
	store.Close()

	_, err = Provision(path, rawKey)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeWalletAlreadyExists, e.Code)
}

func TestOpenMissingWallet(t *testing.T) {
	_, err := Open(tempWalletPath(t), []byte("anything"))
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeWalletNotFound, e.Code)
}

func TestSessionInsertFetchRemove(t *testing.T) {
	store, err := Provision(tempWalletPath(t), []byte("raw key material, quite long indeed"))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Session("")
	require.NoError(t, err)

	err = sess.Insert("did", "did:sov:abc", []byte(`{"did":"did:sov:abc"}`), []Tag{
		{Name: "type", Value: "own"},
		{Name: "alias", Value: "alice", Encrypted: true},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	sess2, err := store.Session("")
	require.NoError(t, err)
	defer sess2.Close()

	entry, err := sess2.Fetch("did", "did:sov:abc", false)
	require.NoError(t, err)
	assert.Equal(t, `{"did":"did:sov:abc"}`, string(entry.Value))
	require.Len(t, entry.Tags, 2)

	all, err := sess2.FetchAll("did", FetchAllOptions{
		Tags:         TagFilter{Equals: map[string]string{"type": "own"}},
		IncludeValue: true,
	})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "did:sov:abc", all[0].Name)

	require.NoError(t, sess2.Remove("did", "did:sov:abc"))
	require.NoError(t, sess2.Commit())

	sess3, err := store.Session("")
	require.NoError(t, err)
	defer sess3.Close()
	_, err = sess3.Fetch("did", "did:sov:abc", false)
	require.Error(t, err)
}

func TestSessionRollbackOnClose(t *testing.T) {
	store, err := Provision(tempWalletPath(t), []byte("another raw key, long enough here"))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Session("")
	require.NoError(t, err)
	require.NoError(t, sess.Insert("settings", "primary_did", []byte("did:sov:x"), nil))
	require.NoError(t, sess.Close()) // no Commit: rolls back

	sess2, err := store.Session("")
	require.NoError(t, err)
	defer sess2.Close()
	_, err = sess2.Fetch("settings", "primary_did", false)
	require.Error(t, err)
}

func TestEncryptedTagFilter(t *testing.T) {
	store, err := Provision(tempWalletPath(t), []byte("yet another sufficiently long raw key"))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Session("")
	require.NoError(t, err)
	require.NoError(t, sess.Insert("credential", "cred-1", []byte("{}"), []Tag{
		{Name: "schema_id", Value: "schema:1", Encrypted: true},
	}))
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	sess2, err := store.Session("")
	require.NoError(t, err)
	defer sess2.Close()

	hashed := store.HashTagValue("schema_id", "schema:1")
	res, err := sess2.FetchAll("credential", FetchAllOptions{
		Tags: TagFilter{Equals: map[string]string{"schema_id": hashed}},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)

	none, err := sess2.FetchAll("credential", FetchAllOptions{
		Tags: TagFilter{Equals: map[string]string{"schema_id": "schema:1"}},
	})
	require.NoError(t, err)
	require.Len(t, none, 0)
}

func TestKMSKeyRoundTrip(t *testing.T) {
	store, err := Provision(tempWalletPath(t), []byte("kms raw key of plenty length here"))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Session("")
	require.NoError(t, err)
	require.NoError(t, sess.InsertKey("verkey123", []byte{1, 2, 3, 4}, "ed25519"))
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	sess2, err := store.Session("")
	require.NoError(t, err)
	defer sess2.Close()
	rec, err := sess2.FetchKey("verkey123", false)
	require.NoError(t, err)
	assert.Equal(t, "ed25519", rec.Alg)
	assert.Equal(t, []byte{1, 2, 3, 4}, rec.KeyMaterial)
}
