package credvault

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/anoncreds"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

func newTestVault(t *testing.T) (*Vault, *walletstore.Store) {
	t.Helper()
	store, err := walletstore.Provision(filepath.Join(t.TempDir(), "w.db"), []byte("raw key material for credvault tests!!"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func seedCredential(t *testing.T, store *walletstore.Store, idLocal, schemaID, credDefID string, storedAt int64, values map[string]string) {
	t.Helper()
	credential := map[string]any{"schema_id": schemaID, "values": map[string]any{}}
	rawValues := credential["values"].(map[string]any)
	for k, v := range values {
		rawValues[k] = map[string]any{"raw": v, "encoded": v}
	}
	rec := anoncreds.CredentialRecord{
		IDLocal:    idLocal,
		SchemaID:   schemaID,
		CredDefID:  credDefID,
		StoredAt:   storedAt,
		Credential: credential,
	}
	value, err := json.Marshal(rec)
	require.NoError(t, err)

	sess, err := store.Session("")
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Insert("credential", idLocal, value, []walletstore.Tag{
		{Name: "schema_id", Value: schemaID},
		{Name: "cred_def_id", Value: credDefID},
		{Name: "stored_at", Value: "0"},
	}))
	require.NoError(t, sess.Commit())
}

func TestListFullAndByTags(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "c1", "schema:1", "cd:1", 1, map[string]string{"name": "alice"})
	seedCredential(t, store, "c2", "schema:2", "cd:1", 2, map[string]string{"name": "bob"})

	full, err := v.ListFull()
	require.NoError(t, err)
	assert.Len(t, full, 2)

	bySchema, err := v.ListByTags("schema:1", "")
	require.NoError(t, err)
	require.Len(t, bySchema, 1)
	assert.Equal(t, "c1", bySchema[0].IDLocal)
	assert.Equal(t, "alice", bySchema[0].ValuesRaw["name"])

	byBoth, err := v.ListByTags("schema:2", "cd:1")
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, "c2", byBoth[0].IDLocal)
}

func TestSummary(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "c1", "schema:1", "cd:1", 1, nil)
	seedCredential(t, store, "c2", "schema:1", "cd:2", 2, nil)

	sum, err := v.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.BySchemaID["schema:1"])
	assert.Equal(t, 1, sum.ByCredDefID["cd:1"])
	assert.Equal(t, 1, sum.ByCredDefID["cd:2"])
}

func TestListCompactPagination(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "a", "s", "cd", 1, nil)
	seedCredential(t, store, "b", "s", "cd", 2, nil)
	seedCredential(t, store, "c", "s", "cd", 3, nil)

	page1, err := v.ListCompact(ListOptions{Offset: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a", page1[0].IDLocal)
	assert.Equal(t, "b", page1[1].IDLocal)

	page2, err := v.ListCompact(ListOptions{Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "c", page2[0].IDLocal)
}

func TestListCompactCursor(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "a", "s", "cd", 1, nil)
	seedCredential(t, store, "b", "s", "cd", 2, nil)
	seedCredential(t, store, "c", "s", "cd", 3, nil)

	page, err := v.ListCompactCursor("", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].IDLocal)
	assert.Equal(t, "b", page.Items[1].IDLocal)
	require.NotEmpty(t, page.NextCursor)

	page2, err := v.ListCompactCursor(page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "c", page2.Items[0].IDLocal)
	assert.Empty(t, page2.NextCursor)
}

func TestSetAndClearAlias(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "c1", "schema:1", "cd:1", 1, nil)

	require.NoError(t, v.SetAlias("c1", "my-credential"))
	items, err := v.ListCompact(ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "my-credential", items[0].Alias)
	assert.Equal(t, "schema:1", items[0].SchemaID)

	require.NoError(t, v.ClearAlias("c1"))
	items, err = v.ListCompact(ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items[0].Alias)
}

func TestExportImportRoundTrip(t *testing.T) {
	v, store := newTestVault(t)
	seedCredential(t, store, "c1", "schema:1", "cd:1", 42, map[string]string{"name": "alice"})

	pkg, err := v.Export("c1")
	require.NoError(t, err)
	assert.Equal(t, "ssi.credential.package", pkg.Type)
	assert.Equal(t, "c1", pkg.IDLocal)
	assert.Equal(t, "schema:1", pkg.SchemaID)

	raw, err := json.Marshal(pkg)
	require.NoError(t, err)

	id, err := v.Import(raw, false)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeAlreadyExists, e.Code)

	id, err = v.Import(raw, true)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	imported, err := v.Export("c1")
	require.NoError(t, err)
	assert.Equal(t, "schema:1", imported.SchemaID)
}

func TestImportNewCredentialGetsGeneratedID(t *testing.T) {
	v, _ := newTestVault(t)
	raw := []byte(`{"type":"ssi.credential.package","version":1,"schema_id":"schema:x","cred_def_id":"cd:x","credential":{"values":{}}}`)

	id, err := v.Import(raw, false)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	full, err := v.ListFull()
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, id, full[0].IDLocal)
	assert.Equal(t, "schema:x", full[0].SchemaID)
}
