package didreg

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := walletstore.Provision(filepath.Join(t.TempDir(), "w.db"), []byte("raw key material for didreg tests!!"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, nil)
}

func TestDecodeSeedHexAndBase64(t *testing.T) {
	hexSeed := "0000000000000000000000000000000000000000000000000000000000000"[:64]
	seed, err := DecodeSeed(hexSeed)
	require.NoError(t, err)
	assert.Len(t, seed, 32)

	_, err = DecodeSeed("not-a-valid-seed")
	require.Error(t, err)
}

func TestCreateOwnDIDDistinctEachTime(t *testing.T) {
	reg := newTestRegistry(t)
	a, err := reg.CreateOwnDID("alice")
	require.NoError(t, err)
	b, err := reg.CreateOwnDID("alice-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.DID, b.DID)
	assert.Equal(t, TypeOwn, a.Type)
	assert.Equal(t, OriginGenerated, a.Origin)
}

func TestImportDIDFromSeedIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	first, err := reg.ImportDIDFromSeed(seed, "bob")
	require.NoError(t, err)
	second, err := reg.ImportDIDFromSeed(seed, "bob-again")
	require.NoError(t, err)
	assert.Equal(t, first.DID, second.DID)
}

func TestStoreTheirDIDIdempotentAndConflict(t *testing.T) {
	reg := newTestRegistry(t)
	rec, err := reg.StoreTheirDID("did:sov:external1", "verkey-abc", "carol")
	require.NoError(t, err)
	assert.Equal(t, TypeExternal, rec.Type)

	again, err := reg.StoreTheirDID("did:sov:external1", "verkey-abc", "carol-2")
	require.NoError(t, err)
	assert.Equal(t, "carol", again.Alias) // no-op: original record returned unchanged

	_, err = reg.StoreTheirDID("did:sov:external1", "verkey-different", "mallory")
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeDidConflict, e.Code)
}

func TestSearchFiltersAndPagination(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.CreateOwnDID("own-1")
	require.NoError(t, err)
	_, err = reg.StoreTheirDID("did:sov:ext1", "vk1", "ext-1")
	require.NoError(t, err)

	all, err := reg.Search(SearchFilter{Type: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := reg.Search(SearchFilter{Type: "own"})
	require.NoError(t, err)
	assert.Len(t, own, 1)
	assert.Equal(t, TypeOwn, own[0].Type)

	byQuery, err := reg.Search(SearchFilter{Query: "ext-1"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "did:sov:ext1", byQuery[0].DID)

	paged, err := reg.Search(SearchFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
}

func TestExportImportBatch(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.StoreTheirDID("did:sov:e1", "vk1", "a1")
	require.NoError(t, err)

	batch, err := reg.ExportBatch(SearchFilter{Type: "external"})
	require.NoError(t, err)
	assert.Equal(t, "ssi-did-batch-v1", batch.Type)
	require.Len(t, batch.Items, 1)

	raw, err := json.Marshal(batch)
	require.NoError(t, err)

	reg2 := newTestRegistry(t)
	n, err := reg2.ImportBatch(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := reg2.Get("did:sov:e1")
	require.NoError(t, err)
	assert.Equal(t, "vk1", rec.Verkey)
}

func TestPrimaryDID(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.GetPrimaryDID()
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodePrimaryDidMissing, e.Code)

	rec, err := reg.CreateOwnDID("primary")
	require.NoError(t, err)
	require.NoError(t, reg.SetPrimaryDID(rec.DID))

	got, err := reg.GetPrimaryDID()
	require.NoError(t, err)
	assert.Equal(t, rec.DID, got)
}
