package anoncreds

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

type fakePrimitives struct{}

func (fakePrimitives) CreateCredentialDefinition(schemaID string, schema map[string]any, issuerID, tag string, supportRevocation bool) (map[string]any, map[string]any, map[string]any, error) {
	return map[string]any{"primary": "pub"}, map[string]any{"primary": "priv"}, map[string]any{"c": "1"}, nil
}
func (fakePrimitives) CreateCredentialOffer(schemaID, credDefID string, keyCorrectnessProof map[string]any) (map[string]any, error) {
	return map[string]any{"schema_id": schemaID, "cred_def_id": credDefID, "nonce": "nonce-1"}, nil
}
func (fakePrimitives) CreateLinkSecret() (string, error) { return "123456789", nil }
func (fakePrimitives) CreateCredentialRequest(entropy, proverDID *string, credDef map[string]any, linkSecret string, nonce string, offer map[string]any) (map[string]any, map[string]any, error) {
	return map[string]any{"nonce": nonce}, map[string]any{"master_secret_blinding_data": "x"}, nil
}
func (fakePrimitives) CreateCredential(credDef, credDefPrivate, offer, request map[string]any, values map[string]CredentialValue, revConfig map[string]any) (map[string]any, error) {
	return map[string]any{"values": values}, nil
}
func (fakePrimitives) ProcessCredential(credential map[string]any, requestMetadata map[string]any, linkSecret string, credDef map[string]any, revRegDef map[string]any) (map[string]any, error) {
	return credential, nil
}
func (fakePrimitives) CreatePresentation(request map[string]any, presentCredentials map[string]any, selfAttested map[string]string, linkSecret string, schemas, credDefs map[string]any) (map[string]any, error) {
	return map[string]any{"proof": "ok"}, nil
}
func (fakePrimitives) VerifyPresentation(presentation, request map[string]any, schemas, credDefs map[string]any) (bool, error) {
	return true, nil
}

type fakeLedger struct{ seqNo int }

func (f *fakeLedger) GetSchema(schemaID string) (map[string]interface{}, error) {
	return map[string]interface{}{"seqNo": float64(f.seqNo), "name": "degree", "version": "1.0", "attr_names": []interface{}{"name", "age"}}, nil
}
func (f *fakeLedger) SubmitSchema(submitterDID string, sign func([]byte) []byte, name, version string, attrNames []string) (string, string, int, error) {
	return "REPLY", "", f.seqNo, nil
}
func (f *fakeLedger) GetCredDef(credDefID string) (map[string]interface{}, error) { return nil, nil }
func (f *fakeLedger) SubmitCredDef(submitterDID string, sign func([]byte) []byte, schemaSeqNo int, tag, signatureType string, value map[string]interface{}) (string, string, error) {
	return "REPLY", "", nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := walletstore.Provision(filepath.Join(t.TempDir(), "w.db"), []byte("raw key for anoncreds tests, long one"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, &fakeLedger{seqNo: 10}, fakePrimitives{})
}

func TestBuildFinalAttrNamesRejectsReservedAndDuplicate(t *testing.T) {
	_, err := BuildFinalAttrNames([]string{"name", "seed"}, false)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeReservedAttribute, e.Code)

	_, err = BuildFinalAttrNames([]string{"name", "Name"}, false)
	require.Error(t, err)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeDuplicateAttribute, e.Code)

	final, err := BuildFinalAttrNames([]string{"name", "age"}, true)
	require.NoError(t, err)
	assert.Contains(t, final, "seed")
	assert.Contains(t, final, "root_merkle_L")
}

func TestSchemaAndCredDefLifecycle(t *testing.T) {
	m := newTestManager(t)
	draft, err := m.CreateSchemaDraft("degree", "1.0", []string{"name", "age"}, false, "test")
	require.NoError(t, err)
	assert.False(t, draft.OnLedger)

	registered, err := m.CreateAndRegisterSchema(draft, "issuerXYZ", func(b []byte) []byte { return b })
	require.NoError(t, err)
	assert.True(t, registered.OnLedger)
	assert.NotEmpty(t, registered.SchemaID)

	credDefID, err := m.CreateCredDef(registered.SchemaID, "issuerXYZ", "tag1", func(b []byte) []byte { return b })
	require.NoError(t, err)
	assert.Contains(t, credDefID, ":3:CL:10:tag1")

	again, err := m.CreateCredDef(registered.SchemaID, "issuerXYZ", "tag1", func(b []byte) []byte { return b })
	require.NoError(t, err)
	assert.Equal(t, credDefID, again)

	offer, err := m.CreateCredOffer(credDefID)
	require.NoError(t, err)
	assert.Equal(t, registered.SchemaID, offer.SchemaID)
}

func TestLinkSecretSingleton(t *testing.T) {
	require.NoError(t, globalLinkSecretCacheReset())
	m := newTestManager(t)
	require.NoError(t, m.CreateLinkSecret(""))
	v1, err := m.resolveLinkSecret("")
	require.NoError(t, err)
	require.NoError(t, m.CreateLinkSecret("")) // no-op
	v2, err := m.resolveLinkSecret("")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func globalLinkSecretCacheReset() error {
	ClearLinkSecretCache()
	return nil
}

func TestEncodeAttrValue(t *testing.T) {
	assert.Equal(t, "12345", encodeAttrValue("12345"))
	assert.NotEqual(t, "hello", encodeAttrValue("hello"))
	assert.True(t, isAllASCIIDigits("007"))
	assert.False(t, isAllASCIIDigits("7a"))
}

func TestValidateReferentsRejectsUnknown(t *testing.T) {
	req := PresentationRequest{
		RequestedAttributes: map[string]any{"name": map[string]any{}},
		RequestedPredicates: map[string]any{},
	}
	spec := SelectionSpec{
		Selection: []SelectionEntry{
			{CredID: "cred-1", Attributes: []SelectionAttribute{{Referent: "age_over_21", Revealed: true}}},
		},
	}
	err := ValidateReferents(req, spec)
	require.Error(t, err)
	var e *agenterr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, agenterr.CodeReferentUnknown, e.Code)
}

func TestNormalizeCredDefShapes(t *testing.T) {
	wrapped := map[string]any{
		"result": map[string]any{
			"data": map[string]any{"id": "issuerXYZ:3:CL:1:tag1", "primary": map[string]any{"n": "1"}},
		},
	}
	norm, err := NormalizeCredDef(wrapped, "")
	require.NoError(t, err)
	assert.Equal(t, "issuerXYZ", norm["issuerId"])
	assert.Equal(t, "CL", norm["type"])
}
