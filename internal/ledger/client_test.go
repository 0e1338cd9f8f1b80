package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGenesis(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.txn")
	require.NoError(t, os.WriteFile(path, []byte(`{"txn":"genesis"}`+"\n"), 0600))
	return path
}

func TestNewClientRequiresNonEmptyGenesis(t *testing.T) {
	_, err := NewClient(filepath.Join(t.TempDir(), "missing.txn"), nil)
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.txn")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err = NewClient(empty, nil)
	require.Error(t, err)
}

func TestTAAAcceptanceMidnightUTC(t *testing.T) {
	c, err := NewClient(writeGenesis(t), func(body []byte) (map[string]interface{}, time.Duration, error) {
		return map[string]interface{}{"op": "REPLY", "result": map[string]interface{}{}}, 0, nil
	})
	require.NoError(t, err)
	assert.Nil(t, c.taaAcceptance())

	c.SetTAA(&TAA{Text: "agree", Version: "1.0", Digest: "abc"})
	acc := c.taaAcceptance()
	require.NotNil(t, acc)
	assert.Equal(t, "wallet_agreement", acc["mechanism"])
	ts, ok := acc["time"].(int64)
	require.True(t, ok)
	assert.Equal(t, int64(0), ts%86400)
}

func TestGetNymAndSubmitNym(t *testing.T) {
	var lastBody []byte
	submit := func(body []byte) (map[string]interface{}, time.Duration, error) {
		lastBody = body
		return map[string]interface{}{
			"op": "REPLY",
			"result": map[string]interface{}{
				"data": map[string]interface{}{"verkey": "vk", "role": "101"},
			},
		}, time.Millisecond, nil
	}
	c, err := NewClient(writeGenesis(t), submit)
	require.NoError(t, err)

	data, err := c.GetNym("did:sov:abc")
	require.NoError(t, err)
	assert.Equal(t, "vk", data["verkey"])

	roleCode := "101"
	op, reason, err := c.SubmitNym("did:sov:sub", func(msg []byte) []byte { return []byte("sig") }, "did:sov:target", "vk2", &roleCode)
	require.NoError(t, err)
	assert.Equal(t, "REPLY", op)
	assert.Equal(t, "", reason)
	assert.NotEmpty(t, lastBody)
}

func TestSubmitSchemaAndCredDef(t *testing.T) {
	c, err := NewClient(writeGenesis(t), func(body []byte) (map[string]interface{}, time.Duration, error) {
		return map[string]interface{}{
			"op":     "REPLY",
			"result": map[string]interface{}{"seqNo": float64(42)},
		}, 0, nil
	})
	require.NoError(t, err)

	sign := func(msg []byte) []byte { return []byte("sig") }
	op, reason, seqNo, err := c.SubmitSchema("did:sov:issuer", sign, "schema-name", "1.0", []string{"name", "age"})
	require.NoError(t, err)
	assert.Equal(t, "REPLY", op)
	assert.Equal(t, "", reason)
	assert.Equal(t, 42, seqNo)

	op2, _, err := c.SubmitCredDef("did:sov:issuer", sign, 42, "tag1", "CL", map[string]interface{}{"primary": map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, "REPLY", op2)
}
