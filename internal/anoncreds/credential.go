package anoncreds

import (
	"crypto/sha256"
	"encoding/json"
	"math/big"
	"strconv"
	"time"
	"unicode"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// CreateCredentialRequest implements §4.5's holder-side request flow:
// resolve the link secret, normalize the cred-def, call the primitive
// with the pinned entropy=nil/proverDID=&did policy (SPEC_FULL.md §13),
// and persist the request metadata under the offer's nonce.
func (m *Manager) CreateCredentialRequest(proverDID string, credDefRaw map[string]any, credDefID string, offer map[string]any) (request map[string]any, err error) {
	linkSecret, err := m.resolveLinkSecret(defaultLinkSecretID)
	if err != nil {
		return nil, err
	}
	credDef, err := NormalizeCredDef(credDefRaw, credDefID)
	if err != nil {
		return nil, err
	}
	nonce, _ := offer["nonce"].(string)

	req, metadata, err := m.prim.CreateCredentialRequest(nil, &proverDID, credDef, linkSecret, nonce, offer)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeCredDefInvalid, "failed to create credential request", err)
	}

	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize request metadata", err)
	}
	if _, err := sess.Fetch("request_metadata", nonce, false); err == nil {
		if err := sess.Remove("request_metadata", nonce); err != nil {
			return nil, err
		}
	}
	if err := sess.Insert("request_metadata", nonce, metaJSON, nil); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

// isAllASCIIDigits reports whether s is non-empty and composed entirely
// of ASCII digits.
func isAllASCIIDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// encodeAttrValue implements §4.5's raw/encoded rule: the decimal string
// itself if all-ASCII-digits, else the decimal big-endian integer of
// SHA-256(value).
func encodeAttrValue(value string) string {
	if isAllASCIIDigits(value) {
		return value
	}
	h := sha256.Sum256([]byte(value))
	n := new(big.Int).SetBytes(h[:])
	return n.String()
}

// BuildCredentialValues converts a caller-supplied attribute map into the
// raw/encoded pairs the CreateCredential primitive requires.
func BuildCredentialValues(attrs map[string]string) map[string]CredentialValue {
	out := make(map[string]CredentialValue, len(attrs))
	for attr, value := range attrs {
		out[attr] = CredentialValue{Raw: value, Encoded: encodeAttrValue(value)}
	}
	return out
}

// IssueCredential implements §4.5's issuer-side issuance: load the
// issuer's cred-def/cred-def-private and call the external primitive.
func (m *Manager) IssueCredential(credDefID string, offer, request map[string]any, attrs map[string]string) (credential map[string]any, err error) {
	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	pubEntry, err := sess.Fetch("cred_def", credDefID, false)
	if err != nil {
		return nil, err
	}
	var credDef map[string]any
	if err := json.Unmarshal(pubEntry.Value, &credDef); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse cred-def", err)
	}
	privEntry, err := sess.Fetch("cred_def_private", credDefID, false)
	if err != nil {
		return nil, err
	}
	var credDefPrivate map[string]any
	if err := json.Unmarshal(privEntry.Value, &credDefPrivate); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse private cred-def", err)
	}

	values := BuildCredentialValues(attrs)
	cred, err := m.prim.CreateCredential(credDef, credDefPrivate, offer, request, values, nil)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeCredDefInvalid, "failed to issue credential", err)
	}
	return cred, nil
}

// StoreCredential implements §4.5's holder-side storage: resolve the link
// secret, normalize the cred-def, process the credential in place, and
// persist the result.
func (m *Manager) StoreCredential(credential map[string]any, credDefRaw map[string]any, credDefID string, alias string) (*CredentialRecord, error) {
	linkSecret, err := m.resolveLinkSecret(defaultLinkSecretID)
	if err != nil {
		return nil, err
	}
	credDef, err := NormalizeCredDef(credDefRaw, credDefID)
	if err != nil {
		return nil, err
	}

	nonce, _ := credential["nonce"].(string)

	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	metaEntry, err := sess.Fetch("request_metadata", nonce, false)
	var metadata map[string]any
	if err == nil {
		_ = json.Unmarshal(metaEntry.Value, &metadata)
	}

	processed, err := m.prim.ProcessCredential(credential, metadata, linkSecret, credDef, nil)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeCredDefInvalid, "failed to process credential", err)
	}

	schemaID, _ := credDef["schemaId"].(string)
	rec := &CredentialRecord{
		IDLocal:    makeLocalID("credential"),
		SchemaID:   schemaID,
		CredDefID:  credDefID,
		StoredAt:   time.Now().Unix(),
		Alias:      alias,
		Credential: processed,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize credential", err)
	}
	if err := sess.Insert("credential", rec.IDLocal, value, []walletstore.Tag{
		{Name: "schema_id", Value: schemaID},
		{Name: "cred_def_id", Value: credDefID},
		{Name: "stored_at", Value: strconv.FormatInt(rec.StoredAt, 10)},
	}); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}
