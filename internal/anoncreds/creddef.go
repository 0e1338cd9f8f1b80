package anoncreds

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// CreateCredDef implements §4.5's issuer-side credential-definition
// creation: resolve the schema on ledger, derive the deterministic id,
// check idempotence, invoke the external primitive, persist public/
// private halves, and publish CRED_DEF.
func (m *Manager) CreateCredDef(schemaID, issuerDID, tag string, sign func([]byte) []byte) (publicCredDefID string, err error) {
	if m.ledger == nil {
		return "", agenterr.New(agenterr.CodePoolNotConnected, "no ledger configured")
	}
	schemaData, err := m.ledger.GetSchema(schemaID)
	if err != nil {
		return "", err
	}
	if schemaData == nil {
		return "", agenterr.New(agenterr.CodeSchemaInvalid, "schema not found on ledger")
	}
	seqNo, _ := schemaData["seqNo"].(float64)
	attrNames := stringSliceField(schemaData, "attr_names")

	id := issuerDID + ":3:CL:" + strconv.Itoa(int(seqNo)) + ":" + tag

	sess, err := m.store.Session("")
	if err != nil {
		return "", err
	}
	if _, err := sess.Fetch("cred_def_private", id, false); err == nil {
		sess.Close()
		return id, nil
	}
	sess.Close()

	schema := map[string]any{
		"id":        schemaID,
		"name":      stringField(schemaData, "name"),
		"version":   stringField(schemaData, "version"),
		"attrNames": attrNames,
		"seqNo":     int(seqNo),
	}
	public, private, keyProof, err := m.prim.CreateCredentialDefinition(schemaID, schema, issuerDID, tag, false)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeCredDefInvalid, "failed to create credential definition", err)
	}

	sess2, err := m.store.Session("")
	if err != nil {
		return "", err
	}
	defer sess2.Close()

	keyProofJSON, _ := json.Marshal(keyProof)
	privateJSON, err := json.Marshal(private)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize private cred-def", err)
	}
	if err := sess2.Insert("cred_def_private", id, privateJSON, []walletstore.Tag{
		{Name: "key_proof", Value: string(keyProofJSON), Encrypted: true},
	}); err != nil {
		return "", err
	}
	publicJSON, err := json.Marshal(public)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize public cred-def", err)
	}
	if err := sess2.Insert("cred_def", id, publicJSON, []walletstore.Tag{
		{Name: "schema_id", Value: schemaID},
	}); err != nil {
		return "", err
	}
	if err := sess2.Commit(); err != nil {
		return "", err
	}

	op, reason, err := m.ledger.SubmitCredDef(issuerDID, sign, int(seqNo), tag, "CL", public)
	if err != nil {
		return "", err
	}
	if op != "REPLY" {
		return "", agenterr.WithDetails(agenterr.CodeLedgerRejected, "ledger rejected CRED_DEF request", reason)
	}
	return id, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CreateCredOffer fetches the issuer's cred-def (and its key_proof tag)
// and schema_id, invokes the external primitive, and persists the offer.
func (m *Manager) CreateCredOffer(credDefID string) (*CredOffer, error) {
	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	privEntry, err := sess.Fetch("cred_def_private", credDefID, false)
	if err != nil {
		return nil, err
	}
	keyProofJSON := tagValue(privEntry.Tags, "key_proof")
	var keyProof map[string]any
	if keyProofJSON != "" {
		_ = json.Unmarshal([]byte(keyProofJSON), &keyProof)
	}

	pubEntry, err := sess.Fetch("cred_def", credDefID, false)
	if err != nil {
		return nil, err
	}
	schemaID := tagValue(pubEntry.Tags, "schema_id")
	if schemaID == "" {
		return nil, agenterr.New(agenterr.CodeCredDefInvalid, "cred-def missing schema_id tag")
	}

	offer, err := m.prim.CreateCredentialOffer(schemaID, credDefID, keyProof)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeCredDefInvalid, "failed to create credential offer", err)
	}

	rec := &CredOffer{
		OfferIDLocal: makeLocalID("offer"),
		CredDefID:    credDefID,
		SchemaID:     schemaID,
		CreatedAt:    time.Now().Unix(),
		Offer:        offer,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize offer", err)
	}
	if err := sess.Insert("cred_offer", rec.OfferIDLocal, value, []walletstore.Tag{
		{Name: "cred_def_id", Value: credDefID},
		{Name: "schema_id", Value: schemaID},
		{Name: "created_at", Value: strconv.FormatInt(rec.CreatedAt, 10)},
	}); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func tagValue(tags []walletstore.Tag, name string) string {
	for _, t := range tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// StoreReceivedOffer persists a holder-received offer under its nonce,
// tagged "pending".
func (m *Manager) StoreReceivedOffer(nonce, schemaID, credDefID string, offer map[string]any) (*ReceivedOffer, error) {
	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	rec := &ReceivedOffer{
		Nonce:      nonce,
		SchemaID:   schemaID,
		CredDefID:  credDefID,
		Status:     "pending",
		ReceivedAt: time.Now().Unix(),
		Offer:      offer,
	}
	name := "received-offer-" + nonce
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize received offer", err)
	}
	if err := sess.Insert("received_offer", name, value, []walletstore.Tag{
		{Name: "schema_id", Value: schemaID},
		{Name: "cred_def_id", Value: credDefID},
		{Name: "status", Value: "pending"},
		{Name: "received_at", Value: strconv.FormatInt(rec.ReceivedAt, 10)},
	}); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}
