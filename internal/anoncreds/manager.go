package anoncreds

import (
	"crypto/rand"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// Manager drives the anoncreds state machine of §4.5 over a walletstore
// and an (optional) ledger, delegating the zero-knowledge math to
// Primitives.
type Manager struct {
	store  *walletstore.Store
	ledger LedgerClient
	prim   Primitives
}

// New constructs a Manager. ledger may be nil if no ledger is configured
// (schema/cred-def registration then fails with PoolNotConnected).
func New(store *walletstore.Store, ledger LedgerClient, prim Primitives) *Manager {
	return &Manager{store: store, ledger: ledger, prim: prim}
}

// BuildFinalAttrNames validates user attributes (non-empty, not reserved,
// not duplicated case-insensitively) and appends the control attributes
// when revocable, per SPEC_FULL.md §12.5.
func BuildFinalAttrNames(userAttrs []string, revocable bool) ([]string, error) {
	seen := make(map[string]bool, len(userAttrs))
	out := make([]string, 0, len(userAttrs)+len(ControlAttrs))
	for _, a := range userAttrs {
		k := strings.TrimSpace(a)
		if k == "" {
			return nil, agenterr.New(agenterr.CodeSchemaInvalid, "empty attribute name is not allowed")
		}
		if isReservedControlAttr(k) {
			return nil, agenterr.New(agenterr.CodeReservedAttribute, "reserved control attribute cannot be set manually: "+k)
		}
		norm := strings.ToLower(k)
		if seen[norm] {
			return nil, agenterr.New(agenterr.CodeDuplicateAttribute, "duplicate attribute: "+k)
		}
		seen[norm] = true
		out = append(out, k)
	}
	if revocable {
		out = append(out, ControlAttrs[:]...)
	}
	return out, nil
}

func isReservedControlAttr(a string) bool {
	for _, c := range ControlAttrs {
		if strings.EqualFold(c, a) {
			return true
		}
	}
	return false
}

func makeLocalID(prefix string) string {
	return prefix + ":" + randomBase58ID()
}

// randomBase58ID is grounded on the original's make_schema_local_id: 16
// random bytes, base58-encoded.
func randomBase58ID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// extremely unlikely; fall back to a timestamp-derived id rather
		// than panicking inside a library call
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return base58.Encode(buf)
}

// CreateSchemaDraft builds a local, unregistered schema record.
func (m *Manager) CreateSchemaDraft(name, version string, attrs []string, revocable bool, env string) (*SchemaRecord, error) {
	final, err := BuildFinalAttrNames(attrs, revocable)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	rec := &SchemaRecord{
		IDLocal:        makeLocalID("local"),
		Name:           name,
		Version:        version,
		AttrNames:      attrs,
		Revocable:      revocable,
		FinalAttrNames: final,
		OnLedger:       false,
		Env:            env,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.persistSchema(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) persistSchema(rec *SchemaRecord) error {
	sess, err := m.store.Session("")
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.Fetch("schema", rec.IDLocal, false); err == nil {
		if err := sess.Remove("schema", rec.IDLocal); err != nil {
			return err
		}
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize schema", err)
	}
	if err := sess.Insert("schema", rec.IDLocal, value, []walletstore.Tag{
		{Name: "on_ledger", Value: boolStr(rec.OnLedger)},
		{Name: "env", Value: rec.Env},
		{Name: "name", Value: rec.Name},
		{Name: "version", Value: rec.Version},
		{Name: "issuer_did", Value: rec.IssuerDID},
		{Name: "revocable", Value: boolStr(rec.Revocable)},
	}); err != nil {
		return err
	}
	return sess.Commit()
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// CreateAndRegisterSchema signs and submits a SCHEMA request, then
// persists the registered record (with schema_id =
// "<issuer>:2:<name>:<version>:<seqNo>", the last field being the ledger's
// returned seqNo).
func (m *Manager) CreateAndRegisterSchema(draft *SchemaRecord, issuerDID string, sign func([]byte) []byte) (*SchemaRecord, error) {
	if m.ledger == nil {
		return nil, agenterr.New(agenterr.CodePoolNotConnected, "no ledger configured")
	}
	op, reason, seqNo, err := m.ledger.SubmitSchema(issuerDID, sign, draft.Name, draft.Version, draft.FinalAttrNames)
	if err != nil {
		return nil, err
	}
	if op != "REPLY" {
		return nil, agenterr.WithDetails(agenterr.CodeLedgerRejected, "ledger rejected SCHEMA request", reason)
	}
	draft.OnLedger = true
	draft.IssuerDID = issuerDID
	draft.SchemaID = issuerDID + ":2:" + draft.Name + ":" + draft.Version + ":" + strconv.Itoa(seqNo)
	draft.UpdatedAt = time.Now().Unix()
	if err := m.persistSchema(draft); err != nil {
		return nil, err
	}
	return draft, nil
}
