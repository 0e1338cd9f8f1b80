// Package anoncreds implements the anonymous-credential protocol state
// machine of §4.5: schema/cred-def lifecycle, offers, link-secret
// management, credential requests/issuance/storage, and presentation
// creation/verification. The zero-knowledge cryptographic primitives
// themselves are treated as an external collaborator (spec.md §1) behind
// the Primitives interface — this package owns persistence, ledger
// interaction, normalization, and state transitions around them.
package anoncreds

// ControlAttrs are the reserved attribute names appended to a revocable
// schema's final_attr_names; reserving these manually is forbidden.
var ControlAttrs = [5]string{"seed", "start_time", "unit_of_time", "time_window", "root_merkle_L"}

// SchemaRecord is the persisted schema record of §3/§4.5.
type SchemaRecord struct {
	IDLocal        string   `json:"id_local"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	AttrNames      []string `json:"attr_names"`
	Revocable      bool     `json:"revocable"`
	FinalAttrNames []string `json:"final_attr_names"`
	OnLedger       bool     `json:"on_ledger"`
	SchemaID       string   `json:"schema_id,omitempty"`
	IssuerDID      string   `json:"issuer_did,omitempty"`
	Env            string   `json:"env"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// CredOffer is the persisted local credential-offer record.
type CredOffer struct {
	OfferIDLocal string          `json:"offer_id_local"`
	CredDefID    string          `json:"cred_def_id"`
	SchemaID     string          `json:"schema_id"`
	CreatedAt    int64           `json:"created_at"`
	Offer        map[string]any  `json:"offer"`
}

// ReceivedOffer is the holder-side record of an offer received out of
// band, keyed by its nonce.
type ReceivedOffer struct {
	Nonce      string         `json:"nonce"`
	SchemaID   string         `json:"schema_id"`
	CredDefID  string         `json:"cred_def_id"`
	Status     string         `json:"status"`
	ReceivedAt int64          `json:"received_at"`
	Offer      map[string]any `json:"offer"`
}

// CredentialRecord is the persisted, processed credential.
type CredentialRecord struct {
	IDLocal    string         `json:"id_local"`
	SchemaID   string         `json:"schema_id"`
	CredDefID  string         `json:"cred_def_id"`
	StoredAt   int64          `json:"stored_at"`
	Alias      string         `json:"alias,omitempty"`
	Credential map[string]any `json:"credential"`
}

// SelectionSpec is the UI-friendly presentation-creation input of §4.5.
type SelectionSpec struct {
	Selection     []SelectionEntry  `json:"selection"`
	SelfAttested  map[string]string `json:"self_attested"`
}

type SelectionEntry struct {
	CredID     string                `json:"cred_id"`
	Attributes []SelectionAttribute  `json:"attributes"`
	Predicates []SelectionPredicate  `json:"predicates"`
	Timestamp  *int64                `json:"timestamp,omitempty"`
}

type SelectionAttribute struct {
	Referent string `json:"referent"`
	Revealed bool   `json:"revealed"`
}

type SelectionPredicate struct {
	Referent string `json:"referent"`
}

// CanonicalPresentInput is the per-referent canonical form the external
// primitive expects, per §4.5's transform step.
type CanonicalPresentInput struct {
	RequestedAttributes map[string]RequestedAttrRef  `json:"requested_attributes"`
	RequestedPredicates map[string]RequestedPredRef  `json:"requested_predicates"`
	SelfAttestedAttributes map[string]string         `json:"self_attested_attributes"`
}

type RequestedAttrRef struct {
	CredID    string `json:"cred_id"`
	Revealed  bool   `json:"revealed"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type RequestedPredRef struct {
	CredID    string `json:"cred_id"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}
