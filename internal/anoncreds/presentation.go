package anoncreds

import (
	"encoding/json"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// PresentationRequest is the minimal shape of a proof request needed to
// validate referents, per §4.5/§8 scenario 5.
type PresentationRequest struct {
	RequestedAttributes map[string]any `json:"requested_attributes"`
	RequestedPredicates map[string]any `json:"requested_predicates"`
}

// ValidateReferents rejects any referent in the selection that does not
// exist in the presentation request, before any anoncreds call, per §8
// scenario 5.
func ValidateReferents(req PresentationRequest, spec SelectionSpec) error {
	for _, sel := range spec.Selection {
		for _, attr := range sel.Attributes {
			if _, ok := req.RequestedAttributes[attr.Referent]; !ok {
				return agenterr.New(agenterr.CodeReferentUnknown, "unknown requested-attribute referent: "+attr.Referent)
			}
		}
		for _, pred := range sel.Predicates {
			if _, ok := req.RequestedPredicates[pred.Referent]; !ok {
				return agenterr.New(agenterr.CodeReferentUnknown, "unknown requested-predicate referent: "+pred.Referent)
			}
		}
	}
	return nil
}

// ToCanonicalPresentInput transforms the UI-friendly SelectionSpec into
// the canonical per-referent form §4.5 requires.
func ToCanonicalPresentInput(spec SelectionSpec) CanonicalPresentInput {
	out := CanonicalPresentInput{
		RequestedAttributes:    map[string]RequestedAttrRef{},
		RequestedPredicates:    map[string]RequestedPredRef{},
		SelfAttestedAttributes: spec.SelfAttested,
	}
	for _, sel := range spec.Selection {
		for _, attr := range sel.Attributes {
			out.RequestedAttributes[attr.Referent] = RequestedAttrRef{
				CredID:    sel.CredID,
				Revealed:  attr.Revealed,
				Timestamp: sel.Timestamp,
			}
		}
		for _, pred := range sel.Predicates {
			out.RequestedPredicates[pred.Referent] = RequestedPredRef{
				CredID:    sel.CredID,
				Timestamp: sel.Timestamp,
			}
		}
	}
	return out
}

// credIDsInSpec returns the distinct cred_ids referenced by a selection,
// in first-seen order, used to group credential loads by cred_id per
// §4.5's "Group by cred_id" step.
func credIDsInSpec(spec SelectionSpec) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, sel := range spec.Selection {
		if !seen[sel.CredID] {
			seen[sel.CredID] = true
			ids = append(ids, sel.CredID)
		}
	}
	return ids
}

// CreatePresentation implements §4.5's presentation-creation flow:
// validate referents, transform to canonical form, load and group
// credentials by cred_id, normalize schemas/cred-defs, and call the
// external primitive.
func (m *Manager) CreatePresentation(requestJSON []byte, spec SelectionSpec, schemasRaw, credDefsRaw map[string]map[string]any) (presentation map[string]any, err error) {
	var req PresentationRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid presentation request JSON", err)
	}
	if err := ValidateReferents(req, spec); err != nil {
		return nil, err
	}
	canonical := ToCanonicalPresentInput(spec)

	linkSecret, err := m.resolveLinkSecret(defaultLinkSecretID)
	if err != nil {
		return nil, err
	}

	sess, err := m.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	presentCredentials := make(map[string]any)
	for _, credID := range credIDsInSpec(spec) {
		entry, err := sess.Fetch("credential", credID, false)
		if err != nil {
			return nil, err
		}
		var rec CredentialRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse credential", err)
		}
		presentCredentials[credID] = rec.Credential
	}

	schemas := make(map[string]any, len(schemasRaw))
	for id, raw := range schemasRaw {
		norm, err := NormalizeSchema(raw)
		if err != nil {
			return nil, err
		}
		schemas[id] = norm
	}
	credDefs := make(map[string]any, len(credDefsRaw))
	for id, raw := range credDefsRaw {
		norm, err := NormalizeCredDef(raw, id)
		if err != nil {
			return nil, err
		}
		credDefs[id] = norm
	}

	requestMap := map[string]any{
		"requested_attributes": req.RequestedAttributes,
		"requested_predicates": req.RequestedPredicates,
	}
	presentInput := map[string]any{
		"requested_attributes":   canonical.RequestedAttributes,
		"requested_predicates":   canonical.RequestedPredicates,
		"self_attested_attributes": canonical.SelfAttestedAttributes,
		"credentials":            presentCredentials,
	}
	return m.prim.CreatePresentation(requestMap, presentInput, canonical.SelfAttestedAttributes, linkSecret, schemas, credDefs)
}

// VerifyPresentation normalizes schemas/cred-defs and delegates to the
// external primitive.
func (m *Manager) VerifyPresentation(presentation, requestJSON []byte, schemasRaw, credDefsRaw map[string]map[string]any) (bool, error) {
	var presentationMap, requestMap map[string]any
	if err := json.Unmarshal(presentation, &presentationMap); err != nil {
		return false, agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid presentation JSON", err)
	}
	if err := json.Unmarshal(requestJSON, &requestMap); err != nil {
		return false, agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid presentation request JSON", err)
	}
	schemas := make(map[string]any, len(schemasRaw))
	for id, raw := range schemasRaw {
		norm, err := NormalizeSchema(raw)
		if err != nil {
			return false, err
		}
		schemas[id] = norm
	}
	credDefs := make(map[string]any, len(credDefsRaw))
	for id, raw := range credDefsRaw {
		norm, err := NormalizeCredDef(raw, id)
		if err != nil {
			return false, err
		}
		credDefs[id] = norm
	}
	return m.prim.VerifyPresentation(presentationMap, requestMap, schemas, credDefs)
}
