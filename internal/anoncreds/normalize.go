package anoncreds

import (
	"encoding/json"
	"strings"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// NormalizeCredDef reconstructs a canonical cred-def JSON from any of the
// five observed shapes (§9): ledger-wrapped under result.data, a
// double-encoded JSON string, an old "primary"-at-root payload missing
// the value wrapper, or one missing issuerId/schemaId. issuerId is
// derived as the substring before the first ':' in the id; schemaId as
// the fourth ':'-separated field when absent.
func NormalizeCredDef(raw map[string]any, fallbackID string) (map[string]any, error) {
	if raw == nil {
		return nil, agenterr.New(agenterr.CodeCredDefInvalid, "cred-def payload is empty")
	}

	// Ledger-wrapped: {result:{data:...}} or {data:...}.
	if result, ok := raw["result"].(map[string]any); ok {
		if data, ok := result["data"].(map[string]any); ok {
			raw = data
		}
	} else if data, ok := raw["data"].(map[string]any); ok {
		raw = data
	}

	// Double-encoded JSON string under "data".
	if s, ok := raw["data"].(string); ok && s != "" {
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			raw = inner
		}
	}

	id, _ := raw["id"].(string)
	if id == "" {
		id = fallbackID
	}

	value, hasValue := raw["value"].(map[string]any)
	if !hasValue {
		// Old "primary"-at-root shape: value fields live at the top level.
		value = map[string]any{}
		if primary, ok := raw["primary"]; ok {
			value["primary"] = primary
		}
		if revocation, ok := raw["revocation"]; ok {
			value["revocation"] = revocation
		}
	}

	issuerID, _ := raw["issuerId"].(string)
	if issuerID == "" {
		issuerID = idPart(id, 0)
	}
	schemaID, _ := raw["schemaId"].(string)
	if schemaID == "" {
		schemaID = idPart(id, 3)
	}

	tag, _ := raw["tag"].(string)
	if tag == "" {
		tag = idPart(id, 4)
	}

	return map[string]any{
		"id":        id,
		"issuerId":  issuerID,
		"schemaId":  schemaID,
		"type":      "CL",
		"tag":       tag,
		"ver":       "1.0",
		"value":     value,
	}, nil
}

// idPart returns the n-th ':'-separated field of id (0-indexed), or "" if
// absent.
func idPart(id string, n int) string {
	parts := strings.Split(id, ":")
	if n < 0 || n >= len(parts) {
		return ""
	}
	return parts[n]
}

// NormalizeSchema applies the same ledger-wrapped/double-encoded
// unwrapping as NormalizeCredDef, for schema JSON fetched from the
// ledger.
func NormalizeSchema(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return nil, agenterr.New(agenterr.CodeSchemaInvalid, "schema payload is empty")
	}
	if result, ok := raw["result"].(map[string]any); ok {
		if data, ok := result["data"].(map[string]any); ok {
			raw = data
		}
	} else if data, ok := raw["data"].(map[string]any); ok {
		raw = data
	}
	if s, ok := raw["data"].(string); ok && s != "" {
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			raw = inner
		}
	}
	return raw, nil
}
