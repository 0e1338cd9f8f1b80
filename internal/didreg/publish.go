package didreg

import (
	"crypto/ed25519"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// PublishNYM implements §4.3's NYM publication: resolve the submitter's
// key, optionally gate ENDORSER role behind a TRUSTEE check, build and
// sign the NYM request, submit it, and on REPLY atomically flip the
// target record to public with its new role and ledger provenance.
func (r *Registry) PublishNYM(submitterDID, targetDID string, role string, policy CreatePolicy) (*Record, error) {
	if r.ledger == nil {
		return nil, agenterr.New(agenterr.CodePoolNotConnected, "no ledger configured")
	}

	sess, err := r.store.Session("")
	if err != nil {
		return nil, err
	}

	submitterEntry, err := sess.Fetch(category, submitterDID, false)
	if err != nil {
		sess.Close()
		return nil, err
	}
	var submitterRec Record
	if err := json.Unmarshal(submitterEntry.Value, &submitterRec); err != nil {
		sess.Close()
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse submitter DID record", err)
	}
	keyRec, err := sess.FetchKey(submitterRec.Verkey, false)
	if err != nil {
		sess.Close()
		return nil, err
	}

	targetEntry, err := sess.Fetch(category, targetDID, false)
	if err != nil {
		sess.Close()
		return nil, err
	}
	var targetRec Record
	if err := json.Unmarshal(targetEntry.Value, &targetRec); err != nil {
		sess.Close()
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse target DID record", err)
	}
	sess.Close()

	if role == RoleEndorser && policy.RequireTrusteeForEndorser {
		data, err := r.ledger.GetNym(submitterDID)
		if err != nil {
			return nil, err
		}
		if !isTrustee(data) {
			return nil, agenterr.New(agenterr.CodePolicyDenied, "role ENDORSER requires submitterDid to be TRUSTEE on the ledger")
		}
	}

	roleCode := roleNameToCode(role)
	privKey := ed25519.PrivateKey(keyRec.KeyMaterial)
	signFn := func(msg []byte) []byte {
		return ed25519.Sign(privKey, msg)
	}

	op, reason, err := r.ledger.SubmitNym(submitterDID, signFn, targetDID, targetRec.Verkey, roleCode)
	if err != nil {
		return nil, err
	}
	if op != "REPLY" {
		return nil, agenterr.WithDetails(agenterr.CodeLedgerRejected, "ledger rejected NYM request", reason)
	}

	sess2, err := r.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess2.Close()

	fresh, err := sess2.Fetch(category, targetDID, false)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(fresh.Value, &rec); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse target DID record", err)
	}
	if rec.Verkey != targetRec.Verkey {
		return nil, agenterr.New(agenterr.CodeDidConflict, "target verkey changed during publish")
	}
	rec.IsPublic = true
	if role != "" {
		roleCopy := role
		rec.Role = &roleCopy
	}
	rec.Ledger = &LedgerInfo{RegisteredAt: time.Now().Unix(), SubmitterDID: submitterDID}

	if err := sess2.Remove(category, targetDID); err != nil {
		return nil, err
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize DID record", err)
	}
	roleTagVal := "none"
	if rec.Role != nil {
		roleTagVal = *rec.Role
	}
	if err := sess2.Insert(category, targetDID, value, []walletstore.Tag{
		{Name: "type", Value: rec.Type},
		{Name: "verkey", Value: rec.Verkey},
		{Name: "alias", Value: rec.Alias},
		{Name: "createdAt", Value: itoa(rec.CreatedAt)},
		{Name: "isPublic", Value: "true"},
		{Name: "origin", Value: rec.Origin},
		{Name: "role", Value: roleTagVal},
	}); err != nil {
		return nil, err
	}
	if err := sess2.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func isTrustee(data map[string]interface{}) bool {
	if data == nil {
		return false
	}
	roleVal, ok := data["role"]
	if !ok {
		return false
	}
	switch v := roleVal.(type) {
	case string:
		return v == "TRUSTEE" || v == "0"
	case float64:
		return v == 0
	}
	return false
}

// ResolveNYM polls GET_NYM up to SSI_RESOLVE_TRIES times, SSI_RESOLVE_DELAY_MS
// apart, returning the v2 structured envelope of §4.3.
func (r *Registry) ResolveNYM(did string) (*ResolveResult, error) {
	if r.ledger == nil {
		return nil, agenterr.New(agenterr.CodePoolNotConnected, "no ledger configured")
	}
	tries := resolveTriesEnv()
	delay := resolveDelayMsEnv()
	start := time.Now()

	var data map[string]interface{}
	attempts := 0
	for attempts < tries {
		attempts++
		d, err := r.ledger.GetNym(did)
		if err != nil {
			return nil, err
		}
		if len(d) > 0 {
			data = d
			break
		}
		if attempts < tries {
			time.Sleep(delay)
		}
	}

	res := &ResolveResult{
		Ok:        true,
		DID:       did,
		Found:     data != nil,
		RawData:   data,
		Ledger:    true,
		Attempts:  attempts,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if data == nil {
		return res, nil
	}
	if vk, ok := data["verkey"].(string); ok {
		res.Verkey = vk
	}
	if roleRaw, ok := data["role"]; ok {
		var code string
		switch v := roleRaw.(type) {
		case string:
			code = v
		case float64:
			code = strconv.FormatInt(int64(v), 10)
		}
		if code != "" {
			res.Role = &code
			res.RoleName = roleCodeToName(code)
		}
	}
	return res, nil
}
