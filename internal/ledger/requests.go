package ledger

import (
	"encoding/base64"
	"encoding/json"
	"sync/atomic"
)

// Indy ledger request type codes, per §4.4.
const (
	OpGetNym    = "105"
	OpNym       = "1"
	OpGetSchema = "107"
	OpSchema    = "101"
	OpGetCredDef = "108"
	OpCredDef    = "102"
	OpGetTAA     = "6"
)

// protocolVersionNumber is the numeric protocolVersion field value
// corresponding to ProtocolVersion ("Node1_4").
const protocolVersionNumber = 2

// Sign is the caller-supplied signing function: produces a raw Ed25519
// signature over the request's canonical signature input.
type Sign func(msg []byte) []byte

func (c *Client) buildRequest(identifier string, operation map[string]interface{}, sign Sign) (map[string]interface{}, []byte) {
	if acc := c.taaAcceptance(); acc != nil {
		operation["taaAcceptance"] = acc
	}
	req := map[string]interface{}{
		"operation":       operation,
		"protocolVersion": protocolVersionNumber,
		"identifier":      identifier,
		"reqId":           reqID(),
	}
	signInput, _ := json.Marshal(req)
	if sign != nil {
		sig := sign(signInput)
		req["signature"] = base64Sig(sig)
	}
	return req, signInput
}

// GetNym implements didreg.LedgerClient: fetch a NYM, returning its data
// or nil if not found.
func (c *Client) GetNym(did string) (map[string]interface{}, error) {
	req := map[string]interface{}{
		"operation": map[string]interface{}{
			"type": OpGetNym,
			"dest": did,
		},
		"protocolVersion": protocolVersionNumber,
	}
	reply, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return replyData(reply), nil
}

// SubmitNym implements didreg.LedgerClient: sign and submit a NYM request.
func (c *Client) SubmitNym(submitterDID string, sign Sign, targetDID, verkey string, roleCode *string) (op string, reason string, err error) {
	operation := map[string]interface{}{
		"type":   OpNym,
		"dest":   targetDID,
		"verkey": verkey,
	}
	if roleCode != nil {
		operation["role"] = *roleCode
	}
	req, _ := c.buildRequest(submitterDID, operation, sign)
	reply, err := c.send(req)
	if err != nil {
		return "", "", err
	}
	return replyOp(reply), replyReason(reply), nil
}

// GetSchema fetches a SCHEMA by its ledger id.
func (c *Client) GetSchema(schemaID string) (map[string]interface{}, error) {
	req := map[string]interface{}{
		"operation": map[string]interface{}{
			"type": OpGetSchema,
			"dest": schemaID,
			"data": map[string]interface{}{},
		},
		"protocolVersion": protocolVersionNumber,
	}
	reply, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return replyData(reply), nil
}

// SubmitSchema signs and submits a SCHEMA write request.
func (c *Client) SubmitSchema(submitterDID string, sign Sign, name, version string, attrNames []string) (op, reason string, seqNo int, err error) {
	operation := map[string]interface{}{
		"type": OpSchema,
		"data": map[string]interface{}{
			"name":    name,
			"version": version,
			"attr_names": attrNames,
		},
	}
	req, _ := c.buildRequest(submitterDID, operation, sign)
	reply, err := c.send(req)
	if err != nil {
		return "", "", 0, err
	}
	op = replyOp(reply)
	reason = replyReason(reply)
	if result, ok := reply["result"].(map[string]interface{}); ok {
		if sn, ok := result["seqNo"].(float64); ok {
			seqNo = int(sn)
		}
	}
	return op, reason, seqNo, nil
}

// GetCredDef fetches a CRED_DEF by id.
func (c *Client) GetCredDef(credDefID string) (map[string]interface{}, error) {
	req := map[string]interface{}{
		"operation": map[string]interface{}{
			"type": OpGetCredDef,
			"ref":  credDefID,
		},
		"protocolVersion": protocolVersionNumber,
	}
	reply, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return replyData(reply), nil
}

// SubmitCredDef signs and submits a CRED_DEF write request.
func (c *Client) SubmitCredDef(submitterDID string, sign Sign, schemaSeqNo int, tag, signatureType string, value map[string]interface{}) (op, reason string, err error) {
	operation := map[string]interface{}{
		"type": OpCredDef,
		"ref":  schemaSeqNo,
		"signature_type": signatureType,
		"tag":  tag,
		"data": value,
	}
	req, _ := c.buildRequest(submitterDID, operation, sign)
	reply, err := c.send(req)
	if err != nil {
		return "", "", err
	}
	return replyOp(reply), replyReason(reply), nil
}

var reqCounter int64

// reqID produces a monotonic per-process request id, as the ledger
// protocol requires a unique reqId per request. §5 allows a pool handle to
// be shared and dispatched against concurrently, so the counter is
// incremented atomically rather than with a bare `reqCounter++`.
func reqID() int64 {
	return atomic.AddInt64(&reqCounter, 1)
}

func base64Sig(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}
