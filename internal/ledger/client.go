// Package ledger implements the ledger-client abstraction of §4.4: a
// long-lived pool handle built from a genesis file, request/response via a
// caller-supplied callback, TAA acceptance attachment, and the NYM/SCHEMA/
// CRED_DEF/GET_* request builders.
package ledger

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// ProtocolVersion is fixed to Node1_4, per §4.4.
const ProtocolVersion = "Node1_4"

// Submitter is the callback contract the pool uses to actually perform a
// network round trip: given a raw signed request body, it returns the
// ledger's parsed reply (or an error) and how long the call took. The
// library never performs I/O itself — the host supplies this, per spec.md
// §1's "ledger transport... addressed via a request/response callback".
type Submitter func(requestBody []byte) (reply map[string]interface{}, elapsed time.Duration, err error)

// Client is the pool handle, shared across tasks; it keeps no reference
// count. Requests are dispatched through Submitter and matched to a
// reply synchronously from the caller's point of view (the callback
// itself may be backed by an async transport on the host side).
type Client struct {
	genesisPath string
	submit      Submitter
	taa         *TAA
}

// TAA is the current Transaction Author Agreement, or nil if the ledger
// requires none.
type TAA struct {
	Text      string
	Version   string
	Digest    string
}

// NewClient constructs a pool handle from a genesis transactions file
// path, consumed (read, validated non-empty) at construction per §6. The
// submitter callback performs the actual network round trip.
func NewClient(genesisPath string, submit Submitter) (*Client, error) {
	if _, err := os.Stat(genesisPath); err != nil {
		return nil, agenterr.Wrap(agenterr.CodePoolNotConnected, "genesis file not found", err)
	}
	data, err := os.ReadFile(genesisPath)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodePoolNotConnected, "failed to read genesis file", err)
	}
	if len(data) == 0 {
		return nil, agenterr.New(agenterr.CodePoolNotConnected, "genesis file is empty")
	}
	return &Client{genesisPath: genesisPath, submit: submit}, nil
}

// SetTAA configures the currently-known TAA; a nil TAA means writes carry
// no acceptance data.
func (c *Client) SetTAA(taa *TAA) {
	c.taa = taa
}

// FetchTAA issues GET_TAA and caches the result for subsequent writes.
func (c *Client) FetchTAA() (*TAA, error) {
	req := map[string]interface{}{
		"operation": map[string]interface{}{
			"type": OpGetTAA,
		},
		"protocolVersion": protocolVersionNumber,
	}
	reply, err := c.send(req)
	if err != nil {
		return nil, err
	}
	data := replyData(reply)
	if data == nil {
		c.taa = nil
		return nil, nil
	}
	taa := &TAA{
		Text:    stringField(data, "text"),
		Version: stringField(data, "version"),
		Digest:  stringField(data, "digest"),
	}
	c.taa = taa
	return taa, nil
}

// taaMidnightUTC computes floor(now/86400)*86400, the acceptance
// timestamp §4.4 requires.
func taaMidnightUTC(now time.Time) int64 {
	secs := now.Unix()
	return (secs / 86400) * 86400
}

// taaAcceptance builds the acceptance payload attached to writes when a
// non-nil TAA is present.
func (c *Client) taaAcceptance() map[string]interface{} {
	if c.taa == nil {
		return nil
	}
	return map[string]interface{}{
		"text":              c.taa.Text,
		"version":           c.taa.Version,
		"taaDigest":         c.taa.Digest,
		"mechanism":         "wallet_agreement",
		"time":              taaMidnightUTC(time.Now()),
	}
}

func (c *Client) send(req map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize ledger request", err)
	}
	reply, _, err := c.submit(body)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeLedgerTimeout, "ledger request failed", err)
	}
	return reply, nil
}

func replyOp(reply map[string]interface{}) string {
	if reply == nil {
		return ""
	}
	if op, ok := reply["op"].(string); ok {
		return op
	}
	return ""
}

func replyReason(reply map[string]interface{}) string {
	if reply == nil {
		return ""
	}
	if reason, ok := reply["reason"].(string); ok {
		return reason
	}
	return ""
}

// replyData extracts result.data, unwrapping a JSON-string-encoded object
// if needed (the ledger sometimes returns data as a nested JSON string).
func replyData(reply map[string]interface{}) map[string]interface{} {
	result, ok := reply["result"].(map[string]interface{})
	if !ok {
		return nil
	}
	switch d := result["data"].(type) {
	case map[string]interface{}:
		return d
	case string:
		if d == "" {
			return nil
		}
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(d), &parsed); err == nil {
			return parsed
		}
	}
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
