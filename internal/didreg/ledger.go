package didreg

// LedgerClient is the subset of internal/ledger's client surface the DID
// registry depends on, kept as a narrow interface so didreg never imports
// ledger directly (avoids a dependency cycle, since ledger's NYM request
// builder needs nothing from didreg). Satisfied by *ledger.Client.
type LedgerClient interface {
	// GetNym fetches a NYM from the ledger, returning the raw ledger
	// "data" field (nil if not found).
	GetNym(did string) (data map[string]interface{}, err error)

	// SubmitNym signs and submits a NYM request for targetDid/verkey with
	// the given role code (nil = no role), signed by the submitter's key,
	// attaching TAA acceptance if the ledger exposes one. Returns the
	// ledger's reply op ("REPLY", "REJECT", "REQNACK") and reason text.
	SubmitNym(submitterDID string, submitterSignKey func([]byte) []byte, targetDID, verkey string, roleCode *string) (op string, reason string, err error)
}
