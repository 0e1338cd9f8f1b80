package main

import (
	"time"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// httpSubmitter is the ledger.Submitter this binding wires by default.
// spec.md §1 treats the ledger transport itself as an external
// collaborator ("a pool connected to a genesis file, addressed via a
// request/response callback") — the actual network round trip to the
// Indy-style validator pool is outside this library's scope. A real
// deployment replaces this with a submitter backed by its own transport
// (e.g. a ZMQ client dialing the pool's validator nodes resolved from the
// genesis file); this default simply reports that none is wired, the
// same stance cmd/ssiagentd's anoncreds primitives stub takes.
func httpSubmitter(requestBody []byte) (reply map[string]interface{}, elapsed time.Duration, err error) {
	return nil, 0, agenterr.New(agenterr.CodePoolNotConnected, "no ledger transport configured on this agent")
}
