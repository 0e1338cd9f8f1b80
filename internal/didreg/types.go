// Package didreg implements the DID registry of §4.3: derivation of "sov"
// method DIDs from Ed25519 keys, own/external record storage, batch
// export/import, NYM publication and resolution, search, and the primary
// DID pointer.
package didreg

// Record is the wallet DID record (DID record v1, §3). No secret material
// is ever included.
type Record struct {
	DID       string      `json:"did"`
	Verkey    string      `json:"verkey"`
	Method    string      `json:"method"`
	Alias     string      `json:"alias,omitempty"`
	Type      string      `json:"type"` // "own" | "external"
	Origin    string      `json:"origin"`
	CreatedAt int64       `json:"createdAt"`
	IsPublic  bool        `json:"isPublic"`
	Role      *string     `json:"role"`
	Ledger    *LedgerInfo `json:"ledger,omitempty"`
}

// LedgerInfo records the outcome of a successful NYM publish.
type LedgerInfo struct {
	RegisteredAt  int64  `json:"registeredAt"`
	SubmitterDID  string `json:"submitterDid"`
}

const (
	TypeOwn      = "own"
	TypeExternal = "external"

	OriginGenerated    = "generated"
	OriginImportedSeed = "imported_seed"
	OriginImportedJSON = "imported_json"
	OriginLegacy       = "legacy"

	RoleEndorser = "ENDORSER"
	RoleTrustee  = "TRUSTEE"
	RoleSteward  = "STEWARD"
)

// SearchFilter is the query accepted by Search, mirroring the original's
// DidSearchFilter shape.
type SearchFilter struct {
	Type        string // "own" | "external" | "all", default "all"
	Query       string // substring against did|verkey|alias, case-insensitive
	CreatedFrom *int64
	CreatedTo   *int64
	IsPublic    *bool
	Role        string // case-insensitive; "" means unset
	Origin      string
	Limit       int // default 50
	Offset      int // default 0
}

// BatchExport is the wrapper format "ssi-did-batch-v1" (§4.3).
type BatchExport struct {
	Type       string      `json:"type"`
	ExportedAt int64       `json:"exportedAt"`
	Count      int         `json:"count"`
	Items      []BatchItem `json:"items"`
}

// BatchItem is one exported DID: no secret material, ever.
type BatchItem struct {
	DID    string `json:"did"`
	Verkey string `json:"verkey"`
	Alias  string `json:"alias,omitempty"`
}

// CreatePolicy gates NYM publication when role=ENDORSER.
type CreatePolicy struct {
	RequireTrusteeForEndorser bool
}

// ResolveResult is the v2 structured resolver envelope (§4.3).
type ResolveResult struct {
	Ok         bool        `json:"ok"`
	DID        string      `json:"did"`
	Found      bool        `json:"found"`
	Verkey     string      `json:"verkey,omitempty"`
	Role       *string     `json:"role,omitempty"`
	RoleName   *string     `json:"roleName,omitempty"`
	RawData    interface{} `json:"rawData,omitempty"`
	Ledger     bool        `json:"ledger"`
	Attempts   int         `json:"attempts"`
	ElapsedMs  int64       `json:"elapsedMs"`
}

// roleCodeToName maps the ledger's numeric role code to its canonical
// name, per the original's resolve_did_on_ledger_v2.
func roleCodeToName(code string) *string {
	var name string
	switch code {
	case "0":
		name = RoleTrustee
	case "2":
		name = RoleSteward
	case "101":
		name = RoleEndorser
	default:
		return nil
	}
	return &name
}

// roleNameToCode maps a role name to its NYM request numeric code.
// Anything else (including "none"/"") yields no role (nil).
func roleNameToCode(role string) *string {
	var code string
	switch role {
	case RoleTrustee:
		code = "0"
	case RoleSteward:
		code = "2"
	case RoleEndorser:
		code = "101"
	default:
		return nil
	}
	return &code
}
