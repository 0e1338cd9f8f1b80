// Package ssitypes holds wire types shared across the HTTP binding layer
// that are not owned by any single internal component: generic API
// envelopes, DID batch shapes, and the inputs to the anoncreds
// presentation flow as they arrive over JSON.
package ssitypes

// APIResponse is the envelope every cmd/ssiagentd/server handler writes,
// mirroring agenterr's {"ok":false,"code","message"} shape on the success
// side: "ok":true carries Data, "ok":false carries the agenterr.Error.
type APIResponse struct {
	Ok    bool `json:"ok"`
	Data  any  `json:"data,omitempty"`
	Error any  `json:"error,omitempty"`
}

// CreateDIDRequest is the request body for POST /v1/dids.
type CreateDIDRequest struct {
	Alias string `json:"alias" validate:"required"`
}

// ImportDIDRequest is the request body for POST /v1/dids/import.
type ImportDIDRequest struct {
	SeedB64 string `json:"seed_b64" validate:"required"`
	Alias   string `json:"alias" validate:"required"`
}

// StoreTheirDIDRequest is the request body for POST /v1/dids/theirs.
type StoreTheirDIDRequest struct {
	DID    string `json:"did" validate:"required"`
	Verkey string `json:"verkey" validate:"required"`
	Alias  string `json:"alias"`
}

// ResolveDIDRequest is the request body for POST /v1/dids/resolve.
type ResolveDIDRequest struct {
	DID string `json:"did" validate:"required"`
}

// CreateSchemaRequest is the request body for POST /v1/schemas.
type CreateSchemaRequest struct {
	Name      string   `json:"name" validate:"required"`
	Version   string   `json:"version" validate:"required"`
	AttrNames []string `json:"attr_names" validate:"required,min=1"`
	Revocable bool     `json:"revocable"`
	Env       string   `json:"env"`
}

// RegisterSchemaRequest is the request body for POST /v1/schemas/{id}/register.
type RegisterSchemaRequest struct {
	IssuerDID string `json:"issuer_did" validate:"required"`
}

// CreateCredDefRequest is the request body for POST /v1/cred-defs.
type CreateCredDefRequest struct {
	SchemaID  string `json:"schema_id" validate:"required"`
	IssuerDID string `json:"issuer_did" validate:"required"`
	Tag       string `json:"tag" validate:"required"`
}

// StoreCredentialRequest is the request body for POST /v1/credentials.
type StoreCredentialRequest struct {
	Credential map[string]any `json:"credential" validate:"required"`
	CredDef    map[string]any `json:"cred_def" validate:"required"`
	CredDefID  string         `json:"cred_def_id" validate:"required"`
	Alias      string         `json:"alias"`
}

// ImportCredentialRequest is the request body for POST /v1/credentials/import.
type ImportCredentialRequest struct {
	Package   map[string]any `json:"package" validate:"required"`
	Overwrite bool           `json:"overwrite"`
}

// SetAliasRequest is the request body for PUT /v1/credentials/{id}/alias.
type SetAliasRequest struct {
	Alias string `json:"alias" validate:"required"`
}

// EncryptMessageRequest is the request body for POST /v1/messages/encrypt.
type EncryptMessageRequest struct {
	SenderDID    string `json:"sender_did" validate:"required"`
	TargetVerkey string `json:"target_verkey" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

// DecryptMessageRequest is the request body for POST /v1/messages/decrypt.
type DecryptMessageRequest struct {
	ReceiverDID  string `json:"receiver_did" validate:"required"`
	SenderVerkey string `json:"sender_verkey" validate:"required"`
	Envelope     any    `json:"envelope" validate:"required"`
}

// BackupCreateRequest is the request body for POST /v1/backup.
type BackupCreateRequest struct {
	WalletPassword string `json:"wallet_password" validate:"required"`
	BackupPassword string `json:"backup_password" validate:"required"`
	BackupPath     string `json:"backup_path" validate:"required"`
}

// BackupRecoverRequest is the request body for POST /v1/backup/recover.
type BackupRecoverRequest struct {
	BackupPassword string `json:"backup_password" validate:"required"`
	BackupPath     string `json:"backup_path" validate:"required"`
}
