// Package credvault implements §4.6: listings and maintenance over the
// `credential` category persisted by internal/anoncreds, including
// tag-filtered views, pagination/cursor variants, alias management, and
// export/import of individual credentials.
package credvault

// CompactItem is a credential's metadata without its JSON value parsed,
// per §4.6's "compact" view.
type CompactItem struct {
	IDLocal   string `json:"id_local"`
	Alias     string `json:"alias,omitempty"`
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	StoredAt  int64  `json:"stored_at"`
}

// FullItem additionally carries the parsed credential's raw attribute
// values, per §4.6's "full" view.
type FullItem struct {
	CompactItem
	ValuesRaw map[string]string `json:"values_raw"`
}

// Summary is the tag-grouped count view of §4.6.
type Summary struct {
	Total        int            `json:"total"`
	BySchemaID   map[string]int `json:"by_schema_id"`
	ByCredDefID  map[string]int `json:"by_cred_def_id"`
}

// ListOptions controls offset/limit pagination.
type ListOptions struct {
	Offset int
	Limit  int
}

// Page is the cursor-paginated result of §4.6.
type Page struct {
	Items      []*CompactItem `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Package is the export wire shape "ssi.credential.package", §4.6.
type Package struct {
	Type       string         `json:"type"`
	Version    int            `json:"version"`
	IDLocal    string         `json:"id_local"`
	SchemaID   string         `json:"schema_id"`
	CredDefID  string         `json:"cred_def_id"`
	StoredAt   int64          `json:"stored_at"`
	Credential map[string]any `json:"credential"`
}

const missingTag = "(missing)"
