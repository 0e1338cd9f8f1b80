package credvault

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/anoncreds"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

const category = "credential"

// Vault implements §4.6 over the `credential` category persisted by
// internal/anoncreds.
type Vault struct {
	store *walletstore.Store
}

// New constructs a Vault bound to a wallet store.
func New(store *walletstore.Store) *Vault {
	return &Vault{store: store}
}

func tagValue(tags []walletstore.Tag, name string) string {
	for _, t := range tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

func compactFromEntry(e *walletstore.Entry) *CompactItem {
	storedAt, _ := strconv.ParseInt(tagValue(e.Tags, "stored_at"), 10, 64)
	return &CompactItem{
		IDLocal:   e.Name,
		Alias:     tagValue(e.Tags, "alias"),
		SchemaID:  tagValue(e.Tags, "schema_id"),
		CredDefID: tagValue(e.Tags, "cred_def_id"),
		StoredAt:  storedAt,
	}
}

func fullFromEntry(e *walletstore.Entry) (*FullItem, error) {
	var rec anoncreds.CredentialRecord
	if err := json.Unmarshal(e.Value, &rec); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse credential record", err)
	}
	item := &FullItem{
		CompactItem: *compactFromEntry(e),
		ValuesRaw:   extractRawValues(rec.Credential),
	}
	if item.Alias == "" {
		item.Alias = rec.Alias
	}
	return item, nil
}

// extractRawValues pulls {attr: raw} out of the external primitive's
// processed-credential "values" map, tolerating an absent or malformed
// shape (the primitive's JSON is opaque to this package per §4.5).
func extractRawValues(credential map[string]any) map[string]string {
	out := map[string]string{}
	values, ok := credential["values"].(map[string]any)
	if !ok {
		return out
	}
	for attr, v := range values {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if raw, ok := entry["raw"].(string); ok {
			out[attr] = raw
		}
	}
	return out
}

func coalesce(s string) string {
	if s == "" {
		return missingTag
	}
	return s
}

// ListFull returns every stored credential, enriched with parsed raw
// attribute values.
func (v *Vault) ListFull() ([]*FullItem, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entries, err := sess.FetchAll(category, walletstore.FetchAllOptions{IncludeValue: true})
	if err != nil {
		return nil, err
	}
	out := make([]*FullItem, 0, len(entries))
	for _, e := range entries {
		item, err := fullFromEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ListByTags filters by schema_id and/or cred_def_id (AND), both optional.
func (v *Vault) ListByTags(schemaID, credDefID string) ([]*FullItem, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	equals := map[string]string{}
	if schemaID != "" {
		equals["schema_id"] = schemaID
	}
	if credDefID != "" {
		equals["cred_def_id"] = credDefID
	}
	entries, err := sess.FetchAll(category, walletstore.FetchAllOptions{
		Tags:         walletstore.TagFilter{Equals: equals},
		IncludeValue: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*FullItem, 0, len(entries))
	for _, e := range entries {
		item, err := fullFromEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Summary counts credentials grouped by schema_id and cred_def_id,
// substituting "(missing)" for an absent tag, per §4.6.
func (v *Vault) Summary() (*Summary, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entries, err := sess.FetchAll(category, walletstore.FetchAllOptions{})
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		BySchemaID:  map[string]int{},
		ByCredDefID: map[string]int{},
	}
	for _, e := range entries {
		sum.Total++
		sum.BySchemaID[coalesce(tagValue(e.Tags, "schema_id"))]++
		sum.ByCredDefID[coalesce(tagValue(e.Tags, "cred_def_id"))]++
	}
	return sum, nil
}

// ListCompact returns metadata-only items with offset/limit pagination.
func (v *Vault) ListCompact(opts ListOptions) ([]*CompactItem, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entries, err := sess.FetchAll(category, walletstore.FetchAllOptions{OrderBy: walletstore.OrderByName})
	if err != nil {
		return nil, err
	}
	items := make([]*CompactItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, compactFromEntry(e))
	}
	offset := opts.Offset
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}
	return items[offset:end], nil
}

// ListCompactCursor paginates using the record name (id_local) as the
// cursor: NextCursor is set iff the page filled limit, per §4.6.
func (v *Vault) ListCompactCursor(cursor string, limit int) (*Page, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entries, err := sess.FetchAll(category, walletstore.FetchAllOptions{OrderBy: walletstore.OrderById})
	if err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		for i, e := range entries {
			if e.Name > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := len(entries)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	page := &Page{Items: make([]*CompactItem, 0, end-start)}
	for _, e := range entries[start:end] {
		page.Items = append(page.Items, compactFromEntry(e))
	}
	if limit > 0 && len(page.Items) == limit {
		page.NextCursor = entries[end-1].Name
	}
	return page, nil
}

// upsertTags replaces category/name's tags, preserving everything except
// the ones named in overrides (a nil override value removes that tag),
// as a single remove+insert commit.
func (v *Vault) upsertTags(idLocal string, overrides map[string]*string) error {
	sess, err := v.store.Session("")
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := sess.Fetch(category, idLocal, false)
	if err != nil {
		return err
	}

	tags := make([]walletstore.Tag, 0, len(entry.Tags)+len(overrides))
	seen := map[string]bool{}
	for _, t := range entry.Tags {
		if newVal, overridden := overrides[t.Name]; overridden {
			seen[t.Name] = true
			if newVal == nil {
				continue
			}
			tags = append(tags, walletstore.Tag{Name: t.Name, Value: *newVal, Encrypted: t.Encrypted})
			continue
		}
		tags = append(tags, t)
	}
	for name, val := range overrides {
		if !seen[name] && val != nil {
			tags = append(tags, walletstore.Tag{Name: name, Value: *val})
		}
	}

	if err := sess.Remove(category, idLocal); err != nil {
		return err
	}
	if err := sess.Insert(category, idLocal, entry.Value, tags); err != nil {
		return err
	}
	return sess.Commit()
}

// SetAlias sets or renames a credential's alias.
func (v *Vault) SetAlias(idLocal, alias string) error {
	return v.upsertTags(idLocal, map[string]*string{"alias": &alias})
}

// ClearAlias removes a credential's alias tag entirely.
func (v *Vault) ClearAlias(idLocal string) error {
	return v.upsertTags(idLocal, map[string]*string{"alias": nil})
}

// Export produces the "ssi.credential.package" wire shape for one
// credential.
func (v *Vault) Export(idLocal string) (*Package, error) {
	sess, err := v.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entry, err := sess.Fetch(category, idLocal, false)
	if err != nil {
		return nil, err
	}
	var rec anoncreds.CredentialRecord
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse credential record", err)
	}
	return &Package{
		Type:       "ssi.credential.package",
		Version:    1,
		IDLocal:    rec.IDLocal,
		SchemaID:   coalesceTagOrField(tagValue(entry.Tags, "schema_id"), rec.SchemaID),
		CredDefID:  coalesceTagOrField(tagValue(entry.Tags, "cred_def_id"), rec.CredDefID),
		StoredAt:   rec.StoredAt,
		Credential: rec.Credential,
	}, nil
}

func coalesceTagOrField(tag, field string) string {
	if tag != "" {
		return tag
	}
	return field
}

// Import recovers a credential from an exported package or a bare
// credential JSON, defaulting timestamps to now and tags from the
// package/credential. A conflicting id_local fails unless overwrite=true.
func (v *Vault) Import(raw []byte, overwrite bool) (string, error) {
	var pkg Package
	idLocal := ""
	schemaID, credDefID := "", ""
	storedAt := time.Now().Unix()
	var credential map[string]any

	if err := json.Unmarshal(raw, &pkg); err == nil && pkg.Type == "ssi.credential.package" {
		idLocal = pkg.IDLocal
		schemaID = pkg.SchemaID
		credDefID = pkg.CredDefID
		if pkg.StoredAt != 0 {
			storedAt = pkg.StoredAt
		}
		credential = pkg.Credential
	} else {
		if err := json.Unmarshal(raw, &credential); err != nil {
			return "", agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid credential package payload", err)
		}
		if v, ok := credential["schema_id"].(string); ok {
			schemaID = v
		}
		if v, ok := credential["cred_def_id"].(string); ok {
			credDefID = v
		}
	}
	if idLocal == "" {
		idLocal = "credential:" + uuid.NewString()
	}

	sess, err := v.store.Session("")
	if err != nil {
		return "", err
	}
	defer sess.Close()

	if _, err := sess.Fetch(category, idLocal, false); err == nil {
		if !overwrite {
			return "", agenterr.New(agenterr.CodeAlreadyExists, "credential already exists: "+idLocal)
		}
		if err := sess.Remove(category, idLocal); err != nil {
			return "", err
		}
	}

	rec := anoncreds.CredentialRecord{
		IDLocal:    idLocal,
		SchemaID:   schemaID,
		CredDefID:  credDefID,
		StoredAt:   storedAt,
		Credential: credential,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize credential", err)
	}
	if err := sess.Insert(category, idLocal, value, []walletstore.Tag{
		{Name: "schema_id", Value: schemaID},
		{Name: "cred_def_id", Value: credDefID},
		{Name: "stored_at", Value: strconv.FormatInt(storedAt, 10)},
	}); err != nil {
		return "", err
	}
	if err := sess.Commit(); err != nil {
		return "", err
	}
	return idLocal, nil
}
