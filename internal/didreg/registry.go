package didreg

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/crypto"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// Registry implements §4.3 over a walletstore.Store. Ledger operations are
// optional: a nil LedgerClient makes PublishNYM/ResolveNYM fail with
// PoolNotConnected, matching §7's error kind for an unconnected pool.
type Registry struct {
	store  *walletstore.Store
	ledger LedgerClient
}

// New constructs a Registry. ledger may be nil if no ledger is configured.
func New(store *walletstore.Store, ledger LedgerClient) *Registry {
	return &Registry{store: store, ledger: ledger}
}

const category = "did"

// keyPairFromSeed derives an Ed25519 keypair from a 32-byte seed via
// internal/crypto, the same keypair helper the whole agent uses for
// deterministic key derivation.
func keyPairFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	kp, err := crypto.NewEd25519KeyPairFromSeed(seed)
	if err != nil {
		return nil, nil, agenterr.New(agenterr.CodeSeedInvalid, "seed must be 32 bytes")
	}
	return kp.PublicKey, kp.PrivateKey, nil
}

// didFromVerkey derives the "sov" DID identifier: base58 of the first 16
// bytes of the 32-byte Ed25519 public key.
func didFromVerkey(pub ed25519.PublicKey) string {
	return base58.Encode(pub[:16])
}

func verkeyString(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// DecodeSeed accepts a 32-byte seed in 64-character hex or standard
// base64, rejecting any other size or encoding, per §4.3.
func DecodeSeed(s string) ([]byte, error) {
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, agenterr.New(agenterr.CodeSeedInvalid, "seed must be a 32-byte value in hex or base64")
}

// CreateOwnDID generates a fresh Ed25519 keypair, stores it in the KMS,
// and inserts a new own DID record. Two calls always yield distinct DIDs
// (§8 "Wallet idempotence"), since each call generates fresh randomness.
func (r *Registry) CreateOwnDID(alias string) (*Record, error) {
	kp, err := crypto.NewEd25519KeyPair()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInternal, "failed to generate key", err)
	}
	return r.insertOwn(kp.PublicKey, kp.PrivateKey, alias, OriginGenerated)
}

// ImportDIDFromSeed derives the keypair deterministically from seed and
// either creates or recognizes the own DID. Calling this twice with the
// same seed yields the same DID and is a no-op the second time (§8).
func (r *Registry) ImportDIDFromSeed(seed []byte, alias string) (*Record, error) {
	pub, priv, err := keyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return r.insertOwn(pub, priv, alias, OriginImportedSeed)
}

func (r *Registry) insertOwn(pub ed25519.PublicKey, priv ed25519.PrivateKey, alias, origin string) (*Record, error) {
	did := didFromVerkey(pub)
	verkey := verkeyString(pub)

	sess, err := r.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if existing, err := sess.Fetch(category, did, false); err == nil {
		var rec Record
		if jsonErr := json.Unmarshal(existing.Value, &rec); jsonErr == nil {
			if rec.Verkey != "" && rec.Verkey != verkey {
				return nil, agenterr.New(agenterr.CodeDidConflict, "DID already exists with a different verkey")
			}
			return &rec, nil
		}
	}

	if _, err := sess.FetchKey(verkey, false); err != nil {
		if !agenterr.Is(err, agenterr.CodeNotFound) {
			return nil, err
		}
		if err := sess.InsertKey(verkey, priv, "ed25519"); err != nil {
			return nil, err
		}
	}

	rec := &Record{
		DID:       did,
		Verkey:    verkey,
		Method:    "sov",
		Alias:     alias,
		Type:      TypeOwn,
		Origin:    origin,
		CreatedAt: time.Now().Unix(),
		IsPublic:  false,
		Role:      nil,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize DID record", err)
	}
	if err := sess.Insert(category, did, value, []walletstore.Tag{
		{Name: "type", Value: TypeOwn},
		{Name: "verkey", Value: verkey},
		{Name: "alias", Value: alias},
		{Name: "createdAt", Value: strconv.FormatInt(rec.CreatedAt, 10)},
		{Name: "isPublic", Value: "false"},
		{Name: "origin", Value: origin},
	}); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// StoreTheirDID inserts an external DID record. Idempotent: a second call
// with the same (did, verkey) is a no-op (§8).
func (r *Registry) StoreTheirDID(did, verkey, alias string) (*Record, error) {
	sess, err := r.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if existing, err := sess.Fetch(category, did, false); err == nil {
		var rec Record
		if jsonErr := json.Unmarshal(existing.Value, &rec); jsonErr == nil {
			if rec.Verkey != "" && rec.Verkey != verkey {
				return nil, agenterr.New(agenterr.CodeDidConflict, "DID already exists with a different verkey")
			}
			return &rec, nil
		}
	}

	rec := &Record{
		DID:       did,
		Verkey:    verkey,
		Method:    "sov",
		Alias:     alias,
		Type:      TypeExternal,
		Origin:    OriginImportedJSON,
		CreatedAt: time.Now().Unix(),
		IsPublic:  false,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize DID record", err)
	}
	if err := sess.Insert(category, did, value, []walletstore.Tag{
		{Name: "type", Value: TypeExternal},
		{Name: "verkey", Value: verkey},
		{Name: "alias", Value: alias},
		{Name: "createdAt", Value: strconv.FormatInt(rec.CreatedAt, 10)},
		{Name: "isPublic", Value: "false"},
		{Name: "origin", Value: OriginImportedJSON},
	}); err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get fetches and backfills a single DID record, applying the same
// legacy-field defaulting as Search (method/type/createdAt/isPublic/
// role/origin), per SPEC_FULL.md §12.3.
func (r *Registry) Get(did string) (*Record, error) {
	sess, err := r.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	entry, err := sess.Fetch(category, did, false)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse DID record", err)
	}
	backfill(&rec, entry.Tags)
	return &rec, nil
}

// backfill applies the legacy-record defaults §12.3 describes: records
// written before a field existed get sane defaults instead of being
// rejected.
func backfill(rec *Record, tags []walletstore.Tag) {
	if rec.Method == "" {
		rec.Method = "sov"
	}
	if rec.Type == "" {
		for _, t := range tags {
			if t.Name == "type" {
				rec.Type = t.Value
			}
		}
	}
	if rec.Origin == "" {
		rec.Origin = OriginLegacy
	}
}

// Search implements §4.3's filtered, paginated search, including the
// legacy-record exclusion rule for time-window queries.
func (r *Registry) Search(f SearchFilter) ([]*Record, error) {
	sess, err := r.store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	typeReq := strings.ToLower(f.Type)
	if typeReq == "" {
		typeReq = "all"
	}

	var entries []*walletstore.Entry
	fetchBucket := func(t string) error {
		es, err := sess.FetchAll(category, walletstore.FetchAllOptions{
			Tags:         walletstore.TagFilter{Equals: map[string]string{"type": t}},
			IncludeValue: true,
		})
		if err != nil {
			return err
		}
		entries = append(entries, es...)
		return nil
	}
	switch typeReq {
	case TypeOwn:
		if err := fetchBucket(TypeOwn); err != nil {
			return nil, err
		}
	case TypeExternal:
		if err := fetchBucket(TypeExternal); err != nil {
			return nil, err
		}
	default:
		if err := fetchBucket(TypeOwn); err != nil {
			return nil, err
		}
		if err := fetchBucket(TypeExternal); err != nil {
			return nil, err
		}
	}

	queryLC := strings.ToLower(strings.TrimSpace(f.Query))
	wantRole := strings.ToLower(f.Role)
	wantOrigin := strings.ToLower(f.Origin)

	var results []*Record
	for _, e := range entries {
		var rec Record
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			continue
		}
		backfill(&rec, e.Tags)

		if queryLC != "" {
			ok := strings.Contains(strings.ToLower(rec.DID), queryLC) ||
				strings.Contains(strings.ToLower(rec.Verkey), queryLC) ||
				strings.Contains(strings.ToLower(rec.Alias), queryLC)
			if !ok {
				continue
			}
		}

		if (f.CreatedFrom != nil || f.CreatedTo != nil) && rec.CreatedAt == 0 {
			continue
		}
		from := int64(0)
		if f.CreatedFrom != nil {
			from = *f.CreatedFrom
		}
		to := int64(1<<62 - 1)
		if f.CreatedTo != nil {
			to = *f.CreatedTo
		}
		if rec.CreatedAt < from || rec.CreatedAt > to {
			continue
		}

		if f.IsPublic != nil && rec.IsPublic != *f.IsPublic {
			continue
		}

		if wantRole != "" {
			roleNorm := "none"
			if rec.Role != nil {
				roleNorm = strings.ToLower(*rec.Role)
			}
			if roleNorm != wantRole {
				continue
			}
		}

		if wantOrigin != "" && strings.ToLower(rec.Origin) != wantOrigin {
			continue
		}

		results = append(results, &rec)
	}

	sortRecords(results)

	limit := f.Limit
	if limit == 0 {
		limit = 50
	}
	offset := f.Offset
	if offset > len(results) {
		offset = len(results)
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end], nil
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

// less orders by createdAt descending, then did ascending, per §4.3.
func less(a, b *Record) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.DID < b.DID
}

// ExportBatch produces the "ssi-did-batch-v1" wrapper over Search's
// results, stripping every field but did/verkey/alias.
func (r *Registry) ExportBatch(f SearchFilter) (*BatchExport, error) {
	records, err := r.Search(f)
	if err != nil {
		return nil, err
	}
	items := make([]BatchItem, 0, len(records))
	for _, rec := range records {
		items = append(items, BatchItem{DID: rec.DID, Verkey: rec.Verkey, Alias: rec.Alias})
	}
	return &BatchExport{
		Type:       "ssi-did-batch-v1",
		ExportedAt: time.Now().Unix(),
		Count:      len(items),
		Items:      items,
	}, nil
}

// ImportBatch accepts either a bare array or the "ssi-did-batch-v1"
// wrapper, storing each item as an external DID. Only external mode is
// supported; any (did, verkey mismatch) conflict fails the whole batch
// before any entry is committed.
func (r *Registry) ImportBatch(raw []byte) (int, error) {
	items, err := parseBatch(raw)
	if err != nil {
		return 0, err
	}

	sess, err := r.store.Session("")
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	for _, item := range items {
		if existing, err := sess.Fetch(category, item.DID, false); err == nil {
			var rec Record
			if jsonErr := json.Unmarshal(existing.Value, &rec); jsonErr == nil && rec.Verkey != "" && rec.Verkey != item.Verkey {
				return 0, agenterr.New(agenterr.CodeDidConflict, "batch import conflict: "+item.DID)
			}
			continue
		}
		rec := &Record{
			DID:       item.DID,
			Verkey:    item.Verkey,
			Method:    "sov",
			Alias:     item.Alias,
			Type:      TypeExternal,
			Origin:    OriginImportedJSON,
			CreatedAt: time.Now().Unix(),
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return 0, agenterr.Wrap(agenterr.CodeSerializationError, "failed to serialize DID record", err)
		}
		if err := sess.Insert(category, item.DID, value, []walletstore.Tag{
			{Name: "type", Value: TypeExternal},
			{Name: "verkey", Value: item.Verkey},
			{Name: "alias", Value: item.Alias},
			{Name: "createdAt", Value: strconv.FormatInt(rec.CreatedAt, 10)},
			{Name: "isPublic", Value: "false"},
			{Name: "origin", Value: OriginImportedJSON},
		}); err != nil {
			return 0, err
		}
	}
	if err := sess.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func parseBatch(raw []byte) ([]BatchItem, error) {
	var wrapper BatchExport
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Type == "ssi-did-batch-v1" {
		return wrapper.Items, nil
	}
	var items []BatchItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid DID batch payload", err)
	}
	return items, nil
}

// SetPrimaryDID validates the DID exists and sets the settings singleton.
func (r *Registry) SetPrimaryDID(did string) error {
	sess, err := r.store.Session("")
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.Fetch(category, did, false); err != nil {
		return err
	}

	if _, err := sess.Fetch("settings", "primary_did", false); err == nil {
		if err := sess.Remove("settings", "primary_did"); err != nil {
			return err
		}
	}
	value, _ := json.Marshal(map[string]interface{}{"did": did, "setAt": time.Now().Unix()})
	if err := sess.Insert("settings", "primary_did", value, []walletstore.Tag{
		{Name: "key", Value: "primaryDid"},
		{Name: "did", Value: did},
	}); err != nil {
		return err
	}
	return sess.Commit()
}

// GetPrimaryDID returns the current pointer, or PrimaryDidMissing if unset.
func (r *Registry) GetPrimaryDID() (string, error) {
	sess, err := r.store.Session("")
	if err != nil {
		return "", err
	}
	defer sess.Close()

	entry, err := sess.Fetch("settings", "primary_did", false)
	if err != nil {
		if agenterr.Is(err, agenterr.CodeNotFound) {
			return "", agenterr.New(agenterr.CodePrimaryDidMissing, "no primary DID set")
		}
		return "", err
	}
	var v struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		return "", agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse primary DID", err)
	}
	return v.DID, nil
}

func resolveTriesEnv() int {
	if v := os.Getenv("SSI_RESOLVE_TRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 10
}

func resolveDelayMsEnv() time.Duration {
	if v := os.Getenv("SSI_RESOLVE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return 400 * time.Millisecond
}
