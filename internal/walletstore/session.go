package walletstore

import (
	"database/sql"
	"sort"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// Session is a transaction-scoped handle. Writes are visible to other
// sessions only after Commit; Close on an uncommitted session rolls it
// back. A session that is dropped without Commit or Close is not rolled
// back: its transaction stays open.
type Session struct {
	store     *Store
	tx        *sql.Tx
	committed bool
}

// Session opens a new transaction-scoped handle. profile is accepted for
// API parity with §4.2 ("session(profile?)") but unused: this store has a
// single profile.
func (s *Store) Session(profile string) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to begin session", err)
	}
	return &Session{store: s, tx: tx}, nil
}

// Commit finalizes the session, making its writes visible.
func (sess *Session) Commit() error {
	if sess.committed {
		return nil
	}
	if err := sess.tx.Commit(); err != nil {
		return agenterr.Wrap(agenterr.CodeStorageError, "failed to commit session", err)
	}
	sess.committed = true
	return nil
}

// Close rolls back the session if it was never committed. Safe to call
// after Commit.
func (sess *Session) Close() error {
	if sess.committed {
		return nil
	}
	return sess.tx.Rollback()
}

// Insert creates a new entry. The wallet store has no update primitive
// (§9 "Upsert"); callers model updates as Remove+Insert within one session.
func (sess *Session) Insert(category, name string, value []byte, tags []Tag) error {
	nonce, ct, err := sess.store.encrypt(category, name, value)
	if err != nil {
		return err
	}
	if _, err := sess.tx.Exec(
		`INSERT INTO entries (category, name, nonce, ciphertext) VALUES (?, ?, ?, ?)`,
		category, name, nonce, ct,
	); err != nil {
		return agenterr.Wrap(agenterr.CodeStorageError, "failed to insert entry", err)
	}
	for _, t := range tags {
		idxVal := sess.store.tagIndexValue(t)
		enc := 0
		if t.Encrypted {
			enc = 1
		}
		if _, err := sess.tx.Exec(
			`INSERT INTO tags (category, name, tag_name, tag_value, encrypted) VALUES (?, ?, ?, ?, ?)`,
			category, name, t.Name, idxVal, enc,
		); err != nil {
			return agenterr.Wrap(agenterr.CodeStorageError, "failed to insert tag", err)
		}
	}
	return nil
}

// Remove deletes an entry and its tags.
func (sess *Session) Remove(category, name string) error {
	if _, err := sess.tx.Exec(`DELETE FROM tags WHERE category = ? AND name = ?`, category, name); err != nil {
		return agenterr.Wrap(agenterr.CodeStorageError, "failed to remove tags", err)
	}
	res, err := sess.tx.Exec(`DELETE FROM entries WHERE category = ? AND name = ?`, category, name)
	if err != nil {
		return agenterr.Wrap(agenterr.CodeStorageError, "failed to remove entry", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return agenterr.New(agenterr.CodeNotFound, "entry not found")
	}
	return nil
}

// Fetch retrieves and decrypts a single entry. forUpdate is accepted for
// API parity with §4.2 but has no locking effect beyond the enclosing
// transaction's own isolation.
func (sess *Session) Fetch(category, name string, forUpdate bool) (*Entry, error) {
	row := sess.tx.QueryRow(`SELECT nonce, ciphertext FROM entries WHERE category = ? AND name = ?`, category, name)
	var nonce, ct []byte
	if err := row.Scan(&nonce, &ct); err != nil {
		if err == sql.ErrNoRows {
			return nil, agenterr.New(agenterr.CodeNotFound, "entry not found")
		}
		return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to fetch entry", err)
	}
	value, err := sess.store.decrypt(category, name, nonce, ct)
	if err != nil {
		return nil, err
	}
	tags, err := sess.fetchTags(category, name)
	if err != nil {
		return nil, err
	}
	return &Entry{Category: category, Name: name, Value: value, Tags: tags}, nil
}

func (sess *Session) fetchTags(category, name string) ([]Tag, error) {
	rows, err := sess.tx.Query(`SELECT tag_name, tag_value, encrypted FROM tags WHERE category = ? AND name = ?`, category, name)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to fetch tags", err)
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		var enc int
		if err := rows.Scan(&t.Name, &t.Value, &enc); err != nil {
			return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to scan tag", err)
		}
		t.Encrypted = enc != 0
		tags = append(tags, t)
	}
	return tags, nil
}

// FetchAll scans a category, applying the tag filter, limit, and
// descending options of §4.2. Entries are always ordered by name;
// opts.OrderBy is not consulted. Encrypted-tag equality terms in opts.Tags
// must already carry the hashed index value (see Store.HashTagValue); this
// lets callers decide per-tag whether hashing is needed without the
// session reaching into schema knowledge it doesn't have.
func (sess *Session) FetchAll(category string, opts FetchAllOptions) ([]*Entry, error) {
	rows, err := sess.tx.Query(`SELECT name FROM entries WHERE category = ?`, category)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to scan category", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to scan name", err)
		}
		names = append(names, n)
	}
	rows.Close()

	var out []*Entry
	for _, name := range names {
		tags, err := sess.fetchTags(category, name)
		if err != nil {
			return nil, err
		}
		if !opts.Tags.Matches(tags) {
			continue
		}
		var value []byte
		if opts.IncludeValue {
			e, err := sess.Fetch(category, name, false)
			if err != nil {
				return nil, err
			}
			value = e.Value
		}
		out = append(out, &Entry{Category: category, Name: name, Value: value, Tags: tags})
	}

	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].Name > out[j].Name
		}
		return out[i].Name < out[j].Name
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// FetchKey retrieves and decrypts a KMS key record by verkey.
func (sess *Session) FetchKey(verkey string, forUpdate bool) (*KeyRecord, error) {
	row := sess.tx.QueryRow(`SELECT alg, nonce, ciphertext FROM keys WHERE verkey = ?`, verkey)
	var alg string
	var nonce, ct []byte
	if err := row.Scan(&alg, &nonce, &ct); err != nil {
		if err == sql.ErrNoRows {
			return nil, agenterr.New(agenterr.CodeNotFound, "key not found")
		}
		return nil, agenterr.Wrap(agenterr.CodeStorageError, "failed to fetch key", err)
	}
	material, err := sess.store.decrypt("__keys", verkey, nonce, ct)
	if err != nil {
		return nil, err
	}
	return &KeyRecord{Verkey: verkey, Alg: alg, KeyMaterial: material}, nil
}

// InsertKey stores a KMS key record. Like entries, keys have no update
// primitive; re-keying a verkey is modeled by the caller as delete+insert.
func (sess *Session) InsertKey(verkey string, keyMaterial []byte, alg string) error {
	nonce, ct, err := sess.store.encrypt("__keys", verkey, keyMaterial)
	if err != nil {
		return err
	}
	if _, err := sess.tx.Exec(
		`INSERT INTO keys (verkey, alg, nonce, ciphertext) VALUES (?, ?, ?, ?)`,
		verkey, alg, nonce, ct,
	); err != nil {
		return agenterr.Wrap(agenterr.CodeStorageError, "failed to insert key", err)
	}
	return nil
}

// HashTagValue exposes the store's encrypted-tag index hash to callers
// building a TagFilter against an encrypted tag.
func (s *Store) HashTagValue(name, value string) string {
	return s.hashTagValue(name, value)
}
