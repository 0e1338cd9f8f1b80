package anoncreds

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
)

// linkSecretCache is the process-wide, at-most-one cached link secret of
// §4.5/§9: a mutex-guarded decimal-string value, replaced only on
// creation or first load, cleared on wallet close.
type linkSecretCache struct {
	mu    sync.Mutex
	value string
	set   bool
}

var globalLinkSecretCache linkSecretCache

// ClearLinkSecretCache drops the process-wide cache; called on wallet
// close per §5 ("It is cleared on wallet close").
func ClearLinkSecretCache() {
	globalLinkSecretCache.mu.Lock()
	defer globalLinkSecretCache.mu.Unlock()
	globalLinkSecretCache.value = ""
	globalLinkSecretCache.set = false
}

const defaultLinkSecretID = "default"

// CreateLinkSecret implements §4.5's singleton policy: a no-op if already
// persisted, otherwise a fresh random 128-bit decimal seed is generated,
// persisted, and cached.
func (m *Manager) CreateLinkSecret(id string) error {
	if id == "" {
		id = defaultLinkSecretID
	}
	sess, err := m.store.Session("")
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.Fetch("link_secret", id, false); err == nil {
		return nil
	}

	seed, err := randomDecimal128()
	if err != nil {
		return err
	}

	if err := sess.Insert("link_secret", id, []byte(seed), nil); err != nil {
		return err
	}
	if err := sess.Commit(); err != nil {
		return err
	}

	globalLinkSecretCache.mu.Lock()
	globalLinkSecretCache.value = seed
	globalLinkSecretCache.set = true
	globalLinkSecretCache.mu.Unlock()
	return nil
}

// resolveLinkSecret fills the cache from storage on first use, per §4.5
// ("if the cache is empty: fetch link_secret/default... reconstruct...
// fill the cache").
func (m *Manager) resolveLinkSecret(id string) (string, error) {
	if id == "" {
		id = defaultLinkSecretID
	}
	globalLinkSecretCache.mu.Lock()
	if globalLinkSecretCache.set {
		v := globalLinkSecretCache.value
		globalLinkSecretCache.mu.Unlock()
		return v, nil
	}
	globalLinkSecretCache.mu.Unlock()

	sess, err := m.store.Session("")
	if err != nil {
		return "", err
	}
	defer sess.Close()

	entry, err := sess.Fetch("link_secret", id, false)
	if err != nil {
		if agenterr.Is(err, agenterr.CodeNotFound) {
			return "", agenterr.New(agenterr.CodeLinkSecretMissing, "no link secret created")
		}
		return "", err
	}

	globalLinkSecretCache.mu.Lock()
	globalLinkSecretCache.value = string(entry.Value)
	globalLinkSecretCache.set = true
	globalLinkSecretCache.mu.Unlock()
	return string(entry.Value), nil
}

// randomDecimal128 generates a random 128-bit unsigned integer rendered
// as decimal text, per §4.5's link-secret seed format.
func randomDecimal128() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", agenterr.Wrap(agenterr.CodeInternal, "failed to generate link secret seed", err)
	}
	n := new(big.Int).SetBytes(buf)
	return n.String(), nil
}
