// Package agent wires the wallet, DID registry, ledger client, anoncreds
// manager, credential vault, and secure-messaging components into the
// single handle cmd/ssiagentd's HTTP binding drives, mirroring the way
// the teacher's internal/wallet.Service composes a wallet, a key manager,
// and storage behind one entry point.
package agent

import (
	"os"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/anoncreds"
	"github.com/ParichayaHQ/ssiagent/internal/credvault"
	"github.com/ParichayaHQ/ssiagent/internal/didreg"
	"github.com/ParichayaHQ/ssiagent/internal/kdf"
	"github.com/ParichayaHQ/ssiagent/internal/ledger"
	"github.com/ParichayaHQ/ssiagent/internal/messaging"
	"github.com/ParichayaHQ/ssiagent/internal/walletstore"
)

// Agent is the library's single host-facing handle: one open wallet plus
// every component built on top of it. A host process holds exactly one
// Agent per open wallet, matching §5's "wallet store handle is
// reference-counted and shared across tasks".
type Agent struct {
	Store    *walletstore.Store
	DIDs     *didreg.Registry
	Ledger   *ledger.Client
	Creds    *anoncreds.Manager
	Vault    *credvault.Vault
	Messages *messaging.Messenger

	walletPath string
}

// Options configures construction of an Agent around an already-open or
// freshly-provisioned wallet store.
type Options struct {
	GenesisPath string
	Submit      ledger.Submitter
	Primitives  anoncreds.Primitives
}

// Create provisions a brand-new wallet at path (Argon2id KDF, sidecar
// written before returning success per §4.1's Create policy) and wires
// an Agent around it. If writing the sidecar fails, the store is closed
// and the partially created wallet files are removed per §3's lifecycle
// invariant; a failure while wiring the Agent leaves the files in place.
func Create(path, password string, opts Options) (*Agent, error) {
	sidecar, salt, err := kdf.NewArgon2idSidecar()
	if err != nil {
		return nil, err
	}
	rawKeyB58, err := kdf.DeriveArgon2id(password, salt, sidecar.MCostKiB, sidecar.TCost, sidecar.PCost)
	if err != nil {
		return nil, err
	}

	store, err := walletstore.Provision(path, []byte(rawKeyB58))
	if err != nil {
		return nil, err
	}

	sidecarPath := kdf.SidecarPath(path)
	if err := kdf.WriteSidecar(sidecarPath, sidecar); err != nil {
		store.Close()
		kdf.CleanupWalletFiles(path, sidecarPath)
		return nil, err
	}

	return wire(store, path, opts)
}

// Open opens an existing wallet at path, deriving the raw key from the
// sidecar when present or falling back to the legacy KDF when absent,
// per §4.1's Open policy.
func Open(path, password string, opts Options) (*Agent, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, agenterr.New(agenterr.CodeWalletNotFound, "wallet database not found")
	}

	sidecarPath := kdf.SidecarPath(path)
	var rawKeyB58 string
	if _, err := os.Stat(sidecarPath); err == nil {
		sc, err := kdf.ReadSidecar(sidecarPath)
		if err != nil {
			return nil, err
		}
		rawKeyB58, err = kdf.DeriveFromSidecar(password, sc)
		if err != nil {
			return nil, err
		}
	} else {
		rawKeyB58 = kdf.DeriveLegacy(password, kdf.LegacyRounds)
	}

	store, err := walletstore.Open(path, []byte(rawKeyB58))
	if err != nil {
		if agenterr.Is(err, agenterr.CodeWalletAuthFailed) {
			return nil, err
		}
		return nil, err
	}

	if _, err := os.Stat(sidecarPath); err != nil {
		// Legacy wallet opened without a sidecar: write one best-effort so
		// subsequent opens skip the legacy fallback, per §4.1.
		_ = kdf.WriteSidecar(sidecarPath, kdf.LegacySidecar())
	}

	return wire(store, path, opts)
}

func wire(store *walletstore.Store, path string, opts Options) (*Agent, error) {
	var ledgerClient *ledger.Client
	if opts.GenesisPath != "" {
		lc, err := ledger.NewClient(opts.GenesisPath, opts.Submit)
		if err != nil {
			store.Close()
			return nil, err
		}
		ledgerClient = lc
	}

	a := &Agent{
		Store:      store,
		DIDs:       didreg.New(store, ledgerClientOrNil(ledgerClient)),
		Ledger:     ledgerClient,
		Creds:      anoncreds.New(store, anoncredsLedgerOrNil(ledgerClient), opts.Primitives),
		Vault:      credvault.New(store),
		Messages:   messaging.New(store),
		walletPath: path,
	}
	return a, nil
}

// ledgerClientOrNil adapts a possibly-nil *ledger.Client to the narrow
// didreg.LedgerClient interface: a nil *ledger.Client must still compare
// equal to a nil interface so didreg's "no ledger configured" check
// triggers correctly.
func ledgerClientOrNil(lc *ledger.Client) didreg.LedgerClient {
	if lc == nil {
		return nil
	}
	return lc
}

func anoncredsLedgerOrNil(lc *ledger.Client) anoncreds.LedgerClient {
	if lc == nil {
		return nil
	}
	return lc
}

// Close releases the wallet store and clears the process-global
// link-secret cache, per §5 ("cleared on wallet close").
func (a *Agent) Close() error {
	anoncreds.ClearLinkSecretCache()
	return a.Store.Close()
}

// WalletPath returns the path the Agent's wallet database was opened or
// provisioned at.
func (a *Agent) WalletPath() string {
	return a.walletPath
}
