package server

import (
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/anoncreds"
	"github.com/ParichayaHQ/ssiagent/internal/backup"
	"github.com/ParichayaHQ/ssiagent/internal/credvault"
	"github.com/ParichayaHQ/ssiagent/internal/didreg"
	"github.com/ParichayaHQ/ssiagent/internal/messaging"
	"github.com/ParichayaHQ/ssiagent/pkg/ssitypes"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// signerForDID resolves did's verkey and private key from the wallet and
// returns an Ed25519 signing function, the same key lookup PublishNYM and
// schema/cred-def registration all need.
func (s *Server) signerForDID(did string) (func([]byte) []byte, error) {
	rec, err := s.agent.DIDs.Get(did)
	if err != nil {
		return nil, err
	}
	sess, err := s.agent.Store.Session("")
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	keyRec, err := sess.FetchKey(rec.Verkey, false)
	if err != nil {
		return nil, err
	}
	priv := ed25519.PrivateKey(keyRec.KeyMaterial)
	return func(msg []byte) []byte {
		return ed25519.Sign(priv, msg)
	}, nil
}

// --- DIDs ---

func (s *Server) handleCreateDID(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.CreateDIDRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.DIDs.CreateOwnDID(req.Alias)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, rec)
}

func (s *Server) handleImportDID(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.ImportDIDRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	seed, err := didreg.DecodeSeed(req.SeedB64)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.DIDs.ImportDIDFromSeed(seed, req.Alias)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, rec)
}

func (s *Server) handleStoreTheirDID(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.StoreTheirDIDRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.DIDs.StoreTheirDID(req.DID, req.Verkey, req.Alias)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, rec)
}

func (s *Server) handleGetDID(w http.ResponseWriter, r *http.Request) {
	did := mux.Vars(r)["did"]
	rec, err := s.agent.DIDs.Get(did)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, rec)
}

func (s *Server) handleListDIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := didreg.SearchFilter{
		Type:   q.Get("type"),
		Query:  q.Get("query"),
		Role:   q.Get("role"),
		Origin: q.Get("origin"),
	}
	if v := q.Get("is_public"); v != "" {
		b := v == "true"
		f.IsPublic = &b
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}
	recs, err := s.agent.DIDs.Search(f)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, recs)
}

func (s *Server) handleExportDIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := didreg.SearchFilter{Type: q.Get("type"), Query: q.Get("query")}
	batch, err := s.agent.DIDs.ExportBatch(f)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, batch)
}

func (s *Server) handleImportDIDBatch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeErr(w, agenterr.Wrap(agenterr.CodeInvalidArgument, "failed to read request body", err))
		return
	}
	count, err := s.agent.DIDs.ImportBatch(raw)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]int{"imported": count})
}

func (s *Server) handleResolveDID(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.ResolveDIDRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.agent.DIDs.ResolveNYM(req.DID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, res)
}

func (s *Server) handlePublishNYM(w http.ResponseWriter, r *http.Request) {
	targetDID := mux.Vars(r)["did"]
	var req struct {
		SubmitterDID              string `json:"submitter_did" validate:"required"`
		Role                      string `json:"role"`
		RequireTrusteeForEndorser bool   `json:"require_trustee_for_endorser"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.DIDs.PublishNYM(req.SubmitterDID, targetDID, req.Role, didreg.CreatePolicy{
		RequireTrusteeForEndorser: req.RequireTrusteeForEndorser,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, rec)
}

func (s *Server) handleGetPrimaryDID(w http.ResponseWriter, r *http.Request) {
	did, err := s.agent.DIDs.GetPrimaryDID()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"did": did})
}

func (s *Server) handleSetPrimaryDID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DID string `json:"did" validate:"required"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.agent.DIDs.SetPrimaryDID(req.DID); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"did": req.DID})
}

// --- Schemas & cred-defs ---

func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.CreateSchemaRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	env := req.Env
	if env == "" {
		env = "test"
	}
	rec, err := s.agent.Creds.CreateSchemaDraft(req.Name, req.Version, req.AttrNames, req.Revocable, env)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, rec)
}

func (s *Server) handleRegisterSchema(w http.ResponseWriter, r *http.Request) {
	idLocal := mux.Vars(r)["id"]
	var req ssitypes.RegisterSchemaRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	sess, err := s.agent.Store.Session("")
	if err != nil {
		s.writeErr(w, err)
		return
	}
	entry, err := sess.Fetch("schema", idLocal, false)
	sess.Close()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var draft anoncreds.SchemaRecord
	if err := json.Unmarshal(entry.Value, &draft); err != nil {
		s.writeErr(w, agenterr.Wrap(agenterr.CodeSerializationError, "failed to parse schema draft", err))
		return
	}
	sign, err := s.signerForDID(req.IssuerDID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.Creds.CreateAndRegisterSchema(&draft, req.IssuerDID, sign)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, rec)
}

func (s *Server) handleCreateCredDef(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.CreateCredDefRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	sign, err := s.signerForDID(req.IssuerDID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	id, err := s.agent.Creds.CreateCredDef(req.SchemaID, req.IssuerDID, req.Tag, sign)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, map[string]string{"cred_def_id": id})
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CredDefID string `json:"cred_def_id" validate:"required"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	offer, err := s.agent.Creds.CreateCredOffer(req.CredDefID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, offer)
}

// --- Credentials / vault ---

func (s *Server) handleStoreCredential(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.StoreCredentialRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.agent.Creds.StoreCredential(req.Credential, req.CredDef, req.CredDefID, req.Alias)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, rec)
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schemaID := q.Get("schema_id")
	credDefID := q.Get("cred_def_id")
	view := q.Get("view")

	if schemaID != "" || credDefID != "" {
		items, err := s.agent.Vault.ListByTags(schemaID, credDefID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeOK(w, http.StatusOK, items)
		return
	}

	if view == "compact" {
		opts := credvault.ListOptions{}
		if v := q.Get("limit"); v != "" {
			opts.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("offset"); v != "" {
			opts.Offset, _ = strconv.Atoi(v)
		}
		items, err := s.agent.Vault.ListCompact(opts)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeOK(w, http.StatusOK, items)
		return
	}

	items, err := s.agent.Vault.ListFull()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, items)
}

func (s *Server) handleCredentialSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.agent.Vault.Summary()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, sum)
}

func (s *Server) handleExportCredential(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pkg, err := s.agent.Vault.Export(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, pkg)
}

func (s *Server) handleImportCredential(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.ImportCredentialRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	raw, err := json.Marshal(req.Package)
	if err != nil {
		s.writeErr(w, agenterr.Wrap(agenterr.CodeSerializationError, "failed to re-serialize package", err))
		return
	}
	id, err := s.agent.Vault.Import(raw, req.Overwrite)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, map[string]string{"id_local": id})
}

func (s *Server) handleSetCredentialAlias(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ssitypes.SetAliasRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.agent.Vault.SetAlias(id, req.Alias); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"id_local": id, "alias": req.Alias})
}

func (s *Server) handleClearCredentialAlias(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.agent.Vault.ClearAlias(id); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"id_local": id})
}

// --- Messaging ---

func (s *Server) handleEncryptMessage(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.EncryptMessageRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	env, err := s.agent.Messages.EncryptMessage(req.SenderDID, req.TargetVerkey, req.Message)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, env)
}

func (s *Server) handleDecryptMessage(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.DecryptMessageRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	envJSON, err := json.Marshal(req.Envelope)
	if err != nil {
		s.writeErr(w, agenterr.Wrap(agenterr.CodeSerializationError, "failed to re-serialize envelope", err))
		return
	}
	var env messaging.MsgBox
	if err := json.Unmarshal(envJSON, &env); err != nil {
		s.writeErr(w, agenterr.Wrap(agenterr.CodeEnvelopeInvalid, "invalid envelope", err))
		return
	}
	plaintext, err := s.agent.Messages.DecryptMessage(req.ReceiverDID, req.SenderVerkey, &env)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"message": plaintext})
}

// --- Backup ---

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.BackupCreateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := backup.Create(req.WalletPassword, req.BackupPassword, req.BackupPath); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusCreated, map[string]string{"backup_path": req.BackupPath})
}

func (s *Server) handleRecoverBackup(w http.ResponseWriter, r *http.Request) {
	var req ssitypes.BackupRecoverRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeErr(w, err)
		return
	}
	pass, err := backup.Recover(req.BackupPassword, req.BackupPath)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]string{"wallet_password": pass})
}
