// Package server is the gorilla/mux HTTP binding over internal/agent,
// matching the teacher's cmd/walletd/server package: one JSON route per
// library operation, CORS/logging middleware, and a uniform response
// envelope.
package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ParichayaHQ/ssiagent/internal/agent"
	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/pkg/ssitypes"
)

// Server is the HTTP server binding one open Agent.
type Server struct {
	agent    *agent.Agent
	router   *mux.Router
	validate *validator.Validate
}

// NewServer constructs a Server bound to an already-open Agent.
func NewServer(a *agent.Agent) *Server {
	s := &Server{
		agent:    a,
		router:   mux.NewRouter(),
		validate: validator.New(),
	}
	s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler, wrapped in CORS and access
// logging middleware the same way cmd/walletd/server does.
func (s *Server) Router() http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return handlers.LoggingHandler(os.Stdout, corsHandler.Handler(s.router))
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	dids := api.PathPrefix("/dids").Subrouter()
	dids.HandleFunc("", s.handleListDIDs).Methods("GET")
	dids.HandleFunc("", s.handleCreateDID).Methods("POST")
	dids.HandleFunc("/import", s.handleImportDID).Methods("POST")
	dids.HandleFunc("/theirs", s.handleStoreTheirDID).Methods("POST")
	dids.HandleFunc("/resolve", s.handleResolveDID).Methods("POST")
	dids.HandleFunc("/primary", s.handleGetPrimaryDID).Methods("GET")
	dids.HandleFunc("/primary", s.handleSetPrimaryDID).Methods("PUT")
	dids.HandleFunc("/export", s.handleExportDIDs).Methods("GET")
	dids.HandleFunc("/import-batch", s.handleImportDIDBatch).Methods("POST")
	dids.HandleFunc("/{did:.*}/publish", s.handlePublishNYM).Methods("POST")
	dids.HandleFunc("/{did:.*}", s.handleGetDID).Methods("GET")

	schemas := api.PathPrefix("/schemas").Subrouter()
	schemas.HandleFunc("", s.handleCreateSchema).Methods("POST")
	schemas.HandleFunc("/{id}/register", s.handleRegisterSchema).Methods("POST")

	credDefs := api.PathPrefix("/cred-defs").Subrouter()
	credDefs.HandleFunc("", s.handleCreateCredDef).Methods("POST")

	offers := api.PathPrefix("/offers").Subrouter()
	offers.HandleFunc("", s.handleCreateOffer).Methods("POST")

	creds := api.PathPrefix("/credentials").Subrouter()
	creds.HandleFunc("", s.handleListCredentials).Methods("GET")
	creds.HandleFunc("", s.handleStoreCredential).Methods("POST")
	creds.HandleFunc("/summary", s.handleCredentialSummary).Methods("GET")
	creds.HandleFunc("/import", s.handleImportCredential).Methods("POST")
	creds.HandleFunc("/{id}", s.handleExportCredential).Methods("GET")
	creds.HandleFunc("/{id}/alias", s.handleSetCredentialAlias).Methods("PUT")
	creds.HandleFunc("/{id}/alias", s.handleClearCredentialAlias).Methods("DELETE")

	messages := api.PathPrefix("/messages").Subrouter()
	messages.HandleFunc("/encrypt", s.handleEncryptMessage).Methods("POST")
	messages.HandleFunc("/decrypt", s.handleDecryptMessage).Methods("POST")

	backup := api.PathPrefix("/backup").Subrouter()
	backup.HandleFunc("", s.handleCreateBackup).Methods("POST")
	backup.HandleFunc("/recover", s.handleRecoverBackup).Methods("POST")
}

func (s *Server) writeOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ssitypes.APIResponse{Ok: true, Data: data})
}

// writeErr renders any error as the §6 error envelope. *agenterr.Error
// carries its own stable code; anything else is wrapped as Internal.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	aerr, ok := err.(*agenterr.Error)
	if !ok {
		aerr = agenterr.Wrap(agenterr.CodeInternal, "internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(aerr.Code))
	json.NewEncoder(w).Encode(ssitypes.APIResponse{Ok: false, Error: aerr})
}

// statusForCode maps a subset of well-known codes to HTTP statuses;
// any unmapped code is a 500.
func statusForCode(code agenterr.Code) int {
	switch code {
	case agenterr.CodeNotFound, agenterr.CodeDidNotFound, agenterr.CodeWalletNotFound,
		agenterr.CodeCredDefNotFound, agenterr.CodeOfferNotFound, agenterr.CodeCredentialNotFound,
		agenterr.CodePrimaryDidMissing:
		return http.StatusNotFound
	case agenterr.CodeWalletAuthFailed, agenterr.CodeSignatureVerificationFailed:
		return http.StatusUnauthorized
	case agenterr.CodeDidConflict, agenterr.CodeWalletAlreadyExists, agenterr.CodeAlreadyExists:
		return http.StatusConflict
	case agenterr.CodeInvalidArgument, agenterr.CodeWalletPathInvalid, agenterr.CodeSeedInvalid,
		agenterr.CodeSchemaInvalid, agenterr.CodeCredDefInvalid, agenterr.CodeReservedAttribute,
		agenterr.CodeDuplicateAttribute, agenterr.CodeReferentUnknown, agenterr.CodeEnvelopeInvalid,
		agenterr.CodeChunkSizeTooSmall:
		return http.StatusBadRequest
	case agenterr.CodePolicyDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return agenterr.Wrap(agenterr.CodeInvalidArgument, "invalid JSON request body", err)
	}
	return nil
}

func (s *Server) validateStruct(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return agenterr.Wrap(agenterr.CodeInvalidArgument, "request validation failed", err)
	}
	return nil
}
