package anoncreds

// Primitives is the black-box anonymous-credential cryptography boundary
// named in spec.md §1 ("the anonymous-credential cryptographic
// primitives (treated as a black-box library exposing the operations
// listed in §4.2)"). A real binding wraps an external anoncreds
// implementation; this package never performs zero-knowledge math
// itself.
type Primitives interface {
	CreateCredentialDefinition(schemaID string, schema map[string]any, issuerID, tag string, supportRevocation bool) (public, private, keyCorrectnessProof map[string]any, err error)
	CreateCredentialOffer(schemaID, credDefID string, keyCorrectnessProof map[string]any) (offer map[string]any, err error)
	CreateLinkSecret() (seedDecimal string, err error)
	CreateCredentialRequest(entropy *string, proverDID *string, credDef map[string]any, linkSecret string, nonce string, offer map[string]any) (request, metadata map[string]any, err error)
	CreateCredential(credDef, credDefPrivate, offer, request map[string]any, values map[string]CredentialValue, revConfig map[string]any) (credential map[string]any, err error)
	ProcessCredential(credential map[string]any, requestMetadata map[string]any, linkSecret string, credDef map[string]any, revRegDef map[string]any) (processed map[string]any, err error)
	CreatePresentation(request map[string]any, presentCredentials map[string]any, selfAttested map[string]string, linkSecret string, schemas map[string]any, credDefs map[string]any) (presentation map[string]any, err error)
	VerifyPresentation(presentation, request map[string]any, schemas map[string]any, credDefs map[string]any) (ok bool, err error)
}

// CredentialValue is one attribute's raw/encoded value pair, per §4.5's
// credential-issuance step.
type CredentialValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// LedgerClient is the narrow subset of internal/ledger's surface anoncreds
// needs, mirroring internal/didreg's approach to avoid an import cycle.
type LedgerClient interface {
	GetSchema(schemaID string) (map[string]interface{}, error)
	SubmitSchema(submitterDID string, sign func([]byte) []byte, name, version string, attrNames []string) (op, reason string, seqNo int, err error)
	GetCredDef(credDefID string) (map[string]interface{}, error)
	SubmitCredDef(submitterDID string, sign func([]byte) []byte, schemaSeqNo int, tag, signatureType string, value map[string]interface{}) (op, reason string, err error)
}
