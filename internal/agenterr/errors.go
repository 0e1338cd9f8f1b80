// Package agenterr defines the stable error surface returned across every
// component of the agent: a machine-readable Code, a human message, and an
// optional detail string, always serializable as {"ok":false,"code",...}.
package agenterr

import "encoding/json"

// Code is a stable, machine-readable error identifier (§7).
type Code string

const (
	CodeWalletPathInvalid   Code = "WalletPathInvalid"
	CodeWalletAlreadyExists Code = "WalletAlreadyExists"
	CodeWalletNotFound      Code = "WalletNotFound"
	CodeWalletOpenFailed    Code = "WalletOpenFailed"
	CodeWalletAuthFailed    Code = "WalletAuthFailed"
	CodeWalletClosed        Code = "WalletClosed"

	CodeKdfParamsMissing   Code = "KdfParamsMissing"
	CodeKdfParamsInvalid   Code = "KdfParamsInvalid"
	CodeKdfUnknown         Code = "KdfUnknown"
	CodeArgon2ParamsInvalid Code = "Argon2ParamsInvalid"
	CodeSidecarParseFailed Code = "SidecarParseFailed"
	CodeSidecarReadFailed  Code = "SidecarReadFailed"
	CodeSidecarWriteFailed Code = "SidecarWriteFailed"

	CodeBackupPathInvalid     Code = "BackupPathInvalid"
	CodeBackupEncryptFailed   Code = "BackupEncryptFailed"
	CodeBackupDecryptFailed   Code = "BackupDecryptFailed"
	CodeBackupFormatInvalid   Code = "BackupFormatInvalid"
	CodeBackupNonceInvalid    Code = "BackupNonceInvalid"
	CodeBackupKeyInvalid      Code = "BackupKeyInvalid"
	CodeBackupReadFailed      Code = "BackupReadFailed"
	CodeBackupWriteFailed     Code = "BackupWriteFailed"

	CodeDidConflict        Code = "DidConflict"
	CodeDidNotFound        Code = "DidNotFound"
	CodeDidInvalid         Code = "DidInvalid"
	CodeSeedInvalid        Code = "SeedInvalid"
	CodePrimaryDidMissing  Code = "PrimaryDidMissing"

	CodePoolNotConnected   Code = "PoolNotConnected"
	CodeLedgerGetNymFailed Code = "LedgerGetNymFailed"
	CodeLedgerRejected     Code = "LedgerRejected"
	CodeLedgerTimeout      Code = "LedgerTimeout"
	CodePolicyDenied       Code = "PolicyDenied"

	CodeSignatureVerificationFailed Code = "SignatureVerificationFailed"
	CodeEnvelopeV2MissingSig        Code = "EnvelopeV2MissingSig"
	CodeEnvelopeInvalid             Code = "EnvelopeInvalid"
	CodeAeadDecryptFailed           Code = "AeadDecryptFailed"
	CodeContainerTruncated          Code = "ContainerTruncated"
	CodeContainerBadMagic           Code = "ContainerBadMagic"
	CodeChunkSizeTooSmall           Code = "ChunkSizeTooSmall"
	CodeContainerSizeMismatch       Code = "ContainerSizeMismatch"

	CodeSchemaInvalid       Code = "SchemaInvalid"
	CodeCredDefInvalid      Code = "CredDefInvalid"
	CodeCredDefNotFound     Code = "CredDefNotFound"
	CodeLinkSecretMissing   Code = "LinkSecretMissing"
	CodeReservedAttribute   Code = "ReservedAttribute"
	CodeDuplicateAttribute  Code = "DuplicateAttribute"
	CodeOfferNotFound       Code = "OfferNotFound"
	CodeCredentialNotFound  Code = "CredentialNotFound"
	CodeReferentUnknown     Code = "ReferentUnknown"

	CodeStorageError      Code = "StorageError"
	CodeSerializationError Code = "SerializationError"
	CodeNotFound          Code = "NotFound"
	CodeAlreadyExists     Code = "AlreadyExists"
	CodeInvalidArgument   Code = "InvalidArgument"
	CodeInternal          Code = "Internal"
)

// Error is the error type returned by every exported operation.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return string(e.Code) + ": " + e.Message + " (" + e.Details + ")"
	}
	return string(e.Code) + ": " + e.Message
}

// envelope is the wire shape required by §6: {"ok":false,"code","message"}.
type envelope struct {
	Ok      bool   `json:"ok"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// MarshalJSON renders the stable {"ok":false,...} envelope described in §6,
// independent of the richer Details field used for internal diagnostics.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{Ok: false, Code: e.Code, Message: e.Message})
}

// New creates an Error with no further detail.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails creates an Error carrying an additional diagnostic string,
// typically the wrapped error's message.
func WithDetails(code Code, message, details string) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Wrap attaches a code and message to an underlying error, preserving its
// text as Details.
func Wrap(code Code, message string, err error) *Error {
	if err == nil {
		return New(code, message)
	}
	return WithDetails(code, message, err.Error())
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
