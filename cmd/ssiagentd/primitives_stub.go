package main

import (
	"github.com/ParichayaHQ/ssiagent/internal/agenterr"
	"github.com/ParichayaHQ/ssiagent/internal/anoncreds"
)

// unconfiguredPrimitives satisfies anoncreds.Primitives with a uniform
// "not configured" failure. spec.md §1 treats the anonymous-credential
// cryptographic primitives as an external collaborator behind a named
// interface; a production deployment links a real anoncreds binding in
// place of this stub. Kept here (the host binding layer) rather than in
// internal/anoncreds, since the library itself must not assume any
// concrete primitives implementation.
type unconfiguredPrimitives struct{}

func (unconfiguredPrimitives) err() error {
	return agenterr.New(agenterr.CodeInternal, "anoncreds primitives are not configured on this agent")
}

func (p unconfiguredPrimitives) CreateCredentialDefinition(schemaID string, schema map[string]any, issuerID, tag string, supportRevocation bool) (map[string]any, map[string]any, map[string]any, error) {
	return nil, nil, nil, p.err()
}

func (p unconfiguredPrimitives) CreateCredentialOffer(schemaID, credDefID string, keyCorrectnessProof map[string]any) (map[string]any, error) {
	return nil, p.err()
}

func (p unconfiguredPrimitives) CreateLinkSecret() (string, error) {
	return "", p.err()
}

func (p unconfiguredPrimitives) CreateCredentialRequest(entropy, proverDID *string, credDef map[string]any, linkSecret string, nonce string, offer map[string]any) (map[string]any, map[string]any, error) {
	return nil, nil, p.err()
}

func (p unconfiguredPrimitives) CreateCredential(credDef, credDefPrivate, offer, request map[string]any, values map[string]anoncreds.CredentialValue, revConfig map[string]any) (map[string]any, error) {
	return nil, p.err()
}

func (p unconfiguredPrimitives) ProcessCredential(credential map[string]any, requestMetadata map[string]any, linkSecret string, credDef map[string]any, revRegDef map[string]any) (map[string]any, error) {
	return nil, p.err()
}

func (p unconfiguredPrimitives) CreatePresentation(request map[string]any, presentCredentials map[string]any, selfAttested map[string]string, linkSecret string, schemas map[string]any, credDefs map[string]any) (map[string]any, error) {
	return nil, p.err()
}

func (p unconfiguredPrimitives) VerifyPresentation(presentation, request map[string]any, schemas map[string]any, credDefs map[string]any) (bool, error) {
	return false, p.err()
}
