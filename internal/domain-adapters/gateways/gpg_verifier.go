package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/verifydeps/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external OpenPGP adapter to implement the domain signature gateway
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier creates a new GPG verifier gateway with an empty keyring
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier() *gpgVerifier {
	return NewGPGVerifierWith(gpg.NewVerifier())
}

// NewGPGVerifierWith wraps an existing verifier, for example one pointed at custom keyservers
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifierWith(verifier *gpg.Verifier) *gpgVerifier {
	return &gpgVerifier{verifier: verifier}
}

// ImportGPGKeys imports GPG keys from keyservers
func (g *gpgVerifier) ImportGPGKeys(ctx context.Context, keyIDs []string) error {
	if err := g.verifier.ImportKeys(ctx, keyIDs); err != nil {
		return fmt.Errorf("failed to import GPG keys: %w", err)
	}
	return nil
}

// ImportGPGKeysFromURL imports all GPG keys from a KEYS file URL
func (g *gpgVerifier) ImportGPGKeysFromURL(ctx context.Context, keysURL string) error {
	if err := g.verifier.ImportKeysFromURL(ctx, keysURL); err != nil {
		return fmt.Errorf("failed to import GPG keys from URL: %w", err)
	}
	return nil
}

// ImportGPGKeyFromFile imports GPG keys from a local keyring file
func (g *gpgVerifier) ImportGPGKeyFromFile(keyPath string) error {
	if err := g.verifier.ImportKeyFromFile(keyPath); err != nil {
		return fmt.Errorf("failed to import GPG key from file: %w", err)
	}
	return nil
}

// VerifyDetached verifies a detached signature and returns the signer fingerprint
func (g *gpgVerifier) VerifyDetached(ctx context.Context, filePath, signaturePath string) (string, error) {
	fingerprint, err := g.verifier.VerifyDetached(ctx, filePath, signaturePath)
	if err != nil {
		return "", fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return fingerprint, nil
}

// KeyringSize returns the number of keys loaded
func (g *gpgVerifier) KeyringSize() int {
	return g.verifier.KeyringSize()
}
