package gateways

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// compositeVerificationGateway implements the VerificationGateway interface by
// composing the checksum and OpenPGP gateways
type compositeVerificationGateway struct {
	checksumVerifier *checksumVerifier
	gpgVerifier      *gpgVerifier
}

// NewCompositeVerificationGateway creates a composite gateway with default dependencies
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewCompositeVerificationGateway() *compositeVerificationGateway {
	return &compositeVerificationGateway{
		checksumVerifier: NewChecksumVerifier(),
		gpgVerifier:      NewGPGVerifier(),
	}
}

// NewCompositeVerificationGatewayWithDeps creates a composite gateway with custom dependencies
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewCompositeVerificationGatewayWithDeps(checksum *checksumVerifier, gpg *gpgVerifier) *compositeVerificationGateway {
	return &compositeVerificationGateway{
		checksumVerifier: checksum,
		gpgVerifier:      gpg,
	}
}

// Checksum computes a file digest
func (c *compositeVerificationGateway) Checksum(ctx context.Context, filePath string, kind entities.ChecksumKind) (string, error) {
	return c.checksumVerifier.Checksum(ctx, filePath, kind)
}

// VerifyDetached verifies a detached OpenPGP signature
func (c *compositeVerificationGateway) VerifyDetached(ctx context.Context, filePath, signaturePath string) (string, error) {
	return c.gpgVerifier.VerifyDetached(ctx, filePath, signaturePath)
}

// LoadKeys populates the keyring from local keyring files, KEYS URLs and,
// when fetchKeys is set, the trusted keys of the metadata from keyservers.
// Every source is attempted; failures are aggregated.
func (c *compositeVerificationGateway) LoadKeys(ctx context.Context, metadata *entities.VerificationMetadata, fetchKeys bool) error {
	var result *multierror.Error

	for _, keyring := range metadata.KeyringFiles {
		if err := c.gpgVerifier.ImportGPGKeyFromFile(keyring); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, keysURL := range metadata.KeyringURLs {
		if err := c.gpgVerifier.ImportGPGKeysFromURL(ctx, keysURL); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if fetchKeys {
		var keyIDs []string
		for _, key := range metadata.TrustedKeys {
			keyIDs = append(keyIDs, key.ID)
		}
		if len(keyIDs) > 0 {
			if err := c.gpgVerifier.ImportGPGKeys(ctx, keyIDs); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("failed to load verification keys: %w", err)
	}
	return nil
}

// KeyringSize returns the number of keys loaded
func (c *compositeVerificationGateway) KeyringSize() int {
	return c.gpgVerifier.KeyringSize()
}
