// Package gateways defines the contracts of infrastructure used by domain services.
package gateways

import (
	"context"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// SignatureFileFactory lazily locates the detached signature of an artifact.
// It returns false when no signature is available.
type SignatureFileFactory func(ctx context.Context) (string, bool)

// ArtifactVerificationOperation is notified of every verifiable artifact resolution
type ArtifactVerificationOperation interface {
	// OnArtifact verifies a resolved artifact file. A non-nil error is a
	// verification failure that should fail the resolution.
	OnArtifact(
		ctx context.Context,
		kind entities.ArtifactKind,
		id entities.ModuleArtifactIdentifier,
		file string,
		signatureFile SignatureFileFactory,
		repositoryName, repositoryID string,
	) error
}

// SignatureGateway verifies detached OpenPGP signatures
type SignatureGateway interface {
	// VerifyDetached checks signaturePath against filePath and returns the
	// fingerprint of the signing key
	VerifyDetached(ctx context.Context, filePath, signaturePath string) (string, error)
}

// ChecksumGateway computes file digests
type ChecksumGateway interface {
	// Checksum returns the lowercase hex digest of filePath
	Checksum(ctx context.Context, filePath string, kind entities.ChecksumKind) (string, error)
}

// VerificationGateway combines signature and checksum capabilities
type VerificationGateway interface {
	SignatureGateway
	ChecksumGateway
}
