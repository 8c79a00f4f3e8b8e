// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/gateways"
)

// DependencyVerifier checks resolved artifacts against verification metadata.
// It is safe for concurrent use.
type DependencyVerifier struct {
	metadata *entities.VerificationMetadata
	gateway  gateways.VerificationGateway
	logger   interfaces.Logger

	mu       sync.Mutex
	verified map[string]struct{}
	failures *multierror.Error
}

// NewDependencyVerifier creates a verifier with dependency injection
func NewDependencyVerifier(metadata *entities.VerificationMetadata, gateway gateways.VerificationGateway, logger interfaces.Logger) *DependencyVerifier {
	return &DependencyVerifier{
		metadata: metadata,
		gateway:  gateway,
		logger:   interfaces.OrNoOp(logger),
		verified: make(map[string]struct{}),
	}
}

// OnArtifact implements gateways.ArtifactVerificationOperation
func (v *DependencyVerifier) OnArtifact(
	ctx context.Context,
	kind entities.ArtifactKind,
	id entities.ModuleArtifactIdentifier,
	file string,
	signatureFile gateways.SignatureFileFactory,
	repositoryName, _ string,
) error {
	if v.metadata.Mode == entities.ModeOff {
		return nil
	}
	if kind == entities.ArtifactKindMetadata && !v.metadata.VerifyMetadata {
		return nil
	}

	key := id.DisplayName() + "|" + file
	v.mu.Lock()
	_, done := v.verified[key]
	v.mu.Unlock()
	if done {
		return nil
	}

	failure := v.verify(ctx, id, file, signatureFile)
	if failure == nil {
		v.mu.Lock()
		v.verified[key] = struct{}{}
		v.mu.Unlock()
		v.logger.Debug("artifact verified",
			interfaces.F("artifact", id.DisplayName()),
			interfaces.F("kind", kind.String()))
		return nil
	}

	failure.Repository = repositoryName
	v.mu.Lock()
	v.failures = multierror.Append(v.failures, failure)
	v.mu.Unlock()
	v.logger.Warn("artifact failed verification",
		interfaces.F("artifact", id.DisplayName()),
		interfaces.F("kind", kind.String()),
		interfaces.F("failure", string(failure.Kind)),
		interfaces.F("reason", failure.Reason))

	if v.metadata.Mode == entities.ModeLenient {
		return nil
	}
	return failure
}

// Failures returns every recorded failure, or nil when verification passed
func (v *DependencyVerifier) Failures() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failures.ErrorOrNil()
}

func (v *DependencyVerifier) verify(ctx context.Context, id entities.ModuleArtifactIdentifier, file string, signatureFile gateways.SignatureFileFactory) *entities.VerificationFailure {
	component := id.ComponentIdentifier()
	entry, _ := v.metadata.FindArtifact(component, id.FileName())

	if v.metadata.VerifySignatures && signatureFile != nil {
		if sigPath, ok := signatureFile(ctx); ok {
			failure, trusted := v.verifySignature(ctx, id, file, sigPath, entry)
			if trusted {
				return nil
			}
			if failure != nil && failure.Kind != entities.FailureIgnoredKey {
				return failure
			}
		}
	}

	return v.verifyChecksums(ctx, id, file, entry)
}

// verifySignature returns trusted=true when a trusted key signed the file. An
// ignored signing key yields a FailureIgnoredKey so the caller can fall back to
// checksums.
func (v *DependencyVerifier) verifySignature(ctx context.Context, id entities.ModuleArtifactIdentifier, file, sigPath string, entry *entities.ArtifactVerification) (*entities.VerificationFailure, bool) {
	fingerprint, err := v.gateway.VerifyDetached(ctx, file, sigPath)
	if err != nil {
		return &entities.VerificationFailure{
			Kind:     entities.FailureSignature,
			Artifact: id,
			File:     file,
			Reason:   err.Error(),
		}, false
	}

	if v.metadata.IsKeyIgnored(fingerprint) {
		return &entities.VerificationFailure{
			Kind:     entities.FailureIgnoredKey,
			Artifact: id,
			File:     file,
			Reason:   "signed with ignored key " + fingerprint,
		}, false
	}

	if v.metadata.IsKeyTrusted(fingerprint, id.ComponentIdentifier().Group) {
		return nil, true
	}
	if entry != nil {
		for _, keyID := range entry.PGPKeys {
			if entities.KeyMatches(keyID, fingerprint) {
				return nil, true
			}
		}
	}

	return &entities.VerificationFailure{
		Kind:     entities.FailureUntrustedKey,
		Artifact: id,
		File:     file,
		Reason:   "signed with untrusted key " + fingerprint,
	}, false
}

func (v *DependencyVerifier) verifyChecksums(ctx context.Context, id entities.ModuleArtifactIdentifier, file string, entry *entities.ArtifactVerification) *entities.VerificationFailure {
	if entry == nil || len(entry.Checksums) == 0 {
		return &entities.VerificationFailure{
			Kind:     entities.FailureMissingChecksums,
			Artifact: id,
			File:     file,
			Reason:   "no checksum or trusted signature declared",
		}
	}

	for _, expected := range entry.Checksums {
		actual, err := v.gateway.Checksum(ctx, file, expected.Kind)
		if err != nil {
			return &entities.VerificationFailure{
				Kind:     entities.FailureChecksumMismatch,
				Artifact: id,
				File:     file,
				Reason:   fmt.Sprintf("cannot compute %s: %v", expected.Kind, err),
			}
		}
		if !strings.EqualFold(actual, expected.Value) {
			return &entities.VerificationFailure{
				Kind:     entities.FailureChecksumMismatch,
				Artifact: id,
				File:     file,
				Reason:   fmt.Sprintf("expected %s %s, got %s", expected.Kind, expected.Value, actual),
			}
		}
	}
	return nil
}

// ChecksumRecorder is a verification operation that records the checksum of
// every artifact instead of verifying it. It bootstraps a metadata file.
type ChecksumRecorder struct {
	metadata *entities.VerificationMetadata
	gateway  gateways.ChecksumGateway
	kinds    []entities.ChecksumKind
	logger   interfaces.Logger

	mu sync.Mutex
}

// NewChecksumRecorder records checksums of the given kinds into metadata.
// With no kinds, sha256 is recorded.
func NewChecksumRecorder(metadata *entities.VerificationMetadata, gateway gateways.ChecksumGateway, logger interfaces.Logger, kinds ...entities.ChecksumKind) *ChecksumRecorder {
	if len(kinds) == 0 {
		kinds = []entities.ChecksumKind{entities.ChecksumSHA256}
	}
	return &ChecksumRecorder{
		metadata: metadata,
		gateway:  gateway,
		kinds:    kinds,
		logger:   interfaces.OrNoOp(logger),
	}
}

// OnArtifact implements gateways.ArtifactVerificationOperation
func (r *ChecksumRecorder) OnArtifact(
	ctx context.Context,
	_ entities.ArtifactKind,
	id entities.ModuleArtifactIdentifier,
	file string,
	_ gateways.SignatureFileFactory,
	_, _ string,
) error {
	for _, kind := range r.kinds {
		sum, err := r.gateway.Checksum(ctx, file, kind)
		if err != nil {
			return fmt.Errorf("failed to record %s of %s: %w", kind, id.DisplayName(), err)
		}
		r.mu.Lock()
		r.metadata.AddChecksum(id.ComponentIdentifier(), id.FileName(), entities.Checksum{Kind: kind, Value: sum})
		r.mu.Unlock()
	}
	r.logger.Info("recorded checksums", interfaces.F("artifact", id.DisplayName()))
	return nil
}

// Metadata returns the metadata being recorded into
func (r *ChecksumRecorder) Metadata() *entities.VerificationMetadata {
	return r.metadata
}
