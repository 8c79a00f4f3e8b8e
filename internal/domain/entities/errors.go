package entities

import (
	"errors"
	"fmt"
)

// ErrArtifactNotFound is matched by every ArtifactNotFoundError
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactNotFoundError reports that a repository does not contain an artifact
type ArtifactNotFoundError struct {
	ID        ComponentArtifactIdentifier
	Locations []string
}

func (e *ArtifactNotFoundError) Error() string {
	if len(e.Locations) == 0 {
		return fmt.Sprintf("could not find %s", e.ID.DisplayName())
	}
	return fmt.Sprintf("could not find %s (searched %v)", e.ID.DisplayName(), e.Locations)
}

// Is makes errors.Is(err, ErrArtifactNotFound) succeed
func (e *ArtifactNotFoundError) Is(target error) bool {
	return target == ErrArtifactNotFound
}

// FailureKind classifies a verification failure
type FailureKind string

const (
	// FailureChecksumMismatch means a declared checksum did not match
	FailureChecksumMismatch FailureKind = "checksum-mismatch"
	// FailureMissingChecksums means no checksum or signature could vouch for the artifact
	FailureMissingChecksums FailureKind = "missing-checksums"
	// FailureSignature means the signature did not verify
	FailureSignature FailureKind = "signature-failed"
	// FailureUntrustedKey means the signature verified with a key nobody trusts
	FailureUntrustedKey FailureKind = "untrusted-key"
	// FailureIgnoredKey means the signing key is explicitly ignored
	FailureIgnoredKey FailureKind = "ignored-key"
)

// VerificationFailure describes why an artifact failed verification
type VerificationFailure struct {
	Kind       FailureKind
	Artifact   ComponentArtifactIdentifier
	File       string
	Repository string
	Reason     string
}

func (f *VerificationFailure) Error() string {
	msg := fmt.Sprintf("dependency verification failed for %s from repository %s: %s", f.Artifact.DisplayName(), f.Repository, f.Kind)
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	return msg
}
