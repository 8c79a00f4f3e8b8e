package entities

import (
	"fmt"
	"strings"
)

// VerificationMode controls what happens when verification fails
type VerificationMode string

const (
	// ModeStrict fails the resolution of a failing artifact
	ModeStrict VerificationMode = "strict"
	// ModeLenient records failures but lets resolution succeed
	ModeLenient VerificationMode = "lenient"
	// ModeOff disables verification entirely
	ModeOff VerificationMode = "off"
)

// ParseVerificationMode parses a mode name, defaulting to strict
func ParseVerificationMode(s string) (VerificationMode, error) {
	switch VerificationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	case ModeOff:
		return ModeOff, nil
	default:
		return "", fmt.Errorf("unknown verification mode %q (expected strict, lenient or off)", s)
	}
}

// ChecksumKind names a checksum algorithm
type ChecksumKind string

const (
	// ChecksumSHA256 is SHA-256
	ChecksumSHA256 ChecksumKind = "sha256"
	// ChecksumSHA512 is SHA-512
	ChecksumSHA512 ChecksumKind = "sha512"
	// ChecksumBLAKE3 is BLAKE3-256
	ChecksumBLAKE3 ChecksumKind = "blake3"
)

// Checksum is an expected digest of an artifact
type Checksum struct {
	Kind  ChecksumKind
	Value string
}

// TrustedKey is an OpenPGP key trusted for signatures, optionally scoped to a group
type TrustedKey struct {
	ID    string
	Group string
}

// ArtifactVerification lists what vouches for one artifact file
type ArtifactVerification struct {
	File      string
	Checksums []Checksum
	PGPKeys   []string
}

// ComponentVerification groups the artifact entries of one module version
type ComponentVerification struct {
	Group     string
	Module    string
	Version   string
	Artifacts []ArtifactVerification
}

// VerificationMetadata is the dependency verification configuration
type VerificationMetadata struct {
	VerifyMetadata   bool
	VerifySignatures bool
	Mode             VerificationMode
	TrustedKeys      []TrustedKey
	IgnoredKeys      []string
	KeyringFiles     []string
	KeyringURLs      []string
	Components       []ComponentVerification
}

// FindArtifact looks up the entry for a file of a module version
func (m *VerificationMetadata) FindArtifact(id ModuleComponentIdentifier, fileName string) (*ArtifactVerification, bool) {
	for i := range m.Components {
		c := &m.Components[i]
		if c.Group != id.Group || c.Module != id.Module || c.Version != id.Version {
			continue
		}
		for j := range c.Artifacts {
			if c.Artifacts[j].File == fileName {
				return &c.Artifacts[j], true
			}
		}
	}
	return nil, false
}

// AddChecksum records a checksum, creating component and artifact entries as needed.
// Existing checksums of the same kind are replaced.
func (m *VerificationMetadata) AddChecksum(id ModuleComponentIdentifier, fileName string, sum Checksum) {
	var comp *ComponentVerification
	for i := range m.Components {
		c := &m.Components[i]
		if c.Group == id.Group && c.Module == id.Module && c.Version == id.Version {
			comp = c
			break
		}
	}
	if comp == nil {
		m.Components = append(m.Components, ComponentVerification{Group: id.Group, Module: id.Module, Version: id.Version})
		comp = &m.Components[len(m.Components)-1]
	}

	var art *ArtifactVerification
	for j := range comp.Artifacts {
		if comp.Artifacts[j].File == fileName {
			art = &comp.Artifacts[j]
			break
		}
	}
	if art == nil {
		comp.Artifacts = append(comp.Artifacts, ArtifactVerification{File: fileName})
		art = &comp.Artifacts[len(comp.Artifacts)-1]
	}

	for k := range art.Checksums {
		if art.Checksums[k].Kind == sum.Kind {
			art.Checksums[k].Value = sum.Value
			return
		}
	}
	art.Checksums = append(art.Checksums, sum)
}

// IsKeyTrusted reports whether a key fingerprint is trusted for artifacts of group.
// Key IDs match full fingerprints or their trailing 16 hex characters.
func (m *VerificationMetadata) IsKeyTrusted(fingerprint, group string) bool {
	for _, k := range m.TrustedKeys {
		if k.Group != "" && k.Group != group {
			continue
		}
		if KeyMatches(k.ID, fingerprint) {
			return true
		}
	}
	return false
}

// IsKeyIgnored reports whether a key fingerprint is explicitly ignored
func (m *VerificationMetadata) IsKeyIgnored(fingerprint string) bool {
	for _, id := range m.IgnoredKeys {
		if KeyMatches(id, fingerprint) {
			return true
		}
	}
	return false
}

// KeyMatches compares a configured key ID with a fingerprint, case-insensitively
func KeyMatches(keyID, fingerprint string) bool {
	keyID = strings.ToUpper(strings.TrimSpace(keyID))
	keyID = strings.TrimPrefix(keyID, "0X")
	fingerprint = strings.ToUpper(fingerprint)
	if keyID == "" {
		return false
	}
	if keyID == fingerprint {
		return true
	}
	return len(keyID) == 16 && len(fingerprint) >= 16 && fingerprint[len(fingerprint)-16:] == keyID
}
