// Package yaml reads and writes dependency verification metadata files.
package yaml

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// DefaultMetadataFile is the conventional name of the verification metadata file
const DefaultMetadataFile = "verification-metadata.yml"

// yamlMetadata represents the raw YAML structure
type yamlMetadata struct {
	Configuration yamlConfiguration `yaml:"configuration"`
	Components    []yamlComponent   `yaml:"components,omitempty"`
}

type yamlConfiguration struct {
	VerifyMetadata   bool             `yaml:"verify_metadata"`
	VerifySignatures bool             `yaml:"verify_signatures"`
	Mode             string           `yaml:"mode,omitempty"`
	Keyrings         []string         `yaml:"keyrings,omitempty"`
	KeyringURLs      []string         `yaml:"keyring_urls,omitempty"`
	TrustedKeys      []yamlTrustedKey `yaml:"trusted_keys,omitempty"`
	IgnoredKeys      []string         `yaml:"ignored_keys,omitempty"`
}

type yamlTrustedKey struct {
	ID    string `yaml:"id"`
	Group string `yaml:"group,omitempty"`
}

type yamlComponent struct {
	Group     string         `yaml:"group"`
	Name      string         `yaml:"name"`
	Version   string         `yaml:"version"`
	Artifacts []yamlArtifact `yaml:"artifacts"`
}

type yamlArtifact struct {
	Name    string   `yaml:"name"`
	SHA256  string   `yaml:"sha256,omitempty"`
	SHA512  string   `yaml:"sha512,omitempty"`
	BLAKE3  string   `yaml:"blake3,omitempty"`
	PGPKeys []string `yaml:"pgp,omitempty"`
}

// digestLengths are the hex lengths of each checksum kind
var digestLengths = map[entities.ChecksumKind]int{
	entities.ChecksumSHA256: 64,
	entities.ChecksumSHA512: 128,
	entities.ChecksumBLAKE3: 64,
}

// MetadataParser parses verification metadata files
type MetadataParser struct{}

// NewMetadataParser creates a new YAML parser
func NewMetadataParser() *MetadataParser {
	return &MetadataParser{}
}

// ParseFile parses a metadata file. Relative keyring paths are resolved
// against the directory of the file.
func (p *MetadataParser) ParseFile(filePath string) (*entities.VerificationMetadata, error) {
	//nolint:gosec // G304: filePath is the user-provided metadata file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	md, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	dir := filepath.Dir(filePath)
	for i, keyring := range md.KeyringFiles {
		if !filepath.IsAbs(keyring) {
			md.KeyringFiles[i] = filepath.Join(dir, keyring)
		}
	}
	return md, nil
}

// Parse parses YAML bytes into verification metadata
func (p *MetadataParser) Parse(data []byte) (*entities.VerificationMetadata, error) {
	var raw yamlMetadata
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	mode, err := entities.ParseVerificationMode(raw.Configuration.Mode)
	if err != nil {
		return nil, err
	}

	md := &entities.VerificationMetadata{
		VerifyMetadata:   raw.Configuration.VerifyMetadata,
		VerifySignatures: raw.Configuration.VerifySignatures,
		Mode:             mode,
		IgnoredKeys:      raw.Configuration.IgnoredKeys,
		KeyringFiles:     raw.Configuration.Keyrings,
		KeyringURLs:      raw.Configuration.KeyringURLs,
	}

	for _, u := range raw.Configuration.KeyringURLs {
		if err := validateKeyringURL(u); err != nil {
			return nil, err
		}
	}

	for _, k := range raw.Configuration.TrustedKeys {
		if err := validateKeyID(k.ID); err != nil {
			return nil, fmt.Errorf("trusted key: %w", err)
		}
		md.TrustedKeys = append(md.TrustedKeys, entities.TrustedKey{ID: k.ID, Group: k.Group})
	}
	for _, id := range raw.Configuration.IgnoredKeys {
		if err := validateKeyID(id); err != nil {
			return nil, fmt.Errorf("ignored key: %w", err)
		}
	}

	for _, c := range raw.Components {
		component, err := convertComponent(c)
		if err != nil {
			return nil, err
		}
		md.Components = append(md.Components, component)
	}

	return md, nil
}

func convertComponent(yc yamlComponent) (entities.ComponentVerification, error) {
	if yc.Group == "" || yc.Name == "" || yc.Version == "" {
		return entities.ComponentVerification{}, fmt.Errorf("component must have group, name and version (got %q:%q:%q)", yc.Group, yc.Name, yc.Version)
	}
	coordinates := yc.Group + ":" + yc.Name + ":" + yc.Version

	component := entities.ComponentVerification{Group: yc.Group, Module: yc.Name, Version: yc.Version}
	for _, ya := range yc.Artifacts {
		if ya.Name == "" {
			return entities.ComponentVerification{}, fmt.Errorf("component %s: artifact must have a name", coordinates)
		}

		artifact := entities.ArtifactVerification{File: ya.Name, PGPKeys: ya.PGPKeys}
		for _, sum := range []entities.Checksum{
			{Kind: entities.ChecksumSHA256, Value: ya.SHA256},
			{Kind: entities.ChecksumSHA512, Value: ya.SHA512},
			{Kind: entities.ChecksumBLAKE3, Value: ya.BLAKE3},
		} {
			if sum.Value == "" {
				continue
			}
			if err := validateDigest(sum); err != nil {
				return entities.ComponentVerification{}, fmt.Errorf("component %s, artifact %s: %w", coordinates, ya.Name, err)
			}
			artifact.Checksums = append(artifact.Checksums, sum)
		}
		for _, key := range ya.PGPKeys {
			if err := validateKeyID(key); err != nil {
				return entities.ComponentVerification{}, fmt.Errorf("component %s, artifact %s: %w", coordinates, ya.Name, err)
			}
		}

		component.Artifacts = append(component.Artifacts, artifact)
	}
	return component, nil
}

func validateDigest(sum entities.Checksum) error {
	if len(sum.Value) != digestLengths[sum.Kind] {
		return fmt.Errorf("%s checksum must be %d hex characters, got %d", sum.Kind, digestLengths[sum.Kind], len(sum.Value))
	}
	if _, err := hex.DecodeString(sum.Value); err != nil {
		return fmt.Errorf("%s checksum is not hex: %w", sum.Kind, err)
	}
	return nil
}

// validateKeyringURL accepts absolute http and https URLs
func validateKeyringURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("keyring URL %q: %w", raw, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("keyring URL %q must be an absolute http or https URL", raw)
	}
	return nil
}

// validateKeyID accepts long key IDs (16 hex) and v4/v5 fingerprints (40/64 hex)
func validateKeyID(id string) error {
	trimmed := id
	if len(trimmed) > 2 && (trimmed[:2] == "0x" || trimmed[:2] == "0X") {
		trimmed = trimmed[2:]
	}
	switch len(trimmed) {
	case 16, 40, 64:
	default:
		return fmt.Errorf("key %q must be a 16 character key ID or a full fingerprint", id)
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return fmt.Errorf("key %q is not hex", id)
	}
	return nil
}
