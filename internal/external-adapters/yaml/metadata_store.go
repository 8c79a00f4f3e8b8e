package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// MetadataStore loads and saves a verification metadata file
type MetadataStore struct {
	path   string
	parser *MetadataParser
}

// NewMetadataStore creates a store for the metadata file at path
func NewMetadataStore(path string) *MetadataStore {
	return &MetadataStore{
		path:   path,
		parser: NewMetadataParser(),
	}
}

// Path returns the metadata file location
func (s *MetadataStore) Path() string {
	return s.path
}

// Load reads the metadata file
func (s *MetadataStore) Load() (*entities.VerificationMetadata, error) {
	return s.parser.ParseFile(s.path)
}

// LoadOrDefault reads the metadata file, returning a strict, empty
// configuration when the file does not exist yet
func (s *MetadataStore) LoadOrDefault() (*entities.VerificationMetadata, error) {
	md, err := s.Load()
	if errors.Is(err, os.ErrNotExist) {
		return &entities.VerificationMetadata{VerifyMetadata: true, Mode: entities.ModeStrict}, nil
	}
	return md, err
}

// Save writes the metadata with components and artifacts in a stable order
func (s *MetadataStore) Save(md *entities.VerificationMetadata) error {
	data, err := Marshal(md, filepath.Dir(s.path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Marshal encodes metadata as YAML. Keyring paths inside baseDir are
// written relative to it.
func Marshal(md *entities.VerificationMetadata, baseDir string) ([]byte, error) {
	raw := yamlMetadata{
		Configuration: yamlConfiguration{
			VerifyMetadata:   md.VerifyMetadata,
			VerifySignatures: md.VerifySignatures,
			Mode:             string(md.Mode),
			IgnoredKeys:      md.IgnoredKeys,
			KeyringURLs:      md.KeyringURLs,
		},
	}

	for _, keyring := range md.KeyringFiles {
		if rel, err := filepath.Rel(baseDir, keyring); err == nil && !strings.HasPrefix(rel, "..") {
			keyring = rel
		}
		raw.Configuration.Keyrings = append(raw.Configuration.Keyrings, filepath.ToSlash(keyring))
	}
	for _, k := range md.TrustedKeys {
		raw.Configuration.TrustedKeys = append(raw.Configuration.TrustedKeys, yamlTrustedKey{ID: k.ID, Group: k.Group})
	}

	components := make([]entities.ComponentVerification, len(md.Components))
	copy(components, md.Components)
	sort.SliceStable(components, func(i, j int) bool {
		a, b := components[i], components[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.Version < b.Version
	})

	for _, c := range components {
		yc := yamlComponent{Group: c.Group, Name: c.Module, Version: c.Version}
		for _, a := range c.Artifacts {
			ya := yamlArtifact{Name: a.File, PGPKeys: a.PGPKeys}
			for _, sum := range a.Checksums {
				switch sum.Kind {
				case entities.ChecksumSHA256:
					ya.SHA256 = sum.Value
				case entities.ChecksumSHA512:
					ya.SHA512 = sum.Value
				case entities.ChecksumBLAKE3:
					ya.BLAKE3 = sum.Value
				}
			}
			yc.Artifacts = append(yc.Artifacts, ya)
		}
		sort.SliceStable(yc.Artifacts, func(i, j int) bool {
			return yc.Artifacts[i].Name < yc.Artifacts[j].Name
		})
		raw.Components = append(raw.Components, yc)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&raw); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}
