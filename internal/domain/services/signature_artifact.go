package services

import (
	"strings"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

const signatureExtension = "asc"

// SignatureArtifactID returns the identifier of the detached signature for the
// artifact called name in component
func SignatureArtifactID(component entities.ModuleComponentIdentifier, name entities.ArtifactName) entities.DefaultModuleArtifactID {
	ext := name.Extension
	if ext == "" {
		ext = name.Type
	}
	return entities.DefaultModuleArtifactID{
		Component: component,
		Name: entities.ArtifactName{
			Name:       name.Name,
			Type:       signatureExtension,
			Extension:  ext + "." + signatureExtension,
			Classifier: name.Classifier,
		},
	}
}

// SignatureArtifactMetadata describes a signature artifact to resolve
type SignatureArtifactMetadata struct {
	id entities.ModuleArtifactIdentifier
}

// NewSignatureArtifactMetadata wraps a signature artifact identifier
func NewSignatureArtifactMetadata(id entities.ModuleArtifactIdentifier) SignatureArtifactMetadata {
	return SignatureArtifactMetadata{id: id}
}

// ID returns the signature artifact identifier
func (m SignatureArtifactMetadata) ID() entities.ModuleArtifactIdentifier {
	return m.id
}

// Name returns the structured name of the signature artifact.
//
// Identifiers without a structured name are parsed back from their file name:
// every "-<version>" is removed, then the trailing ".asc", and the remainder is
// split at its last dot. This mapping is lossy for file names that contain the
// version elsewhere or have multi-part extensions; the result is stable but may
// not round-trip.
func (m SignatureArtifactMetadata) Name() entities.ArtifactName {
	if structured, ok := m.id.(entities.DefaultModuleArtifactID); ok {
		return structured.Name
	}
	component := m.id.ComponentIdentifier()
	fileName := strings.ReplaceAll(m.id.FileName(), "-"+component.Version, "")
	fileName = nameWithoutExtension(fileName)
	base := entities.ArtifactNameForFileName(fileName, "")
	return entities.ArtifactName{
		Name:      base.Name,
		Type:      signatureExtension,
		Extension: base.Extension + "." + signatureExtension,
	}
}

// ArtifactIdentifier returns the structured identifier for Name
func (m SignatureArtifactMetadata) ArtifactIdentifier() entities.DefaultModuleArtifactID {
	return entities.DefaultModuleArtifactID{Component: m.id.ComponentIdentifier(), Name: m.Name()}
}

// Metadata returns the artifact metadata used to resolve the signature
func (m SignatureArtifactMetadata) Metadata() entities.ComponentArtifactMetadata {
	return entities.ComponentArtifactMetadata{ID: m.id, Name: m.Name()}
}

func nameWithoutExtension(fileName string) string {
	return entities.ArtifactNameForFileName(fileName, "").Name
}
