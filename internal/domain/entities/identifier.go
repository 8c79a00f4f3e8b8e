// Package entities defines core domain models and data structures.
package entities

import (
	"fmt"
	"path"
	"strings"
)

// ModuleComponentIdentifier identifies a module version in a remote repository
type ModuleComponentIdentifier struct {
	Group   string
	Module  string
	Version string
}

// String returns the group:module:version form
func (id ModuleComponentIdentifier) String() string {
	return id.Group + ":" + id.Module + ":" + id.Version
}

// ParseModuleComponentIdentifier parses "group:module:version" coordinates
func ParseModuleComponentIdentifier(coordinates string) (ModuleComponentIdentifier, error) {
	parts := strings.Split(coordinates, ":")
	if len(parts) != 3 {
		return ModuleComponentIdentifier{}, fmt.Errorf("invalid module coordinates %q: expected group:module:version", coordinates)
	}
	for _, p := range parts {
		if p == "" {
			return ModuleComponentIdentifier{}, fmt.Errorf("invalid module coordinates %q: empty component", coordinates)
		}
	}
	return ModuleComponentIdentifier{Group: parts[0], Module: parts[1], Version: parts[2]}, nil
}

// ArtifactName is the structured name of an artifact within a component.
// Empty strings mean the field is absent.
type ArtifactName struct {
	Name       string
	Type       string
	Extension  string
	Classifier string
}

// ArtifactNameForFileName splits a file name at its final dot into name and extension.
// A file name without a dot yields an empty extension.
func ArtifactNameForFileName(fileName, classifier string) ArtifactName {
	base := path.Base(fileName)
	name, ext := base, ""
	if i := strings.LastIndex(base, "."); i >= 0 {
		name, ext = base[:i], base[i+1:]
	}
	return ArtifactName{Name: name, Type: ext, Extension: ext, Classifier: classifier}
}

func (n ArtifactName) String() string {
	var b strings.Builder
	b.WriteString(n.Name)
	if n.Classifier != "" {
		b.WriteString("-" + n.Classifier)
	}
	if ext := n.extensionOrType(); ext != "" {
		b.WriteString("." + ext)
	}
	return b.String()
}

func (n ArtifactName) extensionOrType() string {
	if n.Extension != "" {
		return n.Extension
	}
	return n.Type
}

// ComponentArtifactIdentifier identifies a single artifact of any component
type ComponentArtifactIdentifier interface {
	DisplayName() string
	FileName() string
}

// ModuleArtifactIdentifier identifies an artifact addressed by remote repository
// coordinates. Only these artifacts are subject to dependency verification.
type ModuleArtifactIdentifier interface {
	ComponentArtifactIdentifier
	ComponentIdentifier() ModuleComponentIdentifier
}

// DefaultModuleArtifactID is a module artifact identifier carrying a structured name
type DefaultModuleArtifactID struct {
	Component ModuleComponentIdentifier
	Name      ArtifactName
}

// ComponentIdentifier returns the owning module version
func (id DefaultModuleArtifactID) ComponentIdentifier() ModuleComponentIdentifier {
	return id.Component
}

// FileName returns name-version[-classifier][.extension]
func (id DefaultModuleArtifactID) FileName() string {
	var b strings.Builder
	b.WriteString(id.Name.Name)
	b.WriteString("-" + id.Component.Version)
	if id.Name.Classifier != "" {
		b.WriteString("-" + id.Name.Classifier)
	}
	if ext := id.Name.extensionOrType(); ext != "" {
		b.WriteString("." + ext)
	}
	return b.String()
}

// DisplayName returns "file (group:module:version)"
func (id DefaultModuleArtifactID) DisplayName() string {
	return id.FileName() + " (" + id.Component.String() + ")"
}

// ModuleFileArtifactID is a module artifact identifier known only by its file name
type ModuleFileArtifactID struct {
	Component ModuleComponentIdentifier
	File      string
}

// ComponentIdentifier returns the owning module version
func (id ModuleFileArtifactID) ComponentIdentifier() ModuleComponentIdentifier {
	return id.Component
}

// FileName returns the file name as given
func (id ModuleFileArtifactID) FileName() string {
	return id.File
}

// DisplayName returns "file (group:module:version)"
func (id ModuleFileArtifactID) DisplayName() string {
	return id.File + " (" + id.Component.String() + ")"
}

// ProjectArtifactID identifies an artifact produced locally by a project
type ProjectArtifactID struct {
	Project string
	File    string
}

// FileName returns the file name of the project output
func (id ProjectArtifactID) FileName() string {
	return id.File
}

// DisplayName returns "file (project :path)"
func (id ProjectArtifactID) DisplayName() string {
	return id.File + " (project " + id.Project + ")"
}

// IsExternalArtifact reports whether id denotes a remote-repository artifact
func IsExternalArtifact(id ComponentArtifactIdentifier) bool {
	_, ok := id.(ModuleArtifactIdentifier)
	return ok
}
