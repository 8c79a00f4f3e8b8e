package entities

// ComponentArtifactMetadata describes an artifact to resolve
type ComponentArtifactMetadata struct {
	ID   ComponentArtifactIdentifier
	Name ArtifactName
	// Descriptor is set for the module descriptor (pom) itself
	Descriptor bool
}

// ComponentMetadata is the resolved metadata of a module version
type ComponentMetadata struct {
	ID        ModuleComponentIdentifier
	Changing  bool
	Sources   *ModuleSources
	Artifacts []ComponentArtifactMetadata
}

// ComponentOverrideMetadata carries request-level overrides for metadata resolution
type ComponentOverrideMetadata struct {
	Changing bool
}

// ModuleDependencyMetadata is a request for the versions of a module
type ModuleDependencyMetadata struct {
	Group    string
	Module   string
	Selector string
}

// ArtifactType selects a family of auxiliary artifacts
type ArtifactType int

const (
	// ArtifactTypeSources selects source archives
	ArtifactTypeSources ArtifactType = iota
	// ArtifactTypeJavadoc selects documentation archives
	ArtifactTypeJavadoc
	// ArtifactTypeMavenPom selects the module descriptor
	ArtifactTypeMavenPom
)

func (t ArtifactType) String() string {
	switch t {
	case ArtifactTypeSources:
		return "sources"
	case ArtifactTypeJavadoc:
		return "javadoc"
	case ArtifactTypeMavenPom:
		return "pom"
	default:
		return "unknown"
	}
}

// MetadataFetchingCost estimates how expensive resolving metadata will be
type MetadataFetchingCost int

const (
	// CostFast means metadata is available in memory or on disk
	CostFast MetadataFetchingCost = iota
	// CostCheap means metadata can be fetched with little effort
	CostCheap
	// CostExpensive means a remote round trip is required
	CostExpensive
)

func (c MetadataFetchingCost) String() string {
	switch c {
	case CostFast:
		return "fast"
	case CostCheap:
		return "cheap"
	default:
		return "expensive"
	}
}

// ArtifactKind distinguishes descriptors from regular artifacts during verification
type ArtifactKind int

const (
	// ArtifactKindRegular is any non-descriptor artifact
	ArtifactKindRegular ArtifactKind = iota
	// ArtifactKindMetadata is a module descriptor
	ArtifactKindMetadata
)

func (k ArtifactKind) String() string {
	if k == ArtifactKindMetadata {
		return "METADATA"
	}
	return "REGULAR"
}
