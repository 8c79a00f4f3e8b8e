// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// ModuleComponentRepositoryAccess resolves module metadata and artifacts.
// Every call populates the given result sink; an untouched sink means the
// access has no answer (for example a cache miss).
type ModuleComponentRepositoryAccess interface {
	// ListModuleVersions lists the versions available for a module
	ListModuleVersions(ctx context.Context, dependency entities.ModuleDependencyMetadata, result *entities.ModuleVersionListingResult)

	// ResolveComponentMetaData resolves the metadata of a module version
	ResolveComponentMetaData(ctx context.Context, id entities.ModuleComponentIdentifier, override entities.ComponentOverrideMetadata, result *entities.ComponentMetaDataResolveResult)

	// ResolveArtifacts lists the main artifacts of a resolved component
	ResolveArtifacts(ctx context.Context, component *entities.ComponentMetadata, result *entities.ComponentArtifactsResult)

	// ResolveArtifactsWithType lists auxiliary artifacts of a resolved component
	ResolveArtifactsWithType(ctx context.Context, component *entities.ComponentMetadata, artifactType entities.ArtifactType, result *entities.ArtifactSetResult)

	// ResolveArtifact resolves one artifact to a local file
	ResolveArtifact(ctx context.Context, artifact entities.ComponentArtifactMetadata, sources *entities.ModuleSources, result *entities.ArtifactResolveResult)

	// EstimateMetadataFetchingCost estimates the cost of resolving metadata for id
	EstimateMetadataFetchingCost(id entities.ModuleComponentIdentifier) entities.MetadataFetchingCost
}

// ModuleComponentRepository is a repository with a cache-only local access and
// a network-backed remote access
type ModuleComponentRepository interface {
	ID() string
	Name() string
	LocalAccess() ModuleComponentRepositoryAccess
	RemoteAccess() ModuleComponentRepositoryAccess
}
