package services

import (
	"context"
	"os"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/gateways"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/repositories"
)

// DependencyVerifyingRepository decorates a repository so that every external
// artifact it resolves is handed to a verification operation
type DependencyVerifyingRepository struct {
	delegate  repositories.ModuleComponentRepository
	operation gateways.ArtifactVerificationOperation
	logger    interfaces.Logger

	local  *verifyingAccess
	remote *verifyingAccess
}

// NewDependencyVerifyingRepository wraps delegate. When verifySignatures is false
// no signature file is ever looked up.
func NewDependencyVerifyingRepository(
	delegate repositories.ModuleComponentRepository,
	operation gateways.ArtifactVerificationOperation,
	verifySignatures bool,
	logger interfaces.Logger,
) *DependencyVerifyingRepository {
	r := &DependencyVerifyingRepository{
		delegate:  delegate,
		operation: operation,
		logger:    interfaces.OrNoOp(logger),
	}
	r.local = &verifyingAccess{repo: r, delegate: delegate.LocalAccess(), verifySignatures: verifySignatures}
	r.remote = &verifyingAccess{repo: r, delegate: delegate.RemoteAccess(), verifySignatures: verifySignatures}
	return r
}

// ID returns the delegate's ID
func (r *DependencyVerifyingRepository) ID() string { return r.delegate.ID() }

// Name returns the delegate's name
func (r *DependencyVerifyingRepository) Name() string { return r.delegate.Name() }

// LocalAccess returns the verifying local access
func (r *DependencyVerifyingRepository) LocalAccess() repositories.ModuleComponentRepositoryAccess {
	return r.local
}

// RemoteAccess returns the verifying remote access
func (r *DependencyVerifyingRepository) RemoteAccess() repositories.ModuleComponentRepositoryAccess {
	return r.remote
}

// metadataOutcome tells ResolveComponentMetaData whether to forward resolution
// to the real result
type metadataOutcome int

const (
	metadataForward metadataOutcome = iota
	metadataIgnore
)

type verifyingAccess struct {
	repo             *DependencyVerifyingRepository
	delegate         repositories.ModuleComponentRepositoryAccess
	verifySignatures bool
}

func (a *verifyingAccess) ListModuleVersions(ctx context.Context, dependency entities.ModuleDependencyMetadata, result *entities.ModuleVersionListingResult) {
	a.delegate.ListModuleVersions(ctx, dependency, result)
}

// ResolveComponentMetaData resolves into a scratch result first because the
// cached descriptor may have been removed from disk since it was recorded. In
// that case nothing is forwarded, so the caller falls back to downloading (and
// verifying) the descriptor again.
func (a *verifyingAccess) ResolveComponentMetaData(ctx context.Context, id entities.ModuleComponentIdentifier, override entities.ComponentOverrideMetadata, result *entities.ComponentMetaDataResolveResult) {
	scratch := &entities.ComponentMetaDataResolveResult{}
	a.delegate.ResolveComponentMetaData(ctx, id, override, scratch)

	outcome, err := a.verifyMetadata(ctx, override, scratch)
	if err != nil {
		result.Failed(err)
		return
	}
	if outcome == metadataIgnore {
		a.repo.logger.Debug("cached descriptor missing, deferring metadata resolution",
			interfaces.F("component", id.String()),
			interfaces.F("repository", a.repo.Name()))
		return
	}
	a.delegate.ResolveComponentMetaData(ctx, id, override, result)
}

func (a *verifyingAccess) verifyMetadata(ctx context.Context, override entities.ComponentOverrideMetadata, scratch *entities.ComponentMetaDataResolveResult) (metadataOutcome, error) {
	if !scratch.IsUsable() {
		return metadataForward, nil
	}
	sources := scratch.MetaData().Sources
	fileSource, ok := entities.SourceOf[entities.MetadataFileSource](sources)
	if !ok || fileSource.ArtifactID == nil || !entities.IsExternalArtifact(fileSource.ArtifactID) {
		return metadataForward, nil
	}
	hashSource, ok := entities.SourceOf[entities.DescriptorHashSource](sources)
	if !ok {
		return metadataForward, nil
	}
	if override.Changing || hashSource.Changing {
		return metadataForward, nil
	}
	if fileSource.File == "" || !fileExists(fileSource.File) {
		return metadataIgnore, nil
	}

	artifact := fileSource.ArtifactID
	signatureFile := func(ctx context.Context) (string, bool) {
		return a.fetchSignatureFile(ctx, sources, metadataSignatureID(artifact))
	}
	err := a.repo.operation.OnArtifact(ctx, entities.ArtifactKindMetadata, artifact, fileSource.File, signatureFile, a.repo.Name(), a.repo.ID())
	return metadataForward, err
}

func (a *verifyingAccess) ResolveArtifacts(ctx context.Context, component *entities.ComponentMetadata, result *entities.ComponentArtifactsResult) {
	a.delegate.ResolveArtifacts(ctx, component, result)
}

func (a *verifyingAccess) ResolveArtifactsWithType(ctx context.Context, component *entities.ComponentMetadata, artifactType entities.ArtifactType, result *entities.ArtifactSetResult) {
	a.delegate.ResolveArtifactsWithType(ctx, component, artifactType, result)
}

func (a *verifyingAccess) ResolveArtifact(ctx context.Context, artifact entities.ComponentArtifactMetadata, sources *entities.ModuleSources, result *entities.ArtifactResolveResult) {
	a.delegate.ResolveArtifact(ctx, artifact, sources, result)
	if !result.IsSuccessful() {
		return
	}
	id, ok := artifact.ID.(entities.ModuleArtifactIdentifier)
	if !ok || !isNotChanging(sources) {
		return
	}

	kind := entities.ArtifactKindRegular
	if artifact.Descriptor {
		kind = entities.ArtifactKindMetadata
	}
	signatureFile := func(ctx context.Context) (string, bool) {
		return a.fetchSignatureFile(ctx, sources, SignatureArtifactID(id.ComponentIdentifier(), artifact.Name))
	}
	if err := a.repo.operation.OnArtifact(ctx, kind, id, result.File(), signatureFile, a.repo.Name(), a.repo.ID()); err != nil {
		result.Failed(err)
	}
}

func (a *verifyingAccess) EstimateMetadataFetchingCost(id entities.ModuleComponentIdentifier) entities.MetadataFetchingCost {
	return a.delegate.EstimateMetadataFetchingCost(id)
}

// resolveSignatureArtifact resolves a signature without verifying it; signatures
// are checked together with the artifact they belong to
func (a *verifyingAccess) resolveSignatureArtifact(ctx context.Context, signature SignatureArtifactMetadata, sources *entities.ModuleSources, result *entities.ArtifactResolveResult) {
	a.delegate.ResolveArtifact(ctx, signature.Metadata(), sources, result)
}

// fetchSignatureFile looks the signature up in the cache and only goes remote
// when the cache has no answer at all. A cached failure is final.
func (a *verifyingAccess) fetchSignatureFile(ctx context.Context, sources *entities.ModuleSources, signatureID entities.ModuleArtifactIdentifier) (string, bool) {
	if !a.verifySignatures {
		return "", false
	}
	signature := NewSignatureArtifactMetadata(signatureID)

	result := &entities.ArtifactResolveResult{}
	a.repo.local.resolveSignatureArtifact(ctx, signature, sources, result)
	if result.HasResult() {
		if result.IsSuccessful() {
			return result.File(), true
		}
		return "", false
	}
	a.repo.remote.resolveSignatureArtifact(ctx, signature, sources, result)
	if result.IsSuccessful() {
		return result.File(), true
	}
	a.repo.logger.Debug("no signature available",
		interfaces.F("artifact", signatureID.DisplayName()),
		interfaces.F("repository", a.repo.Name()))
	return "", false
}

func metadataSignatureID(artifact entities.ModuleArtifactIdentifier) entities.ModuleArtifactIdentifier {
	if structured, ok := artifact.(entities.DefaultModuleArtifactID); ok {
		return SignatureArtifactID(structured.Component, structured.Name)
	}
	return entities.ModuleFileArtifactID{
		Component: artifact.ComponentIdentifier(),
		File:      artifact.FileName() + "." + signatureExtension,
	}
}

func isNotChanging(sources *entities.ModuleSources) bool {
	hash, ok := entities.SourceOf[entities.DescriptorHashSource](sources)
	return !ok || !hash.Changing
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
