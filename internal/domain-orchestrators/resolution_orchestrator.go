// Package orchestrators coordinates domain services for complete use cases.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/repositories"
)

// ErrComponentNotFound is returned when no access knows the requested component
var ErrComponentNotFound = errors.New("component not found")

// ResolutionOrchestrator resolves components through the local access of a
// repository first and falls back to its remote access
type ResolutionOrchestrator struct {
	repository repositories.ModuleComponentRepository
	logger     interfaces.Logger
}

// NewResolutionOrchestrator creates an orchestrator over repository, which is
// normally wrapped in a verifying decorator
func NewResolutionOrchestrator(repository repositories.ModuleComponentRepository, logger interfaces.Logger) *ResolutionOrchestrator {
	return &ResolutionOrchestrator{
		repository: repository,
		logger:     interfaces.OrNoOp(logger),
	}
}

// ResolveOptions selects auxiliary artifacts to resolve alongside the main ones
type ResolveOptions struct {
	Sources bool
	Javadoc bool
}

// ResolvedArtifact is an artifact resolved to a local file
type ResolvedArtifact struct {
	ID   entities.ComponentArtifactIdentifier
	File string
}

// ResolutionResult contains the outcome of resolving one component
type ResolutionResult struct {
	Component *entities.ComponentMetadata
	Files     []ResolvedArtifact
	Failures  []error
	Duration  time.Duration
}

// Err aggregates artifact failures, nil when every artifact resolved
func (r *ResolutionResult) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// ResolveComponent resolves the metadata and artifacts of id. Metadata
// failures abort resolution; artifact failures are collected in the result.
func (o *ResolutionOrchestrator) ResolveComponent(
	ctx context.Context,
	id entities.ModuleComponentIdentifier,
	override entities.ComponentOverrideMetadata,
	opts ResolveOptions,
) (*ResolutionResult, error) {
	startTime := time.Now()
	local := o.repository.LocalAccess()
	remote := o.repository.RemoteAccess()

	// Step 1: Component metadata
	var md entities.ComponentMetaDataResolveResult
	local.ResolveComponentMetaData(ctx, id, override, &md)
	if !md.HasResult() {
		o.logger.Debug("metadata not cached",
			interfaces.F("component", id.String()),
			interfaces.F("repository", o.repository.Name()))
		remote.ResolveComponentMetaData(ctx, id, override, &md)
	}

	switch md.State() {
	case entities.MetaDataResolved:
	case entities.MetaDataFailed:
		return nil, fmt.Errorf("failed to resolve %s: %w", id, md.Failure())
	default:
		return nil, fmt.Errorf("%s in repository %s: %w", id, o.repository.Name(), ErrComponentNotFound)
	}
	if !md.IsUsable() {
		return nil, fmt.Errorf("%s in repository %s: %w", id, o.repository.Name(), ErrComponentNotFound)
	}

	component := md.MetaData()
	result := &ResolutionResult{Component: component}

	// Step 2: Artifact lists
	var artifacts entities.ComponentArtifactsResult
	local.ResolveArtifacts(ctx, component, &artifacts)
	if !artifacts.HasResult() {
		remote.ResolveArtifacts(ctx, component, &artifacts)
	}
	if artifacts.Failure() != nil {
		return nil, fmt.Errorf("failed to list artifacts of %s: %w", id, artifacts.Failure())
	}

	// Step 3: Artifact files
	for _, artifact := range artifacts.Artifacts() {
		if err := o.resolveArtifact(ctx, artifact, component.Sources, result); err != nil {
			result.Failures = append(result.Failures, err)
		}
	}

	// Step 4: Optional auxiliary artifacts; absent ones are skipped
	var types []entities.ArtifactType
	if opts.Sources {
		types = append(types, entities.ArtifactTypeSources)
	}
	if opts.Javadoc {
		types = append(types, entities.ArtifactTypeJavadoc)
	}
	for _, artifactType := range types {
		var set entities.ArtifactSetResult
		local.ResolveArtifactsWithType(ctx, component, artifactType, &set)
		if !set.HasResult() {
			remote.ResolveArtifactsWithType(ctx, component, artifactType, &set)
		}
		for _, artifact := range set.Artifacts() {
			err := o.resolveArtifact(ctx, artifact, component.Sources, result)
			switch {
			case err == nil:
			case errors.Is(err, entities.ErrArtifactNotFound):
				o.logger.Debug("optional artifact not found",
					interfaces.F("artifact", artifact.ID.DisplayName()))
			default:
				result.Failures = append(result.Failures, err)
			}
		}
	}

	result.Duration = time.Since(startTime)
	o.logger.Info("component resolved",
		interfaces.F("component", id.String()),
		interfaces.F("files", len(result.Files)),
		interfaces.F("failures", len(result.Failures)),
		interfaces.F("duration", result.Duration))
	return result, nil
}

func (o *ResolutionOrchestrator) resolveArtifact(
	ctx context.Context,
	artifact entities.ComponentArtifactMetadata,
	sources *entities.ModuleSources,
	result *ResolutionResult,
) error {
	var resolved entities.ArtifactResolveResult
	o.repository.LocalAccess().ResolveArtifact(ctx, artifact, sources, &resolved)
	if !resolved.HasResult() {
		o.repository.RemoteAccess().ResolveArtifact(ctx, artifact, sources, &resolved)
	}

	switch {
	case resolved.IsSuccessful():
		result.Files = append(result.Files, ResolvedArtifact{ID: artifact.ID, File: resolved.File()})
		return nil
	case resolved.Failure() != nil:
		return resolved.Failure()
	default:
		return &entities.ArtifactNotFoundError{ID: artifact.ID}
	}
}

// ListVersions lists the versions of a module, preferring cached listings
func (o *ResolutionOrchestrator) ListVersions(ctx context.Context, group, module string) ([]string, error) {
	dependency := entities.ModuleDependencyMetadata{Group: group, Module: module}

	var result entities.ModuleVersionListingResult
	o.repository.LocalAccess().ListModuleVersions(ctx, dependency, &result)
	if !result.HasResult() {
		o.repository.RemoteAccess().ListModuleVersions(ctx, dependency, &result)
	}
	if result.Failure() != nil {
		return nil, fmt.Errorf("failed to list versions of %s:%s: %w", group, module, result.Failure())
	}
	return result.Versions(), nil
}

// GetResolutionSummary generates a human-readable summary of a resolution
func (o *ResolutionOrchestrator) GetResolutionSummary(result *ResolutionResult) string {
	var b strings.Builder
	if len(result.Failures) == 0 {
		fmt.Fprintf(&b, "✅ RESOLVED: %s (%d files in %s)\n", result.Component.ID, len(result.Files), result.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&b, "🚫 FAILED: %s (%d of %d files failed)\n", result.Component.ID, len(result.Failures), len(result.Files)+len(result.Failures))
	}

	for _, f := range result.Files {
		fmt.Fprintf(&b, "   %s -> %s\n", f.ID.DisplayName(), f.File)
	}
	for _, err := range result.Failures {
		fmt.Fprintf(&b, "   ✗ %v\n", err)
	}
	return b.String()
}
