package gateways

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/repositories"
)

const snapshotSuffix = "-SNAPSHOT"

// CachedModuleRepository is a Maven-layout HTTP repository backed by an on-disk cache.
// Cache entries live at cacheDir/group/module/version/file.
type CachedModuleRepository struct {
	id       string
	name     string
	baseURL  string
	cacheDir string

	downloader *Downloader
	checksums  *checksumVerifier
	logger     interfaces.Logger

	local  *localCacheAccess
	remote *remoteAccess
}

// NewCachedModuleRepository creates a repository for baseURL caching into cacheDir
func NewCachedModuleRepository(id, name, baseURL, cacheDir string, logger interfaces.Logger) *CachedModuleRepository {
	r := &CachedModuleRepository{
		id:         id,
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		cacheDir:   cacheDir,
		downloader: NewDownloader(),
		checksums:  NewChecksumVerifier(),
		logger:     interfaces.OrNoOp(logger),
	}
	r.local = &localCacheAccess{repo: r}
	r.remote = &remoteAccess{repo: r}
	return r
}

// ID returns the repository identifier
func (r *CachedModuleRepository) ID() string { return r.id }

// Name returns the repository display name
func (r *CachedModuleRepository) Name() string { return r.name }

// LocalAccess returns the cache-only access
func (r *CachedModuleRepository) LocalAccess() repositories.ModuleComponentRepositoryAccess {
	return r.local
}

// RemoteAccess returns the network-backed access
func (r *CachedModuleRepository) RemoteAccess() repositories.ModuleComponentRepositoryAccess {
	return r.remote
}

// validateCoordinates rejects coordinates that would escape the cache directory
// RepositoryIDForURL derives a repository id usable in cache file names from
// the host and path of baseURL
func RepositoryIDForURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", baseURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid repository URL %q: missing host", baseURL)
	}
	return safeFileComponent(u.Host + u.Path), nil
}

// safeFileComponent maps s onto [A-Za-z0-9._-], collapsing everything else to '-'
func safeFileComponent(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
	mapped = strings.Trim(mapped, "-.")
	if mapped == "" {
		return "repository"
	}
	return mapped
}

func validateCoordinates(parts ...string) error {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) || strings.Contains(p, "..") {
			return fmt.Errorf("invalid coordinate %q", p)
		}
	}
	return nil
}

func (r *CachedModuleRepository) moduleDir(group, module string) string {
	return filepath.Join(r.cacheDir, group, module)
}

func (r *CachedModuleRepository) cachedFile(id entities.ModuleComponentIdentifier, file string) string {
	return filepath.Join(r.moduleDir(id.Group, id.Module), id.Version, file)
}

func (r *CachedModuleRepository) moduleURL(group, module string) string {
	return r.baseURL + "/" + strings.ReplaceAll(group, ".", "/") + "/" + module
}

func (r *CachedModuleRepository) remoteURL(id entities.ModuleComponentIdentifier, file string) string {
	return r.moduleURL(id.Group, id.Module) + "/" + id.Version + "/" + file
}

// descriptorArtifact returns the pom artifact of a module version
func descriptorArtifact(id entities.ModuleComponentIdentifier) entities.ComponentArtifactMetadata {
	name := entities.ArtifactName{Name: id.Module, Type: "pom", Extension: "pom"}
	return entities.ComponentArtifactMetadata{
		ID:         entities.DefaultModuleArtifactID{Component: id, Name: name},
		Name:       name,
		Descriptor: true,
	}
}

func moduleArtifact(id entities.ModuleComponentIdentifier, ext, classifier string) entities.ComponentArtifactMetadata {
	name := entities.ArtifactName{Name: id.Module, Type: ext, Extension: ext, Classifier: classifier}
	return entities.ComponentArtifactMetadata{
		ID:   entities.DefaultModuleArtifactID{Component: id, Name: name},
		Name: name,
	}
}

// packagingExtension maps a pom packaging to the extension of its main artifact
func packagingExtension(packaging string) string {
	switch packaging {
	case "bundle", "maven-plugin", "eclipse-plugin", "ejb":
		return "jar"
	default:
		return packaging
	}
}

// buildMetadata derives component metadata from a cached descriptor
func (r *CachedModuleRepository) buildMetadata(
	ctx context.Context,
	id entities.ModuleComponentIdentifier,
	override entities.ComponentOverrideMetadata,
	descriptorPath string,
) (*entities.ComponentMetadata, error) {
	hash, err := r.checksums.Checksum(ctx, descriptorPath, entities.ChecksumSHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to hash descriptor of %s: %w", id, err)
	}

	packaging, err := readPackaging(descriptorPath)
	if err != nil {
		return nil, err
	}

	changing := strings.HasSuffix(id.Version, snapshotSuffix) || override.Changing

	var artifacts []entities.ComponentArtifactMetadata
	if packaging != "pom" {
		artifacts = append(artifacts, moduleArtifact(id, packagingExtension(packaging), ""))
	}

	return &entities.ComponentMetadata{
		ID:       id,
		Changing: changing,
		Sources: entities.NewModuleSources(
			entities.MetadataFileSource{
				ArtifactID: entities.DefaultModuleArtifactID{Component: id, Name: descriptorArtifact(id).Name},
				File:       descriptorPath,
			},
			entities.DescriptorHashSource{Hash: hash, Changing: changing},
		),
		Artifacts: artifacts,
	}, nil
}

func typedArtifacts(component *entities.ComponentMetadata, artifactType entities.ArtifactType) []entities.ComponentArtifactMetadata {
	switch artifactType {
	case entities.ArtifactTypeSources:
		return []entities.ComponentArtifactMetadata{moduleArtifact(component.ID, "jar", "sources")}
	case entities.ArtifactTypeJavadoc:
		return []entities.ComponentArtifactMetadata{moduleArtifact(component.ID, "jar", "javadoc")}
	case entities.ArtifactTypeMavenPom:
		return []entities.ComponentArtifactMetadata{descriptorArtifact(component.ID)}
	default:
		return nil
	}
}

// artifactLocation resolves the component and file name of an artifact
func artifactLocation(artifact entities.ComponentArtifactMetadata) (entities.ModuleComponentIdentifier, string, error) {
	if artifact.ID == nil {
		return entities.ModuleComponentIdentifier{}, "", errors.New("artifact has no identifier")
	}
	moduleID, ok := artifact.ID.(entities.ModuleArtifactIdentifier)
	if !ok {
		return entities.ModuleComponentIdentifier{}, "", fmt.Errorf("%s is not a module artifact", artifact.ID.DisplayName())
	}
	component := moduleID.ComponentIdentifier()
	file := moduleID.FileName()
	if err := validateCoordinates(component.Group, component.Module, component.Version, file); err != nil {
		return entities.ModuleComponentIdentifier{}, "", fmt.Errorf("cannot resolve %s: %w", artifact.ID.DisplayName(), err)
	}
	return component, file, nil
}

func descriptorFileName(id entities.ModuleComponentIdentifier) string {
	return id.Module + "-" + id.Version + ".pom"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// localCacheAccess answers from the on-disk cache only. A cache miss leaves
// the result untouched.
type localCacheAccess struct {
	repo *CachedModuleRepository
}

func (a *localCacheAccess) ListModuleVersions(_ context.Context, dependency entities.ModuleDependencyMetadata, result *entities.ModuleVersionListingResult) {
	if err := validateCoordinates(dependency.Group, dependency.Module); err != nil {
		result.Failed(err)
		return
	}

	dir := a.repo.moduleDir(dependency.Group, dependency.Module)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			result.Failed(fmt.Errorf("failed to read cache directory: %w", err))
		}
		return
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entities.ModuleComponentIdentifier{Group: dependency.Group, Module: dependency.Module, Version: entry.Name()}
		if fileExists(a.repo.cachedFile(id, descriptorFileName(id))) {
			versions = append(versions, entry.Name())
		}
	}
	if len(versions) == 0 {
		return
	}
	result.Listed(sortVersions(versions))
}

func (a *localCacheAccess) ResolveComponentMetaData(ctx context.Context, id entities.ModuleComponentIdentifier, override entities.ComponentOverrideMetadata, result *entities.ComponentMetaDataResolveResult) {
	if err := validateCoordinates(id.Group, id.Module, id.Version); err != nil {
		result.Failed(err)
		return
	}

	descriptor := a.repo.cachedFile(id, descriptorFileName(id))
	if !fileExists(descriptor) {
		return
	}

	md, err := a.repo.buildMetadata(ctx, id, override, descriptor)
	if err != nil {
		result.Failed(err)
		return
	}
	result.Resolved(md)
}

func (a *localCacheAccess) ResolveArtifacts(_ context.Context, component *entities.ComponentMetadata, result *entities.ComponentArtifactsResult) {
	result.Resolved(component.Artifacts)
}

func (a *localCacheAccess) ResolveArtifactsWithType(_ context.Context, component *entities.ComponentMetadata, artifactType entities.ArtifactType, result *entities.ArtifactSetResult) {
	result.Resolved(typedArtifacts(component, artifactType))
}

func (a *localCacheAccess) ResolveArtifact(_ context.Context, artifact entities.ComponentArtifactMetadata, _ *entities.ModuleSources, result *entities.ArtifactResolveResult) {
	component, file, err := artifactLocation(artifact)
	if err != nil {
		result.Failed(err)
		return
	}

	path := a.repo.cachedFile(component, file)
	if fileExists(path) {
		result.Resolved(path)
	}
}

func (a *localCacheAccess) EstimateMetadataFetchingCost(id entities.ModuleComponentIdentifier) entities.MetadataFetchingCost {
	if validateCoordinates(id.Group, id.Module, id.Version) == nil && fileExists(a.repo.cachedFile(id, descriptorFileName(id))) {
		return entities.CostFast
	}
	return entities.CostCheap
}

// remoteAccess downloads from the repository into the cache
type remoteAccess struct {
	repo *CachedModuleRepository
}

func (a *remoteAccess) download(ctx context.Context, location, dest string) error {
	a.repo.logger.Debug("downloading",
		interfaces.F("repository", a.repo.name),
		interfaces.F("url", location))
	return a.repo.downloader.Download(ctx, location, dest)
}

func (a *remoteAccess) ListModuleVersions(ctx context.Context, dependency entities.ModuleDependencyMetadata, result *entities.ModuleVersionListingResult) {
	if err := validateCoordinates(dependency.Group, dependency.Module); err != nil {
		result.Failed(err)
		return
	}

	location := a.repo.moduleURL(dependency.Group, dependency.Module) + "/maven-metadata.xml"
	dest := filepath.Join(a.repo.moduleDir(dependency.Group, dependency.Module), "maven-metadata-"+safeFileComponent(a.repo.id)+".xml")

	if err := a.download(ctx, location, dest); err != nil {
		if errors.Is(err, errRemoteNotFound) {
			result.Listed(nil)
			return
		}
		result.Failed(fmt.Errorf("failed to list versions of %s:%s: %w", dependency.Group, dependency.Module, err))
		return
	}

	//nolint:gosec // G304: dest is inside the repository cache
	f, err := os.Open(dest)
	if err != nil {
		result.Failed(fmt.Errorf("failed to open version listing: %w", err))
		return
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	md, err := parseMavenMetadata(f)
	if err != nil {
		result.Failed(err)
		return
	}
	result.Listed(sortVersions(md.Versioning.Versions))
}

func (a *remoteAccess) ResolveComponentMetaData(ctx context.Context, id entities.ModuleComponentIdentifier, override entities.ComponentOverrideMetadata, result *entities.ComponentMetaDataResolveResult) {
	if err := validateCoordinates(id.Group, id.Module, id.Version); err != nil {
		result.Failed(err)
		return
	}

	file := descriptorFileName(id)
	descriptor := a.repo.cachedFile(id, file)
	if err := a.download(ctx, a.repo.remoteURL(id, file), descriptor); err != nil {
		if errors.Is(err, errRemoteNotFound) {
			result.Missing()
			return
		}
		result.Failed(fmt.Errorf("failed to resolve metadata of %s: %w", id, err))
		return
	}

	md, err := a.repo.buildMetadata(ctx, id, override, descriptor)
	if err != nil {
		result.Failed(err)
		return
	}
	result.Resolved(md)
}

func (a *remoteAccess) ResolveArtifacts(_ context.Context, component *entities.ComponentMetadata, result *entities.ComponentArtifactsResult) {
	result.Resolved(component.Artifacts)
}

func (a *remoteAccess) ResolveArtifactsWithType(_ context.Context, component *entities.ComponentMetadata, artifactType entities.ArtifactType, result *entities.ArtifactSetResult) {
	result.Resolved(typedArtifacts(component, artifactType))
}

func (a *remoteAccess) ResolveArtifact(ctx context.Context, artifact entities.ComponentArtifactMetadata, _ *entities.ModuleSources, result *entities.ArtifactResolveResult) {
	component, file, err := artifactLocation(artifact)
	if err != nil {
		result.Failed(err)
		return
	}

	location := a.repo.remoteURL(component, file)
	path := a.repo.cachedFile(component, file)
	if err := a.download(ctx, location, path); err != nil {
		if errors.Is(err, errRemoteNotFound) {
			result.Failed(&entities.ArtifactNotFoundError{ID: artifact.ID, Locations: []string{location}})
			return
		}
		result.Failed(fmt.Errorf("failed to download %s: %w", artifact.ID.DisplayName(), err))
		return
	}
	result.Resolved(path)
}

func (a *remoteAccess) EstimateMetadataFetchingCost(entities.ModuleComponentIdentifier) entities.MetadataFetchingCost {
	return entities.CostExpensive
}
