package entities

// ArtifactResolveResult is the sink for a single artifact resolution.
// It is not attempted until Resolved or Failed is called.
type ArtifactResolveResult struct {
	attempted bool
	file      string
	failure   error
}

// Resolved marks the result successful with the local file
func (r *ArtifactResolveResult) Resolved(file string) {
	r.attempted = true
	r.file = file
	r.failure = nil
}

// Failed marks the result failed
func (r *ArtifactResolveResult) Failed(err error) {
	r.attempted = true
	r.file = ""
	r.failure = err
}

// NotFound marks the result failed with an ArtifactNotFoundError
func (r *ArtifactResolveResult) NotFound(id ComponentArtifactIdentifier) {
	r.Failed(&ArtifactNotFoundError{ID: id})
}

// HasResult reports whether resolution was attempted
func (r *ArtifactResolveResult) HasResult() bool { return r.attempted }

// IsSuccessful reports whether resolution produced a file
func (r *ArtifactResolveResult) IsSuccessful() bool { return r.attempted && r.failure == nil }

// File returns the resolved file, empty unless successful
func (r *ArtifactResolveResult) File() string { return r.file }

// Failure returns the failure, nil unless failed
func (r *ArtifactResolveResult) Failure() error { return r.failure }

// MetaDataState is the state of a component metadata resolution
type MetaDataState int

const (
	// MetaDataUnknown means resolution was not attempted
	MetaDataUnknown MetaDataState = iota
	// MetaDataResolved means metadata was found
	MetaDataResolved
	// MetaDataMissing means the repository does not contain the component
	MetaDataMissing
	// MetaDataFailed means resolution failed
	MetaDataFailed
)

// ComponentMetaDataResolveResult is the sink for a metadata resolution
type ComponentMetaDataResolveResult struct {
	state    MetaDataState
	metaData *ComponentMetadata
	failure  error
}

// Resolved marks the result resolved
func (r *ComponentMetaDataResolveResult) Resolved(md *ComponentMetadata) {
	r.state, r.metaData, r.failure = MetaDataResolved, md, nil
}

// Missing marks the component as absent from the repository
func (r *ComponentMetaDataResolveResult) Missing() {
	r.state, r.metaData, r.failure = MetaDataMissing, nil, nil
}

// Failed marks the result failed
func (r *ComponentMetaDataResolveResult) Failed(err error) {
	r.state, r.metaData, r.failure = MetaDataFailed, nil, err
}

// HasResult reports whether resolution was attempted
func (r *ComponentMetaDataResolveResult) HasResult() bool { return r.state != MetaDataUnknown }

// State returns the resolution state
func (r *ComponentMetaDataResolveResult) State() MetaDataState { return r.state }

// MetaData returns the resolved metadata, nil unless resolved
func (r *ComponentMetaDataResolveResult) MetaData() *ComponentMetadata { return r.metaData }

// Failure returns the failure, nil unless failed
func (r *ComponentMetaDataResolveResult) Failure() error { return r.failure }

// IsUsable reports whether the result holds resolved metadata
func (r *ComponentMetaDataResolveResult) IsUsable() bool {
	return r.state == MetaDataResolved && r.metaData != nil
}

// ModuleVersionListingResult is the sink for a version listing
type ModuleVersionListingResult struct {
	attempted bool
	versions  []string
	failure   error
}

// Listed records the available versions
func (r *ModuleVersionListingResult) Listed(versions []string) {
	r.attempted, r.versions, r.failure = true, versions, nil
}

// Failed marks the listing failed
func (r *ModuleVersionListingResult) Failed(err error) {
	r.attempted, r.versions, r.failure = true, nil, err
}

// HasResult reports whether listing was attempted
func (r *ModuleVersionListingResult) HasResult() bool { return r.attempted }

// Versions returns the listed versions
func (r *ModuleVersionListingResult) Versions() []string { return r.versions }

// Failure returns the failure, nil unless failed
func (r *ModuleVersionListingResult) Failure() error { return r.failure }

// ComponentArtifactsResult is the sink for the artifacts of a component
type ComponentArtifactsResult struct {
	attempted bool
	artifacts []ComponentArtifactMetadata
	failure   error
}

// Resolved records the component artifacts
func (r *ComponentArtifactsResult) Resolved(artifacts []ComponentArtifactMetadata) {
	r.attempted, r.artifacts, r.failure = true, artifacts, nil
}

// Failed marks the result failed
func (r *ComponentArtifactsResult) Failed(err error) {
	r.attempted, r.artifacts, r.failure = true, nil, err
}

// HasResult reports whether resolution was attempted
func (r *ComponentArtifactsResult) HasResult() bool { return r.attempted }

// Artifacts returns the resolved artifacts
func (r *ComponentArtifactsResult) Artifacts() []ComponentArtifactMetadata { return r.artifacts }

// Failure returns the failure, nil unless failed
func (r *ComponentArtifactsResult) Failure() error { return r.failure }

// ArtifactSetResult is the sink for artifacts of a given ArtifactType
type ArtifactSetResult struct {
	ComponentArtifactsResult
}
