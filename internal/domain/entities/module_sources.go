package entities

// ModuleSource is a typed piece of metadata attached to a resolved component
type ModuleSource interface {
	SourceName() string
}

// MetadataFileSource records the descriptor file a component was resolved from
type MetadataFileSource struct {
	ArtifactID ModuleArtifactIdentifier
	File       string
}

// SourceName implements ModuleSource
func (MetadataFileSource) SourceName() string { return "metadata-file" }

// DescriptorHashSource records the hash of a cached descriptor and whether the
// module was marked changing when it was cached
type DescriptorHashSource struct {
	Hash     string
	Changing bool
}

// SourceName implements ModuleSource
func (DescriptorHashSource) SourceName() string { return "descriptor-hash" }

// ModuleSources is an immutable, heterogeneous set of module sources.
// A nil *ModuleSources is a valid empty set.
type ModuleSources struct {
	sources []ModuleSource
}

// NewModuleSources creates a source set from the given sources
func NewModuleSources(sources ...ModuleSource) *ModuleSources {
	s := &ModuleSources{sources: make([]ModuleSource, 0, len(sources))}
	for _, src := range sources {
		if src != nil {
			s.sources = append(s.sources, src)
		}
	}
	return s
}

// With returns a new set containing src in addition to the receiver's sources
func (s *ModuleSources) With(src ModuleSource) *ModuleSources {
	return NewModuleSources(append(s.All(), src)...)
}

// All returns a copy of the sources
func (s *ModuleSources) All() []ModuleSource {
	if s == nil {
		return nil
	}
	out := make([]ModuleSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// Size returns the number of sources
func (s *ModuleSources) Size() int {
	if s == nil {
		return 0
	}
	return len(s.sources)
}

// SourceOf returns the first source of type T
func SourceOf[T ModuleSource](s *ModuleSources) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	for _, src := range s.sources {
		if typed, ok := src.(T); ok {
			return typed, true
		}
	}
	return zero, false
}
