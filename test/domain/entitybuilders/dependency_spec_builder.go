package entitybuilders //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	testkit "github.com/rios0rios0/testkit/pkg/test"

	"github.com/rios0rios0/prefetch/domain"
)

// DependencySpecBuilder helps create test dependency specs with a fluent interface.
type DependencySpecBuilder struct {
	*testkit.BaseBuilder
	name        string
	source      string
	versionRef  string
	sha256      string
	includeDirs []string
	declaredAt  string
}

// NewDependencySpecBuilder creates a new spec builder with sensible defaults.
func NewDependencySpecBuilder() *DependencySpecBuilder {
	return &DependencySpecBuilder{
		BaseBuilder: testkit.NewBaseBuilder(),
		name:        "pybind11",
		source:      "https://github.com/pybind/pybind11.git",
		versionRef:  "v2.6.2",
		declaredAt:  "prefetch.hcl:1",
	}
}

// WithName sets the dependency name.
func (b *DependencySpecBuilder) WithName(name string) *DependencySpecBuilder {
	b.name = name
	return b
}

// WithSource sets the source location.
func (b *DependencySpecBuilder) WithSource(source string) *DependencySpecBuilder {
	b.source = source
	return b
}

// WithRef sets the pinned version ref.
func (b *DependencySpecBuilder) WithRef(ref string) *DependencySpecBuilder {
	b.versionRef = ref
	return b
}

// WithSHA256 sets the expected archive digest.
func (b *DependencySpecBuilder) WithSHA256(digest string) *DependencySpecBuilder {
	b.sha256 = digest
	return b
}

// WithIncludeDirs sets the declared include dirs.
func (b *DependencySpecBuilder) WithIncludeDirs(dirs ...string) *DependencySpecBuilder {
	b.includeDirs = dirs
	return b
}

// WithDeclaredAt sets the manifest position.
func (b *DependencySpecBuilder) WithDeclaredAt(pos string) *DependencySpecBuilder {
	b.declaredAt = pos
	return b
}

// Build creates the dependency spec (satisfies testkit.Builder interface).
func (b *DependencySpecBuilder) Build() interface{} {
	return b.BuildSpec()
}

// BuildSpec creates the dependency spec with a concrete return type.
func (b *DependencySpecBuilder) BuildSpec() domain.DependencySpec {
	return domain.DependencySpec{
		Name:           b.name,
		SourceLocation: b.source,
		VersionRef:     b.versionRef,
		SHA256:         b.sha256,
		IncludeDirs:    b.includeDirs,
		DeclaredAt:     b.declaredAt,
	}
}

// Reset clears the builder state, allowing it to be reused.
func (b *DependencySpecBuilder) Reset() testkit.Builder {
	b.BaseBuilder.Reset()
	b.name = "pybind11"
	b.source = "https://github.com/pybind/pybind11.git"
	b.versionRef = "v2.6.2"
	b.sha256 = ""
	b.includeDirs = nil
	b.declaredAt = "prefetch.hcl:1"
	return b
}

// Clone creates a deep copy of the DependencySpecBuilder.
func (b *DependencySpecBuilder) Clone() testkit.Builder {
	dirs := make([]string, len(b.includeDirs))
	copy(dirs, b.includeDirs)
	return &DependencySpecBuilder{
		BaseBuilder: b.BaseBuilder.Clone().(*testkit.BaseBuilder),
		name:        b.name,
		source:      b.source,
		versionRef:  b.versionRef,
		sha256:      b.sha256,
		includeDirs: dirs,
		declaredAt:  b.declaredAt,
	}
}
