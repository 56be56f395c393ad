package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/rios0rios0/prefetch/infrastructure/manifest"
)

const seedManifest = `
project {
  name           = "pyqubo"
  version        = "1.0.7"
  version_define = "PYQUBO_VERSION_INFO"
}

dependency "pybind11" {
  source = "https://github.com/pybind/pybind11.git"
  ref    = "v2.6.2"
}

dependency "eigen" {
  source       = "https://gitlab.com/libeigen/eigen.git"
  ref          = "3.3.9"
  include_dirs = [".", "unsupported"]

  options {
    EIGEN_MPL2_ONLY = true
    cpp_standard    = "c++11"
  }
}
`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("should parse project metadata and dependency blocks", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(seedManifest)

		// when
		man, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.NoError(t, err)
		assert.Equal(t, "pyqubo", man.Project.Name)
		assert.Equal(t, "1.0.7", man.Project.Version)
		assert.Equal(t, "PYQUBO_VERSION_INFO", man.Project.VersionDefine)
		require.Len(t, man.Dependencies, 2)

		pybind := man.Dependencies[0]
		assert.Equal(t, "pybind11", pybind.Spec.Name)
		assert.Equal(t, "https://github.com/pybind/pybind11.git", pybind.Spec.SourceLocation)
		assert.Equal(t, "v2.6.2", pybind.Spec.VersionRef)
		assert.Empty(t, pybind.Options)

		eigen := man.Dependencies[1]
		assert.Equal(t, "eigen", eigen.Spec.Name)
		assert.Equal(t, []string{".", "unsupported"}, eigen.Spec.IncludeDirs)
	})

	t.Run("should keep option bindings in manifest order", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(seedManifest)

		// when
		man, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.NoError(t, err)
		eigen, found := man.Find("eigen")
		require.True(t, found)
		require.Len(t, eigen.Options, 2)
		assert.Equal(t, "EIGEN_MPL2_ONLY", eigen.Options[0].Key)
		assert.Equal(t, cty.True, eigen.Options[0].Value)
		assert.Equal(t, "cpp_standard", eigen.Options[1].Key)
		assert.Equal(t, "c++11", eigen.Options[1].Value.AsString())
	})

	t.Run("should record the declaration position of every dependency", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(seedManifest)

		// when
		man, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.NoError(t, err)
		assert.Equal(t, "prefetch.hcl:8", man.Dependencies[0].Spec.DeclaredAt)
		assert.Equal(t, "prefetch.hcl:13", man.Dependencies[1].Spec.DeclaredAt)
	})

	t.Run("should parse an archive dependency with a digest pin", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
dependency "eigen" {
  source = "https://gitlab.com/libeigen/eigen/-/archive/3.4.0/eigen-3.4.0.tar.gz"
  ref    = "3.4.0"
  sha256 = "8586084f71f9bde545ee7fa6d00288b264a2b7ac3607b974e54d13e7162c1c72"
}
`)

		// when
		man, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.NoError(t, err)
		require.Len(t, man.Dependencies, 1)
		assert.Equal(t,
			"8586084f71f9bde545ee7fa6d00288b264a2b7ac3607b974e54d13e7162c1c72",
			man.Dependencies[0].Spec.SHA256)
	})

	t.Run("should fail when a dependency has no source", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
dependency "pybind11" {
  ref = "v2.6.2"
}
`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pybind11")
	})

	t.Run("should fail when a ref is empty", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
dependency "pybind11" {
  source = "https://github.com/pybind/pybind11.git"
  ref    = ""
}
`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("should fail on malformed HCL", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`dependency "broken" {`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		assert.Error(t, err)
	})

	t.Run("should fail when no dependencies are declared", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
project {
  name = "pyqubo"
}
`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no dependencies")
	})

	t.Run("should fail when an option is not a literal", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
dependency "eigen" {
  source = "https://gitlab.com/libeigen/eigen.git"
  ref    = "3.3.9"

  options {
    EIGEN_MPL2_ONLY = var.not_a_literal
  }
}
`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EIGEN_MPL2_ONLY")
	})

	t.Run("should fail when include_dirs is not a string list", func(t *testing.T) {
		t.Parallel()

		// given
		src := []byte(`
dependency "eigen" {
  source       = "https://gitlab.com/libeigen/eigen.git"
  ref          = "3.3.9"
  include_dirs = "unsupported"
}
`)

		// when
		_, err := manifest.Parse(src, "prefetch.hcl")

		// then
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("should load a manifest from disk", func(t *testing.T) {
		t.Parallel()

		// given
		dir := t.TempDir()
		path := filepath.Join(dir, "prefetch.hcl")
		require.NoError(t, os.WriteFile(path, []byte(seedManifest), 0o644))

		// when
		man, err := manifest.Load(path)

		// then
		require.NoError(t, err)
		assert.Equal(t, path, man.Path)
		assert.Len(t, man.Dependencies, 2)
	})

	t.Run("should fail when the file does not exist", func(t *testing.T) {
		t.Parallel()

		// given
		path := filepath.Join(t.TempDir(), "missing.hcl")

		// when
		_, err := manifest.Load(path)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read manifest")
	})
}
