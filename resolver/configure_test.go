package resolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func sourceTree(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	return root
}

func TestBuildTargets(t *testing.T) {
	t.Parallel()

	t.Run("should prefer an include directory over the source root", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "include/pybind11/pybind11.h", "README.md")
		spec := domain.DependencySpec{Name: "pybind11"}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, nil, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(srcDir, "include")}, targets.IncludeDirs)
		assert.Equal(t, srcDir, targets.SourceDir)
	})

	t.Run("should fall back to the source root without an include directory", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, nil, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{srcDir}, targets.IncludeDirs)
	})

	t.Run("should resolve declared include dirs against the source root", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "unsupported/Eigen/CXX11/Tensor", "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen", IncludeDirs: []string{".", "unsupported"}}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, nil, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{srcDir, filepath.Join(srcDir, "unsupported")}, targets.IncludeDirs)
	})

	t.Run("should fail with ConfigurationError when a declared include dir is missing", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "README.md")
		spec := domain.DependencySpec{Name: "eigen", IncludeDirs: []string{"include"}}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, nil, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should fail with ConfigurationError when an include dir escapes the tree", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "README.md")
		spec := domain.DependencySpec{Name: "eigen", IncludeDirs: []string{"../outside"}}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, nil, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should map bool options onto defines", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "EIGEN_MPL2_ONLY", Value: cty.True},
			{Key: "EIGEN_NO_DEBUG", Value: cty.False},
		}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, "1", targets.Defines["EIGEN_MPL2_ONLY"])
		assert.NotContains(t, targets.Defines, "EIGEN_NO_DEBUG")
	})

	t.Run("should let a later binding win for the same key", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "EIGEN_MPL2_ONLY", Value: cty.True},
			{Key: "EIGEN_MPL2_ONLY", Value: cty.False},
		}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.NoError(t, err)
		assert.NotContains(t, targets.Defines, "EIGEN_MPL2_ONLY")
	})

	t.Run("should turn the standard option into a compiler flag", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "CPP_STANDARD", Value: cty.StringVal("c++11")},
		}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"-std=c++11"}, targets.CompileFlags)
		assert.NotContains(t, targets.Defines, "CPP_STANDARD")
	})

	t.Run("should accept gnu dialect standards", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "standard", Value: cty.StringVal("gnu++17")},
		}

		// when
		targets, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"-std=gnu++17"}, targets.CompileFlags)
	})

	t.Run("should fail with ConfigurationError for an unsupported standard", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "standard", Value: cty.StringVal("c++2x-draft")},
		}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
		assert.Contains(t, err.Error(), "c++2x-draft")
	})

	t.Run("should fail with ConfigurationError for an invalid define name", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "9BAD-NAME", Value: cty.True},
		}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should fail with ConfigurationError for unsupported value types", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "THREAD_COUNT", Value: cty.NumberIntVal(4)},
		}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should fail with ConfigurationError for null values", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "EIGEN_MPL2_ONLY", Value: cty.NullVal(cty.Bool)},
		}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should fail with ConfigurationError for multi-line values", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "Eigen/Core")
		spec := domain.DependencySpec{Name: "eigen"}
		options := []domain.OptionBinding{
			{Key: "BANNER", Value: cty.StringVal("line one\nline two")},
		}

		// when
		_, err := resolver.BuildTargets(spec, domain.ProjectInfo{}, options, srcDir)

		// then
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("should inject the project version define", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "include/pybind11/pybind11.h")
		spec := domain.DependencySpec{Name: "pybind11"}
		project := domain.ProjectInfo{Name: "pyqubo", Version: "1.0.7", VersionDefine: "VERSION_INFO"}

		// when
		targets, err := resolver.BuildTargets(spec, project, nil, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, "1.0.7", targets.Defines["VERSION_INFO"])
	})

	t.Run("should let a dependency option override the project define", func(t *testing.T) {
		t.Parallel()

		// given
		srcDir := sourceTree(t, "include/pybind11/pybind11.h")
		spec := domain.DependencySpec{Name: "pybind11"}
		project := domain.ProjectInfo{Name: "pyqubo", Version: "1.0.7", VersionDefine: "VERSION_INFO"}
		options := []domain.OptionBinding{
			{Key: "VERSION_INFO", Value: cty.StringVal("dev")},
		}

		// when
		targets, err := resolver.BuildTargets(spec, project, options, srcDir)

		// then
		require.NoError(t, err)
		assert.Equal(t, "dev", targets.Defines["VERSION_INFO"])
	})
}
