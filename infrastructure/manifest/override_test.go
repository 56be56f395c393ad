package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/rios0rios0/prefetch/infrastructure/manifest"
)

func TestParseOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		dependency string
		key        string
		value      cty.Value
	}{
		{
			name:       "should parse a bool override",
			raw:        "eigen.EIGEN_MPL2_ONLY=true",
			dependency: "eigen",
			key:        "EIGEN_MPL2_ONLY",
			value:      cty.True,
		},
		{
			name:       "should parse a false bool override",
			raw:        "eigen.EIGEN_NO_DEBUG=false",
			dependency: "eigen",
			key:        "EIGEN_NO_DEBUG",
			value:      cty.False,
		},
		{
			name:       "should parse a string override",
			raw:        "eigen.cpp_standard=c++14",
			dependency: "eigen",
			key:        "cpp_standard",
			value:      cty.StringVal("c++14"),
		},
		{
			name:       "should keep equals signs inside the value",
			raw:        "pybind11.EXTRA_FLAGS=-DX=1",
			dependency: "pybind11",
			key:        "EXTRA_FLAGS",
			value:      cty.StringVal("-DX=1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// when
			override, err := manifest.ParseOverride(tt.raw)

			// then
			require.NoError(t, err)
			assert.Equal(t, tt.dependency, override.Dependency)
			assert.Equal(t, tt.key, override.Binding.Key)
			assert.Equal(t, tt.value, override.Binding.Value)
		})
	}

	t.Run("should fail without an assignment", func(t *testing.T) {
		t.Parallel()

		// when
		_, err := manifest.ParseOverride("eigen.EIGEN_MPL2_ONLY")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "<dependency>.<KEY>=<value>")
	})

	t.Run("should fail without a dependency qualifier", func(t *testing.T) {
		t.Parallel()

		// when
		_, err := manifest.ParseOverride("EIGEN_MPL2_ONLY=true")

		// then
		assert.Error(t, err)
	})
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	t.Run("should parse every entry", func(t *testing.T) {
		t.Parallel()

		// given
		raw := []string{"eigen.EIGEN_MPL2_ONLY=true", "eigen.cpp_standard=c++11"}

		// when
		overrides, err := manifest.ParseOverrides(raw)

		// then
		require.NoError(t, err)
		assert.Len(t, overrides, 2)
	})

	t.Run("should fail on the first malformed entry", func(t *testing.T) {
		t.Parallel()

		// given
		raw := []string{"eigen.EIGEN_MPL2_ONLY=true", "garbage"}

		// when
		_, err := manifest.ParseOverrides(raw)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "garbage")
	})
}
