package fetcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/prefetch/infrastructure/fetcher"
	testdoubles "github.com/rios0rios0/prefetch/test"
)

func TestRegistryFor(t *testing.T) {
	t.Parallel()

	t.Run("should return the first fetcher matching the source", func(t *testing.T) {
		t.Parallel()

		// given
		archive := &testdoubles.SpyFetcher{FetcherName: "archive", MatchPrefix: "https://example.com/archives/"}
		git := &testdoubles.SpyFetcher{FetcherName: "git", MatchAll: true}
		registry := fetcher.NewRegistry()
		registry.Register(archive)
		registry.Register(git)

		// when
		matchedArchive, err := registry.For("https://example.com/archives/eigen-3.4.0.tar.gz")
		require.NoError(t, err)
		matchedGit, gitErr := registry.For("https://github.com/pybind/pybind11.git")
		require.NoError(t, gitErr)

		// then
		assert.Equal(t, "archive", matchedArchive.Name())
		assert.Equal(t, "git", matchedGit.Name())
	})

	t.Run("should fail naming the location when nothing matches", func(t *testing.T) {
		t.Parallel()

		// given
		registry := fetcher.NewRegistry()
		registry.Register(&testdoubles.SpyFetcher{FetcherName: "archive", MatchPrefix: "https://"})

		// when
		_, err := registry.For("ftp://legacy.example.com/eigen.tar")

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ftp://legacy.example.com/eigen.tar")
	})
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	t.Run("should return a registered fetcher by name", func(t *testing.T) {
		t.Parallel()

		// given
		registry := fetcher.NewRegistry()
		registry.Register(&testdoubles.SpyFetcher{FetcherName: "git", MatchAll: true})

		// when
		found := registry.Get("git")
		missing := registry.Get("svn")

		// then
		require.NotNil(t, found)
		assert.Equal(t, "git", found.Name())
		assert.Nil(t, missing)
	})
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()

	t.Run("should list names in match order", func(t *testing.T) {
		t.Parallel()

		// given
		registry := fetcher.NewRegistry()
		registry.Register(&testdoubles.SpyFetcher{FetcherName: "archive"})
		registry.Register(&testdoubles.SpyFetcher{FetcherName: "git"})

		// when
		names := registry.Names()

		// then
		assert.Equal(t, []string{"archive", "git"}, names)
	})
}
