package version_test

import (
	"testing"

	"github.com/rios0rios0/prefetch/internal/version"
	"github.com/stretchr/testify/assert"
)

func TestIsNewer(t *testing.T) {
	t.Parallel()

	t.Run("should detect a newer patch version", func(t *testing.T) {
		t.Parallel()

		// given
		current := "v2.6.2"
		candidate := "v2.6.3"

		// when
		newer := version.IsNewer(current, candidate)

		// then
		assert.True(t, newer)
	})

	t.Run("should handle versions without the v prefix", func(t *testing.T) {
		t.Parallel()

		// given
		current := "3.3.9"
		candidate := "3.4.0"

		// when
		newer := version.IsNewer(current, candidate)

		// then
		assert.True(t, newer)
	})

	t.Run("should not report an older version as newer", func(t *testing.T) {
		t.Parallel()

		// given
		current := "v2.7.0"
		candidate := "v2.6.2"

		// when
		newer := version.IsNewer(current, candidate)

		// then
		assert.False(t, newer)
	})

	t.Run("should not report the same version as newer", func(t *testing.T) {
		t.Parallel()

		// given
		current := "v2.6.2"

		// when
		newer := version.IsNewer(current, current)

		// then
		assert.False(t, newer)
	})
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("should flag a major bump", func(t *testing.T) {
		t.Parallel()

		// when
		diff := version.Analyze("v2.6.2", "v3.0.0")

		// then
		assert.True(t, diff.IsMajor)
		assert.False(t, diff.IsMinor)
		assert.False(t, diff.IsPatch)
	})

	t.Run("should flag a minor bump", func(t *testing.T) {
		t.Parallel()

		// when
		diff := version.Analyze("v2.6.2", "v2.7.0")

		// then
		assert.False(t, diff.IsMajor)
		assert.True(t, diff.IsMinor)
		assert.False(t, diff.IsPatch)
	})

	t.Run("should flag a patch bump", func(t *testing.T) {
		t.Parallel()

		// when
		diff := version.Analyze("v2.6.2", "v2.6.3")

		// then
		assert.False(t, diff.IsMajor)
		assert.False(t, diff.IsMinor)
		assert.True(t, diff.IsPatch)
	})

	t.Run("should leave all flags unset for non-semver refs", func(t *testing.T) {
		t.Parallel()

		// when
		diff := version.Analyze("master", "main")

		// then
		assert.False(t, diff.IsMajor)
		assert.False(t, diff.IsMinor)
		assert.False(t, diff.IsPatch)
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()

	t.Run("should pick the highest newer version", func(t *testing.T) {
		t.Parallel()

		// given
		candidates := []string{"v2.5.0", "v2.6.2", "v2.7.1", "v2.7.0"}

		// when
		latest := version.Latest("v2.6.2", candidates)

		// then
		assert.Equal(t, "v2.7.1", latest)
	})

	t.Run("should return empty when nothing is newer", func(t *testing.T) {
		t.Parallel()

		// given
		candidates := []string{"v2.5.0", "v2.6.0"}

		// when
		latest := version.Latest("v2.6.2", candidates)

		// then
		assert.Empty(t, latest)
	})

	t.Run("should ignore non-semver tags", func(t *testing.T) {
		t.Parallel()

		// given
		candidates := []string{"nightly", "v2.6.3", "snapshot-2021"}

		// when
		latest := version.Latest("v2.6.2", candidates)

		// then
		assert.Equal(t, "v2.6.3", latest)
	})
}
