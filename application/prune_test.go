package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
	"github.com/rios0rios0/prefetch/test/domain/entitybuilders"
)

func TestPruneService_Run(t *testing.T) {
	t.Parallel()

	t.Run("should remove entries the manifest no longer references", func(t *testing.T) {
		t.Parallel()

		// given
		fixture := buildSyncFixture(t)
		man := buildTestManifest(t, pybind11Dep(), eigenDep())
		_, err := fixture.service.Run(context.Background(), man, application.SyncOptions{})
		require.NoError(t, err)

		keptRow, found, err := fixture.ledger.Find("pybind11", "v2.6.2")
		require.NoError(t, err)
		require.True(t, found)
		droppedRow, found, err := fixture.ledger.Find("eigen", "3.3.9")
		require.NoError(t, err)
		require.True(t, found)

		svc := application.NewPruneService(fixture.ledger)

		// when: eigen is no longer declared
		man.Dependencies = man.Dependencies[:1]
		pruned, err := svc.Run(man, false)

		// then
		require.NoError(t, err)
		require.Len(t, pruned, 1)
		assert.Equal(t, "eigen", pruned[0].Name)
		assert.Equal(t, "3.3.9", pruned[0].VersionRef)
		assert.NoDirExists(t, droppedRow.LocalPath)
		assert.DirExists(t, keptRow.LocalPath)

		rows, err := fixture.ledger.List()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "pybind11", rows[0].Name)
	})

	t.Run("should remove the superseded version after a re-pin", func(t *testing.T) {
		t.Parallel()

		// given
		fixture := buildSyncFixture(t)
		oldMan := buildTestManifest(t, pybind11Dep())
		_, err := fixture.service.Run(context.Background(), oldMan, application.SyncOptions{})
		require.NoError(t, err)
		oldPath := fixture.ledger.Recorded[0].LocalPath

		newMan := buildTestManifest(t, manifest.Dependency{
			Spec: entitybuilders.NewDependencySpecBuilder().WithRef("v2.9.0").BuildSpec(),
		})
		_, err = fixture.service.Run(context.Background(), newMan, application.SyncOptions{})
		require.NoError(t, err)
		newPath := fixture.ledger.Recorded[1].LocalPath

		svc := application.NewPruneService(fixture.ledger)

		// when
		pruned, err := svc.Run(newMan, false)

		// then
		require.NoError(t, err)
		require.Len(t, pruned, 1)
		assert.Equal(t, "v2.6.2", pruned[0].VersionRef)
		assert.NoDirExists(t, oldPath)
		assert.DirExists(t, newPath)
	})

	t.Run("should only report candidates with dry run", func(t *testing.T) {
		t.Parallel()

		// given
		fixture := buildSyncFixture(t)
		man := buildTestManifest(t, pybind11Dep(), eigenDep())
		_, err := fixture.service.Run(context.Background(), man, application.SyncOptions{})
		require.NoError(t, err)

		svc := application.NewPruneService(fixture.ledger)

		// when
		man.Dependencies = man.Dependencies[1:]
		pruned, err := svc.Run(man, true)

		// then
		require.NoError(t, err)
		require.Len(t, pruned, 1)
		assert.Equal(t, "pybind11", pruned[0].Name)
		assert.DirExists(t, pruned[0].Path, "dry run should not delete anything")
		assert.Empty(t, fixture.ledger.Deleted)

		rows, err := fixture.ledger.List()
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("should keep everything when the manifest matches the cache", func(t *testing.T) {
		t.Parallel()

		// given
		fixture := buildSyncFixture(t)
		man := buildTestManifest(t, pybind11Dep(), eigenDep())
		_, err := fixture.service.Run(context.Background(), man, application.SyncOptions{})
		require.NoError(t, err)

		svc := application.NewPruneService(fixture.ledger)

		// when
		pruned, err := svc.Run(man, false)

		// then
		require.NoError(t, err)
		assert.Empty(t, pruned)
		assert.Empty(t, fixture.ledger.Deleted)
	})
}
