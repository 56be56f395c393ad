package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rios0rios0/prefetch/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHashTree(t *testing.T) {
	t.Parallel()

	t.Run("should produce the same digest for identical trees", func(t *testing.T) {
		t.Parallel()

		// given
		first := t.TempDir()
		second := t.TempDir()
		for _, root := range []string{first, second} {
			writeFile(t, filepath.Join(root, "include", "pybind11.h"), "#pragma once\n")
			writeFile(t, filepath.Join(root, "README.md"), "pybind11\n")
		}

		// when
		hashA, errA := fsutil.HashTree(first)
		hashB, errB := fsutil.HashTree(second)

		// then
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, hashA, hashB)
		assert.Len(t, hashA, 64)
	})

	t.Run("should change when file content changes", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a.txt"), "one")
		before, err := fsutil.HashTree(root)
		require.NoError(t, err)

		// when
		writeFile(t, filepath.Join(root, "a.txt"), "two")
		after, err := fsutil.HashTree(root)

		// then
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("should ignore the .git directory", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "src", "main.cpp"), "int main() {}\n")
		before, err := fsutil.HashTree(root)
		require.NoError(t, err)

		// when
		writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main\n")
		after, err := fsutil.HashTree(root)

		// then
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("should distinguish the same bytes under different paths", func(t *testing.T) {
		t.Parallel()

		// given
		first := t.TempDir()
		second := t.TempDir()
		writeFile(t, filepath.Join(first, "a.txt"), "same")
		writeFile(t, filepath.Join(second, "b.txt"), "same")

		// when
		hashA, errA := fsutil.HashTree(first)
		hashB, errB := fsutil.HashTree(second)

		// then
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.NotEqual(t, hashA, hashB)
	})
}

func TestDirSize(t *testing.T) {
	t.Parallel()

	t.Run("should sum the sizes of all regular files", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a.txt"), "12345")
		writeFile(t, filepath.Join(root, "sub", "b.txt"), "123")

		// when
		size, err := fsutil.DirSize(root)

		// then
		require.NoError(t, err)
		assert.Equal(t, int64(8), size)
	})
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	t.Run("should hash file contents", func(t *testing.T) {
		t.Parallel()

		// given
		path := filepath.Join(t.TempDir(), "archive.tar.gz")
		writeFile(t, path, "payload")

		// when
		digest, err := fsutil.HashFile(path)

		// then
		require.NoError(t, err)
		// sha256("payload")
		assert.Equal(t, "239f59ed55e737c77147cf55ad0c1b030b6d7ee748a7426952f9b852d5a935e5", digest)
	})

	t.Run("should fail for a missing file", func(t *testing.T) {
		t.Parallel()

		// when
		_, err := fsutil.HashFile(filepath.Join(t.TempDir(), "missing"))

		// then
		assert.Error(t, err)
	})
}
