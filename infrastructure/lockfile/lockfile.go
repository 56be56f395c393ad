// Package lockfile reads and writes the prefetch lockfile. The lockfile pins
// every dependency to the immutable identity it first resolved to, so later
// builds fail instead of silently drifting.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rios0rios0/prefetch/domain"
)

// DefaultFile is the lockfile name, written next to the manifest.
const DefaultFile = "prefetch.lock.yaml"

// SupportedVersion is the newest lockfile format this build understands.
const SupportedVersion = 1

const header = "# Generated by prefetch; do not edit. Resolved identities anchor integrity checks.\n"

// File is a loaded lockfile. Mutations happen in memory until Save.
type File struct {
	path string

	Version      int     `yaml:"version"`
	Dependencies []Entry `yaml:"dependencies"`
}

// Entry pins one dependency version to its resolved identity.
type Entry struct {
	Name           string `yaml:"name"`
	SourceLocation string `yaml:"source"`
	VersionRef     string `yaml:"ref"`
	ResolvedID     string `yaml:"resolved"`
	TreeHash       string `yaml:"tree_hash,omitempty"`
	Fetcher        string `yaml:"fetcher"`
}

var _ domain.LockSource = (*File)(nil)

// DefaultPath returns the lockfile path next to the given manifest.
func DefaultPath(manifestPath string) string {
	return filepath.Join(filepath.Dir(manifestPath), DefaultFile)
}

// Load reads the lockfile at path. A missing file is not an error: it loads
// as an empty lockfile that Save will create.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{path: path, Version: SupportedVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %q: %w", path, err)
	}

	file := &File{path: path}
	if err := yaml.Unmarshal(content, file); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile %q: %w", path, err)
	}
	if file.Version > SupportedVersion {
		return nil, fmt.Errorf("lockfile %q has version %d, this build supports up to %d",
			path, file.Version, SupportedVersion)
	}
	return file, nil
}

// LockedEntry returns the pinned identity for (name, versionRef). An entry
// locked under a different version ref does not apply: changing the ref in
// the manifest is an intentional upgrade.
func (f *File) LockedEntry(name, versionRef string) (domain.LockEntry, bool) {
	for _, entry := range f.Dependencies {
		if entry.Name == name && entry.VersionRef == versionRef {
			return domain.LockEntry{
				Name:           entry.Name,
				SourceLocation: entry.SourceLocation,
				VersionRef:     entry.VersionRef,
				ResolvedID:     entry.ResolvedID,
				TreeHash:       entry.TreeHash,
				Fetcher:        entry.Fetcher,
			}, true
		}
	}
	return domain.LockEntry{}, false
}

// Update upserts one entry per materialized dependency, keyed by name.
func (f *File) Update(deps []*domain.MaterializedDependency) {
	for _, dep := range deps {
		f.upsert(Entry{
			Name:           dep.Spec.Name,
			SourceLocation: dep.Spec.SourceLocation,
			VersionRef:     dep.Spec.VersionRef,
			ResolvedID:     dep.ResolvedID,
			TreeHash:       dep.TreeHash,
			Fetcher:        dep.Fetcher,
		})
	}
}

// Retain drops entries whose name is not in names. The sync flow calls this
// with the manifest's dependency names so removed dependencies unlock.
func (f *File) Retain(names []string) {
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}

	kept := f.Dependencies[:0]
	for _, entry := range f.Dependencies {
		if keep[entry.Name] {
			kept = append(kept, entry)
		}
	}
	f.Dependencies = kept
}

func (f *File) upsert(entry Entry) {
	for i := range f.Dependencies {
		if f.Dependencies[i].Name == entry.Name {
			f.Dependencies[i] = entry
			return
		}
	}
	f.Dependencies = append(f.Dependencies, entry)
}

// Save writes the lockfile atomically, entries sorted by name so diffs stay
// reviewable.
func (f *File) Save() error {
	f.Version = SupportedVersion
	sort.Slice(f.Dependencies, func(i, j int) bool {
		return f.Dependencies[i].Name < f.Dependencies[j].Name
	})

	marshaled, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal lockfile: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(f.path), ".prefetch-lock-*")
	if err != nil {
		return fmt.Errorf("failed to stage lockfile: %w", err)
	}
	defer os.Remove(temp.Name())

	if _, err := temp.WriteString(header); err != nil {
		temp.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if _, err := temp.Write(marshaled); err != nil {
		temp.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}

	if err := os.Rename(temp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace lockfile %q: %w", f.path, err)
	}
	return nil
}

// Path returns where the lockfile is (or will be) stored.
func (f *File) Path() string {
	return f.path
}
