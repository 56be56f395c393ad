package version

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Normalize ensures a version has the 'v' prefix for semver compatibility
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// IsNewer compares two version strings and returns true if candidate is newer
func IsNewer(current, candidate string) bool {
	currentNorm := Normalize(current)
	candidateNorm := Normalize(candidate)

	// If both are valid semver, use semver comparison
	if semver.IsValid(currentNorm) && semver.IsValid(candidateNorm) {
		return semver.Compare(candidateNorm, currentNorm) > 0
	}

	// Fall back to string comparison for non-semver versions
	return candidate > current
}

// Diff represents the difference between the pinned and an available version
type Diff struct {
	Current   string
	Available string
	IsMajor   bool
	IsMinor   bool
	IsPatch   bool
}

// Analyze determines the type of version change
func Analyze(current, candidate string) Diff {
	diff := Diff{
		Current:   current,
		Available: candidate,
	}

	currentNorm := Normalize(current)
	candidateNorm := Normalize(candidate)

	if !semver.IsValid(currentNorm) || !semver.IsValid(candidateNorm) {
		// Can't determine diff type for non-semver versions
		return diff
	}

	if semver.Major(currentNorm) != semver.Major(candidateNorm) {
		diff.IsMajor = true
		return diff
	}

	// Extract minor versions (semver package doesn't have Minor function)
	currentParts := strings.Split(strings.TrimPrefix(currentNorm, "v"), ".")
	candidateParts := strings.Split(strings.TrimPrefix(candidateNorm, "v"), ".")

	if len(currentParts) >= 2 && len(candidateParts) >= 2 {
		if currentParts[1] != candidateParts[1] {
			diff.IsMinor = true
			return diff
		}
	}

	diff.IsPatch = true
	return diff
}

// Latest returns the highest version among candidates that is newer than
// current, or "" when none is. Non-semver candidates are ignored.
func Latest(current string, candidates []string) string {
	valid := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if semver.IsValid(Normalize(c)) {
			valid = append(valid, c)
		}
	}

	sort.Slice(valid, func(i, j int) bool {
		return semver.Compare(Normalize(valid[i]), Normalize(valid[j])) > 0
	})

	for _, c := range valid {
		if IsNewer(current, c) {
			return c
		}
	}
	return ""
}
