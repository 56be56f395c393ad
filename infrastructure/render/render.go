// Package render turns materialized build targets into consumable output:
// compiler flags, environment exports, a CMake snippet, or JSON.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rios0rios0/prefetch/domain"
)

// Format selects the output shape of the targets command.
type Format string

const (
	FormatFlags Format = "flags"
	FormatEnv   Format = "env"
	FormatCMake Format = "cmake"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatFlags, FormatEnv, FormatCMake, FormatJSON:
		return Format(value), nil
	default:
		return "", fmt.Errorf("unknown format %q (expected flags, env, cmake or json)", value)
	}
}

// generatorArchs maps python wheel platform names to CMake generator
// architectures for MSVC cross builds.
var generatorArchs = map[string]string{
	"win32":     "Win32",
	"win-amd64": "x64",
	"win-arm32": "ARM",
	"win-arm64": "ARM64",
}

// GeneratorArch returns the CMake generator architecture for a wheel platform
// name, e.g. "win-amd64" resolves to "x64".
func GeneratorArch(platform string) (string, bool) {
	arch, ok := generatorArchs[platform]
	return arch, ok
}

// Options control rendering.
type Options struct {
	Format Format

	// Platform optionally names a wheel platform; cmake output then carries
	// the matching generator architecture hint.
	Platform string
}

// Targets renders one dependency's build targets to w.
func Targets(w io.Writer, name string, targets domain.BuildTargets, opts Options) error {
	var buffer bytes.Buffer
	var err error

	switch opts.Format {
	case FormatFlags:
		renderFlags(&buffer, targets)
	case FormatEnv:
		renderEnv(&buffer, name, targets)
	case FormatCMake:
		err = renderCMake(&buffer, name, targets, opts.Platform)
	case FormatJSON:
		err = renderJSON(&buffer, name, targets)
	default:
		return fmt.Errorf("unknown format %q (expected flags, env, cmake or json)", opts.Format)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(buffer.Bytes())
	return err
}

// renderFlags emits a single compiler-argument line.
func renderFlags(buffer *bytes.Buffer, targets domain.BuildTargets) {
	var args []string
	for _, dir := range targets.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	for _, key := range sortedKeys(targets.Defines) {
		args = append(args, "-D"+key+"="+targets.Defines[key])
	}
	args = append(args, targets.CompileFlags...)
	fmt.Fprintln(buffer, strings.Join(args, " "))
}

// renderEnv emits shell-exportable variables, one per line. Empty sections
// are omitted.
func renderEnv(buffer *bytes.Buffer, name string, targets domain.BuildTargets) {
	prefix := "PREFETCH_" + envName(name)

	if len(targets.IncludeDirs) > 0 {
		fmt.Fprintf(buffer, "%s_INCLUDE_DIRS=%s\n", prefix, strings.Join(targets.IncludeDirs, ":"))
	}
	if len(targets.Defines) > 0 {
		var pairs []string
		for _, key := range sortedKeys(targets.Defines) {
			pairs = append(pairs, key+"="+targets.Defines[key])
		}
		fmt.Fprintf(buffer, "%s_DEFINES=%s\n", prefix, strings.Join(pairs, ";"))
	}
	if len(targets.CompileFlags) > 0 {
		fmt.Fprintf(buffer, "%s_CFLAGS=%s\n", prefix, strings.Join(targets.CompileFlags, " "))
	}
	if targets.SourceDir != "" {
		fmt.Fprintf(buffer, "%s_SOURCE_DIR=%s\n", prefix, targets.SourceDir)
	}
}

// renderCMake emits an imported INTERFACE library a CMakeLists.txt can
// include() and link against.
func renderCMake(buffer *bytes.Buffer, name string, targets domain.BuildTargets, platform string) error {
	fmt.Fprintf(buffer, "# Generated by prefetch for %s; do not edit.\n", name)

	if platform != "" {
		arch, ok := GeneratorArch(platform)
		if !ok {
			return fmt.Errorf("unknown platform %q (expected one of %s)", platform, strings.Join(sortedKeys(generatorArchs), ", "))
		}
		fmt.Fprintf(buffer, "set(CMAKE_GENERATOR_PLATFORM %q)\n", arch)
	}

	fmt.Fprintf(buffer, "add_library(prefetch::%s INTERFACE IMPORTED)\n", name)
	fmt.Fprintf(buffer, "set_target_properties(prefetch::%s PROPERTIES\n", name)
	if len(targets.IncludeDirs) > 0 {
		fmt.Fprintf(buffer, "    INTERFACE_INCLUDE_DIRECTORIES %q\n", strings.Join(targets.IncludeDirs, ";"))
	}
	if len(targets.Defines) > 0 {
		var pairs []string
		for _, key := range sortedKeys(targets.Defines) {
			pairs = append(pairs, key+"="+targets.Defines[key])
		}
		fmt.Fprintf(buffer, "    INTERFACE_COMPILE_DEFINITIONS %q\n", strings.Join(pairs, ";"))
	}
	if len(targets.CompileFlags) > 0 {
		fmt.Fprintf(buffer, "    INTERFACE_COMPILE_OPTIONS %q\n", strings.Join(targets.CompileFlags, ";"))
	}
	fmt.Fprintln(buffer, ")")
	fmt.Fprintf(buffer, "set(PREFETCH_%s_SOURCE_DIR %q)\n", envName(name), targets.SourceDir)
	return nil
}

// renderJSON emits the targets as a stable machine-readable document.
func renderJSON(buffer *bytes.Buffer, name string, targets domain.BuildTargets) error {
	document := struct {
		Name    string              `json:"name"`
		Targets domain.BuildTargets `json:"targets"`
	}{Name: name, Targets: targets}

	marshaled, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}
	buffer.Write(marshaled)
	buffer.WriteByte('\n')
	return nil
}

// envName makes a dependency name safe as an environment variable fragment.
func envName(name string) string {
	upper := strings.ToUpper(name)
	var out strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		} else {
			out.WriteByte('_')
		}
	}
	return out.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
