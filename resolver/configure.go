package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/zclconf/go-cty/cty"
)

// Reserved option keys that configure the language standard instead of a
// preprocessor define. Matched case-insensitively.
const (
	optionKeyStandard    = "standard"
	optionKeyCppStandard = "cpp_standard"
)

var (
	standardFlagPattern = regexp.MustCompile(`^(c|gnu)\+\+\d{2}[a-z]?$`)
	defineNamePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// buildTargets is the dependency's configuration step: it validates the
// bound options against what the dependency can accept and produces the
// build targets a consumer compiles against. Bindings apply in order; a
// later binding for the same key wins.
func buildTargets(
	spec domain.DependencySpec,
	project domain.ProjectInfo,
	options []domain.OptionBinding,
	srcDir string,
) (domain.BuildTargets, error) {
	defines := make(map[string]string)
	standard := ""

	if project.VersionDefine != "" && project.Version != "" {
		defines[project.VersionDefine] = project.Version
	}

	for _, binding := range options {
		if isStandardKey(binding.Key) {
			value, err := stringValue(spec.Name, binding)
			if err != nil {
				return domain.BuildTargets{}, err
			}
			if !standardFlagPattern.MatchString(value) {
				return domain.BuildTargets{}, domain.NewConfigurationError(spec.Name,
					fmt.Sprintf("unsupported language standard %q", value))
			}
			standard = value
			continue
		}

		if !defineNamePattern.MatchString(binding.Key) {
			return domain.BuildTargets{}, domain.NewConfigurationError(spec.Name,
				fmt.Sprintf("option key %q is not a valid define name", binding.Key))
		}

		if binding.Value.IsNull() {
			return domain.BuildTargets{}, domain.NewConfigurationError(spec.Name,
				fmt.Sprintf("option %q has no value", binding.Key))
		}

		switch binding.Value.Type() {
		case cty.Bool:
			if binding.Value.True() {
				defines[binding.Key] = "1"
			} else {
				// Explicitly disabled options are simply not defined
				delete(defines, binding.Key)
			}
		case cty.String:
			value := binding.Value.AsString()
			if strings.ContainsAny(value, "\n\r") {
				return domain.BuildTargets{}, domain.NewConfigurationError(spec.Name,
					fmt.Sprintf("option %q value must not span lines", binding.Key))
			}
			defines[binding.Key] = value
		default:
			return domain.BuildTargets{}, domain.NewConfigurationError(spec.Name,
				fmt.Sprintf("option %q must be a string or bool, got %s",
					binding.Key, binding.Value.Type().FriendlyName()))
		}
	}

	includeDirs, err := resolveIncludeDirs(spec, srcDir)
	if err != nil {
		return domain.BuildTargets{}, err
	}

	targets := domain.BuildTargets{
		IncludeDirs: includeDirs,
		SourceDir:   srcDir,
	}
	if len(defines) > 0 {
		targets.Defines = defines
	}
	if standard != "" {
		targets.CompileFlags = []string{"-std=" + standard}
	}
	return targets, nil
}

func isStandardKey(key string) bool {
	return strings.EqualFold(key, optionKeyStandard) || strings.EqualFold(key, optionKeyCppStandard)
}

func stringValue(name string, binding domain.OptionBinding) (string, error) {
	if binding.Value.IsNull() || binding.Value.Type() != cty.String {
		return "", domain.NewConfigurationError(name,
			fmt.Sprintf("option %q must be a string", binding.Key))
	}
	return binding.Value.AsString(), nil
}

// resolveIncludeDirs maps the declared include dirs onto the fetched tree.
// Without a declaration, an include/ directory is preferred over the root,
// matching the layout convention of header-only libraries.
func resolveIncludeDirs(spec domain.DependencySpec, srcDir string) ([]string, error) {
	if len(spec.IncludeDirs) == 0 {
		candidate := filepath.Join(srcDir, "include")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return []string{candidate}, nil
		}
		return []string{srcDir}, nil
	}

	dirs := make([]string, 0, len(spec.IncludeDirs))
	for _, dir := range spec.IncludeDirs {
		cleaned := filepath.Clean(filepath.FromSlash(dir))
		if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
			return nil, domain.NewConfigurationError(spec.Name,
				fmt.Sprintf("include dir %q must stay inside the source tree", dir))
		}
		full := filepath.Join(srcDir, cleaned)
		if info, err := os.Stat(full); err != nil || !info.IsDir() {
			return nil, domain.NewConfigurationError(spec.Name,
				fmt.Sprintf("include dir %q does not exist in the fetched tree", dir))
		}
		dirs = append(dirs, full)
	}
	return dirs, nil
}
