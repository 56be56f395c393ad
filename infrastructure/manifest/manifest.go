// Package manifest loads the declarative dependency manifest: which
// dependencies to materialize, from where, at which pinned ref, and the
// option bindings that must be applied before each one is made available.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	logger "github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"

	"github.com/rios0rios0/prefetch/domain"
)

// DefaultFile is the manifest name looked up in the working directory when
// no --manifest flag is given.
const DefaultFile = "prefetch.hcl"

// Manifest is the parsed declarative input for one build graph.
type Manifest struct {
	Path         string
	Project      domain.ProjectInfo
	Dependencies []Dependency
}

// Dependency pairs a declared spec with the option bindings scoped to it,
// in manifest order.
type Dependency struct {
	Spec    domain.DependencySpec
	Options []domain.OptionBinding
}

// Find returns the declared dependency with the given name.
func (m *Manifest) Find(name string) (Dependency, bool) {
	for _, dep := range m.Dependencies {
		if dep.Spec.Name == name {
			return dep, true
		}
	}
	return Dependency{}, false
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses manifest source. The filename is used for diagnostics and for
// the DeclaredAt positions carried into ConflictingVersion errors.
func Parse(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	bodyContent, _, diags := file.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "project"},
			{Type: "dependency", LabelNames: []string{"name"}},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	man := &Manifest{Path: filename}

	for _, block := range bodyContent.Blocks {
		switch block.Type {
		case "project":
			if man.Project != (domain.ProjectInfo{}) {
				logger.Warnf("Ignoring extra project block at %s", block.DefRange.String())
				continue
			}
			project, projectErr := decodeProject(block)
			if projectErr != nil {
				return nil, projectErr
			}
			man.Project = project
		case "dependency":
			dep, depErr := decodeDependency(block)
			if depErr != nil {
				return nil, depErr
			}
			man.Dependencies = append(man.Dependencies, dep)
		}
	}

	if len(man.Dependencies) == 0 {
		return nil, fmt.Errorf("manifest %s declares no dependencies", filename)
	}

	return man, nil
}

// decodeProject reads the optional project block: consumer metadata and the
// define its version is propagated under.
func decodeProject(block *hcl.Block) (domain.ProjectInfo, error) {
	content, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "name"},
			{Name: "version"},
			{Name: "version_define"},
		},
	})
	if diags.HasErrors() {
		return domain.ProjectInfo{}, fmt.Errorf("invalid project block: %w", diags)
	}

	var project domain.ProjectInfo
	var err error
	if project.Name, err = optionalString(content.Attributes["name"]); err != nil {
		return domain.ProjectInfo{}, err
	}
	if project.Version, err = optionalString(content.Attributes["version"]); err != nil {
		return domain.ProjectInfo{}, err
	}
	if project.VersionDefine, err = optionalString(content.Attributes["version_define"]); err != nil {
		return domain.ProjectInfo{}, err
	}
	return project, nil
}

// decodeDependency reads one dependency block into a spec plus its ordered
// option bindings.
func decodeDependency(block *hcl.Block) (Dependency, error) {
	name := ""
	if len(block.Labels) > 0 {
		name = block.Labels[0]
	}
	if name == "" {
		return Dependency{}, fmt.Errorf("dependency block at %s has no name label", block.DefRange.String())
	}

	content, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "source", Required: true},
			{Name: "ref", Required: true},
			{Name: "sha256"},
			{Name: "include_dirs"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "options"},
		},
	})
	if diags.HasErrors() {
		return Dependency{}, fmt.Errorf("invalid dependency %q: %w", name, diags)
	}

	spec := domain.DependencySpec{
		Name:       name,
		DeclaredAt: fmt.Sprintf("%s:%d", block.DefRange.Filename, block.DefRange.Start.Line),
	}

	var err error
	if spec.SourceLocation, err = requiredString(name, content.Attributes["source"]); err != nil {
		return Dependency{}, err
	}
	if spec.VersionRef, err = requiredString(name, content.Attributes["ref"]); err != nil {
		return Dependency{}, err
	}
	if spec.SHA256, err = optionalString(content.Attributes["sha256"]); err != nil {
		return Dependency{}, fmt.Errorf("dependency %q: %w", name, err)
	}
	if spec.IncludeDirs, err = optionalStringList(content.Attributes["include_dirs"]); err != nil {
		return Dependency{}, fmt.Errorf("dependency %q: %w", name, err)
	}

	dep := Dependency{Spec: spec}
	for _, optBlock := range content.Blocks {
		options, optErr := decodeOptions(name, optBlock)
		if optErr != nil {
			return Dependency{}, optErr
		}
		dep.Options = append(dep.Options, options...)
	}

	return dep, nil
}

// decodeOptions reads an options block. Keys are free-form; values must be
// literal (the manifest has no variables). Bindings keep their source order
// since a later binding for the same key wins.
func decodeOptions(depName string, block *hcl.Block) ([]domain.OptionBinding, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid options for dependency %q: %w", depName, diags)
	}

	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		sorted = append(sorted, attr)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	options := make([]domain.OptionBinding, 0, len(sorted))
	for _, attr := range sorted {
		value, valueDiags := attr.Expr.Value(&hcl.EvalContext{})
		if valueDiags.HasErrors() {
			return nil, fmt.Errorf("dependency %q: option %q is not a literal value: %w",
				depName, attr.Name, valueDiags)
		}
		options = append(options, domain.OptionBinding{Key: attr.Name, Value: value})
	}
	return options, nil
}

func requiredString(depName string, attr *hcl.Attribute) (string, error) {
	value, err := stringAttr(attr)
	if err != nil {
		return "", fmt.Errorf("dependency %q: %w", depName, err)
	}
	if value == "" {
		return "", fmt.Errorf("dependency %q: %s must not be empty", depName, attr.Name)
	}
	return value, nil
}

func optionalString(attr *hcl.Attribute) (string, error) {
	if attr == nil {
		return "", nil
	}
	return stringAttr(attr)
}

func stringAttr(attr *hcl.Attribute) (string, error) {
	value, diags := attr.Expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() {
		return "", fmt.Errorf("%s is not a literal value: %w", attr.Name, diags)
	}
	if value.IsNull() || value.Type() != cty.String {
		return "", fmt.Errorf("%s must be a string", attr.Name)
	}
	return value.AsString(), nil
}

func optionalStringList(attr *hcl.Attribute) ([]string, error) {
	if attr == nil {
		return nil, nil
	}
	value, diags := attr.Expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s is not a literal value: %w", attr.Name, diags)
	}
	if value.IsNull() || !value.CanIterateElements() {
		return nil, fmt.Errorf("%s must be a list of strings", attr.Name)
	}

	var out []string
	for it := value.ElementIterator(); it.Next(); {
		_, element := it.Element()
		if element.IsNull() || element.Type() != cty.String {
			return nil, fmt.Errorf("%s must contain only strings", attr.Name)
		}
		out = append(out, element.AsString())
	}
	return out, nil
}
