package manifest

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/rios0rios0/prefetch/domain"
)

// Override is a pre-materialization option binding supplied on the command
// line instead of in the manifest, as a (dependency, key, value) triple.
type Override struct {
	Dependency string
	Binding    domain.OptionBinding
}

// ParseOverride parses one --set argument of the form
// "<dependency>.<KEY>=<value>". Values "true" and "false" bind as bools,
// everything else binds as a string.
func ParseOverride(raw string) (Override, error) {
	assignment := strings.SplitN(raw, "=", 2)
	if len(assignment) != 2 {
		return Override{}, fmt.Errorf("invalid option override %q: expected <dependency>.<KEY>=<value>", raw)
	}

	target := strings.SplitN(assignment[0], ".", 2)
	if len(target) != 2 || target[0] == "" || target[1] == "" {
		return Override{}, fmt.Errorf("invalid option override %q: expected <dependency>.<KEY>=<value>", raw)
	}

	return Override{
		Dependency: target[0],
		Binding: domain.OptionBinding{
			Key:   target[1],
			Value: parseValue(assignment[1]),
		},
	}, nil
}

// ParseOverrides parses a list of --set arguments, failing on the first
// malformed one.
func ParseOverrides(raw []string) ([]Override, error) {
	overrides := make([]Override, 0, len(raw))
	for _, entry := range raw {
		override, err := ParseOverride(entry)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	return overrides, nil
}

func parseValue(raw string) cty.Value {
	switch strings.ToLower(raw) {
	case "true":
		return cty.True
	case "false":
		return cty.False
	default:
		return cty.StringVal(raw)
	}
}
