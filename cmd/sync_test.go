package cmd //nolint:testpackage // tests unexported functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

//nolint:paralleltest // t.Setenv is incompatible with t.Parallel()
func TestResolveJobs(t *testing.T) {
	tests := []struct {
		name     string
		flag     int
		env      string
		expected int
	}{
		{
			name:     "should let the flag win over everything",
			flag:     8,
			env:      "2",
			expected: 8,
		},
		{
			name:     "should apply the env var when the flag is unset",
			flag:     0,
			env:      "3",
			expected: 3,
		},
		{
			name:     "should defer to the configured default when both are unset",
			flag:     0,
			env:      "",
			expected: 0,
		},
		{
			name:     "should ignore a garbage env value",
			flag:     0,
			env:      "many",
			expected: 0,
		},
		{
			name:     "should ignore a non-positive env value",
			flag:     0,
			env:      "-1",
			expected: 0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// given
			if test.env != "" {
				t.Setenv(jobsEnvVar, test.env)
			}

			// when
			jobs := resolveJobs(test.flag)

			// then
			assert.Equal(t, test.expected, jobs)
		})
	}
}
