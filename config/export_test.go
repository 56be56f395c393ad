package config

// Test hooks for unexported functions.
var (
	ResolveSecret = resolveSecret
	Validate      = validate
	ExpandHome    = expandHome
)
