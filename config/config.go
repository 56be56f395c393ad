package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultParallel is the materialization parallelism when neither the config
// file, the PREFETCH_JOBS variable nor --jobs says otherwise.
const DefaultParallel = 4

// Config is the top-level tool configuration. The manifest describes what to
// fetch; this describes where the cache lives and how to reach the optional
// mirror.
type Config struct {
	CacheRoot string       `yaml:"cache_root"`
	Parallel  int          `yaml:"parallel"`
	Mirror    MirrorConfig `yaml:"mirror"`
}

// MirrorConfig holds the optional S3-compatible remote cache settings.
type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"` // Inline, ${ENV_VAR}, or file path
	SecretKey string `yaml:"secret_key"` // Inline, ${ENV_VAR}, or file path
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		CacheRoot: defaultCacheRoot(),
		Parallel:  DefaultParallel,
	}
}

// Load reads and parses a configuration file, expanding environment variables
// and resolving credential file paths. Missing fields fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	// Resolve credentials (env vars and file paths)
	cfg.Mirror.AccessKey = resolveSecret(cfg.Mirror.AccessKey)
	cfg.Mirror.SecretKey = resolveSecret(cfg.Mirror.SecretKey)

	applyDefaults(&cfg)

	if validateErr := validate(&cfg); validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// FindConfigFile searches for a configuration file in standard locations.
// Returns the path to the first file found or an error if none is found.
func FindConfigFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{
		".",
		".config",
		"configs",
	}
	if homeDir != "" {
		locations = append(
			locations,
			homeDir,
			filepath.Join(homeDir, ".config"),
		)
	}

	patterns := []string{
		".prefetch.yaml",
		".prefetch.yml",
		"prefetch.yaml",
		"prefetch.yml",
	}

	for _, loc := range locations {
		for _, pat := range patterns {
			p := filepath.Join(loc, pat)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	return "", errors.New("config file not found in default locations")
}

// resolveSecret expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the secret from the
// file.
func resolveSecret(raw string) string {
	if raw == "" {
		return raw
	}

	// Expand ${ENV_VAR} references
	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	// If the resolved value is a path to an existing file, read the secret
	// from it
	if info, statErr := os.Stat(resolved); statErr == nil && !info.IsDir() {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read credential file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Debugf("Read credential from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}

// applyDefaults fills unset fields and expands a leading ~ in the cache root.
func applyDefaults(cfg *Config) {
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = defaultCacheRoot()
	} else {
		cfg.CacheRoot = expandHome(cfg.CacheRoot)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = DefaultParallel
	}
}

// validate checks for inconsistent configuration values.
func validate(cfg *Config) error {
	if cfg.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", cfg.Parallel)
	}

	if cfg.Mirror.Endpoint != "" && cfg.Mirror.Bucket == "" {
		return errors.New("mirror.bucket is required when mirror.endpoint is set")
	}
	if cfg.Mirror.Endpoint == "" && cfg.Mirror.Bucket != "" {
		return errors.New("mirror.endpoint is required when mirror.bucket is set")
	}

	return nil
}

func defaultCacheRoot() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ".prefetch-cache"
	}
	return filepath.Join(cacheDir, "prefetch")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
}
