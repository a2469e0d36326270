// Package config provides configuration loading for registry
// construction.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the viper environment prefix used by the CLI.
const EnvPrefix = "PRSC"

// DefaultExtension is appended to document paths that carry none.
const DefaultExtension = ".prs"

// Auth type identifiers for git sources.
const (
	// GitAuthToken authenticates clones with a bearer token rewritten
	// into the clone URL.
	GitAuthToken = "token"

	// GitAuthSSH authenticates clones with an SSH key.
	GitAuthSSH = "ssh"
)

// Option defines the interface for configuration options.
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration.
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file.
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure.
type Config struct {
	// Registries are the content sources tried in order when resolving
	// inherit and use targets.
	Registries []RegistryConfig `yaml:"registries"`
}

// RegistryConfig defines a single registry source. Exactly one of
// File, Git, or HTTP must be set.
type RegistryConfig struct {
	// Name is the identifier for this registry, used in logs and
	// composite fallback reporting.
	Name string `yaml:"name"`

	File *FileConfig `yaml:"file,omitempty"`
	Git  *GitConfig  `yaml:"git,omitempty"`
	HTTP *HTTPConfig `yaml:"http,omitempty"`
}

// FileConfig defines a local filesystem registry.
type FileConfig struct {
	// Path is the registry root directory.
	Path string `yaml:"path"`

	// Extension overrides the default .prs document extension.
	Extension string `yaml:"extension,omitempty"`
}

// GitConfig defines a git-backed registry.
type GitConfig struct {
	// URL is the clone URL (HTTP/HTTPS/SSH).
	URL string `yaml:"url"`

	// Ref is the default branch, tag, or commit to check out. Empty
	// means the remote default branch. A versioned path reference
	// (@pkg@1.2.3) overrides this per fetch.
	Ref string `yaml:"ref,omitempty"`

	// Path is a subdirectory within the repository documents are read
	// from.
	Path string `yaml:"path,omitempty"`

	Auth  *GitAuthConfig `yaml:"auth,omitempty"`
	Cache GitCacheConfig `yaml:"cache,omitempty"`
}

// GitAuthConfig configures clone authentication.
type GitAuthConfig struct {
	// Type is "token" or "ssh".
	Type string `yaml:"type"`

	// Token is an explicit credential for token auth.
	Token string `yaml:"token,omitempty"`

	// TokenEnvVar names an environment variable holding the token;
	// used when Token is empty.
	TokenEnvVar string `yaml:"tokenEnvVar,omitempty"`

	// SSHKeyPath is the private key used for ssh auth.
	SSHKeyPath string `yaml:"sshKeyPath,omitempty"`
}

// GitCacheConfig controls the on-disk clone cache.
type GitCacheConfig struct {
	// Enabled defaults to true; set to false to re-clone on every
	// resolution.
	Enabled *bool `yaml:"enabled,omitempty"`

	// TTL is the staleness window before a cached clone is
	// re-validated against the remote, as a Go duration string.
	// Empty means the 1h default.
	TTL string `yaml:"ttl,omitempty"`

	// Dir overrides the default cache directory
	// ($HOME/.cache/promptscript/git).
	Dir string `yaml:"dir,omitempty"`
}

// CacheEnabled reports whether the clone cache is on (the default).
func (c GitCacheConfig) CacheEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HTTPConfig defines an HTTP registry.
type HTTPConfig struct {
	// URL is the base URL document paths resolve against.
	URL string `yaml:"url"`

	// Timeout bounds each request attempt, as a Go duration string.
	Timeout string `yaml:"timeout,omitempty"`

	// Retries is the attempt budget for retryable failures.
	Retries int `yaml:"retries,omitempty"`

	Auth  *HTTPAuthConfig `yaml:"auth,omitempty"`
	Cache HTTPCacheConfig `yaml:"cache,omitempty"`
}

// HTTPAuthConfig configures bearer authentication.
type HTTPAuthConfig struct {
	Token       string `yaml:"token,omitempty"`
	TokenEnvVar string `yaml:"tokenEnvVar,omitempty"`
}

// HTTPCacheConfig controls the in-memory response cache.
type HTTPCacheConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	TTL     string `yaml:"ttl,omitempty"`
}

// ParseTTL parses a TTL string, returning the fallback for an empty
// value.
func ParseTTL(ttl string, fallback time.Duration) (time.Duration, error) {
	if ttl == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", ttl, err)
	}
	return d, nil
}

// Load loads configuration with the given options.
func Load(options ...Option) (*Config, error) {
	cfg := &loaderConfig{}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.path == "" {
		return nil, fmt.Errorf("no configuration source provided")
	}

	data, err := os.ReadFile(cfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfg.path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cfg.path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks structural constraints: at least one registry, and
// exactly one source section per registry entry.
func (c *Config) Validate() error {
	if len(c.Registries) == 0 {
		return fmt.Errorf("at least one registry must be configured")
	}
	for i, reg := range c.Registries {
		name := reg.Name
		if name == "" {
			name = fmt.Sprintf("registries[%d]", i)
		}
		sources := 0
		if reg.File != nil {
			sources++
			if reg.File.Path == "" {
				return fmt.Errorf("registry %s: file path cannot be empty", name)
			}
		}
		if reg.Git != nil {
			sources++
			if reg.Git.URL == "" {
				return fmt.Errorf("registry %s: git url cannot be empty", name)
			}
			if reg.Git.Auth != nil {
				switch reg.Git.Auth.Type {
				case GitAuthToken:
					if reg.Git.Auth.Token == "" && reg.Git.Auth.TokenEnvVar == "" {
						return fmt.Errorf("registry %s: token auth requires token or tokenEnvVar", name)
					}
				case GitAuthSSH:
					if reg.Git.Auth.SSHKeyPath == "" {
						return fmt.Errorf("registry %s: ssh auth requires sshKeyPath", name)
					}
				default:
					return fmt.Errorf("registry %s: unsupported auth type %q", name, reg.Git.Auth.Type)
				}
			}
			if reg.Git.Cache.TTL != "" {
				if _, err := time.ParseDuration(reg.Git.Cache.TTL); err != nil {
					return fmt.Errorf("registry %s: invalid cache ttl: %w", name, err)
				}
			}
		}
		if reg.HTTP != nil {
			sources++
			if reg.HTTP.URL == "" {
				return fmt.Errorf("registry %s: http url cannot be empty", name)
			}
			if reg.HTTP.Timeout != "" {
				if _, err := time.ParseDuration(reg.HTTP.Timeout); err != nil {
					return fmt.Errorf("registry %s: invalid timeout: %w", name, err)
				}
			}
			if reg.HTTP.Cache.TTL != "" {
				if _, err := time.ParseDuration(reg.HTTP.Cache.TTL); err != nil {
					return fmt.Errorf("registry %s: invalid cache ttl: %w", name, err)
				}
			}
		}
		if sources != 1 {
			return fmt.Errorf("registry %s: exactly one of file, git, or http must be set", name)
		}
	}
	return nil
}

// ResolveToken returns the credential for token-style auth, preferring
// the explicit token over the named environment variable.
func ResolveToken(token, envVar string) (string, error) {
	if token != "" {
		return token, nil
	}
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return "", fmt.Errorf("no token or tokenEnvVar configured")
}
