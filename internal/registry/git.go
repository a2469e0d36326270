package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptscript-lang/promptscript-go/internal/config"
	"github.com/promptscript-lang/promptscript-go/internal/git"
	"github.com/promptscript-lang/promptscript-go/internal/pathref"
)

// GitRegistry serves documents from a cached git clone. One registry
// serves many tagged versions of its repository: a version suffix on
// the fetched path (@pkg@2.0.0) overrides the configured default ref,
// keyed separately in the clone cache.
type GitRegistry struct {
	cfg   *config.GitConfig
	cache *git.CacheManager
	auth  git.AuthOptions
	ext   string
	name  string
}

var _ Registry = (*GitRegistry)(nil)

// NewGitRegistry creates a registry from its configuration.
func NewGitRegistry(cfg *config.GitConfig, name string) (*GitRegistry, error) {
	return newGitRegistry(cfg, name, nil)
}

// NewGitRegistryWithClient creates a registry with an injected git
// client, for tests.
func NewGitRegistryWithClient(cfg *config.GitConfig, name string, client git.Client) (*GitRegistry, error) {
	return newGitRegistry(cfg, name, client)
}

func newGitRegistry(cfg *config.GitConfig, name string, client git.Client) (*GitRegistry, error) {
	auth := git.AuthOptions{}
	if cfg.Auth != nil {
		switch cfg.Auth.Type {
		case config.GitAuthToken:
			token, err := config.ResolveToken(cfg.Auth.Token, cfg.Auth.TokenEnvVar)
			if err != nil {
				return nil, fmt.Errorf("git auth: %w", err)
			}
			auth.Token = token
		case config.GitAuthSSH:
			auth.SSHKeyPath = cfg.Auth.SSHKeyPath
		default:
			return nil, fmt.Errorf("unsupported git auth type %q", cfg.Auth.Type)
		}
	}

	ttl, err := config.ParseTTL(cfg.Cache.TTL, git.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("git cache ttl: %w", err)
	}
	if !cfg.Cache.CacheEnabled() {
		// A disabled cache degenerates to "always stale": every fetch
		// re-validates against the remote.
		ttl = -1
	}
	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = git.DefaultCacheDir()
	}

	if name == "" {
		name = "git:" + cfg.URL
	}
	return &GitRegistry{
		cfg:   cfg,
		cache: git.NewCacheManager(cacheDir, ttl, client),
		auth:  auth,
		ext:   config.DefaultExtension,
		name:  name,
	}, nil
}

// Name identifies the registry.
func (r *GitRegistry) Name() string { return r.name }

// Fetch reads a document from the cached checkout. The path's version
// suffix, when present, selects the ref to check out instead of the
// configured default.
func (r *GitRegistry) Fetch(ctx context.Context, docPath string) (string, error) {
	base, version := pathref.SplitVersion(docPath)
	ref := r.cfg.Ref
	if version != "" {
		ref = version
	}

	repoDir, err := r.cache.EnsureCloned(ctx, r.cfg.URL, ref, r.auth)
	if err != nil {
		return "", err
	}

	full := r.filePath(repoDir, base)
	data, err := os.ReadFile(full) //nolint:gosec // path is rooted in the managed clone cache
	if err != nil {
		if os.IsNotExist(err) {
			return "", &FileNotFoundError{Path: docPath, Registry: r.name}
		}
		return "", fmt.Errorf("failed to read %s: %w", full, err)
	}
	return string(data), nil
}

// Exists probes the document. All git failures, including auth and
// missing-ref errors, read as absent.
func (r *GitRegistry) Exists(ctx context.Context, docPath string) bool {
	_, err := r.Fetch(ctx, docPath)
	if err != nil {
		slog.Debug("git exists probe failed", "registry", r.name, "path", docPath, "error", err)
		return false
	}
	return true
}

// List returns the sorted entry names under path in the checked-out
// default ref, empty on any failure.
func (r *GitRegistry) List(ctx context.Context, docPath string) []string {
	base, version := pathref.SplitVersion(docPath)
	ref := r.cfg.Ref
	if version != "" {
		ref = version
	}
	repoDir, err := r.cache.EnsureCloned(ctx, r.cfg.URL, ref, r.auth)
	if err != nil {
		slog.Debug("git list failed", "registry", r.name, "path", docPath, "error", err)
		return nil
	}

	dir := filepath.Join(repoDir, filepath.FromSlash(r.cfg.Path), filepath.FromSlash(base))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			if !strings.HasSuffix(name, r.ext) {
				continue
			}
			name = strings.TrimSuffix(name, r.ext)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *GitRegistry) filePath(repoDir, base string) string {
	if filepath.Ext(base) == "" {
		base += r.ext
	}
	return filepath.Join(repoDir, filepath.FromSlash(r.cfg.Path), filepath.FromSlash(base))
}
