package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/promptscript-lang/promptscript-go/internal/config"
	"github.com/promptscript-lang/promptscript-go/internal/httpclient"
	"github.com/promptscript-lang/promptscript-go/internal/pathref"
)

// HTTPRegistry serves documents from a remote HTTP endpoint. Responses
// are cached in memory by resolved URL when caching is enabled.
type HTTPRegistry struct {
	baseURL string
	ext     string
	client  httpclient.Client
	name    string
}

var _ Registry = (*HTTPRegistry)(nil)

// NewHTTPRegistry creates a registry from its configuration. The
// timeout, retry, auth, and cache settings all flow into the embedded
// HTTP client.
func NewHTTPRegistry(cfg *config.HTTPConfig, name string) (*HTTPRegistry, error) {
	timeout := time.Duration(0)
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid http timeout: %w", err)
		}
		timeout = parsed
	}
	ttl, err := config.ParseTTL(cfg.Cache.TTL, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid http cache ttl: %w", err)
	}

	token := ""
	if cfg.Auth != nil {
		token, err = config.ResolveToken(cfg.Auth.Token, cfg.Auth.TokenEnvVar)
		if err != nil {
			return nil, fmt.Errorf("http auth: %w", err)
		}
	}

	if name == "" {
		name = "http:" + cfg.URL
	}
	return &HTTPRegistry{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		ext:     config.DefaultExtension,
		name:    name,
		client: httpclient.New(httpclient.Options{
			Timeout:      timeout,
			Retries:      cfg.Retries,
			BearerToken:  token,
			CacheEnabled: cfg.Cache.Enabled,
			CacheTTL:     ttl,
		}),
	}, nil
}

// NewHTTPRegistryWithClient creates a registry with an injected
// client, for tests.
func NewHTTPRegistryWithClient(baseURL, name string, client httpclient.Client) *HTTPRegistry {
	return &HTTPRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		ext:     config.DefaultExtension,
		name:    name,
		client:  client,
	}
}

// Name identifies the registry.
func (r *HTTPRegistry) Name() string { return r.name }

// Fetch retrieves the document over HTTP. A 404 maps to
// *FileNotFoundError so the resolver treats remote and local misses
// uniformly.
func (r *HTTPRegistry) Fetch(ctx context.Context, docPath string) (string, error) {
	body, err := r.client.Get(ctx, r.resolveURL(docPath))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return "", &FileNotFoundError{Path: docPath, Registry: r.name}
		}
		return "", err
	}
	return string(body), nil
}

// Exists probes the document; any failure reads as absent.
func (r *HTTPRegistry) Exists(ctx context.Context, docPath string) bool {
	_, err := r.client.Get(ctx, r.resolveURL(docPath))
	if err != nil {
		slog.Debug("http exists probe failed", "registry", r.name, "path", docPath, "error", err)
		return false
	}
	return true
}

// List returns nil: remote registries expose no index endpoint.
func (r *HTTPRegistry) List(_ context.Context, _ string) []string { return nil }

func (r *HTTPRegistry) resolveURL(docPath string) string {
	base, _ := pathref.SplitVersion(docPath)
	if path.Ext(base) == "" {
		base += r.ext
	}
	return r.baseURL + "/" + strings.TrimPrefix(base, "/")
}
