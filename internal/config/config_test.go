package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	t.Parallel()

	d, err := ParseTTL("", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	d, err = ParseTTL("90s", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseTTL("soon", time.Hour)
	require.Error(t, err)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prsc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		yamlContent string
		wantErr     string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "file registry",
			yamlContent: `
registries:
  - name: local
    file:
      path: /srv/registry
`,
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Registries, 1)
				require.NotNil(t, cfg.Registries[0].File)
				assert.Equal(t, "/srv/registry", cfg.Registries[0].File.Path)
			},
		},
		{
			name: "git registry with token auth and cache",
			yamlContent: `
registries:
  - name: shared
    git:
      url: https://git.example.com/prompts.git
      ref: main
      path: registry
      auth:
        type: token
        tokenEnvVar: GIT_TOKEN
      cache:
        ttl: 30m
`,
			check: func(t *testing.T, cfg *Config) {
				git := cfg.Registries[0].Git
				require.NotNil(t, git)
				assert.Equal(t, "main", git.Ref)
				assert.Equal(t, "GIT_TOKEN", git.Auth.TokenEnvVar)
				assert.Equal(t, "30m", git.Cache.TTL)
				assert.True(t, git.Cache.CacheEnabled())
			},
		},
		{
			name: "http registry",
			yamlContent: `
registries:
  - name: remote
    http:
      url: https://registry.example.com/prompts
      timeout: 10s
      retries: 2
      cache:
        enabled: true
        ttl: 5m
`,
			check: func(t *testing.T, cfg *Config) {
				httpCfg := cfg.Registries[0].HTTP
				require.NotNil(t, httpCfg)
				assert.Equal(t, "10s", httpCfg.Timeout)
				assert.Equal(t, 2, httpCfg.Retries)
				assert.True(t, httpCfg.Cache.Enabled)
			},
		},
		{
			name:        "no registries",
			yamlContent: `registries: []`,
			wantErr:     "at least one registry",
		},
		{
			name: "two sources on one registry",
			yamlContent: `
registries:
  - name: broken
    file:
      path: /srv/registry
    http:
      url: https://registry.example.com
`,
			wantErr: "exactly one of file, git, or http",
		},
		{
			name: "token auth without credential",
			yamlContent: `
registries:
  - name: broken
    git:
      url: https://git.example.com/prompts.git
      auth:
        type: token
`,
			wantErr: "token auth requires",
		},
		{
			name: "unknown auth type",
			yamlContent: `
registries:
  - name: broken
    git:
      url: https://git.example.com/prompts.git
      auth:
        type: kerberos
`,
			wantErr: "unsupported auth type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.yamlContent)

			cfg, err := Load(WithConfigPath(path))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")))

	require.Error(t, err)
}

func TestResolveToken(t *testing.T) {
	t.Run("explicit token wins", func(t *testing.T) {
		tok, err := ResolveToken("explicit", "PRSC_TEST_TOKEN")
		require.NoError(t, err)
		assert.Equal(t, "explicit", tok)
	})

	t.Run("env var fallback", func(t *testing.T) {
		t.Setenv("PRSC_TEST_TOKEN", "from-env")
		tok, err := ResolveToken("", "PRSC_TEST_TOKEN")
		require.NoError(t, err)
		assert.Equal(t, "from-env", tok)
	})

	t.Run("unset env var errors", func(t *testing.T) {
		t.Setenv("PRSC_TEST_TOKEN", "")
		_, err := ResolveToken("", "PRSC_TEST_TOKEN")
		require.Error(t, err)
	})
}
