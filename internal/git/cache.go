package git

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// DefaultTTL is the staleness window for cached clones.
const DefaultTTL = time.Hour

const (
	repoDirName  = "repo"
	metadataFile = "cachemeta.yaml"
	lockFile     = "cache.lock"
)

// State describes a cache entry at plan time.
type State int

const (
	// StateAbsent means no valid entry exists for the key.
	StateAbsent State = iota

	// StateFresh means the entry exists and its TTL has not elapsed.
	StateFresh

	// StateStale means the entry exists but must be re-validated.
	StateStale
)

// Action is the I/O a cache entry state requires.
type Action int

const (
	// ActionClone creates the entry from scratch.
	ActionClone Action = iota

	// ActionRefresh updates the existing clone in place.
	ActionRefresh

	// ActionReuse serves the existing clone as is.
	ActionReuse
)

// Metadata is the sidecar record stored next to each cached checkout.
// It is written only after the checkout is complete; a directory
// without readable metadata is treated as absent.
type Metadata struct {
	URL         string    `yaml:"url"`
	Ref         string    `yaml:"ref"`
	Commit      string    `yaml:"commit"`
	LastChecked time.Time `yaml:"lastChecked"`
}

// Plan maps an entry state to the action it requires. Pure by design
// so the transition table is testable without any git I/O.
func Plan(state State) Action {
	switch state {
	case StateFresh:
		return ActionReuse
	case StateStale:
		return ActionRefresh
	default:
		return ActionClone
	}
}

// StateOf classifies a metadata record against the TTL. A nil record
// means no valid entry.
func StateOf(meta *Metadata, now time.Time, ttl time.Duration) State {
	if meta == nil {
		return StateAbsent
	}
	if now.Sub(meta.LastChecked) > ttl {
		return StateStale
	}
	return StateFresh
}

// NormalizeURL canonicalizes a clone URL for cache keying: lowercased
// scheme and host, no trailing slash, no .git suffix.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(raw, "/"), ".git")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		// scp-style ssh remotes (git@host:path) do not parse as URLs.
		return strings.ToLower(trimmed)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// CacheKey derives the directory name for a (url, ref) pair: a
// readable slug plus a short content hash to guarantee uniqueness.
func CacheKey(rawURL, ref string) string {
	normalized := NormalizeURL(rawURL)
	if ref == "" {
		ref = "HEAD"
	}
	slug := unsafeKeyChars.ReplaceAllString(strings.ToLower(filepath.Base(normalized)+"-"+ref), "-")
	sum := sha256.Sum256([]byte(normalized + "\x00" + ref))
	return fmt.Sprintf("%s-%x", strings.Trim(slug, "-"), sum[:6])
}

// CacheManager maintains the on-disk clone cache. It is safe for
// concurrent use and tolerates other processes working on the same
// cache root: per-key transitions are serialized with a file lock, and
// an entry only counts once its metadata sidecar exists.
type CacheManager struct {
	root   string
	ttl    time.Duration
	client Client
}

// NewCacheManager creates a manager rooted at dir. A zero TTL uses the
// 1h default; a negative TTL makes every entry immediately stale,
// which re-validates against the remote on each fetch. A nil client
// uses the go-git default.
func NewCacheManager(dir string, ttl time.Duration, client Client) *CacheManager {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if client == nil {
		client = NewDefaultClient()
	}
	return &CacheManager{root: dir, ttl: ttl, client: client}
}

// DefaultCacheDir returns the per-user clone cache location.
func DefaultCacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "promptscript", "git")
	}
	return filepath.Join(os.TempDir(), "promptscript-git-cache")
}

// EnsureCloned guarantees a fresh checkout for (url, ref) and returns
// its worktree directory. Transitions: absent entries are cloned;
// stale entries are refreshed in place, or evicted and re-cloned when
// the refresh fails; fresh entries are reused without touching the
// network.
func (m *CacheManager) EnsureCloned(ctx context.Context, rawURL, ref string, auth AuthOptions) (string, error) {
	key := CacheKey(rawURL, ref)
	entryDir := filepath.Join(m.root, key)
	repoDir := filepath.Join(entryDir, repoDirName)

	if err := os.MkdirAll(entryDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache entry dir: %w", err)
	}

	lock := flock.New(filepath.Join(entryDir, lockFile))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock cache entry: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Re-read under the lock: another process may have completed the
	// clone while we waited.
	meta := m.readMetadata(entryDir)
	state := StateOf(meta, time.Now(), m.ttl)

	switch Plan(state) {
	case ActionReuse:
		slog.Debug("git cache hit", "url", rawURL, "ref", ref, "commit", meta.Commit)
		return repoDir, nil

	case ActionRefresh:
		commit, err := m.client.Refresh(ctx, repoDir, rawURL, ref, auth)
		if err == nil {
			m.writeMetadata(entryDir, rawURL, ref, commit)
			slog.Debug("git cache refreshed", "url", rawURL, "ref", ref, "commit", commit)
			return repoDir, nil
		}
		slog.Warn("git cache refresh failed, evicting and re-cloning",
			"url", rawURL, "ref", ref, "error", err)
		if evictErr := m.evict(entryDir); evictErr != nil {
			return "", evictErr
		}
		fallthrough

	default: // ActionClone
		// Clear any partial content from a cancelled earlier attempt.
		_ = os.RemoveAll(repoDir)
		commit, err := m.client.Clone(ctx, CloneOptions{URL: rawURL, Ref: ref, Dir: repoDir, Auth: auth})
		if err != nil {
			_ = os.RemoveAll(repoDir)
			return "", err
		}
		m.writeMetadata(entryDir, rawURL, ref, commit)
		slog.Debug("git cache cloned", "url", rawURL, "ref", ref, "commit", commit)
		return repoDir, nil
	}
}

// evict removes an entry's content and metadata, keeping the lock file.
func (m *CacheManager) evict(entryDir string) error {
	if err := os.Remove(filepath.Join(entryDir, metadataFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to evict cache metadata: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(entryDir, repoDirName)); err != nil {
		return fmt.Errorf("failed to evict cache entry: %w", err)
	}
	return nil
}

func (m *CacheManager) readMetadata(entryDir string) *Metadata {
	data, err := os.ReadFile(filepath.Join(entryDir, metadataFile))
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		slog.Warn("corrupt cache metadata, treating entry as absent", "dir", entryDir, "error", err)
		return nil
	}
	if meta.LastChecked.IsZero() {
		return nil
	}
	return &meta
}

// writeMetadata marks an entry valid. Written atomically via rename so
// a crash mid-write never leaves behind a readable half-record.
func (m *CacheManager) writeMetadata(entryDir, rawURL, ref, commit string) {
	meta := Metadata{
		URL:         rawURL,
		Ref:         ref,
		Commit:      commit,
		LastChecked: time.Now(),
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		slog.Warn("failed to marshal cache metadata", "error", err)
		return
	}
	tmp := filepath.Join(entryDir, metadataFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		slog.Warn("failed to write cache metadata", "error", err)
		return
	}
	if err := os.Rename(tmp, filepath.Join(entryDir, metadataFile)); err != nil {
		slog.Warn("failed to commit cache metadata", "error", err)
	}
}
