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
	"github.com/promptscript-lang/promptscript-go/internal/pathref"
)

// FileSystemRegistry serves documents from a local directory tree.
type FileSystemRegistry struct {
	root string
	ext  string
	name string
}

var _ Registry = (*FileSystemRegistry)(nil)

// NewFileSystemRegistry creates a registry rooted at root. An empty
// extension uses the default .prs.
func NewFileSystemRegistry(name, root, ext string) *FileSystemRegistry {
	if ext == "" {
		ext = config.DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if name == "" {
		name = "file:" + root
	}
	return &FileSystemRegistry{root: root, ext: ext, name: name}
}

// Name identifies the registry.
func (r *FileSystemRegistry) Name() string { return r.name }

// Fetch reads the document at path, appending the default extension
// when the path carries none. Version suffixes are ignored for local
// files.
func (r *FileSystemRegistry) Fetch(_ context.Context, path string) (string, error) {
	full := r.fullPath(path)
	data, err := os.ReadFile(full) //nolint:gosec // registry paths come from user configuration
	if err != nil {
		if os.IsNotExist(err) {
			return "", &FileNotFoundError{Path: path, Registry: r.name}
		}
		return "", fmt.Errorf("failed to read %s: %w", full, err)
	}
	return string(data), nil
}

// Exists reports whether the document is present.
func (r *FileSystemRegistry) Exists(_ context.Context, path string) bool {
	info, err := os.Stat(r.fullPath(path))
	return err == nil && !info.IsDir()
}

// List returns the sorted entry names directly under path. Document
// entries are reported without their extension.
func (r *FileSystemRegistry) List(_ context.Context, path string) []string {
	base, _ := pathref.SplitVersion(path)
	entries, err := os.ReadDir(filepath.Join(r.root, filepath.FromSlash(base)))
	if err != nil {
		slog.Debug("registry list failed", "registry", r.name, "path", path, "error", err)
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

func (r *FileSystemRegistry) fullPath(path string) string {
	base, _ := pathref.SplitVersion(path)
	if filepath.Ext(base) == "" {
		base += r.ext
	}
	return filepath.Join(r.root, filepath.FromSlash(base))
}
