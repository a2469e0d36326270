// Package registry abstracts the content sources inherit and use
// targets are fetched from: local directories, HTTP endpoints, git
// repositories, and ordered compositions of those.
package registry

import (
	"context"
	"fmt"
)

// Registry is the capability contract the resolver works against.
type Registry interface {
	// Fetch returns the document source at path. Missing documents
	// yield a *FileNotFoundError; registry-specific failures yield
	// their own typed errors.
	Fetch(ctx context.Context, path string) (string, error)

	// Exists reports whether path is fetchable. It never fails:
	// internal errors are swallowed to false.
	Exists(ctx context.Context, path string) bool

	// List returns the entry names under path in a stable order, empty
	// on failure.
	List(ctx context.Context, path string) []string

	// Name identifies the registry in logs and diagnostics.
	Name() string
}

// FileNotFoundError reports a document missing from a registry.
type FileNotFoundError struct {
	Path     string
	Registry string
}

// Error returns the error message.
func (e *FileNotFoundError) Error() string {
	if e.Registry != "" {
		return fmt.Sprintf("document not found in registry %s: %s", e.Registry, e.Path)
	}
	return fmt.Sprintf("document not found: %s", e.Path)
}
