package registry

import (
	"context"
	"errors"
	"log/slog"
)

// CompositeRegistry tries its sub-registries in order: the first
// success wins, and a fetch fails only when every sub-registry fails.
type CompositeRegistry struct {
	registries []Registry
	name       string
}

var _ Registry = (*CompositeRegistry)(nil)

// NewCompositeRegistry creates an ordered fallback over registries.
func NewCompositeRegistry(registries ...Registry) *CompositeRegistry {
	return &CompositeRegistry{registries: registries, name: "composite"}
}

// Name identifies the registry.
func (r *CompositeRegistry) Name() string { return r.name }

// Fetch returns the first sub-registry's content. When all fail the
// errors are joined so callers can still detect a uniform miss with
// errors.As.
func (r *CompositeRegistry) Fetch(ctx context.Context, path string) (string, error) {
	var errs []error
	for _, sub := range r.registries {
		content, err := sub.Fetch(ctx, path)
		if err == nil {
			return content, nil
		}
		slog.Debug("registry fallback", "registry", sub.Name(), "path", path, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", &FileNotFoundError{Path: path, Registry: r.name}
	}
	return "", errors.Join(errs...)
}

// Exists reports whether any sub-registry has the document.
func (r *CompositeRegistry) Exists(ctx context.Context, path string) bool {
	for _, sub := range r.registries {
		if sub.Exists(ctx, path) {
			return true
		}
	}
	return false
}

// List merges the sub-registries' listings in order, dropping
// duplicates from later registries.
func (r *CompositeRegistry) List(ctx context.Context, path string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, sub := range r.registries {
		for _, name := range sub.List(ctx, path) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
