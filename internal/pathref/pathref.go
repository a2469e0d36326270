// Package pathref parses, formats, and resolves PromptScript path
// references. References are either namespaced-absolute
// (@namespace/segment[/segment...][@major.minor.patch]) or relative
// (./segment... or ../segment...).
package pathref

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/promptscript-lang/promptscript-go/pkg/ast"
)

var (
	namespaceRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	versionRe   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	segmentRe   = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
)

// InvalidPathError reports a reference that does not match either the
// absolute or the relative grammar.
type InvalidPathError struct {
	Raw    string
	Reason string
}

// Error returns the error message.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path reference %q: %s", e.Raw, e.Reason)
}

// ResolveOptions carries the roots used to map a reference to a
// concrete location.
type ResolveOptions struct {
	// RegistryRoot is the base directory (or URL path) absolute
	// references resolve under.
	RegistryRoot string

	// BasePath is the directory relative references resolve under,
	// typically the directory of the declaring document.
	BasePath string
}

// Parse parses a raw reference string. The returned error is an
// *InvalidPathError for any shape violation.
func Parse(raw string) (*ast.PathReference, error) {
	if strings.HasPrefix(raw, "@") {
		return parseAbsolute(raw)
	}
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return parseRelative(raw)
	}
	return nil, &InvalidPathError{Raw: raw, Reason: "must start with @namespace/, ./ or ../"}
}

func parseAbsolute(raw string) (*ast.PathReference, error) {
	body := strings.TrimPrefix(raw, "@")

	// A trailing @1.2.3 is a version suffix; @ may not appear anywhere
	// else in the body.
	version := ""
	if at := strings.LastIndex(body, "@"); at >= 0 {
		version = body[at+1:]
		body = body[:at]
		if !versionRe.MatchString(version) {
			return nil, &InvalidPathError{Raw: raw, Reason: fmt.Sprintf("invalid version %q, want major.minor.patch", version)}
		}
	}

	parts := strings.Split(body, "/")
	if len(parts) < 2 {
		return nil, &InvalidPathError{Raw: raw, Reason: "absolute reference needs a namespace and at least one segment"}
	}
	namespace := parts[0]
	if !namespaceRe.MatchString(namespace) {
		return nil, &InvalidPathError{Raw: raw, Reason: fmt.Sprintf("invalid namespace %q", namespace)}
	}
	segments := parts[1:]
	for _, seg := range segments {
		if seg == "." || seg == ".." || !segmentRe.MatchString(seg) {
			return nil, &InvalidPathError{Raw: raw, Reason: fmt.Sprintf("invalid segment %q", seg)}
		}
	}

	return &ast.PathReference{
		Raw:       raw,
		Namespace: namespace,
		Segments:  segments,
		Version:   version,
	}, nil
}

func parseRelative(raw string) (*ast.PathReference, error) {
	parts := strings.Split(raw, "/")

	// Leading ./ and ../ tokens are allowed; once a real segment is
	// seen, no further dot tokens may follow.
	i := 0
	if parts[0] == "." {
		i = 1
	} else {
		for i < len(parts) && parts[i] == ".." {
			i++
		}
	}
	segments := parts[i:]
	if len(segments) == 0 {
		return nil, &InvalidPathError{Raw: raw, Reason: "relative reference needs at least one segment"}
	}
	for _, seg := range segments {
		if seg == "." || seg == ".." || !segmentRe.MatchString(seg) {
			return nil, &InvalidPathError{Raw: raw, Reason: fmt.Sprintf("invalid segment %q", seg)}
		}
	}

	// Keep the dot prefix tokens in Segments so Resolve and Format can
	// reconstruct the original shape.
	all := make([]string, 0, len(parts))
	all = append(all, parts[:i]...)
	all = append(all, segments...)

	return &ast.PathReference{
		Raw:      raw,
		Segments: all,
		Relative: true,
	}, nil
}

// Format renders a reference back to its source form. It round-trips
// the output of Parse, including the version suffix.
func Format(ref *ast.PathReference) string {
	if ref.Relative {
		return strings.Join(ref.Segments, "/")
	}
	out := "@" + ref.Namespace + "/" + strings.Join(ref.Segments, "/")
	if ref.Version != "" {
		out += "@" + ref.Version
	}
	return out
}

// Resolve maps a reference to a concrete path. Absolute references
// resolve under RegistryRoot/namespace/segments with the version
// stripped (version-aware registries read it from the reference
// directly); relative references resolve under BasePath.
func Resolve(ref *ast.PathReference, opts ResolveOptions) (string, error) {
	if ref.Relative {
		base := opts.BasePath
		joined := filepath.Join(append([]string{base}, ref.Segments...)...)
		return filepath.ToSlash(joined), nil
	}
	if ref.Namespace == "" {
		return "", &InvalidPathError{Raw: ref.Raw, Reason: "absolute reference missing namespace"}
	}
	parts := append([]string{opts.RegistryRoot, ref.Namespace}, ref.Segments...)
	return filepath.ToSlash(filepath.Join(parts...)), nil
}

// SplitVersion splits a fetch path of the form base[@version] into its
// base path and optional version suffix. Paths without a version return
// an empty version.
func SplitVersion(path string) (base, version string) {
	at := strings.LastIndex(path, "@")
	if at <= 0 {
		return path, ""
	}
	candidate := path[at+1:]
	if !versionRe.MatchString(candidate) {
		return path, ""
	}
	return path[:at], candidate
}
