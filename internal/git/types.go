// Package git provides the clone client and on-disk clone cache backing
// git registries. Clones are shallow and branch-scoped where possible;
// cached checkouts are reused until their TTL elapses and refreshed in
// place, falling back to a full re-clone when the refresh fails.
package git

import (
	"fmt"
	"strings"
)

// AuthOptions carries clone credentials. The zero value means
// anonymous access.
type AuthOptions struct {
	// Token authenticates HTTPS clones; it is sent as basic auth with
	// the x-access-token user, the form hosting providers accept for
	// personal access tokens.
	Token string

	// SSHKeyPath is the private key used for SSH clone URLs.
	SSHKeyPath string
}

// CloneOptions describes one clone request.
type CloneOptions struct {
	// URL is the remote clone URL.
	URL string

	// Ref is the branch, tag, or commit to check out. Empty means the
	// remote default branch.
	Ref string

	// Dir is the destination worktree directory.
	Dir string

	Auth AuthOptions
}

// AuthError reports a clone or fetch rejected for credential reasons.
type AuthError struct {
	URL   string
	Cause error
}

// Error returns the error message.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying transport error.
func (e *AuthError) Unwrap() error { return e.Cause }

// RefNotFoundError reports a requested ref missing from the remote.
type RefNotFoundError struct {
	URL   string
	Ref   string
	Cause error
}

// Error returns the error message.
func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("ref %q not found in %s: %v", e.Ref, e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RefNotFoundError) Unwrap() error { return e.Cause }

// CloneError reports any other clone or fetch failure.
type CloneError struct {
	URL   string
	Cause error
}

// Error returns the error message.
func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CloneError) Unwrap() error { return e.Cause }

// ClassifyError maps a raw clone/fetch failure to the typed taxonomy:
// credential failures to AuthError, missing refs to RefNotFoundError,
// everything else to CloneError.
func ClassifyError(url, ref string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication required"),
		strings.Contains(msg, "authorization failed"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "invalid credentials"),
		strings.Contains(msg, "access denied"):
		return &AuthError{URL: url, Cause: err}
	case strings.Contains(msg, "reference not found"),
		strings.Contains(msg, "couldn't find remote ref"),
		strings.Contains(msg, "pathspec"),
		strings.Contains(msg, "no matching ref"):
		return &RefNotFoundError{URL: url, Ref: ref, Cause: err}
	default:
		return &CloneError{URL: url, Cause: err}
	}
}
