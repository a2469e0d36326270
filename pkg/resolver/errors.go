package resolver

import "strings"

// CircularDependencyError reports an inherit/use cycle. Chain holds the
// normalized document paths in visit order; the first and last entries
// are the same document. A cycle aborts the whole resolution since no
// partial document is meaningful.
type CircularDependencyError struct {
	Chain []string
}

// Error returns the error message with the full chain.
func (e *CircularDependencyError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Chain, " -> ")
}
