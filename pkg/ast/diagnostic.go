package ast

import "fmt"

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityError marks a diagnostic that prevents a usable result.
	SeverityError Severity = "error"

	// SeverityWarning marks a diagnostic the caller may ignore.
	SeverityWarning Severity = "warning"
)

// Well-known diagnostic codes.
const (
	CodeParseError     = "parse-error"
	CodeFileNotFound   = "file-not-found"
	CodeInvalidPath    = "invalid-path"
	CodeFetchFailed    = "fetch-failed"
	CodeDuplicateAlias = "duplicate-alias"
)

// Diagnostic is a problem report attached to a resolution or parse
// result. A nil Location means the problem is not tied to a specific
// position in source.
type Diagnostic struct {
	Message  string
	Code     string
	Severity Severity
	Location *Location
}

// String renders the diagnostic in file:line:col form when a location
// is available.
func (d Diagnostic) String() string {
	if d.Location != nil {
		return fmt.Sprintf("%s:%d:%d: %s: %s [%s]",
			d.Location.File, d.Location.Line, d.Location.Column, d.Severity, d.Message, d.Code)
	}
	return fmt.Sprintf("%s: %s [%s]", d.Severity, d.Message, d.Code)
}

// Errorf builds an error-severity diagnostic.
func Errorf(code string, loc *Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityError,
		Location: loc,
	}
}

// Warningf builds a warning-severity diagnostic.
func Warningf(code string, loc *Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityWarning,
		Location: loc,
	}
}

// HasErrors reports whether any diagnostic in the list has error
// severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
