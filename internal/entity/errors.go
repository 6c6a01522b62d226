package entity

import "fmt"

// ValidationError reports a malformed or ambiguous entity configuration.
// Replacement is never attempted against a set that fails validation.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid entity configuration: group %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("invalid entity configuration: %s", e.Reason)
}

// PatternError reports a user-authored or derived regex that failed to compile.
type PatternError struct {
	ID      string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q for group %s: %v", e.Pattern, e.ID, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }
