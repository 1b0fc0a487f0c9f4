package model

import (
	"fmt"
	"strings"
)

// ErrorKind values returned by the classifier errors below.
const (
	ErrorKindConfiguration = "configuration"
	ErrorKindValidation    = "validation"
)

// ConfigError reports an ontology or rule source that could not be read or parsed.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for callers that branch on failure class.
func (e *ConfigError) ErrorKind() string { return ErrorKindConfiguration }

// ValidationError reports a rule configuration that parsed but is not usable.
// InvalidIDs lists rule ids absent from the ontology, sorted and deduplicated.
type ValidationError struct {
	Source     string
	InvalidIDs []string
	Problems   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.InvalidIDs) > 0 {
		parts = append(parts, "unknown technique ids: "+strings.Join(e.InvalidIDs, ", "))
	}
	parts = append(parts, e.Problems...)
	msg := strings.Join(parts, "; ")
	if e.Source == "" {
		return "validation failed: " + msg
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Source, msg)
}

func (e *ValidationError) ErrorKind() string { return ErrorKindValidation }
