package errs

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError reports a missing or rejected credential. It is always fatal for a run.
type AuthError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("auth")
	if e.Provider != "" {
		b.WriteString(" (" + e.Provider + ")")
	}
	b.WriteString(": " + e.Message)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Cause }

// RemoteCallError reports a non-success status from a task or calendar service.
type RemoteCallError struct {
	Service string // e.g. "graph", "google-calendar"
	Op      string // e.g. "create event"
	Status  int
	Detail  string
}

func (e *RemoteCallError) Error() string {
	msg := fmt.Sprintf("%s: %s failed with status %d", e.Service, e.Op, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// ConfigError reports an invalid scheduling policy or application setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsRemote(err error) bool {
	var target *RemoteCallError
	return errors.As(err, &target)
}

func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// Status returns the remote status carried by err, or 0.
func Status(err error) int {
	var target *RemoteCallError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}
