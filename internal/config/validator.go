package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "verify.port")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Verify.Port <= 0 || c.Verify.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "verify.port",
			Value:   c.Verify.Port,
			Message: "must be a valid TCP port",
		})
	}

	if c.Verify.Budget <= 0 {
		errors = append(errors, ValidationError{
			Field:   "verify.budget",
			Value:   c.Verify.Budget,
			Message: "must be positive",
		})
	}

	if c.Poll.Interval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.interval",
			Value:   c.Poll.Interval,
			Message: "must be positive",
		})
	}

	for field, d := range map[string]struct {
		value any
		ok    bool
	}{
		"poll.shell_timeout":    {c.Poll.ShellTimeout, c.Poll.ShellTimeout > 0},
		"poll.agent_timeout":    {c.Poll.AgentTimeout, c.Poll.AgentTimeout > 0},
		"poll.shutdown_timeout": {c.Poll.ShutdownTimeout, c.Poll.ShutdownTimeout > 0},
	} {
		if !d.ok {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   d.value,
				Message: "must be positive",
			})
		}
	}

	if c.Device.DataDir == "" {
		errors = append(errors, ValidationError{
			Field:   "device.data_dir",
			Value:   c.Device.DataDir,
			Message: "must not be empty",
		})
	}

	if c.Build.Target == "" {
		errors = append(errors, ValidationError{
			Field:   "build.target",
			Value:   c.Build.Target,
			Message: "must not be empty",
		})
	}

	return errors
}
