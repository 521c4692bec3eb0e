// Package errors provides centralized error definitions and error handling
// utilities for the installer. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and the
// fatal/soft/timeout classification the pipeline orchestrator acts on.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - TransportError: transport discovery and bridge/serial failures
//   - DispatchError: a command failed on the device
//   - BuildError: the build tool or toolchain failed
//   - DeployError: staging files onto the device failed
//   - VerifyError: the deployed service never became reachable
//
// Semantic errors represent common conditions:
//   - TimeoutError: a bounded wait elapsed
//
// # Classification
//
// The pipeline treats every error as exactly one of three kinds:
//   - Fatal: abort the run immediately (unrecognized platform, missing
//     toolchain, build failure, missing artifact)
//   - Soft: log a warning and continue with reduced functionality
//   - Timeout: report with a distinct exit status, deployment itself is
//     still considered complete
//
// Use IsFatal, IsSoft and IsTimeout to classify, and errors.Is with the
// sentinel values to test for specific conditions.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rayhunter-dev/installer/internal/util"
)

// maxCapturedOutput bounds the device or tool output carried inside an
// error value. Full output belongs in the log file, not the error chain.
const maxCapturedOutput = 2000

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Transport-related sentinel errors
var (
	// ErrPlatformUnsupported indicates the host platform is not recognized,
	// so no adb bundle can be fetched for it.
	ErrPlatformUnsupported = New("host platform not supported")
	// ErrShellUnavailable indicates the bridge shell transport is unusable.
	ErrShellUnavailable = New("bridge shell unavailable")
	// ErrSerialUnavailable indicates the serial AT channel could not be
	// resolved. Non-fatal: privileged dispatch falls back to the rootshell
	// helper path.
	ErrSerialUnavailable = New("serial channel unavailable")
	// ErrHelperNotInstalled indicates a privileged command had to fall back
	// to the rootshell helper but the helper is not installed on the device.
	ErrHelperNotInstalled = New("rootshell helper not installed")
)

// Build-related sentinel errors
var (
	// ErrToolchainMissing indicates the arm cross compiler is entirely
	// absent and no container engine can stand in for it.
	ErrToolchainMissing = New("cross toolchain missing")
	// ErrArtifactMissing indicates the daemon binary is absent at the
	// expected build output path.
	ErrArtifactMissing = New("build artifact missing")
	// ErrBuildSkipped indicates the rebuild policy elected to keep an
	// existing artifact. Not a failure; callers use it for flow control.
	ErrBuildSkipped = New("build skipped, artifact reused")
)

// General sentinel errors
var (
	// ErrTimeout indicates a bounded wait elapsed.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates the operator interrupted the run.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
	fatal   bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Fatal reports whether the pipeline must abort on this error.
func (e *baseError) Fatal() bool {
	return e.fatal
}

// fatality is implemented by all installer errors; IsFatal uses it.
type fatality interface {
	Fatal() bool
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TransportError represents a transport discovery or usage failure.
//
// Example:
//
//	err := errors.NewTransportError("adb", "bundle download failed", cause)
type TransportError struct {
	baseError
	Transport string
}

// NewTransportError creates a new TransportError. Transport failures are
// fatal for the bridge shell and soft for the serial channel; the caller
// sets that via WithFatal.
func NewTransportError(transport, message string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{message: message, cause: cause},
		Transport: transport,
	}
}

// WithFatal marks the error as pipeline-fatal.
func (e *TransportError) WithFatal() *TransportError {
	e.fatal = true
	return e
}

func (e *TransportError) Error() string {
	prefix := "transport error"
	if e.Transport != "" {
		prefix = fmt.Sprintf("transport error [%s]", e.Transport)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DispatchError represents a command that failed on the device.
//
// Example:
//
//	err := errors.NewDispatchError("mkdir -p /data/rayhunter", cause).
//		WithOutput(out)
type DispatchError struct {
	baseError
	Command string
	Output  string // Captured command output
}

// NewDispatchError creates a new DispatchError. Dispatch failures are soft
// by default; the state-polling primitives are the recovery mechanism.
func NewDispatchError(command string, cause error) *DispatchError {
	return &DispatchError{
		baseError: baseError{message: "command failed", cause: cause},
		Command:   command,
	}
}

// WithOutput attaches captured device output to the error.
func (e *DispatchError) WithOutput(output string) *DispatchError {
	e.Output = util.TruncateString(strings.TrimSpace(output), maxCapturedOutput)
	return e
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("dispatch error [cmd=%q]: %s", e.Command, e.message)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\ndevice output: %s", msg, e.Output)
	}
	return msg
}

func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BuildError represents a build toolchain or build tool failure.
// Build errors are always fatal: a partial deploy is worse than no deploy.
type BuildError struct {
	baseError
	Tool   string // "cargo", "cross" or "docker"
	Target string // target triple
	Output string // tail of the build tool output
}

// NewBuildError creates a new BuildError.
func NewBuildError(message string, cause error) *BuildError {
	return &BuildError{
		baseError: baseError{message: message, cause: cause, fatal: true},
	}
}

// WithTool records which build tool failed.
func (e *BuildError) WithTool(tool string) *BuildError {
	e.Tool = tool
	return e
}

// WithTarget records the build target triple.
func (e *BuildError) WithTarget(target string) *BuildError {
	e.Target = target
	return e
}

// WithOutput attaches build tool output to the error.
func (e *BuildError) WithOutput(output string) *BuildError {
	e.Output = util.TruncateString(strings.TrimSpace(output), maxCapturedOutput)
	return e
}

func (e *BuildError) Error() string {
	var parts []string
	if e.Tool != "" {
		parts = append(parts, fmt.Sprintf("tool=%s", e.Tool))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}

	prefix := "build error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("build error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\nbuild output: %s", msg, e.Output)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *BuildError) Is(target error) bool {
	if _, ok := target.(*BuildError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DeployError represents a failure staging files onto the device.
type DeployError struct {
	baseError
	Path string // device path being staged
}

// NewDeployError creates a new DeployError. Deploy errors are fatal by
// default (a half-staged daemon must not go unnoticed); optional units use
// WithSoft.
func NewDeployError(message string, cause error) *DeployError {
	return &DeployError{
		baseError: baseError{message: message, cause: cause, fatal: true},
	}
}

// WithPath records the device path involved.
func (e *DeployError) WithPath(path string) *DeployError {
	e.Path = path
	return e
}

// WithSoft downgrades the error to a warn-and-continue condition.
func (e *DeployError) WithSoft() *DeployError {
	e.fatal = false
	return e
}

func (e *DeployError) Error() string {
	prefix := "deploy error"
	if e.Path != "" {
		prefix = fmt.Sprintf("deploy error [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *DeployError) Is(target error) bool {
	if _, ok := target.(*DeployError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// VerifyError represents a connectivity verification failure. It is never
// fatal: the deployment is complete, the service just never answered
// within the budget. The CLI maps it to a distinct exit status.
type VerifyError struct {
	baseError
	Port   int
	Budget time.Duration
}

// NewVerifyError creates a new VerifyError.
func NewVerifyError(port int, budget time.Duration, cause error) *VerifyError {
	return &VerifyError{
		baseError: baseError{
			message: fmt.Sprintf("service on port %d not reachable within %s", port, budget),
			cause:   cause,
		},
		Port:   port,
		Budget: budget,
	}
}

func (e *VerifyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("verify error: %s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("verify error: %s", e.message)
}

func (e *VerifyError) Is(target error) bool {
	if _, ok := target.(*VerifyError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// TimeoutError represents a bounded wait that elapsed.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for shell", 5*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for shell (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{message: operation},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the error must abort the pipeline.
// Sentinel fatals (unsupported platform, missing toolchain, missing
// artifact) are fatal regardless of how they were wrapped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrPlatformUnsupported) ||
		Is(err, ErrToolchainMissing) ||
		Is(err, ErrArtifactMissing) {
		return true
	}

	var f fatality
	if As(err, &f) {
		return f.Fatal()
	}

	// Unknown errors abort: the taxonomy only downgrades what it knows.
	return true
}

// IsSoft returns true if the pipeline should log a warning and continue.
func IsSoft(err error) bool {
	if err == nil {
		return false
	}
	return !IsFatal(err) && !IsTimeout(err)
}

// IsTimeout returns true if the error represents a bounded wait that
// elapsed, including connectivity verification running out of budget.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var timeout *TimeoutError
	var verify *VerifyError
	return As(err, &timeout) || As(err, &verify) || Is(err, ErrTimeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to stage config")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to push %s", localPath)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
