package errors

import (
	"errors"
	"fmt"
	"strings"
)

// SDKError is the base interface for all SDK errors.
type SDKError interface {
	error
	IsSDKError() bool
}

// Compile-time verification that all error types implement SDKError.
var (
	_ SDKError = (*CLINotFoundError)(nil)
	_ SDKError = (*CLIConnectionError)(nil)
	_ SDKError = (*ProcessError)(nil)
	_ SDKError = (*MessageParseError)(nil)
	_ SDKError = (*CLIJSONDecodeError)(nil)
	_ SDKError = (*ControlTimeoutError)(nil)
	_ SDKError = (*UnsupportedFeatureError)(nil)
	_ SDKError = (*UnsupportedOptionsError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates no session exists for the requested operation.
	ErrNotConnected = errors.New("not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with New()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrOperationCancelled indicates an operation was cancelled via cancel request.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrUnknownMessageType indicates the message type is not recognized by the SDK.
	// Callers should skip these messages rather than treating them as fatal.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrTurnInProgress indicates a previous turn's process is still running.
	ErrTurnInProgress = errors.New("previous turn is still running; wait for it to complete before sending another message")

	// ErrSessionIDUnavailable indicates the backend never reported a session
	// identifier, so conversation continuity cannot be maintained.
	ErrSessionIDUnavailable = errors.New("session id not available yet; wait for the previous turn to produce output before sending another message")
)

// CLINotFoundError indicates the agent CLI binary was not found.
type CLINotFoundError struct {
	Binary        string
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("%s CLI not found in: %v", e.Binary, e.SearchedPaths)
}

// IsSDKError implements SDKError.
func (e *CLINotFoundError) IsSDKError() bool { return true }

// CLIConnectionError indicates failure to connect to the CLI.
type CLIConnectionError struct {
	Err error
}

func (e *CLIConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to CLI: %v", e.Err)
}

func (e *CLIConnectionError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *CLIConnectionError) IsSDKError() bool { return true }

// ProcessError indicates the CLI process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("CLI process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("CLI process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *ProcessError) IsSDKError() bool { return true }

// MessageParseError indicates message parsing failed.
type MessageParseError struct {
	Message string
	Err     error
	Data    map[string]any
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *MessageParseError) IsSDKError() bool { return true }

// CLIJSONDecodeError indicates JSON parsing failed for CLI output.
// This error preserves the original raw data that failed to parse.
type CLIJSONDecodeError struct {
	RawData string
	Err     error
}

func (e *CLIJSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from CLI: %v", e.Err)
}

func (e *CLIJSONDecodeError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *CLIJSONDecodeError) IsSDKError() bool { return true }

// ControlTimeoutError indicates a control request received no matching
// response within its timeout bound.
type ControlTimeoutError struct {
	Request string
}

func (e *ControlTimeoutError) Error() string {
	return fmt.Sprintf("control request timed out: %s", e.Request)
}

func (e *ControlTimeoutError) Unwrap() error {
	return ErrRequestTimeout
}

// IsSDKError implements SDKError.
func (e *ControlTimeoutError) IsSDKError() bool { return true }

// UnsupportedFeatureError indicates an operation the active backend's
// capability table does not allow. The operation never reaches the
// transport.
type UnsupportedFeatureError struct {
	Feature string
	Backend string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("feature %q is not supported by the %s backend", e.Feature, e.Backend)
}

// IsSDKError implements SDKError.
func (e *UnsupportedFeatureError) IsSDKError() bool { return true }

// UnsupportedOptionsError reports every configured option the selected
// backend does not support. Fields lists all violations, not just the first.
type UnsupportedOptionsError struct {
	Backend string
	Fields  []string
}

func (e *UnsupportedOptionsError) Error() string {
	return fmt.Sprintf("options not supported by the %s backend: %s", e.Backend, strings.Join(e.Fields, ", "))
}

// IsSDKError implements SDKError.
func (e *UnsupportedOptionsError) IsSDKError() bool { return true }
