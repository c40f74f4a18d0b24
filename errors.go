package agentsdk

import "github.com/wagiedev/agent-sdk-go/internal/errors"

// Re-export error types from internal package

// CLINotFoundError indicates an agent CLI binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// CLIConnectionError indicates failure to connect to the CLI.
type CLIConnectionError = errors.CLIConnectionError

// ProcessError indicates the CLI process failed.
type ProcessError = errors.ProcessError

// MessageParseError indicates message parsing failed.
type MessageParseError = errors.MessageParseError

// CLIJSONDecodeError indicates JSON parsing failed for CLI output.
type CLIJSONDecodeError = errors.CLIJSONDecodeError

// UnsupportedFeatureError indicates an operation the active backend's
// capability table does not allow. The operation never reaches the CLI.
type UnsupportedFeatureError = errors.UnsupportedFeatureError

// UnsupportedOptionsError reports every configured option the selected
// backend does not support. Fields lists all violations, not just the first.
type UnsupportedOptionsError = errors.UnsupportedOptionsError

// SDKError is the base interface for all SDK errors.
type SDKError = errors.SDKError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTurnInProgress indicates the previous turn's process is still
	// running. Only spawn-per-turn backends return this.
	ErrTurnInProgress = errors.ErrTurnInProgress

	// ErrSessionIDUnavailable indicates the backend never reported a session
	// identifier, so the conversation cannot be resumed.
	ErrSessionIDUnavailable = errors.ErrSessionIDUnavailable
)
