package backend

import "github.com/wagiedev/agent-sdk-go/internal/config"

// Capabilities records what a backend's protocol can do. One record exists
// per backend kind; it is created once and never mutated.
type Capabilities struct {
	// ControlProtocol indicates support for the bidirectional control
	// request/response envelope (rewind, MCP status, and similar operations).
	ControlProtocol bool

	// ToolApproval indicates the backend can ask the caller to approve
	// tool executions before they run.
	ToolApproval bool

	// Hooks indicates support for lifecycle hook callbacks.
	Hooks bool

	// SDKMCPRouting indicates support for routing MCP tool calls to
	// in-process servers.
	SDKMCPRouting bool

	// PersistentSession indicates the backend keeps one process alive for
	// the whole conversation rather than spawning per turn.
	PersistentSession bool

	// Interrupt indicates the current turn can be interrupted.
	Interrupt bool

	// RuntimeConfigChanges indicates the model and permission mode can be
	// changed mid-session.
	RuntimeConfigChanges bool
}

// CapabilitiesFor returns the capability table for the given backend kind.
func CapabilitiesFor(kind config.BackendKind) Capabilities {
	switch kind {
	case config.BackendCodex:
		return Capabilities{
			ToolApproval:      true,
			PersistentSession: true,
			Interrupt:         true,
		}
	case config.BackendCursor:
		return Capabilities{}
	default:
		// Claude supports the full feature set.
		return Capabilities{
			ControlProtocol:      true,
			ToolApproval:         true,
			Hooks:                true,
			SDKMCPRouting:        true,
			PersistentSession:    true,
			Interrupt:            true,
			RuntimeConfigChanges: true,
		}
	}
}

// Name returns the human-readable backend name used in error messages.
func Name(kind config.BackendKind) string {
	switch kind {
	case config.BackendCodex:
		return "codex"
	case config.BackendCursor:
		return "cursor"
	default:
		return "claude"
	}
}
