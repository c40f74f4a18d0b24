package agentsdk

import (
	"context"
	"iter"
	"sync"

	"github.com/wagiedev/agent-sdk-go/internal/backend"
	"github.com/wagiedev/agent-sdk-go/internal/client"
	"github.com/wagiedev/agent-sdk-go/internal/codex"
	"github.com/wagiedev/agent-sdk-go/internal/config"
	"github.com/wagiedev/agent-sdk-go/internal/cursor"
	"github.com/wagiedev/agent-sdk-go/internal/errors"
	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// clientWrapper adapts the backend session implementations to the public
// Client interface. Backend selection happens in Start; after that every
// operation is either delegated to the session or rejected against the
// backend's capability table before any process is touched.
type clientWrapper struct {
	mu      sync.Mutex
	kind    config.BackendKind
	caps    backend.Capabilities
	session backend.Session
	closed  bool

	// claude is non-nil only for the Claude backend, which exposes
	// operations beyond the shared session interface.
	claude *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{caps: backend.CapabilitiesFor(config.BackendClaude)}
}

// checkStartable reports whether a new session may be established.
// Caller must hold c.mu.
func (c *clientWrapper) checkStartable() error {
	if c.closed {
		return ErrClientClosed
	}

	if c.session != nil {
		return ErrClientAlreadyConnected
	}

	return nil
}

// Start establishes a connection to the selected agent CLI.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkStartable(); err != nil {
		return err
	}

	return c.connect(ctx, applyAgentOptionsToConfig(opts))
}

// connect selects the backend, validates options against it, and establishes
// the session. Caller must hold c.mu.
func (c *clientWrapper) connect(ctx context.Context, options *config.Options) error {
	c.kind = options.Backend
	c.caps = backend.CapabilitiesFor(c.kind)

	if err := backend.ValidateOptions(c.kind, options); err != nil {
		return err
	}

	switch c.kind {
	case config.BackendCodex:
		session, err := codex.NewSession(ctx, options.Logger, options)
		if err != nil {
			return err
		}

		c.session = session

	case config.BackendCursor:
		session, err := cursor.NewSession(ctx, options.Logger, options)
		if err != nil {
			return err
		}

		c.session = session

	default:
		impl := client.New()
		if err := impl.Start(ctx, options); err != nil {
			return err
		}

		c.claude = impl
		c.session = impl
	}

	return nil
}

// StartWithPrompt establishes a connection and immediately sends an initial prompt.
func (c *clientWrapper) StartWithPrompt(ctx context.Context, prompt string, opts ...Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkStartable(); err != nil {
		return err
	}

	options := applyAgentOptionsToConfig(opts)

	// The Claude client sends the prompt inside its own startup sequence;
	// the other backends start a turn after the session is up.
	if options.Backend == config.BackendClaude || options.Backend == "" {
		if err := backend.ValidateOptions(options.Backend, options); err != nil {
			return err
		}

		impl := client.New()
		if err := impl.StartWithPrompt(ctx, prompt, options); err != nil {
			return err
		}

		c.kind = options.Backend
		c.caps = backend.CapabilitiesFor(c.kind)
		c.claude = impl
		c.session = impl

		return nil
	}

	if err := c.connect(ctx, options); err != nil {
		return err
	}

	return c.session.SendMessage(ctx, prompt, "default")
}

// StartWithStream establishes a connection and streams initial messages.
// Only the Claude backend keeps stdin open for streaming input.
func (c *clientWrapper) StartWithStream(
	ctx context.Context,
	messages iter.Seq[StreamingMessage],
	opts ...Option,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkStartable(); err != nil {
		return err
	}

	options := applyAgentOptionsToConfig(opts)

	if options.Backend != config.BackendClaude && options.Backend != "" {
		return &errors.UnsupportedFeatureError{
			Feature: "streaming input",
			Backend: backend.Name(options.Backend),
		}
	}

	// Convert StreamingMessage (alias) to message.StreamingMessage
	convertedMessages := func(yield func(message.StreamingMessage) bool) {
		for msg := range messages {
			if !yield(msg) {
				return
			}
		}
	}

	impl := client.New()
	if err := impl.StartWithStream(ctx, convertedMessages, options); err != nil {
		return err
	}

	c.kind = options.Backend
	c.caps = backend.CapabilitiesFor(c.kind)
	c.claude = impl
	c.session = impl

	return nil
}

// currentSession snapshots the active session.
func (c *clientWrapper) currentSession() backend.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// currentClaude snapshots the Claude client, which is nil for other backends.
func (c *clientWrapper) currentClaude() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.claude
}

// Query sends a user prompt, starting a new turn.
func (c *clientWrapper) Query(ctx context.Context, prompt string, sessionID ...string) error {
	session := c.currentSession()
	if session == nil {
		return ErrNotConnected
	}

	sid := "default"
	if len(sessionID) > 0 {
		sid = sessionID[0]
	}

	return session.SendMessage(ctx, prompt, sid)
}

// ReceiveMessages returns an iterator that yields messages indefinitely.
func (c *clientWrapper) ReceiveMessages(ctx context.Context) iter.Seq2[Message, error] {
	session := c.currentSession()
	if session == nil {
		return yieldNotConnected
	}

	return session.ReceiveMessages(ctx)
}

// ReceiveResponse returns an iterator that yields messages until a ResultMessage is received.
func (c *clientWrapper) ReceiveResponse(ctx context.Context) iter.Seq2[Message, error] {
	session := c.currentSession()
	if session == nil {
		return yieldNotConnected
	}

	return session.ReceiveResponse(ctx)
}

func yieldNotConnected(yield func(Message, error) bool) {
	yield(nil, ErrNotConnected)
}

// Capabilities reports what the active backend's protocol can do.
func (c *clientWrapper) Capabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.caps
}

// unsupported builds the capability gate error for the active backend.
func (c *clientWrapper) unsupported(feature string) error {
	c.mu.Lock()
	kind := c.kind
	c.mu.Unlock()

	return &errors.UnsupportedFeatureError{
		Feature: feature,
		Backend: backend.Name(kind),
	}
}

// Interrupt stops the agent's current processing.
func (c *clientWrapper) Interrupt(ctx context.Context) error {
	if !c.Capabilities().Interrupt {
		return c.unsupported("interrupt")
	}

	if claude := c.currentClaude(); claude != nil {
		return claude.Interrupt(ctx)
	}

	session := c.currentSession()
	if session == nil {
		return ErrNotConnected
	}

	_, err := session.SendControlRequest(ctx, map[string]any{"subtype": "interrupt"})

	return err
}

// SetPermissionMode changes the permission mode during conversation.
func (c *clientWrapper) SetPermissionMode(ctx context.Context, mode string) error {
	if !c.Capabilities().RuntimeConfigChanges {
		return c.unsupported("set_permission_mode")
	}

	claude := c.currentClaude()
	if claude == nil {
		return ErrNotConnected
	}

	return claude.SetPermissionMode(ctx, mode)
}

// SetModel changes the AI model during conversation.
func (c *clientWrapper) SetModel(ctx context.Context, model *string) error {
	if !c.Capabilities().RuntimeConfigChanges {
		return c.unsupported("set_model")
	}

	claude := c.currentClaude()
	if claude == nil {
		return ErrNotConnected
	}

	return claude.SetModel(ctx, model)
}

// GetServerInfo returns the backend's initialization info.
func (c *clientWrapper) GetServerInfo() map[string]any {
	session := c.currentSession()
	if session == nil {
		return nil
	}

	return session.ServerInfo()
}

// GetMCPStatus queries the CLI for live MCP server connection status.
func (c *clientWrapper) GetMCPStatus(ctx context.Context) (*MCPStatus, error) {
	if !c.Capabilities().ControlProtocol {
		return nil, c.unsupported("mcp_status")
	}

	claude := c.currentClaude()
	if claude == nil {
		return nil, ErrNotConnected
	}

	return claude.GetMCPStatus(ctx)
}

// RewindFiles rewinds tracked files to their state at a specific user message.
func (c *clientWrapper) RewindFiles(ctx context.Context, userMessageID string) error {
	if !c.Capabilities().ControlProtocol {
		return c.unsupported("rewind_files")
	}

	claude := c.currentClaude()
	if claude == nil {
		return ErrNotConnected
	}

	return claude.RewindFiles(ctx, userMessageID)
}

// Close terminates the session and cleans up resources.
func (c *clientWrapper) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.session == nil {
		return nil
	}

	err := c.session.Close()
	c.session = nil
	c.claude = nil

	return err
}

// applyAgentOptionsToConfig converts public options to internal config.Options.
func applyAgentOptionsToConfig(opts []Option) *config.Options {
	options := applyAgentOptions(opts)
	if options == nil {
		return &config.Options{}
	}
	// AgentOptions is a type alias to config.Options, so direct cast works
	return options
}
