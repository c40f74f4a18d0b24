package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/agent-sdk-go/internal/backend"
	"github.com/wagiedev/agent-sdk-go/internal/cli"
	"github.com/wagiedev/agent-sdk-go/internal/config"
	"github.com/wagiedev/agent-sdk-go/internal/errors"
	"github.com/wagiedev/agent-sdk-go/internal/message"
	"github.com/wagiedev/agent-sdk-go/internal/permission"
	"github.com/wagiedev/agent-sdk-go/internal/subprocess"
)

const (
	// handshakeTimeout bounds the initialize and thread/start exchanges.
	handshakeTimeout = 60 * time.Second
)

// Session drives a persistent `codex app-server` subprocess over JSON-RPC 2.0.
//
// Connecting performs a three-step handshake: an initialize request, an
// initialized notification, and a thread/start request whose response carries
// the thread id used for every turn.
type Session struct {
	log       *slog.Logger
	transport config.Transport
	options   *config.Options
	idGen     RequestIDGenerator

	// Responses to our requests, keyed by request id
	pendingMu sync.Mutex
	pending   map[int64]chan map[string]any

	// Parsed notifications fan out to both receive paths.
	broadcast *backend.Broadcaster
	msgSub    *backend.Subscription
	respSub   *backend.Subscription

	threadMu sync.RWMutex
	threadID string

	errMu    sync.RWMutex
	fatalErr error

	eg        *errgroup.Group
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// Compile-time verification that Session implements backend.Session.
var _ backend.Session = (*Session)(nil)

// NewSession spawns the Codex app-server, performs the handshake, and returns
// a connected session.
func NewSession(ctx context.Context, log *slog.Logger, options *config.Options) (*Session, error) {
	if options == nil {
		options = &config.Options{}
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		log:     log.With("component", "codex_session"),
		options: options,
		pending: make(map[int64]chan map[string]any, 10),
		done:    make(chan struct{}),
	}

	s.broadcast = backend.NewBroadcaster(s.log)
	s.msgSub = s.broadcast.Subscribe()
	s.respSub = s.broadcast.Subscribe()

	transport := options.Transport
	if transport == nil {
		discoverer := cli.NewDiscoverer(&cli.Config{
			Binary:     cli.CodexBinary,
			CliPath:    options.CliPath,
			PathEnvVar: cli.CodexPathEnvVar,
			Logger:     s.log,
		})

		cliPath, err := discoverer.Discover(ctx)
		if err != nil {
			return nil, err
		}

		transport = subprocess.NewCLITransport(s.log, subprocess.Command{
			Path: cliPath,
			Args: cli.BuildCodexAppServerArgs(options),
			Env:  cli.BuildProcessEnv(options),
			Dir:  options.Cwd,
		}, options)
	}

	if err := transport.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	s.transport = transport

	var egCtx context.Context

	// Background context: the session outlives the caller's connect timeout
	// and shuts down via the done channel.
	s.eg, egCtx = errgroup.WithContext(context.Background())

	s.eg.Go(func() error {
		return s.readLoop(egCtx)
	})

	if err := s.handshake(ctx); err != nil {
		s.Close()

		return nil, err
	}

	return s, nil
}

// handshake runs initialize, initialized, and thread/start.
func (s *Session) handshake(ctx context.Context) error {
	s.log.Debug("Starting app-server handshake")

	_, err := s.sendRequest(ctx, "initialize", map[string]any{
		"clientName":    "agent-sdk-go",
		"clientVersion": "0.1.0",
	}, handshakeTimeout)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := s.sendRaw(ctx, BuildNotification("initialized", map[string]any{})); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	resp, err := s.sendRequest(ctx, "thread/start", map[string]any{}, handshakeTimeout)
	if err != nil {
		return fmt.Errorf("thread/start: %w", err)
	}

	var threadID string
	if result, ok := resp["result"].(map[string]any); ok {
		threadID, _ = result["threadId"].(string)
	}

	// Without a thread id no turn can ever start, so a response missing one
	// means the handshake failed.
	if threadID == "" {
		return fmt.Errorf("thread/start: response carried no thread id")
	}

	s.threadMu.Lock()
	s.threadID = threadID
	s.threadMu.Unlock()

	s.log.Info("App-server session established", "thread_id", threadID)

	return nil
}

// stop closes the done channel exactly once, failing every pending request.
// It runs both when Close is called and when the read loop exits, so a
// request in flight when the stream dies resolves immediately instead of
// waiting out its timeout.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) setFatalError(err error) {
	if err == nil {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

func (s *Session) getFatalError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

// sendRaw marshals and writes one JSON-RPC object.
func (s *Session) sendRaw(ctx context.Context, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return s.transport.SendMessage(ctx, data)
}

// sendRequest sends a request and waits for its response.
// The pending entry is registered before sending so a fast response cannot
// slip past the read loop.
func (s *Session) sendRequest(
	ctx context.Context,
	method string,
	params map[string]any,
	timeout time.Duration,
) (map[string]any, error) {
	id := s.idGen.NextID()
	responseChan := make(chan map[string]any, 1)

	s.pendingMu.Lock()
	s.pending[id] = responseChan
	s.pendingMu.Unlock()

	removePending := func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}

	if err := s.sendRaw(ctx, BuildRequest(id, method, params)); err != nil {
		removePending()

		return nil, err
	}

	s.log.Debug("Request sent, waiting for response", "method", method, "request_id", id)

	select {
	case resp := <-responseChan:
		if errData, ok := resp["error"].(map[string]any); ok {
			errMsg, _ := errData["message"].(string)

			return nil, fmt.Errorf("%s error: %s", method, errMsg)
		}

		return resp, nil

	case <-s.done:
		removePending()

		if err := s.getFatalError(); err != nil {
			return nil, fmt.Errorf("transport error: %w", err)
		}

		return nil, errors.ErrControllerStopped

	case <-time.After(timeout):
		removePending()

		return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		removePending()

		return nil, ctx.Err()
	}
}

// readLoop reads app-server output and routes responses, server requests, and
// notifications. On exit it fails pending requests and terminates both
// receive paths with whatever ended the stream.
func (s *Session) readLoop(ctx context.Context) (err error) {
	defer s.log.Debug("App-server read loop stopped")
	defer func() {
		s.stop()
		s.broadcast.Close(err)
	}()

	rawMessages, errs := s.transport.ReadMessages(ctx)

	for {
		select {
		case msg, ok := <-rawMessages:
			if !ok {
				s.log.Debug("Message channel closed")

				return nil
			}

			s.route(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				return nil
			}

			if err != nil {
				s.log.Error("Transport error", "error", err)
				s.setFatalError(err)

				return err
			}

		case <-s.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// route dispatches one JSON-RPC object by its shape.
func (s *Session) route(ctx context.Context, msg map[string]any) {
	switch {
	case IsResponse(msg):
		s.routeResponse(msg)

	case IsRequest(msg):
		// Run in a goroutine so approval callbacks cannot stall the read loop.
		s.eg.Go(func() error {
			s.handleServerRequest(ctx, msg)

			return nil
		})

	case IsNotification(msg):
		s.routeNotification(msg)

	default:
		s.log.Debug("Skipping unclassifiable message")
	}
}

func (s *Session) routeResponse(msg map[string]any) {
	id, ok := ResponseID(msg)
	if !ok {
		s.log.Warn("Response with non-numeric id")

		return
	}

	s.pendingMu.Lock()

	responseChan, exists := s.pending[id]
	if exists {
		delete(s.pending, id)
	}

	s.pendingMu.Unlock()

	if !exists {
		// Fire-and-forget requests (turn/start, turn/interrupt) land here.
		s.log.Debug("Response for untracked request", "request_id", id)

		return
	}

	responseChan <- msg
}

func (s *Session) routeNotification(msg map[string]any) {
	method := Method(msg)
	params, _ := msg["params"].(map[string]any)

	parsed, err := ParseNotification(s.log, method, params)
	if err != nil {
		s.log.Warn("Failed to parse notification", "method", method, "error", err)

		return
	}

	if parsed == nil {
		return
	}

	s.broadcast.Publish(parsed)
}

// handleServerRequest answers a server-initiated request. Approval requests
// are mapped onto the tool permission callback; tool calls are declined.
func (s *Session) handleServerRequest(ctx context.Context, msg map[string]any) {
	method := Method(msg)
	id := msg["id"]
	params, _ := msg["params"].(map[string]any)

	s.log.Debug("Handling server request", "method", method)

	var response map[string]any

	switch method {
	case "item/commandExecution/requestApproval":
		command, _ := params["command"].(string)
		response = BuildResponse(id, map[string]any{
			"decision": s.approvalDecision(ctx, "Bash", map[string]any{"command": command}),
		})

	case "item/fileChange/requestApproval":
		filePath, _ := params["filePath"].(string)
		response = BuildResponse(id, map[string]any{
			"decision": s.approvalDecision(ctx, "Edit", map[string]any{"file_path": filePath}),
		})

	case "item/tool/call":
		response = BuildErrorResponse(id, -32601, "Dynamic tool calls not supported")

	default:
		response = BuildErrorResponse(id, -32601, fmt.Sprintf("Unknown server request: %s", method))
	}

	if err := s.sendRaw(ctx, response); err != nil {
		s.log.Error("Failed to send server request response", "method", method, "error", err)
	}
}

// approvalDecision runs the tool permission callback and maps the result onto
// the accept/decline verdict the app-server expects. Without a callback every
// request is accepted.
func (s *Session) approvalDecision(ctx context.Context, toolName string, input map[string]any) string {
	if s.options.CanUseTool == nil {
		return "accept"
	}

	result, err := s.options.CanUseTool(ctx, toolName, input, &permission.Context{})
	if err != nil {
		s.log.Warn("Tool permission callback failed, declining", "tool", toolName, "error", err)

		return "decline"
	}

	if _, ok := result.(*permission.ResultAllow); ok {
		return "accept"
	}

	return "decline"
}

// SendMessage starts a new turn on the active thread. The turn/start request
// is fire-and-forget; output arrives as notifications.
func (s *Session) SendMessage(ctx context.Context, prompt string, _ string) error {
	s.threadMu.RLock()
	threadID := s.threadID
	s.threadMu.RUnlock()

	if threadID == "" {
		return errors.ErrNotConnected
	}

	s.log.Debug("Starting turn", "thread_id", threadID, "prompt_len", len(prompt))

	return s.sendRaw(ctx, BuildRequest(s.idGen.NextID(), "turn/start", map[string]any{
		"threadId": threadID,
		"input": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}))
}

// ReceiveMessages returns an iterator that yields messages until the session
// ends or the context is cancelled. It drains its own broadcast
// subscription, so it can run alongside ReceiveResponse.
func (s *Session) ReceiveMessages(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for {
			msg, err := s.msgSub.Recv(ctx)
			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}

// ReceiveResponse returns an iterator that yields messages until (and
// including) the next ResultMessage. Its subscription is separate from
// ReceiveMessages' and stays usable for the next turn.
func (s *Session) ReceiveResponse(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for {
			msg, err := s.respSub.Recv(ctx)
			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(msg, nil) {
				return
			}

			if _, ok := msg.(*message.ResultMessage); ok {
				return
			}
		}
	}
}

// SendControlRequest supports the interrupt operation; everything else is
// outside the app-server protocol.
func (s *Session) SendControlRequest(
	ctx context.Context,
	request map[string]any,
) (map[string]any, error) {
	subtype, _ := request["subtype"].(string)

	switch subtype {
	case "interrupt":
		s.threadMu.RLock()
		threadID := s.threadID
		s.threadMu.RUnlock()

		if threadID == "" {
			return nil, errors.ErrNotConnected
		}

		err := s.sendRaw(ctx, BuildRequest(s.idGen.NextID(), "turn/interrupt", map[string]any{
			"threadId": threadID,
		}))
		if err != nil {
			return nil, fmt.Errorf("interrupt: %w", err)
		}

		return nil, nil

	default:
		return nil, &errors.UnsupportedFeatureError{
			Feature: fmt.Sprintf("control request %q", subtype),
			Backend: "codex",
		}
	}
}

// ServerInfo returns the active thread id, or nil before the handshake
// completes.
func (s *Session) ServerInfo() map[string]any {
	s.threadMu.RLock()
	defer s.threadMu.RUnlock()

	if s.threadID == "" {
		return nil
	}

	return map[string]any{"threadId": s.threadID}
}

// Close shuts down the app-server. The transport closes stdin first for a
// graceful exit and kills the process after a bounded wait.
func (s *Session) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.log.Info("Closing app-server session")

		s.stop()

		if s.transport != nil {
			closeErr = s.transport.Close()
		}

		if s.eg != nil {
			if err := s.eg.Wait(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		s.log.Info("App-server session closed")
	})

	return closeErr
}
