package cursor

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/agent-sdk-go/internal/backend"
	"github.com/wagiedev/agent-sdk-go/internal/cli"
	"github.com/wagiedev/agent-sdk-go/internal/config"
	"github.com/wagiedev/agent-sdk-go/internal/errors"
	"github.com/wagiedev/agent-sdk-go/internal/message"
	"github.com/wagiedev/agent-sdk-go/internal/subprocess"
)

const (
	// chatIDWaitTimeout bounds the wait for the first turn's chat id.
	chatIDWaitTimeout = 5 * time.Second

	// turnJoinTimeout bounds the wait for a finished turn's reader during Close.
	turnJoinTimeout = 5 * time.Second
)

// Session drives the Cursor Agent CLI, which has no persistent server mode.
// Every turn spawns a fresh `cursor-agent --print` process; the chat id from
// the first turn's init or result event is passed to later turns via
// --resume, which is what makes the conversation multi-turn.
type Session struct {
	log     *slog.Logger
	options *config.Options
	cliPath string

	// newTransport builds the per-turn transport. Overridable in tests.
	newTransport func(prompt, chatID string) config.Transport

	mu             sync.Mutex
	chatID         string
	hasStartedTurn bool
	active         config.Transport // non-nil while a turn's process runs
	turnDone       chan struct{}    // closed when the active turn's reader exits
	closed         bool

	// Parsed events from all turns fan out to both receive paths.
	broadcast *backend.Broadcaster
	msgSub    *backend.Subscription
	respSub   *backend.Subscription

	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
}

// Compile-time verification that Session implements backend.Session.
var _ backend.Session = (*Session)(nil)

// NewSession locates the Cursor Agent CLI and returns a session. No process
// is spawned until the first SendMessage.
func NewSession(ctx context.Context, log *slog.Logger, options *config.Options) (*Session, error) {
	if options == nil {
		options = &config.Options{}
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		log:     log.With("component", "cursor_session"),
		options: options,
	}

	s.broadcast = backend.NewBroadcaster(s.log)
	s.msgSub = s.broadcast.Subscribe()
	s.respSub = s.broadcast.Subscribe()

	if options.Transport == nil {
		discoverer := cli.NewDiscoverer(&cli.Config{
			Binary:     cli.CursorBinary,
			CliPath:    options.CliPath,
			PathEnvVar: cli.CursorPathEnvVar,
			Logger:     s.log,
		})

		cliPath, err := discoverer.Discover(ctx)
		if err != nil {
			return nil, err
		}

		s.cliPath = cliPath
	}

	s.newTransport = func(prompt, chatID string) config.Transport {
		if options.Transport != nil {
			return options.Transport
		}

		return subprocess.NewCLITransport(s.log, subprocess.Command{
			Path:         s.cliPath,
			Args:         cli.BuildCursorArgs(prompt, chatID, options),
			Env:          cli.BuildProcessEnv(options),
			Dir:          options.Cwd,
			DiscardStdin: true,
		}, options)
	}

	return s, nil
}

// setFatalError records the first fatal error and terminates both receive
// paths with it, so a consumer blocked mid-turn wakes up immediately.
func (s *Session) setFatalError(err error) {
	if err == nil {
		return
	}

	s.errMu.Lock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}

	s.errMu.Unlock()

	s.broadcast.Close(err)
}

func (s *Session) getFatalError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

// SendMessage spawns one turn. It fails with ErrTurnInProgress while the
// previous turn's process is still running, and with ErrSessionIDUnavailable
// when a second turn is attempted before any chat id was observed.
func (s *Session) SendMessage(ctx context.Context, prompt string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrClientClosed
	}

	if err := s.reapFinishedTurn(); err != nil {
		return err
	}

	if s.active != nil {
		return errors.ErrTurnInProgress
	}

	if s.hasStartedTurn && s.chatID == "" {
		return errors.ErrSessionIDUnavailable
	}

	if err := s.getFatalError(); err != nil {
		return err
	}

	return s.runTurn(ctx, prompt)
}

// reapFinishedTurn joins a turn whose reader has already exited and clears
// the active slot. Caller must hold s.mu.
func (s *Session) reapFinishedTurn() error {
	if s.active == nil {
		return nil
	}

	select {
	case <-s.turnDone:
		err := s.active.Close()
		s.active = nil
		s.turnDone = nil

		if err != nil {
			s.setFatalError(err)

			return err
		}

		return nil

	default:
		return nil
	}
}

// runTurn spawns the process for one turn and waits briefly for the chat id
// when none is known yet. Caller must hold s.mu.
func (s *Session) runTurn(ctx context.Context, prompt string) error {
	transport := s.newTransport(prompt, s.chatID)

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start turn: %w", err)
	}

	s.log.Debug("Turn started", "resuming", s.chatID != "", "prompt_len", len(prompt))

	turnDone := make(chan struct{})
	chatIDCh := make(chan string, 1)

	// The turn outlives the caller's context; shutdown happens via Close.
	go s.readTurn(context.Background(), transport, turnDone, chatIDCh)

	s.active = transport
	s.turnDone = turnDone
	s.hasStartedTurn = true

	if s.chatID == "" {
		select {
		case id := <-chatIDCh:
			if id != "" {
				s.chatID = id
				s.log.Debug("Chat id captured", "chat_id", id)
			} else {
				s.log.Warn("Turn ended without emitting a chat id")
			}

		case <-time.After(chatIDWaitTimeout):
			s.log.Warn("No chat id observed within wait window")

		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// readTurn consumes one turn's output. The first chat id seen in a system or
// result event is reported on chatIDCh.
func (s *Session) readTurn(
	ctx context.Context,
	transport config.Transport,
	turnDone chan struct{},
	chatIDCh chan<- string,
) {
	defer close(turnDone)

	rawMessages, errs := transport.ReadMessages(ctx)

	reported := false

	// Unblock the chat id wait when the turn ends without one.
	defer func() {
		if !reported {
			select {
			case chatIDCh <- "":
			default:
			}
		}
	}()

	for rawMessages != nil || errs != nil {
		select {
		case raw, ok := <-rawMessages:
			if !ok {
				rawMessages = nil

				continue
			}

			if !reported {
				if id := ExtractChatID(raw); id != "" {
					chatIDCh <- id

					reported = true
				}
			}

			parsed, err := Parse(s.log, raw)
			if err != nil {
				s.log.Warn("Failed to parse event", "error", err)

				continue
			}

			if parsed == nil {
				continue
			}

			s.broadcast.Publish(parsed)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				s.log.Error("Turn failed", "error", err)
				s.setFatalError(err)
			}
		}
	}
}

// ReceiveMessages returns an iterator that yields messages across turns until
// the session is closed or the context is cancelled. It drains its own
// broadcast subscription, so it can run alongside ReceiveResponse.
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
// including) the current turn's ResultMessage. Its subscription is separate
// from ReceiveMessages' and stays usable for the next turn.
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

// SendControlRequest always fails: the Cursor CLI has no control channel.
func (s *Session) SendControlRequest(
	_ context.Context,
	request map[string]any,
) (map[string]any, error) {
	subtype, _ := request["subtype"].(string)

	return nil, &errors.UnsupportedFeatureError{
		Feature: fmt.Sprintf("control request %q", subtype),
		Backend: "cursor",
	}
}

// ServerInfo returns the chat id once one has been observed, or nil.
func (s *Session) ServerInfo() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatID == "" {
		return nil
	}

	return map[string]any{"chatId": s.chatID}
}

// Close terminates any running turn and releases the session.
func (s *Session) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		active := s.active
		turnDone := s.turnDone
		s.active = nil
		s.turnDone = nil
		s.mu.Unlock()

		s.log.Info("Closing session")

		// Buffered messages stay receivable; subscribers see EOF after them.
		s.broadcast.Close(nil)

		if active != nil {
			closeErr = active.Close()

			if turnDone != nil {
				select {
				case <-turnDone:
				case <-time.After(turnJoinTimeout):
					s.log.Warn("Turn reader did not exit within timeout")
				}
			}
		}

		s.log.Info("Session closed")
	})

	return closeErr
}
