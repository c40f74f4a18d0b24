package backend

import (
	"context"
	"iter"

	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// Session is a live, possibly multi-turn conversation with one backend
// process (or, for spawn-per-turn backends, a sequence of processes sharing
// one session identifier).
//
// All three protocol adapters implement this interface; callers never see a
// protocol-specific type.
type Session interface {
	// SendMessage starts a new turn with the given prompt. sessionID is
	// passed through to backends whose wire format carries it per message;
	// backends that track their own identifier ignore it.
	SendMessage(ctx context.Context, prompt string, sessionID string) error

	// ReceiveMessages yields every message the backend emits, in emission
	// order, until the session ends. It drains a broadcast subscription of
	// its own, held from session start, so running it concurrently with
	// ReceiveResponse delivers every message to both.
	ReceiveMessages(ctx context.Context) iter.Seq2[message.Message, error]

	// ReceiveResponse yields messages until (and including) the next
	// ResultMessage, then stops. Its subscription is independent of
	// ReceiveMessages' and remains usable for the next turn.
	ReceiveResponse(ctx context.Context) iter.Seq2[message.Message, error]

	// SendControlRequest sends a backend control operation (interrupt,
	// set_model, ...) identified by request["subtype"] and returns the
	// response payload.
	SendControlRequest(ctx context.Context, request map[string]any) (map[string]any, error)

	// ServerInfo returns the cached initialization result, or nil if the
	// backend has no handshake.
	ServerInfo() map[string]any

	// Close terminates the session. Any running process is shut down
	// gracefully first and killed after a bounded wait; background
	// goroutines are joined before Close returns.
	Close() error
}
