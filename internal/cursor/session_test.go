package cursor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/agent-sdk-go/internal/config"
	sdkerrors "github.com/wagiedev/agent-sdk-go/internal/errors"
	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// mockTurn implements config.Transport for a single spawned turn.
type mockTurn struct {
	mu       sync.Mutex
	prompt   string
	chatID   string
	started  bool
	closed   bool
	messages chan map[string]any
	errors   chan error
}

func newMockTurn(prompt, chatID string) *mockTurn {
	return &mockTurn{
		prompt:   prompt,
		chatID:   chatID,
		messages: make(chan map[string]any, 100),
		errors:   make(chan error, 10),
	}
}

func (m *mockTurn) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *mockTurn) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return m.messages, m.errors
}

func (m *mockTurn) SendMessage(_ context.Context, _ []byte) error { return nil }

func (m *mockTurn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
	}

	return nil
}

func (m *mockTurn) IsReady() bool   { return true }
func (m *mockTurn) EndInput() error { return nil }

// finish simulates the turn's process exiting.
func (m *mockTurn) finish() {
	close(m.messages)
	close(m.errors)
}

// newTestSession returns a session whose turns are served by mock transports.
// Spawned turns are appended to the returned slice in order.
func newTestSession(t *testing.T) (*Session, *[]*mockTurn) {
	t.Helper()

	session, err := NewSession(context.Background(), testLogger(), &config.Options{
		Transport: newMockTurn("", ""), // skips CLI discovery; replaced below
	})
	require.NoError(t, err)

	turns := &[]*mockTurn{}

	var mu sync.Mutex

	session.newTransport = func(prompt, chatID string) config.Transport {
		mu.Lock()
		defer mu.Unlock()

		turn := newMockTurn(prompt, chatID)
		*turns = append(*turns, turn)

		return turn
	}

	t.Cleanup(func() { session.Close() })

	return session, turns
}

func TestSendMessage_FirstTurnCapturesChatID(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	// The init event arrives while SendMessage waits for the chat id.
	require.Eventually(t, func() bool {
		return len(*turns) == 1
	}, 5*time.Second, 10*time.Millisecond)

	(*turns)[0].messages <- map[string]any{
		"type":    "system",
		"subtype": "init",
		"chatId":  "chat-1",
	}

	require.NoError(t, <-done)
	require.Equal(t, map[string]any{"chatId": "chat-1"}, session.ServerInfo())
}

func TestSendMessage_SecondTurnResumes(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "first", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	(*turns)[0].messages <- map[string]any{"type": "system", "chatId": "chat-2"}
	require.NoError(t, <-done)

	(*turns)[0].finish()

	require.NoError(t, session.SendMessage(context.Background(), "second", "default"))
	require.Len(t, *turns, 2)
	require.Equal(t, "chat-2", (*turns)[1].chatID)
	require.Equal(t, "second", (*turns)[1].prompt)
}

func TestSendMessage_RefusesWhileTurnRunning(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "first", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	(*turns)[0].messages <- map[string]any{"type": "system", "chatId": "chat-3"}
	require.NoError(t, <-done)

	// First turn's process is still running.
	err := session.SendMessage(context.Background(), "second", "default")
	require.ErrorIs(t, err, sdkerrors.ErrTurnInProgress)
}

func TestSendMessage_RefusesSecondTurnWithoutChatID(t *testing.T) {
	session, turns := newTestSession(t)

	// First turn ends without ever emitting a chat id.
	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "first", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	(*turns)[0].finish()
	require.NoError(t, <-done)

	err := session.SendMessage(context.Background(), "second", "default")
	require.ErrorIs(t, err, sdkerrors.ErrSessionIDUnavailable)
}

func TestReceiveResponse_YieldsTurnOutput(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	turn := (*turns)[0]
	turn.messages <- map[string]any{"type": "system", "subtype": "init", "chatId": "chat-4"}
	turn.messages <- map[string]any{
		"type":    "assistant",
		"message": map[string]any{"content": "hi there"},
	}
	turn.messages <- map[string]any{
		"type":       "result",
		"session_id": "chat-4",
	}

	require.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received []message.Message

	for msg, err := range session.ReceiveResponse(ctx) {
		require.NoError(t, err)

		received = append(received, msg)
	}

	require.Len(t, received, 3)
	require.IsType(t, &message.SystemMessage{}, received[0])
	require.IsType(t, &message.AssistantMessage{}, received[1])
	require.IsType(t, &message.ResultMessage{}, received[2])
}

func TestReceiveResponse_EndsWhenTurnFails(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	turn := (*turns)[0]
	turn.messages <- map[string]any{"type": "system", "subtype": "init", "chatId": "chat-6"}
	require.NoError(t, <-done)

	// Consumer blocks on the next message with no deadline of its own.
	errCh := make(chan error, 1)

	go func() {
		var last error

		for _, err := range session.ReceiveResponse(context.Background()) {
			if err != nil {
				last = err

				break
			}
		}

		errCh <- last
	}()

	// The CLI process dies mid-turn without emitting a result.
	turn.errors <- fmt.Errorf("process exited unexpectedly")

	select {
	case err := <-errCh:
		require.ErrorContains(t, err, "process exited unexpectedly")
	case <-time.After(5 * time.Second):
		t.Fatal("consumer was not woken by the turn failure")
	}

	// Once the failed turn's reader exits, the session refuses new turns
	// with the recorded error.
	turn.finish()

	require.Eventually(t, func() bool {
		err := session.SendMessage(context.Background(), "again", "default")

		return err != nil && strings.Contains(err.Error(), "process exited unexpectedly")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClose_FlushesBufferedMessages(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	turn := (*turns)[0]
	turn.messages <- map[string]any{"type": "system", "subtype": "init", "chatId": "chat-7"}
	turn.messages <- map[string]any{
		"type":    "assistant",
		"message": map[string]any{"content": "buffered"},
	}
	turn.messages <- map[string]any{"type": "result", "session_id": "chat-7"}

	require.NoError(t, <-done)

	turn.finish()

	// Wait for the reader to drain the turn's output before closing.
	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()

		select {
		case <-session.turnDone:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, session.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Messages buffered at close time are still delivered, in order.
	var received []message.Message

	for msg, err := range session.ReceiveResponse(ctx) {
		require.NoError(t, err)

		received = append(received, msg)
	}

	require.Len(t, received, 3)
	require.IsType(t, &message.SystemMessage{}, received[0])
	require.IsType(t, &message.AssistantMessage{}, received[1])
	require.IsType(t, &message.ResultMessage{}, received[2])

	// The other receive path holds its own copy and ends cleanly.
	var fromMessages []message.Message

	var terminal error

	for msg, err := range session.ReceiveMessages(ctx) {
		if err != nil {
			terminal = err

			break
		}

		fromMessages = append(fromMessages, msg)
	}

	require.ErrorIs(t, terminal, io.EOF)
	require.Len(t, fromMessages, 3)
}

func TestReceiveMessagesAndResponse_BothSeeTurnOutput(t *testing.T) {
	session, turns := newTestSession(t)

	respCh := make(chan []message.Message, 1)

	go func() {
		var out []message.Message

		for msg, err := range session.ReceiveResponse(context.Background()) {
			if err != nil {
				break
			}

			out = append(out, msg)
		}

		respCh <- out
	}()

	msgCh := make(chan []message.Message, 1)

	go func() {
		var out []message.Message

		for msg, err := range session.ReceiveMessages(context.Background()) {
			if err != nil {
				break
			}

			out = append(out, msg)

			if len(out) == 3 {
				break
			}
		}

		msgCh <- out
	}()

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	turn := (*turns)[0]
	turn.messages <- map[string]any{"type": "system", "subtype": "init", "chatId": "chat-8"}
	turn.messages <- map[string]any{
		"type":    "assistant",
		"message": map[string]any{"content": "hi"},
	}
	turn.messages <- map[string]any{"type": "result", "session_id": "chat-8"}

	require.NoError(t, <-done)

	for _, ch := range []chan []message.Message{respCh, msgCh} {
		select {
		case got := <-ch:
			require.Len(t, got, 3)
			require.IsType(t, &message.SystemMessage{}, got[0])
			require.IsType(t, &message.AssistantMessage{}, got[1])
			require.IsType(t, &message.ResultMessage{}, got[2])
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not see the full turn output")
		}
	}
}

func TestSendControlRequest_AlwaysUnsupported(t *testing.T) {
	session, _ := newTestSession(t)

	_, err := session.SendControlRequest(context.Background(), map[string]any{
		"subtype": "interrupt",
	})
	require.Error(t, err)

	var uerr *sdkerrors.UnsupportedFeatureError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "cursor", uerr.Backend)
}

func TestServerInfo_NilBeforeFirstTurn(t *testing.T) {
	session, _ := newTestSession(t)

	require.Nil(t, session.ServerInfo())
}

func TestClose_TerminatesRunningTurn(t *testing.T) {
	session, turns := newTestSession(t)

	done := make(chan error, 1)

	go func() {
		done <- session.SendMessage(context.Background(), "hello", "default")
	}()

	require.Eventually(t, func() bool { return len(*turns) == 1 }, 5*time.Second, 10*time.Millisecond)

	turn := (*turns)[0]
	turn.messages <- map[string]any{"type": "system", "chatId": "chat-5"}
	require.NoError(t, <-done)

	go turn.finish()

	require.NoError(t, session.Close())

	turn.mu.Lock()
	defer turn.mu.Unlock()

	require.True(t, turn.closed)

	err := session.SendMessage(context.Background(), "after close", "default")
	require.ErrorIs(t, err, sdkerrors.ErrClientClosed)
}
