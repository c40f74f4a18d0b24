package backend

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// broadcastBufferSize is the per-subscriber buffer. A subscriber that lags
// behind by more than this many messages loses the oldest ones.
const broadcastBufferSize = 100

// Broadcaster fans messages out to every active subscriber. Each subscriber
// owns a buffered channel, so concurrent consumers each see every message in
// the order it was published. Publishing never blocks: when a subscriber's
// buffer is full its oldest message is dropped to make room.
//
// A session owns one Broadcaster; its read loop publishes parsed messages
// and closes the Broadcaster with the terminal error (or nil for a clean
// end) once the stream is over.
type Broadcaster struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	err    error
	closed bool

	done chan struct{}
}

// Subscription is one consumer's view of a Broadcaster's message stream.
// Messages published before Subscribe are not replayed.
type Subscription struct {
	b          *Broadcaster
	ch         chan message.Message
	cancelOnce sync.Once
}

// NewBroadcaster creates an empty Broadcaster. log may be nil.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Broadcaster{
		log:  log,
		subs: make(map[*Subscription]struct{}, 2),
		done: make(chan struct{}),
	}
}

// Subscribe registers a new subscriber. Subscribing after Close returns a
// subscription that reports the terminal state immediately.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		b:  b,
		ch: make(chan message.Message, broadcastBufferSize),
	}

	b.mu.Lock()
	if !b.closed {
		b.subs[sub] = struct{}{}
	}
	b.mu.Unlock()

	return sub
}

// Publish delivers msg to every subscriber. After Close it is a no-op.
func (b *Broadcaster) Publish(msg message.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber lags; drop its oldest message to make room.
			select {
			case <-sub.ch:
				b.log.Warn("Subscriber lagging, dropped oldest message")
			default:
			}

			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

// Close records the terminal error (nil for a clean end) and wakes every
// subscriber. Only the first call takes effect.
func (b *Broadcaster) Close(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.err = err

	close(b.done)
}

// Err returns the terminal error recorded by Close, if any.
func (b *Broadcaster) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

// Done returns a channel that is closed once the Broadcaster is closed.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// Cancel removes the subscription. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
	})
}

// Recv blocks until the next message, the Broadcaster's terminal state, or
// context cancellation. Messages still buffered when the Broadcaster closes
// are drained before the terminal state is reported: once the buffer is
// empty, Recv returns the terminal error, or io.EOF for a clean end.
func (s *Subscription) Recv(ctx context.Context) (message.Message, error) {
	// Buffered messages win over a concurrently closed Broadcaster.
	select {
	case msg := <-s.ch:
		return msg, nil
	default:
	}

	select {
	case msg := <-s.ch:
		return msg, nil

	case <-s.b.done:
		select {
		case msg := <-s.ch:
			return msg, nil
		default:
		}

		if err := s.b.Err(); err != nil {
			return nil, err
		}

		return nil, io.EOF

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
