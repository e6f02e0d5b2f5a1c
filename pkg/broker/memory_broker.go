package broker

import (
	"context"
	"sync"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// MemoryBroker is an in-process Broker, useful for tests and single-
// process deployments where the API and worker share one Go runtime.
type MemoryBroker struct {
	replayBuffer int
	subGrace     time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*state.Job
	streams map[string]*memStream
	closed  bool
}

// NewMemoryBroker builds a MemoryBroker with the given replay buffer
// size and subscriber grace period. Zero values fall back to the
// package defaults.
func NewMemoryBroker(replayBuffer int, subGrace time.Duration) *MemoryBroker {
	if replayBuffer <= 0 {
		replayBuffer = DefaultReplayBuffer
	}
	if subGrace <= 0 {
		subGrace = DefaultSubGrace
	}
	b := &MemoryBroker{
		replayBuffer: replayBuffer,
		subGrace:     subGrace,
		streams:      make(map[string]*memStream),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Enqueue implements Broker.
func (b *MemoryBroker) Enqueue(_ context.Context, job *state.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.queue = append(b.queue, job)
	b.cond.Broadcast()
	return nil
}

// Claim implements Broker. It blocks on the broker's condition
// variable, waking on every Enqueue/Close, and gives up once wait
// elapses.
func (b *MemoryBroker) Claim(ctx context.Context, wait time.Duration) (*state.Job, error) {
	deadline := time.Now().Add(wait)

	// sync.Cond has no context-aware wait, so a watcher goroutine
	// broadcasts once the deadline or ctx is done to unblock Wait().
	done := make(chan struct{})
	defer close(done)
	go func() {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-done:
			return
		}
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closed {
			return nil, ErrClosed
		}
		if len(b.queue) > 0 {
			job := b.queue[0]
			b.queue = b.queue[1:]
			return job, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) || time.Now().Equal(deadline) {
			return nil, ErrNoJob
		}
		b.cond.Wait()
	}
}

func (b *MemoryBroker) streamFor(requestID string) *memStream {
	s, ok := b.streams[requestID]
	if !ok {
		s = newMemStream(b.replayBuffer)
		b.streams[requestID] = s
	}
	return s
}

// Publish implements Broker.
func (b *MemoryBroker) Publish(_ context.Context, requestID string, ev *state.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	s := b.streamFor(requestID)
	b.mu.Unlock()

	s.publish(ev)

	if isTerminal(ev.Kind) {
		s.scheduleExpiry(b.subGrace, func() {
			b.mu.Lock()
			delete(b.streams, requestID)
			b.mu.Unlock()
		})
	}
	return nil
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(_ context.Context, requestID string) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	s := b.streamFor(requestID)
	b.mu.Unlock()

	return s.subscribe(), nil
}

// Close implements Broker.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.streams {
		s.closeAll()
	}
	b.streams = nil
	b.cond.Broadcast()
	return nil
}

func isTerminal(kind state.EventKind) bool {
	return kind == state.EventComplete || kind == state.EventError
}

// memStream holds one request's replay buffer and its live subscribers.
type memStream struct {
	mu          sync.Mutex
	buffer      []*state.Event
	maxBuffer   int
	subscribers map[*memSubscription]struct{}
	expireTimer *time.Timer
}

func newMemStream(maxBuffer int) *memStream {
	return &memStream{maxBuffer: maxBuffer, subscribers: make(map[*memSubscription]struct{})}
}

func (s *memStream) publish(ev *state.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, ev)
	if len(s.buffer) > s.maxBuffer {
		s.buffer = s.buffer[len(s.buffer)-s.maxBuffer:]
	}
	for sub := range s.subscribers {
		sub.deliver(ev)
	}
}

func (s *memStream) subscribe() *memSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := newMemSubscription(s)
	for _, ev := range s.buffer {
		sub.deliver(ev)
	}
	s.subscribers[sub] = struct{}{}
	return sub
}

func (s *memStream) detach(sub *memSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, sub)
}

func (s *memStream) scheduleExpiry(grace time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireTimer != nil {
		s.expireTimer.Stop()
	}
	s.expireTimer = time.AfterFunc(grace, func() {
		s.closeAll()
		onExpire()
	})
}

func (s *memStream) closeAll() {
	s.mu.Lock()
	subs := make([]*memSubscription, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscribers = make(map[*memSubscription]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
}

type memSubscription struct {
	stream *memStream
	ch     chan *state.Event
	once   sync.Once
}

func newMemSubscription(stream *memStream) *memSubscription {
	return &memSubscription{stream: stream, ch: make(chan *state.Event, DefaultReplayBuffer)}
}

func (sub *memSubscription) deliver(ev *state.Event) {
	select {
	case sub.ch <- ev:
	default:
		// Slow subscriber: drop rather than block the publisher.
		// The replay buffer on reconnect covers the gap.
	}
}

func (sub *memSubscription) Events() <-chan *state.Event { return sub.ch }

func (sub *memSubscription) Close() {
	sub.stream.detach(sub)
	sub.shutdown()
}

func (sub *memSubscription) shutdown() {
	sub.once.Do(func() { close(sub.ch) })
}
