// Package broker implements the FIFO job queue and per-request pub/sub
// fanout that decouples the HTTP API from worker processes. A job is
// enqueued once by the API and claimed by exactly one worker; events
// produced while that job runs are published to any number of SSE
// subscribers, with a bounded replay buffer so a subscriber that
// connects late (or reconnects) still sees everything since the job
// started.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// ErrNoJob is returned by Claim when no job became available before the
// wait deadline elapsed. Workers treat this as "poll again", not as a
// failure.
var ErrNoJob = errors.New("broker: no job available")

// ErrClosed is returned by broker operations after Close.
var ErrClosed = errors.New("broker: closed")

// DefaultReplayBuffer is the default number of most-recent events a
// Subscription replays to a newly attached subscriber.
const DefaultReplayBuffer = 64

// DefaultSubGrace is how long a request's event history is retained
// after its terminal event, so a client reconnecting shortly after
// completion still gets the final payload.
const DefaultSubGrace = 300 * time.Second

// Broker is the FIFO queue + pub/sub abstraction consumed by the HTTP
// API (producer) and workers (consumer/producer). Implementations must
// be safe for concurrent use by multiple goroutines.
type Broker interface {
	// Enqueue appends a job to the FIFO queue. Never blocks on a
	// consumer being present.
	Enqueue(ctx context.Context, job *state.Job) error

	// Claim blocks up to wait for a job to become available, FIFO
	// order. Returns ErrNoJob if wait elapses with nothing queued.
	Claim(ctx context.Context, wait time.Duration) (*state.Job, error)

	// Publish appends ev to requestID's event stream and fans it out
	// to any active subscribers. Publishing a terminal event (Kind ==
	// EventComplete or EventError) starts the SUB_GRACE countdown
	// after which the stream's replay buffer is discarded.
	Publish(ctx context.Context, requestID string, ev *state.Event) error

	// Subscribe attaches to requestID's event stream. The returned
	// Subscription first replays buffered events, then streams new
	// ones as they're published. Subscribing to a requestID with no
	// buffered history and no active producer yields an empty,
	// immediately-idle subscription rather than an error.
	Subscribe(ctx context.Context, requestID string) (Subscription, error)

	// Close releases any underlying connections/goroutines.
	Close() error
}

// Subscription streams events for one request to one subscriber.
type Subscription interface {
	// Events yields buffered-then-live events in publish order. The
	// channel is closed when Close is called. MemoryBroker also closes
	// it once the grace period following a terminal event elapses;
	// RedisBroker does not, and closes it only when its pub/sub
	// connection ends.
	Events() <-chan *state.Event

	// Close detaches the subscription and releases its resources.
	// Safe to call multiple times.
	Close()
}
