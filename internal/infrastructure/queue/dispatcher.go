package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/projectsphere/identity-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Sender delivers one notification. Implementations own rendering and
// transport; errors are reported back for logging only.
type Sender interface {
	Send(ctx context.Context, n ports.Notification) error
}

// Dispatcher implements ports.Notifier with a fixed set of workers sharded
// by recipient email, preserving per-recipient delivery order. Dispatch is
// fire-and-forget: delivery failures are logged, never propagated.
type Dispatcher struct {
	workers []chan ports.Notification
	sender  Sender
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender Sender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.Notification, numWorkers),
		sender:  sender,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Notification, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Notify enqueues a notification for its recipient's worker. Non-blocking
// up to channelBuffer capacity; overflow drops the message with a log line
// rather than stalling the request path.
func (d *Dispatcher) Notify(n ports.Notification) {
	select {
	case d.workers[d.shardIndex(n.Email)] <- n:
	default:
		d.log.Warn().Str("email", n.Email).Str("kind", string(n.Kind)).Msg("notification queue full, dropping")
	}
}

// shardIndex maps an email deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := d.sender.Send(ctx, n); err != nil {
				d.log.Error().Err(err).
					Str("email", n.Email).
					Str("kind", string(n.Kind)).
					Int("worker_id", id).
					Msg("notification delivery failed")
			}
		}
	}
}
