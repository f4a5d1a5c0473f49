package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Outbox delivers relay events to a peer in arrival order. Push never blocks, so a transport
// may push while holding its own locks. A single pump goroutine applies each event to the
// Mirror and then publishes it on the peer's event topic.
type Outbox struct {
	mirror    *Mirror
	publisher message.Publisher
	topic     string
	logger    *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
}

// NewOutbox starts the pump.
func NewOutbox(mirror *Mirror, publisher message.Publisher, topic string, logger *slog.Logger) *Outbox {
	o := &Outbox{
		mirror:    mirror,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		done:      make(chan struct{}),
	}
	o.cond = sync.NewCond(&o.mu)
	go o.pump()
	return o
}

// Push enqueues e. Events pushed after Close are dropped.
func (o *Outbox) Push(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.queue = append(o.queue, e)
	o.cond.Signal()
}

// Close stops the pump after the queue drains or ctx ends.
func (o *Outbox) Close(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.cond.Broadcast()
	o.mu.Unlock()

	select {
	case <-o.done:
	case <-ctx.Done():
	}
}

func (o *Outbox) pump() {
	defer close(o.done)
	for {
		o.mu.Lock()
		for len(o.queue) == 0 && !o.closed {
			o.cond.Wait()
		}
		if len(o.queue) == 0 && o.closed {
			o.mu.Unlock()
			return
		}
		e := o.queue[0]
		o.queue[0] = Event{}
		o.queue = o.queue[1:]
		o.mu.Unlock()

		o.mirror.Apply(e)

		msg, err := ToMessage(e, "")
		if err != nil {
			o.logger.Error("Dropping relay event", attr.String("event_type", string(e.Type)), attr.Error(err))
			continue
		}
		if err := o.publisher.Publish(o.topic, msg); err != nil {
			o.logger.Error("Failed to publish relay event",
				attr.String("event_type", string(e.Type)),
				attr.String("topic", o.topic),
				attr.Error(err),
			)
		}
	}
}
