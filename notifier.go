package tock

import (
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// Event is the payload delivered to the subscribed handler on each logical
// completion. Single-value modes carry (mode, channel, value). Buffer modes
// carry (mode, packed channel+length, buffer); see PackedArg. SessionID names
// the session the completion belongs to, which may already have ended by the
// time the handler runs.
type Event struct {
	SessionID ulid.ULID
	Mode      Mode
	Channel   int
	Value     RawType // single-value modes only
	Buffer    *Region // buffer modes only, nil otherwise
}

// PackedArg is the second payload word for buffer-mode events: the channel
// index in the low 8 bits and the buffer length in the remaining high bits.
func (e Event) PackedArg() uint32 {
	n := 0
	if e.Buffer != nil {
		n = e.Buffer.Len()
	}
	return uint32(n)<<8 | uint32(e.Channel)&0xff
}

// Handler is the one registered upcall. It runs on the notifier's dispatch
// goroutine, never on the sample-ready path.
type Handler func(Event)

// Notifier holds the single handler registration and the deferred-dispatch
// machinery. post never blocks the caller: events flow through an unbounded
// queue drained by one dispatch goroutine, so a slow subscriber delays
// delivery but not sampling.
type Notifier struct {
	handler atomic.Pointer[Handler]
	in      chan Event
	out     chan Event
	queue   []Event
}

// NewNotifier creates a Notifier and starts its queue and dispatch goroutines.
func NewNotifier() *Notifier {
	n := &Notifier{
		in:  make(chan Event),
		out: make(chan Event),
	}
	go n.run()
	go n.dispatch()
	return n
}

// Subscribe atomically replaces the registered handler. It always succeeds
// and has no effect on a session in flight. A nil handler unregisters;
// events arriving with no handler are dropped silently, neither buffered nor
// retried.
func (n *Notifier) Subscribe(h Handler) {
	if h == nil {
		n.handler.Store(nil)
		return
	}
	n.handler.Store(&h)
}

// post enqueues one event for deferred delivery. Called by the session
// manager, possibly from the engine's event context.
func (n *Notifier) post(e Event) {
	n.in <- e
}

// Close shuts down the dispatch machinery after draining queued events.
func (n *Notifier) Close() {
	close(n.in)
}

// run shuttles events from the unbuffered input to the dispatcher, spilling
// into an in-memory queue whenever the dispatcher is behind. This keeps post
// effectively non-blocking regardless of subscriber latency.
func (n *Notifier) run() {
	for {
		if len(n.queue) == 0 {
			e, ok := <-n.in
			if !ok {
				close(n.out)
				return
			}
			n.queue = append(n.queue, e)
			continue
		}
		select {
		case n.out <- n.queue[0]:
			n.queue = n.queue[1:]
		case e, ok := <-n.in:
			if !ok {
				for _, queued := range n.queue {
					n.out <- queued
				}
				close(n.out)
				return
			}
			n.queue = append(n.queue, e)
		}
	}
}

func (n *Notifier) dispatch() {
	for e := range n.out {
		if h := n.handler.Load(); h != nil {
			(*h)(e)
		}
	}
}
