package progress

import (
	"sync"
	"time"
)

// DefaultBuffer is the delivery buffer applied when NewChannel is given a
// non-positive size.
const DefaultBuffer = 64

// Channel is a single-writer, single-reader stream of Events for one
// filing run.
//
// Emit never blocks the producer: events land in an internal queue and a
// dispatcher goroutine forwards them, in order, to the consumer side. The
// channel seals itself after a terminal event (done, or error with
// Recoverable=false); later emissions are silently dropped so a late
// writer cannot crash a finished run.
type Channel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	sealed bool

	out chan Event
}

// NewChannel creates a channel whose consumer side has the given buffer.
// A non-positive size selects DefaultBuffer.
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	c := &Channel{out: make(chan Event, buffer)}
	c.cond = sync.NewCond(&c.mu)
	go c.dispatch()
	return c
}

// dispatch drains the queue into the consumer channel in FIFO order and
// closes it once the channel is sealed and fully drained.
func (c *Channel) dispatch() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.sealed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 && c.sealed {
			c.mu.Unlock()
			close(c.out)
			return
		}
		e := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.out <- e
	}
}

// Events returns the consumer side of the channel. Exactly one consumer
// may range over it; it closes after the terminal event is delivered.
func (c *Channel) Events() <-chan Event {
	return c.out
}

// Emit enqueues one event in FIFO order without blocking. It reports
// whether the event was accepted: false means the channel was already
// sealed and the event was dropped. A terminal event seals the channel.
func (c *Channel) Emit(e Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	c.queue = append(c.queue, e)
	if e.Terminal() {
		c.sealed = true
	}
	c.cond.Signal()
	return true
}

// Progress emits a progress event for the given step.
func (c *Channel) Progress(step Step, message string) bool {
	return c.Emit(Event{Type: TypeProgress, Step: step, Message: message})
}

// Warn emits a recoverable error event. The run continues.
func (c *Channel) Warn(step Step, code, message string) bool {
	return c.Emit(Event{Type: TypeError, Step: step, Code: code, Message: message, Recoverable: true})
}

// Fail emits the terminal error event and seals the channel.
func (c *Channel) Fail(step Step, code, message string) bool {
	return c.Emit(Event{Type: TypeError, Step: step, Code: code, Message: message})
}

// Done emits the terminal done event and seals the channel.
func (c *Channel) Done(message string) bool {
	return c.Emit(Event{Type: TypeDone, Step: StepDone, Message: message})
}

// Close seals the channel without a terminal event. Idempotent. Most
// producers should prefer Fail or Done so the consumer sees an outcome;
// Close covers teardown paths where the terminal event was already
// emitted or never will be.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.sealed = true
	c.cond.Signal()
}

// Sealed reports whether the channel accepts no further events. Delivery
// of already-queued events may still be in flight.
func (c *Channel) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}
