package bridge

import (
	"context"
	"sync"
)

// Transport is the broadcast mechanism the bridge runs over. In the
// browser this is window-level message events; in tests and non-browser
// targets any equivalent IPC primitive works.
//
// Subscribe returns a receive channel for one event name and a cancel
// function that releases the subscription. Delivery is best-effort
// broadcast: a subscriber that stops draining may miss messages, which
// matches the lossy nature of ambient browser events.
type Transport interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(msgType string) (<-chan Message, func())
}

// subscriberBuffer bounds each subscription channel. Messages beyond the
// buffer are dropped rather than blocking the publisher.
const subscriberBuffer = 16

// Loopback is an in-process Transport connecting participants inside one
// binary. Safe for concurrent use.
type Loopback struct {
	mu   sync.Mutex
	subs map[string][]chan Message
}

// NewLoopback creates an empty in-process transport.
func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[string][]chan Message)}
}

// Publish broadcasts msg to every current subscriber of msg.Type.
func (l *Loopback) Publish(_ context.Context, msg Message) error {
	l.mu.Lock()
	targets := make([]chan Message, len(l.subs[msg.Type]))
	copy(targets, l.subs[msg.Type])
	l.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
			// Subscriber stopped draining; drop instead of blocking.
		}
	}
	return nil
}

// Subscribe registers a listener for one event name.
func (l *Loopback) Subscribe(msgType string) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	l.mu.Lock()
	l.subs[msgType] = append(l.subs[msgType], ch)
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		subs := l.subs[msgType]
		for i, c := range subs {
			if c == ch {
				l.subs[msgType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}
