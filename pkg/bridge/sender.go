package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWait is the fixed reply window for one request.
const DefaultWait = 5 * time.Second

// Sender is the page-side endpoint of the bridge. It sends one request
// at a time and tracks agent presence via the readiness sub-protocol.
type Sender struct {
	transport Transport
	wait      time.Duration

	// sendMu enforces the single-outstanding-request model.
	sendMu sync.Mutex

	mu      sync.Mutex
	present bool

	readyCancel func()
	stopped     chan struct{}
}

// SenderOption adjusts Sender construction.
type SenderOption func(*Sender)

// WithWait overrides the reply window. Tests only.
func WithWait(d time.Duration) SenderOption {
	return func(s *Sender) { s.wait = d }
}

// NewSender creates a sender on the transport, starts watching for
// agent readiness broadcasts, and fires the mount-time probe so an
// agent that loaded first re-announces itself. Call Close when done.
func NewSender(t Transport, opts ...SenderOption) *Sender {
	s := &Sender{
		transport: t,
		wait:      DefaultWait,
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ready, cancel := t.Subscribe(TypeReady)
	s.readyCancel = cancel
	go func() {
		for {
			select {
			case _, ok := <-ready:
				if !ok {
					return
				}
				s.mu.Lock()
				s.present = true
				s.mu.Unlock()
			case <-s.stopped:
				return
			}
		}
	}()

	// The agent's initial ready broadcast is lost when it loaded before
	// this sender existed; probing at mount time catches it.
	_ = s.ProbeAgent(context.Background())
	return s
}

// Close releases the readiness subscription.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopped:
		return
	default:
	}
	close(s.stopped)
	if s.readyCancel != nil {
		s.readyCancel()
	}
}

// AgentPresent reports whether a readiness broadcast has been seen.
func (s *Sender) AgentPresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present
}

// ProbeAgent broadcasts the "are you there" probe. An agent that loaded
// before this sender answers with a readiness broadcast.
func (s *Sender) ProbeAgent(ctx context.Context) error {
	return s.transport.Publish(ctx, Message{Type: TypeProbe})
}

// Send dispatches one request and waits for its correlated response.
//
// Outcomes:
//   - (resp, nil): the agent answered successfully.
//   - (nil, nil): no response inside the wait window, either no agent present
//     or the agent did not answer. Explicitly not an error; the caller
//     branches on this.
//   - (nil, err): the response carried an error, the context was
//     cancelled, or the transport failed.
func (s *Sender) Send(ctx context.Context, payload json.RawMessage) (*Response, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	corrID := uuid.New().String()

	// Listen before publishing so a fast reply cannot slip past.
	responses, cancel := s.transport.Subscribe(TypeResponse)
	defer cancel()

	detail, err := json.Marshal(Request{CorrelationID: corrID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal bridge request: %w", err)
	}
	if err := s.transport.Publish(ctx, Message{Type: TypeRequest, Detail: detail}); err != nil {
		return nil, fmt.Errorf("publish bridge request: %w", err)
	}

	window := time.NewTimer(s.wait)
	defer window.Stop()

	for {
		select {
		case msg, ok := <-responses:
			if !ok {
				return nil, nil
			}
			var resp Response
			if err := json.Unmarshal(msg.Detail, &resp); err != nil {
				continue
			}
			if resp.CorrelationID != corrID {
				// A stale reply for an earlier request; keep waiting.
				continue
			}
			if resp.Error != "" {
				return nil, errors.New(resp.Error)
			}
			return &resp, nil
		case <-window.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
