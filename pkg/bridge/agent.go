package bridge

import (
	"context"
	"encoding/json"
	"sync"
)

// Handler processes one request payload on the agent side. The returned
// payload (or error) becomes the correlated response.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Agent is the helper-agent endpoint of the bridge. It announces
// readiness once on start, re-announces whenever probed, and answers
// each request with at most one response.
type Agent struct {
	transport Transport
	handler   Handler

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
	cancels   []func()
}

// NewAgent creates an agent with the given request handler.
func NewAgent(t Transport, h Handler) *Agent {
	return &Agent{
		transport: t,
		handler:   h,
		stopped:   make(chan struct{}),
	}
}

// Start subscribes to requests and probes and broadcasts the initial
// readiness signal. Idempotent.
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		requests, cancelReq := a.transport.Subscribe(TypeRequest)
		probes, cancelProbe := a.transport.Subscribe(TypeProbe)
		a.cancels = append(a.cancels, cancelReq, cancelProbe)

		go a.loop(ctx, requests, probes)

		a.announce(ctx)
	})
}

// Stop releases the agent's subscriptions. Idempotent.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopped)
		for _, cancel := range a.cancels {
			cancel()
		}
	})
}

func (a *Agent) announce(ctx context.Context) {
	_ = a.transport.Publish(ctx, Message{Type: TypeReady})
}

func (a *Agent) loop(ctx context.Context, requests, probes <-chan Message) {
	for {
		select {
		case msg, ok := <-requests:
			if !ok {
				return
			}
			a.handleRequest(ctx, msg)
		case _, ok := <-probes:
			if !ok {
				return
			}
			a.announce(ctx)
		case <-a.stopped:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleRequest invokes the handler and publishes exactly one correlated
// response, carrying the handler error as a string when it fails.
func (a *Agent) handleRequest(ctx context.Context, msg Message) {
	var req Request
	if err := json.Unmarshal(msg.Detail, &req); err != nil {
		// Not a well-formed request; nothing to correlate a reply to.
		return
	}

	resp := Response{CorrelationID: req.CorrelationID}
	payload, err := a.handler(ctx, req.Payload)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Payload = payload
	}

	detail, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = a.transport.Publish(ctx, Message{Type: TypeResponse, Detail: detail})
}
