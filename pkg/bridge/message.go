// Package bridge implements the request/response protocol between the
// hosting page and the browser-helper agent that performs on-page form
// filling inside the user's own session.
//
// The two participants live in different trust domains and share no call
// stack: everything crosses as generic broadcast messages of one
// envelope shape, distinguished by event name. The sender side keeps a
// single request outstanding at a time and treats a missed reply window
// as "no agent answered", never as a hard error: agent presence is
// optional and detected via a separate readiness sub-protocol.
package bridge

import "encoding/json"

// Event names recognized on the bridge. All four share the Message
// envelope.
const (
	// TypeRequest carries a payload from the page to the helper agent.
	TypeRequest = "efiling.agent.request"

	// TypeResponse carries the agent's reply for one request.
	TypeResponse = "efiling.agent.response"

	// TypeReady is broadcast once by the agent when it loads, and again
	// in answer to a probe.
	TypeReady = "efiling.agent.ready"

	// TypeProbe is broadcast by the page at mount time to catch an
	// agent that loaded first.
	TypeProbe = "efiling.agent.probe"
)

// Message is the generic cross-context envelope.
type Message struct {
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Request is the detail payload of a TypeRequest message.
type Request struct {
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Response is the detail payload of a TypeResponse message. A non-empty
// Error is surfaced to the sender as the operation's failure reason.
type Response struct {
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Error         string          `json:"error,omitempty"`
}
