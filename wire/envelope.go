// Package wire defines the envelopes, channel naming rules and correlation
// identifiers shared by every client and server in this module. Payload
// types stay caller-defined; wire wraps them with the metadata the
// correlation and lifecycle layers need.
package wire

import "time"

// Header carries the metadata stamped on every correlated message.
type Header struct {
	// TimestampMicros is the sender's wall clock in microseconds since the
	// Unix epoch. Informational only; nothing orders by it.
	TimestampMicros int64 `json:"timestamp_micros"`

	// ID correlates the message: the request id on service channels, the
	// goal id on action channels.
	ID string `json:"id"`
}

// NewHeader stamps a header for id with the current wall clock.
func NewHeader(id string) Header {
	return Header{TimestampMicros: time.Now().UnixMicro(), ID: id}
}

// Request wraps a typed service request.
type Request[T any] struct {
	Header  Header `json:"header"`
	Payload T      `json:"payload"`
}

// Response answers exactly one Request; Header.ID echoes the request id.
// Payload is meaningful only when Success is true.
type Response[T any] struct {
	Header       Header `json:"header"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	Payload      T      `json:"payload"`
}

// Goal submits a typed goal to an action server. Header.ID is the goal id.
type Goal[T any] struct {
	Header  Header `json:"header"`
	Payload T      `json:"payload"`
}

// Feedback streams typed progress for one goal. Header.ID is the goal id.
type Feedback[T any] struct {
	Header  Header `json:"header"`
	Payload T      `json:"payload"`
}

// Result terminates one goal; exactly one is published per goal.
// Payload is meaningful only when Status is StatusSucceeded.
type Result[T any] struct {
	Header  Header `json:"header"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Payload T      `json:"payload"`
}

// Cancel asks an action server to stop a goal. An empty GoalID addresses
// every goal active on the channel.
type Cancel struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	GoalID          string `json:"goal_id"`
}

// NewCancel stamps a cancel request for goalID with the current wall clock.
func NewCancel(goalID string) Cancel {
	return Cancel{TimestampMicros: time.Now().UnixMicro(), GoalID: goalID}
}
