/*
Package tap observes raw bus traffic. A Sink sees every payload the node
publishes and every payload its dispatch loop delivers, in order, which is
enough to build traffic logs, debugging dumps, or an external firehose.
*/
package tap

import "time"

// Direction labels which side of the node a message was seen on.
type Direction uint8

const (
	// Outbound marks messages this process published.
	Outbound Direction = iota + 1
	// Inbound marks messages the dispatch loop delivered.
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "out"
	case Inbound:
		return "in"
	default:
		return "unknown"
	}
}

// Entry is one observed message. Payload is the encoded wire bytes and must
// be treated as read-only; sinks that retain it must copy.
type Entry struct {
	Time      time.Time
	Direction Direction
	Channel   string
	Payload   []byte
}

// Sink consumes observed traffic. Record runs on the publish and dispatch
// hot paths; implementations must be fast, non-blocking and panic-free.
type Sink interface {
	Record(e Entry)
}
