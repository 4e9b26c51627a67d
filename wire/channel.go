package wire

import (
	"fmt"
	"strings"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

// Suffixes appended to a service or action base channel. The derived strings
// are the only channels the core ever publishes or subscribes on.
const (
	reqSuffix    = "/req"
	rspSegment   = "/rsp/"
	goalSuffix   = "/goal"
	cancelSuffix = "/cancel"
	fbSegment    = "/fb/"
	resSegment   = "/res/"
)

// RequestChannel returns the channel a service server listens on.
func RequestChannel(service string) string { return service + reqSuffix }

// ResponseChannel returns the per-call reply channel for one correlation id.
func ResponseChannel(service, correlationID string) string {
	return service + rspSegment + correlationID
}

// GoalChannel returns the channel an action server receives goals on.
func GoalChannel(action string) string { return action + goalSuffix }

// CancelChannel returns the channel an action server receives cancels on.
func CancelChannel(action string) string { return action + cancelSuffix }

// FeedbackChannel returns the per-goal feedback channel.
func FeedbackChannel(action, goalID string) string { return action + fbSegment + goalID }

// ResultChannel returns the per-goal result channel.
func ResultChannel(action, goalID string) string { return action + resSegment + goalID }

// ServiceChannel builds the conventional base channel for a named service
// inside a namespace: /{namespace}/svc/{name}.
func ServiceChannel(namespace, name string) string {
	return "/" + strings.Trim(namespace, "/") + "/svc/" + name
}

// ActionChannel builds the conventional base channel for a named action
// inside a namespace: /{namespace}/act/{name}.
func ActionChannel(namespace, name string) string {
	return "/" + strings.Trim(namespace, "/") + "/act/" + name
}

// ValidateChannel rejects channel names the adapters cannot address.
func ValidateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: empty channel", lcmerr.ErrInvalidArgument)
	}
	if strings.ContainsAny(channel, " \t\r\n") {
		return fmt.Errorf("%w: channel %q contains whitespace", lcmerr.ErrInvalidArgument, channel)
	}
	return nil
}
