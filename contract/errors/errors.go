package errors

import (
	"fmt"
	"time"
)

// Error codes for the messaging contracts. Keep stable; used across the bus
// core, the RPC layers and the transport adapters.
const (
	ErrCodeTimeout             = "lcmware.timeout"
	ErrCodeRemote              = "lcmware.remote_failure"
	ErrCodeActionFailed        = "lcmware.action_failed"
	ErrCodeInvalidArgument     = "lcmware.invalid_argument"
	ErrCodeInvalidTimeout      = "lcmware.invalid_timeout"
	ErrCodeTransportFailed     = "lcmware.transport_failed"
	ErrCodeSerializationFailed = "lcmware.serialization_failed"
	ErrCodeClosed              = "lcmware.closed"
	ErrCodeAlreadyStarted      = "lcmware.already_started"
	ErrCodeDuplicateID         = "lcmware.duplicate_id"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrTimeout             = Code(ErrCodeTimeout)
	ErrRemote              = Code(ErrCodeRemote)
	ErrActionFailed        = Code(ErrCodeActionFailed)
	ErrInvalidArgument     = Code(ErrCodeInvalidArgument)
	ErrInvalidTimeout      = Code(ErrCodeInvalidTimeout)
	ErrTransportFailed     = Code(ErrCodeTransportFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
	ErrClosed              = Code(ErrCodeClosed)
	ErrAlreadyStarted      = Code(ErrCodeAlreadyStarted)
	ErrDuplicateID         = Code(ErrCodeDuplicateID)
)

// TimeoutError reports that a blocking wait elapsed before the remote side
// produced anything. It matches ErrTimeout under errors.Is.
type TimeoutError struct {
	Channel string        // logical channel that was awaited
	Wait    time.Duration // how long the caller was willing to wait
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting on %q", e.Wait, e.Channel)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError carries a failure reported by a remote handler. The message is
// the handler's own wording, transported verbatim. It matches ErrRemote under
// errors.Is.
type RemoteError struct {
	Channel string // service channel the request was sent on
	Message string // remote failure description
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote handler on %q failed: %s", e.Channel, e.Message)
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
