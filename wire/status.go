package wire

import "fmt"

// Status is the lifecycle state of a goal as carried on result messages.
// The numeric values are part of the wire contract.
type Status uint8

const (
	StatusAccepted  Status = 1
	StatusExecuting Status = 2
	StatusSucceeded Status = 3
	StatusAborted   Status = 4
	StatusCanceled  Status = 5
)

// Terminal reports whether the status ends a goal's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusAborted || s == StatusCanceled
}

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusExecuting:
		return "executing"
	case StatusSucceeded:
		return "succeeded"
	case StatusAborted:
		return "aborted"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}
