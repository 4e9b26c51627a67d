package action

import "github.com/KosmosisDire/LCMware/wire"

// Status is a goal's lifecycle state.
type Status = wire.Status

// Lifecycle states. Accepted and Executing are transient; the other three
// are terminal.
const (
	StatusAccepted  = wire.StatusAccepted
	StatusExecuting = wire.StatusExecuting
	StatusSucceeded = wire.StatusSucceeded
	StatusAborted   = wire.StatusAborted
	StatusCanceled  = wire.StatusCanceled
)
