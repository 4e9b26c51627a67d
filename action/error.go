package action

import (
	"fmt"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

// Error reports a goal that ended without succeeding. Status is the terminal
// state (StatusAborted or StatusCanceled); Message is the server's wording.
// It matches lcmerr.ErrActionFailed under errors.Is.
type Error struct {
	GoalID  string
	Status  Status
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("goal %s %s", e.GoalID, e.Status)
	}
	return fmt.Sprintf("goal %s %s: %s", e.GoalID, e.Status, e.Message)
}

// Is reports whether target is lcmerr.ErrActionFailed.
func (e *Error) Is(target error) bool { return target == lcmerr.ErrActionFailed }
