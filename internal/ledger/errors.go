package ledger

import (
	"errors"
	"fmt"
)

// Transition and query errors. All are terminal and detected before any
// mutation: a failed operation leaves both the milestone and the event trail
// untouched.
var (
	// ErrUnauthorized marks a caller/role mismatch.
	ErrUnauthorized = errors.New("ledger: caller not allowed for this action")
	// ErrInvalidMilestone marks an out-of-range milestone id.
	ErrInvalidMilestone = errors.New("ledger: milestone id out of range")
	// ErrAlreadyRequested marks a second release request for a milestone.
	ErrAlreadyRequested = errors.New("ledger: release already requested")
	// ErrNotRequested marks a payment confirmation without a prior request.
	ErrNotRequested = errors.New("ledger: release not requested")
	// ErrAlreadyReleased marks a double-release attempt.
	ErrAlreadyReleased = errors.New("ledger: milestone already released")
	// ErrAmountMismatch marks a confirmed amount that differs from the
	// configured milestone amount.
	ErrAmountMismatch = errors.New("ledger: paid amount does not match milestone amount")
	// ErrLog marks a failure to durably append the event record; the whole
	// transition is discarded.
	ErrLog = errors.New("ledger: event could not be appended")
	// ErrParse marks malformed or missing input.
	ErrParse = errors.New("ledger: malformed parameters")
	// ErrInvariantViolation marks stored state that breaks a ledger
	// invariant, e.g. a requested milestone without a work hash. It signals
	// an implementation bug, never a caller mistake.
	ErrInvariantViolation = errors.New("ledger: stored state violates invariant")
)

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
