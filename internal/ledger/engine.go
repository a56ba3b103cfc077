package ledger

import (
	"math/big"
	"time"

	"paylog/pkg/domain"
)

// Engine computes milestone state transitions. It is pure apart from the
// injected clock: given a registry snapshot it validates the caller's role and
// the milestone state, then returns the post-transition milestone together
// with the event record to append. The engine never writes to a store; stores
// commit the returned Transition atomically or not at all.
//
// Per-milestone state machine:
//
//	NotRequested --RequestRelease(oracle)--> Requested --ConfirmPayment(client)--> Released
//
// No transition moves backward or skips a state.
type Engine struct {
	now func() time.Time
}

// NewEngine initialises an engine using the supplied trusted clock.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{now: now}
}

// Transition is the atomic unit a store commits: the post-state of exactly one
// milestone plus the event record describing the change.
type Transition struct {
	MilestoneID int
	Milestone   Milestone
	Record      Record
}

// RequestRelease marks a milestone as ready to pay on behalf of the oracle.
// The work digest and the transition timestamp become part of the permanent
// record.
func (e *Engine) RequestRelease(reg *Registry, caller domain.Address, milestoneID int, workHash domain.Hash32) (*Transition, error) {
	if caller.IsZero() || caller != reg.Oracle {
		return nil, ErrUnauthorized
	}
	if milestoneID < 0 || milestoneID >= len(reg.Milestones) {
		return nil, ErrInvalidMilestone
	}
	ms := reg.Milestones[milestoneID].Clone()

	if ms.Released {
		return nil, ErrAlreadyReleased
	}
	if ms.Requested {
		return nil, ErrAlreadyRequested
	}

	now := e.now()
	ms.Requested = true
	ms.WorkHash = &workHash
	ms.RequestedAt = &now

	record, err := NewRecord(reg.ID, ReleaseRequested{
		ProjectID:   reg.ProjectID,
		MilestoneID: milestoneID,
		WorkHash:    workHash,
		RequestedAt: now,
	}, now)
	if err != nil {
		return nil, err
	}
	return &Transition{MilestoneID: milestoneID, Milestone: ms, Record: record}, nil
}

// ConfirmPayment finalises a milestone on behalf of the client after the
// external payment has settled. The asserted amount must equal the configured
// milestone amount exactly; there is no tolerance and no conversion.
func (e *Engine) ConfirmPayment(reg *Registry, caller domain.Address, milestoneID int, paidAmount *big.Int, paymentRef domain.Hash32) (*Transition, error) {
	if caller.IsZero() || caller != reg.Client {
		return nil, ErrUnauthorized
	}
	if milestoneID < 0 || milestoneID >= len(reg.Milestones) {
		return nil, ErrInvalidMilestone
	}
	if paidAmount == nil {
		return nil, parseErrorf("paid amount is required")
	}
	ms := reg.Milestones[milestoneID].Clone()

	if !ms.Requested {
		return nil, ErrNotRequested
	}
	if ms.Released {
		return nil, ErrAlreadyReleased
	}
	if ms.Amount.Cmp(paidAmount) != 0 {
		return nil, ErrAmountMismatch
	}
	// RequestRelease stored the work hash; a requested milestone without one
	// means corrupted state, which must surface instead of crashing.
	if ms.WorkHash == nil {
		return nil, ErrInvariantViolation
	}
	workHash := *ms.WorkHash

	now := e.now()
	ms.Released = true
	ms.PaymentReference = &paymentRef
	ms.AttestedAt = &now

	record, err := NewRecord(reg.ID, Attested{
		ProjectID:        reg.ProjectID,
		MilestoneID:      milestoneID,
		WorkHash:         workHash,
		PaymentReference: paymentRef,
		Amount:           ms.Amount.String(),
		AttestedAt:       now,
	}, now)
	if err != nil {
		return nil, err
	}
	return &Transition{MilestoneID: milestoneID, Milestone: ms, Record: record}, nil
}
