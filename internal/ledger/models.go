// Package ledger implements the milestone payment-attestation ledger.
//
// A Registry records, per project, the three participant roles and an ordered,
// fixed-length list of milestones. The ledger never moves funds; payment
// happens on an external account-based network. The ledger's job is the
// tamper-evident attestation trail: the oracle attests delivered work
// (RequestRelease), the client attests the off-ledger payment
// (ConfirmPayment), and every successful transition appends an immutable
// event record for downstream indexers.
package ledger

import (
	"math/big"
	"time"

	"paylog/pkg/domain"
)

// Registry is the aggregate root for one project's attestation trail.
//
// Invariants:
//   - Milestone count and order are fixed at creation
//   - Client, Freelancer and Oracle addresses are fixed at creation
//   - Milestones are mutated only through Engine transitions
type Registry struct {
	ID              domain.RegistryID
	ProjectID       string
	Client          domain.Address
	Freelancer      domain.Address
	Oracle          domain.Address
	DisplayDecimals uint8
	Milestones      []Milestone
	CreatedAt       time.Time
}

// Milestone is one unit of agreed work with a fixed payment amount.
//
// Invariants:
//   - Released implies Requested
//   - Requested implies WorkHash and RequestedAt are set
//   - Released implies PaymentReference and AttestedAt are set
//   - Amount is immutable after creation
//   - Requested and Released each flip false→true exactly once, never back
type Milestone struct {
	// Amount is the agreed payment in minor units of the external token.
	Amount *big.Int
	// Requested is set once the oracle has attested the work.
	Requested bool
	// Released is set once the client has attested the payment.
	Released bool
	// WorkHash is the digest of the delivered artifact, set at RequestRelease.
	WorkHash *domain.Hash32
	// PaymentReference identifies the external payment transaction, set at
	// ConfirmPayment.
	PaymentReference *domain.Hash32
	RequestedAt      *time.Time
	AttestedAt       *time.Time
}

// Clone returns a deep copy so callers never mutate shared state.
func (m *Milestone) Clone() Milestone {
	clone := *m
	if m.Amount != nil {
		clone.Amount = new(big.Int).Set(m.Amount)
	}
	if m.WorkHash != nil {
		h := *m.WorkHash
		clone.WorkHash = &h
	}
	if m.PaymentReference != nil {
		h := *m.PaymentReference
		clone.PaymentReference = &h
	}
	if m.RequestedAt != nil {
		t := *m.RequestedAt
		clone.RequestedAt = &t
	}
	if m.AttestedAt != nil {
		t := *m.AttestedAt
		clone.AttestedAt = &t
	}
	return clone
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Milestones = make([]Milestone, len(r.Milestones))
	for i := range r.Milestones {
		clone.Milestones[i] = r.Milestones[i].Clone()
	}
	return &clone
}

// InitParams is the caller-supplied configuration for a new registry.
type InitParams struct {
	ProjectID       string
	Client          domain.Address
	Freelancer      domain.Address
	Oracle          domain.Address
	Amounts         []*big.Int
	DisplayDecimals uint8
}

// Validate checks the configuration can produce a well-formed registry.
// Role distinctness is deliberately not enforced; a single account may hold
// several roles.
func (p InitParams) Validate() error {
	if p.Client.IsZero() || p.Freelancer.IsZero() || p.Oracle.IsZero() {
		return parseErrorf("client, freelancer and oracle addresses are required")
	}
	if len(p.Amounts) == 0 {
		return parseErrorf("at least one milestone amount is required")
	}
	for _, amt := range p.Amounts {
		if amt == nil || amt.Sign() < 0 {
			return parseErrorf("milestone amounts must be unsigned integers")
		}
	}
	return nil
}

// NewRegistry builds a registry from configuration. Every milestone starts
// with only its amount set; all attestation fields are empty.
func NewRegistry(id domain.RegistryID, p InitParams, now time.Time) (*Registry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	milestones := make([]Milestone, len(p.Amounts))
	for i, amt := range p.Amounts {
		milestones[i] = Milestone{Amount: new(big.Int).Set(amt)}
	}
	return &Registry{
		ID:              id,
		ProjectID:       p.ProjectID,
		Client:          p.Client,
		Freelancer:      p.Freelancer,
		Oracle:          p.Oracle,
		DisplayDecimals: p.DisplayDecimals,
		Milestones:      milestones,
		CreatedAt:       now,
	}, nil
}

// MilestoneView is the read-only projection served by queries. The amount is
// a decimal string in minor units so arbitrary precision survives JSON.
type MilestoneView struct {
	Amount           string         `json:"amount"`
	Requested        bool           `json:"requested"`
	Released         bool           `json:"released"`
	WorkHash         *domain.Hash32 `json:"work_hash,omitempty"`
	PaymentReference *domain.Hash32 `json:"payment_reference,omitempty"`
	RequestedAt      *time.Time     `json:"requested_at,omitempty"`
	AttestedAt       *time.Time     `json:"attested_at,omitempty"`
}

// View projects a milestone into its query snapshot.
func (m *Milestone) View() MilestoneView {
	clone := m.Clone()
	return MilestoneView{
		Amount:           clone.Amount.String(),
		Requested:        clone.Requested,
		Released:         clone.Released,
		WorkHash:         clone.WorkHash,
		PaymentReference: clone.PaymentReference,
		RequestedAt:      clone.RequestedAt,
		AttestedAt:       clone.AttestedAt,
	}
}
