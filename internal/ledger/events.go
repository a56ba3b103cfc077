package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"paylog/pkg/domain"
)

// Event types carried on every record, for indexer routing.
const (
	EventTypeReleaseRequested = "paylog.release_requested"
	EventTypeAttested         = "paylog.attested"
)

// Event is one attestation event payload. Payloads are canonical JSON so
// external indexers can consume them without the service's type definitions.
type Event interface {
	EventType() string
}

// ReleaseRequested is emitted when the oracle attests delivered work.
type ReleaseRequested struct {
	ProjectID   string        `json:"project_id"`
	MilestoneID int           `json:"milestone_id"`
	WorkHash    domain.Hash32 `json:"work_hash"`
	RequestedAt time.Time     `json:"requested_at"`
}

func (ReleaseRequested) EventType() string { return EventTypeReleaseRequested }

// Attested is emitted when the client confirms the off-ledger payment,
// completing the milestone's attestation trail.
type Attested struct {
	ProjectID        string        `json:"project_id"`
	MilestoneID      int           `json:"milestone_id"`
	WorkHash         domain.Hash32 `json:"work_hash"`
	PaymentReference domain.Hash32 `json:"payment_reference"`
	// Amount is the decimal string form of the milestone amount in minor
	// units; a string keeps arbitrary precision safe for JSON consumers.
	Amount     string    `json:"amount"`
	AttestedAt time.Time `json:"attested_at"`
}

func (Attested) EventType() string { return EventTypeAttested }

// Record is the durable, append-only form of an event. Records are committed
// in the same atomic unit as the milestone mutation and later published to the
// external sink by the outbox publisher.
type Record struct {
	ID          uuid.UUID
	RegistryID  domain.RegistryID
	Type        string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewRecord serializes an event into its durable record form.
func NewRecord(registryID domain.RegistryID, ev Event, now time.Time) (Record, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrLog, err)
	}
	return Record{
		ID:         uuid.New(),
		RegistryID: registryID,
		Type:       ev.EventType(),
		Payload:    payload,
		CreatedAt:  now,
	}, nil
}
