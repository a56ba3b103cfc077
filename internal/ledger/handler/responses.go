package handler

import (
	"encoding/json"
	"time"

	"paylog/internal/ledger"
)

type registryResponse struct {
	ID              string                 `json:"id"`
	ProjectID       string                 `json:"project_id"`
	Client          string                 `json:"client"`
	Freelancer      string                 `json:"freelancer"`
	Oracle          string                 `json:"oracle"`
	DisplayDecimals uint8                  `json:"display_decimals"`
	Milestones      []ledger.MilestoneView `json:"milestones"`
	CreatedAt       time.Time              `json:"created_at"`
}

func fromRegistry(reg *ledger.Registry) registryResponse {
	views := make([]ledger.MilestoneView, len(reg.Milestones))
	for i := range reg.Milestones {
		views[i] = reg.Milestones[i].View()
	}
	return registryResponse{
		ID:              reg.ID.String(),
		ProjectID:       reg.ProjectID,
		Client:          reg.Client.String(),
		Freelancer:      reg.Freelancer.String(),
		Oracle:          reg.Oracle.String(),
		DisplayDecimals: reg.DisplayDecimals,
		Milestones:      views,
		CreatedAt:       reg.CreatedAt,
	}
}

// milestoneResponse wraps a single view. Milestone is null when the id is out
// of range, which the read path treats as absence rather than an error.
type milestoneResponse struct {
	Milestone *ledger.MilestoneView `json:"milestone"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type eventResponse struct {
	ID          string          `json:"id"`
	RegistryID  string          `json:"registry_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

func fromRecords(records []ledger.Record) []eventResponse {
	out := make([]eventResponse, len(records))
	for i, rec := range records {
		out[i] = eventResponse{
			ID:          rec.ID.String(),
			RegistryID:  rec.RegistryID.String(),
			Type:        rec.Type,
			Payload:     rec.Payload,
			CreatedAt:   rec.CreatedAt,
			PublishedAt: rec.PublishedAt,
		}
	}
	return out
}
