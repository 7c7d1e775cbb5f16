package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Checkpoint payloads are the evidence a transition guard inspects. Each
// known checkpoint has its own typed shape; payloads are validated when they
// are written into the bag, not when guards read them.

// DriverAcceptance records a driver explicitly accepting an assigned load.
type DriverAcceptance struct {
	DriverID  uint      `json:"driver_id" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// GeofenceConfirmation records the vehicle entering the origin geofence.
type GeofenceConfirmation struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// ManualPickupConfirmation records a manual arrival confirmation at the
// origin, used where no geofence coverage exists.
type ManualPickupConfirmation struct {
	ConfirmedBy uint      `json:"confirmed_by" validate:"required"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
}

// PickupConfirmation records that loading finished at the origin.
type PickupConfirmation struct {
	Timestamp   time.Time `json:"timestamp" validate:"required"`
	TicketRef   string    `json:"ticket_ref"`
	GrossWeight *float64  `json:"gross_weight"`
	TareWeight  *float64  `json:"tare_weight"`
}

// GateEntry records the gate check at the destination.
type GateEntry struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	GateRef   string    `json:"gate_ref"`
}

// DisposalCompletion records the field application that closes a disposal
// flow load.
type DisposalCompletion struct {
	ApplicationDate time.Time `json:"application_date" validate:"required"`
	PlotID          uint      `json:"plot_id" validate:"required"`
	OperatorID      uint      `json:"operator_id" validate:"required"`
}

// LabAnalysis carries the laboratory result for a treatment flow load. At
// least one of PH or Solids must be present for the result to count.
type LabAnalysis struct {
	PH       *float64  `json:"ph"`
	Solids   *float64  `json:"solids"`
	SampleAt time.Time `json:"sample_at"`
}

// CheckpointBag is the closed set of evidence a load can carry. It is stored
// as a single jsonb column; absent checkpoints are nil. Weights recorded here
// are promoted to the load's first-class columns when a transition commits.
type CheckpointBag struct {
	DriverAcceptance         *DriverAcceptance         `json:"driver_acceptance,omitempty"`
	GeofenceConfirmation     *GeofenceConfirmation     `json:"geofence_confirmation,omitempty"`
	ManualPickupConfirmation *ManualPickupConfirmation `json:"manual_pickup_confirmation,omitempty"`
	PickupConfirmation       *PickupConfirmation       `json:"pickup_confirmation,omitempty"`
	GateEntry                *GateEntry                `json:"gate_entry,omitempty"`
	DisposalCompletion       *DisposalCompletion       `json:"disposal_completion,omitempty"`
	EntryWeightTicket        string                    `json:"entry_weight_ticket,omitempty"`
	ExitWeightTicket         string                    `json:"exit_weight_ticket,omitempty"`
	FinalWeightTicket        string                    `json:"final_weight_ticket,omitempty"`
	LabAnalysis              *LabAnalysis              `json:"lab_analysis,omitempty"`
	LabApproved              *bool                     `json:"lab_approved,omitempty"`
	GrossWeight              *float64                  `json:"gross_weight,omitempty"`
	TareWeight               *float64                  `json:"tare_weight,omitempty"`
}

// Merge copies every checkpoint present in patch into the bag, leaving the
// rest untouched. Evidence is only ever added or replaced, never cleared.
func (b *CheckpointBag) Merge(patch CheckpointBag) {
	if patch.DriverAcceptance != nil {
		b.DriverAcceptance = patch.DriverAcceptance
	}
	if patch.GeofenceConfirmation != nil {
		b.GeofenceConfirmation = patch.GeofenceConfirmation
	}
	if patch.ManualPickupConfirmation != nil {
		b.ManualPickupConfirmation = patch.ManualPickupConfirmation
	}
	if patch.PickupConfirmation != nil {
		b.PickupConfirmation = patch.PickupConfirmation
	}
	if patch.GateEntry != nil {
		b.GateEntry = patch.GateEntry
	}
	if patch.DisposalCompletion != nil {
		b.DisposalCompletion = patch.DisposalCompletion
	}
	if patch.EntryWeightTicket != "" {
		b.EntryWeightTicket = patch.EntryWeightTicket
	}
	if patch.ExitWeightTicket != "" {
		b.ExitWeightTicket = patch.ExitWeightTicket
	}
	if patch.FinalWeightTicket != "" {
		b.FinalWeightTicket = patch.FinalWeightTicket
	}
	if patch.LabAnalysis != nil {
		b.LabAnalysis = patch.LabAnalysis
	}
	if patch.LabApproved != nil {
		b.LabApproved = patch.LabApproved
	}
	if patch.GrossWeight != nil {
		b.GrossWeight = patch.GrossWeight
	}
	if patch.TareWeight != nil {
		b.TareWeight = patch.TareWeight
	}
}

// Value implements driver.Valuer so the bag persists as jsonb.
func (b CheckpointBag) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal checkpoint bag")
	}
	return data, nil
}

// Scan implements sql.Scanner for reading the jsonb column.
func (b *CheckpointBag) Scan(value interface{}) error {
	if value == nil {
		*b = CheckpointBag{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported checkpoint bag column type %T", value)
	}

	if len(data) == 0 {
		*b = CheckpointBag{}
		return nil
	}
	if err := json.Unmarshal(data, b); err != nil {
		return errors.Wrap(err, "failed to unmarshal checkpoint bag")
	}
	return nil
}
