package model

import "fmt"

// LoadStatus defines the lifecycle state of a load
type LoadStatus string

const (
	// StatusRequested represents a load requested by a client, not yet planned
	StatusRequested LoadStatus = "REQUESTED"
	// StatusAssigned represents a load assigned to a driver and vehicle
	StatusAssigned LoadStatus = "ASSIGNED"
	// StatusAccepted represents a load explicitly accepted by its driver
	StatusAccepted LoadStatus = "ACCEPTED"
	// StatusEnRoutePickup represents a vehicle on its way to the origin
	StatusEnRoutePickup LoadStatus = "EN_ROUTE_PICKUP"
	// StatusAtPickup represents a vehicle loading at the origin
	StatusAtPickup LoadStatus = "AT_PICKUP"
	// StatusEnRouteDestination represents a loaded vehicle on its way to the destination
	StatusEnRouteDestination LoadStatus = "EN_ROUTE_DESTINATION"
	// StatusAtDestination represents a load received at the destination gate
	StatusAtDestination LoadStatus = "AT_DESTINATION"
	// StatusInDisposal represents a load being applied at a disposal site
	StatusInDisposal LoadStatus = "IN_DISPOSAL"
	// StatusCompleted represents a finished load; terminal
	StatusCompleted LoadStatus = "COMPLETED"
)

// AllStatuses lists every valid lifecycle state in order.
var AllStatuses = []LoadStatus{
	StatusRequested,
	StatusAssigned,
	StatusAccepted,
	StatusEnRoutePickup,
	StatusAtPickup,
	StatusEnRouteDestination,
	StatusAtDestination,
	StatusInDisposal,
	StatusCompleted,
}

// IsValid reports whether s is a member of the status enum.
func (s LoadStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s permits no further transitions.
func (s LoadStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// String returns the wire representation of the status.
func (s LoadStatus) String() string {
	return string(s)
}

// legacyStatuses maps status values written by the previous planning system
// to the current enum. Normalization happens once, at the system boundary.
var legacyStatuses = map[string]LoadStatus{
	"Requested": StatusRequested,
	"Scheduled": StatusAssigned,
	"Accepted":  StatusAccepted,
	"InTransit": StatusEnRouteDestination,
	"Arrived":   StatusAtDestination,
	"Delivered": StatusCompleted,
}

// NormalizeStatus converts a raw status string, current or legacy, to a
// LoadStatus. Values that do not normalize are rejected.
func NormalizeStatus(raw string) (LoadStatus, error) {
	if s := LoadStatus(raw); s.IsValid() {
		return s, nil
	}
	if s, ok := legacyStatuses[raw]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown load status %q", raw)
}

// FlowVariant selects the tail of the lifecycle: loads bound for a disposal
// site may pass through IN_DISPOSAL, loads bound for a treatment plant
// complete directly from AT_DESTINATION.
type FlowVariant string

const (
	// FlowDisposal is the variant for loads delivered to a field or site
	FlowDisposal FlowVariant = "DISPOSAL"
	// FlowTreatment is the variant for loads delivered to a treatment plant
	FlowTreatment FlowVariant = "TREATMENT"
)

// TripRole classifies a load's position within a linked multi-stop trip.
type TripRole string

const (
	// RolePickupSegment marks an earlier leg of a linked trip
	RolePickupSegment TripRole = "PICKUP_SEGMENT"
	// RoleMainHaul marks the final leg to the shared destination
	RoleMainHaul TripRole = "MAIN_HAUL"
)
