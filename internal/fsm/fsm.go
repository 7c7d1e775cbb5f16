// Package fsm holds the load lifecycle state machine: the table of allowed
// transitions and the checkpoint guards each edge requires. Adding a new
// required checkpoint to an edge is an edit to the transitions table, not an
// engine change.
package fsm

import "example.com/backstage/services/logistics/internal/model"

// Guard is a pure predicate over a load's checkpoint bag. It returns nil
// when the required evidence is present, or a *CheckpointError naming what
// is missing or malformed.
type Guard func(bag model.CheckpointBag) error

// transition is a single allowed edge in the lifecycle state machine. A
// transition with an empty Variant applies to both flow variants; otherwise
// it only exists for loads on that variant.
type transition struct {
	From    model.LoadStatus
	To      model.LoadStatus
	Variant model.FlowVariant
	Guards  []Guard
}

// transitionsTable is the complete edge set of the lifecycle. Any requested
// edge not listed here is invalid, regardless of checkpoints. COMPLETED is
// terminal: no edges leave it, and no self-loop edges exist.
var transitionsTable = []transition{
	{From: model.StatusRequested, To: model.StatusAssigned},
	{From: model.StatusAssigned, To: model.StatusAccepted, Guards: []Guard{
		requireDriverAcceptance,
	}},
	{From: model.StatusAccepted, To: model.StatusEnRoutePickup},
	{From: model.StatusEnRoutePickup, To: model.StatusAtPickup, Guards: []Guard{
		requirePickupArrival,
	}},
	{From: model.StatusAtPickup, To: model.StatusEnRouteDestination, Guards: []Guard{
		requirePickupConfirmation,
	}},
	{From: model.StatusEnRouteDestination, To: model.StatusAtDestination, Guards: []Guard{
		requireGateEntry,
	}},

	// Disposal variant: an optional application stage before completion.
	{From: model.StatusAtDestination, To: model.StatusInDisposal, Variant: model.FlowDisposal},
	{From: model.StatusInDisposal, To: model.StatusCompleted, Variant: model.FlowDisposal, Guards: []Guard{
		requireDisposalCompletion,
	}},

	// Treatment variant: reception closes the load directly.
	{From: model.StatusAtDestination, To: model.StatusCompleted, Variant: model.FlowTreatment, Guards: []Guard{
		requireEntryWeightTicket,
		requireLabResult,
		requireExitWeightTicket,
	}},
}

func (t transition) matches(from, to model.LoadStatus, variant model.FlowVariant) bool {
	if t.From != from || t.To != to {
		return false
	}
	return t.Variant == "" || t.Variant == variant
}

// IsAllowed reports whether the edge from -> to exists for the given flow
// variant.
func IsAllowed(from, to model.LoadStatus, variant model.FlowVariant) bool {
	for _, t := range transitionsTable {
		if t.matches(from, to, variant) {
			return true
		}
	}
	return false
}

// GuardsFor returns the ordered guard list for an edge. The second return is
// false when the edge does not exist for the variant.
func GuardsFor(from, to model.LoadStatus, variant model.FlowVariant) ([]Guard, bool) {
	for _, t := range transitionsTable {
		if t.matches(from, to, variant) {
			return t.Guards, true
		}
	}
	return nil, false
}

// AllowedTargets returns the statuses reachable in one transition from the
// given state under the given variant, in table order.
func AllowedTargets(from model.LoadStatus, variant model.FlowVariant) []model.LoadStatus {
	var targets []model.LoadStatus
	for _, t := range transitionsTable {
		if t.From == from && (t.Variant == "" || t.Variant == variant) {
			targets = append(targets, t.To)
		}
	}
	return targets
}
