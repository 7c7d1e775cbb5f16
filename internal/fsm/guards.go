package fsm

import (
	"fmt"

	"example.com/backstage/services/logistics/internal/model"
)

// CheckpointError reports a guard failure: the named checkpoint is absent
// from the bag or is missing a required field. The message is specific
// enough to surface directly to an operator.
type CheckpointError struct {
	Checkpoint string
	Reason     string
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("missing checkpoint %s: %s", e.Checkpoint, e.Reason)
}

func checkpointMissing(checkpoint, reason string) error {
	return &CheckpointError{Checkpoint: checkpoint, Reason: reason}
}

// requireDriverAcceptance gates ASSIGNED -> ACCEPTED: the driver must have
// explicitly accepted the load.
func requireDriverAcceptance(bag model.CheckpointBag) error {
	acc := bag.DriverAcceptance
	if acc == nil {
		return checkpointMissing("driver_acceptance", "driver has not accepted the load")
	}
	if acc.Timestamp.IsZero() || acc.DriverID == 0 {
		return checkpointMissing("driver_acceptance", "record lacks timestamp or driver id")
	}
	return nil
}

// requirePickupArrival gates EN_ROUTE_PICKUP -> AT_PICKUP: either a geofence
// confirmation or a manual confirmation counts.
func requirePickupArrival(bag model.CheckpointBag) error {
	if bag.GeofenceConfirmation != nil || bag.ManualPickupConfirmation != nil {
		return nil
	}
	return checkpointMissing("geofence_confirmation",
		"no geofence or manual confirmation of arrival at the origin")
}

// requirePickupConfirmation gates AT_PICKUP -> EN_ROUTE_DESTINATION.
func requirePickupConfirmation(bag model.CheckpointBag) error {
	if bag.PickupConfirmation == nil {
		return checkpointMissing("pickup_confirmation", "loading at the origin has not been confirmed")
	}
	return nil
}

// requireGateEntry gates EN_ROUTE_DESTINATION -> AT_DESTINATION.
func requireGateEntry(bag model.CheckpointBag) error {
	entry := bag.GateEntry
	if entry == nil {
		return checkpointMissing("gate_entry", "no gate check recorded at the destination")
	}
	if entry.Timestamp.IsZero() {
		return checkpointMissing("gate_entry", "gate record lacks a timestamp")
	}
	return nil
}

// requireDisposalCompletion gates IN_DISPOSAL -> COMPLETED on the disposal
// variant: the field application must be fully documented.
func requireDisposalCompletion(bag model.CheckpointBag) error {
	d := bag.DisposalCompletion
	if d == nil {
		return checkpointMissing("disposal_completion", "field application has not been confirmed")
	}
	var missing []string
	if d.ApplicationDate.IsZero() {
		missing = append(missing, "application_date")
	}
	if d.PlotID == 0 {
		missing = append(missing, "plot_id")
	}
	if d.OperatorID == 0 {
		missing = append(missing, "operator_id")
	}
	if len(missing) > 0 {
		return checkpointMissing("disposal_completion", fmt.Sprintf("record lacks %v", missing))
	}
	return nil
}

// requireEntryWeightTicket gates completion on the treatment variant.
func requireEntryWeightTicket(bag model.CheckpointBag) error {
	if bag.EntryWeightTicket == "" {
		return checkpointMissing("entry_weight_ticket", "no entry weighing recorded at the plant")
	}
	return nil
}

// requireLabResult gates completion on the treatment variant: a lab analysis
// carrying pH or solids content, or an explicit lab approval, counts.
func requireLabResult(bag model.CheckpointBag) error {
	if bag.LabApproved != nil && *bag.LabApproved {
		return nil
	}
	lab := bag.LabAnalysis
	if lab == nil {
		return checkpointMissing("lab_analysis", "no laboratory result or approval recorded")
	}
	if lab.PH == nil && lab.Solids == nil {
		return checkpointMissing("lab_analysis", "result must include pH or solids content")
	}
	return nil
}

// requireExitWeightTicket gates completion on the treatment variant: an exit
// weighing, or the equivalent final ticket, closes the weight record.
func requireExitWeightTicket(bag model.CheckpointBag) error {
	if bag.ExitWeightTicket == "" && bag.FinalWeightTicket == "" {
		return checkpointMissing("exit_weight_ticket", "no exit or final weighing recorded")
	}
	return nil
}
