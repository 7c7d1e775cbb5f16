package service

import (
	"fmt"

	"github.com/pkg/errors"

	"example.com/backstage/services/logistics/internal/model"
)

// Business-rule failures raised by the engines. None are transient and none
// are retried internally; every one carries enough context to be shown to an
// operator without further lookup. No state mutation has occurred when any
// of these is returned.

// ErrMissingDestination is returned when a trip assignment names neither a
// disposal site nor a treatment plant.
var ErrMissingDestination = errors.New("a destination site or treatment plant is required")

// ErrAmbiguousOrigin is returned when a load names zero or two origins.
var ErrAmbiguousOrigin = errors.New("exactly one of origin facility or origin plant is required")

// ErrAmbiguousDestination is returned when a load names two destinations.
var ErrAmbiguousDestination = errors.New("a load cannot name both a disposal site and a treatment plant")

// InvalidTransitionError reports a requested edge that is not in the
// allowed-edge set for the load's current state and flow variant.
type InvalidTransitionError struct {
	LoadID uint
	From   model.LoadStatus
	To     model.LoadStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition for load %d: %s", e.LoadID, e.Reason)
	}
	return fmt.Sprintf("invalid transition for load %d: %s -> %s is not permitted", e.LoadID, e.From, e.To)
}

// EntityNotFoundError reports a load, vehicle, facility or trip reference
// that does not resolve.
type EntityNotFoundError struct {
	Entity string
	ID     string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func notFound(entity string, id interface{}) error {
	return &EntityNotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// IncompatibleVehicleTypeError reports a vehicle whose category is rejected,
// either by the multi-container trip rule or by a facility's allow-list.
type IncompatibleVehicleTypeError struct {
	VehicleID    uint
	LicensePlate string
	VehicleType  model.VehicleType
	Reason       string
}

func (e *IncompatibleVehicleTypeError) Error() string {
	return fmt.Sprintf("vehicle %s (%s) is not compatible: %s", e.LicensePlate, e.VehicleType, e.Reason)
}

// DuplicateTripAssignmentError reports a load that already carries a trip
// correlation; correlation values are never reassigned.
type DuplicateTripAssignmentError struct {
	LoadID uint
	TripID string
}

func (e *DuplicateTripAssignmentError) Error() string {
	return fmt.Sprintf("load %d already belongs to trip %s", e.LoadID, e.TripID)
}

// InsufficientTripSizeError reports a link attempt with fewer than two loads.
type InsufficientTripSizeError struct {
	Count int
}

func (e *InsufficientTripSizeError) Error() string {
	return fmt.Sprintf("a linked trip requires at least 2 loads, got %d", e.Count)
}
