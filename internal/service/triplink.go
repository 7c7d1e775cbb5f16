package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/fsm"
	"example.com/backstage/services/logistics/internal/metrics"
	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/repository"
)

// AssignResourcesRequest carries the resources for a whole linked trip. The
// destination selects the flow variant shared by every load of the trip.
type AssignResourcesRequest struct {
	TripID             string    `json:"trip_id" validate:"required"`
	DriverID           uint      `json:"driver_id" validate:"required"`
	VehicleID          uint      `json:"vehicle_id" validate:"required"`
	DestinationSiteID  *uint     `json:"destination_site_id"`
	DestinationPlantID *uint     `json:"destination_plant_id"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	UserID             *uint     `json:"user_id"`
}

// TripLinkingService consolidates independent load requests into multi-stop
// trips and assigns resources to a whole trip at once. Both operations are
// all-or-nothing: a validation failure on any load leaves every load
// untouched.
type TripLinkingService interface {
	FindLinkableCandidates(ctx context.Context, primaryLoadID uint) ([]*model.LinkCandidate, error)
	Link(ctx context.Context, loadIDs []uint) (string, error)
	AssignResources(ctx context.Context, req *AssignResourcesRequest) (int, error)
	LoadsByTrip(ctx context.Context, tripID string) ([]*model.Load, error)
}

// tripLinkingService implements TripLinkingService
type tripLinkingService struct {
	loadRepo     repository.LoadRepository
	vehicleRepo  repository.VehicleRepository
	facilityRepo repository.FacilityRepository
	distanceRepo repository.DistanceRepository
	bus          eventbus.Bus
	collector    *metrics.Collector
	now          func() time.Time
}

// NewTripLinkingService creates a new trip linking service
func NewTripLinkingService(
	loadRepo repository.LoadRepository,
	vehicleRepo repository.VehicleRepository,
	facilityRepo repository.FacilityRepository,
	distanceRepo repository.DistanceRepository,
	bus eventbus.Bus,
) TripLinkingService {
	return &tripLinkingService{
		loadRepo:     loadRepo,
		vehicleRepo:  vehicleRepo,
		facilityRepo: facilityRepo,
		distanceRepo: distanceRepo,
		bus:          bus,
		collector:    metrics.GetCollector(),
		now:          time.Now,
	}
}

// FindLinkableCandidates returns loads eligible to join the primary load in a
// linked trip, each annotated with the route distance from the primary's
// origin where the distance matrix has an entry.
func (s *tripLinkingService) FindLinkableCandidates(ctx context.Context, primaryLoadID uint) ([]*model.LinkCandidate, error) {
	primary, err := s.loadRepo.GetByID(ctx, primaryLoadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, notFound("load", primaryLoadID)
		}
		return nil, err
	}
	if primary.Status != model.StatusRequested || primary.TripID != nil {
		return nil, &InvalidTransitionError{
			LoadID: primary.ID,
			From:   primary.Status,
			To:     primary.Status,
			Reason: "only uncorrelated REQUESTED loads can anchor a linked trip",
		}
	}

	candidates, err := s.loadRepo.FindLinkableCandidates(ctx, primary)
	if err != nil {
		return nil, err
	}

	if primary.OriginFacilityID != nil {
		for _, c := range candidates {
			km, known, err := s.distanceRepo.RouteDistance(ctx, *primary.OriginFacilityID, c.OriginFacilityID)
			if err != nil {
				return nil, err
			}
			if known {
				d := km
				c.DistanceKM = &d
			}
		}
	}
	return candidates, nil
}

// Link consolidates the given loads into one trip. All loads must be
// REQUESTED and uncorrelated. The order of loadIDs is the stop order: every
// load but the last becomes a pickup segment, the last becomes the main haul.
func (s *tripLinkingService) Link(ctx context.Context, loadIDs []uint) (string, error) {
	if len(loadIDs) < 2 {
		return "", &InsufficientTripSizeError{Count: len(loadIDs)}
	}

	loads := make([]*model.Load, 0, len(loadIDs))
	for _, id := range loadIDs {
		load, err := s.loadRepo.GetByID(ctx, id)
		if err != nil {
			if err == repository.ErrNotFound {
				return "", notFound("load", id)
			}
			return "", err
		}
		if load.TripID != nil {
			return "", &DuplicateTripAssignmentError{LoadID: load.ID, TripID: *load.TripID}
		}
		if load.Status != model.StatusRequested {
			return "", &InvalidTransitionError{
				LoadID: load.ID,
				From:   load.Status,
				To:     load.Status,
				Reason: "only REQUESTED loads can be linked into a trip",
			}
		}
		loads = append(loads, load)
	}

	tripID := uuid.NewString()
	for i, load := range loads {
		id := tripID
		load.TripID = &id
		role := model.RolePickupSegment
		if i == len(loads)-1 {
			role = model.RoleMainHaul
		}
		r := role
		load.TripRole = &r
	}

	if err := s.loadRepo.LinkIntoTrip(ctx, loads); err != nil {
		return "", err
	}
	s.collector.IncrementCounter(metrics.CounterTripsLinked, 1)

	log.Info().
		Str("trip_id", tripID).
		Int("loads", len(loads)).
		Msg("Loads linked into trip")

	s.bus.Publish(eventbus.Event{
		Kind: eventbus.KindTripLinked,
		Payload: eventbus.TripLinked{
			TripID:    tripID,
			LoadIDs:   loadIDs,
			Timestamp: s.now(),
		},
	})
	return tripID, nil
}

// AssignResources assigns a driver, a vehicle and a shared destination to
// every load of a trip and moves them all to ASSIGNED. Validation covers the
// whole trip before any load is touched: vehicle category, every origin
// facility's vehicle allow-list, and every load's transition eligibility.
func (s *tripLinkingService) AssignResources(ctx context.Context, req *AssignResourcesRequest) (int, error) {
	if req.DestinationSiteID == nil && req.DestinationPlantID == nil {
		return 0, ErrMissingDestination
	}
	if req.DestinationSiteID != nil && req.DestinationPlantID != nil {
		return 0, ErrAmbiguousDestination
	}

	vehicle, err := s.vehicleRepo.GetByID(ctx, req.VehicleID)
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, notFound("vehicle", req.VehicleID)
		}
		return 0, err
	}
	if !vehicle.Type.MultiContainer() {
		return 0, &IncompatibleVehicleTypeError{
			VehicleID:    vehicle.ID,
			LicensePlate: vehicle.LicensePlate,
			VehicleType:  vehicle.Type,
			Reason:       "linked trips require a multi-container vehicle",
		}
	}

	loads, err := s.loadRepo.GetByTripID(ctx, req.TripID)
	if err != nil {
		return 0, err
	}
	if len(loads) == 0 {
		return 0, notFound("trip", req.TripID)
	}

	for _, load := range loads {
		if !fsm.IsAllowed(load.Status, model.StatusAssigned, load.FlowVariant()) {
			return 0, &InvalidTransitionError{
				LoadID: load.ID,
				From:   load.Status,
				To:     model.StatusAssigned,
				Reason: "trip contains a load that can no longer be assigned",
			}
		}
		if load.OriginFacilityID == nil {
			continue
		}
		facility, err := s.facilityRepo.GetByID(ctx, *load.OriginFacilityID)
		if err != nil {
			if err == repository.ErrNotFound {
				return 0, notFound("facility", *load.OriginFacilityID)
			}
			return 0, err
		}
		if !facility.Allows(vehicle.Type) {
			return 0, &IncompatibleVehicleTypeError{
				VehicleID:    vehicle.ID,
				LicensePlate: vehicle.LicensePlate,
				VehicleType:  vehicle.Type,
				Reason:       "facility " + facility.Name + " does not accept this vehicle type",
			}
		}
	}

	now := s.now()
	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	loadIDs := make([]uint, 0, len(loads))
	trs := make([]*model.StatusTransition, 0, len(loads))
	for _, load := range loads {
		loadIDs = append(loadIDs, load.ID)
		trs = append(trs, &model.StatusTransition{
			LoadID:     load.ID,
			FromStatus: load.Status,
			ToStatus:   model.StatusAssigned,
			Timestamp:  now,
			UserID:     req.UserID,
			Note:       "assigned as part of trip " + req.TripID,
		})

		driverID := req.DriverID
		vehicleID := req.VehicleID
		sched := scheduledAt
		load.DriverID = &driverID
		load.VehicleID = &vehicleID
		load.DestinationSiteID = req.DestinationSiteID
		load.DestinationPlantID = req.DestinationPlantID
		load.Status = model.StatusAssigned
		load.ScheduledAt = &sched
	}

	if err := s.loadRepo.CommitTripAssignment(ctx, loads, trs); err != nil {
		return 0, err
	}
	s.collector.IncrementCounter(metrics.CounterTripsAssigned, 1)

	log.Info().
		Str("trip_id", req.TripID).
		Uint("vehicle_id", req.VehicleID).
		Uint("driver_id", req.DriverID).
		Int("loads", len(loads)).
		Msg("Trip resources assigned")

	s.bus.Publish(eventbus.Event{
		Kind: eventbus.KindTripResourcesAssigned,
		Payload: eventbus.TripResourcesAssigned{
			TripID:      req.TripID,
			LoadIDs:     loadIDs,
			DriverID:    req.DriverID,
			VehicleID:   req.VehicleID,
			ScheduledAt: scheduledAt,
		},
	})

	for _, tr := range trs {
		s.collector.RecordTransition(tr.ToStatus.String())
		s.bus.Publish(eventbus.Event{
			Kind: eventbus.KindLoadStatusChanged,
			Payload: eventbus.StatusChanged{
				LoadID:     tr.LoadID,
				FromStatus: tr.FromStatus,
				ToStatus:   tr.ToStatus,
				Timestamp:  tr.Timestamp,
				UserID:     req.UserID,
				VehicleID:  &req.VehicleID,
			},
		})
	}

	return len(loads), nil
}

// LoadsByTrip returns every load sharing a trip correlation id.
func (s *tripLinkingService) LoadsByTrip(ctx context.Context, tripID string) ([]*model.Load, error) {
	loads, err := s.loadRepo.GetByTripID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(loads) == 0 {
		return nil, notFound("trip", tripID)
	}
	return loads, nil
}
