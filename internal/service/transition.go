package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/cache"
	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/fsm"
	"example.com/backstage/services/logistics/internal/metrics"
	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/repository"
)

// TransitionRequest carries one requested lifecycle transition. TargetStatus
// accepts current enum values as well as legacy spellings from the previous
// planning system.
type TransitionRequest struct {
	LoadID       uint   `json:"load_id" validate:"required"`
	TargetStatus string `json:"target_status" validate:"required"`
	UserID       *uint  `json:"user_id"`
	Note         string `json:"note"`
}

// CreateLoadRequest carries a new load request. Exactly one origin reference
// must be set; the destination usually arrives later, with assignment.
type CreateLoadRequest struct {
	OriginFacilityID   *uint `json:"origin_facility_id"`
	OriginPlantID      *uint `json:"origin_plant_id"`
	DestinationSiteID  *uint `json:"destination_site_id"`
	DestinationPlantID *uint `json:"destination_plant_id"`
	CreatedByUserID    *uint `json:"created_by_user_id"`
}

// TransitionService is the engine that moves loads through their lifecycle.
// Every committed transition appends exactly one audit row; every rejected
// transition appends none and leaves the load untouched.
type TransitionService interface {
	CreateLoad(ctx context.Context, req *CreateLoadRequest) (*model.Load, error)
	Transition(ctx context.Context, req *TransitionRequest) (*model.Load, error)
	UpdateAttributes(ctx context.Context, loadID uint, patch model.CheckpointBag) (*model.Load, error)
	GetLoad(ctx context.Context, id uint) (*model.Load, error)
	LoadsByStatus(ctx context.Context, status model.LoadStatus) ([]*model.Load, error)
	AllowedTargets(ctx context.Context, loadID uint) ([]model.LoadStatus, error)
	Timeline(ctx context.Context, loadID uint) ([]*model.StatusTransition, error)
	TimeInStatus(ctx context.Context, loadID uint, status model.LoadStatus) (time.Duration, error)
	CurrentStateAge(ctx context.Context, loadID uint) (model.LoadStatus, time.Duration, error)
	TransitionsInRange(ctx context.Context, start, end time.Time, toStatus *model.LoadStatus) ([]*model.StatusTransition, error)
}

// transitionService implements TransitionService
type transitionService struct {
	loadRepo       repository.LoadRepository
	transitionRepo repository.TransitionRepository
	cache          cache.CacheClient
	bus            eventbus.Bus
	validate       *validator.Validate
	collector      *metrics.Collector
	now            func() time.Time
}

// NewTransitionService creates a new transition service
func NewTransitionService(
	loadRepo repository.LoadRepository,
	transitionRepo repository.TransitionRepository,
	cacheClient cache.CacheClient,
	bus eventbus.Bus,
) TransitionService {
	return &transitionService{
		loadRepo:       loadRepo,
		transitionRepo: transitionRepo,
		cache:          cacheClient,
		bus:            bus,
		validate:       validator.New(),
		collector:      metrics.GetCollector(),
		now:            time.Now,
	}
}

// CreateLoad registers a new load in REQUESTED.
func (s *transitionService) CreateLoad(ctx context.Context, req *CreateLoadRequest) (*model.Load, error) {
	if (req.OriginFacilityID == nil) == (req.OriginPlantID == nil) {
		return nil, ErrAmbiguousOrigin
	}
	if req.DestinationSiteID != nil && req.DestinationPlantID != nil {
		return nil, ErrAmbiguousDestination
	}

	now := s.now()
	load := &model.Load{
		OriginFacilityID:   req.OriginFacilityID,
		OriginPlantID:      req.OriginPlantID,
		DestinationSiteID:  req.DestinationSiteID,
		DestinationPlantID: req.DestinationPlantID,
		Status:             model.StatusRequested,
		RequestedAt:        &now,
		CreatedByUserID:    req.CreatedByUserID,
	}

	created, err := s.loadRepo.Create(ctx, load)
	if err != nil {
		return nil, err
	}

	log.Info().Uint("load_id", created.ID).Msg("Load created")
	return created, nil
}

// GetLoad gets a load by ID, cache first.
func (s *transitionService) GetLoad(ctx context.Context, id uint) (*model.Load, error) {
	load, err := s.cache.GetLoad(ctx, id)
	if err == nil {
		return load, nil
	}
	if err != redis.Nil {
		log.Warn().Err(err).Uint("load_id", id).Msg("Failed to get load from cache")
	}

	load, err = s.loadRepo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, notFound("load", id)
		}
		return nil, err
	}

	if err := s.cache.SetLoad(ctx, load); err != nil {
		log.Warn().Err(err).Uint("load_id", id).Msg("Failed to cache load")
	}
	return load, nil
}

// LoadsByStatus returns every load currently in the given status.
func (s *transitionService) LoadsByStatus(ctx context.Context, status model.LoadStatus) ([]*model.Load, error) {
	return s.loadRepo.FindByStatus(ctx, status)
}

// Transition validates and commits one lifecycle transition. The sequence is
// strict: resolve the load, normalize the target, check the edge against the
// rule table, run the edge's checkpoint guards in order, then persist the
// status change and its audit row atomically. Events fire only after the
// commit succeeds.
func (s *transitionService) Transition(ctx context.Context, req *TransitionRequest) (*model.Load, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	load, err := s.loadRepo.GetByID(ctx, req.LoadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, notFound("load", req.LoadID)
		}
		return nil, err
	}

	target, err := model.NormalizeStatus(req.TargetStatus)
	if err != nil {
		s.collector.RecordRejectedTransition(false)
		return nil, &InvalidTransitionError{
			LoadID: load.ID,
			From:   load.Status,
			To:     model.LoadStatus(req.TargetStatus),
			Reason: err.Error(),
		}
	}

	variant := load.FlowVariant()
	guards, ok := fsm.GuardsFor(load.Status, target, variant)
	if !ok {
		s.collector.RecordRejectedTransition(false)
		return nil, &InvalidTransitionError{LoadID: load.ID, From: load.Status, To: target}
	}

	for _, guard := range guards {
		if err := guard(load.Checkpoints); err != nil {
			s.collector.RecordRejectedTransition(true)
			return nil, err
		}
	}

	now := s.now()
	from := load.Status
	tr := &model.StatusTransition{
		LoadID:     load.ID,
		FromStatus: from,
		ToStatus:   target,
		Timestamp:  now,
		UserID:     req.UserID,
		Note:       req.Note,
	}

	load.Status = target
	s.promoteWeights(load)
	s.stampMilestones(load, target, now)

	if err := s.loadRepo.CommitTransition(ctx, load, tr); err != nil {
		return nil, err
	}
	s.collector.RecordTransition(target.String())

	if err := s.cache.SetLoad(ctx, load); err != nil {
		log.Warn().Err(err).Uint("load_id", load.ID).Msg("Failed to refresh cached load")
	}

	log.Info().
		Uint("load_id", load.ID).
		Str("from", from.String()).
		Str("to", target.String()).
		Str("variant", string(variant)).
		Msg("Load transitioned")

	s.bus.Publish(eventbus.Event{
		Kind:      eventbus.KindLoadStatusChanged,
		Timestamp: now,
		Payload: eventbus.StatusChanged{
			LoadID:     load.ID,
			FromStatus: from,
			ToStatus:   target,
			Timestamp:  now,
			UserID:     req.UserID,
			VehicleID:  load.VehicleID,
		},
	})
	if target == model.StatusAtDestination && load.DestinationSiteID != nil {
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindLoadArrivedAtField,
			Timestamp: now,
			Payload: eventbus.ArrivedAtField{
				LoadID:    load.ID,
				SiteID:    *load.DestinationSiteID,
				Timestamp: now,
			},
		})
	}

	return load, nil
}

// promoteWeights copies weighing evidence from the checkpoint bag into the
// load's first-class weight columns and recomputes net weight. Bag values win
// over older column values; a pickup confirmation's weights count when the
// bag carries none of its own.
func (s *transitionService) promoteWeights(load *model.Load) {
	gross := load.Checkpoints.GrossWeight
	tare := load.Checkpoints.TareWeight
	if pc := load.Checkpoints.PickupConfirmation; pc != nil {
		if gross == nil {
			gross = pc.GrossWeight
		}
		if tare == nil {
			tare = pc.TareWeight
		}
	}
	if gross != nil {
		load.GrossWeight = gross
	}
	if tare != nil {
		load.TareWeight = tare
	}
	load.RecalculateNetWeight()
}

// stampMilestones records the coarse operational timestamps reporting reads
// from the load row directly.
func (s *transitionService) stampMilestones(load *model.Load, target model.LoadStatus, now time.Time) {
	switch target {
	case model.StatusAssigned:
		if load.ScheduledAt == nil {
			t := now
			load.ScheduledAt = &t
		}
	case model.StatusEnRouteDestination:
		if load.DispatchedAt == nil {
			t := now
			load.DispatchedAt = &t
		}
	case model.StatusAtDestination:
		if load.ArrivedAt == nil {
			t := now
			load.ArrivedAt = &t
		}
	}
}

// UpdateAttributes merges checkpoint evidence into the load's bag. Every
// payload present in the patch is validated before anything is written, so a
// malformed patch changes nothing.
func (s *transitionService) UpdateAttributes(ctx context.Context, loadID uint, patch model.CheckpointBag) (*model.Load, error) {
	load, err := s.loadRepo.GetByID(ctx, loadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, notFound("load", loadID)
		}
		return nil, err
	}
	if load.Status.IsTerminal() {
		return nil, &InvalidTransitionError{
			LoadID: load.ID,
			From:   load.Status,
			To:     load.Status,
			Reason: "load is completed and no longer accepts evidence",
		}
	}

	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}

	load.Checkpoints.Merge(patch)
	if err := s.loadRepo.SaveAttributes(ctx, load); err != nil {
		return nil, err
	}

	if err := s.cache.SetLoad(ctx, load); err != nil {
		log.Warn().Err(err).Uint("load_id", load.ID).Msg("Failed to refresh cached load")
	}
	return load, nil
}

// validatePatch runs struct validation over each checkpoint payload present
// in the patch.
func (s *transitionService) validatePatch(patch model.CheckpointBag) error {
	payloads := []interface{}{}
	if patch.DriverAcceptance != nil {
		payloads = append(payloads, patch.DriverAcceptance)
	}
	if patch.GeofenceConfirmation != nil {
		payloads = append(payloads, patch.GeofenceConfirmation)
	}
	if patch.ManualPickupConfirmation != nil {
		payloads = append(payloads, patch.ManualPickupConfirmation)
	}
	if patch.PickupConfirmation != nil {
		payloads = append(payloads, patch.PickupConfirmation)
	}
	if patch.GateEntry != nil {
		payloads = append(payloads, patch.GateEntry)
	}
	if patch.DisposalCompletion != nil {
		payloads = append(payloads, patch.DisposalCompletion)
	}
	for _, p := range payloads {
		if err := s.validate.Struct(p); err != nil {
			return err
		}
	}
	return nil
}

// AllowedTargets returns the statuses the load can move to next.
func (s *transitionService) AllowedTargets(ctx context.Context, loadID uint) ([]model.LoadStatus, error) {
	load, err := s.GetLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	return fsm.AllowedTargets(load.Status, load.FlowVariant()), nil
}

// Timeline returns the load's complete audit history in order.
func (s *transitionService) Timeline(ctx context.Context, loadID uint) ([]*model.StatusTransition, error) {
	if _, err := s.loadRepo.GetByID(ctx, loadID); err != nil {
		if err == repository.ErrNotFound {
			return nil, notFound("load", loadID)
		}
		return nil, err
	}
	return s.transitionRepo.ListByLoadID(ctx, loadID)
}

// TimeInStatus returns the cumulative time the load has spent in the given
// status across all visits, counting an open interval up to now.
func (s *transitionService) TimeInStatus(ctx context.Context, loadID uint, status model.LoadStatus) (time.Duration, error) {
	transitions, err := s.Timeline(ctx, loadID)
	if err != nil {
		return 0, err
	}
	return timeInStatus(transitions, status, s.now()), nil
}

// CurrentStateAge returns the load's current status and how long it has been
// in it. A load with no transitions yet is aged from its creation.
func (s *transitionService) CurrentStateAge(ctx context.Context, loadID uint) (model.LoadStatus, time.Duration, error) {
	load, err := s.loadRepo.GetByID(ctx, loadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", 0, notFound("load", loadID)
		}
		return "", 0, err
	}

	latest, err := s.transitionRepo.Latest(ctx, loadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return load.Status, s.now().Sub(load.CreatedAt), nil
		}
		return "", 0, err
	}
	return load.Status, s.now().Sub(latest.Timestamp), nil
}

// TransitionsInRange returns the transitions committed inside a time window,
// optionally restricted to one target status. Feeds period SLA reporting.
func (s *transitionService) TransitionsInRange(ctx context.Context, start, end time.Time, toStatus *model.LoadStatus) ([]*model.StatusTransition, error) {
	return s.transitionRepo.ListByRange(ctx, start, end, toStatus)
}

// timeInStatus walks the ordered transition history pairing each entry into
// the status with the next exit from it. A final entry without an exit is an
// open interval measured up to now. Revisits accumulate.
func timeInStatus(transitions []*model.StatusTransition, status model.LoadStatus, now time.Time) time.Duration {
	var total time.Duration
	var enteredAt *time.Time

	for _, tr := range transitions {
		if tr.ToStatus == status && enteredAt == nil {
			t := tr.Timestamp
			enteredAt = &t
			continue
		}
		if tr.FromStatus == status && enteredAt != nil {
			total += tr.Timestamp.Sub(*enteredAt)
			enteredAt = nil
		}
	}
	if enteredAt != nil {
		total += now.Sub(*enteredAt)
	}
	return total
}
