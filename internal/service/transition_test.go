package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/fsm"
	"example.com/backstage/services/logistics/internal/metrics"
	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/repository"
)

func newTestTransitionService(loadRepo *MockLoadRepository, trRepo *MockTransitionRepository, bus *recordingBus) *transitionService {
	return &transitionService{
		loadRepo:       loadRepo,
		transitionRepo: trRepo,
		cache:          newFakeCache(),
		bus:            bus,
		validate:       validator.New(),
		collector:      metrics.NewCollector(),
		now:            time.Now,
	}
}

// fullEvidence returns a bag carrying everything the disposal flow requires.
func fullEvidence() model.CheckpointBag {
	gross := 23000.0
	tare := 9000.0
	return model.CheckpointBag{
		DriverAcceptance:     &model.DriverAcceptance{DriverID: 4, Timestamp: time.Now()},
		GeofenceConfirmation: &model.GeofenceConfirmation{Timestamp: time.Now()},
		PickupConfirmation:   &model.PickupConfirmation{Timestamp: time.Now(), TicketRef: "T-1"},
		GateEntry:            &model.GateEntry{Timestamp: time.Now(), GateRef: "G-1"},
		DisposalCompletion: &model.DisposalCompletion{
			ApplicationDate: time.Now(),
			PlotID:          5,
			OperatorID:      9,
		},
		GrossWeight: &gross,
		TareWeight:  &tare,
	}
}

func TestTransitionFullDisposalLifecycle(t *testing.T) {
	siteID := uint(40)
	load := &model.Load{
		ID:                1,
		Status:            model.StatusRequested,
		DestinationSiteID: &siteID,
		Checkpoints:       fullEvidence(),
	}

	loadRepo := new(MockLoadRepository)
	trRepo := new(MockTransitionRepository)
	bus := &recordingBus{}
	svc := newTestTransitionService(loadRepo, trRepo, bus)

	var audit []*model.StatusTransition
	loadRepo.On("GetByID", mock.Anything, uint(1)).Return(load, nil)
	loadRepo.On("CommitTransition", mock.Anything, load, mock.AnythingOfType("*model.StatusTransition")).
		Run(func(args mock.Arguments) {
			audit = append(audit, args.Get(2).(*model.StatusTransition))
		}).
		Return(nil)

	path := []model.LoadStatus{
		model.StatusAssigned,
		model.StatusAccepted,
		model.StatusEnRoutePickup,
		model.StatusAtPickup,
		model.StatusEnRouteDestination,
		model.StatusAtDestination,
		model.StatusInDisposal,
		model.StatusCompleted,
	}
	for _, target := range path {
		got, err := svc.Transition(context.Background(), &TransitionRequest{
			LoadID:       1,
			TargetStatus: target.String(),
		})
		require.NoError(t, err, "transition to %s", target)
		require.Equal(t, target, got.Status)
	}

	// The audit chain is contiguous: every row starts where the previous ended
	require.Len(t, audit, len(path))
	require.Equal(t, model.StatusRequested, audit[0].FromStatus)
	for i := 1; i < len(audit); i++ {
		require.Equal(t, audit[i-1].ToStatus, audit[i].FromStatus)
	}
	require.Equal(t, model.StatusCompleted, audit[len(audit)-1].ToStatus)

	// One status event per transition, one field arrival
	require.Len(t, bus.byKind(eventbus.KindLoadStatusChanged), len(path))
	arrived := bus.byKind(eventbus.KindLoadArrivedAtField)
	require.Len(t, arrived, 1)
	require.Equal(t, siteID, arrived[0].Payload.(eventbus.ArrivedAtField).SiteID)

	// Weights were promoted out of the bag
	require.NotNil(t, load.NetWeight)
	require.Equal(t, 14000.0, *load.NetWeight)
	require.NotNil(t, load.DispatchedAt)
	require.NotNil(t, load.ArrivedAt)
}

func TestTransitionFullTreatmentLifecycle(t *testing.T) {
	plantID := uint(60)
	approved := true
	load := &model.Load{
		ID:                 2,
		Status:             model.StatusRequested,
		DestinationPlantID: &plantID,
		Checkpoints: model.CheckpointBag{
			DriverAcceptance:     &model.DriverAcceptance{DriverID: 4, Timestamp: time.Now()},
			GeofenceConfirmation: &model.GeofenceConfirmation{Timestamp: time.Now()},
			PickupConfirmation:   &model.PickupConfirmation{Timestamp: time.Now(), TicketRef: "T-2"},
			GateEntry:            &model.GateEntry{Timestamp: time.Now(), GateRef: "G-2"},
			EntryWeightTicket:    "ET-9",
			ExitWeightTicket:     "XT-9",
			LabApproved:          &approved,
		},
	}

	loadRepo := new(MockLoadRepository)
	trRepo := new(MockTransitionRepository)
	bus := &recordingBus{}
	svc := newTestTransitionService(loadRepo, trRepo, bus)

	var audit []*model.StatusTransition
	loadRepo.On("GetByID", mock.Anything, uint(2)).Return(load, nil)
	loadRepo.On("CommitTransition", mock.Anything, load, mock.AnythingOfType("*model.StatusTransition")).
		Run(func(args mock.Arguments) {
			audit = append(audit, args.Get(2).(*model.StatusTransition))
		}).
		Return(nil)

	// Treatment loads skip IN_DISPOSAL: seven hops from REQUESTED to COMPLETED
	path := []model.LoadStatus{
		model.StatusAssigned,
		model.StatusAccepted,
		model.StatusEnRoutePickup,
		model.StatusAtPickup,
		model.StatusEnRouteDestination,
		model.StatusAtDestination,
		model.StatusCompleted,
	}
	for _, target := range path {
		got, err := svc.Transition(context.Background(), &TransitionRequest{
			LoadID:       2,
			TargetStatus: target.String(),
		})
		require.NoError(t, err, "transition to %s", target)
		require.Equal(t, target, got.Status)
	}

	require.Len(t, audit, 7)
	require.Equal(t, model.StatusRequested, audit[0].FromStatus)
	for i := 1; i < len(audit); i++ {
		require.Equal(t, audit[i-1].ToStatus, audit[i].FromStatus)
	}
	require.Equal(t, model.StatusCompleted, audit[len(audit)-1].ToStatus)

	// Plant deliveries publish status events only, never a field arrival
	require.Len(t, bus.byKind(eventbus.KindLoadStatusChanged), len(path))
	require.Empty(t, bus.byKind(eventbus.KindLoadArrivedAtField))
}

func TestCreateLoadValidatesRoute(t *testing.T) {
	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})

	facilityID := uint(10)
	plantID := uint(20)
	siteID := uint(30)

	_, err := svc.CreateLoad(context.Background(), &CreateLoadRequest{})
	require.ErrorIs(t, err, ErrAmbiguousOrigin)

	_, err = svc.CreateLoad(context.Background(), &CreateLoadRequest{
		OriginFacilityID: &facilityID,
		OriginPlantID:    &plantID,
	})
	require.ErrorIs(t, err, ErrAmbiguousOrigin)

	_, err = svc.CreateLoad(context.Background(), &CreateLoadRequest{
		OriginFacilityID:   &facilityID,
		DestinationSiteID:  &siteID,
		DestinationPlantID: &plantID,
	})
	require.ErrorIs(t, err, ErrAmbiguousDestination)
	loadRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	loadRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Load")).
		Return(&model.Load{ID: 1, Status: model.StatusRequested}, nil)

	created, err := svc.CreateLoad(context.Background(), &CreateLoadRequest{
		OriginFacilityID: &facilityID,
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, created.Status)
}

func TestTransitionRejectsUnknownEdge(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 2, Status: model.StatusRequested, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	bus := &recordingBus{}
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), bus)

	loadRepo.On("GetByID", mock.Anything, uint(2)).Return(load, nil)

	_, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       2,
		TargetStatus: model.StatusAtDestination.String(),
	})

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, model.StatusRequested, invalid.From)
	require.Equal(t, model.StatusAtDestination, invalid.To)

	// Nothing was committed and nothing was published
	require.Equal(t, model.StatusRequested, load.Status)
	loadRepo.AssertNotCalled(t, "CommitTransition", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, bus.events)
}

func TestTransitionRejectsSelfLoop(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 2, Status: model.StatusRequested, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(2)).Return(load, nil)

	_, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       2,
		TargetStatus: model.StatusRequested.String(),
	})

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	loadRepo.AssertNotCalled(t, "CommitTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionGuardFailureLeavesLoadUntouched(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 5, Status: model.StatusAssigned, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	bus := &recordingBus{}
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), bus)
	loadRepo.On("GetByID", mock.Anything, uint(5)).Return(load, nil)

	_, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       5,
		TargetStatus: model.StatusAccepted.String(),
	})

	var cpErr *fsm.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	require.Equal(t, "driver_acceptance", cpErr.Checkpoint)

	require.Equal(t, model.StatusAssigned, load.Status)
	loadRepo.AssertNotCalled(t, "CommitTransition", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, bus.events)
}

func TestTransitionVariantRestriction(t *testing.T) {
	// A treatment flow load never passes through IN_DISPOSAL
	plantID := uint(3)
	load := &model.Load{
		ID:                 6,
		Status:             model.StatusAtDestination,
		DestinationPlantID: &plantID,
	}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(6)).Return(load, nil)

	_, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       6,
		TargetStatus: model.StatusInDisposal.String(),
	})

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestTransitionTreatmentCompletion(t *testing.T) {
	plantID := uint(3)
	approved := true
	load := &model.Load{
		ID:                 7,
		Status:             model.StatusAtDestination,
		DestinationPlantID: &plantID,
		Checkpoints: model.CheckpointBag{
			EntryWeightTicket: "ET-1",
			FinalWeightTicket: "FT-1",
			LabApproved:       &approved,
		},
	}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(7)).Return(load, nil)
	loadRepo.On("CommitTransition", mock.Anything, load, mock.AnythingOfType("*model.StatusTransition")).Return(nil)

	got, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       7,
		TargetStatus: model.StatusCompleted.String(),
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
}

func TestTransitionAcceptsLegacyStatusNames(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 8, Status: model.StatusRequested, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(8)).Return(load, nil)
	loadRepo.On("CommitTransition", mock.Anything, load, mock.AnythingOfType("*model.StatusTransition")).Return(nil)

	got, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       8,
		TargetStatus: "Scheduled",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusAssigned, got.Status)
}

func TestTransitionUnknownLoad(t *testing.T) {
	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(99)).Return(nil, repository.ErrNotFound)

	_, err := svc.Transition(context.Background(), &TransitionRequest{
		LoadID:       99,
		TargetStatus: model.StatusAssigned.String(),
	})

	var notFoundErr *EntityNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	require.Equal(t, "load", notFoundErr.Entity)
}

func TestUpdateAttributesValidatesBeforeWriting(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 10, Status: model.StatusAssigned, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(10)).Return(load, nil)

	// DriverID missing -> validation failure, nothing saved
	_, err := svc.UpdateAttributes(context.Background(), 10, model.CheckpointBag{
		DriverAcceptance: &model.DriverAcceptance{Timestamp: time.Now()},
	})
	require.Error(t, err)
	require.Nil(t, load.Checkpoints.DriverAcceptance)
	loadRepo.AssertNotCalled(t, "SaveAttributes", mock.Anything, mock.Anything)
}

func TestUpdateAttributesMergesEvidence(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{
		ID:                 11,
		Status:             model.StatusAssigned,
		DestinationPlantID: &plantID,
		Checkpoints:        model.CheckpointBag{EntryWeightTicket: "ET-2"},
	}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(11)).Return(load, nil)
	loadRepo.On("SaveAttributes", mock.Anything, load).Return(nil)

	got, err := svc.UpdateAttributes(context.Background(), 11, model.CheckpointBag{
		DriverAcceptance: &model.DriverAcceptance{DriverID: 4, Timestamp: time.Now()},
	})
	require.NoError(t, err)
	require.NotNil(t, got.Checkpoints.DriverAcceptance)
	require.Equal(t, "ET-2", got.Checkpoints.EntryWeightTicket)
	loadRepo.AssertExpectations(t)
}

func TestUpdateAttributesRejectsCompletedLoad(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 12, Status: model.StatusCompleted, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(12)).Return(load, nil)

	_, err := svc.UpdateAttributes(context.Background(), 12, model.CheckpointBag{EntryWeightTicket: "ET-3"})

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	loadRepo.AssertNotCalled(t, "SaveAttributes", mock.Anything, mock.Anything)
}

func TestTimeInStatusAccumulatesRevisitsAndOpenInterval(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	transitions := []*model.StatusTransition{
		{FromStatus: model.StatusRequested, ToStatus: model.StatusAssigned, Timestamp: base},
		{FromStatus: model.StatusAssigned, ToStatus: model.StatusAccepted, Timestamp: base.Add(2 * time.Hour)},
	}

	// One closed interval of 2h
	require.Equal(t, 2*time.Hour, timeInStatus(transitions, model.StatusAssigned, base.Add(10*time.Hour)))

	// ACCEPTED is still open: counted up to now
	require.Equal(t, 8*time.Hour, timeInStatus(transitions, model.StatusAccepted, base.Add(10*time.Hour)))

	// Never entered
	require.Zero(t, timeInStatus(transitions, model.StatusAtPickup, base.Add(10*time.Hour)))
	require.Zero(t, timeInStatus(nil, model.StatusAssigned, base))
}

func TestGetLoadUsesCache(t *testing.T) {
	plantID := uint(3)
	load := &model.Load{ID: 20, Status: model.StatusRequested, DestinationPlantID: &plantID}

	loadRepo := new(MockLoadRepository)
	svc := newTestTransitionService(loadRepo, new(MockTransitionRepository), &recordingBus{})
	loadRepo.On("GetByID", mock.Anything, uint(20)).Return(load, nil).Once()

	// First read misses and hits the repository
	got, err := svc.GetLoad(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, load.ID, got.ID)

	// Second read is served from cache; the repo expectation is exhausted
	got, err = svc.GetLoad(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, load.ID, got.ID)
	loadRepo.AssertExpectations(t)
}
