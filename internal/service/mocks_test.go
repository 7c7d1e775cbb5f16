package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"

	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/model"
)

// Mock repositories for testing

type MockLoadRepository struct {
	mock.Mock
}

func (m *MockLoadRepository) Create(ctx context.Context, load *model.Load) (*model.Load, error) {
	args := m.Called(ctx, load)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Load), args.Error(1)
}

func (m *MockLoadRepository) GetByID(ctx context.Context, id uint) (*model.Load, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Load), args.Error(1)
}

func (m *MockLoadRepository) GetByTripID(ctx context.Context, tripID string) ([]*model.Load, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Load), args.Error(1)
}

func (m *MockLoadRepository) FindByStatus(ctx context.Context, status model.LoadStatus) ([]*model.Load, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Load), args.Error(1)
}

func (m *MockLoadRepository) FindActive(ctx context.Context) ([]*model.Load, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Load), args.Error(1)
}

func (m *MockLoadRepository) FindLinkableCandidates(ctx context.Context, primary *model.Load) ([]*model.LinkCandidate, error) {
	args := m.Called(ctx, primary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LinkCandidate), args.Error(1)
}

func (m *MockLoadRepository) SaveAttributes(ctx context.Context, load *model.Load) error {
	args := m.Called(ctx, load)
	return args.Error(0)
}

func (m *MockLoadRepository) CommitTransition(ctx context.Context, load *model.Load, tr *model.StatusTransition) error {
	args := m.Called(ctx, load, tr)
	return args.Error(0)
}

func (m *MockLoadRepository) LinkIntoTrip(ctx context.Context, loads []*model.Load) error {
	args := m.Called(ctx, loads)
	return args.Error(0)
}

func (m *MockLoadRepository) CommitTripAssignment(ctx context.Context, loads []*model.Load, trs []*model.StatusTransition) error {
	args := m.Called(ctx, loads, trs)
	return args.Error(0)
}

type MockTransitionRepository struct {
	mock.Mock
}

func (m *MockTransitionRepository) ListByLoadID(ctx context.Context, loadID uint) ([]*model.StatusTransition, error) {
	args := m.Called(ctx, loadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatusTransition), args.Error(1)
}

func (m *MockTransitionRepository) Latest(ctx context.Context, loadID uint) (*model.StatusTransition, error) {
	args := m.Called(ctx, loadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StatusTransition), args.Error(1)
}

func (m *MockTransitionRepository) ListByRange(ctx context.Context, start, end time.Time, toStatus *model.LoadStatus) ([]*model.StatusTransition, error) {
	args := m.Called(ctx, start, end, toStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatusTransition), args.Error(1)
}

type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id uint) (*model.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vehicle), args.Error(1)
}

type MockFacilityRepository struct {
	mock.Mock
}

func (m *MockFacilityRepository) GetByID(ctx context.Context, id uint) (*model.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Facility), args.Error(1)
}

type MockDistanceRepository struct {
	mock.Mock
}

func (m *MockDistanceRepository) RouteDistance(ctx context.Context, fromFacilityID, toFacilityID uint) (float64, bool, error) {
	args := m.Called(ctx, fromFacilityID, toFacilityID)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

// fakeCache is an in-memory stand-in for the Redis client.
type fakeCache struct {
	mu    sync.Mutex
	loads map[uint]*model.Load
	trips map[uint]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		loads: make(map[uint]*model.Load),
		trips: make(map[uint]int64),
	}
}

func (c *fakeCache) GetLoad(ctx context.Context, id uint) (*model.Load, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if load, ok := c.loads[id]; ok {
		return load, nil
	}
	return nil, redis.Nil
}

func (c *fakeCache) SetLoad(ctx context.Context, load *model.Load) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads[load.ID] = load
	return nil
}

func (c *fakeCache) DeleteLoad(ctx context.Context, id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loads, id)
	return nil
}

func (c *fakeCache) IncrementVehicleTripCount(ctx context.Context, vehicleID uint) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trips[vehicleID]++
	return c.trips[vehicleID], nil
}

func (c *fakeCache) FlushAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = make(map[uint]*model.Load)
	c.trips = make(map[uint]int64)
	return nil
}

// recordingBus captures published events in order.
type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Subscribe(kind eventbus.Kind, handler eventbus.Handler) {}

func (b *recordingBus) Publish(event eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) byKind(kind eventbus.Kind) []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []eventbus.Event
	for _, e := range b.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
