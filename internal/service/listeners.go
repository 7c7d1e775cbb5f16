package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/cache"
	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/messagebus"
	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/search"
)

// The listeners translate in-process domain events into side effects on the
// collaborating systems. All of them are best-effort: a failed side effect is
// logged and never unwinds the transition that produced the event.

const publishTimeout = 15 * time.Second
const publishRetries = 3

// ListenerDeps bundles the collaborators the listeners fan out to.
type ListenerDeps struct {
	Bus        eventbus.Bus
	MessageBus messagebus.Client
	Cache      cache.CacheClient
	Search     *search.ElasticClient

	ComplianceQueue     string
	CostingQueue        string
	FieldReceptionQueue string
}

// RegisterListeners subscribes every collaborator to the events it cares
// about. Call once at startup, before the first transition.
func RegisterListeners(deps ListenerDeps) {
	deps.Bus.Subscribe(eventbus.KindLoadStatusChanged, deps.onStatusChangedCompliance)
	deps.Bus.Subscribe(eventbus.KindLoadStatusChanged, deps.onStatusChangedCosting)
	deps.Bus.Subscribe(eventbus.KindLoadStatusChanged, deps.onStatusChangedMaintenance)
	deps.Bus.Subscribe(eventbus.KindLoadStatusChanged, deps.onStatusChangedIndex)
	deps.Bus.Subscribe(eventbus.KindLoadArrivedAtField, deps.onArrivedAtField)
}

// onStatusChangedCompliance requests a transport manifest when a load
// departs loaded for its destination.
func (d ListenerDeps) onStatusChangedCompliance(event eventbus.Event) {
	payload, ok := event.Payload.(eventbus.StatusChanged)
	if !ok || payload.ToStatus != model.StatusEnRouteDestination {
		return
	}
	d.publish(d.ComplianceQueue, map[string]interface{}{
		"type":      "manifest_request",
		"load_id":   payload.LoadID,
		"timestamp": payload.Timestamp,
	})
}

// onStatusChangedCosting forwards completed loads to cost accrual.
func (d ListenerDeps) onStatusChangedCosting(event eventbus.Event) {
	payload, ok := event.Payload.(eventbus.StatusChanged)
	if !ok || payload.ToStatus != model.StatusCompleted {
		return
	}
	d.publish(d.CostingQueue, map[string]interface{}{
		"type":      "load_completed",
		"load_id":   payload.LoadID,
		"timestamp": payload.Timestamp,
	})
}

// onStatusChangedMaintenance bumps the vehicle's completed-trip counter, which
// feeds maintenance interval scheduling.
func (d ListenerDeps) onStatusChangedMaintenance(event eventbus.Event) {
	payload, ok := event.Payload.(eventbus.StatusChanged)
	if !ok || payload.ToStatus != model.StatusCompleted || payload.VehicleID == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := d.Cache.IncrementVehicleTripCount(ctx, *payload.VehicleID); err != nil {
		log.Warn().Err(err).
			Uint("vehicle_id", *payload.VehicleID).
			Msg("Failed to bump vehicle trip counter")
	}
}

// onStatusChangedIndex projects the transition into the search index.
func (d ListenerDeps) onStatusChangedIndex(event eventbus.Event) {
	payload, ok := event.Payload.(eventbus.StatusChanged)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	tr := &model.StatusTransition{
		LoadID:     payload.LoadID,
		FromStatus: payload.FromStatus,
		ToStatus:   payload.ToStatus,
		Timestamp:  payload.Timestamp,
		UserID:     payload.UserID,
	}
	if err := d.Search.IndexTransition(ctx, tr); err != nil {
		log.Warn().Err(err).Uint("load_id", payload.LoadID).Msg("Failed to index transition")
	}
}

// onArrivedAtField notifies field reception that a disposal load reached its
// site.
func (d ListenerDeps) onArrivedAtField(event eventbus.Event) {
	payload, ok := event.Payload.(eventbus.ArrivedAtField)
	if !ok {
		return
	}
	d.publish(d.FieldReceptionQueue, map[string]interface{}{
		"type":      "load_arrived",
		"load_id":   payload.LoadID,
		"site_id":   payload.SiteID,
		"timestamp": payload.Timestamp,
	})
}

func (d ListenerDeps) publish(queue string, message map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := messagebus.RetryWithBackoff(ctx, func() error {
		return d.MessageBus.PublishMessage(ctx, message, queue)
	}, publishRetries)
	if err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("Failed to publish message")
	}
}
