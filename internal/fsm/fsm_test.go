package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logistics/internal/model"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		from    model.LoadStatus
		to      model.LoadStatus
		variant model.FlowVariant
		want    bool
	}{
		{"requested to assigned", model.StatusRequested, model.StatusAssigned, model.FlowDisposal, true},
		{"assigned to accepted", model.StatusAssigned, model.StatusAccepted, model.FlowTreatment, true},
		{"accepted to en route pickup", model.StatusAccepted, model.StatusEnRoutePickup, model.FlowDisposal, true},
		{"en route pickup to at pickup", model.StatusEnRoutePickup, model.StatusAtPickup, model.FlowDisposal, true},
		{"at pickup to en route destination", model.StatusAtPickup, model.StatusEnRouteDestination, model.FlowTreatment, true},
		{"en route destination to at destination", model.StatusEnRouteDestination, model.StatusAtDestination, model.FlowDisposal, true},

		{"disposal stage only on disposal flow", model.StatusAtDestination, model.StatusInDisposal, model.FlowDisposal, true},
		{"no disposal stage on treatment flow", model.StatusAtDestination, model.StatusInDisposal, model.FlowTreatment, false},
		{"disposal completes from in disposal", model.StatusInDisposal, model.StatusCompleted, model.FlowDisposal, true},
		{"treatment completes from at destination", model.StatusAtDestination, model.StatusCompleted, model.FlowTreatment, true},
		{"disposal cannot complete from at destination", model.StatusAtDestination, model.StatusCompleted, model.FlowDisposal, false},

		{"no skipping states", model.StatusRequested, model.StatusAccepted, model.FlowDisposal, false},
		{"no going backwards", model.StatusAtPickup, model.StatusEnRoutePickup, model.FlowDisposal, false},
		{"no self loop", model.StatusRequested, model.StatusRequested, model.FlowDisposal, false},
		{"completed is terminal", model.StatusCompleted, model.StatusRequested, model.FlowDisposal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsAllowed(tt.from, tt.to, tt.variant))
		})
	}
}

func TestCompletedHasNoTargets(t *testing.T) {
	require.Empty(t, AllowedTargets(model.StatusCompleted, model.FlowDisposal))
	require.Empty(t, AllowedTargets(model.StatusCompleted, model.FlowTreatment))
}

func TestAllowedTargetsByVariant(t *testing.T) {
	disposal := AllowedTargets(model.StatusAtDestination, model.FlowDisposal)
	require.Equal(t, []model.LoadStatus{model.StatusInDisposal}, disposal)

	treatment := AllowedTargets(model.StatusAtDestination, model.FlowTreatment)
	require.Equal(t, []model.LoadStatus{model.StatusCompleted}, treatment)
}

func TestGuardsFor(t *testing.T) {
	guards, ok := GuardsFor(model.StatusAssigned, model.StatusAccepted, model.FlowDisposal)
	require.True(t, ok)
	require.Len(t, guards, 1)

	guards, ok = GuardsFor(model.StatusAtDestination, model.StatusCompleted, model.FlowTreatment)
	require.True(t, ok)
	require.Len(t, guards, 3)

	// Unguarded edges exist with an empty guard list
	guards, ok = GuardsFor(model.StatusRequested, model.StatusAssigned, model.FlowDisposal)
	require.True(t, ok)
	require.Empty(t, guards)

	_, ok = GuardsFor(model.StatusRequested, model.StatusCompleted, model.FlowDisposal)
	require.False(t, ok)
}
