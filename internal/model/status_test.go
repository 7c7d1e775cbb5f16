package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    LoadStatus
		wantErr bool
	}{
		{raw: "REQUESTED", want: StatusRequested},
		{raw: "EN_ROUTE_DESTINATION", want: StatusEnRouteDestination},
		{raw: "COMPLETED", want: StatusCompleted},
		// Legacy spellings from the previous planning system
		{raw: "Requested", want: StatusRequested},
		{raw: "Scheduled", want: StatusAssigned},
		{raw: "Accepted", want: StatusAccepted},
		{raw: "InTransit", want: StatusEnRouteDestination},
		{raw: "Arrived", want: StatusAtDestination},
		{raw: "Delivered", want: StatusCompleted},
		{raw: "Bogus", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "requested", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		if s == StatusCompleted {
			require.True(t, s.IsTerminal())
		} else {
			require.False(t, s.IsTerminal(), "status %s must not be terminal", s)
		}
	}
}

func TestLoadFlowVariant(t *testing.T) {
	siteID := uint(7)
	plantID := uint(3)

	disposal := &Load{DestinationSiteID: &siteID}
	require.Equal(t, FlowDisposal, disposal.FlowVariant())

	treatment := &Load{DestinationPlantID: &plantID}
	require.Equal(t, FlowTreatment, treatment.FlowVariant())
}

func TestRecalculateNetWeight(t *testing.T) {
	gross := 24000.0
	tare := 9500.0

	load := &Load{GrossWeight: &gross, TareWeight: &tare}
	load.RecalculateNetWeight()
	require.NotNil(t, load.NetWeight)
	require.Equal(t, 14500.0, *load.NetWeight)

	// Net stays untouched while either side is missing
	partial := &Load{GrossWeight: &gross}
	partial.RecalculateNetWeight()
	require.Nil(t, partial.NetWeight)
}

func TestFacilityAllows(t *testing.T) {
	open := &Facility{AllowedVehicleTypes: ""}
	require.True(t, open.Allows(VehicleTypeBatea))
	require.True(t, open.Allows(VehicleTypeAmpliroll))

	restricted := &Facility{AllowedVehicleTypes: "AMPLIROLL, BATEA"}
	require.True(t, restricted.Allows(VehicleTypeBatea))
	require.True(t, restricted.Allows(VehicleTypeAmpliroll))

	amplirollOnly := &Facility{AllowedVehicleTypes: "AMPLIROLL"}
	require.False(t, amplirollOnly.Allows(VehicleTypeBatea))
	require.True(t, amplirollOnly.Allows(VehicleTypeAmpliroll))
}

func TestVehicleTypeMultiContainer(t *testing.T) {
	require.True(t, VehicleTypeAmpliroll.MultiContainer())
	require.False(t, VehicleTypeBatea.MultiContainer())
}
