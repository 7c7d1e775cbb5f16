package eventbus

import (
	"time"

	"example.com/backstage/services/logistics/internal/model"
)

// StatusChanged is the payload of KindLoadStatusChanged.
type StatusChanged struct {
	LoadID     uint             `json:"load_id"`
	FromStatus model.LoadStatus `json:"from_status"`
	ToStatus   model.LoadStatus `json:"to_status"`
	Timestamp  time.Time        `json:"timestamp"`
	UserID     *uint            `json:"user_id,omitempty"`
	VehicleID  *uint            `json:"vehicle_id,omitempty"`
}

// ArrivedAtField is the payload of KindLoadArrivedAtField, consumed by the
// field reception collaborator.
type ArrivedAtField struct {
	LoadID    uint      `json:"load_id"`
	SiteID    uint      `json:"site_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TripLinked is the payload of KindTripLinked.
type TripLinked struct {
	TripID    string    `json:"trip_id"`
	LoadIDs   []uint    `json:"load_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// TripResourcesAssigned is the payload of KindTripResourcesAssigned.
type TripResourcesAssigned struct {
	TripID      string    `json:"trip_id"`
	LoadIDs     []uint    `json:"load_ids"`
	DriverID    uint      `json:"driver_id"`
	VehicleID   uint      `json:"vehicle_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
