package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Load represents a consignment of material moving from an origin to a
// destination through the transition lifecycle. Exactly one origin reference
// and one destination reference are set at any time; the destination kind
// selects the flow variant.
type Load struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Route
	OriginFacilityID   *uint `json:"origin_facility_id" gorm:"index"`
	OriginPlantID      *uint `json:"origin_plant_id"`
	DestinationSiteID  *uint `json:"destination_site_id"`
	DestinationPlantID *uint `json:"destination_plant_id"`

	// Assignment, nullable until the load reaches ASSIGNED
	VehicleID *uint `json:"vehicle_id" gorm:"index"`
	DriverID  *uint `json:"driver_id"`

	Status LoadStatus `json:"status" gorm:"type:varchar(32);index"`

	// Trip correlation; set once by trip linking, never reassigned
	TripID   *string   `json:"trip_id" gorm:"type:uuid;index"`
	TripRole *TripRole `json:"trip_role" gorm:"type:varchar(16)"`

	// Weight facts; net is always recomputed from gross and tare
	GrossWeight *float64 `json:"gross_weight"`
	TareWeight  *float64 `json:"tare_weight"`
	NetWeight   *float64 `json:"net_weight"`

	Checkpoints CheckpointBag `json:"checkpoints" gorm:"type:jsonb"`

	// Lifecycle milestones
	RequestedAt  *time.Time `json:"requested_at"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	DispatchedAt *time.Time `json:"dispatched_at"`
	ArrivedAt    *time.Time `json:"arrived_at"`

	CreatedByUserID *uint `json:"created_by_user_id"`

	// Optimistic concurrency counter, bumped on every committed mutation
	Version uint `json:"version"`
}

// FlowVariant returns the lifecycle branch selected by the load's
// destination kind.
func (l *Load) FlowVariant() FlowVariant {
	if l.DestinationSiteID != nil {
		return FlowDisposal
	}
	return FlowTreatment
}

// RecalculateNetWeight recomputes net weight from gross and tare. Net weight
// is never edited independently.
func (l *Load) RecalculateNetWeight() {
	if l.GrossWeight != nil && l.TareWeight != nil {
		net := *l.GrossWeight - *l.TareWeight
		l.NetWeight = &net
	}
}

// StatusTransition is an immutable audit record of one committed transition.
// A load's history is the ordered sequence of its rows; each row's FromStatus
// equals the previous row's ToStatus.
type StatusTransition struct {
	ID         uint       `json:"id" gorm:"primarykey"`
	LoadID     uint       `json:"load_id" gorm:"index:idx_transitions_load_time"`
	FromStatus LoadStatus `json:"from_status" gorm:"type:varchar(32)"`
	ToStatus   LoadStatus `json:"to_status" gorm:"type:varchar(32);index"`
	Timestamp  time.Time  `json:"timestamp" gorm:"index:idx_transitions_load_time"`
	UserID     *uint      `json:"user_id"`
	Note       string     `json:"note"`
}

// VehicleType classifies a vehicle's container capability.
type VehicleType string

const (
	// VehicleTypeBatea is a flatbed carrying a single container
	VehicleTypeBatea VehicleType = "BATEA"
	// VehicleTypeAmpliroll is a hooklift carrying up to two containers
	VehicleTypeAmpliroll VehicleType = "AMPLIROLL"
)

// MultiContainer reports whether the vehicle category can service a linked
// multi-stop trip.
func (t VehicleType) MultiContainer() bool {
	return t == VehicleTypeAmpliroll
}

// Vehicle represents a transport vehicle operated by a contractor.
type Vehicle struct {
	ID           uint        `json:"id" gorm:"primarykey"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ContractorID uint        `json:"contractor_id"`
	LicensePlate string      `json:"license_plate" gorm:"uniqueIndex"`
	Type         VehicleType `json:"type" gorm:"type:varchar(16)"`
	TareWeight   float64     `json:"tare_weight"`
	CapacityTons float64     `json:"capacity_tons"`
	IsActive     bool        `json:"is_active" gorm:"default:true"`
}

// Facility represents a client plant where loads originate. Facilities
// flagged as link points may act as intermediate stops on linked trips.
type Facility struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `json:"name"`
	ClientID  *uint     `json:"client_id"`
	// Comma-separated vehicle type allow-list; empty means any type
	AllowedVehicleTypes string `json:"allowed_vehicle_types"`
	IsLinkPoint         bool   `json:"is_link_point"`
	IsActive            bool   `json:"is_active" gorm:"default:true"`
}

// AllowedTypes parses the facility's vehicle type allow-list. An empty list
// means the facility accepts any vehicle type.
func (f *Facility) AllowedTypes() []VehicleType {
	if f.AllowedVehicleTypes == "" {
		return nil
	}
	var types []VehicleType
	for _, raw := range strings.Split(f.AllowedVehicleTypes, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		types = append(types, VehicleType(raw))
	}
	return types
}

// Allows reports whether the facility accepts the given vehicle type.
func (f *Facility) Allows(t VehicleType) bool {
	allowed := f.AllowedTypes()
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// FacilityDistance is one entry of the pre-computed distance matrix between
// facilities. Pairs without an entry have unknown distance.
type FacilityDistance struct {
	ID             uint    `json:"id" gorm:"primarykey"`
	FromFacilityID uint    `json:"from_facility_id" gorm:"index:idx_distance_pair,unique"`
	ToFacilityID   uint    `json:"to_facility_id" gorm:"index:idx_distance_pair,unique"`
	DistanceKM     float64 `json:"distance_km"`
}

// LinkCandidate is a load eligible to be combined with a primary load into a
// linked trip, annotated with the distance from the primary load's origin.
type LinkCandidate struct {
	LoadID           uint      `json:"load_id"`
	OriginFacilityID uint      `json:"origin_facility_id"`
	OriginName       string    `json:"origin_name"`
	DistanceKM       *float64  `json:"distance_km"`
	CreatedAt        time.Time `json:"created_at"`
}

// SetupModels runs the schema migrations for all entities.
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Load{},
		&StatusTransition{},
		&Vehicle{},
		&Facility{},
		&FacilityDistance{},
	)
}
