package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/backstage/services/logistics/internal/model"
)

// VehicleRepository defines lookups against the vehicle register.
type VehicleRepository interface {
	GetByID(ctx context.Context, id uint) (*model.Vehicle, error)
}

// FacilityRepository defines lookups against the facility register.
type FacilityRepository interface {
	GetByID(ctx context.Context, id uint) (*model.Facility, error)
}

// DistanceRepository answers route distance queries between facilities from
// the pre-computed distance matrix. Pairs without an entry are unknown.
type DistanceRepository interface {
	RouteDistance(ctx context.Context, fromFacilityID, toFacilityID uint) (float64, bool, error)
}

type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

// GetByID gets a vehicle by ID
func (r *vehicleRepository) GetByID(ctx context.Context, id uint) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).First(&vehicle, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

type facilityRepository struct {
	db *gorm.DB
}

// NewFacilityRepository creates a new facility repository
func NewFacilityRepository(db *gorm.DB) FacilityRepository {
	return &facilityRepository{db: db}
}

// GetByID gets a facility by ID
func (r *facilityRepository) GetByID(ctx context.Context, id uint) (*model.Facility, error) {
	var facility model.Facility
	err := r.db.WithContext(ctx).First(&facility, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &facility, nil
}

type distanceRepository struct {
	db *gorm.DB
}

// NewDistanceRepository creates a new distance matrix repository
func NewDistanceRepository(db *gorm.DB) DistanceRepository {
	return &distanceRepository{db: db}
}

// RouteDistance returns the matrix distance between two facilities, checking
// both directions. The boolean is false when the pair has no entry.
func (r *distanceRepository) RouteDistance(ctx context.Context, fromFacilityID, toFacilityID uint) (float64, bool, error) {
	var entry model.FacilityDistance
	err := r.db.WithContext(ctx).
		Where("(from_facility_id = ? AND to_facility_id = ?) OR (from_facility_id = ? AND to_facility_id = ?)",
			fromFacilityID, toFacilityID, toFacilityID, fromFacilityID).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return entry.DistanceKM, true, nil
}
