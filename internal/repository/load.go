package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/backstage/services/logistics/internal/model"
)

// LoadRepository defines data access for loads. The Commit* methods are the
// only write paths that touch status or audit rows; each wraps its effects
// in a single database transaction and guards every load update with the
// load's optimistic version counter.
type LoadRepository interface {
	Create(ctx context.Context, load *model.Load) (*model.Load, error)
	GetByID(ctx context.Context, id uint) (*model.Load, error)
	GetByTripID(ctx context.Context, tripID string) ([]*model.Load, error)
	FindByStatus(ctx context.Context, status model.LoadStatus) ([]*model.Load, error)
	FindActive(ctx context.Context) ([]*model.Load, error)
	FindLinkableCandidates(ctx context.Context, primary *model.Load) ([]*model.LinkCandidate, error)

	// SaveAttributes persists checkpoint bag changes without touching status.
	SaveAttributes(ctx context.Context, load *model.Load) error

	// CommitTransition atomically appends the audit row and updates the load.
	CommitTransition(ctx context.Context, load *model.Load, tr *model.StatusTransition) error

	// LinkIntoTrip atomically persists trip correlation and role on every
	// load, or none of them.
	LinkIntoTrip(ctx context.Context, loads []*model.Load) error

	// CommitTripAssignment atomically updates every load of a trip and
	// appends one audit row per load, or does nothing.
	CommitTripAssignment(ctx context.Context, loads []*model.Load, trs []*model.StatusTransition) error
}

// loadRepository implements LoadRepository
type loadRepository struct {
	db *gorm.DB
}

// NewLoadRepository creates a new load repository
func NewLoadRepository(db *gorm.DB) LoadRepository {
	return &loadRepository{db: db}
}

// Create creates a new load
func (r *loadRepository) Create(ctx context.Context, load *model.Load) (*model.Load, error) {
	if err := r.db.WithContext(ctx).Create(load).Error; err != nil {
		return nil, err
	}
	return load, nil
}

// GetByID gets a load by ID
func (r *loadRepository) GetByID(ctx context.Context, id uint) (*model.Load, error) {
	var load model.Load
	err := r.db.WithContext(ctx).First(&load, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &load, nil
}

// GetByTripID gets all loads sharing a trip correlation id
func (r *loadRepository) GetByTripID(ctx context.Context, tripID string) ([]*model.Load, error) {
	var loads []*model.Load
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("id").
		Find(&loads).Error
	if err != nil {
		return nil, err
	}
	return loads, nil
}

// FindByStatus finds all loads in a given status
func (r *loadRepository) FindByStatus(ctx context.Context, status model.LoadStatus) ([]*model.Load, error) {
	var loads []*model.Load
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id").
		Find(&loads).Error
	if err != nil {
		return nil, err
	}
	return loads, nil
}

// FindActive finds all loads that have not reached a terminal status
func (r *loadRepository) FindActive(ctx context.Context) ([]*model.Load, error) {
	var loads []*model.Load
	err := r.db.WithContext(ctx).
		Where("status <> ?", model.StatusCompleted).
		Order("id").
		Find(&loads).Error
	if err != nil {
		return nil, err
	}
	return loads, nil
}

// FindLinkableCandidates finds loads eligible to join the primary load in a
// linked trip: REQUESTED, uncorrelated, originating from an active link-point
// facility different from the primary's origin.
func (r *loadRepository) FindLinkableCandidates(ctx context.Context, primary *model.Load) ([]*model.LinkCandidate, error) {
	var originID uint
	if primary.OriginFacilityID != nil {
		originID = *primary.OriginFacilityID
	}

	var candidates []*model.LinkCandidate
	err := r.db.WithContext(ctx).
		Table("loads").
		Select("loads.id AS load_id, loads.origin_facility_id, loads.created_at, facilities.name AS origin_name").
		Joins("INNER JOIN facilities ON facilities.id = loads.origin_facility_id").
		Where("loads.status = ?", model.StatusRequested).
		Where("loads.id <> ?", primary.ID).
		Where("loads.trip_id IS NULL").
		Where("loads.origin_facility_id <> ?", originID).
		Where("facilities.is_link_point = ?", true).
		Where("facilities.is_active = ?", true).
		Order("loads.created_at").
		Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// SaveAttributes persists the load's checkpoint bag and touched timestamps
// under a version guard.
func (r *loadRepository) SaveAttributes(ctx context.Context, load *model.Load) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateGuarded(tx, load)
	})
}

// CommitTransition appends the audit row and updates the load as one unit.
func (r *loadRepository) CommitTransition(ctx context.Context, load *model.Load, tr *model.StatusTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tr).Error; err != nil {
			return err
		}
		return updateGuarded(tx, load)
	})
}

// LinkIntoTrip persists trip correlation for the whole set, or none of it.
func (r *loadRepository) LinkIntoTrip(ctx context.Context, loads []*model.Load) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, load := range loads {
			if err := updateGuarded(tx, load); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommitTripAssignment updates every load of a trip and appends the matching
// audit rows as one unit.
func (r *loadRepository) CommitTripAssignment(ctx context.Context, loads []*model.Load, trs []*model.StatusTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, tr := range trs {
			if err := tx.Create(tr).Error; err != nil {
				return err
			}
		}
		for _, load := range loads {
			if err := updateGuarded(tx, load); err != nil {
				return err
			}
		}
		return nil
	})
}

// updateGuarded writes the load row only if its version column still matches
// the version the caller read, bumping the version on success. A zero row
// count means another writer committed first.
func updateGuarded(tx *gorm.DB, load *model.Load) error {
	readVersion := load.Version
	load.Version = readVersion + 1

	res := tx.Model(&model.Load{}).
		Where("id = ? AND version = ?", load.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(load)
	if res.Error != nil {
		load.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		load.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}
