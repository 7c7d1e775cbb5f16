package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/backstage/services/logistics/internal/model"
)

// TransitionRepository is the read side of the audit log. Rows are only ever
// written through LoadRepository's commit methods, so the log stays
// append-only: nothing here updates or deletes.
type TransitionRepository interface {
	ListByLoadID(ctx context.Context, loadID uint) ([]*model.StatusTransition, error)
	Latest(ctx context.Context, loadID uint) (*model.StatusTransition, error)
	ListByRange(ctx context.Context, start, end time.Time, toStatus *model.LoadStatus) ([]*model.StatusTransition, error)
}

// transitionRepository implements TransitionRepository
type transitionRepository struct {
	db *gorm.DB
}

// NewTransitionRepository creates a new transition repository
func NewTransitionRepository(db *gorm.DB) TransitionRepository {
	return &transitionRepository{db: db}
}

// ListByLoadID returns a load's full history in chronological order.
func (r *transitionRepository) ListByLoadID(ctx context.Context, loadID uint) ([]*model.StatusTransition, error) {
	var transitions []*model.StatusTransition
	err := r.db.WithContext(ctx).
		Where("load_id = ?", loadID).
		Order("timestamp ASC, id ASC").
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

// Latest returns a load's most recent transition.
func (r *transitionRepository) Latest(ctx context.Context, loadID uint) (*model.StatusTransition, error) {
	var tr model.StatusTransition
	err := r.db.WithContext(ctx).
		Where("load_id = ?", loadID).
		Order("timestamp DESC, id DESC").
		First(&tr).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tr, nil
}

// ListByRange returns transitions within a time window, optionally filtered
// by target status. Used by SLA reporting.
func (r *transitionRepository) ListByRange(ctx context.Context, start, end time.Time, toStatus *model.LoadStatus) ([]*model.StatusTransition, error) {
	query := r.db.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", start, end)
	if toStatus != nil {
		query = query.Where("to_status = ?", *toStatus)
	}

	var transitions []*model.StatusTransition
	if err := query.Order("timestamp DESC").Find(&transitions).Error; err != nil {
		return nil, err
	}
	return transitions, nil
}
