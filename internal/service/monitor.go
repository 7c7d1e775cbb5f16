package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/config"
	"example.com/backstage/services/logistics/internal/metrics"
	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/repository"
)

// StaleLoad is one load that has sat in its current status longer than the
// configured threshold for that status.
type StaleLoad struct {
	LoadID    uint             `json:"load_id"`
	Status    model.LoadStatus `json:"status"`
	Age       time.Duration    `json:"age"`
	Threshold time.Duration    `json:"threshold"`
}

// MonitorService sweeps active loads against per-status dwell thresholds. It
// only reports; nudging a stuck load is an operator action.
type MonitorService interface {
	SweepStaleLoads(ctx context.Context) ([]StaleLoad, error)
}

// monitorService implements MonitorService
type monitorService struct {
	loadRepo       repository.LoadRepository
	transitionRepo repository.TransitionRepository
	thresholds     map[string]time.Duration
	collector      *metrics.Collector
	now            func() time.Time
}

// NewMonitorService creates a new monitor service
func NewMonitorService(
	loadRepo repository.LoadRepository,
	transitionRepo repository.TransitionRepository,
	cfg config.SLAConfig,
) MonitorService {
	return &monitorService{
		loadRepo:       loadRepo,
		transitionRepo: transitionRepo,
		thresholds:     cfg.Thresholds,
		collector:      metrics.GetCollector(),
		now:            time.Now,
	}
}

// SweepStaleLoads checks every non-terminal load against the threshold for
// its current status. Statuses without a configured threshold are skipped.
// A load with no transitions yet is aged from its creation time.
func (s *monitorService) SweepStaleLoads(ctx context.Context) ([]StaleLoad, error) {
	loads, err := s.loadRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var stale []StaleLoad
	for _, load := range loads {
		threshold, ok := s.thresholds[load.Status.String()]
		if !ok {
			continue
		}

		enteredAt := load.CreatedAt
		latest, err := s.transitionRepo.Latest(ctx, load.ID)
		if err != nil {
			if err != repository.ErrNotFound {
				return nil, err
			}
		} else {
			enteredAt = latest.Timestamp
		}

		age := now.Sub(enteredAt)
		if age > threshold {
			stale = append(stale, StaleLoad{
				LoadID:    load.ID,
				Status:    load.Status,
				Age:       age,
				Threshold: threshold,
			})
			log.Warn().
				Uint("load_id", load.ID).
				Str("status", load.Status.String()).
				Dur("age", age).
				Dur("threshold", threshold).
				Msg("Load exceeded dwell threshold")
		}
	}

	if len(stale) > 0 {
		s.collector.IncrementCounter(metrics.CounterStaleLoadsFlagged, int64(len(stale)))
	}
	return stale, nil
}
