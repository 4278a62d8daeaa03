package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/repository"
)

// HistoryRetention removes old rows from the comparison log
type HistoryRetention struct {
	repo      repository.ComparisonRepository
	retention time.Duration
	now       func() time.Time
}

// NewHistoryRetention creates a retention job keeping rows younger than retention
func NewHistoryRetention(repo repository.ComparisonRepository, retention time.Duration) (*HistoryRetention, error) {
	if repo == nil {
		return nil, errors.New("comparison repository is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	return &HistoryRetention{repo: repo, retention: retention, now: time.Now}, nil
}

// Prune deletes every comparison older than the retention period
func (h *HistoryRetention) Prune(ctx context.Context) (int64, error) {
	cutoff := h.now().Add(-h.retention)
	n, err := h.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Pruned comparison history")
	return n, nil
}

// Schedule registers the prune on c using a standard cron spec
func (h *HistoryRetention) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := h.Prune(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled history prune failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set up cron job: %w", err)
	}
	return id, nil
}
