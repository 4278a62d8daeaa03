package usecases

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/repository"
)

func TestHistoryRetentionPrune(t *testing.T) {
	repo, err := repository.NewSQLiteComparisonRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer repo.Close()

	now := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, repo.SaveComparison(ctx, &entities.ComparisonRecord{Komm1: "1", Komm2: "2", CreatedAt: now.Add(-31 * 24 * time.Hour)}))
	require.NoError(t, repo.SaveComparison(ctx, &entities.ComparisonRecord{Komm1: "3", Komm2: "4", CreatedAt: now.Add(-time.Hour)}))

	retention, err := NewHistoryRetention(repo, 30*24*time.Hour)
	require.NoError(t, err)
	retention.now = func() time.Time { return now }

	n, err := retention.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := repo.RecentComparisons(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "3", recs[0].Komm1)
}

func TestHistoryRetentionSchedule(t *testing.T) {
	retention, err := NewHistoryRetention(repository.NoopComparisonRepository{}, time.Hour)
	require.NoError(t, err)

	c := cron.New()
	id, err := retention.Schedule(c, "@hourly")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = retention.Schedule(c, "not a spec")
	assert.Error(t, err)
}

func TestNewHistoryRetentionValidates(t *testing.T) {
	_, err := NewHistoryRetention(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewHistoryRetention(repository.NoopComparisonRepository{}, 0)
	assert.Error(t, err)
}
