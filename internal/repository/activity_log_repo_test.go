package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/models"
)

func TestActivityLogListFiltersByEntityAndWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	courseID := uint(4)
	otherID := uint(5)
	entries := []models.ActivityLog{
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "course.cancelled", EntityType: "course", EntityID: &courseID, CreatedAt: base},
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "course.approved", EntityType: "course", EntityID: &courseID, CreatedAt: base.Add(-48 * time.Hour)},
		{ActorID: 2, ActorRole: models.RoleTrainingStaff, Action: "course.approved", EntityType: "course", EntityID: &otherID, CreatedAt: base},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	items, total, err := repo.List(ctx, ActivityLogFilter{EntityType: "course", EntityID: &courseID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "course.cancelled", items[0].Action)

	since := base.Add(-time.Hour)
	until := base.Add(time.Hour)
	items, total, err = repo.List(ctx, ActivityLogFilter{Since: &since, Until: &until, PageSize: 1, Page: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 1)

	items, _, err = repo.List(ctx, ActivityLogFilter{Until: &since})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "course.approved", items[0].Action)
}

func TestActivityLogListFiltersByCorrelation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	courseID := uint(4)
	requestID := uint(9)
	entries := []models.ActivityLog{
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "entity_cancelled", EntityType: "course", EntityID: &courseID, CorrelationID: "req-42"},
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "request_rejected", EntityType: "request", EntityID: &requestID, CorrelationID: "req-42"},
		{ActorID: 2, ActorRole: models.RoleTrainingStaff, Action: "request_submitted", EntityType: "request", EntityID: &requestID, CorrelationID: "req-7"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	items, total, err := repo.List(ctx, ActivityLogFilter{CorrelationID: "req-42"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, item := range items {
		require.Equal(t, "req-42", item.CorrelationID)
	}
}
