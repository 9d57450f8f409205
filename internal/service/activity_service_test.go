package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     ActionCertificateRevoked,
		EntityType: "certificate",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"email":      "trainee@example.com",
			"seed_token": "secret",
			"reason":     "fraud",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["seed_token"])
	require.Equal(t, "fraud", entry.Metadata["reason"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, uint(1), entry.ActorID)
}

func TestActivityServiceRecordsCorrelationID(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")
	entry, err := svc.Record(ctx, ActivityEntry{ActorID: 1, ActorRole: models.RoleAdmin, Action: ActionEntityCancelled, EntityType: "course", EntityID: ptrUint(3)})
	require.NoError(t, err)
	require.Equal(t, "req-42", entry.CorrelationID)
	require.Equal(t, "req-42", repo.entries[0].CorrelationID)

	entry, err = svc.Record(context.Background(), ActivityEntry{ActorID: 1, Action: ActionEntityCancelled, EntityType: "course"})
	require.NoError(t, err)
	require.Empty(t, entry.CorrelationID)
}

func TestActivityServiceRequiresActionAndEntity(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "course"})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: ActionEntityCancelled})
	require.Error(t, err)
}

func TestActivityServiceListPaginates(t *testing.T) {
	db, _ := setupStore(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	ctx := context.Background()

	recordActivity(ctx, svc, testLogger(), ActivityActor{ID: 2, Role: models.RoleTrainingStaff}, ActionCertificateRenewed, "certificate", 4, nil)
	recordActivity(ctx, svc, testLogger(), ActivityActor{}, ActionEntityCancelled, "course", 9, nil)

	list, err := svc.List(ctx, dto.ActivityListRequest{Page: 1, PageSize: 10, EntityType: "certificate"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, ActionCertificateRenewed, list.Items[0].Action)
	require.Equal(t, int64(1), list.Pagination.TotalItems)

	list, err = svc.List(ctx, dto.ActivityListRequest{Page: 1, PageSize: 10, ActorID: 0, EntityID: 9})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "system", list.Items[0].ActorRole)
}
