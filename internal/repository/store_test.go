package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedCourse(t *testing.T, db *gorm.DB, status models.CourseStatus) (models.Course, models.ClassSubject) {
	t.Helper()
	now := time.Now().UTC()
	course := models.Course{Name: "Safety Basics", Status: status, CreatedBy: 1, StartDate: now, EndDate: now.Add(72 * time.Hour)}
	require.NoError(t, db.Create(&course).Error)
	class := models.Class{CourseID: course.ID, Name: "Batch A"}
	require.NoError(t, db.Create(&class).Error)
	subject := models.Subject{Code: uuid.NewString()[:8], Name: "Fire Drill", PassingScore: 60}
	require.NoError(t, db.Create(&subject).Error)
	classSubject := models.ClassSubject{ClassID: class.ID, SubjectID: subject.ID, Status: models.ClassSubjectStatusPending}
	require.NoError(t, db.Create(&classSubject).Error)
	return course, classSubject
}

func TestCourseCompareAndSetStatusOnlyMovesExpectedState(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	course, _ := seedCourse(t, db, models.CourseStatusActive)

	completedAt := time.Now().UTC()
	ok, err := store.Courses().CompareAndSetStatus(ctx, course.ID, models.CourseStatusActive, models.CourseStatusCompleted,
		map[string]interface{}{"completed_at": completedAt})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Courses().CompareAndSetStatus(ctx, course.ID, models.CourseStatusActive, models.CourseStatusCompleted, nil)
	require.NoError(t, err)
	require.False(t, ok, "second writer must lose the race")

	reloaded, err := store.Courses().GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, models.CourseStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)

	pending, err := store.Courses().ListCompletedWithoutCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.Courses().MarkCertificatesGenerated(ctx, course.ID, completedAt))
	pending, err = store.Courses().ListCompletedWithoutCertificates(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestClassSubjectLookupsResolveThroughClass(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	course, classSubject := seedCourse(t, db, models.CourseStatusActive)
	seedCourse(t, db, models.CourseStatusActive)

	items, err := store.ClassSubjects().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, classSubject.ID, items[0].ID)

	courseID, err := store.ClassSubjects().CourseIDOf(ctx, classSubject.ID)
	require.NoError(t, err)
	require.Equal(t, course.ID, courseID)

	subject, err := store.ClassSubjects().GetSubject(ctx, classSubject.ID)
	require.NoError(t, err)
	require.Equal(t, 60.0, subject.PassingScore)

	_, err = store.ClassSubjects().CourseIDOf(ctx, 9999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCertificateRenewalsAreSequencedAndOrdered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCertificateRepository(db)
	ctx := context.Background()

	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := issued.AddDate(1, 0, 0)
	cert := models.Certificate{Code: "CERT-1", TraineeID: 7, CourseID: 3, IssueDate: issued, ExpirationDate: &expires, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(ctx, &cert))

	first := models.CertificateRenewal{CertificateID: cert.ID, PreviousExpirationDate: &expires, NewExpirationDate: expires.AddDate(1, 0, 0), RenewedBy: 1, RenewalDate: issued.AddDate(1, 0, 1)}
	second := models.CertificateRenewal{CertificateID: cert.ID, NewExpirationDate: expires.AddDate(2, 0, 0), RenewedBy: 1, RenewalDate: issued.AddDate(2, 0, 1)}
	require.NoError(t, repo.AppendRenewal(ctx, &second))
	require.NoError(t, repo.AppendRenewal(ctx, &first))
	require.Equal(t, 1, second.Sequence)
	require.Equal(t, 2, first.Sequence)

	history, err := repo.ListRenewals(ctx, cert.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.ID, history[0].ID, "ordered by renewal date")
	require.Equal(t, second.ID, history[1].ID)
}

func TestCertificateNotificationMarkersAreClaimedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCertificateRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	expires := now.Add(24 * time.Hour)
	cert := models.Certificate{Code: "CERT-2", TraineeID: 7, CourseID: 3, IssueDate: now, ExpirationDate: &expires, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(ctx, &cert))

	due, err := repo.ListActiveExpiringBefore(ctx, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := repo.MarkExpiringNotified(ctx, cert.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = repo.MarkExpiringNotified(ctx, cert.ID, now)
	require.NoError(t, err)
	require.False(t, claimed)

	expired, err := repo.MarkExpired(ctx, cert.ID, now)
	require.NoError(t, err)
	require.True(t, expired)
	expired, err = repo.MarkExpired(ctx, cert.ID, now)
	require.NoError(t, err)
	require.False(t, expired)

	open, err := repo.FindOpen(ctx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusExpired, open.Status)
	require.NotNil(t, open.ExpiredNotifiedAt)
}

func TestRequestDecideRequiresPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	request := models.Request{Type: models.RequestTypeCourseApproval, EntityID: 4, RequestorID: 2, Status: models.RequestStatusPending}
	require.NoError(t, repo.Create(ctx, &request))

	found, err := repo.FindPending(ctx, models.RequestTypeCourseApproval, 4)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)

	now := time.Now().UTC()
	ok, err := repo.Decide(ctx, request.ID, RequestDecision{Status: models.RequestStatusApproved, ApproverID: 1, ApprovedDate: &now, DecidedAt: now})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Decide(ctx, request.ID, RequestDecision{Status: models.RequestStatusRejected, ApproverID: 1, DecidedAt: now})
	require.NoError(t, err)
	require.False(t, ok)

	items, total, err := repo.List(ctx, RequestFilter{Status: models.RequestStatusApproved, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.NotNil(t, items[0].ApproverID)
	require.Equal(t, uint(1), *items[0].ApproverID)

	_, err = repo.FindPending(ctx, models.RequestTypeCourseApproval, 4)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWithinTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	course, classSubject := seedCourse(t, db, models.CourseStatusActive)

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(tx Store) error {
		ok, err := tx.ClassSubjects().CompareAndSetStatus(ctx, classSubject.ID, models.ClassSubjectStatusPending, models.ClassSubjectStatusCompleted)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	reloaded, err := store.ClassSubjects().GetByID(ctx, classSubject.ID)
	require.NoError(t, err)
	require.Equal(t, models.ClassSubjectStatusPending, reloaded.Status)

	err = store.WithinTransaction(ctx, func(tx Store) error {
		_, err := tx.Courses().CompareAndSetStatus(ctx, course.ID, models.CourseStatusActive, models.CourseStatusCancelled, nil)
		return err
	})
	require.NoError(t, err)
	reloadedCourse, err := store.Courses().GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, models.CourseStatusCancelled, reloadedCourse.Status)
}

func TestNotificationRepositoryTracksUnread(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, []models.Notification{
		{UserID: "7", Type: "certificate_issued", EntityType: "certificate", EntityID: 1, Message: "issued"},
		{UserID: "7", Type: "certificate_expiring_soon", EntityType: "certificate", EntityID: 1, Message: "expiring"},
		{UserID: "8", Type: "certificate_issued", EntityType: "certificate", EntityID: 2, Message: "issued"},
	}))

	count, err := repo.CountUnread(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	items, err := repo.ListByUser(ctx, "7", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = repo.MarkRead(ctx, items[0].ID, "7")
	require.NoError(t, err)
	unread, err := repo.ListByUser(ctx, "7", true, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	_, err = repo.MarkRead(ctx, items[0].ID, "8")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCertificateOpenPairIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCertificateRepository(db)
	ctx := context.Background()
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := models.Certificate{Code: "CERT-A", TraineeID: 7, CourseID: 3, IssueDate: issued, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(ctx, &first))

	duplicate := models.Certificate{Code: "CERT-B", TraineeID: 7, CourseID: 3, IssueDate: issued, Status: models.CertificateStatusPending}
	err := repo.Create(ctx, &duplicate)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))

	revoked, err := repo.HasRevoked(ctx, 7, 3)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, db.Model(&models.Certificate{}).Where("id = ?", first.ID).Update("status", models.CertificateStatusRevoked).Error)
	replacement := models.Certificate{Code: "CERT-C", TraineeID: 7, CourseID: 3, IssueDate: issued, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(ctx, &replacement))

	revoked, err = repo.HasRevoked(ctx, 7, 3)
	require.NoError(t, err)
	require.True(t, revoked)

	other := models.Certificate{Code: "CERT-D", TraineeID: 8, CourseID: 3, IssueDate: issued, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(ctx, &other))
}

func TestInstructorApprovalIsUniquePerClassSubject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInstructorAssignmentRepository(db)
	ctx := context.Background()
	_, classSubject := seedCourse(t, db, models.CourseStatusActive)

	approved := models.InstructorAssignment{ClassSubjectID: classSubject.ID, InstructorID: 5, RequestStatus: models.RequestStatusApproved}
	require.NoError(t, db.Create(&approved).Error)
	pending := models.InstructorAssignment{ClassSubjectID: classSubject.ID, InstructorID: 6, RequestStatus: models.RequestStatusPending}
	require.NoError(t, db.Create(&pending).Error)
	rejected := models.InstructorAssignment{ClassSubjectID: classSubject.ID, InstructorID: 7, RequestStatus: models.RequestStatusRejected}
	require.NoError(t, db.Create(&rejected).Error)

	_, err := repo.CompareAndSetStatus(ctx, pending.ID, models.RequestStatusPending, models.RequestStatusApproved)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))

	current, err := repo.GetApprovedByClassSubject(ctx, classSubject.ID)
	require.NoError(t, err)
	require.Equal(t, approved.ID, current.ID)
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, IsUniqueViolation(nil))
	require.False(t, IsUniqueViolation(errors.New("connection refused")))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_certificate_open" (SQLSTATE 23505)`)))
}
