package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/models"
)

var certificateNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func defaultCertificatePolicy() CertificatePolicy {
	return CertificatePolicy{
		ValidFor:      365 * 24 * time.Hour,
		WarningWindow: 30 * 24 * time.Hour,
		RenewalWindow: 30 * 24 * time.Hour,
	}
}

func newTestCertificateService(t *testing.T, policy CertificatePolicy, cache *redis.Client) (*certificateService, builder, *recordingEmitter) {
	t.Helper()
	db, store := setupStore(t)
	emitter := &recordingEmitter{}
	svc := NewCertificateService(store, cache, time.Minute, policy, emitter, &recordingActivity{}, testLogger()).(*certificateService)
	svc.now = fixedClock(certificateNow)
	return svc, newBuilder(t, db), emitter
}

func TestAutoGenerateIssuesOnlyForPassingTrainees(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	course, _ := b.completedCourse(map[uint]models.GradeStatus{
		10: models.GradeStatusPassed,
		11: models.GradeStatusFailed,
		12: models.GradeStatusPending,
	})

	report, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Len(t, report.Issued, 1)
	require.Equal(t, 2, report.Skipped)

	certificate := report.Issued[0]
	require.Equal(t, uint(10), certificate.TraineeID)
	require.Equal(t, models.CertificateStatusActive, certificate.Status)
	require.Equal(t, certificateNow, certificate.IssueDate)
	require.NotNil(t, certificate.ExpirationDate)
	require.Equal(t, certificateNow.Add(365*24*time.Hour), *certificate.ExpirationDate)
	require.Regexp(t, `^CERT-2025-[0-9A-F]{10}$`, certificate.Code)

	stored, err := svc.store.Courses().GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CertificatesGeneratedAt)

	require.Len(t, emitter.ofType(EventCertificateIssued), 1)
}

func TestAutoGenerateIsIdempotent(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	course, _ := b.completedCourse(map[uint]models.GradeStatus{10: models.GradeStatusPassed})

	first, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Len(t, first.Issued, 1)

	second, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Empty(t, second.Issued)
	require.Equal(t, 1, second.Skipped)

	certificates, err := svc.store.Certificates().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, certificates, 1)
	require.Len(t, emitter.ofType(EventCertificateIssued), 1)
}

func TestAutoGenerateSkipsCertificateIssuedConcurrently(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	course, _ := b.completedCourse(map[uint]models.GradeStatus{10: models.GradeStatusPassed})
	existing := b.certificate(10, course.ID, models.CertificateStatusActive, nil)
	svc.store = faultyStore{Store: svc.store, staleOpenInTx: true}

	report, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Empty(t, report.Issued)
	require.Equal(t, 1, report.Skipped)
	require.Zero(t, report.Failed)

	certificates, err := svc.store.Certificates().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, certificates, 1)
	require.Equal(t, existing.ID, certificates[0].ID)
	require.Empty(t, emitter.ofType(EventCertificateIssued))
}

func TestAutoGenerateDoesNotReissueRevokedCertificates(t *testing.T) {
	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()
	admin := ActivityActor{ID: 1, Role: models.RoleAdmin}

	course, _ := b.completedCourse(map[uint]models.GradeStatus{10: models.GradeStatusPassed, 11: models.GradeStatusPassed})
	first, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Len(t, first.Issued, 2)

	var revokedID uint
	for _, certificate := range first.Issued {
		if certificate.TraineeID == 10 {
			revokedID = certificate.ID
		}
	}
	_, err = svc.Revoke(ctx, revokedID, "misconduct", admin)
	require.NoError(t, err)

	second, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Empty(t, second.Issued)
	require.Equal(t, 2, second.Skipped)

	owned, err := svc.ListByTrainee(ctx, 10)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, models.CertificateStatusRevoked, owned[0].Status)

	// A grade re-evaluation may still restore the certificate.
	require.NoError(t, svc.Reevaluate(ctx, course.ID, 10, admin))
	open, err := svc.store.Certificates().FindOpen(ctx, 10, course.ID)
	require.NoError(t, err)
	require.NotEqual(t, revokedID, open.ID)
}

func TestAutoGenerateRequiresCompletedCourse(t *testing.T) {
	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), nil)

	course := b.course(models.CourseStatusActive, 1)
	_, err := svc.AutoGenerateForCourse(context.Background(), course.ID, 1)
	require.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	_, err = svc.AutoGenerateForCourse(context.Background(), 9999, 1)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestAutoGenerateRecordsRelearnSubjects(t *testing.T) {
	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	course := b.course(models.CourseStatusCompleted, 1)
	regular := b.classSubject(course.ID, 60)
	relearn := b.classSubject(course.ID, 60)

	first := b.trainee(regular.ID, 20, models.RequestStatusApproved)
	b.grade(first.ID, models.GradeStatusPassed)
	second := models.TraineeAssignment{ClassSubjectID: relearn.ID, TraineeID: 20, RequestStatus: models.RequestStatusApproved, IsRelearn: true}
	b.create(&second)
	b.grade(second.ID, models.GradeStatusPassed)
	b.trainee(relearn.ID, 21, models.RequestStatusRejected)

	report, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Len(t, report.Issued, 1)

	stored, err := svc.store.Certificates().GetByID(ctx, report.Issued[0].ID)
	require.NoError(t, err)
	require.True(t, stored.IsRelearn)
	require.Equal(t, []uint{relearn.SubjectID}, []uint(stored.RelearnSubjectIDs))
}

func TestAutoGenerateHonoursCourseValidityAndVerification(t *testing.T) {
	policy := defaultCertificatePolicy()
	policy.RequireVerification = true
	svc, b, _ := newTestCertificateService(t, policy, nil)
	ctx := context.Background()

	course, _ := b.completedCourse(map[uint]models.GradeStatus{10: models.GradeStatusPassed})
	noExpiry := 0
	require.NoError(t, b.db.Model(&models.Course{}).Where("id = ?", course.ID).Update("certificate_validity_days", noExpiry).Error)

	report, err := svc.AutoGenerateForCourse(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Len(t, report.Issued, 1)
	certificate := report.Issued[0]
	require.Equal(t, models.CertificateStatusPending, certificate.Status)
	require.Nil(t, certificate.ExpirationDate)

	verified, err := svc.Verify(ctx, certificate.ID, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusActive, verified.Status)

	_, err = svc.Verify(ctx, certificate.ID, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)
}

func TestCompletionHookGeneratesExactlyOnce(t *testing.T) {
	db, store := setupStore(t)
	b := newBuilder(t, db)
	ctx := context.Background()

	certificates := NewCertificateService(store, nil, time.Minute, defaultCertificatePolicy(), nil, nil, testLogger())
	var generated int
	hook := func(ctx context.Context, course models.Course) {
		generated++
		_, err := certificates.AutoGenerateForCourse(ctx, course.ID, 0)
		require.NoError(t, err)
	}
	progress := NewProgressService(store, nil, nil, hook, testLogger()).(*progressService)

	course := b.course(models.CourseStatusActive, 1)
	classSubject := b.classSubject(course.ID, 60)
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	b.schedule(classSubject.ID, base, base.Add(2*time.Hour))
	assignment := b.trainee(classSubject.ID, 30, models.RequestStatusApproved)
	b.grade(assignment.ID, models.GradeStatusPassed)

	progress.now = fixedClock(base.Add(3 * time.Hour))
	_, err := progress.RunSweep(ctx)
	require.NoError(t, err)
	_, err = progress.RunSweep(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, generated)
	issued, err := store.Certificates().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, issued, 1)
}

func TestExpiringSoonIsEmittedOnce(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	expiration := certificateNow.Add(10 * 24 * time.Hour)
	certificate := b.certificate(40, 1, models.CertificateStatusActive, &expiration)
	farAway := certificateNow.Add(90 * 24 * time.Hour)
	b.certificate(41, 1, models.CertificateStatusActive, &farAway)

	report, err := svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.ExpiringSoon)

	report, err = svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Zero(t, report.ExpiringSoon)

	events := emitter.ofType(EventCertificateExpiringSoon)
	require.Len(t, events, 1)
	require.Equal(t, certificate.ID, events[0].EntityID)
	require.Equal(t, []uint{40}, events[0].RecipientIDs)

	svc.now = fixedClock(expiration.Add(time.Hour))
	report, err = svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Expired)

	stored, err := svc.store.Certificates().GetByID(ctx, certificate.ID)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusExpired, stored.Status)
	require.NotNil(t, stored.ExpiredNotifiedAt)

	report, err = svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Expired)
	require.Len(t, emitter.ofType(EventCertificateExpired), 1)
}

func TestExpirySweepBackfillsGeneration(t *testing.T) {
	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()

	course, _ := b.completedCourse(map[uint]models.GradeStatus{10: models.GradeStatusPassed})

	report, err := svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Backfilled)

	report, err = svc.CheckAndNotifyExpiringCertificates(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Backfilled)

	issued, err := svc.store.Certificates().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, issued, 1)
}

func TestRenewAppendsOrderedHistory(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()
	staff := ActivityActor{ID: 2, Role: models.RoleTrainingStaff}

	expiration := certificateNow.Add(-24 * time.Hour)
	certificate := b.certificate(40, 1, models.CertificateStatusExpired, &expiration)

	firstTarget := certificateNow.Add(10 * 24 * time.Hour)
	renewed, err := svc.Renew(ctx, certificate.ID, firstTarget, staff)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusActive, renewed.Status)
	require.Equal(t, firstTarget, *renewed.ExpirationDate)
	require.Nil(t, renewed.ExpiringNotifiedAt)

	svc.now = fixedClock(certificateNow.Add(time.Hour))
	secondTarget := certificateNow.Add(400 * 24 * time.Hour)
	_, err = svc.Renew(ctx, certificate.ID, secondTarget, staff)
	require.NoError(t, err)

	history, err := svc.GetRenewalHistory(ctx, certificate.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1, history[0].Sequence)
	require.Equal(t, 2, history[1].Sequence)
	require.WithinDuration(t, expiration, *history[0].PreviousExpirationDate, time.Second)
	require.WithinDuration(t, firstTarget, history[0].NewExpirationDate, time.Second)
	require.WithinDuration(t, firstTarget, *history[1].PreviousExpirationDate, time.Second)
	require.WithinDuration(t, secondTarget, history[1].NewExpirationDate, time.Second)
	require.Equal(t, uint(2), history[1].RenewedBy)

	require.Len(t, emitter.ofType(EventCertificateRenewed), 2)
}

func TestRenewRejectsIneligibleCertificates(t *testing.T) {
	policy := defaultCertificatePolicy()
	policy.RenewalGrace = 7 * 24 * time.Hour
	svc, b, _ := newTestCertificateService(t, policy, nil)
	ctx := context.Background()
	staff := ActivityActor{ID: 2, Role: models.RoleTrainingStaff}
	target := certificateNow.Add(365 * 24 * time.Hour)

	farAway := certificateNow.Add(200 * 24 * time.Hour)
	active := b.certificate(40, 1, models.CertificateStatusActive, &farAway)
	_, err := svc.Renew(ctx, active.ID, target.Add(200*24*time.Hour), staff)
	require.ErrorIs(t, err, lifecycle.ErrNotExpired)

	nonExpiring := b.certificate(41, 1, models.CertificateStatusActive, nil)
	_, err = svc.Renew(ctx, nonExpiring.ID, target, staff)
	require.ErrorIs(t, err, lifecycle.ErrNotExpired)

	pending := b.certificate(42, 1, models.CertificateStatusPending, &farAway)
	_, err = svc.Renew(ctx, pending.ID, target, staff)
	require.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	revoked := b.certificate(43, 1, models.CertificateStatusRevoked, &farAway)
	_, err = svc.Renew(ctx, revoked.ID, target, staff)
	require.ErrorIs(t, err, lifecycle.ErrAlreadyRevoked)

	longExpired := certificateNow.Add(-30 * 24 * time.Hour)
	stale := b.certificate(44, 1, models.CertificateStatusExpired, &longExpired)
	_, err = svc.Renew(ctx, stale.ID, target, staff)
	require.ErrorIs(t, err, ErrRenewalNotAllowed)

	recent := certificateNow.Add(-24 * time.Hour)
	expired := b.certificate(45, 1, models.CertificateStatusExpired, &recent)
	_, err = svc.Renew(ctx, expired.ID, certificateNow.Add(-time.Hour), staff)
	require.ErrorIs(t, err, ErrInvalidExpiration)

	_, err = svc.Renew(ctx, 9999, target, staff)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	history, err := svc.GetRenewalHistory(ctx, expired.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestRenewalHistoryIsCachedAndInvalidated(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), client)
	ctx := context.Background()
	staff := ActivityActor{ID: 2, Role: models.RoleTrainingStaff}

	expiration := certificateNow.Add(-time.Hour)
	certificate := b.certificate(40, 1, models.CertificateStatusExpired, &expiration)

	history, err := svc.GetRenewalHistory(ctx, certificate.ID)
	require.NoError(t, err)
	require.Empty(t, history)
	key := fmt.Sprintf("certificates:renewals:%d", certificate.ID)
	require.True(t, server.Exists(key))

	_, err = svc.Renew(ctx, certificate.ID, certificateNow.Add(24*time.Hour), staff)
	require.NoError(t, err)
	require.False(t, server.Exists(key))

	history, err = svc.GetRenewalHistory(ctx, certificate.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	cached, err := svc.GetRenewalHistory(ctx, certificate.ID)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, history[0].ID, cached[0].ID)
}

func TestRevokeIsTerminal(t *testing.T) {
	svc, b, emitter := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()
	admin := ActivityActor{ID: 1, Role: models.RoleAdmin}

	expiration := certificateNow.Add(100 * 24 * time.Hour)
	certificate := b.certificate(40, 1, models.CertificateStatusActive, &expiration)

	revoked, err := svc.Revoke(ctx, certificate.ID, "<b>fraud</b> detected", admin)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusRevoked, revoked.Status)
	require.Equal(t, "fraud detected", revoked.RevocationReason)
	require.NotNil(t, revoked.RevokedAt)

	_, err = svc.Revoke(ctx, certificate.ID, "again", admin)
	require.ErrorIs(t, err, lifecycle.ErrAlreadyRevoked)
	require.Len(t, emitter.ofType(EventCertificateRevoked), 1)
}

func TestReevaluateIssuesAndRevokes(t *testing.T) {
	svc, b, _ := newTestCertificateService(t, defaultCertificatePolicy(), nil)
	ctx := context.Background()
	admin := ActivityActor{ID: 1, Role: models.RoleAdmin}

	course := b.course(models.CourseStatusCompleted, 1)
	classSubject := b.classSubject(course.ID, 60)
	assignment := b.trainee(classSubject.ID, 50, models.RequestStatusApproved)
	grade := b.grade(assignment.ID, models.GradeStatusPassed)

	require.NoError(t, svc.Reevaluate(ctx, course.ID, 50, admin))
	open, err := svc.store.Certificates().FindOpen(ctx, 50, course.ID)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusActive, open.Status)

	require.NoError(t, b.db.Model(&models.Grade{}).Where("id = ?", grade.ID).Update("status", models.GradeStatusFailed).Error)
	require.NoError(t, svc.Reevaluate(ctx, course.ID, 50, admin))

	stored, err := svc.store.Certificates().GetByID(ctx, open.ID)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusRevoked, stored.Status)
	require.Equal(t, "grade correction", stored.RevocationReason)
}
