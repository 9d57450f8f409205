package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/observability"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

const renewalHistoryCachePrefix = "certificates:renewals:"

// CertificatePolicy configures issuance, expiry warnings and renewal eligibility.
type CertificatePolicy struct {
	// ValidFor is the default validity; zero issues non-expiring certificates.
	ValidFor time.Duration
	// RequireVerification issues certificates as pending until verified.
	RequireVerification bool
	// WarningWindow is how long before expiration the expiring-soon event fires.
	WarningWindow time.Duration
	// RenewalWindow is how long before expiration an active certificate may be renewed.
	RenewalWindow time.Duration
	// RenewalGrace is how long after expiration renewal stays possible; zero means no limit.
	RenewalGrace time.Duration
}

// GenerationReport lists the certificates issued for a course.
type GenerationReport struct {
	CourseID uint                 `json:"course_id"`
	Issued   []models.Certificate `json:"issued"`
	Skipped  int                  `json:"skipped"`
	Failed   int                  `json:"failed"`
}

// ExpirationReport summarises one certificate expiry sweep.
type ExpirationReport struct {
	Scanned      int `json:"scanned"`
	ExpiringSoon int `json:"expiring_soon"`
	Expired      int `json:"expired"`
	Backfilled   int `json:"backfilled"`
	Failed       int `json:"failed"`
}

// CertificateReevaluator re-checks certification after a grade correction.
type CertificateReevaluator interface {
	Reevaluate(ctx context.Context, courseID, traineeID uint, actor ActivityActor) error
}

// CertificateService drives the certificate lifecycle from issuance to revocation.
type CertificateService interface {
	CertificateReevaluator
	AutoGenerateForCourse(ctx context.Context, courseID, issuedBy uint) (GenerationReport, error)
	CheckAndNotifyExpiringCertificates(ctx context.Context) (ExpirationReport, error)
	Renew(ctx context.Context, id uint, newExpiration time.Time, actor ActivityActor) (models.Certificate, error)
	Revoke(ctx context.Context, id uint, reason string, actor ActivityActor) (models.Certificate, error)
	Verify(ctx context.Context, id uint, actor ActivityActor) (models.Certificate, error)
	GetRenewalHistory(ctx context.Context, id uint) ([]models.CertificateRenewal, error)
	Get(ctx context.Context, id uint) (models.Certificate, error)
	ListByTrainee(ctx context.Context, traineeID uint) ([]models.Certificate, error)
}

type certificateService struct {
	store     repository.Store
	cache     *redis.Client
	cacheTTL  time.Duration
	policy    CertificatePolicy
	emitter   EventEmitter
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	locks     *entityLocker
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCertificateService constructs the certificate lifecycle engine. cache may be nil.
func NewCertificateService(store repository.Store, cache *redis.Client, cacheTTL time.Duration, policy CertificatePolicy, emitter EventEmitter, activity ActivityRecorder, logger zerolog.Logger) CertificateService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &certificateService{
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		policy:    policy,
		emitter:   emitter,
		activity:  activity,
		sanitizer: bluemonday.StrictPolicy(),
		locks:     newEntityLocker(),
		logger:    logger.With().Str("component", "certificate_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-training-api/internal/service/certificate"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AsyncCertificateGeneration adapts the service into a course completion hook that
// generates certificates in the background. A crash before generation finishes is
// recovered by the certificate sweep.
func AsyncCertificateGeneration(svc CertificateService, logger zerolog.Logger) CourseCompletionHook {
	log := logger.With().Str("component", "certificate_generation").Logger()
	return func(ctx context.Context, course models.Course) {
		detached := context.WithoutCancel(ctx)
		go func() {
			ctx, cancel := context.WithTimeout(detached, 5*time.Minute)
			defer cancel()
			report, err := svc.AutoGenerateForCourse(ctx, course.ID, 0)
			if err != nil {
				log.Error().Err(err).Uint("course_id", course.ID).Msg("certificate generation failed")
				return
			}
			log.Info().Uint("course_id", course.ID).Int("issued", len(report.Issued)).Msg("certificates generated")
		}()
	}
}

type traineeStanding int

const (
	standingIncomplete traineeStanding = iota
	standingPassed
	standingFailed
)

type traineeRecord struct {
	traineeID      uint
	standing       traineeStanding
	relearnSubject []uint
}

func (s *certificateService) AutoGenerateForCourse(ctx context.Context, courseID, issuedBy uint) (GenerationReport, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.generate", trace.WithAttributes(attribute.Int64("course.id", int64(courseID))))
	defer span.End()

	release := s.locks.Lock(lockKey("course_certificates", courseID))
	defer release()

	report := GenerationReport{CourseID: courseID, Issued: []models.Certificate{}}

	course, err := s.store.Courses().GetByID(ctx, courseID)
	if err != nil {
		return report, s.spanError(span, gatewayError("course", "AutoGenerate", err))
	}
	if course.Status != models.CourseStatusCompleted {
		return report, s.spanError(span, lifecycle.NewError("course", "AutoGenerate", lifecycle.ErrInvalidStateTransition,
			fmt.Sprintf("course %d is %s, certificates require a completed course", courseID, course.Status)))
	}

	records, err := s.traineeRecords(ctx, s.store, courseID)
	if err != nil {
		return report, s.spanError(span, err)
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if record.standing != standingPassed {
			report.Skipped++
			continue
		}

		certificate, issued, err := s.issue(ctx, course, record, issuedBy, false)
		if err != nil {
			report.Failed++
			s.logger.Error().Err(err).Uint("course_id", courseID).Uint("trainee_id", record.traineeID).Msg("failed to issue certificate")
			continue
		}
		if !issued {
			report.Skipped++
			continue
		}
		report.Issued = append(report.Issued, certificate)
	}

	if report.Failed == 0 {
		if err := s.store.Courses().MarkCertificatesGenerated(ctx, courseID, s.now()); err != nil {
			return report, s.spanError(span, gatewayError("course", "AutoGenerate", err))
		}
	}

	span.SetAttributes(attribute.Int("certificates.issued", len(report.Issued)))
	return report, nil
}

// traineeRecords computes the certification standing of every trainee with at least one
// approved assignment in the course's non-cancelled class subjects.
func (s *certificateService) traineeRecords(ctx context.Context, store repository.Store, courseID uint) ([]traineeRecord, error) {
	classSubjects, err := store.ClassSubjects().ListByCourse(ctx, courseID)
	if err != nil {
		return nil, gatewayError("course", "TraineeRecords", err)
	}

	subjectByClassSubject := make(map[uint]uint, len(classSubjects))
	classSubjectIDs := make([]uint, 0, len(classSubjects))
	for _, classSubject := range classSubjects {
		if classSubject.Status == models.ClassSubjectStatusCancelled {
			continue
		}
		subjectByClassSubject[classSubject.ID] = classSubject.SubjectID
		classSubjectIDs = append(classSubjectIDs, classSubject.ID)
	}

	assignments, err := store.TraineeAssignments().ListByClassSubjects(ctx, classSubjectIDs)
	if err != nil {
		return nil, gatewayError("trainee_assignment", "TraineeRecords", err)
	}

	approved := make([]models.TraineeAssignment, 0, len(assignments))
	assignmentIDs := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		if !assignment.IsApproved() {
			continue
		}
		approved = append(approved, assignment)
		assignmentIDs = append(assignmentIDs, assignment.ID)
	}

	grades, err := store.Grades().ListByAssignments(ctx, assignmentIDs)
	if err != nil {
		return nil, gatewayError("grade", "TraineeRecords", err)
	}
	gradeByAssignment := make(map[uint]models.Grade, len(grades))
	for _, grade := range grades {
		gradeByAssignment[grade.TraineeAssignmentID] = grade
	}

	byTrainee := make(map[uint]*traineeRecord)
	for _, assignment := range approved {
		record, ok := byTrainee[assignment.TraineeID]
		if !ok {
			record = &traineeRecord{traineeID: assignment.TraineeID, standing: standingPassed}
			byTrainee[assignment.TraineeID] = record
		}

		grade, graded := gradeByAssignment[assignment.ID]
		switch {
		case graded && grade.Status == models.GradeStatusFailed:
			record.standing = standingFailed
		case !graded || grade.Status != models.GradeStatusPassed:
			if record.standing != standingFailed {
				record.standing = standingIncomplete
			}
		}

		if assignment.IsRelearn {
			record.relearnSubject = append(record.relearnSubject, subjectByClassSubject[assignment.ClassSubjectID])
		}
	}

	records := make([]traineeRecord, 0, len(byTrainee))
	for _, record := range byTrainee {
		sort.Slice(record.relearnSubject, func(i, j int) bool { return record.relearnSubject[i] < record.relearnSubject[j] })
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].traineeID < records[j].traineeID })
	return records, nil
}

// issue creates the certificate for one trainee unless a non-revoked one already exists.
// Trainees whose certificate was revoked are only reissued when reissueRevoked is set.
func (s *certificateService) issue(ctx context.Context, course models.Course, record traineeRecord, issuedBy uint, reissueRevoked bool) (models.Certificate, bool, error) {
	release := s.locks.Lock(fmt.Sprintf("certificate:%d:%d", record.traineeID, course.ID))
	defer release()

	var (
		certificate models.Certificate
		issued      bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		_, err := tx.Certificates().FindOpen(ctx, record.traineeID, course.ID)
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return gatewayError("certificate", "Issue", err)
		}
		if !reissueRevoked {
			revoked, err := tx.Certificates().HasRevoked(ctx, record.traineeID, course.ID)
			if err != nil {
				return gatewayError("certificate", "Issue", err)
			}
			if revoked {
				return nil
			}
		}

		now := s.now()
		status := models.CertificateStatusActive
		if s.policy.RequireVerification {
			status = models.CertificateStatusPending
		}

		certificate = models.Certificate{
			Code:              newCertificateCode(now),
			TraineeID:         record.traineeID,
			CourseID:          course.ID,
			IssuedBy:          issuedBy,
			IssueDate:         now,
			ExpirationDate:    s.expirationFor(course, now),
			Status:            status,
			IsRelearn:         len(record.relearnSubject) > 0,
			RelearnSubjectIDs: record.relearnSubject,
		}
		if err := tx.Certificates().Create(ctx, &certificate); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if repository.IsUniqueViolation(err) {
		// Another node issued the certificate between the lookup and the insert.
		if _, findErr := s.store.Certificates().FindOpen(ctx, record.traineeID, course.ID); findErr == nil {
			s.logger.Debug().Uint("trainee_id", record.traineeID).Uint("course_id", course.ID).Msg("certificate issued concurrently")
			return models.Certificate{}, false, nil
		}
	}
	if err != nil {
		return models.Certificate{}, false, gatewayError("certificate", "Issue", err)
	}
	if !issued {
		return models.Certificate{}, false, nil
	}

	observability.CertificatesIssued().WithLabelValues(string(certificate.Status)).Inc()
	emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
		Type:         EventCertificateIssued,
		EntityType:   "certificate",
		EntityID:     certificate.ID,
		RecipientIDs: []uint{certificate.TraineeID},
		Message:      fmt.Sprintf("Certificate %s issued for course %s", certificate.Code, course.Name),
		Payload:      map[string]interface{}{"course_id": course.ID, "code": certificate.Code},
	})
	return certificate, true, nil
}

func (s *certificateService) expirationFor(course models.Course, issuedAt time.Time) *time.Time {
	validity := s.policy.ValidFor
	if course.CertificateValidityDays != nil {
		validity = time.Duration(*course.CertificateValidityDays) * 24 * time.Hour
	}
	if validity <= 0 {
		return nil
	}
	expires := issuedAt.Add(validity)
	return &expires
}

func newCertificateCode(at time.Time) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return fmt.Sprintf("CERT-%d-%s", at.Year(), token)
}

func (s *certificateService) CheckAndNotifyExpiringCertificates(ctx context.Context) (ExpirationReport, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.expiry_sweep")
	defer span.End()

	report := ExpirationReport{}
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.SweepRuns().WithLabelValues("certificates", outcome).Inc()
		observability.SweepDuration().WithLabelValues("certificates").Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	certificates, err := s.store.Certificates().ListActiveExpiringBefore(ctx, now.Add(s.policy.WarningWindow))
	if err != nil {
		outcome = "error"
		return report, s.spanError(span, gatewayError("certificate", "CheckExpiring", err))
	}

	for _, certificate := range certificates {
		if err := ctx.Err(); err != nil {
			outcome = "error"
			return report, err
		}
		report.Scanned++
		if certificate.ExpirationDate == nil {
			continue
		}

		if !now.Before(*certificate.ExpirationDate) {
			claimed, err := s.store.Certificates().MarkExpired(ctx, certificate.ID, now)
			if err != nil {
				report.Failed++
				observability.SweepFailures().WithLabelValues("certificate").Inc()
				s.logger.Warn().Err(err).Uint("certificate_id", certificate.ID).Msg("failed to expire certificate")
				continue
			}
			if !claimed {
				continue
			}
			report.Expired++
			observability.CertificateTransitions().WithLabelValues("expired").Inc()
			emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
				Type:         EventCertificateExpired,
				EntityType:   "certificate",
				EntityID:     certificate.ID,
				RecipientIDs: []uint{certificate.TraineeID},
				Message:      fmt.Sprintf("Certificate %s has expired", certificate.Code),
				Payload:      map[string]interface{}{"expiration_date": certificate.ExpirationDate.Format(time.RFC3339)},
			})
			continue
		}

		if certificate.ExpiringNotifiedAt != nil {
			continue
		}
		claimed, err := s.store.Certificates().MarkExpiringNotified(ctx, certificate.ID, now)
		if err != nil {
			report.Failed++
			observability.SweepFailures().WithLabelValues("certificate").Inc()
			s.logger.Warn().Err(err).Uint("certificate_id", certificate.ID).Msg("failed to mark expiring certificate")
			continue
		}
		if !claimed {
			continue
		}
		report.ExpiringSoon++
		emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
			Type:         EventCertificateExpiringSoon,
			EntityType:   "certificate",
			EntityID:     certificate.ID,
			RecipientIDs: []uint{certificate.TraineeID},
			Message:      fmt.Sprintf("Certificate %s expires on %s", certificate.Code, certificate.ExpirationDate.Format("2006-01-02")),
			Payload:      map[string]interface{}{"expiration_date": certificate.ExpirationDate.Format(time.RFC3339)},
		})
	}

	courses, err := s.store.Courses().ListCompletedWithoutCertificates(ctx)
	if err != nil {
		outcome = "error"
		return report, s.spanError(span, gatewayError("course", "CheckExpiring", err))
	}
	for _, course := range courses {
		generated, err := s.AutoGenerateForCourse(ctx, course.ID, 0)
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("certificate backfill failed")
			continue
		}
		report.Backfilled += len(generated.Issued)
	}

	if report.Failed > 0 {
		outcome = "partial"
	}
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("expiring_soon", report.ExpiringSoon).
		Int("expired", report.Expired).
		Int("backfilled", report.Backfilled).
		Msg("certificate sweep finished")
	return report, nil
}

func (s *certificateService) Renew(ctx context.Context, id uint, newExpiration time.Time, actor ActivityActor) (models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.renew", trace.WithAttributes(attribute.Int64("certificate.id", int64(id))))
	defer span.End()

	release := s.locks.Lock(lockKey("certificate", id))
	defer release()

	newExpiration = newExpiration.UTC()
	var certificate models.Certificate
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Certificates().GetByID(ctx, id)
		if err != nil {
			return gatewayError("certificate", "Renew", err)
		}
		if err := s.checkRenewable(current, newExpiration); err != nil {
			return err
		}
		if err := lifecycle.CertificateTransitions.Transition(current.Status, models.CertificateStatusActive); err != nil {
			return err
		}

		now := s.now()
		renewal := models.CertificateRenewal{
			CertificateID:          current.ID,
			PreviousExpirationDate: current.ExpirationDate,
			NewExpirationDate:      newExpiration,
			RenewedBy:              actor.ID,
			RenewalDate:            now,
		}
		if err := tx.Certificates().AppendRenewal(ctx, &renewal); err != nil {
			return gatewayError("certificate", "Renew", err)
		}

		from := current.Status
		current.Status = models.CertificateStatusActive
		current.ExpirationDate = &newExpiration
		current.ExpiringNotifiedAt = nil
		current.ExpiredNotifiedAt = nil
		ok, err := tx.Certificates().CompareAndUpdate(ctx, &current, from)
		if err != nil {
			return gatewayError("certificate", "Renew", err)
		}
		if !ok {
			return concurrentUpdate("certificate", "Renew")
		}
		certificate = current
		return nil
	})
	if err != nil {
		return models.Certificate{}, s.spanError(span, err)
	}

	s.invalidateHistory(ctx, id)
	observability.CertificateTransitions().WithLabelValues("renewed").Inc()
	recordActivity(ctx, s.activity, s.logger, actor, ActionCertificateRenewed, "certificate", id, map[string]interface{}{
		"expiration_date": newExpiration.Format(time.RFC3339),
	})
	emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
		Type:         EventCertificateRenewed,
		EntityType:   "certificate",
		EntityID:     certificate.ID,
		RecipientIDs: []uint{certificate.TraineeID},
		Message:      fmt.Sprintf("Certificate %s renewed until %s", certificate.Code, newExpiration.Format("2006-01-02")),
	})
	return certificate, nil
}

func (s *certificateService) checkRenewable(certificate models.Certificate, newExpiration time.Time) error {
	now := s.now()
	switch certificate.Status {
	case models.CertificateStatusRevoked:
		return lifecycle.NewError("certificate", "Renew", lifecycle.ErrAlreadyRevoked, "revoked certificates cannot be renewed")
	case models.CertificateStatusPending:
		return lifecycle.NewError("certificate", "Renew", lifecycle.ErrInvalidStateTransition, "certificate has not been verified")
	case models.CertificateStatusActive:
		if certificate.ExpirationDate == nil {
			return lifecycle.NewError("certificate", "Renew", lifecycle.ErrNotExpired, "certificate does not expire")
		}
		if certificate.ExpirationDate.Sub(now) > s.policy.RenewalWindow {
			return lifecycle.NewError("certificate", "Renew", lifecycle.ErrNotExpired, "certificate is outside the renewal window")
		}
	case models.CertificateStatusExpired:
		if s.policy.RenewalGrace > 0 && certificate.ExpirationDate != nil && now.Sub(*certificate.ExpirationDate) > s.policy.RenewalGrace {
			return lifecycle.NewError("certificate", "Renew", ErrRenewalNotAllowed, "renewal grace period has passed")
		}
	}

	if !newExpiration.After(now) {
		return lifecycle.NewError("certificate", "Renew", ErrInvalidExpiration, "new expiration must be in the future")
	}
	if certificate.ExpirationDate != nil && !newExpiration.After(*certificate.ExpirationDate) {
		return lifecycle.NewError("certificate", "Renew", ErrInvalidExpiration, "new expiration must extend the current one")
	}
	return nil
}

func (s *certificateService) Revoke(ctx context.Context, id uint, reason string, actor ActivityActor) (models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.revoke", trace.WithAttributes(attribute.Int64("certificate.id", int64(id))))
	defer span.End()

	release := s.locks.Lock(lockKey("certificate", id))
	defer release()

	cleanReason := strings.TrimSpace(s.sanitizer.Sanitize(reason))
	var certificate models.Certificate
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Certificates().GetByID(ctx, id)
		if err != nil {
			return gatewayError("certificate", "Revoke", err)
		}
		if current.IsRevoked() {
			return lifecycle.NewError("certificate", "Revoke", lifecycle.ErrAlreadyRevoked, "certificate already revoked")
		}
		if err := lifecycle.CertificateTransitions.Transition(current.Status, models.CertificateStatusRevoked); err != nil {
			return err
		}

		now := s.now()
		revokedBy := actor.ID
		from := current.Status
		current.Status = models.CertificateStatusRevoked
		current.RevokedAt = &now
		current.RevokedBy = &revokedBy
		current.RevocationReason = cleanReason
		ok, err := tx.Certificates().CompareAndUpdate(ctx, &current, from)
		if err != nil {
			return gatewayError("certificate", "Revoke", err)
		}
		if !ok {
			return concurrentUpdate("certificate", "Revoke")
		}
		certificate = current
		return nil
	})
	if err != nil {
		return models.Certificate{}, s.spanError(span, err)
	}

	observability.CertificateTransitions().WithLabelValues("revoked").Inc()
	recordActivity(ctx, s.activity, s.logger, actor, ActionCertificateRevoked, "certificate", id, map[string]interface{}{
		"reason": cleanReason,
	})
	emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
		Type:         EventCertificateRevoked,
		EntityType:   "certificate",
		EntityID:     certificate.ID,
		RecipientIDs: []uint{certificate.TraineeID},
		Message:      fmt.Sprintf("Certificate %s has been revoked", certificate.Code),
	})
	return certificate, nil
}

func (s *certificateService) Verify(ctx context.Context, id uint, actor ActivityActor) (models.Certificate, error) {
	release := s.locks.Lock(lockKey("certificate", id))
	defer release()

	var certificate models.Certificate
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Certificates().GetByID(ctx, id)
		if err != nil {
			return gatewayError("certificate", "Verify", err)
		}
		if current.Status != models.CertificateStatusPending {
			return lifecycle.NewError("certificate", "Verify", lifecycle.ErrInvalidStateTransition,
				fmt.Sprintf("only pending certificates can be verified, got %s", current.Status))
		}

		current.Status = models.CertificateStatusActive
		ok, err := tx.Certificates().CompareAndUpdate(ctx, &current, models.CertificateStatusPending)
		if err != nil {
			return gatewayError("certificate", "Verify", err)
		}
		if !ok {
			return concurrentUpdate("certificate", "Verify")
		}
		certificate = current
		return nil
	})
	if err != nil {
		return models.Certificate{}, err
	}

	observability.CertificateTransitions().WithLabelValues("verified").Inc()
	recordActivity(ctx, s.activity, s.logger, actor, ActionCertificateVerified, "certificate", id, nil)
	return certificate, nil
}

func (s *certificateService) GetRenewalHistory(ctx context.Context, id uint) ([]models.CertificateRenewal, error) {
	key := fmt.Sprintf("%s%d", renewalHistoryCachePrefix, id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			var history []models.CertificateRenewal
			if err := json.Unmarshal([]byte(cached), &history); err == nil {
				observability.RenewalHistoryCache().WithLabelValues("hit").Inc()
				return history, nil
			}
		}
	}

	if _, err := s.store.Certificates().GetByID(ctx, id); err != nil {
		return nil, gatewayError("certificate", "GetRenewalHistory", err)
	}
	history, err := s.store.Certificates().ListRenewals(ctx, id)
	if err != nil {
		return nil, gatewayError("certificate", "GetRenewalHistory", err)
	}
	if history == nil {
		history = []models.CertificateRenewal{}
	}

	observability.RenewalHistoryCache().WithLabelValues("miss").Inc()
	if s.cache != nil {
		if payload, err := json.Marshal(history); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("certificate_id", id).Msg("failed to cache renewal history")
			}
		}
	}
	return history, nil
}

func (s *certificateService) invalidateHistory(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf("%s%d", renewalHistoryCachePrefix, id)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("certificate_id", id).Msg("failed to invalidate renewal history cache")
	}
}

// Reevaluate issues a certificate to a trainee who now passes every subject of a completed
// course, and revokes the certificate of a trainee whose corrected grade failed.
func (s *certificateService) Reevaluate(ctx context.Context, courseID, traineeID uint, actor ActivityActor) error {
	course, err := s.store.Courses().GetByID(ctx, courseID)
	if err != nil {
		return gatewayError("course", "Reevaluate", err)
	}
	if course.Status != models.CourseStatusCompleted {
		return nil
	}

	records, err := s.traineeRecords(ctx, s.store, courseID)
	if err != nil {
		return err
	}
	var record *traineeRecord
	for i := range records {
		if records[i].traineeID == traineeID {
			record = &records[i]
			break
		}
	}
	if record == nil {
		return nil
	}

	switch record.standing {
	case standingPassed:
		_, _, err := s.issue(ctx, course, *record, actor.ID, true)
		return err
	case standingFailed:
		open, err := s.store.Certificates().FindOpen(ctx, traineeID, courseID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return gatewayError("certificate", "Reevaluate", err)
		}
		_, err = s.Revoke(ctx, open.ID, "grade correction", actor)
		return err
	default:
		return nil
	}
}

func (s *certificateService) Get(ctx context.Context, id uint) (models.Certificate, error) {
	certificate, err := s.store.Certificates().GetByID(ctx, id)
	if err != nil {
		return models.Certificate{}, gatewayError("certificate", "Get", err)
	}
	return certificate, nil
}

func (s *certificateService) ListByTrainee(ctx context.Context, traineeID uint) ([]models.Certificate, error) {
	certificates, err := s.store.Certificates().ListByTrainee(ctx, traineeID)
	if err != nil {
		return nil, gatewayError("certificate", "ListByTrainee", err)
	}
	return certificates, nil
}

func (s *certificateService) spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
