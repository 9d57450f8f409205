package service

import (
	"context"
	"time"

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

const courseCancelledNote = "course cancelled"

// CourseCompletionHook runs once for every course that transitions to completed.
type CourseCompletionHook func(ctx context.Context, course models.Course)

// SweepCounts summarises one entity level of a progress sweep.
type SweepCounts struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// SweepReport is the outcome of a full progress sweep.
type SweepReport struct {
	Schedules     SweepCounts `json:"schedules"`
	ClassSubjects SweepCounts `json:"class_subjects"`
	Courses       SweepCounts `json:"courses"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
}

// ProgressService derives schedule, class subject and course statuses and cascades
// changes up the training hierarchy.
type ProgressService interface {
	RecomputeSchedule(ctx context.Context, id uint) (models.TrainingSchedule, error)
	RecomputeClassSubject(ctx context.Context, id uint) (models.ClassSubject, error)
	RecomputeCourse(ctx context.Context, id uint) (models.Course, error)
	RecomputeStatus(ctx context.Context, ref lifecycle.EntityRef) error
	GetSchedule(ctx context.Context, id uint) (models.TrainingSchedule, error)
	RunSweep(ctx context.Context) (SweepReport, error)
	CancelSchedule(ctx context.Context, id uint, actor ActivityActor) (models.TrainingSchedule, error)
	CancelClassSubject(ctx context.Context, id uint, actor ActivityActor) (models.ClassSubject, error)
	CancelCourse(ctx context.Context, id uint, actor ActivityActor) (models.Course, error)
}

type progressService struct {
	store      repository.Store
	emitter    EventEmitter
	activity   ActivityRecorder
	onComplete CourseCompletionHook
	locks      *entityLocker
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewProgressService constructs the progress tracking engine. onComplete may be nil.
func NewProgressService(store repository.Store, emitter EventEmitter, activity ActivityRecorder, onComplete CourseCompletionHook, logger zerolog.Logger) ProgressService {
	return &progressService{
		store:      store,
		emitter:    emitter,
		activity:   activity,
		onComplete: onComplete,
		locks:      newEntityLocker(),
		logger:     logger.With().Str("component", "progress_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-training-api/internal/service/progress"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *progressService) RecomputeSchedule(ctx context.Context, id uint) (models.TrainingSchedule, error) {
	schedule, changed, err := s.recomputeSchedule(ctx, id)
	if err != nil {
		return models.TrainingSchedule{}, err
	}
	if changed {
		if err := s.cascadeFromClassSubject(ctx, schedule.ClassSubjectID); err != nil {
			return schedule, err
		}
	}
	return schedule, nil
}

func (s *progressService) RecomputeClassSubject(ctx context.Context, id uint) (models.ClassSubject, error) {
	classSubject, changed, err := s.recomputeClassSubject(ctx, id)
	if err != nil {
		return models.ClassSubject{}, err
	}
	if changed {
		if err := s.cascadeFromCourseOf(ctx, id); err != nil {
			return classSubject, err
		}
	}
	return classSubject, nil
}

func (s *progressService) RecomputeCourse(ctx context.Context, id uint) (models.Course, error) {
	course, _, err := s.recomputeCourse(ctx, id)
	return course, err
}

// RecomputeStatus re-derives the referenced entity and every ancestor regardless of
// whether the entity itself changed, since the triggering write may have touched its children.
func (s *progressService) RecomputeStatus(ctx context.Context, ref lifecycle.EntityRef) error {
	ctx, span := s.tracer.Start(ctx, "progress.recompute", trace.WithAttributes(
		attribute.String("entity.type", string(ref.Type)),
		attribute.Int64("entity.id", int64(ref.ID)),
	))
	defer span.End()

	var err error
	switch ref.Type {
	case lifecycle.EntitySchedule:
		var schedule models.TrainingSchedule
		schedule, _, err = s.recomputeSchedule(ctx, ref.ID)
		if err == nil {
			err = s.cascadeFromClassSubject(ctx, schedule.ClassSubjectID)
		}
	case lifecycle.EntityClassSubject:
		err = s.cascadeFromClassSubject(ctx, ref.ID)
	case lifecycle.EntityCourse:
		_, _, err = s.recomputeCourse(ctx, ref.ID)
	default:
		err = lifecycle.NewError("progress", "RecomputeStatus", lifecycle.ErrNotFound, "unknown entity type "+string(ref.Type))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *progressService) GetSchedule(ctx context.Context, id uint) (models.TrainingSchedule, error) {
	return s.RecomputeSchedule(ctx, id)
}

func (s *progressService) RunSweep(ctx context.Context) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "progress.sweep")
	defer span.End()

	report := SweepReport{StartedAt: s.now()}
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.SweepRuns().WithLabelValues("progress", outcome).Inc()
		observability.SweepDuration().WithLabelValues("progress").Observe(time.Since(start).Seconds())
	}()

	fail := func(err error) (SweepReport, error) {
		outcome = "error"
		report.FinishedAt = s.now()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	schedules, err := s.store.Schedules().ListByStatus(ctx, models.ScheduleStatusPending, models.ScheduleStatusOngoing)
	if err != nil {
		return fail(gatewayError("training_schedule", "RunSweep", err))
	}
	for _, schedule := range schedules {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		report.Schedules.Scanned++
		_, changed, err := s.recomputeSchedule(ctx, schedule.ID)
		s.tally(&report.Schedules, "training_schedule", schedule.ID, changed, err)
	}

	classSubjects, err := s.store.ClassSubjects().ListByStatus(ctx, models.ClassSubjectStatusPending, models.ClassSubjectStatusOngoing)
	if err != nil {
		return fail(gatewayError("class_subject", "RunSweep", err))
	}
	for _, classSubject := range classSubjects {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		report.ClassSubjects.Scanned++
		_, changed, err := s.recomputeClassSubject(ctx, classSubject.ID)
		s.tally(&report.ClassSubjects, "class_subject", classSubject.ID, changed, err)
	}

	courses, err := s.store.Courses().ListByStatus(ctx, models.CourseStatusActive)
	if err != nil {
		return fail(gatewayError("course", "RunSweep", err))
	}
	for _, course := range courses {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		report.Courses.Scanned++
		_, changed, err := s.recomputeCourse(ctx, course.ID)
		s.tally(&report.Courses, "course", course.ID, changed, err)
	}

	report.FinishedAt = s.now()
	if report.Schedules.Failed+report.ClassSubjects.Failed+report.Courses.Failed > 0 {
		outcome = "partial"
	}
	s.logger.Info().
		Int("schedules_updated", report.Schedules.Updated).
		Int("class_subjects_updated", report.ClassSubjects.Updated).
		Int("courses_updated", report.Courses.Updated).
		Int("failed", report.Schedules.Failed+report.ClassSubjects.Failed+report.Courses.Failed).
		Msg("progress sweep finished")

	return report, nil
}

func (s *progressService) tally(counts *SweepCounts, entity string, id uint, changed bool, err error) {
	if err != nil {
		counts.Failed++
		observability.SweepFailures().WithLabelValues(entity).Inc()
		event := s.logger.Error()
		if lifecycle.IsRecoverable(err) {
			event = s.logger.Warn()
		}
		event.Err(err).Str("entity", entity).Uint("entity_id", id).Msg("sweep skipped entity")
		return
	}
	if changed {
		counts.Updated++
	}
}

func (s *progressService) CancelSchedule(ctx context.Context, id uint, actor ActivityActor) (models.TrainingSchedule, error) {
	release := s.locks.Lock(lockKey("training_schedule", id))
	var schedule models.TrainingSchedule
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Schedules().GetByID(ctx, id)
		if err != nil {
			return gatewayError("training_schedule", "Cancel", err)
		}
		if err := lifecycle.ScheduleTransitions.Transition(current.Status, models.ScheduleStatusCancelled); err != nil {
			return err
		}
		ok, err := tx.Schedules().CompareAndSetStatus(ctx, id, current.Status, models.ScheduleStatusCancelled)
		if err != nil {
			return gatewayError("training_schedule", "Cancel", err)
		}
		if !ok {
			return concurrentUpdate("training_schedule", "Cancel")
		}
		current.Status = models.ScheduleStatusCancelled
		schedule = current
		return nil
	})
	release()
	if err != nil {
		return models.TrainingSchedule{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionEntityCancelled, "training_schedule", id, nil)
	if err := s.cascadeFromClassSubject(ctx, schedule.ClassSubjectID); err != nil {
		return schedule, err
	}
	return schedule, nil
}

func (s *progressService) CancelClassSubject(ctx context.Context, id uint, actor ActivityActor) (models.ClassSubject, error) {
	release := s.locks.Lock(lockKey("class_subject", id))
	var classSubject models.ClassSubject
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.ClassSubjects().GetByID(ctx, id)
		if err != nil {
			return gatewayError("class_subject", "Cancel", err)
		}
		if err := lifecycle.ClassSubjectTransitions.Transition(current.Status, models.ClassSubjectStatusCancelled); err != nil {
			return err
		}
		ok, err := tx.ClassSubjects().CompareAndSetStatus(ctx, id, current.Status, models.ClassSubjectStatusCancelled)
		if err != nil {
			return gatewayError("class_subject", "Cancel", err)
		}
		if !ok {
			return concurrentUpdate("class_subject", "Cancel")
		}
		current.Status = models.ClassSubjectStatusCancelled
		classSubject = current
		return nil
	})
	release()
	if err != nil {
		return models.ClassSubject{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionEntityCancelled, "class_subject", id, nil)
	if err := s.cascadeFromCourseOf(ctx, id); err != nil {
		return classSubject, err
	}
	return classSubject, nil
}

func (s *progressService) CancelCourse(ctx context.Context, id uint, actor ActivityActor) (models.Course, error) {
	release := s.locks.Lock(lockKey("course", id))
	defer release()

	var (
		course models.Course
		closed *models.Request
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Courses().GetByID(ctx, id)
		if err != nil {
			return gatewayError("course", "Cancel", err)
		}
		if err := lifecycle.CourseTransitions.Transition(current.Status, models.CourseStatusCancelled); err != nil {
			return err
		}
		ok, err := tx.Courses().CompareAndSetStatus(ctx, id, current.Status, models.CourseStatusCancelled, nil)
		if err != nil {
			return gatewayError("course", "Cancel", err)
		}
		if !ok {
			return concurrentUpdate("course", "Cancel")
		}
		current.Status = models.CourseStatusCancelled
		course = current

		closed, err = s.closePendingApproval(ctx, tx, id, actor)
		return err
	})
	if err != nil {
		return models.Course{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionEntityCancelled, "course", id, nil)
	if closed != nil {
		recordActivity(ctx, s.activity, s.logger, actor, ActionRequestRejected, "request", closed.ID, map[string]interface{}{
			"type":      string(closed.Type),
			"entity_id": closed.EntityID,
		})
		emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
			Type:         EventRequestDecided,
			EntityType:   "request",
			EntityID:     closed.ID,
			RecipientIDs: []uint{closed.RequestorID},
			Message:      "Your course approval request was rejected because the course was cancelled",
			Payload:      map[string]interface{}{"status": string(closed.Status), "entity_id": closed.EntityID},
		})
	}
	return course, nil
}

// closePendingApproval rejects the open course approval request of a cancelled course.
func (s *progressService) closePendingApproval(ctx context.Context, tx repository.Store, courseID uint, actor ActivityActor) (*models.Request, error) {
	request, err := tx.Requests().FindPending(ctx, models.RequestTypeCourseApproval, courseID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, gatewayError("request", "Cancel", err)
	}

	decidedAt := s.now()
	ok, err := tx.Requests().Decide(ctx, request.ID, repository.RequestDecision{
		Status:     models.RequestStatusRejected,
		ApproverID: actor.ID,
		Note:       courseCancelledNote,
		DecidedAt:  decidedAt,
	})
	if err != nil {
		return nil, gatewayError("request", "Cancel", err)
	}
	if !ok {
		return nil, lifecycle.NewError("request", "Cancel", lifecycle.ErrNotPending, "request was decided concurrently")
	}

	approverID := actor.ID
	request.Status = models.RequestStatusRejected
	request.ApproverID = &approverID
	request.DecisionNote = courseCancelledNote
	request.DecidedAt = &decidedAt
	return &request, nil
}

func (s *progressService) cascadeFromClassSubject(ctx context.Context, classSubjectID uint) error {
	if _, _, err := s.recomputeClassSubject(ctx, classSubjectID); err != nil {
		return err
	}
	return s.cascadeFromCourseOf(ctx, classSubjectID)
}

func (s *progressService) cascadeFromCourseOf(ctx context.Context, classSubjectID uint) error {
	courseID, err := s.store.ClassSubjects().CourseIDOf(ctx, classSubjectID)
	if err != nil {
		return gatewayError("class_subject", "CourseIDOf", err)
	}
	_, _, err = s.recomputeCourse(ctx, courseID)
	return err
}

func (s *progressService) recomputeSchedule(ctx context.Context, id uint) (models.TrainingSchedule, bool, error) {
	release := s.locks.Lock(lockKey("training_schedule", id))
	defer release()

	var (
		schedule models.TrainingSchedule
		changed  bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Schedules().GetByID(ctx, id)
		if err != nil {
			return gatewayError("training_schedule", "Recompute", err)
		}
		schedule = current

		next := lifecycle.DeriveScheduleStatus(current.Status, current.StartDateTime, current.EndDateTime, s.now())
		if next == current.Status {
			return nil
		}
		if err := lifecycle.ScheduleTransitions.Transition(current.Status, next); err != nil {
			return err
		}

		ok, err := tx.Schedules().CompareAndSetStatus(ctx, id, current.Status, next)
		if err != nil {
			return gatewayError("training_schedule", "Recompute", err)
		}
		if !ok {
			// Lost the race to another writer; report the stored state.
			schedule, err = tx.Schedules().GetByID(ctx, id)
			return gatewayError("training_schedule", "Recompute", err)
		}
		schedule.Status = next
		changed = true
		return nil
	})
	if err != nil {
		return models.TrainingSchedule{}, false, err
	}

	if changed {
		observability.StatusUpdates().WithLabelValues("training_schedule").Inc()
		s.logger.Debug().Uint("schedule_id", id).Str("status", string(schedule.Status)).Msg("schedule status derived")
	}
	return schedule, changed, nil
}

func (s *progressService) recomputeClassSubject(ctx context.Context, id uint) (models.ClassSubject, bool, error) {
	release := s.locks.Lock(lockKey("class_subject", id))
	defer release()

	var (
		classSubject models.ClassSubject
		changed      bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.ClassSubjects().GetByID(ctx, id)
		if err != nil {
			return gatewayError("class_subject", "Recompute", err)
		}
		classSubject = current
		if current.Status == models.ClassSubjectStatusCancelled {
			return nil
		}

		schedules, err := tx.Schedules().ListByClassSubject(ctx, id)
		if err != nil {
			return gatewayError("class_subject", "Recompute", err)
		}
		statuses := make([]models.ScheduleStatus, 0, len(schedules))
		for _, schedule := range schedules {
			statuses = append(statuses, schedule.Status)
		}

		next := lifecycle.DeriveClassSubjectStatus(statuses)
		if next == current.Status {
			return nil
		}
		if err := lifecycle.ClassSubjectTransitions.Transition(current.Status, next); err != nil {
			return err
		}

		ok, err := tx.ClassSubjects().CompareAndSetStatus(ctx, id, current.Status, next)
		if err != nil {
			return gatewayError("class_subject", "Recompute", err)
		}
		if !ok {
			classSubject, err = tx.ClassSubjects().GetByID(ctx, id)
			return gatewayError("class_subject", "Recompute", err)
		}
		classSubject.Status = next
		changed = true
		return nil
	})
	if err != nil {
		return models.ClassSubject{}, false, err
	}

	if changed {
		observability.StatusUpdates().WithLabelValues("class_subject").Inc()
		s.logger.Debug().Uint("class_subject_id", id).Str("status", string(classSubject.Status)).Msg("class subject status derived")
	}
	return classSubject, changed, nil
}

func (s *progressService) recomputeCourse(ctx context.Context, id uint) (models.Course, bool, error) {
	release := s.locks.Lock(lockKey("course", id))
	defer release()

	var (
		course  models.Course
		changed bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Courses().GetByID(ctx, id)
		if err != nil {
			return gatewayError("course", "Recompute", err)
		}
		course = current
		if current.Status != models.CourseStatusActive {
			return nil
		}

		classSubjects, err := tx.ClassSubjects().ListByCourse(ctx, id)
		if err != nil {
			return gatewayError("course", "Recompute", err)
		}
		statuses := make([]models.ClassSubjectStatus, 0, len(classSubjects))
		for _, classSubject := range classSubjects {
			statuses = append(statuses, classSubject.Status)
		}

		next := lifecycle.DeriveCourseStatus(current.Status, statuses)
		if next == current.Status {
			return nil
		}
		if err := lifecycle.CourseTransitions.Transition(current.Status, next); err != nil {
			return err
		}

		completedAt := s.now()
		ok, err := tx.Courses().CompareAndSetStatus(ctx, id, current.Status, next, map[string]interface{}{
			"completed_at": completedAt,
		})
		if err != nil {
			return gatewayError("course", "Recompute", err)
		}
		if !ok {
			course, err = tx.Courses().GetByID(ctx, id)
			return gatewayError("course", "Recompute", err)
		}
		course.Status = next
		course.CompletedAt = &completedAt
		changed = true
		return nil
	})
	if err != nil {
		return models.Course{}, false, err
	}

	if changed {
		observability.StatusUpdates().WithLabelValues("course").Inc()
		s.logger.Info().Uint("course_id", id).Msg("course completed")
		emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
			Type:         EventCourseCompleted,
			EntityType:   "course",
			EntityID:     course.ID,
			RecipientIDs: []uint{course.CreatedBy},
			Message:      "Course " + course.Name + " has been completed",
		})
		if s.onComplete != nil {
			s.onComplete(ctx, course)
		}
	}
	return course, changed, nil
}

func concurrentUpdate(domain, op string) error {
	return lifecycle.NewError(domain, op, lifecycle.ErrInvalidStateTransition, "status changed concurrently")
}
