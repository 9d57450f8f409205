package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

// GradeService records component scores and derives the grade status.
type GradeService interface {
	Record(ctx context.Context, traineeAssignmentID uint, input dto.GradeRecordRequest, actor ActivityActor) (models.Grade, error)
	Get(ctx context.Context, traineeAssignmentID uint) (models.Grade, error)
}

type gradeService struct {
	store        repository.Store
	validator    *validator.Validate
	policy       lifecycle.GradingPolicy
	certificates CertificateReevaluator
	activity     ActivityRecorder
	sanitizer    *bluemonday.Policy
	locks        *entityLocker
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewGradeService constructs the grading service.
func NewGradeService(store repository.Store, validate *validator.Validate, policy lifecycle.GradingPolicy, certificates CertificateReevaluator, activity ActivityRecorder, logger zerolog.Logger) GradeService {
	return &gradeService{
		store:        store,
		validator:    validate,
		policy:       policy,
		certificates: certificates,
		activity:     activity,
		sanitizer:    bluemonday.StrictPolicy(),
		locks:        newEntityLocker(),
		logger:       logger.With().Str("component", "grade_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-training-api/internal/service/grade"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *gradeService) Record(ctx context.Context, traineeAssignmentID uint, input dto.GradeRecordRequest, actor ActivityActor) (models.Grade, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Grade{}, err
	}

	ctx, span := s.tracer.Start(ctx, "grades.record", trace.WithAttributes(
		attribute.Int64("grade.trainee_assignment_id", int64(traineeAssignmentID)),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	fail := func(err error) (models.Grade, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Grade{}, err
	}

	assignment, err := s.store.TraineeAssignments().GetByID(ctx, traineeAssignmentID)
	if err != nil {
		return fail(gatewayError("grade", "Record", err))
	}
	if !assignment.IsApproved() {
		return fail(ErrAssignmentNotApproved)
	}
	if err := s.authorize(ctx, assignment, actor); err != nil {
		return fail(err)
	}

	courseID, err := s.store.ClassSubjects().CourseIDOf(ctx, assignment.ClassSubjectID)
	if err != nil {
		return fail(gatewayError("grade", "Record", err))
	}
	subject, err := s.store.ClassSubjects().GetSubject(ctx, assignment.ClassSubjectID)
	if err != nil {
		return fail(gatewayError("grade", "Record", err))
	}

	locked := false
	if _, err := s.store.Certificates().FindOpen(ctx, assignment.TraineeID, courseID); err == nil {
		locked = true
	} else if !isNotFound(err) {
		return fail(gatewayError("grade", "Record", err))
	}
	if locked && !actor.IsAdmin() {
		return fail(ErrGradeLocked)
	}

	release := s.locks.Lock(lockKey("grade", traineeAssignmentID))
	defer release()

	var (
		grade    models.Grade
		previous models.GradeStatus
	)
	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Grades().GetByAssignment(ctx, traineeAssignmentID)
		switch {
		case err == nil:
		case isNotFound(err):
			current = models.Grade{TraineeAssignmentID: traineeAssignmentID, Status: models.GradeStatusPending}
		default:
			return gatewayError("grade", "Record", err)
		}
		previous = current.Status

		applyComponents(&current, input)
		outcome := lifecycle.EvaluateGrade(s.policy, subject.PassingScore, lifecycle.GradeComponents{
			Participation: current.ParticipationScore,
			Assignment:    current.AssignmentScore,
			Practical:     current.PracticalScore,
			FinalExam:     current.FinalExamScore,
		})
		if outcome.Status != current.Status {
			if err := lifecycle.GradeTransitions.Transition(current.Status, outcome.Status); err != nil {
				return err
			}
		}

		now := s.now()
		current.TotalScore = outcome.TotalScore
		current.Status = outcome.Status
		current.GradedBy = actor.ID
		current.GradedAt = &now
		if remarks := strings.TrimSpace(input.Remarks); remarks != "" {
			current.Remarks = s.sanitizer.Sanitize(remarks)
		}
		if err := tx.Grades().Save(ctx, &current); err != nil {
			return gatewayError("grade", "Record", err)
		}
		grade = current
		return nil
	})
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.String("grade.status", string(grade.Status)))

	if locked || previous != grade.Status {
		if locked {
			recordActivity(ctx, s.activity, s.logger, actor, ActionGradeCorrected, "grade", grade.ID, map[string]interface{}{
				"trainee_assignment_id": traineeAssignmentID,
				"previous_status":       string(previous),
				"status":                string(grade.Status),
			})
		}
		if s.certificates != nil {
			if err := s.certificates.Reevaluate(ctx, courseID, assignment.TraineeID, actor); err != nil {
				s.logger.Error().Err(err).
					Uint("course_id", courseID).
					Uint("trainee_id", assignment.TraineeID).
					Msg("failed to reevaluate certificate after grade change")
			}
		}
	}

	return grade, nil
}

// authorize allows admins and the approved instructor of the class subject.
func (s *gradeService) authorize(ctx context.Context, assignment models.TraineeAssignment, actor ActivityActor) error {
	if actor.IsAdmin() {
		return nil
	}
	instructor, err := s.store.InstructorAssignments().GetApprovedByClassSubject(ctx, assignment.ClassSubjectID)
	if err != nil {
		if isNotFound(err) {
			return lifecycle.NewError("grade", "Record", lifecycle.ErrUnauthorized, "class subject has no approved instructor")
		}
		return gatewayError("grade", "Record", err)
	}
	if instructor.InstructorID != actor.ID {
		return lifecycle.NewError("grade", "Record", lifecycle.ErrUnauthorized,
			fmt.Sprintf("user %d is not the instructor of class subject %d", actor.ID, assignment.ClassSubjectID))
	}
	return nil
}

func applyComponents(grade *models.Grade, input dto.GradeRecordRequest) {
	if input.ParticipationScore != nil {
		grade.ParticipationScore = copyScore(input.ParticipationScore)
	}
	if input.AssignmentScore != nil {
		grade.AssignmentScore = copyScore(input.AssignmentScore)
	}
	if input.PracticalScore != nil {
		grade.PracticalScore = copyScore(input.PracticalScore)
	}
	if input.FinalExamScore != nil {
		grade.FinalExamScore = copyScore(input.FinalExamScore)
	}
}

func copyScore(v *float64) *float64 {
	value := *v
	return &value
}

func (s *gradeService) Get(ctx context.Context, traineeAssignmentID uint) (models.Grade, error) {
	grade, err := s.store.Grades().GetByAssignment(ctx, traineeAssignmentID)
	if err != nil {
		return models.Grade{}, gatewayError("grade", "Get", err)
	}
	return grade, nil
}
