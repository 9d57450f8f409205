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

	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/observability"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

// SubmitRequest opens an approval request for the target entity.
type SubmitRequest struct {
	Type        models.RequestType `validate:"required"`
	EntityID    uint               `validate:"required"`
	RequestorID uint               `validate:"required"`
	Description string             `validate:"max=2000"`
}

// DecideRequest approves or rejects a pending request.
type DecideRequest struct {
	ApproverID uint `validate:"required"`
	Approve    bool
	Note       string `validate:"max=2000"`
}

// approverRoles lists the roles allowed to decide each request type.
var approverRoles = map[models.RequestType][]string{
	models.RequestTypeCourseApproval:       {models.RoleAdmin},
	models.RequestTypeTraineeAssignment:    {models.RoleAdmin, models.RoleTrainingStaff},
	models.RequestTypeInstructorAssignment: {models.RoleAdmin, models.RoleTrainingStaff},
}

// ApprovalService gates course activation and assignments behind approval requests.
type ApprovalService interface {
	Submit(ctx context.Context, req SubmitRequest) (models.Request, error)
	Decide(ctx context.Context, requestID uint, req DecideRequest) (models.Request, error)
	Get(ctx context.Context, id uint) (models.Request, error)
	List(ctx context.Context, filter repository.RequestFilter) ([]models.Request, int64, error)
}

type approvalService struct {
	store     repository.Store
	validator *validator.Validate
	emitter   EventEmitter
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	locks     *entityLocker
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewApprovalService constructs the approval workflow.
func NewApprovalService(store repository.Store, validate *validator.Validate, emitter EventEmitter, activity ActivityRecorder, logger zerolog.Logger) ApprovalService {
	return &approvalService{
		store:     store,
		validator: validate,
		emitter:   emitter,
		activity:  activity,
		sanitizer: bluemonday.StrictPolicy(),
		locks:     newEntityLocker(),
		logger:    logger.With().Str("component", "approval_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-training-api/internal/service/approval"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *approvalService) Submit(ctx context.Context, req SubmitRequest) (models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Request{}, err
	}
	if _, ok := approverRoles[req.Type]; !ok {
		return models.Request{}, ErrUnknownRequestType
	}

	ctx, span := s.tracer.Start(ctx, "approvals.submit", trace.WithAttributes(
		attribute.String("request.type", string(req.Type)),
		attribute.Int64("request.entity_id", int64(req.EntityID)),
	))
	defer span.End()

	release := s.locks.Lock(fmt.Sprintf("request:%s:%d", req.Type, req.EntityID))
	defer release()

	var request models.Request
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Requests().FindPending(ctx, req.Type, req.EntityID)
		if err == nil {
			return lifecycle.NewError("request", "Submit", lifecycle.ErrAlreadyPending,
				fmt.Sprintf("request %d is already pending for %s %d", existing.ID, req.Type, req.EntityID))
		}
		if !isNotFound(err) {
			return gatewayError("request", "Submit", err)
		}

		if err := s.moveTargetToPending(ctx, tx, req.Type, req.EntityID, req.RequestorID); err != nil {
			return err
		}

		request = models.Request{
			Type:        req.Type,
			EntityID:    req.EntityID,
			RequestorID: req.RequestorID,
			Status:      models.RequestStatusPending,
			Description: strings.TrimSpace(s.sanitizer.Sanitize(req.Description)),
		}
		if err := tx.Requests().Create(ctx, &request); err != nil {
			return gatewayError("request", "Submit", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Request{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityActor{ID: req.RequestorID}, ActionRequestSubmitted, "request", request.ID, map[string]interface{}{
		"type":      string(req.Type),
		"entity_id": req.EntityID,
	})
	return request, nil
}

// moveTargetToPending puts the gated entity into its awaiting-approval status.
func (s *approvalService) moveTargetToPending(ctx context.Context, tx repository.Store, requestType models.RequestType, entityID, requestorID uint) error {
	switch requestType {
	case models.RequestTypeCourseApproval:
		course, err := tx.Courses().GetByID(ctx, entityID)
		if err != nil {
			return gatewayError("course", "Submit", err)
		}
		if err := s.authorizeSubmitter(ctx, tx, course, requestorID); err != nil {
			return err
		}
		if err := lifecycle.CourseTransitions.Transition(course.Status, models.CourseStatusPending); err != nil {
			return err
		}
		return casResult("course", "Submit")(tx.Courses().CompareAndSetStatus(ctx, entityID, course.Status, models.CourseStatusPending, nil))
	case models.RequestTypeTraineeAssignment:
		assignment, err := tx.TraineeAssignments().GetByID(ctx, entityID)
		if err != nil {
			return gatewayError("trainee_assignment", "Submit", err)
		}
		if assignment.RequestStatus == models.RequestStatusPending {
			return nil
		}
		if err := lifecycle.AssignmentTransitions.Transition(assignment.RequestStatus, models.RequestStatusPending); err != nil {
			return err
		}
		return casResult("trainee_assignment", "Submit")(tx.TraineeAssignments().CompareAndSetStatus(ctx, entityID, assignment.RequestStatus, models.RequestStatusPending))
	case models.RequestTypeInstructorAssignment:
		assignment, err := tx.InstructorAssignments().GetByID(ctx, entityID)
		if err != nil {
			return gatewayError("instructor_assignment", "Submit", err)
		}
		if assignment.RequestStatus == models.RequestStatusPending {
			return nil
		}
		if err := lifecycle.AssignmentTransitions.Transition(assignment.RequestStatus, models.RequestStatusPending); err != nil {
			return err
		}
		return casResult("instructor_assignment", "Submit")(tx.InstructorAssignments().CompareAndSetStatus(ctx, entityID, assignment.RequestStatus, models.RequestStatusPending))
	default:
		return ErrUnknownRequestType
	}
}

// authorizeSubmitter allows the course creator and staff to put a course up for approval.
func (s *approvalService) authorizeSubmitter(ctx context.Context, tx repository.Store, course models.Course, requestorID uint) error {
	if course.CreatedBy == requestorID {
		return nil
	}
	requestor, err := tx.Users().GetByID(ctx, requestorID)
	if err != nil {
		if isNotFound(err) {
			return lifecycle.WrapError("request", "Submit", lifecycle.ErrUnauthorized, "unknown requestor", err)
		}
		return gatewayError("user", "Submit", err)
	}
	switch strings.ToLower(strings.TrimSpace(requestor.Role)) {
	case models.RoleAdmin, models.RoleTrainingStaff:
		return nil
	}
	return lifecycle.NewError("request", "Submit", lifecycle.ErrUnauthorized,
		fmt.Sprintf("only the creator or staff can submit course %d for approval", course.ID))
}

func (s *approvalService) Decide(ctx context.Context, requestID uint, req DecideRequest) (models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Request{}, err
	}

	ctx, span := s.tracer.Start(ctx, "approvals.decide", trace.WithAttributes(
		attribute.Int64("request.id", int64(requestID)),
		attribute.Bool("request.approve", req.Approve),
	))
	defer span.End()

	request, err := s.decide(ctx, requestID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Request{}, err
	}

	outcome := "rejected"
	action := ActionRequestRejected
	if req.Approve {
		outcome = "approved"
		action = ActionRequestApproved
	}
	observability.ApprovalDecisions().WithLabelValues(string(request.Type), outcome).Inc()

	approver, _ := s.store.Users().GetByID(ctx, req.ApproverID)
	recordActivity(ctx, s.activity, s.logger, ActivityActor{ID: req.ApproverID, Role: approver.Role}, action, "request", request.ID, map[string]interface{}{
		"type":      string(request.Type),
		"entity_id": request.EntityID,
	})
	emitEvent(ctx, s.emitter, s.logger, LifecycleEvent{
		Type:         EventRequestDecided,
		EntityType:   "request",
		EntityID:     request.ID,
		RecipientIDs: []uint{request.RequestorID},
		Message:      fmt.Sprintf("Your %s request was %s", strings.ReplaceAll(string(request.Type), "_", " "), outcome),
		Payload:      map[string]interface{}{"status": string(request.Status), "entity_id": request.EntityID},
	})
	return request, nil
}

func (s *approvalService) decide(ctx context.Context, requestID uint, req DecideRequest) (models.Request, error) {
	request, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return models.Request{}, gatewayError("request", "Decide", err)
	}
	if !request.IsPending() {
		return models.Request{}, lifecycle.NewError("request", "Decide", lifecycle.ErrNotPending,
			fmt.Sprintf("request %d is already %s", requestID, request.Status))
	}
	if err := s.authorize(ctx, request, req.ApproverID); err != nil {
		return models.Request{}, err
	}

	release := s.locks.Lock(lockKey("request", requestID))
	defer release()

	target := models.RequestStatusRejected
	if req.Approve {
		target = models.RequestStatusApproved
	}

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return gatewayError("request", "Decide", err)
		}
		if !current.IsPending() {
			return lifecycle.NewError("request", "Decide", lifecycle.ErrNotPending,
				fmt.Sprintf("request %d is already %s", requestID, current.Status))
		}
		if err := lifecycle.RequestTransitions.Transition(current.Status, target); err != nil {
			return err
		}

		if err := s.applyDecision(ctx, tx, current, req.Approve); err != nil {
			return err
		}

		now := s.now()
		decision := repository.RequestDecision{
			Status:     target,
			ApproverID: req.ApproverID,
			Note:       strings.TrimSpace(s.sanitizer.Sanitize(req.Note)),
			DecidedAt:  now,
		}
		if req.Approve {
			decision.ApprovedDate = &now
		}
		ok, err := tx.Requests().Decide(ctx, requestID, decision)
		if err != nil {
			return gatewayError("request", "Decide", err)
		}
		if !ok {
			return lifecycle.NewError("request", "Decide", lifecycle.ErrNotPending, "request was decided concurrently")
		}

		approverID := req.ApproverID
		current.Status = target
		current.ApproverID = &approverID
		current.DecisionNote = decision.Note
		current.DecidedAt = &now
		current.ApprovedDate = decision.ApprovedDate
		request = current
		return nil
	})
	if repository.IsUniqueViolation(err) && request.Type == models.RequestTypeInstructorAssignment {
		return models.Request{}, lifecycle.WrapError("instructor_assignment", "Decide", lifecycle.ErrInvalidStateTransition,
			"class subject already has an approved instructor", err)
	}
	if err != nil {
		return models.Request{}, gatewayError("request", "Decide", err)
	}
	return request, nil
}

func (s *approvalService) authorize(ctx context.Context, request models.Request, approverID uint) error {
	if approverID == request.RequestorID {
		return lifecycle.NewError("request", "Decide", lifecycle.ErrUnauthorized, "requestors cannot decide their own requests")
	}

	approver, err := s.store.Users().GetByID(ctx, approverID)
	if err != nil {
		if isNotFound(err) {
			return lifecycle.WrapError("request", "Decide", lifecycle.ErrUnauthorized, "unknown approver", err)
		}
		return gatewayError("user", "Decide", err)
	}

	role := strings.ToLower(strings.TrimSpace(approver.Role))
	for _, allowed := range approverRoles[request.Type] {
		if role == allowed {
			return nil
		}
	}
	return lifecycle.NewError("request", "Decide", lifecycle.ErrUnauthorized,
		fmt.Sprintf("role %q cannot decide %s requests", approver.Role, request.Type))
}

// applyDecision moves the gated entity out of its awaiting-approval status.
func (s *approvalService) applyDecision(ctx context.Context, tx repository.Store, request models.Request, approve bool) error {
	switch request.Type {
	case models.RequestTypeCourseApproval:
		course, err := tx.Courses().GetByID(ctx, request.EntityID)
		if err != nil {
			return gatewayError("course", "Decide", err)
		}
		next := models.CourseStatusRejected
		if approve {
			next = models.CourseStatusActive
		}
		if err := lifecycle.CourseTransitions.Transition(course.Status, next); err != nil {
			return err
		}
		return casResult("course", "Decide")(tx.Courses().CompareAndSetStatus(ctx, course.ID, course.Status, next, nil))

	case models.RequestTypeTraineeAssignment:
		assignment, err := tx.TraineeAssignments().GetByID(ctx, request.EntityID)
		if err != nil {
			return gatewayError("trainee_assignment", "Decide", err)
		}
		next := assignmentOutcome(approve)
		if err := lifecycle.AssignmentTransitions.Transition(assignment.RequestStatus, next); err != nil {
			return err
		}
		return casResult("trainee_assignment", "Decide")(tx.TraineeAssignments().CompareAndSetStatus(ctx, assignment.ID, assignment.RequestStatus, next))

	case models.RequestTypeInstructorAssignment:
		assignment, err := tx.InstructorAssignments().GetByID(ctx, request.EntityID)
		if err != nil {
			return gatewayError("instructor_assignment", "Decide", err)
		}
		next := assignmentOutcome(approve)
		if err := lifecycle.AssignmentTransitions.Transition(assignment.RequestStatus, next); err != nil {
			return err
		}
		if approve {
			approved, err := tx.InstructorAssignments().GetApprovedByClassSubject(ctx, assignment.ClassSubjectID)
			switch {
			case err == nil && approved.ID != assignment.ID:
				return lifecycle.NewError("instructor_assignment", "Decide", lifecycle.ErrInvalidStateTransition,
					fmt.Sprintf("class subject %d already has an approved instructor", assignment.ClassSubjectID))
			case err != nil && !isNotFound(err):
				return gatewayError("instructor_assignment", "Decide", err)
			}
		}
		return casResult("instructor_assignment", "Decide")(tx.InstructorAssignments().CompareAndSetStatus(ctx, assignment.ID, assignment.RequestStatus, next))

	default:
		return ErrUnknownRequestType
	}
}

func assignmentOutcome(approve bool) models.RequestStatus {
	if approve {
		return models.RequestStatusApproved
	}
	return models.RequestStatusRejected
}

// casResult converts a compare-and-set outcome into a lifecycle error.
func casResult(domain, op string) func(bool, error) error {
	return func(ok bool, err error) error {
		if err != nil {
			return gatewayError(domain, op, err)
		}
		if !ok {
			return concurrentUpdate(domain, op)
		}
		return nil
	}
}

func (s *approvalService) Get(ctx context.Context, id uint) (models.Request, error) {
	request, err := s.store.Requests().GetByID(ctx, id)
	if err != nil {
		return models.Request{}, gatewayError("request", "Get", err)
	}
	return request, nil
}

func (s *approvalService) List(ctx context.Context, filter repository.RequestFilter) ([]models.Request, int64, error) {
	requests, total, err := s.store.Requests().List(ctx, filter)
	if err != nil {
		return nil, 0, gatewayError("request", "List", err)
	}
	return requests, total, nil
}
