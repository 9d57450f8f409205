package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

const decisionDateLayout = "2006-01-02"

// DecisionService drafts and issues formal decisions against certificates.
type DecisionService interface {
	Create(ctx context.Context, req dto.DecisionCreateRequest, actor ActivityActor) (models.Decision, error)
	Issue(ctx context.Context, id uint, actor ActivityActor) (models.Decision, error)
	ListByCertificate(ctx context.Context, certificateID uint) ([]models.Decision, error)
}

type decisionService struct {
	store     repository.Store
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDecisionService constructs the decision service.
func NewDecisionService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) DecisionService {
	return &decisionService{
		store:     store,
		validator: validate,
		activity:  activity,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "decision_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *decisionService) Create(ctx context.Context, req dto.DecisionCreateRequest, actor ActivityActor) (models.Decision, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Decision{}, err
	}

	certificate, err := s.store.Certificates().GetByID(ctx, req.CertificateID)
	if err != nil {
		return models.Decision{}, gatewayError("certificate", "CreateDecision", err)
	}
	if certificate.IsRevoked() {
		return models.Decision{}, lifecycle.NewError("decision", "Create", lifecycle.ErrAlreadyRevoked,
			fmt.Sprintf("certificate %d is revoked", certificate.ID))
	}

	content := req.Content
	if req.TemplateID != nil {
		template, err := s.store.Decisions().GetTemplate(ctx, *req.TemplateID)
		if err != nil {
			return models.Decision{}, gatewayError("decision_template", "CreateDecision", err)
		}
		replacer, err := s.placeholders(ctx, certificate)
		if err != nil {
			return models.Decision{}, err
		}
		content = replacer.Replace(template.Content)
	}

	decision := models.Decision{
		CertificateID: certificate.ID,
		TemplateID:    req.TemplateID,
		Title:         strings.TrimSpace(req.Title),
		Content:       s.sanitizer.Sanitize(content),
		Status:        models.DecisionStatusDraft,
		CreatedBy:     actor.ID,
	}
	if err := s.store.Decisions().Create(ctx, &decision); err != nil {
		return models.Decision{}, gatewayError("decision", "Create", err)
	}
	return decision, nil
}

// placeholders resolves the template variables of a certificate.
func (s *decisionService) placeholders(ctx context.Context, certificate models.Certificate) (*strings.Replacer, error) {
	trainee, err := s.store.Users().GetByID(ctx, certificate.TraineeID)
	if err != nil {
		return nil, gatewayError("user", "CreateDecision", err)
	}
	course, err := s.store.Courses().GetByID(ctx, certificate.CourseID)
	if err != nil {
		return nil, gatewayError("course", "CreateDecision", err)
	}

	expiration := "-"
	if certificate.ExpirationDate != nil {
		expiration = certificate.ExpirationDate.Format(decisionDateLayout)
	}

	return strings.NewReplacer(
		"{{trainee_name}}", trainee.Name,
		"{{course_name}}", course.Name,
		"{{certificate_code}}", certificate.Code,
		"{{issue_date}}", certificate.IssueDate.Format(decisionDateLayout),
		"{{expiration_date}}", expiration,
	), nil
}

func (s *decisionService) Issue(ctx context.Context, id uint, actor ActivityActor) (models.Decision, error) {
	decision, err := s.store.Decisions().GetByID(ctx, id)
	if err != nil {
		return models.Decision{}, gatewayError("decision", "Issue", err)
	}
	if err := lifecycle.DecisionTransitions.Transition(decision.Status, models.DecisionStatusIssued); err != nil {
		return models.Decision{}, err
	}

	now := s.now()
	code := newDecisionCode(now)
	ok, err := s.store.Decisions().MarkIssued(ctx, id, code, actor.ID, now)
	if err != nil {
		return models.Decision{}, gatewayError("decision", "Issue", err)
	}
	if !ok {
		return models.Decision{}, lifecycle.NewError("decision", "Issue", lifecycle.ErrInvalidStateTransition, "decision was issued concurrently")
	}

	issuedBy := actor.ID
	decision.Status = models.DecisionStatusIssued
	decision.Code = &code
	decision.IssuedBy = &issuedBy
	decision.IssuedAt = &now

	recordActivity(ctx, s.activity, s.logger, actor, ActionDecisionIssued, "decision", decision.ID, map[string]interface{}{
		"code":           code,
		"certificate_id": decision.CertificateID,
	})
	return decision, nil
}

func newDecisionCode(at time.Time) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("DEC-%d-%s", at.Year(), token[:10])
}

func (s *decisionService) ListByCertificate(ctx context.Context, certificateID uint) ([]models.Decision, error) {
	if _, err := s.store.Certificates().GetByID(ctx, certificateID); err != nil {
		return nil, gatewayError("certificate", "ListDecisions", err)
	}
	decisions, err := s.store.Decisions().ListByCertificate(ctx, certificateID)
	if err != nil {
		return nil, gatewayError("decision", "ListByCertificate", err)
	}
	return decisions, nil
}
