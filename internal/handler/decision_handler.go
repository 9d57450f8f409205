package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

// DecisionHandler manages formal decisions attached to certificates.
type DecisionHandler struct {
	service  service.DecisionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewDecisionHandler constructs the handler.
func NewDecisionHandler(service service.DecisionService, validate *validator.Validate, logger zerolog.Logger) *DecisionHandler {
	return &DecisionHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "decision_handler").Logger(),
	}
}

// Register binds decision routes on the versioned api group.
func (h *DecisionHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}

	router.Post("/decisions", middleware.WithAuth(h.create, staff))
	router.Post("/decisions/:id/issue", middleware.WithAuth(h.issue, staff))
	router.Get("/certificates/:id/decisions", middleware.WithAuth(h.listByCertificate, staff))
}

func (h *DecisionHandler) create(c *fiber.Ctx) error {
	var payload dto.DecisionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	decision, err := h.service.Create(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create decision")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "decision drafted", dto.NewDecisionResponse(decision))
}

func (h *DecisionHandler) issue(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	decision, err := h.service.Issue(requestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to issue decision")
	}

	return utils.SendSuccess(c, "decision issued", dto.NewDecisionResponse(decision))
}

func (h *DecisionHandler) listByCertificate(c *fiber.Ctx) error {
	certificateID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	decisions, err := h.service.ListByCertificate(requestContext(c), certificateID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list decisions")
	}

	return utils.SendSuccess(c, "decisions", newDecisionResponses(decisions))
}

func newDecisionResponses(items []models.Decision) []dto.DecisionResponse {
	out := make([]dto.DecisionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewDecisionResponse(item))
	}
	return out
}
