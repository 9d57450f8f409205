package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

// ProgressHandler exposes on-demand status recomputation.
type ProgressHandler struct {
	service  service.ProgressService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, validate *validator.Validate, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the progress routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Post("/progress/recompute", middleware.WithAuth(h.recompute, middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
	router.Get("/schedules/:id", middleware.WithAuth(h.schedule, middleware.AuthOptions{RequireUser: true}))
}

func (h *ProgressHandler) recompute(c *fiber.Ctx) error {
	var payload dto.RecomputeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entityType, err := lifecycle.ParseEntityType(payload.EntityType)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := requestContext(c)
	if err := h.service.RecomputeStatus(ctx, lifecycle.EntityRef{Type: entityType, ID: payload.EntityID}); err != nil {
		return sendServiceError(c, h.logger, err, "failed to recompute status")
	}

	status, err := h.currentStatus(c, entityType, payload.EntityID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load status")
	}

	return utils.SendSuccess(c, "status recomputed", status)
}

// currentStatus reads back the derived status. Recomputation is idempotent, so this writes nothing.
func (h *ProgressHandler) currentStatus(c *fiber.Ctx, entityType lifecycle.EntityType, id uint) (dto.StatusResponse, error) {
	ctx := requestContext(c)
	response := dto.StatusResponse{EntityType: string(entityType), EntityID: id}

	switch entityType {
	case lifecycle.EntitySchedule:
		schedule, err := h.service.RecomputeSchedule(ctx, id)
		if err != nil {
			return response, err
		}
		response.Status = string(schedule.Status)
	case lifecycle.EntityClassSubject:
		classSubject, err := h.service.RecomputeClassSubject(ctx, id)
		if err != nil {
			return response, err
		}
		response.Status = string(classSubject.Status)
	case lifecycle.EntityCourse:
		course, err := h.service.RecomputeCourse(ctx, id)
		if err != nil {
			return response, err
		}
		response.Status = string(course.Status)
	}
	return response, nil
}

func (h *ProgressHandler) schedule(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	schedule, err := h.service.GetSchedule(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load schedule")
	}

	return utils.SendSuccess(c, "schedule", dto.NewScheduleResponse(schedule))
}
