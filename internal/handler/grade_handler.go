package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

// GradeHandler records trainee grades.
type GradeHandler struct {
	service  service.GradeService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service service.GradeService, validate *validator.Validate, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register binds grade routes under the trainee assignment group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Put("/:id/grade", middleware.WithAuth(h.record, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
	router.Get("/:id/grade", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
}

func (h *GradeHandler) record(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRecordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.service.Record(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record grade")
	}

	return utils.SendSuccess(c, "grade recorded", dto.NewGradeResponse(grade))
}

func (h *GradeHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load grade")
	}

	return utils.SendSuccess(c, "grade", dto.NewGradeResponse(grade))
}
