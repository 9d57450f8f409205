package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/repository"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

// ApprovalHandler exposes the approval request workflow.
type ApprovalHandler struct {
	service  service.ApprovalService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service service.ApprovalService, validate *validator.Validate, logger zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "approval_handler").Logger(),
	}
}

// Register binds the request routes.
func (h *ApprovalHandler) Register(router fiber.Router) {
	router.Post("/", middleware.WithAuth(h.submit, middleware.AuthOptions{RequireUser: true}))
	router.Get("/", middleware.WithAuth(h.list, middleware.AuthOptions{RequireUser: true}))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
	router.Post("/:id/decision", middleware.WithAuth(h.decide, middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
}

func (h *ApprovalHandler) submit(c *fiber.Ctx) error {
	var payload dto.ApprovalSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	request, err := h.service.Submit(requestContext(c), service.SubmitRequest{
		Type:        models.RequestType(payload.Type),
		EntityID:    payload.EntityID,
		RequestorID: userIDFromContext(c),
		Description: payload.Description,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to submit request")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "request submitted", dto.NewRequestResponse(request))
}

func (h *ApprovalHandler) decide(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ApprovalDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	request, err := h.service.Decide(requestContext(c), id, service.DecideRequest{
		ApproverID: userIDFromContext(c),
		Approve:    *payload.Approve,
		Note:       payload.Note,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to decide request")
	}

	return utils.SendSuccess(c, "request decided", dto.NewRequestResponse(request))
}

func (h *ApprovalHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	request, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load request")
	}
	if !isStaff(c) && request.RequestorID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendSuccess(c, "request", dto.NewRequestResponse(request))
}

func (h *ApprovalHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	req := dto.ApprovalListRequest{
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	}
	if err := h.validate.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	filter := repository.RequestFilter{
		Type:     models.RequestType(req.Type),
		Status:   models.RequestStatus(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	// Non-staff users only see their own requests.
	if !isStaff(c) {
		requestor := userIDFromContext(c)
		filter.RequestorID = &requestor
	}

	requests, total, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list requests")
	}

	items := make([]dto.RequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.NewRequestResponse(request))
	}

	return utils.SendSuccess(c, "requests", dto.RequestListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	})
}

func isStaff(c *fiber.Ctx) bool {
	role := userRoleFromContext(c)
	return role == models.RoleAdmin || role == models.RoleTrainingStaff
}
