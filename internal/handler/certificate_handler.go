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

// CertificateHandler exposes certificate generation, renewal and revocation.
type CertificateHandler struct {
	service  service.CertificateService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(service service.CertificateService, validate *validator.Validate, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register binds certificate routes on the versioned api group.
func (h *CertificateHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}
	user := middleware.AuthOptions{RequireUser: true}

	router.Post("/courses/:id/certificates", middleware.WithAuth(h.generate, staff))
	router.Get("/trainees/:id/certificates", middleware.WithAuth(h.listByTrainee, user))

	certificates := router.Group("/certificates")
	certificates.Get("/:id", middleware.WithAuth(h.get, user))
	certificates.Get("/:id/renewals", middleware.WithAuth(h.renewals, user))
	certificates.Post("/:id/renew", middleware.WithAuth(h.renew, staff))
	certificates.Post("/:id/revoke", middleware.WithAuth(h.revoke, staff))
	certificates.Post("/:id/verify", middleware.WithAuth(h.verify, staff))
}

func (h *CertificateHandler) generate(c *fiber.Ctx) error {
	courseID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.AutoGenerateForCourse(requestContext(c), courseID, userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to generate certificates")
	}

	return utils.SendSuccess(c, "certificates generated", report)
}

func (h *CertificateHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certificate, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load certificate")
	}
	if !isStaff(c) && certificate.TraineeID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendSuccess(c, "certificate", dto.NewCertificateResponse(certificate))
}

func (h *CertificateHandler) listByTrainee(c *fiber.Ctx) error {
	traineeID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if !isStaff(c) && traineeID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	certificates, err := h.service.ListByTrainee(requestContext(c), traineeID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list certificates")
	}

	return utils.SendSuccess(c, "certificates", dto.NewCertificateResponseSlice(certificates))
}

func (h *CertificateHandler) renewals(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.service.GetRenewalHistory(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load renewal history")
	}

	return utils.SendSuccess(c, "renewal history", dto.NewRenewalResponseSlice(history))
}

func (h *CertificateHandler) renew(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CertificateRenewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certificate, err := h.service.Renew(requestContext(c), id, payload.ExpirationDate.UTC(), activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to renew certificate")
	}

	return utils.SendSuccess(c, "certificate renewed", dto.NewCertificateResponse(certificate))
}

func (h *CertificateHandler) revoke(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CertificateRevokeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certificate, err := h.service.Revoke(requestContext(c), id, payload.Reason, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to revoke certificate")
	}

	return utils.SendSuccess(c, "certificate revoked", dto.NewCertificateResponse(certificate))
}

func (h *CertificateHandler) verify(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certificate, err := h.service.Verify(requestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to verify certificate")
	}

	return utils.SendSuccess(c, "certificate verified", dto.NewCertificateResponse(certificate))
}
