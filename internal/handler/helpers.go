package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func userIDStringFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case uint:
			return strconv.FormatUint(uint64(id), 10)
		case int:
			if id < 0 {
				return ""
			}
			return strconv.Itoa(id)
		case string:
			return strings.TrimSpace(id)
		case fmt.Stringer:
			return strings.TrimSpace(id.String())
		}
	}
	return ""
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// requestContext returns the request context carrying the correlation id.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	if c == nil {
		return &base
	}
	logger := middleware.CorrelatedLogger(requestContext(c), base)
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

type serviceErrorMapping struct {
	target error
	status int
	code   string
}

// Service sentinels come first so their codes win over the kind they wrap.
var serviceErrorMappings = []serviceErrorMapping{
	{service.ErrGradeLocked, fiber.StatusForbidden, "grade_locked"},
	{service.ErrAssignmentNotApproved, fiber.StatusConflict, "assignment_not_approved"},
	{service.ErrRenewalNotAllowed, fiber.StatusConflict, "renewal_not_allowed"},
	{service.ErrInvalidExpiration, fiber.StatusBadRequest, "invalid_expiration"},
	{service.ErrUnknownRequestType, fiber.StatusBadRequest, "unknown_request_type"},
	{lifecycle.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{lifecycle.ErrUnauthorized, fiber.StatusForbidden, "unauthorized"},
	{lifecycle.ErrInvalidStateTransition, fiber.StatusConflict, "invalid_state_transition"},
	{lifecycle.ErrAlreadyPending, fiber.StatusConflict, "already_pending"},
	{lifecycle.ErrNotPending, fiber.StatusConflict, "not_pending"},
	{lifecycle.ErrAlreadyRevoked, fiber.StatusConflict, "already_revoked"},
	{lifecycle.ErrNotExpired, fiber.StatusConflict, "not_expired"},
}

// sendServiceError maps lifecycle error kinds onto HTTP statuses and codes.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if isValidationError(err) {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	for _, mapping := range serviceErrorMappings {
		if errors.Is(err, mapping.target) {
			return utils.SendErrorCode(c, mapping.status, mapping.code, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "request cancelled")
	}

	requestLogger(logger, c).Error().Err(err).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
