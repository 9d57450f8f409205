package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/scheduler"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

// SweepRunner triggers a registered sweep under its lock.
type SweepRunner interface {
	RunOnce(ctx context.Context, name string) (interface{}, error)
}

// AdminHandler exposes administrative sweeps, cancellations and the audit trail.
type AdminHandler struct {
	sweeps   SweepRunner
	progress service.ProgressService
	activity service.ActivityService
	logger   zerolog.Logger
	limiter  fiber.Storage
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(sweeps SweepRunner, progress service.ProgressService, activity service.ActivityService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		sweeps:   sweeps,
		progress: progress,
		activity: activity,
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

// WithRateLimitStorage shares the sweep throttle across replicas.
func (h *AdminHandler) WithRateLimitStorage(storage fiber.Storage) *AdminHandler {
	h.limiter = storage
	return h
}

// Register binds admin routes. The caller guards the group with the admin role.
func (h *AdminHandler) Register(router fiber.Router) {
	limit := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Identifier: "admin_sweeps",
		Max:        6,
		Window:     time.Minute,
		Storage:    h.limiter,
	})
	router.Post("/sweeps/progress", limit, h.runSweep(scheduler.JobProgressSweep))
	router.Post("/sweeps/certificates", limit, h.runSweep(scheduler.JobCertificateSweep))
	router.Post("/sweeps/all", limit, h.runAllSweeps)

	router.Post("/courses/:id/cancel", h.cancelCourse)
	router.Post("/class-subjects/:id/cancel", h.cancelClassSubject)
	router.Post("/schedules/:id/cancel", h.cancelSchedule)

	router.Get("/activities", h.listActivities)
}

func (h *AdminHandler) runSweep(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := h.sweeps.RunOnce(requestContext(c), name)
		if err != nil {
			return h.sweepError(c, err)
		}
		return utils.SendSuccess(c, name+" sweep finished", report)
	}
}

func (h *AdminHandler) runAllSweeps(c *fiber.Ctx) error {
	group, ctx := errgroup.WithContext(requestContext(c))

	var mu sync.Mutex
	reports := make(map[string]interface{}, 2)
	for _, name := range []string{scheduler.JobProgressSweep, scheduler.JobCertificateSweep} {
		name := name
		group.Go(func() error {
			report, err := h.sweeps.RunOnce(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			reports[name] = report
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return h.sweepError(c, err)
	}
	return utils.SendSuccess(c, "sweeps finished", reports)
}

func (h *AdminHandler) sweepError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, scheduler.ErrLockHeld):
		return utils.SendError(c, fiber.StatusConflict, "sweep already running")
	case errors.Is(err, scheduler.ErrUnknownJob):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		return sendServiceError(c, h.logger, err, "sweep failed")
	}
}

func (h *AdminHandler) cancelCourse(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.progress.CancelCourse(requestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to cancel course")
	}

	return utils.SendSuccess(c, "course cancelled", dto.StatusResponse{EntityType: "course", EntityID: course.ID, Status: string(course.Status)})
}

func (h *AdminHandler) cancelClassSubject(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	classSubject, err := h.progress.CancelClassSubject(requestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to cancel class subject")
	}

	return utils.SendSuccess(c, "class subject cancelled", dto.StatusResponse{EntityType: "class_subject", EntityID: classSubject.ID, Status: string(classSubject.Status)})
}

func (h *AdminHandler) cancelSchedule(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	schedule, err := h.progress.CancelSchedule(requestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to cancel schedule")
	}

	return utils.SendSuccess(c, "schedule cancelled", dto.StatusResponse{EntityType: "schedule", EntityID: schedule.ID, Status: string(schedule.Status)})
}

func (h *AdminHandler) listActivities(c *fiber.Ctx) error {
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
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil || actorID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor id")
	}
	entityID, err := parseQueryInt(c, "entity_id")
	if err != nil || entityID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity id")
	}

	since, err := parseQueryTime(c, "since")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid since, expected RFC3339")
	}
	until, err := parseQueryTime(c, "until")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid until, expected RFC3339")
	}
	if since != nil && until != nil && !until.After(*since) {
		return utils.SendError(c, fiber.StatusBadRequest, "until must be after since")
	}

	response, err := h.activity.List(requestContext(c), dto.ActivityListRequest{
		Page:          page,
		PageSize:      pageSize,
		ActorID:       uint(actorID),
		Action:        c.Query("action"),
		EntityType:    c.Query("entity_type"),
		EntityID:      uint(entityID),
		CorrelationID: c.Query("correlation_id"),
		Since:         since,
		Until:         until,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list activity logs")
	}

	return utils.SendSuccess(c, "activity logs", response)
}
