package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-training-api/internal/config"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

const dependencyCheckTimeout = 2 * time.Second

// DependencyCheck reports whether one backing service (database, cache, broker) is reachable.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Scheduler    bool              `json:"scheduler"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck returns a handler that reports application health. Any failing
// dependency degrades the service and answers 503.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Scheduler:   cfg.SchedulerEnabled,
		}
		if len(checks) == 0 {
			return utils.SendSuccess(c, "service healthy", payload)
		}

		ctx, cancel := context.WithTimeout(requestContext(c), dependencyCheckTimeout)
		defer cancel()

		var (
			mu       sync.Mutex
			degraded bool
		)
		payload.Dependencies = make(map[string]string, len(checks))
		group := new(errgroup.Group)
		for _, check := range checks {
			group.Go(func() error {
				state := "up"
				if err := check.Check(ctx); err != nil {
					state = "down: " + err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				payload.Dependencies[check.Name] = state
				if state != "up" {
					degraded = true
				}
				return nil
			})
		}
		_ = group.Wait()

		if degraded {
			payload.Status = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
				Code:    utils.StatusCode(fiber.StatusServiceUnavailable),
			})
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
