package handler

import (
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/seed"
	"github.com/noah-isme/gema-training-api/internal/service"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

const maxFixtureSize = 5 << 20

// SeedHandler accepts fixture uploads.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/seed", h.load)
}

// load takes the fixture from a multipart "fixture" file or from the raw request body.
func (h *SeedHandler) load(c *fiber.Ctx) error {
	data, err := h.fixtureBytes(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if len(data) > maxFixtureSize {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "fixture too large")
	}

	if detected := mimetype.Detect(data); !detected.Is("application/json") {
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "fixture must be JSON, got "+detected.String())
	}

	summary, err := h.service.Load(requestContext(c), c.Get("X-Seed-Token"), data)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "fixture seeded", summary)
}

func (h *SeedHandler) fixtureBytes(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("fixture")
	if err != nil {
		body := c.Body()
		if len(body) == 0 {
			return nil, errors.New("fixture is required")
		}
		return bytes.Clone(body), nil
	}

	handle, err := file.Open()
	if err != nil {
		return nil, errors.New("unable to read fixture")
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, maxFixtureSize+1))
	if err != nil {
		return nil, errors.New("unable to read fixture")
	}
	return data, nil
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	case errors.Is(err, seed.ErrInvalidFixture):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
