package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/seed"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// FixtureLoader applies a raw fixture document.
type FixtureLoader interface {
	Load(ctx context.Context, data []byte) (seed.Summary, error)
}

// SeedService guards fixture loading behind configuration and a shared token.
type SeedService interface {
	Load(ctx context.Context, token string, data []byte) (seed.Summary, error)
}

type seedService struct {
	loader  FixtureLoader
	enabled bool
	token   string
	logger  zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(loader FixtureLoader, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		loader:  loader,
		enabled: enabled,
		token:   token,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) Load(ctx context.Context, token string, data []byte) (seed.Summary, error) {
	if !s.enabled {
		return seed.Summary{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return seed.Summary{}, ErrSeedUnauthorized
	}

	summary, err := s.loader.Load(ctx, data)
	if err != nil {
		return seed.Summary{}, err
	}
	s.logger.Info().
		Int("users", summary.Users).
		Int("courses", summary.Courses).
		Msg("fixture seeded")
	return summary, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
