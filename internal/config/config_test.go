package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesLifecycleDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "@every 15m", cfg.ProgressSweepSchedule)
	require.Equal(t, "@every 24h", cfg.CertificateSweepSchedule)
	require.Equal(t, 720*time.Hour, cfg.CertificateWarningWindow)
	require.Equal(t, 8760*time.Hour, cfg.CertificateValidity)
	require.Equal(t, time.Duration(0), cfg.CertificateRenewalGrace)
	require.InDelta(t, 1.0, cfg.GradingParticipationWeight+cfg.GradingAssignmentWeight+cfg.GradingPracticalWeight+cfg.GradingFinalExamWeight, 1e-9)
	require.Equal(t, 5*time.Second, cfg.RedisDialTimeout)
	require.Equal(t, "*", cfg.CORSOrigins)
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_CERTIFICATE_WARNING_WINDOW", "240h")
	t.Setenv("GEMA_PROGRESS_SWEEP_SCHEDULE", "*/5 * * * *")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 240*time.Hour, cfg.CertificateWarningWindow)
	require.Equal(t, "*/5 * * * *", cfg.ProgressSweepSchedule)

	t.Setenv("GEMA_CORS_ALLOW_ORIGINS", "https://training.example.com")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "https://training.example.com", cfg.CORSOrigins)
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_CERTIFICATE_RENEWAL_GRACE", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}
