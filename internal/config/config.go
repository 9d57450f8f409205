package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	AutoMigrate      bool
	RedisURL         string
	RedisDialTimeout time.Duration
	CORSOrigins      string
	NATSURL          string
	RealtimeChannel  string
	JWTSecret        string
	SeedEnabled      bool
	SeedToken        string
	SchedulerEnabled bool

	ProgressSweepSchedule    string
	CertificateSweepSchedule string
	SweepLockTTL             time.Duration

	CertificateValidity            time.Duration
	CertificateWarningWindow       time.Duration
	CertificateRenewalWindow       time.Duration
	CertificateRenewalGrace        time.Duration
	CertificateRequireVerification bool
	RenewalHistoryCacheTTL         time.Duration

	GradingParticipationWeight float64
	GradingAssignmentWeight    float64
	GradingPracticalWeight     float64
	GradingFinalExamWeight     float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Training API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("realtime.channel", "gema:training")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("progress_sweep.schedule", "@every 15m")
	v.SetDefault("certificate_sweep.schedule", "@every 24h")
	v.SetDefault("sweep.lock_ttl", "10m")
	v.SetDefault("certificate.validity", "8760h")
	v.SetDefault("certificate.warning_window", "720h")
	v.SetDefault("certificate.renewal_window", "720h")
	v.SetDefault("certificate.renewal_grace", "0s")
	v.SetDefault("certificate.require_verification", false)
	v.SetDefault("certificate.history_cache_ttl", "10m")
	v.SetDefault("grading.participation_weight", 0.1)
	v.SetDefault("grading.assignment_weight", 0.2)
	v.SetDefault("grading.practical_weight", 0.3)
	v.SetDefault("grading.final_exam_weight", 0.4)

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:                        v.GetString("app.name"),
		AppEnv:                         v.GetString("app.env"),
		AppPort:                        v.GetString("app.port"),
		DatabaseURL:                    v.GetString("database.url"),
		AutoMigrate:                    v.GetBool("database.auto_migrate"),
		RedisURL:                       v.GetString("redis.url"),
		CORSOrigins:                    strings.TrimSpace(v.GetString("cors.allow_origins")),
		NATSURL:                        v.GetString("nats.url"),
		RealtimeChannel:                v.GetString("realtime.channel"),
		JWTSecret:                      v.GetString("jwt.secret"),
		SeedEnabled:                    v.GetBool("seed.enabled"),
		SeedToken:                      v.GetString("seed.token"),
		SchedulerEnabled:               v.GetBool("scheduler.enabled"),
		ProgressSweepSchedule:          strings.TrimSpace(v.GetString("progress_sweep.schedule")),
		CertificateSweepSchedule:       strings.TrimSpace(v.GetString("certificate_sweep.schedule")),
		CertificateRequireVerification: v.GetBool("certificate.require_verification"),
		GradingParticipationWeight:     v.GetFloat64("grading.participation_weight"),
		GradingAssignmentWeight:        v.GetFloat64("grading.assignment_weight"),
		GradingPracticalWeight:         v.GetFloat64("grading.practical_weight"),
		GradingFinalExamWeight:         v.GetFloat64("grading.final_exam_weight"),
	}

	durations["redis.dial_timeout"] = &cfg.RedisDialTimeout
	durations["sweep.lock_ttl"] = &cfg.SweepLockTTL
	durations["certificate.validity"] = &cfg.CertificateValidity
	durations["certificate.warning_window"] = &cfg.CertificateWarningWindow
	durations["certificate.renewal_window"] = &cfg.CertificateRenewalWindow
	durations["certificate.renewal_grace"] = &cfg.CertificateRenewalGrace
	durations["certificate.history_cache_ttl"] = &cfg.RenewalHistoryCacheTTL

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*target = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ProgressSweepSchedule == "" || cfg.CertificateSweepSchedule == "" {
		return Config{}, fmt.Errorf("sweep schedules must not be empty")
	}

	return cfg, nil
}
