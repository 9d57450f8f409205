package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-training-api/internal/config"
	"github.com/noah-isme/gema-training-api/internal/database"
	"github.com/noah-isme/gema-training-api/internal/seed"
)

func main() {
	path := flag.String("file", "fixtures/seed.json", "path to the JSON fixture")
	migrate := flag.Bool("migrate", true, "migrate the schema before loading")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("command", "seed").Logger()

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("failed to read fixture: %v", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if *migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	loader, err := seed.NewLoader(db, logger)
	if err != nil {
		log.Fatalf("failed to prepare seed loader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := loader.Load(ctx, data)
	if err != nil {
		log.Fatalf("failed to load fixture %s: %v", *path, err)
	}

	logger.Info().
		Str("file", *path).
		Int("users", summary.Users).
		Int("subjects", summary.Subjects).
		Int("decision_templates", summary.DecisionTemplates).
		Int("courses", summary.Courses).
		Int("class_subjects", summary.ClassSubjects).
		Int("schedules", summary.Schedules).
		Int("assignments", summary.Assignments).
		Msg("fixture loaded")
}
