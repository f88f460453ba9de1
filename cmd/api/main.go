package main

import (
	"net/http"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/clinic"
	"cliniccore/internal/config"
	"cliniccore/internal/httpserver"
	"cliniccore/internal/logger"
	"cliniccore/internal/mailer"
	"cliniccore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	if err := store.Seed(db); err != nil {
		lg.Fatalw("seed failed", "error", err)
	}
	systemClinicID, err := store.EnsureSystemClinic(db)
	if err != nil {
		lg.Fatalw("system clinic bootstrap failed", "error", err)
	}

	codec := auth.NewCodec(cfg.JWTSecret, cfg.SessionTTL)
	resolver := auth.NewResolver(codec)
	projector := clinic.NewProjector(db, systemClinicID)
	gate := billing.NewGate(db, lg)
	ml := mailer.NewLogMailer(lg)

	sweeper := billing.NewSweeper(db, lg)
	if err := sweeper.Start(); err != nil {
		lg.Fatalw("trial sweeper failed to start", "error", err)
	}
	defer sweeper.Stop()

	router := httpserver.NewRouter(httpserver.Deps{
		DB:          db,
		Codec:       codec,
		Resolver:    resolver,
		Projector:   projector,
		Gate:        gate,
		Mailer:      ml,
		FrontendURL: cfg.FrontendURL,
		Logger:      lg,
	})

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}
