package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/diagnosis/attendance-beacon/internal/attend"
	"github.com/diagnosis/attendance-beacon/internal/beacon"
	"github.com/diagnosis/attendance-beacon/internal/http/handlers"
	httpmw "github.com/diagnosis/attendance-beacon/internal/http/middleware"
	"github.com/diagnosis/attendance-beacon/internal/repo/postgres"
	"github.com/diagnosis/attendance-beacon/internal/session"
	"github.com/diagnosis/attendance-beacon/internal/token"
	"github.com/diagnosis/attendance-beacon/pkg/cache"
	"github.com/diagnosis/attendance-beacon/pkg/config"
	"github.com/diagnosis/attendance-beacon/pkg/database"
	"github.com/diagnosis/attendance-beacon/pkg/events"
	"github.com/diagnosis/attendance-beacon/pkg/logger"
	mw "github.com/diagnosis/attendance-beacon/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Token core
	policy := token.Policy{
		MinEntropyBits:     cfg.Token.MinEntropyBits,
		LowRiskEntropyBits: cfg.Token.LowRiskEntropyBits,
	}
	metrics := token.NewMetrics(policy)
	codec := token.NewCodec(policy, metrics)
	packer := beacon.NewPacker(codec, beacon.NewDirectory())

	// Repositories
	sessionRepo := postgres.NewSessionRepo(pool, codec)
	attendanceRepo := postgres.NewAttendanceRepo(pool)
	orgRepo := postgres.NewOrgRepo(pool)

	// Core services
	registry := session.NewRegistry(sessionRepo)
	dupCache := attend.NewDuplicateCache(cfg.Attendance.DuplicateWindow)
	submitter := attend.NewSubmitter(codec, dupCache, attendanceRepo, cfg.Attendance.SubmitTimeout)

	h := handlers.New(codec, metrics, packer, registry, submitter, sessionRepo, eventBus, cfg)

	submitLimiter := httpmw.NewRateLimiter(redisClient, httpmw.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		KeyFunc:  httpmw.ByMember,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("attendance"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Org-Key"},
		MaxAge:         300,
	}))

	r.Route("/orgs/{slug}", func(r chi.Router) {
		r.With(httpmw.RequireOrgKey(orgRepo)).Post("/sessions", h.CreateSession)
		r.With(httpmw.RequireMemberJWT(cfg.Auth.JWTSecret)).Get("/sessions/active", h.ListActiveSessions)
	})

	r.Group(func(r chi.Router) {
		r.Use(httpmw.RequireMemberJWT(cfg.Auth.JWTSecret))
		r.Post("/beacon/resolve", h.ResolveBeacon)
		r.With(submitLimiter.Middleware()).Post("/attendance", h.SubmitAttendance)
	})

	r.Get("/metrics/security", h.SecurityMetrics)

	// Expired-session cleanup
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			deleted, err := sessionRepo.DeleteExpired(context.Background(), 24*time.Hour)
			if err != nil {
				logger.Error("Failed to clean up expired sessions", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Cleaned up expired sessions", "deleted", deleted)
				event := events.SessionExpiredEvent{
					Deleted:   deleted,
					OlderThan: (24 * time.Hour).String(),
					ExpiredAt: time.Now(),
				}
				if err := eventBus.Publish(context.Background(), events.SessionExpired, event); err != nil {
					logger.Error("Failed to publish session expired event", "error", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down attendance service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Attendance service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting attendance service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Attendance service error", "error", err)
		os.Exit(1)
	}
}
