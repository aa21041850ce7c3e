package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"kinlink/internal/family/handler"
	familymetrics "kinlink/internal/family/metrics"
	"kinlink/internal/family/service"
	familystore "kinlink/internal/family/store"
	accountstore "kinlink/internal/family/store/account"
	memberstore "kinlink/internal/family/store/member"
	"kinlink/internal/family/store/reservation"
	"kinlink/internal/jwtauth"
	"kinlink/internal/platform/config"
	"kinlink/internal/platform/httpserver"
	"kinlink/internal/platform/logger"
	"kinlink/internal/platform/metrics"
	"kinlink/internal/platform/middleware"
	platformredis "kinlink/internal/platform/redis"
	"kinlink/pkg/platform/audit"
	"kinlink/pkg/platform/audit/kafka"
	"kinlink/pkg/platform/audit/publisher"
	auditmemory "kinlink/pkg/platform/audit/store/memory"
	"kinlink/pkg/platform/middleware/metadata"
	"kinlink/pkg/platform/middleware/requesttime"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in internal/family.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var accounts service.AccountStore
	var members service.MemberStore
	var accountWriter familystore.AccountWriter

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		if err := familystore.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		pgAccounts := accountstore.NewPostgres(db)
		accounts = pgAccounts
		accountWriter = pgAccounts
		members = memberstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		memAccounts := accountstore.New()
		accounts = memAccounts
		accountWriter = memAccounts
		members = memberstore.New()
		log.Info("using in-memory stores")
	}

	var reservations service.Reservation
	redisClient, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		reservations = reservation.NewRedis(redisClient.Client, cfg.ReservationTTL)
		log.Info("using redis reservations")
	} else {
		reservations = reservation.NewInMemory(cfg.ReservationTTL)
	}

	var auditStore audit.Store
	var kafkaSink *kafka.Sink
	if len(cfg.KafkaSeeds) > 0 {
		kafkaSink, err = kafka.NewSink(ctx, cfg.KafkaSeeds, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		auditStore = kafkaSink
		log.Info("audit events flowing to kafka", "topic", cfg.KafkaTopic)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	auditPublisher := publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(256))

	if cfg.SeedDemo {
		seeded, err := familystore.SeedDemoAccounts(ctx, accountWriter)
		if err != nil {
			log.Error("failed to seed demo accounts", "error", err)
			os.Exit(1)
		}
		for _, account := range seeded {
			log.Info("seeded demo account", "account_id", account.ID, "email", account.Email)
		}
	}

	familySvc := service.New(accounts, members, reservations,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(familymetrics.New()),
	)
	tokens := jwtauth.NewService(cfg.JWTSigningKey, "kinlink", "kinlink")
	processMetrics := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(middleware.HTTPMetrics(processMetrics))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		handler.New(familySvc, log).Register(r)
	})

	srv := httpserver.New(httpserver.DefaultConfig(cfg.Addr), router)

	go func() {
		log.Info("starting kinlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	auditPublisher.Close()
	if kafkaSink != nil {
		kafkaSink.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("kinlink stopped")
}
