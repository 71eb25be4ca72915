package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inspekta/internal/audit"
	bookingstore "inspekta/internal/booking/store"
	"inspekta/internal/creditpass"
	"inspekta/internal/identity"
	"inspekta/internal/ledger"
	"inspekta/internal/notify"
	"inspekta/internal/payments"
	"inspekta/internal/platform/config"
	"inspekta/internal/platform/httpserver"
	"inspekta/internal/platform/logger"
	"inspekta/internal/platform/middleware"
	"inspekta/internal/platform/obs"
	platformredis "inspekta/internal/platform/redis"
	"inspekta/internal/settlement"
	"inspekta/internal/settlement/handler"
	"inspekta/internal/settlement/metrics"
	"inspekta/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "inspekta", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	var (
		bookings    bookingstore.Store
		ledgerStore ledger.Store
		passStore   creditpass.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		for _, migrate := range []func(context.Context, *sql.DB) error{
			bookingstore.Migrate, ledger.Migrate, creditpass.Migrate,
		} {
			if err := migrate(ctx, db); err != nil {
				log.Error("migration failed", "error", err.Error())
				os.Exit(1)
			}
		}
		bookings = bookingstore.NewPostgres(db)
		ledgerStore = ledger.NewPostgres(db)
		passStore = creditpass.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		bookings = bookingstore.NewInMemory()
		ledgerStore = ledger.NewInMemory()
		passStore = creditpass.NewInMemory()
		log.Info("using in-memory stores")
	}

	ledgerSvc, err := ledger.New(ledgerStore, ledger.WithLogger(log))
	if err != nil {
		log.Error("ledger service init failed", "error", err.Error())
		os.Exit(1)
	}
	passSvc, err := creditpass.New(passStore, creditpass.WithLogger(log))
	if err != nil {
		log.Error("credit pass service init failed", "error", err.Error())
		os.Exit(1)
	}

	var notifier settlement.Notifier = notify.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error("amqp notifier init failed", "error", err.Error())
			os.Exit(1)
		}
		defer amqpNotifier.Close()
		notifier = notify.NewMulti(notify.NewLogNotifier(log), amqpNotifier)
		log.Info("publishing notifications to rabbitmq", "exchange", cfg.AMQPExchange)
	}

	engine, err := settlement.New(
		bookings,
		ledgerSvc,
		passSvc,
		payments.NewLogProvider(log),
		domain.Money{Amount: cfg.FeeAmount, Currency: cfg.FeeCurrency},
		settlement.WithLogger(log),
		settlement.WithNotifier(notifier),
		settlement.WithAuditPublisher(audit.NewPublisher(audit.NewInMemoryStore())),
		settlement.WithMetrics(metrics.New()),
	)
	if err != nil {
		log.Error("settlement engine init failed", "error", err.Error())
		os.Exit(1)
	}

	sweeper := settlement.NewSweeper(engine, cfg.SweepInterval, log)
	go sweeper.Run(ctx)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwtValidator := identity.NewJWTService(cfg.JWTSigningKey, "inspekta", "inspekta")

	router := chi.NewRouter()
	if redisClient != nil {
		router.Use(middleware.RateLimit(middleware.DefaultRateLimit(), redisClient.Client))
	}
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := handler.New(engine, log, jwtValidator, cfg.PassCredits, cfg.PassValidity)
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting inspekta", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
