package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"certflow/internal/certificate"
	"certflow/internal/evaluation"
	jwttoken "certflow/internal/jwt_token"
	"certflow/internal/ledger"
	"certflow/internal/notification"
	"certflow/internal/payment"
	"certflow/internal/platform/config"
	"certflow/internal/platform/database"
	"certflow/internal/platform/httpserver"
	"certflow/internal/platform/logger"
	"certflow/internal/platform/metrics"
	platformredis "certflow/internal/platform/redis"
	"certflow/internal/reminder"
	"certflow/internal/request"
	"certflow/internal/user"
	"certflow/internal/workflow"
	workflowhandler "certflow/internal/workflow/handler"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, sweep serialization is process-local", "error", err)
		redisClient = nil
	}

	var mailer notification.Mailer
	if cfg.MailDryRun {
		mailer = logMailer{log}
	} else {
		sesMailer, err := notification.NewSESMailer(ctx, cfg.SESRegion, cfg.SESSender)
		if err != nil {
			log.Error("init ses mailer", "error", err)
			os.Exit(1)
		}
		mailer = sesMailer
	}

	m := metrics.New()

	requests := request.NewPostgresStore(db)
	reports := evaluation.NewPostgresStore(db)
	payments := payment.NewPostgresStore(db)
	certs := certificate.NewPostgresStore(db)
	users := user.NewPostgresStore(db)

	dispatcher := notification.NewDispatcher(requests, users, mailer, log,
		notification.WithMetrics(notification.NewMetrics()))
	ldg := ledger.New(ledger.NewPostgresStore(db), dispatcher, log)

	var locker reminder.SweepLocker
	if redisClient != nil {
		locker = reminder.NewRedisLock(redisClient, time.Minute)
	} else {
		locker = reminder.NewLocalLock()
	}
	scheduler := reminder.NewScheduler(reminder.NewPostgresStore(db), users, mailer, locker, log,
		reminder.WithMetrics(reminder.NewMetrics()))

	engine := workflow.NewEngine(requests, reports, payments, certs, ldg, scheduler,
		newWorkflowPostgresTx(db), log,
		workflow.WithMetrics(m),
		workflow.WithPaymentDueDelay(cfg.PaymentDueDelay),
		workflow.WithCollectReminderDelay(cfg.CollectReminderDelay),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "certflow", "certflow-api")
	handler := workflowhandler.New(engine, scheduler, log, jwttoken.NewJWTServiceAdapter(jwtService))

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	sweeper := reminder.NewRunner(scheduler, log)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("starting certflow server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Start(cfg.SweepInterval); err != nil {
			return err
		}
		<-gCtx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
