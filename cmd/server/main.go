package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dispatch-service/internal/app"
	"dispatch-service/internal/clients"
	"dispatch-service/internal/config"
	"dispatch-service/internal/gcal"
	"dispatch-service/internal/jobs"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/payment"
	"dispatch-service/internal/server"
	"dispatch-service/internal/store"
	"dispatch-service/internal/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	repo := store.NewPostgres(pool)

	var notifier notify.Notifier = notify.Log{Logger: log}
	if cfg.Redis.Address != "" {
		client, err := notify.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, notifications go to the log only", logger.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			notifier = notify.Multi{notifier, notify.NewRedis(client, cfg.Redis.Channel, log)}
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	loc := cfg.Location()
	locks := keylock.New()

	jobSvc := jobs.NewService(jobs.Deps{
		Repo:     repo,
		Payments: payment.NewSandbox(cfg.Payment.SandboxBalanceCents),
		Notifier: notifier,
		Locks:    locks,
		Metrics:  m,
		Logger:   log,
		Location: loc,
	})
	workerSvc := workers.NewService(workers.Deps{
		Repo:     repo,
		Locks:    locks,
		Metrics:  m,
		Logger:   log,
		Location: loc,
	})

	clientSvc := clients.NewService(clients.Deps{Repo: repo, Locks: locks, Logger: log})

	roller, err := workerSvc.ScheduleHorizonRoll(cfg.Service.HorizonCron)
	if err != nil {
		return err
	}
	defer func() { <-roller.Stop().Done() }()

	oauth := gcal.NewOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if oauth == nil {
		log.Info("Google Calendar not configured")
	}

	router := app.NewRouter(&app.App{
		Jobs:     jobSvc,
		Workers:  workerSvc,
		Clients:  clientSvc,
		OAuth:    oauth,
		Metrics:  m,
		Log:      log,
		Location: loc,
	}, app.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, StaticTokens: cfg.Auth.StaticTokens})

	srv := server.New(cfg.Addr(), router)
	return server.Run(ctx, srv, log, cfg.Service.ShutdownTimeout)
}
