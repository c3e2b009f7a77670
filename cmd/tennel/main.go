package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/UoduodihsLab/Tennel/internal/api"
	"github.com/UoduodihsLab/Tennel/internal/config"
	"github.com/UoduodihsLab/Tennel/internal/jobs"
	"github.com/UoduodihsLab/Tennel/internal/lifecycle"
	"github.com/UoduodihsLab/Tennel/internal/observability"
	"github.com/UoduodihsLab/Tennel/internal/schedule"
	"github.com/UoduodihsLab/Tennel/internal/scheduler"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
	"github.com/UoduodihsLab/Tennel/internal/tasks"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
	"github.com/UoduodihsLab/Tennel/internal/worker"
)

func main() {
	var (
		configPath = flag.String("config", "tennel.yaml", "config file path")
		addr       = flag.String("addr", "", "HTTP bind address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite DB path (overrides config)")
		workers    = flag.Int("workers", 4, "workers per task kind")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.BindAddr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	st := store.New(db)

	var dial telegram.Dialer
	if cfg.Telegram.GatewayURL != "" {
		dial = telegram.GatewayDialer(cfg.Telegram.GatewayURL, cfg.Telegram.Proxy.URL(), cfg.OperationTimeout())
	} else {
		log.Warn().Msg("no gateway configured, running in dry-run mode")
		dial = telegram.FakeDialer(telegram.NewFake)
	}

	metrics := observability.NewMetrics("tennel")
	registry := session.NewRegistry(dial, cfg.OperationTimeout(), log)
	sched := scheduler.New(cfg.Location(), log)
	router := worker.NewRouter(registry, st, metrics, log, *workers)

	var content jobs.ContentProvider
	if cfg.Content.APIKey != "" && cfg.Content.BaseURL != "" {
		content = jobs.NewChatCompletionProvider(cfg.Content.BaseURL, cfg.Content.APIKey, cfg.Content.Model, cfg.Content.SystemPrompt)
	} else {
		content = jobs.StaticProvider{}
	}

	dispatcher := jobs.NewDispatcher(jobs.Config{
		Registry:          registry,
		Store:             st,
		Scheduler:         sched,
		Content:           content,
		Metrics:           metrics,
		Logger:            log,
		TimesPerDay:       cfg.Publish.TimesPerDay,
		SeparationMinutes: cfg.Publish.SeparationMinutes,
		MediaRoot:         cfg.MediaRoot,
		Location:          cfg.Location(),
	})
	sched.SetDispatch(dispatcher.Dispatch)

	taskSvc := tasks.NewService(st, router, cfg.Limits.MaxChannelsPerAccount, log)
	scheduleSvc := schedule.NewService(st, sched, log)
	lc := lifecycle.NewManager(registry, st, sched, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := lc.OnStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup sync")
	}
	if err := lc.RegisterSystemJobs(); err != nil {
		log.Fatal().Err(err).Msg("register system jobs")
	}
	if err := lc.ResumeSchedules(ctx); err != nil {
		log.Fatal().Err(err).Msg("resume schedules")
	}

	sched.Start(ctx)
	router.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.NewServer(st, registry, taskSvc, scheduleSvc, log),
	}
	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	_ = srv.Shutdown(shutdownCtx)
	lc.OnShutdown(shutdownCtx)
	sched.Shutdown()
	cancel()
	router.Wait()
}
