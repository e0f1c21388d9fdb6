package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/console"
	"github.com/noah-isme/ecotrack-console/internal/handler"
	"github.com/noah-isme/ecotrack-console/internal/repository"
	"github.com/noah-isme/ecotrack-console/internal/service"
	"github.com/noah-isme/ecotrack-console/pkg/cache"
	"github.com/noah-isme/ecotrack-console/pkg/config"
	"github.com/noah-isme/ecotrack-console/pkg/database"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	"github.com/noah-isme/ecotrack-console/pkg/jobs"
	"github.com/noah-isme/ecotrack-console/pkg/logger"
)

type tokenStore interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openTokenStore(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to open token store", zap.String("store", cfg.Token.Store), zap.Error(err))
		return 1
	}
	defer closeStore()

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }
	validate := validator.New()

	metrics := service.NewMetricsService()
	api := httpclient.New(httpclient.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Observer: metrics,
		Logger:   logr,
	})
	renderer := console.New(os.Stdout, console.Options{Verbose: cfg.Log.Level == "debug", Location: loc})
	queue := jobs.NewQueue("console", jobs.QueueConfig{Workers: cfg.Dispatch.Workers, Logger: logr})

	session := service.NewSessionService(api, store, renderer, validate, logr, metrics, service.SessionConfig{
		TokenKey: cfg.Token.Key,
		Now:      now,
	})
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Session:  session,
		Filters:  service.NewFilterStore(cfg.Filters.DefaultLimit, now),
		Renderer: renderer,
		Logger:   logr,
		Now:      now,
		Config:   service.DashboardServiceConfig{ReloadDelay: cfg.Ingest.ReloadDelay},
	})
	admin := service.NewAdminUserService(session, renderer, validate, logr)
	tabs := service.NewTabService(session, dashboard, admin, renderer, queue, logr)
	exports := service.NewExportService(dashboard, logr, now)
	watch, err := service.NewWatchService(tabs, metrics, logr, service.WatchConfig{Schedule: cfg.Watch.Schedule})
	if err != nil {
		logr.Error("invalid watch configuration", zap.Error(err))
		return 1
	}

	if _, err := session.Restore(ctx); err != nil {
		logr.Warn("failed to restore session", zap.Error(err))
	}

	commands := handler.NewCommandHandler(handler.CommandDeps{
		Session:   session,
		Dashboard: dashboard,
		Tabs:      tabs,
		Admin:     admin,
		Export:    exports,
		Renderer:  renderer,
		Logger:    logr,
		ExportDir: cfg.Export.Dir,
		In:        os.Stdin,
		Out:       os.Stdout,
	})
	status := handler.NewStatusRouter(logr, handler.NewStatusHandler(metrics, session, tabs))
	cli := &handler.CLI{
		Commands:    commands,
		Shell:       handler.NewShellHandler(commands, queue, os.Stdin, os.Stdout, logr),
		Watch:       handler.NewWatchHandler(tabs, watch, status, logr),
		MetricsAddr: cfg.Watch.MetricsAddr,
	}

	err = cli.Run(ctx, os.Args[1:])
	dashboard.Wait()
	if err == nil {
		return 0
	}
	var usage *handler.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(os.Stderr, "%s\n\n%s", usage.Msg, handler.Usage)
		return 2
	}
	logr.Debug("command failed", zap.Error(err))
	return 1
}

func openTokenStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (tokenStore, func(), error) {
	switch cfg.Token.Store {
	case config.TokenStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRedisStateRepository(client, cfg.Redis.KeyPrefix, logr)
		return repo, func() { closeQuietly(logr, repo) }, nil
	case config.TokenStorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewPostgresStateRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeQuietly(logr, db)
			return nil, nil, err
		}
		return repo, func() { closeQuietly(logr, db) }, nil
	default:
		return repository.NewFileStateRepository(cfg.Token.FilePath), func() {}, nil
	}
}

func closeQuietly(logr *zap.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logr.Warn("close failed", zap.Error(err))
	}
}
