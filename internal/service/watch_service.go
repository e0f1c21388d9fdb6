package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
)

type tabRefresher interface {
	Active() models.Tab
	Refresh(ctx context.Context) error
}

// WatchConfig tunes the scheduled refresh.
type WatchConfig struct {
	Schedule string
	// Timeout bounds a single refresh.
	Timeout time.Duration
}

// WatchService refreshes the active tab on a cron schedule.
type WatchService struct {
	tabs    tabRefresher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     WatchConfig

	mu   sync.Mutex
	cron *cron.Cron
}

// NewWatchService validates the schedule and builds the service.
func NewWatchService(tabs tabRefresher, metrics *MetricsService, logger *zap.Logger, cfg WatchConfig) (*WatchService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid watch schedule %q: %w", cfg.Schedule, err)
	}
	return &WatchService{tabs: tabs, metrics: metrics, logger: logger, cfg: cfg}, nil
}

// Start schedules refreshes until ctx is done or Stop is called.
func (s *WatchService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		_ = s.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("watch started", zap.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *WatchService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("watch stopped")
}

// Tick runs one refresh of the active tab.
func (s *WatchService) Tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	tab := s.tabs.Active()
	err := s.tabs.Refresh(ctx)
	s.metrics.RecordRefresh(tab, err)
	if err != nil {
		s.logger.Warn("scheduled refresh failed", zap.String("tab", string(tab)), zap.Error(err))
		return err
	}
	s.logger.Debug("scheduled refresh done", zap.String("tab", string(tab)))
	return nil
}
