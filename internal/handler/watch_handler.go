package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ecotrack-console/internal/models"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

type watcher interface {
	Start(ctx context.Context) error
	Stop()
}

// WatchHandler keeps a tab refreshed on a schedule and optionally serves the
// status endpoints next to it.
type WatchHandler struct {
	tabs   tabService
	watch  watcher
	status http.Handler
	logger *zap.Logger
}

// NewWatchHandler constructs a watch handler. status may be nil.
func NewWatchHandler(tabs tabService, watch watcher, status http.Handler, logger *zap.Logger) *WatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchHandler{tabs: tabs, watch: watch, status: status, logger: logger}
}

// Run shows tab, then refreshes it until ctx is done. addr enables the status
// server when non-empty.
func (h *WatchHandler) Run(ctx context.Context, tab models.Tab, addr string) error {
	if err := h.tabs.Activate(ctx, tab); err != nil {
		if appErrors.HasCode(err, appErrors.CodeNoSession) ||
			appErrors.HasCode(err, appErrors.CodePermissionDenied) ||
			appErrors.HasCode(err, appErrors.CodeAuthorizationExpired) {
			return err
		}
		h.logger.Warn("initial load failed, watching anyway", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := h.watch.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		h.watch.Stop()
		return nil
	})

	if addr != "" && h.status != nil {
		srv := &http.Server{
			Addr:              addr,
			Handler:           h.status,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			h.logger.Info("status server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
