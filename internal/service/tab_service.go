package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/jobs"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

type sessionReader interface {
	Current() models.Session
}

type dashboardLoader interface {
	LoadZones(ctx context.Context) error
	LoadIndicators(ctx context.Context) error
	LoadAirStats(ctx context.Context) error
}

type userListLoader interface {
	Load(ctx context.Context) error
}

type taskDispatcher interface {
	Enqueue(task jobs.Task) error
}

// TabService switches between the mutually exclusive console tabs and loads
// each tab's data when it becomes active.
type TabService struct {
	session    sessionReader
	dashboard  dashboardLoader
	admin      userListLoader
	renderer   Renderer
	dispatcher taskDispatcher
	logger     *zap.Logger

	mu     sync.RWMutex
	active models.Tab
	owner  string
}

// NewTabService constructs a TabService. dispatcher may be nil when
// ActivateAsync is not used.
func NewTabService(session sessionReader, dashboard dashboardLoader, admin userListLoader, renderer Renderer, dispatcher taskDispatcher, logger *zap.Logger) *TabService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &TabService{
		session:    session,
		dashboard:  dashboard,
		admin:      admin,
		renderer:   renderer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Active returns the active tab. It is TabNone before the first activation
// and again once the session that activated it has ended.
func (s *TabService) Active() models.Tab {
	token := s.session.Current().Token
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" || token != s.owner {
		return models.TabNone
	}
	return s.active
}

// Activate makes tab the active one and loads its data. The admin tab is
// refused locally for non-admin sessions and the active tab is kept.
func (s *TabService) Activate(ctx context.Context, tab models.Tab) error {
	switch tab {
	case models.TabDashboard, models.TabStats, models.TabAdmin:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown tab %q", tab))
	}

	current := s.session.Current()
	if !current.Authenticated() {
		reportError(s.logger, s.renderer, appErrors.ErrNoSession, "cannot open "+string(tab)+" tab")
		return appErrors.ErrNoSession
	}
	if tab == models.TabAdmin && !current.IsAdmin() {
		s.logger.Info("admin tab refused", zap.String("role", roleOf(current)))
		reportError(s.logger, s.renderer, appErrors.ErrPermissionDenied, "cannot open "+string(tab)+" tab")
		return appErrors.ErrPermissionDenied
	}

	s.mu.Lock()
	s.active = tab
	s.owner = current.Token
	s.mu.Unlock()
	s.renderer.ShowTab(tab)

	switch tab {
	case models.TabDashboard:
		zonesErr := s.dashboard.LoadZones(ctx)
		if appErrors.HasCode(zonesErr, appErrors.CodeAuthorizationExpired) {
			return zonesErr
		}
		return errors.Join(zonesErr, s.dashboard.LoadIndicators(ctx))
	case models.TabStats:
		return s.dashboard.LoadAirStats(ctx)
	default:
		return s.admin.Load(ctx)
	}
}

// ActivateAsync hands the activation to the dispatcher and returns at once.
func (s *TabService) ActivateAsync(tab models.Tab) error {
	if s.dispatcher == nil {
		return appErrors.Clone(appErrors.ErrInternal, "no dispatcher configured")
	}
	return s.dispatcher.Enqueue(jobs.Task{
		Name: "activate:" + string(tab),
		Run: func(ctx context.Context) error {
			return s.Activate(ctx, tab)
		},
	})
}

// Refresh reloads the active tab, defaulting to the dashboard.
func (s *TabService) Refresh(ctx context.Context) error {
	tab := s.Active()
	if tab == models.TabNone {
		tab = models.TabDashboard
	}
	return s.Activate(ctx, tab)
}

func roleOf(s models.Session) string {
	if s.CurrentUser == nil {
		return ""
	}
	return string(s.CurrentUser.Role)
}
