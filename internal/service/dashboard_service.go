package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

const (
	msgZonesFailed      = "failed to load zones"
	msgIndicatorsFailed = "failed to load indicators"
	msgStatsFailed      = "failed to load statistics"
	msgIngestFailed     = "failed to ingest external data"
	msgIngestRunning    = "ingesting external data..."
	msgFiltersReset     = "filters reset"
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	// ReloadDelay postpones the indicator reload after a successful ingestion.
	// Zero reloads before IngestExternalData returns.
	ReloadDelay time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Session  sessionGateway
	Filters  *FilterStore
	Renderer Renderer
	Logger   *zap.Logger
	Now      func() time.Time
	Config   DashboardServiceConfig
}

// DashboardService loads the dashboard and stats data and runs the ingestion
// action. Concurrent loads of the same resource are not cancelled: each one
// renders when it resolves, so the last response wins.
type DashboardService struct {
	session  sessionGateway
	filters  *FilterStore
	renderer Renderer
	logger   *zap.Logger
	cfg      DashboardServiceConfig

	statsMu    sync.RWMutex
	statsRange models.StatsRange

	ingestMu sync.Mutex
	pending  sync.WaitGroup
}

// NewDashboardService constructs the service.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = NopRenderer{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	filters := params.Filters
	if filters == nil {
		filters = NewFilterStore(DefaultLimit, now)
	}
	return &DashboardService{
		session:    params.Session,
		filters:    filters,
		renderer:   renderer,
		logger:     logger,
		cfg:        params.Config,
		statsRange: DefaultStatsRange(now()),
	}
}

// Filters exposes the filter store the dashboard reads from.
func (s *DashboardService) Filters() *FilterStore {
	return s.filters
}

// FetchZones returns every zone.
func (s *DashboardService) FetchZones(ctx context.Context) ([]models.Zone, error) {
	var zones []models.Zone
	if err := s.session.Request(ctx, httpclient.Request{Method: http.MethodGet, Path: "/zones/"}, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// FetchIndicators queries indicators for the given filters.
func (s *DashboardService) FetchIndicators(ctx context.Context, filter models.FilterState) ([]models.Indicator, error) {
	var indicators []models.Indicator
	req := httpclient.Request{
		Method: http.MethodGet,
		Path:   "/indicators/",
		Query:  BuildIndicatorQuery(filter),
	}
	if err := s.session.Request(ctx, req, &indicators); err != nil {
		return nil, err
	}
	return indicators, nil
}

// FetchAirStats queries the per-zone air quality averages for a range.
func (s *DashboardService) FetchAirStats(ctx context.Context, r models.StatsRange) ([]models.AirStat, error) {
	var stats []models.AirStat
	req := httpclient.Request{
		Method: http.MethodGet,
		Path:   "/stats/air/averages",
		Query:  BuildStatsQuery(r),
	}
	if err := s.session.Request(ctx, req, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// LoadZones fetches and renders the zone list used as filter options.
func (s *DashboardService) LoadZones(ctx context.Context) error {
	s.renderer.SetLoading(models.SectionZones, true)
	defer s.renderer.SetLoading(models.SectionZones, false)

	zones, err := s.FetchZones(ctx)
	if err != nil {
		reportError(s.logger, s.renderer, err, msgZonesFailed)
		return err
	}
	s.logger.Debug("zones loaded", zap.Int("count", len(zones)))
	s.renderer.RenderZones(zones)
	return nil
}

// LoadIndicators fetches and renders indicators for the current filters.
func (s *DashboardService) LoadIndicators(ctx context.Context) error {
	s.renderer.SetLoading(models.SectionIndicators, true)
	defer s.renderer.SetLoading(models.SectionIndicators, false)

	filter := s.filters.Snapshot()
	indicators, err := s.FetchIndicators(ctx, filter)
	if err != nil {
		reportError(s.logger, s.renderer, err, msgIndicatorsFailed)
		return err
	}
	s.logger.Debug("indicators loaded", zap.Int("count", len(indicators)), zap.String("query", BuildIndicatorQuery(filter).Encode()))
	s.renderer.RenderIndicators(indicators)
	return nil
}

// LoadAirStats fetches and renders the stats tab for the current stats range.
func (s *DashboardService) LoadAirStats(ctx context.Context) error {
	s.renderer.SetLoading(models.SectionStats, true)
	defer s.renderer.SetLoading(models.SectionStats, false)

	stats, err := s.FetchAirStats(ctx, s.StatsRange())
	if err != nil {
		reportError(s.logger, s.renderer, err, msgStatsFailed)
		return err
	}
	s.renderer.RenderAirStats(stats)
	return nil
}

// SelectQuickPeriod sets both dates from a named period and reloads.
func (s *DashboardService) SelectQuickPeriod(ctx context.Context, period models.QuickPeriod) error {
	if _, err := s.filters.SelectQuickPeriod(period); err != nil {
		reportError(s.logger, s.renderer, err, msgIndicatorsFailed)
		return err
	}
	return s.LoadIndicators(ctx)
}

// SetStartDate edits the start date by hand and reloads.
func (s *DashboardService) SetStartDate(ctx context.Context, raw string) error {
	if _, err := s.filters.SetStartDate(raw); err != nil {
		reportError(s.logger, s.renderer, err, msgIndicatorsFailed)
		return err
	}
	return s.LoadIndicators(ctx)
}

// SetEndDate edits the end date by hand and reloads.
func (s *DashboardService) SetEndDate(ctx context.Context, raw string) error {
	if _, err := s.filters.SetEndDate(raw); err != nil {
		reportError(s.logger, s.renderer, err, msgIndicatorsFailed)
		return err
	}
	return s.LoadIndicators(ctx)
}

// ApplyFilters changes type, zone or limit and reloads.
func (s *DashboardService) ApplyFilters(ctx context.Context, update FilterUpdate) error {
	if _, err := s.filters.Apply(update); err != nil {
		reportError(s.logger, s.renderer, err, msgIndicatorsFailed)
		return err
	}
	return s.LoadIndicators(ctx)
}

// ResetFilters restores the default filters and reloads.
func (s *DashboardService) ResetFilters(ctx context.Context) error {
	s.filters.Reset()
	notify(s.renderer, models.MessageInfo, msgFiltersReset)
	return s.LoadIndicators(ctx)
}

// StatsRange returns the stats tab range.
func (s *DashboardService) StatsRange() models.StatsRange {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.statsRange
}

// SetStatsRange replaces the stats range without loading.
func (s *DashboardService) SetStatsRange(start, end string) error {
	from, err := normalizeDate(start)
	if err != nil {
		return err
	}
	to, err := normalizeDate(end)
	if err != nil {
		return err
	}

	s.statsMu.Lock()
	s.statsRange = models.StatsRange{StartDate: from, EndDate: to}
	s.statsMu.Unlock()
	return nil
}

// ApplyStatsRange replaces the stats range and reloads the stats.
func (s *DashboardService) ApplyStatsRange(ctx context.Context, start, end string) error {
	if err := s.SetStatsRange(start, end); err != nil {
		reportError(s.logger, s.renderer, err, msgStatsFailed)
		return err
	}
	return s.LoadAirStats(ctx)
}

// IngestExternalData asks the backend to pull the external feeds. Only one
// ingestion runs at a time; a second call while one is in flight fails with
// ErrBusy without reaching the network.
func (s *DashboardService) IngestExternalData(ctx context.Context) (*models.IngestionResult, error) {
	if !s.ingestMu.TryLock() {
		reportError(s.logger, s.renderer, appErrors.ErrBusy, msgIngestFailed)
		return nil, appErrors.ErrBusy
	}
	defer s.ingestMu.Unlock()

	s.renderer.SetActionEnabled(models.ActionIngest, false)
	defer s.renderer.SetActionEnabled(models.ActionIngest, true)
	s.renderer.ShowMessage(models.Message{Level: models.MessageInfo, Text: msgIngestRunning, Transient: true})

	var result models.IngestionResult
	req := httpclient.Request{Method: http.MethodPost, Path: "/indicators/ingest/external-data"}
	if err := s.session.Request(ctx, req, &result); err != nil {
		reportError(s.logger, s.renderer, err, msgIngestFailed)
		return nil, err
	}
	if !result.Success {
		detail := result.Detail
		if detail == "" {
			detail = result.Message
		}
		err := appErrors.WithDetail(appErrors.ErrServerRejected, 0, detail)
		reportError(s.logger, s.renderer, err, msgIngestFailed)
		return &result, err
	}

	s.logger.Info("external data ingested",
		zap.Int("weather", result.Details.WeatherData),
		zap.Int("air_quality", result.Details.AirQualityData),
		zap.Int("energy", result.Details.EnergyData),
		zap.Int("total", result.Details.Total),
	)
	s.renderer.RenderIngestion(result)
	notify(s.renderer, models.MessageSuccess, fmt.Sprintf("%d records ingested", result.Details.Total))
	s.scheduleReload(ctx)
	return &result, nil
}

// Wait blocks until delayed reloads have finished.
func (s *DashboardService) Wait() {
	s.pending.Wait()
}

func (s *DashboardService) scheduleReload(ctx context.Context) {
	if s.cfg.ReloadDelay <= 0 {
		_ = s.LoadIndicators(ctx)
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	time.AfterFunc(s.cfg.ReloadDelay, func() {
		defer s.pending.Done()
		_ = s.LoadIndicators(ctx)
	})
}
