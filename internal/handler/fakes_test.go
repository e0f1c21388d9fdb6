package handler

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/internal/service"
	"github.com/noah-isme/ecotrack-console/pkg/export"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

type fakeSessionSrv struct {
	mu       sync.Mutex
	login    *dto.LoginRequest
	register *dto.RegisterRequest
	loggedIn bool
	logouts  int
	err      error
}

func (f *fakeSessionSrv) Login(_ context.Context, req dto.LoginRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.login = &req
	if f.err != nil {
		return nil, f.err
	}
	f.loggedIn = true
	return &models.User{ID: 1, Email: req.Email, Role: models.RoleAdmin}, nil
}

func (f *fakeSessionSrv) Register(_ context.Context, req dto.RegisterRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.register = &req
	return &models.User{ID: 2, Email: req.Email}, f.err
}

func (f *fakeSessionSrv) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.loggedIn = false
}

func (f *fakeSessionSrv) Current() models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return models.Session{}
	}
	return models.Session{Token: "tok", CurrentUser: &models.User{ID: 1, Email: "admin@example.com", Role: models.RoleAdmin}}
}

type fakeDashboardSrv struct {
	mu         sync.Mutex
	filters    *service.FilterStore
	stats      models.StatsRange
	periods    []models.QuickPeriod
	starts     []string
	ends       []string
	updates    []service.FilterUpdate
	resets     int
	ingests    int
	statsCalls int
	applied    int
}

func newFakeDashboard() *fakeDashboardSrv {
	return &fakeDashboardSrv{
		filters: service.NewFilterStore(25, fixedNow),
		stats:   models.StatsRange{StartDate: "2024-01-01", EndDate: "2024-12-31"},
	}
}

func (f *fakeDashboardSrv) Filters() *service.FilterStore { return f.filters }

func (f *fakeDashboardSrv) SelectQuickPeriod(_ context.Context, p models.QuickPeriod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periods = append(f.periods, p)
	return nil
}

func (f *fakeDashboardSrv) SetStartDate(_ context.Context, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, raw)
	return nil
}

func (f *fakeDashboardSrv) SetEndDate(_ context.Context, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, raw)
	return nil
}

func (f *fakeDashboardSrv) ApplyFilters(_ context.Context, u service.FilterUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeDashboardSrv) ResetFilters(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeDashboardSrv) StatsRange() models.StatsRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeDashboardSrv) SetStatsRange(start, end string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	f.stats = models.StatsRange{StartDate: start, EndDate: end}
	return nil
}

func (f *fakeDashboardSrv) ApplyStatsRange(_ context.Context, start, end string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	f.stats = models.StatsRange{StartDate: start, EndDate: end}
	return nil
}

func (f *fakeDashboardSrv) IngestExternalData(context.Context) (*models.IngestionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests++
	return &models.IngestionResult{Success: true}, nil
}

type fakeTabSrv struct {
	mu        sync.Mutex
	activated []models.Tab
	async     []models.Tab
	refreshes int
	err       error
	done      chan models.Tab
}

func (f *fakeTabSrv) Activate(_ context.Context, tab models.Tab) error {
	f.mu.Lock()
	f.activated = append(f.activated, tab)
	err := f.err
	done := f.done
	f.mu.Unlock()
	if done != nil {
		done <- tab
	}
	return err
}

func (f *fakeTabSrv) ActivateAsync(tab models.Tab) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.async = append(f.async, tab)
	return nil
}

func (f *fakeTabSrv) Active() models.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.activated) == 0 {
		return models.TabNone
	}
	return f.activated[len(f.activated)-1]
}

func (f *fakeTabSrv) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return nil
}

func (f *fakeTabSrv) tabs() []models.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tab(nil), f.activated...)
}

type fakeAdminSrv struct {
	mu        sync.Mutex
	created   *dto.CreateUserRequest
	updatedID int
	updated   *dto.UpdateUserRequest
	deletedID int
	confirmed bool
	edited    int
	opened    bool
	closed    bool
	formErr   error
}

func (f *fakeAdminSrv) Create(_ context.Context, req dto.CreateUserRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = &req
	return &models.User{ID: 9, Email: req.Email}, nil
}

func (f *fakeAdminSrv) Update(_ context.Context, id int, req dto.UpdateUserRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedID = id
	f.updated = &req
	return &models.User{ID: id}, nil
}

func (f *fakeAdminSrv) Delete(_ context.Context, id int, confirmer service.Confirmer) error {
	ok := confirmer != nil && confirmer.Confirm("delete this user?")
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.deletedID = id
		f.confirmed = true
	}
	return nil
}

func (f *fakeAdminSrv) OpenCreate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.formErr != nil {
		return f.formErr
	}
	f.opened = true
	return nil
}

func (f *fakeAdminSrv) OpenEdit(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.formErr != nil {
		return f.formErr
	}
	f.edited = id
	return nil
}

func (f *fakeAdminSrv) CloseForm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.formErr != nil {
		return f.formErr
	}
	f.closed = true
	return nil
}

type fakeExportSrv struct {
	kind   service.ExportKind
	format export.Format
}

func (f *fakeExportSrv) Export(_ context.Context, kind service.ExportKind, format export.Format) (*service.ExportResult, error) {
	f.kind = kind
	f.format = format
	return &service.ExportResult{
		Filename: "ecotrack-" + string(kind) + "-20240310-120000" + format.Extension(),
		Format:   format,
		Rows:     2,
		Data:     []byte("a,b\n1,2\n"),
	}, nil
}

type recordingRenderer struct {
	mu       sync.Mutex
	messages []models.Message
	statuses []models.Tab
}

func (r *recordingRenderer) ShowMessage(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingRenderer) RenderStatus(_ models.Session, tab models.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, tab)
}

func (r *recordingRenderer) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Text)
	}
	return out
}

type fixture struct {
	session   *fakeSessionSrv
	dashboard *fakeDashboardSrv
	tabs      *fakeTabSrv
	admin     *fakeAdminSrv
	export    *fakeExportSrv
	renderer  *recordingRenderer
}

func newFixture() *fixture {
	return &fixture{
		session:   &fakeSessionSrv{},
		dashboard: newFakeDashboard(),
		tabs:      &fakeTabSrv{},
		admin:     &fakeAdminSrv{},
		export:    &fakeExportSrv{},
		renderer:  &recordingRenderer{},
	}
}

func (f *fixture) deps() CommandDeps {
	return CommandDeps{
		Session:   f.session,
		Dashboard: f.dashboard,
		Tabs:      f.tabs,
		Admin:     f.admin,
		Export:    f.export,
		Renderer:  f.renderer,
	}
}
