package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

const testPassword = "secret"

type cannedResponse struct {
	status int
	body   interface{}
}

// fakeAPI is an in-memory EcoTrack backend served by gin.
type fakeAPI struct {
	mu        sync.Mutex
	users     []models.User
	nextID    int
	meBroken  bool
	overrides map[string]cannedResponse
	hits      map[string]int
	queries   map[string]string
	auth      map[string]string
	bodies    map[string]map[string]interface{}
	ingest    models.IngestionResult
	gate      chan struct{}
	entered   chan struct{}
	tokens    map[string]string
}

func newFakeAPI(t *testing.T, users ...models.User) (*fakeAPI, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fakeAPI{
		users:     users,
		nextID:    100,
		overrides: map[string]cannedResponse{},
		hits:      map[string]int{},
		queries:   map[string]string{},
		auth:      map[string]string{},
		bodies:    map[string]map[string]interface{}{},
		tokens:    map[string]string{},
		ingest: models.IngestionResult{
			Success: true,
			Message: "ok",
			Details: models.IngestionDetails{WeatherData: 3, AirQualityData: 2, EnergyData: 1, Total: 6},
		},
	}

	r := gin.New()
	r.Use(f.record)
	r.POST("/auth/login", f.login)
	r.POST("/auth/register", f.register)

	authed := r.Group("/", f.authenticate)
	authed.GET("/admin/users/me", f.me)
	authed.GET("/admin/users/", f.listUsers)
	authed.PUT("/admin/users/:id", f.updateUser)
	authed.DELETE("/admin/users/:id", f.deleteUser)
	authed.GET("/zones/", func(c *gin.Context) {
		c.JSON(http.StatusOK, []models.Zone{{ID: 5, Name: "Centre", PostalCode: "75001"}, {ID: 6, Name: "Nord", PostalCode: "75018"}})
	})
	authed.GET("/indicators/", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 1, "type": models.IndicatorPM25, "value": 12.5, "unit": "µg/m³", "zone_id": 5, "source_id": 1, "user_id": 1, "timestamp": "2024-03-10T12:00:00"},
			{"id": 2, "type": models.IndicatorCO2, "value": 410, "unit": "ppm", "zone_id": 9, "source_id": 1, "user_id": 1, "timestamp": "2024-03-10T13:00:00"},
		})
	})
	authed.GET("/stats/air/averages", func(c *gin.Context) {
		c.JSON(http.StatusOK, []models.AirStat{{ZoneName: "Centre", AverageQuality: 17.25, DataPoints: 42}})
	})
	authed.POST("/indicators/ingest/external-data", f.runIngest)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func routeKey(method, path string) string {
	return method + " " + path
}

func (f *fakeAPI) record(c *gin.Context) {
	k := routeKey(c.Request.Method, c.Request.URL.Path)
	var body map[string]interface{}
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&body)
	}

	f.mu.Lock()
	f.hits[k]++
	f.queries[k] = c.Request.URL.RawQuery
	f.auth[k] = c.GetHeader("Authorization")
	if body != nil {
		f.bodies[k] = body
	}
	override, ok := f.overrides[k]
	f.mu.Unlock()

	if ok {
		c.AbortWithStatusJSON(override.status, override.body)
		return
	}
	if body != nil {
		c.Set("body", body)
	}
	c.Next()
}

func (f *fakeAPI) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	f.mu.Lock()
	email, ok := f.tokens[header]
	f.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Set("email", email)
	c.Next()
}

func (f *fakeAPI) login(c *gin.Context) {
	body, _ := c.Get("body")
	payload, _ := body.(map[string]interface{})
	email, _ := payload["email"].(string)
	password, _ := payload["password"].(string)

	f.mu.Lock()
	user := models.FindUserByEmail(f.users, email)
	f.mu.Unlock()
	if user == nil || password != testPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email ou mot de passe incorrect"})
		return
	}
	token := f.issue(user.Email, time.Now().Add(time.Hour))
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (f *fakeAPI) issue(email string, exp time.Time) string {
	token := signToken(email, exp)
	f.mu.Lock()
	f.tokens["Bearer "+token] = email
	f.mu.Unlock()
	return token
}

func (f *fakeAPI) register(c *gin.Context) {
	body, _ := c.Get("body")
	payload, _ := body.(map[string]interface{})
	email, _ := payload["email"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	if models.FindUserByEmail(f.users, email) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email déjà enregistré"})
		return
	}
	fullName, _ := payload["full_name"].(string)
	role, _ := payload["role"].(string)
	active, _ := payload["is_active"].(bool)
	f.nextID++
	user := models.User{ID: f.nextID, Email: email, FullName: fullName, Role: models.Role(role), IsActive: active}
	f.users = append(f.users, user)
	c.JSON(http.StatusOK, user)
}

func (f *fakeAPI) me(c *gin.Context) {
	f.mu.Lock()
	broken := f.meBroken
	user := models.FindUserByEmail(f.users, c.GetString("email"))
	f.mu.Unlock()
	if broken || user == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"loc": []string{"path", "user_id"}}}})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (f *fakeAPI) listUsers(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller := models.FindUserByEmail(f.users, c.GetString("email"))
	if !caller.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Droits insuffisants"})
		return
	}
	c.JSON(http.StatusOK, f.users)
}

func (f *fakeAPI) updateUser(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	body, _ := c.Get("body")
	payload, _ := body.(map[string]interface{})

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		if v, ok := payload["full_name"].(string); ok {
			f.users[i].FullName = v
		}
		if v, ok := payload["role"].(string); ok {
			f.users[i].Role = models.Role(v)
		}
		if v, ok := payload["is_active"].(bool); ok {
			f.users[i].IsActive = v
		}
		c.JSON(http.StatusOK, f.users[i])
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Utilisateur non trouvé"})
}

func (f *fakeAPI) deleteUser(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Utilisateur supprimé avec succès"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Utilisateur non trouvé"})
}

func (f *fakeAPI) runIngest(c *gin.Context) {
	f.mu.Lock()
	gate, entered, result := f.gate, f.entered, f.ingest
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	c.JSON(http.StatusOK, result)
}

func (f *fakeAPI) configure(fn func(api *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) override(method, path string, status int, body interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[routeKey(method, path)] = cannedResponse{status: status, body: body}
}

func (f *fakeAPI) clearOverride(method, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.overrides, routeKey(method, path))
}

func (f *fakeAPI) hitCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[routeKey(method, path)]
}

func (f *fakeAPI) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

func (f *fakeAPI) query(method, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[routeKey(method, path)]
}

func (f *fakeAPI) authHeader(method, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth[routeKey(method, path)]
}

func (f *fakeAPI) body(method, path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[routeKey(method, path)]
}

func signToken(email string, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": email, "exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Load(_ context.Context, k string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[k]
	if !ok {
		return "", appErrors.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Save(_ context.Context, k, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[k] = v
	return nil
}

func (m *memoryStore) Delete(_ context.Context, k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, k)
	return nil
}

func (m *memoryStore) get(k string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[k]
	return v, ok
}

type loadingEvent struct {
	section models.Section
	loading bool
}

type recordingRenderer struct {
	mu         sync.Mutex
	messages   []models.Message
	visibility []models.Visibility
	tabs       []models.Tab
	loading    []loadingEvent
	actions    map[models.Action][]bool
	zones      [][]models.Zone
	indicators [][]models.Indicator
	stats      [][]models.AirStat
	users      [][]models.User
	forms      []models.AdminFormState
	ingestions []models.IngestionResult
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{actions: map[models.Action][]bool{}}
}

func (r *recordingRenderer) ShowMessage(m models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recordingRenderer) SetVisibility(v models.Visibility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibility = append(r.visibility, v)
}

func (r *recordingRenderer) ShowTab(tab models.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs = append(r.tabs, tab)
}

func (r *recordingRenderer) SetLoading(section models.Section, loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, loadingEvent{section: section, loading: loading})
}

func (r *recordingRenderer) SetActionEnabled(action models.Action, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action] = append(r.actions[action], enabled)
}

func (r *recordingRenderer) RenderZones(z []models.Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones = append(r.zones, z)
}

func (r *recordingRenderer) RenderIndicators(i []models.Indicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indicators = append(r.indicators, i)
}

func (r *recordingRenderer) RenderAirStats(s []models.AirStat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, s)
}

func (r *recordingRenderer) RenderUsers(u []models.User, form models.AdminFormState, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
	r.forms = append(r.forms, form)
}

func (r *recordingRenderer) RenderIngestion(res models.IngestionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestions = append(r.ingestions, res)
}

func (r *recordingRenderer) lastMessage() models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return models.Message{}
	}
	return r.messages[len(r.messages)-1]
}

func (r *recordingRenderer) lastVisibility() models.Visibility {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.visibility) == 0 {
		return models.Visibility{}
	}
	return r.visibility[len(r.visibility)-1]
}

func (r *recordingRenderer) loadingFor(section models.Section) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bool
	for _, e := range r.loading {
		if e.section == section {
			out = append(out, e.loading)
		}
	}
	return out
}

var (
	adminUser = models.User{ID: 1, Email: "admin@ecotrack.test", FullName: "Ada Admin", Role: models.RoleAdmin, IsActive: true}
	plainUser = models.User{ID: 2, Email: "user@ecotrack.test", FullName: "Uma User", Role: models.RoleUser, IsActive: true}
)

// fixedNow is Sunday 2024-03-10, noon UTC.
func fixedNow() time.Time {
	return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	api      *fakeAPI
	server   *httptest.Server
	store    *memoryStore
	renderer *recordingRenderer
	metrics  *MetricsService
	session  *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api, srv := newFakeAPI(t, adminUser, plainUser)
	metrics := NewMetricsService()
	client := httpclient.New(httpclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Observer: metrics})
	store := newMemoryStore()
	renderer := newRecordingRenderer()
	session := NewSessionService(client, store, renderer, validator.New(), zap.NewNop(), metrics, SessionConfig{TokenKey: "ecotrack_token", Now: fixedNow})
	return &fixture{api: api, server: srv, store: store, renderer: renderer, metrics: metrics, session: session}
}

func (f *fixture) login(t *testing.T, user models.User) {
	t.Helper()
	_, err := f.session.Login(context.Background(), dto.LoginRequest{Email: user.Email, Password: testPassword})
	require.NoError(t, err, "login as %s", user.Email)
}
