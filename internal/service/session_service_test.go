package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

func TestLoginStoresTokenAndShowsAdminTab(t *testing.T) {
	f := newFixture(t)

	user, err := f.session.Login(context.Background(), dto.LoginRequest{Email: adminUser.Email, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, adminUser.ID, user.ID)

	token, ok := f.store.get("ecotrack_token")
	require.True(t, ok)
	current := f.session.Current()
	assert.Equal(t, token, current.Token)
	require.NotNil(t, current.CurrentUser)
	assert.Equal(t, models.RoleAdmin, current.CurrentUser.Role)

	vis := f.renderer.lastVisibility()
	assert.True(t, vis.Authenticated)
	assert.True(t, vis.AdminTab)
	assert.Equal(t, models.MessageSuccess, f.renderer.lastMessage().Level)
	assert.Empty(t, f.api.authHeader(http.MethodPost, "/auth/login"))
	assert.Equal(t, "Bearer "+token, f.api.authHeader(http.MethodGet, "/admin/users/me"))
}

func TestLoginAsUserHidesAdminTab(t *testing.T) {
	f := newFixture(t)
	f.login(t, plainUser)

	vis := f.renderer.lastVisibility()
	assert.True(t, vis.Authenticated)
	assert.False(t, vis.AdminTab)
	assert.False(t, f.session.Current().IsAdmin())
}

func TestLoginFallsBackToUserListMatchedBySubject(t *testing.T) {
	f := newFixture(t)
	f.api.configure(func(api *fakeAPI) { api.meBroken = true })

	f.login(t, adminUser)

	current := f.session.Current()
	require.NotNil(t, current.CurrentUser)
	assert.Equal(t, adminUser.ID, current.CurrentUser.ID)
	assert.True(t, current.IsAdmin())
	assert.Equal(t, 1, f.api.hitCount(http.MethodGet, "/admin/users/"))
}

func TestLoginDegradesToUnknownIdentity(t *testing.T) {
	f := newFixture(t)
	f.api.configure(func(api *fakeAPI) { api.meBroken = true })

	user, err := f.session.Login(context.Background(), dto.LoginRequest{Email: plainUser.Email, Password: testPassword})
	require.NoError(t, err)
	assert.False(t, user.Known())
	assert.Equal(t, plainUser.Email, user.Email)

	current := f.session.Current()
	assert.True(t, current.Authenticated())
	assert.False(t, current.IsAdmin())
	assert.False(t, f.renderer.lastVisibility().AdminTab)
}

func TestLoginValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Login(context.Background(), dto.LoginRequest{Email: "  ", Password: testPassword})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeValidation))

	_, err = f.session.Login(context.Background(), dto.LoginRequest{Email: adminUser.Email})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeValidation))

	assert.Zero(t, f.api.totalHits())
	assert.Equal(t, appErrors.ErrValidation.Message, f.renderer.lastMessage().Text)
}

func TestLoginRejectedSurfacesServerDetail(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Login(context.Background(), dto.LoginRequest{Email: adminUser.Email, Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidCredentials))
	assert.Equal(t, "Email ou mot de passe incorrect", f.renderer.lastMessage().Text)
	assert.False(t, f.session.Current().Authenticated())
	_, stored := f.store.get("ecotrack_token")
	assert.False(t, stored)
}

func TestRequestWithoutSessionSendsNothing(t *testing.T) {
	f := newFixture(t)

	err := f.session.Request(context.Background(), httpclient.Request{Path: "/zones/"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrNoSession)
	assert.Zero(t, f.api.totalHits())
}

func TestUnauthorizedFromAnyEndpointForcesLogout(t *testing.T) {
	for _, path := range []string{"/zones/", "/indicators/", "/stats/air/averages"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t)
			f.login(t, adminUser)
			f.api.override(http.MethodGet, path, http.StatusUnauthorized, map[string]string{"detail": "Token expired"})

			var out []interface{}
			err := f.session.Request(context.Background(), httpclient.Request{Method: http.MethodGet, Path: path}, &out)
			assert.ErrorIs(t, err, appErrors.ErrAuthorizationExpired)

			current := f.session.Current()
			assert.Empty(t, current.Token)
			assert.Nil(t, current.CurrentUser)
			_, stored := f.store.get("ecotrack_token")
			assert.False(t, stored)
			assert.Equal(t, models.Visibility{}, f.renderer.lastVisibility())
			assert.Equal(t, appErrors.ErrAuthorizationExpired.Message, f.renderer.lastMessage().Text)
			assert.Equal(t, uint64(1), f.metrics.Snapshot().ForcedLogouts)
		})
	}
}

func TestForbiddenKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, plainUser)

	err := f.session.Request(context.Background(), httpclient.Request{Method: http.MethodGet, Path: "/admin/users/"}, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.CodePermissionDenied))
	assert.Equal(t, "Droits insuffisants", appErrors.UserMessage(err, "failed"))
	assert.True(t, f.session.Current().Authenticated())
}

func TestServerRejectionCarriesDetail(t *testing.T) {
	f := newFixture(t)
	f.login(t, adminUser)
	f.api.override(http.MethodGet, "/zones/", http.StatusInternalServerError, map[string]string{"detail": "database down"})

	err := f.session.Request(context.Background(), httpclient.Request{Method: http.MethodGet, Path: "/zones/"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeServerRejected))
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
	assert.Equal(t, "database down", appErrors.UserMessage(err, "failed to load zones"))
}

func TestInvalidJSONIsInvalidResponse(t *testing.T) {
	f := newFixture(t)
	f.login(t, adminUser)

	var wrongShape map[string]string
	err := f.session.Request(context.Background(), httpclient.Request{Method: http.MethodGet, Path: "/zones/"}, &wrongShape)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidResponse))
	assert.True(t, f.session.Current().Authenticated())
}

func TestLogoutClearsSessionAndStore(t *testing.T) {
	f := newFixture(t)
	f.login(t, adminUser)

	f.session.Logout(context.Background())

	assert.False(t, f.session.Current().Authenticated())
	_, stored := f.store.get("ecotrack_token")
	assert.False(t, stored)
	assert.Equal(t, models.Visibility{}, f.renderer.lastVisibility())
}

func TestRestoreReinstatesPersistedToken(t *testing.T) {
	f := newFixture(t)
	token := f.api.issue(adminUser.Email, fixedNow().Add(time.Hour))
	require.NoError(t, f.store.Save(context.Background(), "ecotrack_token", token))

	restored, err := f.session.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, restored)
	assert.True(t, f.session.Current().IsAdmin())
	assert.True(t, f.renderer.lastVisibility().AdminTab)
}

func TestRestoreDiscardsExpiredToken(t *testing.T) {
	f := newFixture(t)
	token := f.api.issue(adminUser.Email, fixedNow().Add(-time.Minute))
	require.NoError(t, f.store.Save(context.Background(), "ecotrack_token", token))

	restored, err := f.session.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Zero(t, f.api.totalHits())
	_, stored := f.store.get("ecotrack_token")
	assert.False(t, stored)
}

func TestRestoreRevokedTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), "ecotrack_token", signToken(adminUser.Email, fixedNow().Add(time.Hour))))

	restored, err := f.session.Restore(context.Background())
	assert.False(t, restored)
	assert.ErrorIs(t, err, appErrors.ErrAuthorizationExpired)
	assert.False(t, f.session.Current().Authenticated())
	_, stored := f.store.get("ecotrack_token")
	assert.False(t, stored)
}

func TestRestoreWithoutTokenIsNoop(t *testing.T) {
	f := newFixture(t)

	restored, err := f.session.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Zero(t, f.api.totalHits())
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	f := newFixture(t)

	user, err := f.session.Register(context.Background(), dto.RegisterRequest{FullName: "New Person", Email: "new@ecotrack.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "new@ecotrack.test", user.Email)
	assert.False(t, f.session.Current().Authenticated())
	assert.Empty(t, f.api.authHeader(http.MethodPost, "/auth/register"))
}

func TestRegisterDuplicateShowsDetail(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Register(context.Background(), dto.RegisterRequest{FullName: "Ada", Email: adminUser.Email, Password: "pw"})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeServerRejected))
	assert.Equal(t, "Email déjà enregistré", f.renderer.lastMessage().Text)
}

func TestTransportFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.login(t, adminUser)
	f.server.Close()

	err := f.session.Request(context.Background(), httpclient.Request{Method: http.MethodGet, Path: "/zones/"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeTransport))
	assert.True(t, f.session.Current().Authenticated())
}

func TestLoginTransportFailureShowsTransientMessage(t *testing.T) {
	renderer := newRecordingRenderer()
	client := httpclient.New(httpclient.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	session := NewSessionService(client, newMemoryStore(), renderer, validator.New(), zap.NewNop(), nil, SessionConfig{})

	_, err := session.Login(context.Background(), dto.LoginRequest{Email: adminUser.Email, Password: testPassword})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeTransport))
	msg := renderer.lastMessage()
	assert.True(t, msg.Transient)
	assert.Equal(t, models.MessageError, msg.Level)
}
