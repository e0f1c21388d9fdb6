package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

const (
	msgLoginSuccess    = "login successful"
	msgLoginFailed     = "login failed"
	msgLoggedOut       = "logged out"
	msgRegisterSuccess = "account created, you can now log in"
	msgRegisterFailed  = "failed to create account"
)

type apiDoer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

type tokenStore interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// sessionGateway is what the data services need from the session.
type sessionGateway interface {
	Current() models.Session
	Request(ctx context.Context, req httpclient.Request, out interface{}) error
}

// SessionConfig tunes SessionService.
type SessionConfig struct {
	// TokenKey names the persisted token entry.
	TokenKey string
	Now      func() time.Time
}

// SessionService owns the bearer token and the resolved identity. It is the
// only writer of the session and the single place that reacts to 401s.
type SessionService struct {
	api       apiDoer
	store     tokenStore
	renderer  Renderer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    SessionConfig

	mu      sync.RWMutex
	session models.Session
}

// NewSessionService constructs a SessionService.
func NewSessionService(api apiDoer, store tokenStore, renderer Renderer, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if cfg.TokenKey == "" {
		cfg.TokenKey = "ecotrack_token"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionService{
		api:       api,
		store:     store,
		renderer:  renderer,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    cfg,
	}
}

// Current returns a copy of the session.
func (s *SessionService) Current() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := models.Session{Token: s.session.Token}
	if s.session.CurrentUser != nil {
		u := *s.session.CurrentUser
		current.CurrentUser = &u
	}
	return current
}

// Login exchanges credentials for a token, persists it and resolves the identity.
func (s *SessionService) Login(ctx context.Context, req dto.LoginRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		verr := appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, appErrors.ErrValidation.Message)
		reportError(s.logger, s.renderer, verr, msgLoginFailed)
		return nil, verr
	}

	resp, err := s.api.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/login", Body: req})
	if err != nil {
		reportError(s.logger, s.renderer, err, msgLoginFailed)
		return nil, err
	}
	if !resp.OK() {
		lerr := appErrors.WithDetail(appErrors.ErrInvalidCredentials, resp.Status, resp.Detail())
		reportError(s.logger, s.renderer, lerr, msgLoginFailed)
		return nil, lerr
	}

	var token models.TokenResponse
	if err := resp.Decode(&token); err != nil || token.AccessToken == "" {
		ierr := appErrors.Wrap(err, appErrors.CodeInvalidResponse, appErrors.ErrInvalidResponse.Status, appErrors.ErrInvalidResponse.Message)
		reportError(s.logger, s.renderer, ierr, msgLoginFailed)
		return nil, ierr
	}

	if err := s.store.Save(ctx, s.config.TokenKey, token.AccessToken); err != nil {
		s.logger.Warn("failed to persist session token", zap.Error(err))
	}

	s.mu.Lock()
	s.session = models.Session{Token: token.AccessToken}
	s.mu.Unlock()

	user, err := s.establish(ctx, token.AccessToken, req.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("logged in", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	notify(s.renderer, models.MessageSuccess, msgLoginSuccess)
	return user, nil
}

// Register creates an account without authenticating.
func (s *SessionService) Register(ctx context.Context, req dto.RegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		verr := appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, appErrors.ErrValidation.Message)
		reportError(s.logger, s.renderer, verr, msgRegisterFailed)
		return nil, verr
	}

	resp, err := s.api.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/register", Body: req})
	if err != nil {
		reportError(s.logger, s.renderer, err, msgRegisterFailed)
		return nil, err
	}
	if !resp.OK() {
		rerr := appErrors.WithDetail(appErrors.ErrServerRejected, resp.Status, resp.Detail())
		reportError(s.logger, s.renderer, rerr, msgRegisterFailed)
		return nil, rerr
	}

	var created models.User
	if err := resp.Decode(&created); err != nil {
		s.logger.Warn("unreadable register response", zap.Error(err))
	}
	notify(s.renderer, models.MessageSuccess, msgRegisterSuccess)
	return &created, nil
}

// Logout discards the session locally and in the token store.
func (s *SessionService) Logout(ctx context.Context) {
	s.clear(ctx)
	s.logger.Info("logged out")
	notify(s.renderer, models.MessageSuccess, msgLoggedOut)
}

// Restore reinstates a persisted token from a previous run. Tokens whose exp
// claim has passed are discarded without a network call.
func (s *SessionService) Restore(ctx context.Context) (bool, error) {
	token, err := s.store.Load(ctx, s.config.TokenKey)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return false, nil
		}
		s.logger.Warn("failed to load session token", zap.Error(err))
		return false, err
	}
	if token == "" {
		return false, nil
	}

	if s.expired(token) {
		s.logger.Info("persisted session token expired")
		if err := s.store.Delete(ctx, s.config.TokenKey); err != nil {
			s.logger.Warn("failed to drop expired token", zap.Error(err))
		}
		return false, nil
	}

	s.mu.Lock()
	s.session = models.Session{Token: token}
	s.mu.Unlock()

	if _, err := s.establish(ctx, token, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Request performs an authenticated call and decodes a 2xx JSON body into out.
// A 401 ends the session before returning.
func (s *SessionService) Request(ctx context.Context, req httpclient.Request, out interface{}) error {
	token := s.token()
	if token == "" {
		return appErrors.ErrNoSession
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", "Bearer "+token)
	req.Header = header

	resp, err := s.api.Do(ctx, req)
	if err != nil {
		return err
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		s.expire(ctx)
		return appErrors.ErrAuthorizationExpired
	case resp.Status == http.StatusForbidden:
		return appErrors.WithDetail(appErrors.ErrPermissionDenied, resp.Status, resp.Detail())
	case !resp.OK():
		return appErrors.WithDetail(appErrors.ErrServerRejected, resp.Status, resp.Detail())
	}

	if out != nil {
		if err := resp.Decode(out); err != nil {
			return appErrors.Wrap(err, appErrors.CodeInvalidResponse, appErrors.ErrInvalidResponse.Status, appErrors.ErrInvalidResponse.Message)
		}
	}
	return nil
}

// establish resolves the identity for token and publishes the visibility. It
// fails only when the session ended while resolving.
func (s *SessionService) establish(ctx context.Context, token, email string) (*models.User, error) {
	user, err := s.resolveIdentity(ctx, token, email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Token != token {
		return nil, appErrors.ErrAuthorizationExpired
	}
	s.session.CurrentUser = user
	s.renderer.SetVisibility(s.session.Visibility())

	u := *user
	return &u, nil
}

// resolveIdentity asks /admin/users/me first. When that lookup fails the user
// list is searched for the token subject or the login email, and as a last
// resort the session keeps an unknown identity that is never admin.
func (s *SessionService) resolveIdentity(ctx context.Context, token, email string) (*models.User, error) {
	var me models.User
	err := s.Request(ctx, httpclient.Request{Method: http.MethodGet, Path: "/admin/users/me"}, &me)
	if err == nil && me.Email != "" {
		return &me, nil
	}
	if appErrors.HasCode(err, appErrors.CodeAuthorizationExpired) {
		return nil, err
	}
	s.logger.Debug("identity lookup failed, searching user list", zap.Error(err))

	subject := tokenSubject(token)
	if subject == "" {
		subject = email
	}

	var users []models.User
	err = s.Request(ctx, httpclient.Request{Method: http.MethodGet, Path: "/admin/users/"}, &users)
	if appErrors.HasCode(err, appErrors.CodeAuthorizationExpired) {
		return nil, err
	}
	if err == nil {
		if u := models.FindUserByEmail(users, subject); u != nil {
			return u, nil
		}
		if u := models.FindUserByEmail(users, email); u != nil {
			return u, nil
		}
	}

	s.logger.Warn("identity unresolved, continuing with unknown identity", zap.String("subject", subject), zap.Error(err))
	return models.UnknownIdentity(subject), nil
}

func (s *SessionService) expire(ctx context.Context) {
	s.metrics.RecordForcedLogout()
	s.clear(ctx)
	s.logger.Info("session expired")
	s.renderer.ShowMessage(models.Message{Level: models.MessageError, Text: appErrors.ErrAuthorizationExpired.Message})
}

func (s *SessionService) clear(ctx context.Context) {
	if err := s.store.Delete(context.WithoutCancel(ctx), s.config.TokenKey); err != nil {
		s.logger.Warn("failed to delete session token", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.Session{}
	s.renderer.SetVisibility(models.Visibility{})
}

func (s *SessionService) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

func (s *SessionService) expired(token string) bool {
	claims := parseClaims(token)
	if claims == nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.config.Now().Before(exp.Time)
}

// parseClaims reads the token payload without verifying the signature; the
// console never holds the signing key.
func parseClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func tokenSubject(token string) string {
	claims := parseClaims(token)
	if claims == nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
