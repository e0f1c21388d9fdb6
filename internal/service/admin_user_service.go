package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/httpclient"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

const (
	msgUsersFailed     = "failed to load users"
	msgUserCreated     = "user created"
	msgUserCreateFail  = "failed to create user"
	msgUserUpdated     = "user updated"
	msgUserUpdateFail  = "failed to update user"
	msgUserDeleted     = "user deleted"
	msgUserDeleteFail  = "failed to delete user"
	msgSelfDelete      = "you cannot delete your own account"
	msgNothingToUpdate = "nothing to update"
	msgFormFailed      = "cannot open user form"
)

// AdminUserService manages the admin user list and its create/edit form.
// Every successful mutation reloads the whole list from the server instead of
// patching it locally. The list and form belong to the admin session that
// loaded them and are dropped as soon as the session changes.
type AdminUserService struct {
	session   sessionGateway
	renderer  Renderer
	validator *validator.Validate
	logger    *zap.Logger

	mu    sync.RWMutex
	owner string
	users []models.User
	form  models.AdminFormState
}

// NewAdminUserService constructs the service.
func NewAdminUserService(session sessionGateway, renderer Renderer, validate *validator.Validate, logger *zap.Logger) *AdminUserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &AdminUserService{
		session:   session,
		renderer:  renderer,
		validator: validate,
		logger:    logger,
		form:      models.AdminFormState{Mode: models.AdminIdle},
	}
}

// Users returns the list loaded under the current admin session.
func (s *AdminUserService) Users() []models.User {
	s.reconcile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out
}

// Form returns the form state.
func (s *AdminUserService) Form() models.AdminFormState {
	s.reconcile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// Load fetches the user list. Non-admin sessions are refused without a request.
func (s *AdminUserService) Load(ctx context.Context) error {
	current, err := s.requireAdmin(msgUsersFailed)
	if err != nil {
		return err
	}

	s.renderer.SetLoading(models.SectionUsers, true)
	defer s.renderer.SetLoading(models.SectionUsers, false)

	var users []models.User
	if err := s.session.Request(ctx, httpclient.Request{Method: http.MethodGet, Path: "/admin/users/"}, &users); err != nil {
		reportError(s.logger, s.renderer, err, msgUsersFailed)
		return err
	}

	if s.session.Current().Token != current.Token {
		s.logger.Debug("session changed while loading users, list dropped")
		return appErrors.ErrNoSession
	}

	s.mu.Lock()
	s.owner = current.Token
	s.users = users
	form := s.form
	s.mu.Unlock()

	s.renderer.RenderUsers(users, form, current.CurrentUser.ID)
	return nil
}

// OpenCreate opens the create form, closing any edit form.
func (s *AdminUserService) OpenCreate() error {
	current, err := s.requireAdmin(msgFormFailed)
	if err != nil {
		return err
	}
	s.setForm(models.AdminFormState{Mode: models.AdminCreating})
	s.render(current)
	return nil
}

// OpenEdit opens the edit form for id, closing any other form. id must be in
// the loaded list.
func (s *AdminUserService) OpenEdit(id int) error {
	current, err := s.requireAdmin(msgFormFailed)
	if err != nil {
		return err
	}
	if !s.listed(id) {
		nerr := appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %d not in list", id))
		reportError(s.logger, s.renderer, nerr, msgFormFailed)
		return nerr
	}
	s.setForm(models.AdminFormState{Mode: models.AdminEditing, UserID: id})
	s.render(current)
	return nil
}

// CloseForm returns to Idle.
func (s *AdminUserService) CloseForm() error {
	current, err := s.requireAdmin(msgFormFailed)
	if err != nil {
		return err
	}
	s.setForm(models.AdminFormState{Mode: models.AdminIdle})
	s.render(current)
	return nil
}

// Create registers a user on behalf of the admin. Missing required fields are
// rejected before any request. On failure the create form stays open.
func (s *AdminUserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	s.reconcile()
	s.setForm(models.AdminFormState{Mode: models.AdminCreating})

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		verr := appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, appErrors.ErrValidation.Message)
		reportError(s.logger, s.renderer, verr, msgUserCreateFail)
		return nil, verr
	}
	if _, err := s.requireAdmin(msgUserCreateFail); err != nil {
		return nil, err
	}

	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.IsActive == nil {
		active := true
		req.IsActive = &active
	}

	var created models.User
	if err := s.session.Request(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/register", Body: req}, &created); err != nil {
		reportError(s.logger, s.renderer, err, msgUserCreateFail)
		return nil, err
	}

	s.logger.Info("user created", zap.String("email", req.Email), zap.String("role", string(req.Role)))
	s.finishMutation(ctx, msgUserCreated)
	return &created, nil
}

// Update changes the allowed fields of user id. On failure the edit form for
// id stays open.
func (s *AdminUserService) Update(ctx context.Context, id int, req dto.UpdateUserRequest) (*models.User, error) {
	s.reconcile()
	s.setForm(models.AdminFormState{Mode: models.AdminEditing, UserID: id})

	if req.Empty() {
		verr := appErrors.Clone(appErrors.ErrValidation, msgNothingToUpdate)
		reportError(s.logger, s.renderer, verr, msgUserUpdateFail)
		return nil, verr
	}
	if err := s.validator.Struct(req); err != nil {
		verr := appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, appErrors.ErrValidation.Message)
		reportError(s.logger, s.renderer, verr, msgUserUpdateFail)
		return nil, verr
	}
	if _, err := s.requireAdmin(msgUserUpdateFail); err != nil {
		return nil, err
	}

	var updated models.User
	path := fmt.Sprintf("/admin/users/%d", id)
	if err := s.session.Request(ctx, httpclient.Request{Method: http.MethodPut, Path: path, Route: "/admin/users/:id", Body: req}, &updated); err != nil {
		reportError(s.logger, s.renderer, err, msgUserUpdateFail)
		return nil, err
	}

	s.logger.Info("user updated", zap.Int("user_id", id))
	s.finishMutation(ctx, msgUserUpdated)
	return &updated, nil
}

// Delete removes user id after confirmation. Deleting the signed-in account is
// refused locally. A declined confirmation is not an error.
func (s *AdminUserService) Delete(ctx context.Context, id int, confirmer Confirmer) error {
	current, err := s.requireAdmin(msgUserDeleteFail)
	if err != nil {
		return err
	}
	if current.CurrentUser != nil && current.CurrentUser.ID == id {
		serr := appErrors.Clone(appErrors.ErrValidation, msgSelfDelete)
		reportError(s.logger, s.renderer, serr, msgUserDeleteFail)
		return serr
	}

	if confirmer == nil || !confirmer.Confirm(fmt.Sprintf("delete user %d?", id)) {
		s.logger.Debug("user deletion declined", zap.Int("user_id", id))
		return nil
	}

	path := fmt.Sprintf("/admin/users/%d", id)
	if err := s.session.Request(ctx, httpclient.Request{Method: http.MethodDelete, Path: path, Route: "/admin/users/:id"}, nil); err != nil {
		reportError(s.logger, s.renderer, err, msgUserDeleteFail)
		return err
	}

	s.logger.Info("user deleted", zap.Int("user_id", id))
	s.finishMutation(ctx, msgUserDeleted)
	return nil
}

func (s *AdminUserService) finishMutation(ctx context.Context, message string) {
	s.setForm(models.AdminFormState{Mode: models.AdminIdle})
	notify(s.renderer, models.MessageSuccess, message)
	if err := s.Load(ctx); err != nil {
		s.logger.Warn("reload after mutation failed", zap.Error(err))
	}
}

func (s *AdminUserService) requireAdmin(fallback string) (models.Session, error) {
	current := s.reconcile()
	if !current.Authenticated() {
		reportError(s.logger, s.renderer, appErrors.ErrNoSession, fallback)
		return current, appErrors.ErrNoSession
	}
	if !current.IsAdmin() {
		reportError(s.logger, s.renderer, appErrors.ErrPermissionDenied, fallback)
		return current, appErrors.ErrPermissionDenied
	}
	return current, nil
}

func (s *AdminUserService) setForm(form models.AdminFormState) {
	s.mu.Lock()
	s.form = form
	s.mu.Unlock()
}

// reconcile drops the list and form when they were loaded under another
// session or the current one is not admin.
func (s *AdminUserService) reconcile() models.Session {
	current := s.session.Current()
	s.mu.Lock()
	defer s.mu.Unlock()
	if current.IsAdmin() && s.owner == current.Token {
		return current
	}
	if s.owner != "" || len(s.users) > 0 {
		s.logger.Debug("session changed, admin user list dropped")
	}
	s.users = nil
	s.owner = ""
	if current.IsAdmin() {
		s.owner = current.Token
	}
	s.form = models.AdminFormState{Mode: models.AdminIdle}
	return current
}

// render shows the list to current, which the caller has checked is admin.
func (s *AdminUserService) render(current models.Session) {
	s.mu.RLock()
	users := make([]models.User, len(s.users))
	copy(users, s.users)
	form := s.form
	s.mu.RUnlock()
	s.renderer.RenderUsers(users, form, current.CurrentUser.ID)
}

func (s *AdminUserService) listed(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}
