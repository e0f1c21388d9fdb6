package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// Renderer receives already-resolved data and notices from the services.
// Implementations must not call back into the services: SessionService pushes
// visibility while holding its session lock.
type Renderer interface {
	ShowMessage(msg models.Message)
	SetVisibility(v models.Visibility)
	ShowTab(tab models.Tab)
	SetLoading(section models.Section, loading bool)
	SetActionEnabled(action models.Action, enabled bool)
	RenderZones(zones []models.Zone)
	RenderIndicators(indicators []models.Indicator)
	RenderAirStats(stats []models.AirStat)
	RenderUsers(users []models.User, form models.AdminFormState, currentUserID int)
	RenderIngestion(result models.IngestionResult)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) ShowMessage(models.Message)                           {}
func (NopRenderer) SetVisibility(models.Visibility)                      {}
func (NopRenderer) ShowTab(models.Tab)                                   {}
func (NopRenderer) SetLoading(models.Section, bool)                      {}
func (NopRenderer) SetActionEnabled(models.Action, bool)                 {}
func (NopRenderer) RenderZones([]models.Zone)                            {}
func (NopRenderer) RenderIndicators([]models.Indicator)                  {}
func (NopRenderer) RenderAirStats([]models.AirStat)                      {}
func (NopRenderer) RenderUsers([]models.User, models.AdminFormState, int) {}
func (NopRenderer) RenderIngestion(models.IngestionResult)               {}

func notify(r Renderer, level models.MessageLevel, text string) {
	r.ShowMessage(models.Message{Level: level, Text: text})
}

// reportError logs err and shows it to the user. Expired sessions were already
// announced by SessionService, so they are only logged here.
func reportError(logger *zap.Logger, r Renderer, err error, fallback string) {
	if err == nil {
		return
	}
	logger.Warn(fallback, zap.Error(err))
	if appErrors.HasCode(err, appErrors.CodeAuthorizationExpired) {
		return
	}
	r.ShowMessage(models.Message{
		Level:     models.MessageError,
		Text:      appErrors.UserMessage(err, fallback),
		Transient: appErrors.FromError(err).Transient(),
	})
}
