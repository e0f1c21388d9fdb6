package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/internal/service"
	"github.com/noah-isme/ecotrack-console/pkg/logger"
	"github.com/noah-isme/ecotrack-console/pkg/middleware/requestid"
	"github.com/noah-isme/ecotrack-console/pkg/response"
)

type sessionReader interface {
	Current() models.Session
}

type activeTabReader interface {
	Active() models.Tab
}

// StatusHandler exposes observability endpoints while the console watches.
type StatusHandler struct {
	metrics *service.MetricsService
	session sessionReader
	tabs    activeTabReader
}

// NewStatusHandler constructs a status handler.
func NewStatusHandler(metrics *service.MetricsService, session sessionReader, tabs activeTabReader) *StatusHandler {
	return &StatusHandler{metrics: metrics, session: session, tabs: tabs}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *StatusHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

type healthPayload struct {
	Status        string               `json:"status"`
	Authenticated bool                 `json:"authenticated"`
	User          string               `json:"user,omitempty"`
	ActiveTab     models.Tab           `json:"active_tab,omitempty"`
	Metrics       models.ClientMetrics `json:"metrics"`
}

// Health reports the session and traffic summary.
func (h *StatusHandler) Health(c *gin.Context) {
	payload := healthPayload{Status: "ok", Metrics: h.metrics.Snapshot()}
	if h.session != nil {
		s := h.session.Current()
		payload.Authenticated = s.Authenticated()
		if s.CurrentUser != nil {
			payload.User = s.CurrentUser.Email
		}
	}
	if h.tabs != nil {
		payload.ActiveTab = h.tabs.Active()
	}
	response.JSON(c, http.StatusOK, payload)
}

// NewStatusRouter wires the status endpoints.
func NewStatusRouter(l *zap.Logger, h *StatusHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestid.Middleware(), logger.GinMiddleware(l))
	r.GET("/metrics", h.Prometheus)
	r.GET("/health", h.Health)
	return r
}
