package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ubika-app/directory-core/internal/app"
)

type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Service         string    `json:"service"`
	Version         string    `json:"version"`
	Loading         bool      `json:"loading"`
	ConnectionError bool      `json:"connection_error"`
}

type HealthHandler struct {
	serviceName string
	version     string
	app         *app.App
}

func NewHealthHandler(serviceName, version string, a *app.App) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		app:         a,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "healthy",
		Timestamp:       time.Now().UTC(),
		Service:         h.serviceName,
		Version:         h.version,
		Loading:         h.app.Loading(),
		ConnectionError: h.app.ConnectionError(),
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
