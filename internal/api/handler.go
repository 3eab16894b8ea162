// Package api exposes the operational HTTP surface: manual event simulation,
// a health snapshot of the core loops, and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"circle_notifier/internal/app"
)

type simulateRequest struct {
	EventType string          `json:"eventType" binding:"required"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

// Handler wires the operational endpoints.
type Handler struct {
	simulator *app.Simulator
	status    func() app.Status
	log       *logrus.Entry
}

func NewHandler(simulator *app.Simulator, status func() app.Status, log *logrus.Entry) *Handler {
	return &Handler{simulator: simulator, status: status, log: log}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/status", h.getStatus)
		api.POST("/simulate", h.simulate)
	}
	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

func (h *Handler) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.simulator.Simulate(c.Request.Context(), req.EventType, req.Payload); err != nil {
		if errors.Is(err, app.ErrUnknownEventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.WithError(err).WithField("eventType", req.EventType).Error("Simulated event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dispatched", "eventType": req.EventType})
}
