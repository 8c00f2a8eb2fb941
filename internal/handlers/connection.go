package handlers

import (
	"net/http"

	"tunnel_hmi/internal/models"

	"github.com/gin-gonic/gin"
)

// ConnectionRequest replaces the controller connection and restarts polling.
type ConnectionRequest struct {
	Address          string `json:"address" example:"192.168.0.1"`
	Rack             int    `json:"rack" example:"0"`
	Slot             int    `json:"slot" example:"1"`
	Port             int    `json:"port" example:"102"`
	PollIntervalMs   int    `json:"poll_interval_ms" example:"1000"`
	Simulation       bool   `json:"simulation" example:"false"`
	RetryDefaultPort bool   `json:"retry_default_port" example:"true"`
}

// @Summary      Acquisition status
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  service.Status
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Status())
}

// @Summary      Current controller connection
// @Tags         connection
// @Produce      json
// @Success      200  {object}  models.ConnectionSettings
// @Router       /api/v1/connection [get]
// @Security     BearerAuth
func (h *Handler) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.CurrentConnection())
}

// @Summary      Apply controller connection
// @Description  Persists the settings and restarts polling on a fresh backend.
// @Tags         connection
// @Accept       json
// @Produce      json
// @Param        body  body  ConnectionRequest  true  "Connection settings"
// @Success      200   {object}  service.Status
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/connection [put]
// @Security     BearerAuth
func (h *Handler) putConnection(c *gin.Context) {
	var req ConnectionRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	cs := models.ConnectionSettings{
		Address:          req.Address,
		Rack:             req.Rack,
		Slot:             req.Slot,
		Port:             req.Port,
		PollIntervalMs:   req.PollIntervalMs,
		Simulation:       req.Simulation,
		RetryDefaultPort: req.RetryDefaultPort,
	}
	if err := h.services.ApplyConnection(c.Request.Context(), cs); err != nil {
		h.respondError(c, err, "connection_apply_failed", "address", req.Address)
		return
	}
	h.log.Infow("connection_applied", "address", cs.Address, "simulation", cs.Simulation, "operator", operatorID(c))
	c.JSON(http.StatusOK, h.services.Status())
}
