package handlers

import (
	"net/http"

	"tunnel_hmi/internal/service"

	"github.com/gin-gonic/gin"
)

// SwitchRequest turns a zone function on or off.
type SwitchRequest struct {
	On *bool `json:"on" binding:"required" example:"true"`
}

// SetpointRequest writes one setpoint. Target defaults to ambient.
type SetpointRequest struct {
	// Allowed: ambient, pulp_1, pulp_2
	Target string   `json:"target,omitempty" example:"ambient"`
	Value  *float64 `json:"value" binding:"required" example:"-1.5"`
}

func (h *Handler) accepted(c *gin.Context, id int, extra gin.H) {
	resp := gin.H{"status": statusAccepted, "zone": id}
	for k, v := range extra {
		resp[k] = v
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Start or stop a tunnel
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id    path  int            true  "Zone id"
// @Param        body  body  SwitchRequest  true  "Desired state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/zones/{id}/running [post]
// @Security     BearerAuth
func (h *Handler) setRunning(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req SwitchRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetRunning(id, *req.On); err != nil {
		h.respondError(c, err, "zone_set_running_failed", "zone", id, "on", *req.On)
		return
	}
	h.log.Infow("zone_set_running", "zone", id, "on", *req.On, "operator", operatorID(c))
	h.accepted(c, id, gin.H{"on": *req.On})
}

// @Summary      Write a setpoint
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Zone id"
// @Param        body  body  SetpointRequest  true  "Setpoint in °C"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/zones/{id}/setpoint [post]
// @Security     BearerAuth
func (h *Handler) setSetpoint(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req SetpointRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	target := service.SetpointTarget(req.Target)
	if target == "" {
		target = service.TargetAmbient
	}
	if err := h.services.SetSetpoint(id, target, *req.Value); err != nil {
		h.respondError(c, err, "zone_set_setpoint_failed", "zone", id, "target", target, "value", *req.Value)
		return
	}
	h.log.Infow("zone_set_setpoint", "zone", id, "target", target, "value", *req.Value, "operator", operatorID(c))
	h.accepted(c, id, gin.H{"target": target, "value": *req.Value})
}

// @Summary      Hold defrost on or off
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id    path  int            true  "Zone id"
// @Param        body  body  SwitchRequest  true  "Desired state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/zones/{id}/defrost [post]
// @Security     BearerAuth
func (h *Handler) setDefrost(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req SwitchRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetDefrost(id, *req.On); err != nil {
		h.respondError(c, err, "zone_set_defrost_failed", "zone", id, "on", *req.On)
		return
	}
	h.log.Infow("zone_set_defrost", "zone", id, "on", *req.On, "operator", operatorID(c))
	h.accepted(c, id, gin.H{"on": *req.On})
}

// @Summary      Start one defrost cycle
// @Description  Pulses the defrost request, or raises it and clears it automatically.
// @Tags         commands
// @Produce      json
// @Param        id   path  int  true  "Zone id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/zones/{id}/defrost/trigger [post]
// @Security     BearerAuth
func (h *Handler) triggerDefrost(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	if err := h.services.TriggerDefrost(id); err != nil {
		h.respondError(c, err, "zone_trigger_defrost_failed", "zone", id)
		return
	}
	h.log.Infow("zone_trigger_defrost", "zone", id, "operator", operatorID(c))
	h.accepted(c, id, nil)
}
