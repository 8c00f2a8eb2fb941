package handlers

import (
	"net/http"

	"tunnel_hmi/internal/models"

	"github.com/gin-gonic/gin"
)

// TagsRequest replaces a zone's whole tag map.
type TagsRequest struct {
	Tags models.TagMap `json:"tags" binding:"required"`
}

// CalibrationRequest replaces a zone's offsets; omitted signals fall back to 0.
type CalibrationRequest struct {
	Offsets models.Calibration `json:"offsets" binding:"required"`
}

// @Summary      List zones
// @Tags         zones
// @Produce      json
// @Success      200  {array}   models.ZoneConfig
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/zones [get]
// @Security     BearerAuth
func (h *Handler) listZones(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.ListZones())
}

// @Summary      Get zone configuration
// @Tags         zones
// @Produce      json
// @Param        id   path      int  true  "Zone id"
// @Success      200  {object}  models.ZoneConfig
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/zones/{id} [get]
// @Security     BearerAuth
func (h *Handler) getZone(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	z, err := h.services.GetZone(id)
	if err != nil {
		h.respondError(c, err, "zone_get_failed", "zone", id)
		return
	}
	c.JSON(http.StatusOK, z)
}

// @Summary      Latest zone snapshot
// @Tags         monitoring
// @Produce      json
// @Param        id   path      int  true  "Zone id"
// @Success      200  {object}  models.ZoneSnapshot
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/zones/{id}/snapshot [get]
// @Security     BearerAuth
func (h *Handler) getSnapshot(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	snap, err := h.services.Snapshot(id)
	if err != nil {
		h.respondError(c, err, "zone_snapshot_failed", "zone", id)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Latest batch of every zone
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  events.Batch
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/snapshots [get]
// @Security     BearerAuth
func (h *Handler) getSnapshots(c *gin.Context) {
	b, ok := h.services.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoSample})
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary      Replace zone tag map
// @Description  Takes effect on the next tick and is persisted across restarts.
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Zone id"
// @Param        body  body  TagsRequest  true  "Tag map"
// @Success      200   {object}  models.ZoneConfig
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/zones/{id}/tags [put]
// @Security     BearerAuth
func (h *Handler) putTags(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req TagsRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.UpdateTags(c.Request.Context(), id, req.Tags); err != nil {
		h.respondError(c, err, "zone_tags_update_failed", "zone", id)
		return
	}
	h.respondWithZone(c, id)
}

// @Summary      Replace zone calibration offsets
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        id    path  int                 true  "Zone id"
// @Param        body  body  CalibrationRequest  true  "Offsets in °C"
// @Success      200   {object}  models.ZoneConfig
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/zones/{id}/calibration [put]
// @Security     BearerAuth
func (h *Handler) putCalibration(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req CalibrationRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.UpdateCalibration(c.Request.Context(), id, req.Offsets); err != nil {
		h.respondError(c, err, "zone_calibration_update_failed", "zone", id)
		return
	}
	h.respondWithZone(c, id)
}

func (h *Handler) respondWithZone(c *gin.Context, id int) {
	z, err := h.services.GetZone(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": statusSaved})
		return
	}
	c.JSON(http.StatusOK, z)
}
