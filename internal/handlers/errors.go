package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/poller"
	"tunnel_hmi/internal/service"
	"tunnel_hmi/internal/zones"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusAccepted = "accepted"
	statusSaved    = "saved"

	errInvalidBodyPref = "invalid body: "
	errInvalidZoneID   = "zone id must be a positive integer"
	errNoSample        = "no sample yet"
)

// httpStatus maps service and poller errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, zones.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, poller.ErrWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, poller.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotPersisted):
		return http.StatusInternalServerError
	case errors.Is(err, service.ErrSetpointRange),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, service.ErrOffsetRange),
		errors.Is(err, service.ErrInvalidConnection),
		errors.Is(err, poller.ErrInvalidCalibration),
		errors.Is(err, models.ErrInvalidTag):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err under logKey and writes its mapped status.
func (h *Handler) respondError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	code := httpStatus(err)
	fields := append([]interface{}{"err", err, "status", code, "operator", operatorID(c)}, kv...)
	if code >= http.StatusInternalServerError {
		h.log.Errorw(logKey, fields...)
	} else {
		h.log.Infow(logKey, fields...)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// zoneIDParam parses :id and writes a 400 when it is not a positive integer.
func zoneIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidZoneID})
		return 0, false
	}
	return id, true
}
