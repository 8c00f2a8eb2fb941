package handlers

import (
	"net/http"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// EventSource hands out bus subscriptions to streaming clients.
type EventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	src      EventSource
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, src EventSource, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{services: services, src: src, log: log.Named("http")}
}

// WithMetrics exposes m on /metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Live process stream on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIdMiddleware)
	{
		h.registerZoneRoutes(api)
		api.GET("/snapshots", h.getSnapshots)
		api.GET("/status", h.getStatus)
		api.GET("/connection", h.getConnection)
		api.PUT("/connection", h.putConnection)
	}
}

func (h *Handler) registerZoneRoutes(api *gin.RouterGroup) {
	z := api.Group("/zones")
	{
		z.GET("", h.listZones)
		z.GET("/:id", h.getZone)
		z.GET("/:id/snapshot", h.getSnapshot)
		// Body example: {"on":true}
		z.POST("/:id/running", h.setRunning)
		// Body example: {"target":"pulp_1","value":-1.5}
		z.POST("/:id/setpoint", h.setSetpoint)
		z.POST("/:id/defrost", h.setDefrost)
		z.POST("/:id/defrost/trigger", h.triggerDefrost)
		z.PUT("/:id/tags", h.putTags)
		z.PUT("/:id/calibration", h.putCalibration)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
