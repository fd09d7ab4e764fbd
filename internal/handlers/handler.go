package handlers

import (
	"net/http"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		services: services,
		log:      log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// development backend: any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// STOMP over WebSocket, same port
	router.GET(gm.RealtimePath, h.realtimeConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	r.POST(gm.PathLogin, h.login)
	r.POST(gm.PathRegister, h.register)
	r.POST(gm.PathForgotPassword, h.forgotPassword)
	r.POST(gm.PathResetPassword, h.resetPassword)
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("", h.requireUser)
	{
		api.GET(gm.PathRecentMessages, h.recentMessages)
		api.POST(gm.PathPublishCustom, h.publishCustom)
	}
}

// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return false
	}
	return true
}
