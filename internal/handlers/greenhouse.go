package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"greenhouse_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidLimit = "limit must be a positive integer"
	errInvalidQoS   = "qos must be an integer"
	errReadBody     = "failed to read body"
	errLoadMessages = "failed to load messages"
	errPublish      = "failed to publish"
)

// @Summary      Recent greenhouse messages
// @Description  Latest stored readings, oldest first.
// @Tags         greenhouse
// @Produce      json
// @Param        limit  query     int  false  "How many messages (default 50, max 500)"
// @Success      200    {array}   models.GreenhouseMessage
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/greenhouse/messages/recent [get]
// @Security     BearerAuth
func (h *Handler) recentMessages(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return
		}
		limit = n
	}

	msgs, err := h.services.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadMessages, "recent_messages_failed", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// @Summary      Publish a raw payload
// @Description  Topics greenhouse/<id>/sector/<n> set the sector opening (0-100). Every publish is echoed on the realtime topic.
// @Tags         greenhouse
// @Accept       json
// @Produce      json
// @Param        topic  query     string  true   "Topic"  example(greenhouse/001/sector/1)
// @Param        qos    query     int     false  "QoS 0-2"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/mqtt/publish/custom [post]
// @Security     BearerAuth
func (h *Handler) publishCustom(c *gin.Context) {
	topic := c.Query("topic")
	qos := 0
	if s := c.Query("qos"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQoS})
			return
		}
		qos = n
	}
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errReadBody})
		return
	}

	err = h.services.PublishCustom(c.Request.Context(), topic, qos, payload)
	switch {
	case isPublishRejection(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errPublish, "publish_custom_failed", err, "topic", topic)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "published", "topic": topic, "qos": qos})
	}
}

func isPublishRejection(err error) bool {
	for _, target := range []error{
		service.ErrInvalidTopic,
		service.ErrInvalidQoS,
		service.ErrInvalidSetpoint,
		service.ErrUnknownGreenhouse,
		service.ErrUnknownSector,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
