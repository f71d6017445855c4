package api

import (
	"net/http"
	"strconv"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageHandler struct {
	repo   repository.MessageRepository
	logger *zap.Logger
}

func NewMessageHandler(repo repository.MessageRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{repo: repo, logger: logger}
}

// List handles GET /v1/messages?roomId=|bubbleId=&limit=
//
// Clients call this once to backfill history before attaching to the
// live channel; from then on the websocket delivers everything. Exactly
// one scope parameter is required — naming both or neither is a
// validation error, mirroring the send-side rule.
func (h *MessageHandler) List(c *gin.Context) {
	key, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}

	limit := 200
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	messages, err := h.repo.ListByChannel(c.Request.Context(), key, limit)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	// Ascending insertion order: oldest first, the order the channel
	// saw the broadcasts in.
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) scopeFromQuery(c *gin.Context) (channel.Key, bool) {
	roomID := c.Query("roomId")
	bubbleID := c.Query("bubbleId")

	if (roomID == "") == (bubbleID == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of roomId or bubbleId is required"})
		return channel.Key{}, false
	}

	raw, kind := roomID, channel.KindRoom
	if bubbleID != "" {
		raw, kind = bubbleID, channel.KindBubble
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return channel.Key{}, false
	}
	return channel.Key{Kind: kind, ID: id}, true
}
