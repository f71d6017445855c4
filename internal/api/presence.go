package api

import (
	"net/http"

	"github.com/campuslive/campuslive/internal/realtime"
	"github.com/gin-gonic/gin"
)

// PresenceHandler is the REST read model of the connection registry,
// for clients that need the online list before their websocket is up.
// After that, the online-users broadcast keeps them current.
type PresenceHandler struct {
	registry *realtime.Registry
}

func NewPresenceHandler(registry *realtime.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// Online handles GET /v1/presence/online
func (h *PresenceHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.registry.ListOnline()})
}
