package api

import (
	"net/http"

	"github.com/campuslive/campuslive/internal/middleware"
	"github.com/campuslive/campuslive/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler upgrades authenticated requests into realtime connections.
type WSHandler struct {
	gateway  *realtime.Gateway
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(gateway *realtime.Gateway, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers enforce nothing on ws:// — the server must. An
			// empty allow-list accepts same-host requests only.
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if len(allowed) == 0 {
					return origin == "http://"+r.Host || origin == "https://"+r.Host
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger: logger,
	}
}

// Serve handles GET /v1/ws. AuthMiddleware has already verified the
// credential; a request reaching this point carries a resolved
// identity, which is the admission requirement for the gateway.
func (h *WSHandler) Serve(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity.ID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no resolvable identity"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := h.gateway.Admit(conn, identity); err != nil {
		h.logger.Warn("connection refused",
			zap.Int64("user_id", identity.ID),
			zap.Error(err),
		)
		conn.Close()
	}
}
