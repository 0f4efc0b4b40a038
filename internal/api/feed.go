package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/udisondev/survivalskills/internal/model"
)

// handleFeed upgrades GET /ws?player=<id> and streams that player's snapshots.
// Client frames are ignored; reading only detects disconnects.
func (s *Server) handleFeed(c *gin.Context) {
	id := model.PlayerID(c.Query("player"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing player"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "player", id, "error", err)
		return
	}

	sub, err := s.hub.subscribe(c.Request.Context(), id, conn)
	if err != nil {
		slog.Debug("initial snapshot write failed", "player", id, "error", err)
		return
	}
	slog.Debug("feed subscribed", "player", id)

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("feed connection lost", "player", id, "error", err)
			}
			s.hub.unsubscribe(id, sub)
			return
		}
	}
}
