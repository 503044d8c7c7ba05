package handler

import (
	"os"

	"duelchat/backend/internal/feed"
	"duelchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler serves the operator-facing HTTP surface: token minting, the live
// feed WebSocket and read-only moderation endpoints.
type Handler struct {
	Hub       *feed.Hub
	Storage   *storage.Service
	jwtSecret []byte
}

func NewHandler(hub *feed.Hub, s *storage.Service) *Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-only-secret"
	}
	return &Handler{Hub: hub, Storage: s, jwtSecret: []byte(secret)}
}

// RegisterRoutes wires the handler into a gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.POST("/auth/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)

	authed := r.Group("/", h.RequireToken)
	authed.GET("/chats/:id/messages", h.GetChatMessages)
	authed.GET("/reports", h.ListReports)
	authed.POST("/reports/:id/resolve", h.ResolveReport)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
