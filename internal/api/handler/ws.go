package handler

import (
	"net/http"

	"duelchat/backend/internal/feed"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket і підключає консоль
// до операторської стрічки. Опційний ?chat_id= обмежує стрічку одним чатом.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	operatorID, err := h.bearerOperator(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := feed.NewWebSocketClient(operatorID, c.Query("chat_id"), conn, h.Hub)
	h.Hub.RegisterCh <- client
}
