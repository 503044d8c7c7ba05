package feed

import (
	"encoding/json"
	"log"
	"time"

	"duelchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketClient реалізує інтерфейс feed.Client
type WebSocketClient struct {
	ID     string
	ChatID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan models.Message
}

func NewWebSocketClient(id, chatID string, conn *websocket.Conn, hub *Hub) *WebSocketClient {
	return &WebSocketClient{
		ID:     id,
		ChatID: chatID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Message, 32),
	}
}

func (c *WebSocketClient) GetID() string                         { return c.ID }
func (c *WebSocketClient) GetChatID() string                     { return c.ChatID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Message { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	close(c.Send)
	// readPump зупиниться сам, коли Conn.Close() буде викликано в його defer
}

// readPump drains the socket so pings and close frames are handled. The feed
// is one-way: anything the console writes is discarded.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}
	}
}

// writePump читає повідомлення з каналу Send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			dataToWrite, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error encoding JSON for console %s: %v", c.ID, err)
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(dataToWrite)

			// Перевіряємо, чи є ще повідомлення у каналі (для ефективності)
			n := len(c.Send)
			for i := 0; i < n; i++ {
				nextMsg := <-c.Send
				extraData, _ := json.Marshal(nextMsg)
				w.Write(extraData)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
