// Package feed fans relayed chat traffic out to operator consoles over
// WebSocket. Consoles are read-only observers: messages enter through the
// Redis Pub/Sub channel the relay publishes to, never through the socket.
package feed

import (
	"encoding/json"
	"log"

	"duelchat/backend/internal/models"
	"duelchat/backend/internal/storage"
)

// Client is the interface for one attached console connection. It abstracts
// the underlying transport so the hub can manage connections uniformly.
type Client interface {
	// GetID returns the unique identifier of the connection.
	GetID() string
	// GetChatID returns the chat the console is filtered to, or "" for all.
	GetChatID() string

	// GetSendChannel returns the channel through which the hub pushes
	// messages intended for this client. It is a send-only channel.
	GetSendChannel() chan<- models.Message

	// Run starts the client's read and write pumps.
	Run()
	// Close gracefully shuts down the connection and associated channels.
	Close()
}

// Hub tracks attached consoles and broadcasts feed traffic to them.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client

	Storage *storage.Service

	feedCh chan models.Message
}

func NewHub(s *storage.Service) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Storage:      s,
		feedCh:       make(chan models.Message),
	}
}

// startPubSubListener запускає Goroutine, яка слухає Redis Pub/Sub
func (h *Hub) startPubSubListener() {
	go func() {
		pubsub := h.Storage.SubscribeFeed()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var feedMsg models.Message
			if err := json.Unmarshal([]byte(msg.Payload), &feedMsg); err != nil {
				log.Printf("Error unmarshalling Redis feed message: %v", err)
				continue
			}
			h.feedCh <- feedMsg
		}
	}()
}

// Run is the hub's main loop. It owns the Clients map: all mutation happens
// here, so no locking is needed.
func (h *Hub) Run() {
	h.startPubSubListener()

	for {
		select {
		case client := <-h.RegisterCh:
			h.Clients[client.GetID()] = client
			client.Run()
			log.Printf("INFO: Feed console %s attached (%d total).", client.GetID(), len(h.Clients))

		case client := <-h.UnregisterCh:
			if _, ok := h.Clients[client.GetID()]; ok {
				delete(h.Clients, client.GetID())
				client.Close()
				log.Printf("INFO: Feed console %s detached (%d total).", client.GetID(), len(h.Clients))
			}

		case msg := <-h.feedCh:
			// Повідомлення надійшло від relay через Redis.
			for id, client := range h.Clients {
				if filter := client.GetChatID(); filter != "" && filter != msg.ChatID {
					continue
				}
				select {
				case client.GetSendChannel() <- msg:
				default:
					// Слишком повільний споживач: відключаємо.
					delete(h.Clients, id)
					client.Close()
				}
			}
		}
	}
}
