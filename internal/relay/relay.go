// Package relay implements the anonymous 1-on-1 relay channel: opening chats
// against profiles, forwarding content between the two parties without
// exposing identities, closing forever, and the unread bookkeeping.
package relay

import (
	"errors"
	"log"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
)

// Store is the subset of the session store the relay needs.
type Store interface {
	GetProfile(profileID string) (*models.Profile, error)
	CreateChat(profileID, senderID, targetID string) (*models.Chat, error)
	GetChat(chatID string) (*models.Chat, error)
	CloseChat(chatID string) error
	ListOpenChats(userID string) ([]models.ChatSummary, error)
	AddMessage(msg *models.Message) error
	MarkMessagesRead(chatID, readerID string) error
	GetChatMessages(chatID string, limit int) ([]models.Message, error)
	BlockUser(blockerID, blockedID string) error
	IsBlocked(blockerID, blockedID string) (bool, error)
	AddReport(report *models.Report) error
	PublishFeed(msg models.Message) error
}

type Service struct {
	Store      Store
	Dispatcher dispatch.Dispatcher
}

func NewService(store Store, d dispatch.Dispatcher) *Service {
	return &Service{Store: store, Dispatcher: d}
}

// Open creates (or returns the existing) chat between sender and the owner of
// the given profile. Repeating the call for the same pair never duplicates.
func (s *Service) Open(senderID, profileID string) (*models.Chat, error) {
	profile, err := s.Store.GetProfile(profileID)
	if err != nil {
		return nil, err
	}
	if !profile.Active {
		return nil, ErrProfileInactive
	}
	targetID := profile.UserID
	if targetID == senderID {
		return nil, ErrSelfTarget
	}

	for _, pair := range [][2]string{{targetID, senderID}, {senderID, targetID}} {
		blocked, err := s.Store.IsBlocked(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrBlocked
		}
	}

	return s.Store.CreateChat(profileID, senderID, targetID)
}

// Relay persists the sender's payload as a chat message and forwards it to
// the peer. The message is committed before the delivery attempt; a rejected
// delivery surfaces as ErrPeerUnreachable and is never rolled back.
func (s *Service) Relay(chatID, senderID string, p dispatch.Payload) (*models.Message, error) {
	chat, err := s.chatFor(chatID, senderID)
	if err != nil {
		return nil, err
	}
	if chat.Closed {
		return nil, ErrChatClosed
	}
	if !p.Kind.Valid() {
		return nil, ErrUnsupportedPayload
	}

	peerID := chat.Peer(senderID)
	blocked, err := s.Store.IsBlocked(peerID, senderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrPeerBlocked
	}

	msg := &models.Message{
		ChatID:   chat.ID,
		SenderID: senderID,
		Kind:     p.Kind,
		Content:  p.Text,
		FileID:   p.FileID,
	}
	if err := s.Store.AddMessage(msg); err != nil {
		return nil, err
	}
	if err := s.Store.PublishFeed(*msg); err != nil {
		log.Printf("WARN: Failed to publish message %d to feed: %v", msg.ID, err)
	}

	if err := s.Dispatcher.Deliver(peerID, p); err != nil {
		if errors.Is(err, dispatch.ErrUnreachable) {
			log.Printf("WARN: Peer %s unreachable for chat %s.", peerID, chat.ID)
			return msg, ErrPeerUnreachable
		}
		return msg, err
	}
	return msg, nil
}

// CloseForever closes the chat permanently and blocks the peer from ever
// re-opening contact with the closer. Idempotent.
func (s *Service) CloseForever(chatID, closerID string) error {
	chat, err := s.chatFor(chatID, closerID)
	if err != nil {
		return err
	}
	if err := s.Store.CloseChat(chat.ID); err != nil {
		return err
	}
	log.Printf("INFO: Chat %s closed forever by %s.", chat.ID, closerID)
	return s.Store.BlockUser(closerID, chat.Peer(closerID))
}

// ListOpenChats returns the caller's open chats, newest first, with per-chat
// unread counts.
func (s *Service) ListOpenChats(userID string) ([]models.ChatSummary, error) {
	return s.Store.ListOpenChats(userID)
}

// MarkRead flips the read flag on everything the peer sent in this chat.
func (s *Service) MarkRead(chatID, readerID string) error {
	chat, err := s.chatFor(chatID, readerID)
	if err != nil {
		return err
	}
	return s.Store.MarkMessagesRead(chat.ID, readerID)
}

// History returns the last limit messages of the chat in chronological order.
func (s *Service) History(chatID, userID string, limit int) ([]models.Message, error) {
	chat, err := s.chatFor(chatID, userID)
	if err != nil {
		return nil, err
	}
	return s.Store.GetChatMessages(chat.ID, limit)
}

// Report files a complaint by one participant against the other.
func (s *Service) Report(chatID, reporterID, reason string) error {
	chat, err := s.chatFor(chatID, reporterID)
	if err != nil {
		return err
	}
	report := &models.Report{
		ChatID:     chat.ID,
		ReporterID: reporterID,
		ReportedID: chat.Peer(reporterID),
		Reason:     reason,
	}
	return s.Store.AddReport(report)
}

func (s *Service) chatFor(chatID, userID string) (*models.Chat, error) {
	chat, err := s.Store.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return chat, nil
}
