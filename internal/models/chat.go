package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat represents an anonymous 1-on-1 relay channel between the user who
// answered a profile (SenderID) and the profile's owner (TargetID).
// At most one non-closed chat exists per (profile, sender) pair.
type Chat struct {
	// ID is the unique identifier for the chat (UUID).
	ID string `gorm:"primaryKey"`
	// ProfileID is the profile through which the sender made contact.
	ProfileID string `gorm:"index:idx_profile_sender"`
	// SenderID is the anonymous ID of the user who opened the chat.
	SenderID string `gorm:"index:idx_profile_sender"`
	// TargetID is the anonymous ID of the profile owner.
	TargetID string `gorm:"index"`
	// Closed is set permanently when either participant closes the chat.
	Closed    bool
	CreatedAt time.Time
}

func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Peer returns the other participant of the chat.
func (c *Chat) Peer(userID string) string {
	if userID == c.SenderID {
		return c.TargetID
	}
	return c.SenderID
}

// HasParticipant reports whether userID is one of the two chat parties.
func (c *Chat) HasParticipant(userID string) bool {
	return userID == c.SenderID || userID == c.TargetID
}

// MessageKind is the closed set of relayable content kinds.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindPhoto     MessageKind = "photo"
	KindVideo     MessageKind = "video"
	KindVoice     MessageKind = "voice"
	KindVideoNote MessageKind = "video_note"
	KindSticker   MessageKind = "sticker"
	KindAnimation MessageKind = "animation"
	KindDocument  MessageKind = "document"
	KindAudio     MessageKind = "audio"
)

// Valid reports whether the kind is one the relay accepts.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindPhoto, KindVideo, KindVoice, KindVideoNote,
		KindSticker, KindAnimation, KindDocument, KindAudio:
		return true
	}
	return false
}

// Message is a single relayed item in a chat. Immutable after creation
// except for the Read flag, which is flipped in bulk when the recipient
// opens the chat.
type Message struct {
	gorm.Model

	ChatID   string      `gorm:"type:uuid;not null;index:idx_chat_msg"`
	SenderID string      `gorm:"type:text;not null;index:idx_chat_msg"`
	Kind     MessageKind `gorm:"type:text;not null"`
	// Content is the text body, or the caption for media kinds.
	Content string `gorm:"type:text"`
	// FileID is the opaque media handle for non-text kinds.
	FileID string `gorm:"type:text"`
	Read   bool   `gorm:"default:false;index"`
}

// ChatSummary is a chat annotated with the unread count for one participant,
// as returned by the open-chat listing.
type ChatSummary struct {
	Chat
	Unread int64
}

// Block is a directed blocker -> blocked relation, unique per ordered pair.
// Once present, the blocked party can neither re-open contact with the
// blocker nor have messages relayed to them.
type Block struct {
	ID        uint   `gorm:"primaryKey"`
	BlockerID string `gorm:"uniqueIndex:idx_block_pair"`
	BlockedID string `gorm:"uniqueIndex:idx_block_pair"`
	CreatedAt time.Time
}
