// Package dispatch defines the outbound-delivery boundary between the core
// (relay channel, game engine) and whatever transport actually reaches the
// user. The core never assumes delivery succeeds: an unreachable recipient is
// reported back as ErrUnreachable and must not roll back committed state.
package dispatch

import (
	"errors"

	"duelchat/backend/internal/models"
)

// ErrUnreachable means the recipient rejected delivery (e.g. blocked the bot).
var ErrUnreachable = errors.New("recipient unreachable")

// Button is one inline action the recipient can press. Data is the opaque
// callback code routed back through the command surface.
type Button struct {
	Label string
	Data  string
}

// Payload is a single deliverable item: a text notice, a relayed media
// message, or a prompt with inline buttons.
type Payload struct {
	Kind models.MessageKind
	// Text is the message body, or the caption for media kinds.
	Text   string
	FileID string
	// Buttons are inline keyboard rows attached to the message, if any.
	Buttons [][]Button
}

// Dispatcher delivers payloads to users addressed by their internal ID.
type Dispatcher interface {
	Deliver(recipient string, p Payload) error
}

// Text builds a plain text payload.
func Text(body string) Payload {
	return Payload{Kind: models.KindText, Text: body}
}

// Media builds a media payload with an optional caption.
func Media(kind models.MessageKind, fileID, caption string) Payload {
	return Payload{Kind: kind, FileID: fileID, Text: caption}
}
