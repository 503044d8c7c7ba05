package relay

import "errors"

// Sentinel errors for rejected relay operations. Callers branch with
// errors.Is and translate into user-facing notices.
var (
	// ErrSelfTarget: the sender tried to open a chat with their own profile.
	ErrSelfTarget = errors.New("cannot open chat with own profile")
	// ErrBlocked: a block exists between the pair in either direction.
	ErrBlocked = errors.New("pair is blocked")
	// ErrProfileInactive: the target profile was deactivated or deleted.
	ErrProfileInactive = errors.New("profile is not active")
	// ErrChatClosed: the chat was closed forever; nothing more goes through.
	ErrChatClosed = errors.New("chat is closed")
	// ErrPeerBlocked: the recipient has blocked the sender after the chat opened.
	ErrPeerBlocked = errors.New("peer has blocked sender")
	// ErrUnsupportedPayload: the content kind is not relayable.
	ErrUnsupportedPayload = errors.New("unsupported payload kind")
	// ErrNotParticipant: the caller is not a party to the chat.
	ErrNotParticipant = errors.New("not a chat participant")
	// ErrPeerUnreachable: the message was committed but could not be delivered.
	ErrPeerUnreachable = errors.New("peer unreachable")
)
