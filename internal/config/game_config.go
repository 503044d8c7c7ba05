package config

import "time"

const (
	// Game
	DefaultWinsTarget = 3

	// Timeouts. Every wait in the game has the same 60-second window:
	// uploading a stake, answering a challenge, making a move.
	StakeUploadTimeout = 60 * time.Second
	AcceptTimeout      = 60 * time.Second
	MoveTimeout        = 60 * time.Second

	// Chat
	HistoryReplayLimit = 10
	HistoryFetchLimit  = 20
)

// Redis key prefixes for volatile per-user session state.
const (
	KeyBan         = "ban:"
	KeyActiveChat  = "chat:active:"
	KeyAwaitingRPS = "rps:awaiting:"
	FeedChannel    = "chat:feed"
)
