package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameStatus is the closed set of wagered-game states. The waiting_move_*
// variants encode which player the current round is still waiting on.
type GameStatus string

const (
	// StatusWaitingStakeInitiator: the initiator has not uploaded their stake yet.
	StatusWaitingStakeInitiator GameStatus = "waiting_stake_initiator"
	// StatusWaitingStakeOpponent: challenge sent; waiting for the opponent to
	// accept and upload their stake.
	StatusWaitingStakeOpponent GameStatus = "waiting_stake_opponent"
	// StatusWaitingMoveBoth: neither player has moved this round.
	StatusWaitingMoveBoth GameStatus = "waiting_move_both"
	// StatusWaitingMoveInitiator: the opponent moved, the initiator has not.
	StatusWaitingMoveInitiator GameStatus = "waiting_move_initiator"
	// StatusWaitingMoveOpponent: the initiator moved, the opponent has not.
	StatusWaitingMoveOpponent GameStatus = "waiting_move_opponent"
	// StatusFinished is terminal; the loser's stake has been delivered.
	StatusFinished GameStatus = "finished"
	// StatusCancelled is terminal; no stake was transferred.
	StatusCancelled GameStatus = "cancelled"
)

// Terminal reports whether no further transitions are valid.
func (s GameStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// AwaitingMoves reports whether the game is in any move-waiting state.
func (s GameStatus) AwaitingMoves() bool {
	return s == StatusWaitingMoveBoth || s == StatusWaitingMoveInitiator || s == StatusWaitingMoveOpponent
}

// Move is one of the three throwable hands.
type Move string

const (
	MoveRock     Move = "rock"
	MoveScissors Move = "scissors"
	MovePaper    Move = "paper"
)

func (m Move) Valid() bool {
	return m == MoveRock || m == MoveScissors || m == MovePaper
}

// Beats reports whether m wins against other under the fixed relation
// rock > scissors > paper > rock.
func (m Move) Beats(other Move) bool {
	switch m {
	case MoveRock:
		return other == MoveScissors
	case MoveScissors:
		return other == MovePaper
	case MovePaper:
		return other == MoveRock
	}
	return false
}

// StakeKind is the subset of media kinds accepted as a wager.
type StakeKind string

const (
	StakePhoto StakeKind = "photo"
	StakeVideo StakeKind = "video"
	StakeVoice StakeKind = "voice"
)

func (k StakeKind) Valid() bool {
	return k == StakePhoto || k == StakeVideo || k == StakeVoice
}

// Game is one best-of-N rock/paper/scissors match inside a chat.
// At most one non-terminal game exists per chat. After reaching a terminal
// status the record is immutable except for audit reads.
type Game struct {
	// ID is the unique identifier for the game (UUID).
	ID     string `gorm:"primaryKey"`
	ChatID string `gorm:"index"`

	InitiatorID string
	OpponentID  string

	// WinsTarget is W: the first player to W round wins takes the match.
	WinsTarget    int `gorm:"default:3"`
	InitiatorWins int
	OpponentWins  int

	Status GameStatus `gorm:"type:text;not null;index"`
	// Accepted is set when the opponent pressed accept; distinguishes
	// "accepted, stake pending" from "challenge never answered" for the
	// accept-timeout callback.
	Accepted bool

	InitiatorStakeFileID string
	InitiatorStakeKind   StakeKind
	OpponentStakeFileID  string
	OpponentStakeKind    StakeKind

	CurrentRound  int `gorm:"default:1"`
	InitiatorMove Move
	OpponentMove  Move

	// StakeDelivered guards the at-most-once transfer of the loser's stake.
	StakeDelivered bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *Game) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether userID plays in this game.
func (g *Game) HasParticipant(userID string) bool {
	return userID == g.InitiatorID || userID == g.OpponentID
}

// Other returns the opponent of the given participant.
func (g *Game) Other(userID string) string {
	if userID == g.InitiatorID {
		return g.OpponentID
	}
	return g.InitiatorID
}

// MoveOf returns the current-round move recorded for the participant.
func (g *Game) MoveOf(userID string) Move {
	if userID == g.InitiatorID {
		return g.InitiatorMove
	}
	return g.OpponentMove
}

// StakeOf returns the stake the given participant put up.
func (g *Game) StakeOf(userID string) (StakeKind, string) {
	if userID == g.InitiatorID {
		return g.InitiatorStakeKind, g.InitiatorStakeFileID
	}
	return g.OpponentStakeKind, g.OpponentStakeFileID
}
