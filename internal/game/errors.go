package game

import "errors"

// Sentinel errors for rejected game actions. Callers branch with errors.Is
// and translate into user-facing notices.
var (
	// ErrChatClosed: no new game can start in a closed chat.
	ErrChatClosed = errors.New("chat is closed")
	// ErrNotParticipant: the caller is not a party to the chat.
	ErrNotParticipant = errors.New("not a chat participant")
	// ErrGameActive: the chat already has a non-terminal game.
	ErrGameActive = errors.New("game already active in chat")
	// ErrNotYourGame: the caller does not play in this game.
	ErrNotYourGame = errors.New("not a participant of this game")
	// ErrNotActive: the game is terminal or not in the state the action needs.
	ErrNotActive = errors.New("game is not in an actionable state")
	// ErrAlreadyMoved: the caller already committed a move this round.
	ErrAlreadyMoved = errors.New("move already made this round")
	// ErrBadStake: the uploaded content is not an accepted stake kind.
	ErrBadStake = errors.New("stake must be photo, video or voice")
	// ErrBadMove: the submitted move is not rock, scissors or paper.
	ErrBadMove = errors.New("invalid move")
)
