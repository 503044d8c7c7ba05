// Package game runs the wagered best-of-N rock/paper/scissors match inside a
// chat: challenge, stake collection, rounds, timeouts and the at-most-once
// hand-over of the loser's stake.
package game

import (
	"errors"
	"log"
	"sync"

	"duelchat/backend/internal/config"
	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/sched"
)

// Store is the subset of the session store the engine needs. Every status
// transition goes through UpdateGameIfStatus, so a transition observed by a
// timeout callback and by a player action can only be applied once.
type Store interface {
	GetUserByID(id string) (*models.User, error)
	GetChat(chatID string) (*models.Chat, error)
	CreateGame(game *models.Game) error
	GetGame(gameID string) (*models.Game, error)
	GetActiveGameByChat(chatID string) (*models.Game, error)
	UpdateGameIfStatus(gameID string, expect []models.GameStatus, updates map[string]interface{}) (bool, error)
}

type Engine struct {
	Store      Store
	Dispatcher dispatch.Dispatcher
	Sched      sched.Scheduler
	Loc        Localizer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Localizer keeps the engine decoupled from the concrete translation source
// used at wiring time.
type Localizer interface {
	GetString(lang, key string) string
	GetStringf(lang, key string, args ...interface{}) string
}

func NewEngine(store Store, d dispatch.Dispatcher, s sched.Scheduler, loc Localizer) *Engine {
	return &Engine{
		Store:      store,
		Dispatcher: d,
		Sched:      s,
		Loc:        loc,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor serializes all in-process work on one game (or one chat, for game
// creation). Cross-process safety comes from the conditional status updates.
func (e *Engine) lockFor(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// dropLock forgets a game's mutex once the game is terminal, so the map does
// not grow with every match ever played. A late caller gets a fresh mutex and
// is then rejected by the conditional status update anyway.
func (e *Engine) dropLock(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, key)
}

var awaitingMoveStatuses = []models.GameStatus{
	models.StatusWaitingMoveBoth,
	models.StatusWaitingMoveInitiator,
	models.StatusWaitingMoveOpponent,
}

// Challenge starts a new match in the chat. The initiator is immediately
// prompted for their stake; nothing reaches the opponent until that stake is
// in, so a never-funded challenge stays invisible to the other side.
func (e *Engine) Challenge(chatID, initiatorID string) (*models.Game, error) {
	lock := e.lockFor("chat:" + chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := e.Store.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(initiatorID) {
		return nil, ErrNotParticipant
	}
	if chat.Closed {
		return nil, ErrChatClosed
	}

	active, err := e.Store.GetActiveGameByChat(chatID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrGameActive
	}

	g := &models.Game{
		ChatID:       chatID,
		InitiatorID:  initiatorID,
		OpponentID:   chat.Peer(initiatorID),
		WinsTarget:   config.DefaultWinsTarget,
		Status:       models.StatusWaitingStakeInitiator,
		CurrentRound: 1,
	}
	if err := e.Store.CreateGame(g); err != nil {
		return nil, err
	}
	log.Printf("INFO: Game %s started in chat %s by %s.", g.ID, chatID, initiatorID)

	e.notify(initiatorID, "game.upload_stake", int(config.StakeUploadTimeout.Seconds()))
	if err := e.Sched.StakeTimeout(g.ID, sched.RoleInitiator, config.StakeUploadTimeout); err != nil {
		log.Printf("WARN: Failed to arm stake timeout for game %s: %v", g.ID, err)
	}
	return g, nil
}

// SubmitStake records a player's wagered media. For the initiator this sends
// the challenge onward to the opponent; for the opponent it starts round one.
func (e *Engine) SubmitStake(gameID, userID string, kind models.StakeKind, fileID string) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if err != nil {
		return err
	}
	if !g.HasParticipant(userID) {
		return ErrNotYourGame
	}
	if !kind.Valid() {
		return ErrBadStake
	}

	switch {
	case userID == g.InitiatorID && g.Status == models.StatusWaitingStakeInitiator:
		return e.submitInitiatorStake(g, kind, fileID)
	case userID == g.OpponentID && g.Status == models.StatusWaitingStakeOpponent && g.Accepted:
		return e.submitOpponentStake(g, kind, fileID)
	default:
		return ErrNotActive
	}
}

func (e *Engine) submitInitiatorStake(g *models.Game, kind models.StakeKind, fileID string) error {
	applied, err := e.Store.UpdateGameIfStatus(g.ID,
		[]models.GameStatus{models.StatusWaitingStakeInitiator},
		map[string]interface{}{
			"status":                  models.StatusWaitingStakeOpponent,
			"initiator_stake_kind":    kind,
			"initiator_stake_file_id": fileID,
		})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}
	e.notify(g.InitiatorID, "game.stake_received")

	lang := e.langOf(g.OpponentID)
	buttons := [][]dispatch.Button{{
		{Label: e.Loc.GetString(lang, "game.accept"), Data: CallbackAccept + g.ID},
		{Label: e.Loc.GetString(lang, "game.decline"), Data: CallbackDecline + g.ID},
	}}
	err = e.notifyButtons(g.OpponentID, buttons, "game.challenge", g.WinsTarget)
	if errors.Is(err, dispatch.ErrUnreachable) {
		// Challenge can never be answered; fold the game right away.
		applied, cErr := e.Store.UpdateGameIfStatus(g.ID,
			[]models.GameStatus{models.StatusWaitingStakeOpponent},
			map[string]interface{}{"status": models.StatusCancelled})
		if cErr != nil {
			return cErr
		}
		if applied {
			log.Printf("WARN: Game %s cancelled, opponent %s unreachable.", g.ID, g.OpponentID)
			e.notify(g.InitiatorID, "game.cancelled_unreachable")
			e.dropLock(g.ID)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.Sched.AcceptTimeout(g.ID, config.AcceptTimeout); err != nil {
		log.Printf("WARN: Failed to arm accept timeout for game %s: %v", g.ID, err)
	}
	return nil
}

func (e *Engine) submitOpponentStake(g *models.Game, kind models.StakeKind, fileID string) error {
	applied, err := e.Store.UpdateGameIfStatus(g.ID,
		[]models.GameStatus{models.StatusWaitingStakeOpponent},
		map[string]interface{}{
			"status":                 models.StatusWaitingMoveBoth,
			"opponent_stake_kind":    kind,
			"opponent_stake_file_id": fileID,
		})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}
	e.notify(g.OpponentID, "game.stake_received")

	g.Status = models.StatusWaitingMoveBoth
	e.promptMoves(g)
	if err := e.Sched.MoveTimeout(g.ID, g.CurrentRound, config.MoveTimeout); err != nil {
		log.Printf("WARN: Failed to arm move timeout for game %s: %v", g.ID, err)
	}
	return nil
}

// Accept marks the opponent's consent and prompts them for their stake.
// Valid only while the challenge is pending and unanswered.
func (e *Engine) Accept(gameID, userID string) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if err != nil {
		return err
	}
	if userID != g.OpponentID {
		return ErrNotYourGame
	}
	if g.Status != models.StatusWaitingStakeOpponent || g.Accepted {
		return ErrNotActive
	}

	applied, err := e.Store.UpdateGameIfStatus(gameID,
		[]models.GameStatus{models.StatusWaitingStakeOpponent},
		map[string]interface{}{"accepted": true})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}

	e.notify(userID, "game.upload_stake", int(config.StakeUploadTimeout.Seconds()))
	if err := e.Sched.StakeTimeout(gameID, sched.RoleOpponent, config.StakeUploadTimeout); err != nil {
		log.Printf("WARN: Failed to arm stake timeout for game %s: %v", gameID, err)
	}
	return nil
}

// Decline cancels the challenge before any opposing stake exists. Neither
// stake is ever revealed.
func (e *Engine) Decline(gameID, userID string) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if err != nil {
		return err
	}
	if userID != g.OpponentID {
		return ErrNotYourGame
	}
	if g.Status != models.StatusWaitingStakeOpponent || g.Accepted {
		return ErrNotActive
	}

	applied, err := e.Store.UpdateGameIfStatus(gameID,
		[]models.GameStatus{models.StatusWaitingStakeOpponent},
		map[string]interface{}{"status": models.StatusCancelled})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}
	log.Printf("INFO: Game %s declined by opponent %s.", gameID, userID)

	e.notify(g.OpponentID, "game.declined_you")
	e.notify(g.InitiatorID, "game.declined_peer")
	e.dropLock(gameID)
	return nil
}

// SubmitMove records one player's hand for the current round. When the second
// hand arrives the round resolves synchronously in the same call.
func (e *Engine) SubmitMove(gameID, userID string, move models.Move) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if err != nil {
		return err
	}
	if !g.HasParticipant(userID) {
		return ErrNotYourGame
	}
	if !move.Valid() {
		return ErrBadMove
	}
	if !g.Status.AwaitingMoves() {
		return ErrNotActive
	}
	if g.MoveOf(userID) != "" {
		return ErrAlreadyMoved
	}

	updates := map[string]interface{}{}
	var bothMoved bool
	if userID == g.InitiatorID {
		updates["initiator_move"] = move
		g.InitiatorMove = move
		if g.OpponentMove != "" {
			bothMoved = true
		} else {
			updates["status"] = models.StatusWaitingMoveOpponent
			g.Status = models.StatusWaitingMoveOpponent
		}
	} else {
		updates["opponent_move"] = move
		g.OpponentMove = move
		if g.InitiatorMove != "" {
			bothMoved = true
		} else {
			updates["status"] = models.StatusWaitingMoveInitiator
			g.Status = models.StatusWaitingMoveInitiator
		}
	}

	applied, err := e.Store.UpdateGameIfStatus(gameID, awaitingMoveStatuses, updates)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}

	if bothMoved {
		return e.resolveRound(g)
	}
	e.notify(userID, "game.move_recorded")
	return nil
}

// resolveRound settles the current round from both committed moves. Called
// with the game lock held.
func (e *Engine) resolveRound(g *models.Game) error {
	im, om := g.InitiatorMove, g.OpponentMove
	round := g.CurrentRound

	if im == om {
		if err := e.advanceRound(g, nil); err != nil {
			return err
		}
		for _, playerID := range []string{g.InitiatorID, g.OpponentID} {
			e.notify(playerID, "game.round_tie", round, e.moveLabel(e.langOf(playerID), im))
		}
		e.promptMoves(g)
		return nil
	}

	// The moves are captured here: by the time the notice closure runs,
	// advanceRound has already cleared them for the next round.
	winnerID, winnerMove, loserMove := g.OpponentID, om, im
	if im.Beats(om) {
		winnerID, winnerMove, loserMove = g.InitiatorID, im, om
	}
	return e.settleRoundWin(g, winnerID, func(playerID string) {
		lang := e.langOf(playerID)
		if playerID == winnerID {
			e.notify(playerID, "game.round_win", round,
				e.moveLabel(lang, winnerMove), e.moveLabel(lang, loserMove),
				e.winsOf(g, playerID), e.winsOf(g, g.Other(playerID)))
		} else {
			e.notify(playerID, "game.round_loss", round,
				e.moveLabel(lang, loserMove), e.moveLabel(lang, winnerMove),
				e.winsOf(g, playerID), e.winsOf(g, g.Other(playerID)))
		}
	})
}

func (e *Engine) winsOf(g *models.Game, playerID string) int {
	if playerID == g.InitiatorID {
		return g.InitiatorWins
	}
	return g.OpponentWins
}

// settleRoundWin credits the round to winnerID and either finishes the match
// or advances to the next round. notice is invoked per player after the state
// transition committed, so notices always describe durable facts.
func (e *Engine) settleRoundWin(g *models.Game, winnerID string, notice func(playerID string)) error {
	if winnerID == g.InitiatorID {
		g.InitiatorWins++
	} else {
		g.OpponentWins++
	}
	wins := map[string]interface{}{
		"initiator_wins": g.InitiatorWins,
		"opponent_wins":  g.OpponentWins,
	}

	if e.winsOf(g, winnerID) >= g.WinsTarget {
		return e.finishMatch(g, winnerID, wins, notice)
	}

	if err := e.advanceRound(g, wins); err != nil {
		return err
	}
	if notice != nil {
		notice(g.InitiatorID)
		notice(g.OpponentID)
	}
	e.promptMoves(g)
	return nil
}

// advanceRound clears the moves and arms the next round's timer. extra merges
// additional column updates (score) into the same transition.
func (e *Engine) advanceRound(g *models.Game, extra map[string]interface{}) error {
	next := g.CurrentRound + 1
	updates := map[string]interface{}{
		"status":         models.StatusWaitingMoveBoth,
		"current_round":  next,
		"initiator_move": "",
		"opponent_move":  "",
	}
	for k, v := range extra {
		updates[k] = v
	}
	applied, err := e.Store.UpdateGameIfStatus(g.ID, awaitingMoveStatuses, updates)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}

	g.Status = models.StatusWaitingMoveBoth
	g.CurrentRound = next
	g.InitiatorMove = ""
	g.OpponentMove = ""

	if err := e.Sched.MoveTimeout(g.ID, next, config.MoveTimeout); err != nil {
		log.Printf("WARN: Failed to arm move timeout for game %s round %d: %v", g.ID, next, err)
	}
	return nil
}

// finishMatch commits the terminal transition and hands the loser's stake to
// the winner. The conditional update doubles as the at-most-once guard: only
// the single caller that flips the status performs the delivery, and a failed
// delivery is never retried.
func (e *Engine) finishMatch(g *models.Game, winnerID string, extra map[string]interface{}, notice func(playerID string)) error {
	updates := map[string]interface{}{
		"status":          models.StatusFinished,
		"stake_delivered": true,
	}
	for k, v := range extra {
		updates[k] = v
	}
	applied, err := e.Store.UpdateGameIfStatus(g.ID, awaitingMoveStatuses, updates)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotActive
	}
	g.Status = models.StatusFinished
	loserID := g.Other(winnerID)
	log.Printf("INFO: Game %s finished, winner %s (%d:%d).",
		g.ID, winnerID, e.winsOf(g, winnerID), e.winsOf(g, loserID))

	if notice != nil {
		notice(g.InitiatorID)
		notice(g.OpponentID)
	}
	e.notify(winnerID, "game.match_win", e.winsOf(g, winnerID), e.winsOf(g, loserID))

	kind, fileID := g.StakeOf(loserID)
	caption := e.Loc.GetString(e.langOf(winnerID), "game.stake_caption")
	if err := e.Dispatcher.Deliver(winnerID, stakePayload(kind, fileID, caption)); err != nil {
		// At-most-once: the hand-over is not retried, only recorded as lost.
		log.Printf("ERROR: Failed to deliver stake of game %s to winner %s: %v", g.ID, winnerID, err)
	}
	e.notify(loserID, "game.match_loss", e.winsOf(g, loserID), e.winsOf(g, winnerID))
	e.dropLock(g.ID)
	return nil
}
