package game

import (
	"context"
	"errors"
	"log"

	"duelchat/backend/internal/models"
	"duelchat/backend/internal/sched"
	"duelchat/backend/internal/storage"
)

// Timeout callbacks are self-validating: a timer cannot be cancelled, so each
// handler re-reads the game and no-ops unless it is still in the exact state
// the timer was armed for. The conditional status update makes a handler that
// races a player action lose cleanly.

// HandleStakeTimeout fires when a stake-upload window expires. If the stake
// arrived in time the game has already moved on and nothing happens.
func (e *Engine) HandleStakeTimeout(ctx context.Context, gameID, role string) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var expect models.GameStatus
	switch role {
	case sched.RoleInitiator:
		expect = models.StatusWaitingStakeInitiator
	default:
		expect = models.StatusWaitingStakeOpponent
		// The accept-timeout owns the unanswered-challenge case; this timer
		// only covers an accepted challenge whose stake never arrived.
		if !g.Accepted {
			return nil
		}
	}
	if g.Status != expect {
		return nil
	}

	applied, err := e.Store.UpdateGameIfStatus(gameID,
		[]models.GameStatus{expect},
		map[string]interface{}{"status": models.StatusCancelled})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	log.Printf("INFO: Game %s cancelled, %s stake not uploaded in time.", gameID, role)

	if role == sched.RoleInitiator {
		e.notify(g.InitiatorID, "game.cancelled_stake_timeout")
	} else {
		e.notify(g.OpponentID, "game.cancelled_stake_timeout")
		e.notify(g.InitiatorID, "game.cancelled_no_answer")
	}
	e.dropLock(gameID)
	return nil
}

// HandleAcceptTimeout fires when the opponent neither accepted nor declined
// within the window.
func (e *Engine) HandleAcceptTimeout(ctx context.Context, gameID string) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if g.Status != models.StatusWaitingStakeOpponent || g.Accepted {
		return nil
	}

	applied, err := e.Store.UpdateGameIfStatus(gameID,
		[]models.GameStatus{models.StatusWaitingStakeOpponent},
		map[string]interface{}{"status": models.StatusCancelled})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	log.Printf("INFO: Game %s cancelled, challenge not answered in time.", gameID)

	e.notify(g.InitiatorID, "game.cancelled_no_answer")
	e.notify(g.OpponentID, "game.cancelled_no_answer")
	e.dropLock(gameID)
	return nil
}

// HandleMoveTimeout fires when a round's move window expires. The payload
// carries the round the timer was armed for, so a timer from an already
// settled round is ignored even though the game is still in play.
func (e *Engine) HandleMoveTimeout(ctx context.Context, gameID string, round int) error {
	lock := e.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.Store.GetGame(gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !g.Status.AwaitingMoves() || g.CurrentRound != round {
		return nil
	}

	// Nobody moved: the whole game folds with no stake revealed.
	if g.Status == models.StatusWaitingMoveBoth {
		applied, err := e.Store.UpdateGameIfStatus(gameID,
			[]models.GameStatus{models.StatusWaitingMoveBoth},
			map[string]interface{}{"status": models.StatusCancelled})
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		log.Printf("INFO: Game %s cancelled, no moves in round %d.", gameID, round)
		e.notify(g.InitiatorID, "game.cancelled_idle")
		e.notify(g.OpponentID, "game.cancelled_idle")
		e.dropLock(gameID)
		return nil
	}

	// One player moved: the round is forfeited to them.
	winnerID := g.OpponentID
	if g.Status == models.StatusWaitingMoveOpponent {
		winnerID = g.InitiatorID
	}
	log.Printf("INFO: Game %s round %d forfeited to %s on timeout.", gameID, round, winnerID)

	return e.settleRoundWin(g, winnerID, func(playerID string) {
		if playerID == winnerID {
			e.notify(playerID, "game.round_forfeit_win", round,
				e.winsOf(g, playerID), e.winsOf(g, g.Other(playerID)))
		} else {
			e.notify(playerID, "game.round_forfeit_loss", round,
				e.winsOf(g, playerID), e.winsOf(g, g.Other(playerID)))
		}
	})
}
