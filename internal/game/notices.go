package game

import (
	"log"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
)

// Callback data prefixes for the game's inline buttons. The command surface
// parses these back out of button presses.
const (
	CallbackAccept  = "rps:accept:"
	CallbackDecline = "rps:decline:"
	CallbackMove    = "rps:move:"
)

// langOf resolves the notification language for a user, defaulting to English.
func (e *Engine) langOf(userID string) string {
	user, err := e.Store.GetUserByID(userID)
	if err != nil || user.Language == "" {
		return "en"
	}
	return user.Language
}

// notify sends a localized text notice. Notices are best-effort: a failed
// delivery is logged and never blocks the game's state machine.
func (e *Engine) notify(userID, key string, args ...interface{}) {
	lang := e.langOf(userID)
	p := dispatch.Text(e.Loc.GetStringf(lang, key, args...))
	if err := e.Dispatcher.Deliver(userID, p); err != nil {
		log.Printf("WARN: Failed to deliver game notice %s to %s: %v", key, userID, err)
	}
}

// notifyButtons sends a localized prompt with an inline keyboard attached.
func (e *Engine) notifyButtons(userID string, buttons [][]dispatch.Button, key string, args ...interface{}) error {
	lang := e.langOf(userID)
	p := dispatch.Text(e.Loc.GetStringf(lang, key, args...))
	p.Buttons = buttons
	return e.Dispatcher.Deliver(userID, p)
}

// moveLabel returns the localized button label for a move.
func (e *Engine) moveLabel(lang string, m models.Move) string {
	switch m {
	case models.MoveRock:
		return e.Loc.GetString(lang, "game.move_rock")
	case models.MoveScissors:
		return e.Loc.GetString(lang, "game.move_scissors")
	case models.MovePaper:
		return e.Loc.GetString(lang, "game.move_paper")
	default:
		// Never a legal move; surface the raw value instead of guessing.
		return string(m)
	}
}

// moveKeyboard builds the three-move inline keyboard for one game.
func (e *Engine) moveKeyboard(lang, gameID string) [][]dispatch.Button {
	row := make([]dispatch.Button, 0, 3)
	for _, m := range []models.Move{models.MoveRock, models.MoveScissors, models.MovePaper} {
		row = append(row, dispatch.Button{
			Label: e.moveLabel(lang, m),
			Data:  CallbackMove + gameID + ":" + string(m),
		})
	}
	return [][]dispatch.Button{row}
}

// promptMoves asks both players for their round moves.
func (e *Engine) promptMoves(g *models.Game) {
	for _, playerID := range []string{g.InitiatorID, g.OpponentID} {
		lang := e.langOf(playerID)
		if err := e.notifyButtons(playerID, e.moveKeyboard(lang, g.ID), "game.round_prompt", g.CurrentRound); err != nil {
			log.Printf("WARN: Failed to prompt player %s for round %d of game %s: %v",
				playerID, g.CurrentRound, g.ID, err)
		}
	}
}

// stakePayload converts a stored stake into a deliverable media payload.
func stakePayload(kind models.StakeKind, fileID, caption string) dispatch.Payload {
	var mk models.MessageKind
	switch kind {
	case models.StakePhoto:
		mk = models.KindPhoto
	case models.StakeVideo:
		mk = models.KindVideo
	default:
		mk = models.KindVoice
	}
	return dispatch.Media(mk, fileID, caption)
}
