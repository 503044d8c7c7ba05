// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, translating them into
// relay and game operations, and delivering outbound payloads back to users.
package telegram

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"duelchat/backend/internal/config"
	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/game"
	"duelchat/backend/internal/localization"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/relay"
	"duelchat/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const stateAwaitingReportReason = "awaiting_report_reason"

// Callback data prefixes for the chat-side inline buttons. Game prefixes live
// in the game package.
const (
	cbOpenProfile = "openchat:"
	cbOpenChat    = "openchatid:"
	cbCloseChat   = "closechat:"
	cbReport      = "report:"
	cbStartRPS    = "rps:start:"
	cbSetLang     = "set_lang_"
)

// BotService is responsible for receiving Telegram updates and routing them
// to the relay channel and the game engine.
type BotService struct {
	BotAPI     *tgbotapi.BotAPI
	Storage    storage.Storage
	Relay      *relay.Service
	Game       *game.Engine
	Dispatcher dispatch.Dispatcher
	Localizer  *localization.Localizer

	userStates   map[int64]string
	reportBuffer map[int64]string
}

// NewBotService creates a new BotService instance. Relay, Game and Dispatcher
// are wired in afterwards because they all need the bot's API handle.
func NewBotService(token string, s storage.Storage) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to create localizer: %w", err)
	}

	return &BotService{
		BotAPI:       bot,
		Storage:      s,
		Localizer:    localizer,
		userStates:   make(map[int64]string),
		reportBuffer: make(map[int64]string),
	}, nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.Message != nil:
			if update.Message.IsCommand() {
				s.handleCommand(update.Message)
				continue
			}
			s.handleIncomingMessage(update.Message)
		case update.CallbackQuery != nil:
			s.handleCallbackQuery(update.CallbackQuery)
		}
	}
}

// reply sends a localized text to a Telegram chat, optionally with a keyboard.
func (s *BotService) reply(tgChatID int64, lang, key string, args ...interface{}) {
	msg := tgbotapi.NewMessage(tgChatID, s.Localizer.GetStringf(lang, key, args...))
	if _, err := s.BotAPI.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send reply %s to %d: %v", key, tgChatID, err)
	}
}

// ensureUser resolves (creating on first contact) the internal user for a
// Telegram chat and drops the update when the user is banned.
func (s *BotService) ensureUser(tgChatID int64) *models.User {
	user, err := s.Storage.SaveUserIfNotExists(tgChatID)
	if err != nil {
		return nil
	}
	banned, err := s.Storage.IsUserBanned(user.ID)
	if err != nil {
		log.Printf("WARN: Ban check failed for user %s: %v", user.ID, err)
	}
	if banned {
		log.Printf("INFO: Dropping update from banned user %s.", user.ID)
		return nil
	}
	return user
}

func (s *BotService) handleCommand(msg *tgbotapi.Message) {
	user := s.ensureUser(msg.Chat.ID)
	if user == nil {
		return
	}

	switch msg.Command() {
	case "start":
		s.reply(msg.Chat.ID, user.Language, "start.welcome")
	case "chats":
		s.handleChatsCommand(msg.Chat.ID, user)
	case "language":
		s.handleLanguageCommand(msg.Chat.ID, user)
	default:
		s.reply(msg.Chat.ID, user.Language, "start.welcome")
	}
}

// handleChatsCommand lists the user's open chats as selectable buttons.
func (s *BotService) handleChatsCommand(tgChatID int64, user *models.User) {
	summaries, err := s.Relay.ListOpenChats(user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to list chats for user %s: %v", user.ID, err)
		return
	}
	if len(summaries) == 0 {
		s.reply(tgChatID, user.Language, "chat.list_empty")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(summaries))
	for _, summary := range summaries {
		label := s.Localizer.GetStringf(user.Language, "chat.list_item",
			summary.CreatedAt.Format("02.01 15:04"), summary.Unread)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbOpenChat+summary.ID),
		))
	}

	listMsg := tgbotapi.NewMessage(tgChatID, s.Localizer.GetString(user.Language, "chat.list_header"))
	listMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	s.BotAPI.Send(listMsg)
}

// handleLanguageCommand sends a message with a keyboard to choose a language.
func (s *BotService) handleLanguageCommand(tgChatID int64, user *models.User) {
	msg := tgbotapi.NewMessage(tgChatID, s.Localizer.GetString(user.Language, "choose_language"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("English", cbSetLang+"en"),
			tgbotapi.NewInlineKeyboardButtonData("Русский", cbSetLang+"ru"),
		),
	)
	s.BotAPI.Send(msg)
}

// handleIncomingMessage processes non-command messages: pending report
// reasons, stake uploads, and regular relayed content, in that priority.
func (s *BotService) handleIncomingMessage(msg *tgbotapi.Message) {
	user := s.ensureUser(msg.Chat.ID)
	if user == nil {
		return
	}

	if s.userStates[msg.Chat.ID] == stateAwaitingReportReason {
		s.submitReport(msg, user)
		return
	}

	kind, fileID, caption := extractMediaInfo(msg)

	// A pending stake upload claims the next media message.
	if gameID, _ := s.Storage.GetAwaitingStake(user.ID); gameID != "" && kind != models.KindText {
		s.submitStake(msg.Chat.ID, user, gameID, kind, fileID)
		return
	}

	chatID, err := s.Storage.GetActiveChat(user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to read active chat for user %s: %v", user.ID, err)
		return
	}
	if chatID == "" {
		s.reply(msg.Chat.ID, user.Language, "chat.no_active")
		return
	}

	payload := dispatch.Payload{Kind: kind, Text: caption, FileID: fileID}
	if kind == models.KindText {
		payload.Text = msg.Text
	}

	_, err = s.Relay.Relay(chatID, user.ID, payload)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrChatClosed):
		s.Storage.ClearActiveChat(user.ID)
		s.reply(msg.Chat.ID, user.Language, "chat.closed")
	case errors.Is(err, relay.ErrPeerBlocked):
		s.reply(msg.Chat.ID, user.Language, "chat.blocked")
	case errors.Is(err, relay.ErrUnsupportedPayload):
		s.reply(msg.Chat.ID, user.Language, "chat.unsupported")
	case errors.Is(err, relay.ErrPeerUnreachable):
		s.reply(msg.Chat.ID, user.Language, "chat.unreachable")
	default:
		log.Printf("ERROR: Relay failed for chat %s: %v", chatID, err)
	}
}

// submitStake forwards an uploaded media item to the game engine as a stake.
func (s *BotService) submitStake(tgChatID int64, user *models.User, gameID string, kind models.MessageKind, fileID string) {
	stakeKind := models.StakeKind(kind)
	if !stakeKind.Valid() {
		s.reply(tgChatID, user.Language, "game.bad_stake")
		return
	}

	err := s.Game.SubmitStake(gameID, user.ID, stakeKind, fileID)
	switch {
	case err == nil:
		s.Storage.ClearAwaitingStake(user.ID)
	case errors.Is(err, game.ErrBadStake):
		s.reply(tgChatID, user.Language, "game.bad_stake")
	case errors.Is(err, game.ErrNotActive):
		s.Storage.ClearAwaitingStake(user.ID)
		s.reply(tgChatID, user.Language, "game.not_active")
	default:
		log.Printf("ERROR: Stake submission failed for game %s: %v", gameID, err)
	}
}

// submitReport files the buffered report with the free-text reason.
func (s *BotService) submitReport(msg *tgbotapi.Message, user *models.User) {
	chatID := s.reportBuffer[msg.Chat.ID]
	delete(s.userStates, msg.Chat.ID)
	delete(s.reportBuffer, msg.Chat.ID)
	if chatID == "" {
		return
	}

	if err := s.Relay.Report(chatID, user.ID, msg.Text); err != nil {
		log.Printf("ERROR: Failed to file report for chat %s: %v", chatID, err)
		return
	}
	s.reply(msg.Chat.ID, user.Language, "chat.reported")
}

func (s *BotService) handleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state
	callback := tgbotapi.NewCallback(callbackQuery.ID, "")
	if _, err := s.BotAPI.Request(callback); err != nil {
		log.Printf("failed to send callback response: %v", err)
	}

	tgChatID := callbackQuery.Message.Chat.ID
	user := s.ensureUser(tgChatID)
	if user == nil {
		return
	}
	data := callbackQuery.Data

	switch {
	case strings.HasPrefix(data, cbSetLang):
		user.Language = strings.TrimPrefix(data, cbSetLang)
		if err := s.Storage.UpdateUser(user); err != nil {
			log.Printf("failed to update user language: %v", err)
			return
		}
		s.reply(tgChatID, user.Language, "language_changed")

	case strings.HasPrefix(data, cbOpenProfile):
		s.openProfileChat(tgChatID, user, strings.TrimPrefix(data, cbOpenProfile))

	case strings.HasPrefix(data, cbOpenChat):
		s.switchToChat(tgChatID, user, strings.TrimPrefix(data, cbOpenChat))

	case strings.HasPrefix(data, cbCloseChat):
		s.closeChat(tgChatID, user, strings.TrimPrefix(data, cbCloseChat))

	case strings.HasPrefix(data, cbReport):
		s.userStates[tgChatID] = stateAwaitingReportReason
		s.reportBuffer[tgChatID] = strings.TrimPrefix(data, cbReport)
		s.reply(tgChatID, user.Language, "report.prompt")

	case strings.HasPrefix(data, cbStartRPS):
		s.startGame(tgChatID, user, strings.TrimPrefix(data, cbStartRPS))

	case strings.HasPrefix(data, game.CallbackAccept):
		s.acceptGame(tgChatID, user, strings.TrimPrefix(data, game.CallbackAccept))

	case strings.HasPrefix(data, game.CallbackDecline):
		s.declineGame(tgChatID, user, strings.TrimPrefix(data, game.CallbackDecline))

	case strings.HasPrefix(data, game.CallbackMove):
		s.makeMove(tgChatID, user, strings.TrimPrefix(data, game.CallbackMove))
	}
}

// chatKeyboard builds the standing action row for an open chat.
func (s *BotService) chatKeyboard(lang, chatID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Localizer.GetString(lang, "btn.play_rps"), cbStartRPS+chatID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Localizer.GetString(lang, "btn.close_chat"), cbCloseChat+chatID),
			tgbotapi.NewInlineKeyboardButtonData(s.Localizer.GetString(lang, "btn.report"), cbReport+chatID),
		),
	)
}

// openProfileChat opens (or re-enters) an anonymous chat with a profile owner.
func (s *BotService) openProfileChat(tgChatID int64, user *models.User, profileID string) {
	chat, err := s.Relay.Open(user.ID, profileID)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrSelfTarget):
		s.reply(tgChatID, user.Language, "chat.self")
		return
	case errors.Is(err, relay.ErrBlocked):
		s.reply(tgChatID, user.Language, "chat.blocked")
		return
	case errors.Is(err, relay.ErrProfileInactive), errors.Is(err, storage.ErrNotFound):
		s.reply(tgChatID, user.Language, "chat.profile_inactive")
		return
	default:
		log.Printf("ERROR: Failed to open chat with profile %s: %v", profileID, err)
		return
	}

	s.Storage.SetActiveChat(user.ID, chat.ID)

	openedMsg := tgbotapi.NewMessage(tgChatID, s.Localizer.GetString(user.Language, "chat.opened"))
	openedMsg.ReplyMarkup = s.chatKeyboard(user.Language, chat.ID)
	s.BotAPI.Send(openedMsg)

	// The profile owner sees who knocked: the sender's card, not their identity.
	peerID := chat.Peer(user.ID)
	peerLang := s.langOf(peerID)
	notice := s.Localizer.GetStringf(peerLang, "chat.peer_opened", s.senderCard(user, peerLang))
	if err := s.Dispatcher.Deliver(peerID, dispatch.Text(notice)); err != nil {
		log.Printf("WARN: Failed to notify profile owner about chat %s: %v", chat.ID, err)
	}
}

// senderCard renders the contact line shown to a profile owner: premium badge,
// name, age and gender of the user who opened the chat.
func (s *BotService) senderCard(sender *models.User, lang string) string {
	card := sender.Name
	if card == "" {
		card = s.Localizer.GetString(lang, "profile.someone")
	}
	if sender.Age > 0 {
		card = fmt.Sprintf("%s, %d", card, sender.Age)
	}
	switch sender.Gender {
	case "male":
		card += " " + s.Localizer.GetString(lang, "profile.gender_male")
	case "female":
		card += " " + s.Localizer.GetString(lang, "profile.gender_female")
	case "other":
		card += " " + s.Localizer.GetString(lang, "profile.gender_other")
	}
	if sender.IsPremium(time.Now()) {
		card = "👑 " + card
	}
	return card
}

// switchToChat makes the chosen chat the active one, replays recent history
// and clears the unread counter.
func (s *BotService) switchToChat(tgChatID int64, user *models.User, chatID string) {
	history, err := s.Relay.History(chatID, user.ID, config.HistoryReplayLimit)
	if err != nil {
		if errors.Is(err, relay.ErrNotParticipant) || errors.Is(err, storage.ErrNotFound) {
			return
		}
		log.Printf("ERROR: Failed to load history for chat %s: %v", chatID, err)
		return
	}

	for _, m := range history {
		if m.SenderID == user.ID {
			continue
		}
		p := dispatch.Payload{Kind: m.Kind, Text: m.Content, FileID: m.FileID}
		if err := s.Dispatcher.Deliver(user.ID, p); err != nil {
			log.Printf("WARN: Failed to replay message %d: %v", m.ID, err)
			break
		}
	}

	if err := s.Relay.MarkRead(chatID, user.ID); err != nil {
		log.Printf("WARN: Failed to mark chat %s read: %v", chatID, err)
	}
	s.Storage.SetActiveChat(user.ID, chatID)

	switchedMsg := tgbotapi.NewMessage(tgChatID, s.Localizer.GetString(user.Language, "chat.switched"))
	switchedMsg.ReplyMarkup = s.chatKeyboard(user.Language, chatID)
	s.BotAPI.Send(switchedMsg)
}

// closeChat shuts the chat permanently for both sides.
func (s *BotService) closeChat(tgChatID int64, user *models.User, chatID string) {
	chat, err := s.Storage.GetChat(chatID)
	if err != nil {
		return
	}
	if err := s.Relay.CloseForever(chatID, user.ID); err != nil {
		if !errors.Is(err, relay.ErrNotParticipant) {
			log.Printf("ERROR: Failed to close chat %s: %v", chatID, err)
		}
		return
	}
	s.Storage.ClearActiveChat(user.ID)
	s.reply(tgChatID, user.Language, "chat.closed_you")

	peerID := chat.Peer(user.ID)
	if err := s.Dispatcher.Deliver(peerID, dispatch.Text(
		s.Localizer.GetString(s.langOf(peerID), "chat.closed_peer"))); err != nil {
		log.Printf("WARN: Failed to notify peer about closed chat %s: %v", chatID, err)
	}
}

// startGame launches a new wagered match in the chat.
func (s *BotService) startGame(tgChatID int64, user *models.User, chatID string) {
	g, err := s.Game.Challenge(chatID, user.ID)
	switch {
	case err == nil:
		s.Storage.SetAwaitingStake(user.ID, g.ID)
	case errors.Is(err, game.ErrGameActive):
		s.reply(tgChatID, user.Language, "game.already_active")
	case errors.Is(err, game.ErrChatClosed):
		s.reply(tgChatID, user.Language, "chat.closed")
	case errors.Is(err, game.ErrNotParticipant), errors.Is(err, storage.ErrNotFound):
	default:
		log.Printf("ERROR: Failed to start game in chat %s: %v", chatID, err)
	}
}

func (s *BotService) acceptGame(tgChatID int64, user *models.User, gameID string) {
	err := s.Game.Accept(gameID, user.ID)
	switch {
	case err == nil:
		s.Storage.SetAwaitingStake(user.ID, gameID)
	case errors.Is(err, game.ErrNotYourGame):
		s.reply(tgChatID, user.Language, "game.not_yours")
	case errors.Is(err, game.ErrNotActive):
		s.reply(tgChatID, user.Language, "game.not_active")
	default:
		log.Printf("ERROR: Failed to accept game %s: %v", gameID, err)
	}
}

func (s *BotService) declineGame(tgChatID int64, user *models.User, gameID string) {
	err := s.Game.Decline(gameID, user.ID)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrNotYourGame):
		s.reply(tgChatID, user.Language, "game.not_yours")
	case errors.Is(err, game.ErrNotActive):
		s.reply(tgChatID, user.Language, "game.not_active")
	default:
		log.Printf("ERROR: Failed to decline game %s: %v", gameID, err)
	}
}

// makeMove parses "gameID:move" out of the callback and submits the hand.
func (s *BotService) makeMove(tgChatID int64, user *models.User, rest string) {
	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return
	}
	gameID, move := rest[:sep], models.Move(rest[sep+1:])

	err := s.Game.SubmitMove(gameID, user.ID, move)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrAlreadyMoved):
		s.reply(tgChatID, user.Language, "game.already_moved")
	case errors.Is(err, game.ErrNotActive):
		s.reply(tgChatID, user.Language, "game.not_active")
	case errors.Is(err, game.ErrNotYourGame):
		s.reply(tgChatID, user.Language, "game.not_yours")
	default:
		log.Printf("ERROR: Failed to submit move for game %s: %v", gameID, err)
	}
}

// langOf resolves a user's language for peer-facing notices.
func (s *BotService) langOf(userID string) string {
	user, err := s.Storage.GetUserByID(userID)
	if err != nil || user.Language == "" {
		return "en"
	}
	return user.Language
}

// extractMediaInfo uniformly extracts content kind, file ID, and caption from a message.
func extractMediaInfo(msg *tgbotapi.Message) (kind models.MessageKind, fileID, caption string) {
	caption = msg.Caption
	switch {
	case msg.Photo != nil:
		kind = models.KindPhoto
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		kind = models.KindVideo
		fileID = msg.Video.FileID
	case msg.Voice != nil:
		kind = models.KindVoice
		fileID = msg.Voice.FileID
	case msg.VideoNote != nil:
		kind = models.KindVideoNote
		fileID = msg.VideoNote.FileID
	case msg.Sticker != nil:
		kind = models.KindSticker
		fileID = msg.Sticker.FileID
	case msg.Animation != nil:
		kind = models.KindAnimation
		fileID = msg.Animation.FileID
	case msg.Document != nil:
		kind = models.KindDocument
		fileID = msg.Document.FileID
	case msg.Audio != nil:
		kind = models.KindAudio
		fileID = msg.Audio.FileID
	default:
		kind = models.KindText
		caption = msg.Text
	}
	return
}
