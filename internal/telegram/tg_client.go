package telegram

import (
	"errors"
	"log"
	"strings"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client реалізує інтерфейс dispatch.Dispatcher поверх Telegram Bot API.
// Адресація йде за внутрішнім UUID користувача; конвертація у Telegram
// chat ID відбувається тут і ніде більше.
type Client struct {
	BotAPI  *tgbotapi.BotAPI
	Storage storage.Storage
}

func NewClient(bot *tgbotapi.BotAPI, s storage.Storage) *Client {
	return &Client{BotAPI: bot, Storage: s}
}

// Deliver надсилає payload користувачу. Відмова Telegram (бот заблоковано,
// чат видалено) повертається як dispatch.ErrUnreachable.
func (c *Client) Deliver(recipient string, p dispatch.Payload) error {
	user, err := c.Storage.GetUserByID(recipient)
	if err != nil {
		return err
	}
	if user.TelegramID == 0 {
		return dispatch.ErrUnreachable
	}
	chatID := user.TelegramID

	var tgMsg tgbotapi.Chattable
	markup := buildKeyboard(p.Buttons)

	switch p.Kind {
	case models.KindText:
		msg := tgbotapi.NewMessage(chatID, p.Text)
		if markup != nil {
			msg.ReplyMarkup = markup
		}
		tgMsg = msg

	case models.KindPhoto:
		photoMsg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
		photoMsg.Caption = p.Text
		tgMsg = photoMsg

	case models.KindVideo:
		videoMsg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(p.FileID))
		videoMsg.Caption = p.Text
		tgMsg = videoMsg

	case models.KindVoice:
		voiceMsg := tgbotapi.NewVoice(chatID, tgbotapi.FileID(p.FileID))
		voiceMsg.Caption = p.Text
		tgMsg = voiceMsg

	case models.KindVideoNote:
		tgMsg = tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(p.FileID))

	case models.KindSticker:
		tgMsg = tgbotapi.NewSticker(chatID, tgbotapi.FileID(p.FileID))

	case models.KindAnimation:
		animMsg := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(p.FileID))
		animMsg.Caption = p.Text
		tgMsg = animMsg

	case models.KindDocument:
		docMsg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(p.FileID))
		docMsg.Caption = p.Text
		tgMsg = docMsg

	case models.KindAudio:
		audioMsg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(p.FileID))
		audioMsg.Caption = p.Text
		tgMsg = audioMsg

	default:
		log.Printf("ERROR: Unhandled payload kind %q for recipient %s.", p.Kind, recipient)
		return errors.New("unhandled payload kind")
	}

	if _, err := c.BotAPI.Send(tgMsg); err != nil {
		if isForbidden(err) {
			return dispatch.ErrUnreachable
		}
		log.Printf("ERROR: Failed to send Telegram message to %d: %v", chatID, err)
		return err
	}
	return nil
}

// buildKeyboard converts dispatch button rows into a Telegram inline keyboard.
func buildKeyboard(rows [][]dispatch.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboard = append(keyboard, btns)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}

// isForbidden detects the Bot API rejections that mean the user can never be
// reached again on this chat (bot blocked, account deactivated).
func isForbidden(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return strings.Contains(err.Error(), "Forbidden")
}
