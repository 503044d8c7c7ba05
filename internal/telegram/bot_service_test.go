package telegram

import (
	"errors"
	"testing"
	"time"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/localization"
	"duelchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

// TestExtractMediaInfo covers the content kinds the relay accepts.
func TestExtractMediaInfo(t *testing.T) {
	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		kind   models.MessageKind
		fileID string
	}{
		{
			name: "text",
			msg:  &tgbotapi.Message{Text: "hello"},
			kind: models.KindText,
		},
		{
			name: "photo picks largest size",
			msg: &tgbotapi.Message{
				Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
				Caption: "look",
			},
			kind:   models.KindPhoto,
			fileID: "large",
		},
		{
			name:   "voice",
			msg:    &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "v1"}},
			kind:   models.KindVoice,
			fileID: "v1",
		},
		{
			name:   "video note",
			msg:    &tgbotapi.Message{VideoNote: &tgbotapi.VideoNote{FileID: "vn1"}},
			kind:   models.KindVideoNote,
			fileID: "vn1",
		},
		{
			name:   "sticker",
			msg:    &tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s1"}},
			kind:   models.KindSticker,
			fileID: "s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, fileID, _ := extractMediaInfo(tt.msg)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.fileID, fileID)
		})
	}
}

func TestExtractMediaInfo_TextUsesBody(t *testing.T) {
	kind, _, caption := extractMediaInfo(&tgbotapi.Message{Text: "hello"})
	assert.Equal(t, models.KindText, kind)
	assert.Equal(t, "hello", caption)
}

// TestBuildKeyboard verifies row/button mapping into the Telegram markup.
func TestBuildKeyboard(t *testing.T) {
	assert.Nil(t, buildKeyboard(nil))

	rows := [][]dispatch.Button{
		{{Label: "Accept", Data: "rps:accept:g1"}, {Label: "Decline", Data: "rps:decline:g1"}},
		{{Label: "Report", Data: "report:c1"}},
	}
	markup := buildKeyboard(rows)
	assert.NotNil(t, markup)
	assert.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "Accept", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "rps:accept:g1", *markup.InlineKeyboard[0][0].CallbackData)
}

// TestSenderCard covers the contact line a profile owner sees when someone
// opens a chat with them: badge, name, age and gender of the sender.
func TestSenderCard(t *testing.T) {
	loc, err := localization.NewLocalizer()
	assert.NoError(t, err)
	s := &BotService{Localizer: loc}

	until := time.Now().Add(time.Hour)
	full := s.senderCard(&models.User{
		Name: "Anna", Age: 25, Gender: "female",
		Premium: true, PremiumUntil: &until,
	}, "en")
	assert.Contains(t, full, "👑")
	assert.Contains(t, full, "Anna, 25")
	assert.Contains(t, full, loc.GetString("en", "profile.gender_female"))

	// No attributes at all still yields a readable line.
	assert.Equal(t, loc.GetString("en", "profile.someone"), s.senderCard(&models.User{}, "en"))

	// A lapsed premium loses the badge.
	lapsed := time.Now().Add(-time.Hour)
	expired := s.senderCard(&models.User{Name: "Max", Premium: true, PremiumUntil: &lapsed}, "en")
	assert.NotContains(t, expired, "👑")
	assert.Contains(t, expired, "Max")
}

// TestIsForbidden verifies the unreachable-recipient detection.
func TestIsForbidden(t *testing.T) {
	assert.True(t, isForbidden(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}))
	assert.False(t, isForbidden(&tgbotapi.Error{Code: 400, Message: "Bad Request"}))
	assert.True(t, isForbidden(errors.New("Forbidden: user is deactivated")))
	assert.False(t, isForbidden(errors.New("connection reset")))
}
