package localization_test

import (
	"testing"

	"duelchat/backend/internal/localization"

	"github.com/stretchr/testify/assert"
)

// TestGetString_FallsBackToEnglish verifies unknown languages fall back.
func TestGetString_FallsBackToEnglish(t *testing.T) {
	l, err := localization.NewLocalizer()
	assert.NoError(t, err)

	en := l.GetString("en", "game.accept")
	assert.NotEqual(t, "game.accept", en, "English must define game.accept")

	assert.Equal(t, en, l.GetString("de", "game.accept"))
}

// TestGetString_UnknownKeyReturnsKey verifies the key itself is the fallback.
func TestGetString_UnknownKeyReturnsKey(t *testing.T) {
	l, err := localization.NewLocalizer()
	assert.NoError(t, err)

	assert.Equal(t, "no.such.key", l.GetString("en", "no.such.key"))
}

// TestGetStringf_FormatsArguments verifies formatted lookups.
func TestGetStringf_FormatsArguments(t *testing.T) {
	l, err := localization.NewLocalizer()
	assert.NoError(t, err)

	out := l.GetStringf("en", "game.round_prompt", 2)
	assert.Contains(t, out, "2")
}

// TestLocales_CoverSameKeys verifies every game and chat notice exists in
// both shipped languages.
func TestLocales_CoverSameKeys(t *testing.T) {
	l, err := localization.NewLocalizer()
	assert.NoError(t, err)

	keys := []string{
		"chat.opened", "chat.closed", "chat.unreachable", "chat.no_active",
		"chat.peer_opened", "profile.someone",
		"profile.gender_male", "profile.gender_female", "profile.gender_other",
		"game.upload_stake", "game.challenge", "game.accept", "game.decline",
		"game.round_prompt", "game.round_win", "game.round_loss", "game.round_tie",
		"game.round_forfeit_win", "game.round_forfeit_loss",
		"game.match_win", "game.match_loss", "game.cancelled_idle",
	}
	for _, key := range keys {
		assert.NotEqual(t, key, l.GetString("en", key), "missing en key %s", key)
		assert.NotEqual(t, key, l.GetString("ru", key), "missing ru key %s", key)
	}
}
