package game_test

import (
	"fmt"
	"sync"
	"time"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/storage"

	"github.com/google/uuid"
)

// fakeStore is an in-memory game.Store with the same compare-and-set
// semantics the SQL implementation has.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	chats map[string]*models.Chat
	games map[string]*models.Game
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*models.User),
		chats: make(map[string]*models.Chat),
		games: make(map[string]*models.Game),
	}
}

func (f *fakeStore) addUser(id, lang string) {
	f.users[id] = &models.User{ID: id, TelegramID: 1, Language: lang}
}

func (f *fakeStore) addChat(id, senderID, targetID string) {
	f.chats[id] = &models.Chat{ID: id, SenderID: senderID, TargetID: targetID}
}

func (f *fakeStore) GetUserByID(id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) GetChat(chatID string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateGame(game *models.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if game.ID == "" {
		game.ID = uuid.New().String()
	}
	copied := *game
	f.games[game.ID] = &copied
	return nil
}

func (f *fakeStore) GetGame(gameID string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.games[gameID]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) GetActiveGameByChat(chatID string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.games {
		if g.ChatID == chatID && !g.Status.Terminal() {
			copied := *g
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateGameIfStatus(gameID string, expect []models.GameStatus, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range expect {
		if g.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	for column, value := range updates {
		applyColumn(g, column, value)
	}
	return true, nil
}

func applyColumn(g *models.Game, column string, value interface{}) {
	switch column {
	case "status":
		g.Status = value.(models.GameStatus)
	case "accepted":
		g.Accepted = value.(bool)
	case "initiator_stake_kind":
		g.InitiatorStakeKind = value.(models.StakeKind)
	case "initiator_stake_file_id":
		g.InitiatorStakeFileID = value.(string)
	case "opponent_stake_kind":
		g.OpponentStakeKind = value.(models.StakeKind)
	case "opponent_stake_file_id":
		g.OpponentStakeFileID = value.(string)
	case "initiator_move":
		g.InitiatorMove = models.Move(fmt.Sprintf("%v", value))
	case "opponent_move":
		g.OpponentMove = models.Move(fmt.Sprintf("%v", value))
	case "initiator_wins":
		g.InitiatorWins = value.(int)
	case "opponent_wins":
		g.OpponentWins = value.(int)
	case "current_round":
		g.CurrentRound = value.(int)
	case "stake_delivered":
		g.StakeDelivered = value.(bool)
	}
}

// delivered is one payload captured by the recording dispatcher.
type delivered struct {
	Recipient string
	Payload   dispatch.Payload
}

// recordingDispatcher captures deliveries and can simulate unreachable users.
type recordingDispatcher struct {
	mu          sync.Mutex
	Deliveries  []delivered
	Unreachable map[string]bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Unreachable: make(map[string]bool)}
}

func (d *recordingDispatcher) Deliver(recipient string, p dispatch.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Unreachable[recipient] {
		return dispatch.ErrUnreachable
	}
	d.Deliveries = append(d.Deliveries, delivered{Recipient: recipient, Payload: p})
	return nil
}

// textsTo returns the text payloads delivered to one recipient.
func (d *recordingDispatcher) textsTo(recipient string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var texts []string
	for _, rec := range d.Deliveries {
		if rec.Recipient == recipient && rec.Payload.Kind == models.KindText {
			texts = append(texts, rec.Payload.Text)
		}
	}
	return texts
}

// mediaTo returns the media payloads delivered to one recipient.
func (d *recordingDispatcher) mediaTo(recipient string) []dispatch.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	var media []dispatch.Payload
	for _, rec := range d.Deliveries {
		if rec.Recipient == recipient && rec.Payload.Kind != models.KindText {
			media = append(media, rec.Payload)
		}
	}
	return media
}

// scheduledTimer is one deadline captured by the stub scheduler.
type scheduledTimer struct {
	Kind   string
	GameID string
	Role   string
	Round  int
	Delay  time.Duration
}

// stubScheduler records armed deadlines without firing anything.
type stubScheduler struct {
	mu     sync.Mutex
	Timers []scheduledTimer
}

func (s *stubScheduler) StakeTimeout(gameID, role string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timers = append(s.Timers, scheduledTimer{Kind: "stake", GameID: gameID, Role: role, Delay: delay})
	return nil
}

func (s *stubScheduler) AcceptTimeout(gameID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timers = append(s.Timers, scheduledTimer{Kind: "accept", GameID: gameID, Delay: delay})
	return nil
}

func (s *stubScheduler) MoveTimeout(gameID string, round int, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timers = append(s.Timers, scheduledTimer{Kind: "move", GameID: gameID, Round: round, Delay: delay})
	return nil
}

// keyLocalizer returns translation keys verbatim so tests assert on keys.
type keyLocalizer struct{}

func (keyLocalizer) GetString(lang, key string) string { return key }

func (keyLocalizer) GetStringf(lang, key string, args ...interface{}) string { return key }

// renderLocalizer appends the format args to the key so tests can assert on
// the values a notice actually carries.
type renderLocalizer struct{}

func (renderLocalizer) GetString(lang, key string) string { return key }

func (renderLocalizer) GetStringf(lang, key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf("%s %v", key, args)
}
