package relay_test

import (
	"testing"

	"duelchat/backend/internal/dispatch"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/relay"
	"duelchat/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeStore is an in-memory relay.Store.
type fakeStore struct {
	profiles map[string]*models.Profile
	chats    map[string]*models.Chat
	messages []*models.Message
	blocks   map[[2]string]bool
	reports  []*models.Report
	feed     []models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*models.Profile),
		chats:    make(map[string]*models.Chat),
		blocks:   make(map[[2]string]bool),
	}
}

func (f *fakeStore) addProfile(id, ownerID string, active bool) {
	f.profiles[id] = &models.Profile{ID: id, UserID: ownerID, Active: active}
}

func (f *fakeStore) GetProfile(profileID string) (*models.Profile, error) {
	if p, ok := f.profiles[profileID]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateChat(profileID, senderID, targetID string) (*models.Chat, error) {
	for _, c := range f.chats {
		if c.ProfileID == profileID && c.SenderID == senderID && !c.Closed {
			return c, nil
		}
	}
	chat := &models.Chat{ID: uuid.New().String(), ProfileID: profileID, SenderID: senderID, TargetID: targetID}
	f.chats[chat.ID] = chat
	return chat, nil
}

func (f *fakeStore) GetChat(chatID string) (*models.Chat, error) {
	if c, ok := f.chats[chatID]; ok {
		return c, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CloseChat(chatID string) error {
	if c, ok := f.chats[chatID]; ok {
		c.Closed = true
	}
	return nil
}

func (f *fakeStore) ListOpenChats(userID string) ([]models.ChatSummary, error) {
	var out []models.ChatSummary
	for _, c := range f.chats {
		if c.Closed || !c.HasParticipant(userID) {
			continue
		}
		var unread int64
		for _, m := range f.messages {
			if m.ChatID == c.ID && m.SenderID != userID && !m.Read {
				unread++
			}
		}
		out = append(out, models.ChatSummary{Chat: *c, Unread: unread})
	}
	return out, nil
}

func (f *fakeStore) AddMessage(msg *models.Message) error {
	msg.ID = uint(len(f.messages) + 1)
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) MarkMessagesRead(chatID, readerID string) error {
	for _, m := range f.messages {
		if m.ChatID == chatID && m.SenderID != readerID {
			m.Read = true
		}
	}
	return nil
}

func (f *fakeStore) GetChatMessages(chatID string, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) BlockUser(blockerID, blockedID string) error {
	f.blocks[[2]string{blockerID, blockedID}] = true
	return nil
}

func (f *fakeStore) IsBlocked(blockerID, blockedID string) (bool, error) {
	return f.blocks[[2]string{blockerID, blockedID}], nil
}

func (f *fakeStore) AddReport(report *models.Report) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) PublishFeed(msg models.Message) error {
	f.feed = append(f.feed, msg)
	return nil
}

// stubDispatcher records deliveries, optionally refusing some recipients.
type stubDispatcher struct {
	deliveries  []string
	unreachable map[string]bool
}

func (d *stubDispatcher) Deliver(recipient string, p dispatch.Payload) error {
	if d.unreachable[recipient] {
		return dispatch.ErrUnreachable
	}
	d.deliveries = append(d.deliveries, recipient)
	return nil
}

func newTestService() (*relay.Service, *fakeStore, *stubDispatcher) {
	store := newFakeStore()
	store.addProfile("profile-bob", "bob", true)
	d := &stubDispatcher{unreachable: make(map[string]bool)}
	return relay.NewService(store, d), store, d
}

// TestOpen_Idempotent verifies repeated opens return the same chat.
func TestOpen_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()

	first, err := svc.Open("alice", "profile-bob")
	assert.NoError(t, err)
	assert.Equal(t, "bob", first.TargetID)

	second, err := svc.Open("alice", "profile-bob")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestOpen_SelfTarget(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Open("bob", "profile-bob")
	assert.ErrorIs(t, err, relay.ErrSelfTarget)
}

func TestOpen_InactiveProfile(t *testing.T) {
	svc, store, _ := newTestService()
	store.addProfile("profile-old", "carol", false)

	_, err := svc.Open("alice", "profile-old")
	assert.ErrorIs(t, err, relay.ErrProfileInactive)
}

// TestOpen_BlockedEitherDirection verifies a block in any direction prevents
// re-opening contact.
func TestOpen_BlockedEitherDirection(t *testing.T) {
	svc, store, _ := newTestService()
	store.BlockUser("bob", "alice")
	_, err := svc.Open("alice", "profile-bob")
	assert.ErrorIs(t, err, relay.ErrBlocked)

	delete(store.blocks, [2]string{"bob", "alice"})
	store.BlockUser("alice", "bob")
	_, err = svc.Open("alice", "profile-bob")
	assert.ErrorIs(t, err, relay.ErrBlocked)
}

// TestRelay_PersistsAndDelivers verifies the commit-then-deliver order and
// the feed publication.
func TestRelay_PersistsAndDelivers(t *testing.T) {
	svc, store, d := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")

	msg, err := svc.Relay(chat.ID, "alice", dispatch.Text("hello"))
	assert.NoError(t, err)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.Equal(t, "hello", msg.Content)

	assert.Len(t, store.messages, 1)
	assert.Len(t, store.feed, 1)
	assert.Equal(t, []string{"bob"}, d.deliveries)
}

func TestRelay_ClosedChat(t *testing.T) {
	svc, _, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")
	svc.CloseForever(chat.ID, "alice")

	_, err := svc.Relay(chat.ID, "alice", dispatch.Text("hello"))
	assert.ErrorIs(t, err, relay.ErrChatClosed)
}

func TestRelay_PeerBlockedSender(t *testing.T) {
	svc, store, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")
	store.BlockUser("bob", "alice")

	_, err := svc.Relay(chat.ID, "alice", dispatch.Text("hello"))
	assert.ErrorIs(t, err, relay.ErrPeerBlocked)
	assert.Empty(t, store.messages)
}

func TestRelay_UnsupportedPayload(t *testing.T) {
	svc, _, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")

	_, err := svc.Relay(chat.ID, "alice", dispatch.Payload{Kind: "poll"})
	assert.ErrorIs(t, err, relay.ErrUnsupportedPayload)
}

func TestRelay_Stranger(t *testing.T) {
	svc, _, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")

	_, err := svc.Relay(chat.ID, "mallory", dispatch.Text("hi"))
	assert.ErrorIs(t, err, relay.ErrNotParticipant)
}

// TestRelay_UnreachablePeerKeepsMessage verifies the committed message is not
// rolled back when delivery fails.
func TestRelay_UnreachablePeerKeepsMessage(t *testing.T) {
	svc, store, d := newTestService()
	d.unreachable["bob"] = true
	chat, _ := svc.Open("alice", "profile-bob")

	msg, err := svc.Relay(chat.ID, "alice", dispatch.Text("hello"))
	assert.ErrorIs(t, err, relay.ErrPeerUnreachable)
	assert.NotNil(t, msg)
	assert.Len(t, store.messages, 1)
}

// TestCloseForever_BlocksPeer verifies closing permanently blocks re-contact.
func TestCloseForever_BlocksPeer(t *testing.T) {
	svc, store, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")

	assert.NoError(t, svc.CloseForever(chat.ID, "bob"))
	assert.True(t, store.chats[chat.ID].Closed)

	blocked, _ := store.IsBlocked("bob", "alice")
	assert.True(t, blocked)

	// The pair cannot open a fresh chat afterwards.
	_, err := svc.Open("alice", "profile-bob")
	assert.ErrorIs(t, err, relay.ErrBlocked)
}

// TestMarkRead_ClearsUnread verifies the unread counter lifecycle.
func TestMarkRead_ClearsUnread(t *testing.T) {
	svc, _, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")
	svc.Relay(chat.ID, "alice", dispatch.Text("one"))
	svc.Relay(chat.ID, "alice", dispatch.Text("two"))

	summaries, _ := svc.ListOpenChats("bob")
	assert.Len(t, summaries, 1)
	assert.EqualValues(t, 2, summaries[0].Unread)

	assert.NoError(t, svc.MarkRead(chat.ID, "bob"))
	summaries, _ = svc.ListOpenChats("bob")
	assert.EqualValues(t, 0, summaries[0].Unread)
}

// TestHistory_LimitsAndOrders verifies replay returns the tail in order.
func TestHistory_LimitsAndOrders(t *testing.T) {
	svc, _, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")
	svc.Relay(chat.ID, "alice", dispatch.Text("one"))
	svc.Relay(chat.ID, "bob", dispatch.Text("two"))
	svc.Relay(chat.ID, "alice", dispatch.Text("three"))

	history, err := svc.History(chat.ID, "bob", 2)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)

	_, err = svc.History(chat.ID, "mallory", 2)
	assert.ErrorIs(t, err, relay.ErrNotParticipant)
}

// TestReport_RecordsPeer verifies the reported party is derived from the chat.
func TestReport_RecordsPeer(t *testing.T) {
	svc, store, _ := newTestService()
	chat, _ := svc.Open("alice", "profile-bob")

	assert.NoError(t, svc.Report(chat.ID, "bob", "spam"))
	assert.Len(t, store.reports, 1)
	assert.Equal(t, "alice", store.reports[0].ReportedID)
	assert.Equal(t, "bob", store.reports[0].ReporterID)
	assert.Equal(t, "spam", store.reports[0].Reason)
}
