package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"duelchat/backend/internal/config"
	"duelchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced user/chat/game does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the session-store handle shared by every component. PostgreSQL
// (via GORM) is the single source of truth for durable records; Redis carries
// volatile per-user session state, ban flags and the live-feed pub/sub.
type Storage interface {
	SaveUserIfNotExists(telegramID int64) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByTelegramID(telegramID int64) (*models.User, error)
	UpdateUser(user *models.User) error
	GetActiveProfile(userID string) (*models.Profile, error)
	GetProfile(profileID string) (*models.Profile, error)
	AddPayment(p *models.Payment) error

	CreateChat(profileID, senderID, targetID string) (*models.Chat, error)
	GetChat(chatID string) (*models.Chat, error)
	CloseChat(chatID string) error
	ListOpenChats(userID string) ([]models.ChatSummary, error)
	AddMessage(msg *models.Message) error
	MarkMessagesRead(chatID, readerID string) error
	GetChatMessages(chatID string, limit int) ([]models.Message, error)

	BlockUser(blockerID, blockedID string) error
	IsBlocked(blockerID, blockedID string) (bool, error)

	CreateGame(game *models.Game) error
	GetGame(gameID string) (*models.Game, error)
	GetActiveGameByChat(chatID string) (*models.Game, error)
	UpdateGameIfStatus(gameID string, expect []models.GameStatus, updates map[string]interface{}) (bool, error)

	AddReport(report *models.Report) error

	IsUserBanned(userID string) (bool, error)
	SetActiveChat(userID, chatID string) error
	GetActiveChat(userID string) (string, error)
	ClearActiveChat(userID string) error
	SetAwaitingStake(userID, gameID string) error
	GetAwaitingStake(userID string) (string, error)
	ClearAwaitingStake(userID string) error

	PublishFeed(msg models.Message) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUserIfNotExists шукає користувача за TelegramID або створює нового.
func (s *Service) SaveUserIfNotExists(telegramID int64) (*models.User, error) {
	var user models.User
	defaults := models.User{TelegramID: telegramID, Language: "en"}

	result := s.DB.Where("telegram_id = ?", telegramID).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		log.Printf("ERROR: Failed to save user %d on first contact: %v", telegramID, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %s saved to database (TelegramID: %d).", user.ID, telegramID)
	}
	return &user, nil
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	err := s.DB.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser зберігає користувача в PostgreSQL
func (s *Service) UpdateUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetActiveProfile повертає активну анкету користувача, або nil якщо її немає.
func (s *Service) GetActiveProfile(userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.Where("user_id = ? AND active = ?", userID, true).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Service) GetProfile(profileID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.Where("id = ?", profileID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Service) AddPayment(p *models.Payment) error {
	return s.DB.Create(p).Error
}

// CreateChat створює чат для пари (анкета, відправник). Ідемпотентно:
// якщо незакритий чат для пари вже існує — повертаємо його, а не дублюємо.
func (s *Service) CreateChat(profileID, senderID, targetID string) (*models.Chat, error) {
	var existing models.Chat
	err := s.DB.Where("profile_id = ? AND sender_id = ? AND closed = ?", profileID, senderID, false).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat := models.Chat{
		ProfileID: profileID,
		SenderID:  senderID,
		TargetID:  targetID,
		CreatedAt: time.Now(),
	}
	if err := s.DB.Create(&chat).Error; err != nil {
		log.Printf("ERROR: Failed to create chat for profile %s: %v", profileID, err)
		return nil, err
	}
	return &chat, nil
}

func (s *Service) GetChat(chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.DB.Where("id = ?", chatID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get chat %s: %v", chatID, err)
		return nil, err
	}
	return &chat, nil
}

// CloseChat позначає чат закритим назавжди. Безпечно викликати повторно.
func (s *Service) CloseChat(chatID string) error {
	return s.DB.Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("closed", true).Error
}

// ListOpenChats повертає незакриті чати користувача, найновіші першими,
// кожен з кількістю непрочитаних повідомлень для цього користувача.
func (s *Service) ListOpenChats(userID string) ([]models.ChatSummary, error) {
	var chats []models.Chat
	err := s.DB.Where("(sender_id = ? OR target_id = ?) AND closed = ?", userID, userID, false).
		Order("created_at DESC").
		Find(&chats).Error
	if err != nil {
		log.Printf("ERROR: Failed to list open chats for user %s: %v", userID, err)
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		var unread int64
		err := s.DB.Model(&models.Message{}).
			Where("chat_id = ? AND sender_id != ? AND read = ?", chat.ID, userID, false).
			Count(&unread).Error
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ChatSummary{Chat: chat, Unread: unread})
	}
	return summaries, nil
}

func (s *Service) AddMessage(msg *models.Message) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for chat %s: %v", msg.ChatID, err)
		return err
	}
	return nil
}

// MarkMessagesRead ставить прапорець read на всі повідомлення чату,
// автором яких не є читач.
func (s *Service) MarkMessagesRead(chatID, readerID string) error {
	return s.DB.Model(&models.Message{}).
		Where("chat_id = ? AND sender_id != ? AND read = ?", chatID, readerID, false).
		Update("read", true).Error
}

// GetChatMessages повертає останні limit повідомлень чату в хронологічному порядку.
func (s *Service) GetChatMessages(chatID string, limit int) ([]models.Message, error) {
	var recent []models.Message
	err := s.DB.Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	// Newest-first from the query; flip to chronological for replay.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// BlockUser створює направлений блок blocker -> blocked. Повторний виклик no-op.
func (s *Service) BlockUser(blockerID, blockedID string) error {
	var block models.Block
	return s.DB.Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		FirstOrCreate(&block, models.Block{
			BlockerID: blockerID,
			BlockedID: blockedID,
			CreatedAt: time.Now(),
		}).Error
}

func (s *Service) IsBlocked(blockerID, blockedID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) CreateGame(game *models.Game) error {
	if err := s.DB.Create(game).Error; err != nil {
		log.Printf("ERROR: Failed to create game for chat %s: %v", game.ChatID, err)
		return err
	}
	return nil
}

func (s *Service) GetGame(gameID string) (*models.Game, error) {
	var game models.Game
	err := s.DB.Where("id = ?", gameID).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetActiveGameByChat повертає нетермінальну гру чату, або nil якщо її немає.
func (s *Service) GetActiveGameByChat(chatID string) (*models.Game, error) {
	var game models.Game
	err := s.DB.Where("chat_id = ? AND status NOT IN ?", chatID,
		[]models.GameStatus{models.StatusFinished, models.StatusCancelled}).
		Order("created_at DESC").
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// UpdateGameIfStatus застосовує updates лише якщо поточний статус гри входить
// у expect (compare-and-set). Повертає true, якщо перехід відбувся. Це єдиний
// шлях зміни гри: і дії гравців, і колбеки таймаутів проходять через нього,
// тому жоден перехід не спрацює двічі.
func (s *Service) UpdateGameIfStatus(gameID string, expect []models.GameStatus, updates map[string]interface{}) (bool, error) {
	result := s.DB.Model(&models.Game{}).
		Where("id = ? AND status IN ?", gameID, expect).
		Updates(updates)
	if result.Error != nil {
		log.Printf("ERROR: Conditional update of game %s failed: %v", gameID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) AddReport(report *models.Report) error {
	if report.Status == "" {
		report.Status = "new"
	}
	if err := s.DB.Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report for chat %s: %v", report.ChatID, err)
		return err
	}
	return nil
}

// ListReports повертає скарги з вказаним статусом, найновіші першими.
func (s *Service) ListReports(status string) ([]models.Report, error) {
	var reports []models.Report
	q := s.DB.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// ResolveReport позначає скаргу опрацьованою.
func (s *Service) ResolveReport(reportID uint) error {
	return s.DB.Model(&models.Report{}).
		Where("id = ?", reportID).
		Update("status", "resolved").Error
}

// IsUserBanned перевіряє статус бану в Redis (швидка перевірка)
func (s *Service) IsUserBanned(userID string) (bool, error) {
	status, err := s.Redis.Get(s.Ctx, config.KeyBan+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// SetUserBanned ставить прапорець бану з TTL. ttl=0 — безстроково.
func (s *Service) SetUserBanned(userID string, ttl time.Duration) error {
	return s.Redis.Set(s.Ctx, config.KeyBan+userID, "active", ttl).Err()
}

func (s *Service) ClearUserBan(userID string) error {
	return s.Redis.Del(s.Ctx, config.KeyBan+userID).Err()
}

// SetActiveChat запам'ятовує, який чат користувач зараз має відкритим.
func (s *Service) SetActiveChat(userID, chatID string) error {
	return s.Redis.Set(s.Ctx, config.KeyActiveChat+userID, chatID, 0).Err()
}

func (s *Service) GetActiveChat(userID string) (string, error) {
	chatID, err := s.Redis.Get(s.Ctx, config.KeyActiveChat+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return chatID, err
}

func (s *Service) ClearActiveChat(userID string) error {
	return s.Redis.Del(s.Ctx, config.KeyActiveChat+userID).Err()
}

// SetAwaitingStake позначає, що наступне медіа від користувача — це ставка
// для вказаної гри. TTL удвічі більший за вікно завантаження: після таймауту
// гру скасує колбек, ключ лише не має жити вічно.
func (s *Service) SetAwaitingStake(userID, gameID string) error {
	return s.Redis.Set(s.Ctx, config.KeyAwaitingRPS+userID, gameID, 2*config.StakeUploadTimeout).Err()
}

func (s *Service) GetAwaitingStake(userID string) (string, error) {
	gameID, err := s.Redis.Get(s.Ctx, config.KeyAwaitingRPS+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gameID, err
}

func (s *Service) ClearAwaitingStake(userID string) error {
	return s.Redis.Del(s.Ctx, config.KeyAwaitingRPS+userID).Err()
}

// PublishFeed публікує збережене повідомлення в Redis Pub/Sub для операторської стрічки.
func (s *Service) PublishFeed(msg models.Message) error {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, config.FeedChannel, string(msgBytes)).Err()
}

// SubscribeFeed підписується на канал операторської стрічки.
func (s *Service) SubscribeFeed() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, config.FeedChannel)
}
