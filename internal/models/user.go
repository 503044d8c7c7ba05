package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

// User представляє користувача в системі.
// Містить ідентифікацію, демографічні дані та прапорці преміума/бану.
type User struct {
	ID         string         `gorm:"primaryKey" json:"id"` // Анонімний UUID
	TelegramID int64          `gorm:"uniqueIndex"`
	Name       string
	Age        int
	Gender     string // "male", "female", "other"
	Interests  pq.StringArray `gorm:"type:text[]"`
	Language   string         `gorm:"default:en"`

	Premium      bool
	PremiumUntil *time.Time // nil = безстроковий преміум

	Banned   bool
	BanUntil *time.Time
}

// BeforeCreate — це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// IsPremium reports whether the premium flag is in effect at the given time.
func (u *User) IsPremium(now time.Time) bool {
	if !u.Premium {
		return false
	}
	return u.PremiumUntil == nil || now.Before(*u.PremiumUntil)
}

// Profile is a user's published contact card. A user has at most one active
// profile; opening a chat references the profile that was shown to the sender.
type Profile struct {
	ID        string `gorm:"primaryKey"` // UUID
	UserID    string `gorm:"index"`
	Bio       string
	Active    bool `gorm:"index"`
	CreatedAt time.Time
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
