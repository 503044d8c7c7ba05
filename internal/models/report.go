package models

import "time"

// Report is a complaint filed by one chat participant against the other.
// Moderation happens outside this service; we only record and list.
type Report struct {
	ID         uint `gorm:"primaryKey"`
	ChatID     string
	ReporterID string
	ReportedID string
	Reason     string
	Status     string `gorm:"default:new"` // "new", "resolved"
	CreatedAt  time.Time
}

// Payment records a premium purchase. Processing is external; this is the
// audit trail the admin tooling writes when granting premium.
type Payment struct {
	ID        uint `gorm:"primaryKey"`
	UserID    string
	Plan      string
	Method    string
	Amount    string
	CreatedAt time.Time
}
