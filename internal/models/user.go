package models

import "time"

// User represents application user.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255"`
	DisplayName  string    `gorm:"size:64"`
	Email        string    `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Discord OAuth profile, filled in when the user links Discord.
	DiscordID       string `gorm:"size:100;index"`
	DiscordUsername string `gorm:"size:255"`
	AvatarURL       string `gorm:"size:512"`

	FailedLoginAttempts int        `gorm:"default:0"`
	LockedUntil         *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastLoginIP         string `gorm:"size:64"`
}
