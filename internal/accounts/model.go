package accounts

import (
	"strings"
	"time"
)

// Account captures a registered identity backed by an email and password hash.
type Account struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:128;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing registered accounts.
func (Account) TableName() string {
	return "accounts"
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
