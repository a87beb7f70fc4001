// Package accounts stores the users of the development identity service.
package accounts

import (
	"strings"
	"time"
)

// Account is a registered user.
type Account struct {
	UserID       string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null;default:''"`
	DisplayName  string    `gorm:"column:display_name;size:320;not null;default:''"`
	PhotoURL     string    `gorm:"column:photo_url;size:2048;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// Identity maps a federated provider login onto an account.
type Identity struct {
	Provider   string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject    string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID     string    `gorm:"column:user_id;size:190;not null;index"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing federated identities.
func (Identity) TableName() string {
	return "account_identities"
}

// RefreshToken is a long-lived token that mints new ID tokens. Only its hash is stored.
type RefreshToken struct {
	TokenHash        string    `gorm:"column:token_hash;primaryKey;size:64;not null"`
	UserID           string    `gorm:"column:user_id;size:190;not null;index"`
	ExpiresAtSeconds int64     `gorm:"column:expires_at_s;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing refresh tokens.
func (RefreshToken) TableName() string {
	return "account_refresh_tokens"
}

// GoogleProfile is the verified content of a Google ID token.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
