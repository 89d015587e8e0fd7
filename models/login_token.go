package models

import (
	"time"

	"gorm.io/gorm"
)

// LoginToken is a single-use, time-boxed credential delivered by e-mail.
// It lets a freshly registered user establish a session without typing
// a password.
type LoginToken struct {
	gorm.Model
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Token     string     `gorm:"uniqueIndex;not null" json:"-"`
	IsUsed    bool       `gorm:"default:false" json:"is_used"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// IsValid reports whether the token can still be redeemed
func (t *LoginToken) IsValid() bool {
	return !t.IsUsed && time.Now().Before(t.ExpiresAt)
}
