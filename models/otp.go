package models

import (
	"time"

	"gorm.io/gorm"
)

// OTP is a one-time 6-digit code bound to a user. At most one
// unverified, unexpired OTP exists per user: issuing a new code deletes
// every prior unverified row first.
type OTP struct {
	gorm.Model
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	Code       string     `gorm:"type:varchar(6);not null" json:"-"`
	IsVerified bool       `gorm:"default:false" json:"is_verified"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// IsExpired reports whether the code is past its expiry
func (o *OTP) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}
