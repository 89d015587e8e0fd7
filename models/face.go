package models

import (
	"time"

	"gorm.io/gorm"
)

// FaceStatus tracks whether a stored face encoding has been accepted
type FaceStatus string

const (
	FacePending  FaceStatus = "pending"
	FaceVerified FaceStatus = "verified"
	FaceFailed   FaceStatus = "failed"
)

// FaceEncoding stores one opaque face encoding per user, used as an
// optional gate before voting. The matching itself is a similarity
// heuristic, not real face recognition.
type FaceEncoding struct {
	gorm.Model
	UserID     uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Encoding   []byte     `gorm:"type:blob;not null" json:"-"`
	Confidence float64    `gorm:"default:0" json:"confidence"`
	Status     FaceStatus `gorm:"type:varchar(16);default:pending" json:"status"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
