package models

import (
	"gorm.io/gorm"
)

// UserRole defines the role of a registered user
type UserRole string

const (
	RoleStudent         UserRole = "student"
	RoleAdmin           UserRole = "admin"
	RoleElectionOfficer UserRole = "election_officer"
)

// User represents a registered voter account
type User struct {
	gorm.Model              // Includes fields like ID, CreatedAt, UpdatedAt, DeletedAt
	RollNumber     string   `gorm:"uniqueIndex;not null" json:"roll_number"`
	Email          string   `gorm:"uniqueIndex;not null" json:"email"`
	FullName       string   `gorm:"not null" json:"full_name"`
	HashedPassword string   `gorm:"not null" json:"-"`
	Role           UserRole `gorm:"type:varchar(32);default:student" json:"role"`
	IsActive       bool     `gorm:"default:true" json:"is_active"`
}

// Admin represents a management account, kept in a separate table
// from regular voters
type Admin struct {
	gorm.Model
	Email          string `gorm:"uniqueIndex;not null" json:"email"`
	FullName       string `json:"full_name"`
	HashedPassword string `gorm:"not null" json:"-"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
}
