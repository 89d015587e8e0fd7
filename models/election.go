package models

import (
	"time"

	"gorm.io/gorm"
)

// ElectionStatus describes where an election sits in its time window
type ElectionStatus string

const (
	ElectionUpcoming  ElectionStatus = "upcoming"
	ElectionOngoing   ElectionStatus = "ongoing"
	ElectionCompleted ElectionStatus = "completed"
)

// Election represents one election and owns its candidates.
// IsActive gates vote casting independently of the time window.
type Election struct {
	gorm.Model
	Title       string         `gorm:"not null;index" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      ElectionStatus `gorm:"type:varchar(16);default:upcoming" json:"status"`
	StartTime   time.Time      `gorm:"not null" json:"start_time"`
	EndTime     time.Time      `gorm:"not null" json:"end_time"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Candidates  []Candidate    `gorm:"foreignKey:ElectionID" json:"candidates,omitempty"`
}

// WindowStatus derives the status from the time window. 存库的status字段
// 由定时任务刷新，投票时不参考时间窗口。
func (e *Election) WindowStatus(now time.Time) ElectionStatus {
	switch {
	case now.Before(e.StartTime):
		return ElectionUpcoming
	case now.After(e.EndTime):
		return ElectionCompleted
	default:
		return ElectionOngoing
	}
}

// Candidate represents a contestant within one election
type Candidate struct {
	gorm.Model
	ElectionID      uint   `gorm:"not null;index;uniqueIndex:idx_election_symbol,priority:1" json:"election_id"`
	Name            string `gorm:"not null" json:"name"`
	Description     string `gorm:"type:text" json:"description"`
	SymbolNumber    int    `gorm:"not null;uniqueIndex:idx_election_symbol,priority:2" json:"symbol_number"`
	Email           string `gorm:"index" json:"email,omitempty"`
	HashedPassword  string `json:"-"`
	CampaignMessage string `gorm:"type:text" json:"campaign_message,omitempty"`
	About           string `gorm:"type:text" json:"about,omitempty"`
	Poster          string `gorm:"type:text" json:"poster,omitempty"`
}
