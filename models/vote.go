package models

import (
	"gorm.io/gorm"
)

// Vote records one ballot. The composite unique index on
// (user_id, election_id) is what actually prevents double voting under
// concurrent submissions; the application-level check only produces a
// nicer error for the sequential case.
type Vote struct {
	gorm.Model
	UserID      uint `gorm:"not null;uniqueIndex:idx_user_election,priority:1" json:"user_id"`
	ElectionID  uint `gorm:"not null;uniqueIndex:idx_user_election,priority:2;index" json:"election_id"`
	CandidateID uint `gorm:"not null;index" json:"candidate_id"`
}

// CandidateResult is one row of an election tally
type CandidateResult struct {
	CandidateID   uint   `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
	VoteCount     int64  `json:"vote_count"`
}
