package service

import (
	"errors"
	"strings"

	"college-voting-backend/models"

	"gorm.io/gorm"
)

// VoteService is the vote ledger: it records one immutable ballot per
// (user, election) pair and derives tallies. Identity gating (OTP /
// face match) is a policy applied at the HTTP boundary, never in here.
type VoteService interface {
	Cast(userID, electionID, candidateID uint) (*models.Vote, error)
	Tally(electionID uint) ([]models.CandidateResult, error)
	HasVoted(userID, electionID uint) (bool, error)
}

// VoteServiceImpl 投票服务实现
type VoteServiceImpl struct {
	db *gorm.DB
}

// NewVoteService 创建投票服务
func NewVoteService(db *gorm.DB) VoteService {
	return &VoteServiceImpl{db: db}
}

// Cast validates the preconditions and inserts the ballot. The
// application-level duplicate check gives the sequential case a clean
// error; the unique index on (user_id, election_id) is what rejects the
// loser of a concurrent race, and that rejection is surfaced as the same
// ErrAlreadyVoted.
func (s *VoteServiceImpl) Cast(userID, electionID, candidateID uint) (*models.Vote, error) {
	var election models.Election
	if err := s.db.First(&election, electionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}

	if !election.IsActive {
		return nil, ErrElectionInactive
	}

	var candidate models.Candidate
	err := s.db.Where("id = ? AND election_id = ?", candidateID, electionID).
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}

	var existing int64
	err = s.db.Model(&models.Vote{}).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyVoted
	}

	vote := models.Vote{
		UserID:      userID,
		ElectionID:  electionID,
		CandidateID: candidateID,
	}
	if err := s.db.Create(&vote).Error; err != nil {
		if isDuplicateKey(err) {
			// 并发竞争下输掉的那一次插入，和顺序重复投票返回同一个错误
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}

	return &vote, nil
}

// Tally returns one row per candidate of the election, zero-vote
// candidates included, ordered by vote count descending with candidate
// id ascending as the deterministic tie-break.
func (s *VoteServiceImpl) Tally(electionID uint) ([]models.CandidateResult, error) {
	var count int64
	if err := s.db.Model(&models.Election{}).Where("id = ?", electionID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrElectionNotFound
	}

	var results []models.CandidateResult
	err := s.db.Model(&models.Candidate{}).
		Select("candidates.id AS candidate_id, candidates.name AS candidate_name, COUNT(votes.id) AS vote_count").
		Joins("LEFT JOIN votes ON votes.candidate_id = candidates.id AND votes.election_id = ? AND votes.deleted_at IS NULL", electionID).
		Where("candidates.election_id = ?", electionID).
		Group("candidates.id, candidates.name").
		Order("vote_count DESC, candidate_id ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

// HasVoted is a pure read with no side effects
func (s *VoteServiceImpl) HasVoted(userID, electionID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Vote{}).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// isDuplicateKey 识别数据库层的唯一键冲突。gorm的TranslateError在MySQL和
// SQLite下都会翻译，字符串匹配作为兜底。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
