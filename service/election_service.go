package service

import (
	"context"
	"errors"
	"log"
	"time"

	"college-voting-backend/cache"
	"college-voting-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ElectionService manages the election catalog and its candidates.
// Deleting an election cascades to its candidates and votes in one
// transaction; that is a deliberate, destructive lifecycle decision.
type ElectionService interface {
	CreateElection(election *models.Election) error
	GetElection(id uint) (*models.Election, error)
	ListElections() ([]models.Election, error)
	UpdateElection(id uint, update ElectionUpdate) (*models.Election, error)
	DeleteElection(id uint) error

	CreateCandidate(candidate *models.Candidate) error
	GetCandidate(id uint) (*models.Candidate, error)
	ListCandidates(electionID uint) ([]models.Candidate, error)
	ListAllCandidates() ([]models.Candidate, error)
	UpdateCampaign(candidateID uint, message, about, poster string) (*models.Candidate, error)
	DeleteCandidate(id uint) error
	AuthenticateCandidate(email, password string) (*models.Candidate, error)

	RefreshStatuses() error
}

// ElectionUpdate carries the optional fields of a partial update.
// Pointers distinguish "not provided" from zero values.
type ElectionUpdate struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *models.ElectionStatus `json:"status"`
	StartTime   *time.Time             `json:"start_time"`
	EndTime     *time.Time             `json:"end_time"`
	IsActive    *bool                  `json:"is_active"`
}

// ElectionServiceImpl 选举服务实现
type ElectionServiceImpl struct {
	db     *gorm.DB
	filter *cache.BloomFilter
}

// NewElectionService 创建选举服务。filter可为nil，此时不维护
// 选举存在性过滤器。
func NewElectionService(db *gorm.DB, filter *cache.BloomFilter) ElectionService {
	return &ElectionServiceImpl{db: db, filter: filter}
}

// CreateElection stores a new election. Status defaults from the time
// window when not supplied. The new ID goes into the existence filter
// right away so the tally read path never rejects a fresh election.
func (s *ElectionServiceImpl) CreateElection(election *models.Election) error {
	if election.Status == "" {
		election.Status = election.WindowStatus(time.Now())
	}
	if err := s.db.Create(election).Error; err != nil {
		return err
	}
	if s.filter != nil {
		if err := s.filter.AddElection(context.Background(), election.ID); err != nil {
			log.Printf("更新选举过滤器失败: %v", err)
		}
	}
	return nil
}

// GetElection loads one election with its candidates
func (s *ElectionServiceImpl) GetElection(id uint) (*models.Election, error) {
	var election models.Election
	err := s.db.Preload("Candidates").First(&election, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}
	return &election, nil
}

// ListElections returns all elections, newest first
func (s *ElectionServiceImpl) ListElections() ([]models.Election, error) {
	var elections []models.Election
	err := s.db.Order("created_at desc").Find(&elections).Error
	return elections, err
}

// UpdateElection applies the provided fields only
func (s *ElectionServiceImpl) UpdateElection(id uint, update ElectionUpdate) (*models.Election, error) {
	var election models.Election
	if err := s.db.First(&election, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}

	if update.Title != nil {
		election.Title = *update.Title
	}
	if update.Description != nil {
		election.Description = *update.Description
	}
	if update.Status != nil {
		election.Status = *update.Status
	}
	if update.StartTime != nil {
		election.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		election.EndTime = *update.EndTime
	}
	if update.IsActive != nil {
		election.IsActive = *update.IsActive
	}

	if err := s.db.Save(&election).Error; err != nil {
		return nil, err
	}
	return &election, nil
}

// DeleteElection removes the election, its candidates and their votes.
// 级联删除在一个事务内完成，调用方必须提前警告用户。
func (s *ElectionServiceImpl) DeleteElection(id uint) error {
	var election models.Election
	if err := s.db.First(&election, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrElectionNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("election_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("election_id = ?", id).Delete(&models.Candidate{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Election{}, id).Error
	})
}

// CreateCandidate stores a candidate after checking its election exists.
// The (election_id, symbol_number) unique index backs the per-election
// symbol uniqueness.
func (s *ElectionServiceImpl) CreateCandidate(candidate *models.Candidate) error {
	var count int64
	if err := s.db.Model(&models.Election{}).Where("id = ?", candidate.ElectionID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrElectionNotFound
	}

	if err := s.db.Create(candidate).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrSymbolNumberTaken
		}
		return err
	}
	return nil
}

// GetCandidate loads one candidate
func (s *ElectionServiceImpl) GetCandidate(id uint) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := s.db.First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}
	return &candidate, nil
}

// ListCandidates returns the candidates of one election, by symbol number
func (s *ElectionServiceImpl) ListCandidates(electionID uint) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := s.db.Where("election_id = ?", electionID).
		Order("symbol_number asc").
		Find(&candidates).Error
	return candidates, err
}

// ListAllCandidates returns every candidate across elections
func (s *ElectionServiceImpl) ListAllCandidates() ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := s.db.Order("election_id asc, symbol_number asc").Find(&candidates).Error
	return candidates, err
}

// UpdateCampaign updates the candidate's self-service campaign profile
func (s *ElectionServiceImpl) UpdateCampaign(candidateID uint, message, about, poster string) (*models.Candidate, error) {
	candidate, err := s.GetCandidate(candidateID)
	if err != nil {
		return nil, err
	}

	candidate.CampaignMessage = message
	candidate.About = about
	if poster != "" {
		candidate.Poster = poster
	}

	if err := s.db.Save(candidate).Error; err != nil {
		return nil, err
	}
	return candidate, nil
}

// DeleteCandidate removes one candidate and their votes
func (s *ElectionServiceImpl) DeleteCandidate(id uint) error {
	var candidate models.Candidate
	if err := s.db.First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCandidateNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("candidate_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Candidate{}, id).Error
	})
}

// AuthenticateCandidate verifies candidate portal credentials
func (s *ElectionServiceImpl) AuthenticateCandidate(email, password string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := s.db.Where("email = ?", email).First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(candidate.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &candidate, nil
}

// RefreshStatuses syncs the stored status field with each election's
// time window. The status is informational only; casting consults just
// is_active.
func (s *ElectionServiceImpl) RefreshStatuses() error {
	now := time.Now()

	if err := s.db.Model(&models.Election{}).
		Where("status <> ? AND end_time < ?", models.ElectionCompleted, now).
		Update("status", models.ElectionCompleted).Error; err != nil {
		return err
	}

	if err := s.db.Model(&models.Election{}).
		Where("status = ? AND start_time <= ? AND end_time >= ?", models.ElectionUpcoming, now, now).
		Update("status", models.ElectionOngoing).Error; err != nil {
		return err
	}

	log.Println("选举状态已按时间窗口刷新")
	return nil
}
