package service

import (
	"errors"

	"college-voting-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminService covers the management portal: admin credential checks,
// voter roll administration and dashboard aggregates.
type AdminService interface {
	Register(email, fullName, password string) (*models.Admin, error)
	Login(email, password string) (*models.Admin, error)
	GetAdmin(id uint) (*models.Admin, error)
	ListUsers() ([]models.User, error)
	SetUserActive(userID uint, active bool) (*models.User, error)
	DashboardStats() (*DashboardStats, error)
}

// DashboardStats 管理后台统计数据
type DashboardStats struct {
	TotalUsers      int64 `json:"total_users"`
	VerifiedUsers   int64 `json:"verified_users"`
	TotalElections  int64 `json:"total_elections"`
	ActiveElections int64 `json:"active_elections"`
	TotalCandidates int64 `json:"total_candidates"`
	TotalVotes      int64 `json:"total_votes"`
}

// AdminServiceImpl 管理服务实现
type AdminServiceImpl struct {
	db *gorm.DB
}

// NewAdminService 创建管理服务
func NewAdminService(db *gorm.DB) AdminService {
	return &AdminServiceImpl{db: db}
}

// Register creates a new admin account
func (s *AdminServiceImpl) Register(email, fullName, password string) (*models.Admin, error) {
	var count int64
	if err := s.db.Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	admin := models.Admin{
		Email:          email,
		FullName:       fullName,
		HashedPassword: string(hash),
		IsActive:       true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &admin, nil
}

// Login verifies admin credentials
func (s *AdminServiceImpl) Login(email, password string) (*models.Admin, error) {
	var admin models.Admin
	if err := s.db.Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &admin, nil
}

// GetAdmin 按ID查询管理员
func (s *AdminServiceImpl) GetAdmin(id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := s.db.First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// ListUsers returns the full voter roll, newest first
func (s *AdminServiceImpl) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserActive flips the active flag; inactive users cannot log in or vote
func (s *AdminServiceImpl) SetUserActive(userID uint, active bool) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.db.Model(&user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active
	return &user, nil
}

// DashboardStats aggregates headline counts for the admin dashboard
func (s *AdminServiceImpl) DashboardStats() (*DashboardStats, error) {
	var stats DashboardStats

	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	// 已通过OTP验证的用户数
	if err := s.db.Model(&models.OTP{}).Where("is_verified = ?", true).
		Distinct("user_id").Count(&stats.VerifiedUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Election{}).Count(&stats.TotalElections).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Election{}).
		Where("is_active = ? AND status = ?", true, models.ElectionOngoing).
		Count(&stats.ActiveElections).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Candidate{}).Count(&stats.TotalCandidates).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Vote{}).Count(&stats.TotalVotes).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
