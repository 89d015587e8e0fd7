package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"college-voting-backend/models"

	"gorm.io/gorm"
)

// OTPService issues and checks the one-time codes used for e-mail
// verification. Invariant: at most one unverified, unexpired OTP exists
// per user; issuing a new code removes every earlier unverified one in
// the same transaction.
type OTPService interface {
	Issue(userID uint) (string, error)
	Verify(userID uint, code string) error
	LatestPending(userID uint) (*models.OTP, error)
	CleanupExpired() (int64, error)
}

// OTPServiceImpl OTP服务实现
type OTPServiceImpl struct {
	db     *gorm.DB
	expiry time.Duration
}

// NewOTPService 创建OTP服务
func NewOTPService(db *gorm.DB, expiryMinutes int) OTPService {
	if expiryMinutes <= 0 {
		expiryMinutes = 10
	}
	return &OTPServiceImpl{
		db:     db,
		expiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// GenerateCode returns a uniform random 6-digit numeric string.
// Leading zeros are allowed, so "000042" is a valid code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("生成OTP失败: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue generates a fresh code for the user. The delete-then-insert runs
// inside one transaction so two concurrent issues can never leave two
// live codes behind.
func (s *OTPServiceImpl) Issue(userID uint) (string, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	otp := models.OTP{
		UserID:    userID,
		Code:      code,
		ExpiresAt: time.Now().Add(s.expiry),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 先作废该用户所有未验证的旧OTP，保证最新签发的码是唯一有效码
		if err := tx.Unscoped().
			Where("user_id = ? AND is_verified = ?", userID, false).
			Delete(&models.OTP{}).Error; err != nil {
			return err
		}
		return tx.Create(&otp).Error
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// Verify checks the code for the user. A wrong code, an already used
// code and a never issued code all fail the same way, so a caller cannot
// distinguish which happened. An expired row is deleted on the spot.
func (s *OTPServiceImpl) Verify(userID uint, code string) error {
	var otp models.OTP
	err := s.db.Where("user_id = ? AND code = ? AND is_verified = ?", userID, code, false).
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOTP
		}
		return err
	}

	if otp.IsExpired() {
		// 过期的码直接删除，重放同一个码也不会复活
		if err := s.db.Unscoped().Delete(&otp).Error; err != nil {
			log.Printf("删除过期OTP失败: %v", err)
		}
		return ErrInvalidOTP
	}

	// 条件更新保证一次性使用：两个并发验证只有一个能翻转该行
	now := time.Now()
	result := s.db.Model(&otp).
		Where("is_verified = ?", false).
		Updates(map[string]interface{}{
			"is_verified": true,
			"verified_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidOTP
	}
	return nil
}

// LatestPending returns the newest unverified OTP for status polling.
// Read-only: it does not reap expired rows.
func (s *OTPServiceImpl) LatestPending(userID uint) (*models.OTP, error) {
	var otp models.OTP
	err := s.db.Where("user_id = ? AND is_verified = ?", userID, false).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &otp, nil
}

// CleanupExpired removes every expired OTP row. Called from the periodic
// sweeper; verification already reaps lazily, this just keeps the table
// small.
func (s *OTPServiceImpl) CleanupExpired() (int64, error) {
	result := s.db.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&models.OTP{})
	return result.RowsAffected, result.Error
}
