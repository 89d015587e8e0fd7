package service

import (
	"errors"
	"time"

	"college-voting-backend/models"

	"gorm.io/gorm"
)

// faceMatchThreshold 直方图相似度阈值
const faceMatchThreshold = 0.85

// FaceService stores one face encoding per user and matches candidate
// captures against it. Matching is a normalized byte-histogram
// intersection; the encodings themselves come from the client-side
// capture pipeline and are treated as opaque blobs here.
type FaceService interface {
	Register(userID uint, encoding []byte, confidence float64) (*models.FaceEncoding, error)
	Verify(userID uint, encoding []byte) (bool, error)
	Status(userID uint) (*models.FaceEncoding, error)
}

// FaceServiceImpl 人脸服务实现
type FaceServiceImpl struct {
	db *gorm.DB
}

// NewFaceService 创建人脸服务
func NewFaceService(db *gorm.DB) FaceService {
	return &FaceServiceImpl{db: db}
}

// Register stores (or replaces) the user's reference encoding
func (s *FaceServiceImpl) Register(userID uint, encoding []byte, confidence float64) (*models.FaceEncoding, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}

	status := models.FacePending
	if confidence >= faceMatchThreshold {
		status = models.FaceVerified
	}

	record := models.FaceEncoding{
		UserID:     userID,
		Encoding:   encoding,
		Confidence: confidence,
		Status:     status,
	}
	if status == models.FaceVerified {
		now := time.Now()
		record.VerifiedAt = &now
	}

	// 重新注册时覆盖旧编码
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.FaceEncoding{}).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Verify matches the capture against the stored encoding and records
// the outcome. A user with no stored encoding gets ErrFaceNotRegistered.
func (s *FaceServiceImpl) Verify(userID uint, encoding []byte) (bool, error) {
	var record models.FaceEncoding
	if err := s.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrFaceNotRegistered
		}
		return false, err
	}

	similarity := histogramSimilarity(record.Encoding, encoding)
	matched := similarity >= faceMatchThreshold

	now := time.Now()
	updates := map[string]interface{}{
		"last_used_at": now,
		"confidence":   similarity,
	}
	if matched {
		updates["status"] = models.FaceVerified
		if record.VerifiedAt == nil {
			updates["verified_at"] = now
		}
	} else {
		updates["status"] = models.FaceFailed
	}
	if err := s.db.Model(&record).Updates(updates).Error; err != nil {
		return false, err
	}

	return matched, nil
}

// Status returns the stored record; ErrFaceNotRegistered when absent
func (s *FaceServiceImpl) Status(userID uint) (*models.FaceEncoding, error) {
	var record models.FaceEncoding
	if err := s.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFaceNotRegistered
		}
		return nil, err
	}
	return &record, nil
}

// histogramSimilarity computes the intersection of the two byte
// histograms normalized by the larger mass. Identical inputs score 1.0,
// disjoint distributions score 0.
func histogramSimilarity(a, b []byte) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var ha, hb [256]int
	for _, v := range a {
		ha[v]++
	}
	for _, v := range b {
		hb[v]++
	}

	intersection := 0
	for i := 0; i < 256; i++ {
		if ha[i] < hb[i] {
			intersection += ha[i]
		} else {
			intersection += hb[i]
		}
	}

	total := len(a)
	if len(b) > total {
		total = len(b)
	}
	return float64(intersection) / float64(total)
}
