package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"college-voting-backend/mailer"
	"college-voting-backend/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService handles registration and credential verification. The
// registration flow commits the user first; the welcome mail and the
// OTP mail are soft steps. A delivery failure is logged and reported
// but never rolls the registration back (the resend endpoint exists to
// recover).
type UserService interface {
	Register(input RegisterInput) (*models.User, error)
	Login(email, password string) (*models.User, error)
	LoginWithToken(token string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	IssueLoginToken(userID uint) (string, error)
}

// RegisterInput is the validated registration payload
type RegisterInput struct {
	RollNumber string
	Email      string
	FullName   string
	Password   string
}

// UserServiceImpl 用户服务实现
type UserServiceImpl struct {
	db          *gorm.DB
	otp         OTPService
	mail        mailer.Sender
	frontendURL string
	loginTTL    time.Duration
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB, otp OTPService, mail mailer.Sender, frontendURL string, loginTokenTTL time.Duration) UserService {
	if loginTokenTTL <= 0 {
		loginTokenTTL = 24 * time.Hour
	}
	return &UserServiceImpl{
		db:          db,
		otp:         otp,
		mail:        mail,
		frontendURL: frontendURL,
		loginTTL:    loginTokenTTL,
	}
}

// Register creates the account, then issues the login link and the
// verification OTP and mails both.
func (s *UserServiceImpl) Register(input RegisterInput) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	if err := s.db.Model(&models.User{}).Where("roll_number = ?", input.RollNumber).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrRollNumberTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	user := models.User{
		RollNumber:     input.RollNumber,
		Email:          input.Email,
		FullName:       input.FullName,
		HashedPassword: string(hash),
		Role:           models.RoleStudent,
		IsActive:       true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Printf("[REGISTRATION] 用户创建成功: %s (ID=%d)", user.Email, user.ID)

	// 登录链接邮件失败不影响注册结果
	if token, err := s.IssueLoginToken(user.ID); err != nil {
		log.Printf("[REGISTRATION] 生成登录令牌失败: %v", err)
	} else {
		loginURL := fmt.Sprintf("%s/login?token=%s", s.frontendURL, token)
		if err := s.mail.SendLoginLink(user.Email, user.FullName, loginURL); err != nil {
			log.Printf("[REGISTRATION] 发送欢迎邮件失败: %v", err)
		}
	}

	// OTP同样是尽力而为：码已入库，邮件失败可以通过resend恢复
	if code, err := s.otp.Issue(user.ID); err != nil {
		log.Printf("[REGISTRATION] 生成OTP失败: %v", err)
	} else if err := s.mail.SendOTP(user.Email, code, user.FullName); err != nil {
		log.Printf("[REGISTRATION] 发送OTP邮件失败: %v", err)
	}

	return &user, nil
}

// Login verifies the password and the active flag
func (s *UserServiceImpl) Login(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	return &user, nil
}

// LoginWithToken redeems a single-use login link token
func (s *UserServiceImpl) LoginWithToken(token string) (*models.User, error) {
	var loginToken models.LoginToken
	if err := s.db.Where("token = ?", token).First(&loginToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLoginToken
		}
		return nil, err
	}

	if !loginToken.IsValid() {
		return nil, ErrInvalidLoginToken
	}

	var user models.User
	if err := s.db.First(&user, loginToken.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	// 条件更新保证令牌只能兑换一次，并发兑换只有一个成功
	now := time.Now()
	result := s.db.Model(&loginToken).
		Where("is_used = ?", false).
		Updates(map[string]interface{}{
			"is_used": true,
			"used_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidLoginToken
	}

	return &user, nil
}

// GetByEmail looks a user up by e-mail
func (s *UserServiceImpl) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IssueLoginToken creates a 24h single-use login token for the user
func (s *UserServiceImpl) IssueLoginToken(userID uint) (string, error) {
	token := uuid.NewString()
	record := models.LoginToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.loginTTL),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", err
	}
	return token, nil
}
