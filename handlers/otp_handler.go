package handlers

import (
	"log"
	"net/http"
	"strconv"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/mailer"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// OTPController 邮箱验证码控制器。发送端点带每用户限流，
// 签发过程用分布式锁串行化，保证同一用户同时只有一个待验证码。
type OTPController struct {
	otps    service.OTPService
	mail    mailer.Sender
	limiter *cache.UserRateLimiter
	locks   *cache.DistributedLockService
}

// NewOTPController 创建OTP控制器
func NewOTPController(otps service.OTPService, mail mailer.Sender, limiter *cache.UserRateLimiter, locks *cache.DistributedLockService) *OTPController {
	return &OTPController{otps: otps, mail: mail, limiter: limiter, locks: locks}
}

// RegisterRoutes 注册OTP路由，调用方需挂在用户认证中间件之后
func (ctl *OTPController) RegisterRoutes(router *gin.RouterGroup) {
	otpGroup := router.Group("/otp")
	{
		otpGroup.POST("/request", ctl.Request)
		otpGroup.POST("/resend", ctl.Request)
		otpGroup.POST("/verify", ctl.Verify)
		otpGroup.GET("/status", ctl.Status)
	}
}

// VerifyOTPInput 验证请求体
type VerifyOTPInput struct {
	Code string `json:"code" binding:"required,len=6"`
}

// Request issues a fresh code for the current user and mails it. Any
// previous pending code is invalidated in the same transaction.
func (ctl *OTPController) Request(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if ctl.limiter != nil {
		allowed, err := ctl.limiter.AllowUser(c.Request.Context(), strconv.FormatUint(uint64(user.ID), 10))
		if err != nil {
			log.Printf("OTP限流检查失败: %v", err)
		} else if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests, try again later"})
			return
		}
	}

	var code string
	issue := func() error {
		var err error
		code, err = ctl.otps.Issue(user.ID)
		return err
	}

	var err error
	if ctl.locks != nil {
		err = ctl.locks.WithOTPLock(user.ID, issue)
	} else {
		err = issue()
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := ctl.mail.SendOTP(user.Email, code, user.FullName); err != nil {
		// 码已入库，邮件失败让客户端重试resend
		log.Printf("发送OTP邮件失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send verification mail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// Verify checks the submitted code against the latest pending one
func (ctl *OTPController) Verify(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input VerifyOTPInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.otps.Verify(user.ID, input.Code); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

// Status reports whether the current user has a pending code
func (ctl *OTPController) Status(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	pending, err := ctl.otps.LatestPending(user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if pending == nil {
		c.JSON(http.StatusOK, gin.H{"pending": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":    true,
		"expires_at": pending.ExpiresAt,
		"expired":    pending.IsExpired(),
	})
}
