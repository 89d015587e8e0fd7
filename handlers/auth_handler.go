package handlers

import (
	"log"
	"net/http"

	"college-voting-backend/auth"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// AuthController 注册与登录控制器
type AuthController struct {
	users  service.UserService
	tokens *auth.TokenManager
}

// NewAuthController 创建认证控制器
func NewAuthController(users service.UserService, tokens *auth.TokenManager) *AuthController {
	return &AuthController{users: users, tokens: tokens}
}

// RegisterRoutes 注册认证相关路由
func (ctl *AuthController) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", ctl.Register)
		authGroup.POST("/login", ctl.Login)
		authGroup.POST("/login-token", ctl.LoginWithToken)
	}
}

// RegisterInput 注册请求体
type RegisterInput struct {
	RollNumber string `json:"roll_number" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	FullName   string `json:"full_name" binding:"required"`
	Password   string `json:"password" binding:"required,min=8"`
}

// LoginInput 登录请求体
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenLoginInput 链接登录请求体
type TokenLoginInput struct {
	Token string `json:"token" binding:"required"`
}

// Register handles new voter registration. A created account always
// returns 201 even when the confirmation mails could not be sent.
func (ctl *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.users.Register(service.RegisterInput{
		RollNumber: input.RollNumber,
		Email:      input.Email,
		FullName:   input.FullName,
		Password:   input.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Check your mail for the verification code.",
		"user":    user,
	})
}

// Login 密码登录，签发用户访问令牌
func (ctl *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.users.Login(input.Email, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := ctl.tokens.Issue(user.Email, auth.TokenKindUser)
	if err != nil {
		log.Printf("签发访问令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// LoginWithToken 使用注册邮件中的一次性链接令牌登录
func (ctl *AuthController) LoginWithToken(c *gin.Context) {
	var input TokenLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.users.LoginWithToken(input.Token)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := ctl.tokens.Issue(user.Email, auth.TokenKindUser)
	if err != nil {
		log.Printf("签发访问令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Me 返回当前登录用户
func (ctl *AuthController) Me(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}
