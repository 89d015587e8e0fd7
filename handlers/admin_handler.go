package handlers

import (
	"log"
	"net/http"

	"college-voting-backend/auth"
	"college-voting-backend/mq"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// AdminController 管理后台控制器
type AdminController struct {
	admins     service.AdminService
	tokens     *auth.TokenManager
	dispatcher *mq.MailDispatcher
}

// NewAdminController 创建管理控制器
func NewAdminController(admins service.AdminService, tokens *auth.TokenManager, dispatcher *mq.MailDispatcher) *AdminController {
	return &AdminController{admins: admins, tokens: tokens, dispatcher: dispatcher}
}

// RegisterPublicRoutes 注册管理员登录路由
func (ctl *AdminController) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/admin/login", ctl.Login)
}

// RegisterProtectedRoutes 注册需要管理员令牌的路由
func (ctl *AdminController) RegisterProtectedRoutes(router *gin.RouterGroup) {
	// 新管理员由已有管理员创建，首个账号由开发环境种子提供
	router.POST("/admin/register", ctl.Register)
	router.GET("/admin/me", ctl.Me)
	router.GET("/admin/users", ctl.ListUsers)
	router.PUT("/admin/users/:id/active", ctl.SetUserActive)
	router.GET("/admin/stats", ctl.Stats)
	router.GET("/admin/mail-queue", ctl.MailQueueStats)
	router.POST("/admin/mail-queue/retry", ctl.RetryMailDeadLetters)
}

// SetActiveInput 启用/停用用户请求体
type SetActiveInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// AdminRegisterInput 创建管理员请求体
type AdminRegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register 创建新管理员账号
func (ctl *AdminController) Register(c *gin.Context) {
	var input AdminRegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admin, err := ctl.admins.Register(input.Email, input.FullName, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, admin)
}

// Login 管理员登录
func (ctl *AdminController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admin, err := ctl.admins.Login(input.Email, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := ctl.tokens.IssueForID(admin.ID, auth.TokenKindAdmin)
	if err != nil {
		log.Printf("签发管理员令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"admin":        admin,
	})
}

// Me 返回当前管理员
func (ctl *AdminController) Me(c *gin.Context) {
	admin := auth.CurrentAdmin(c)
	if admin == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, admin)
}

// ListUsers 返回选民名册
func (ctl *AdminController) ListUsers(c *gin.Context) {
	users, err := ctl.admins.ListUsers()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SetUserActive 启用或停用用户账号
func (ctl *AdminController) SetUserActive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input SetActiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.admins.SetUserActive(id, *input.IsActive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Stats 返回管理面板统计
func (ctl *AdminController) Stats(c *gin.Context) {
	stats, err := ctl.admins.DashboardStats()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MailQueueStats 返回邮件队列状态
func (ctl *AdminController) MailQueueStats(c *gin.Context) {
	if ctl.dispatcher == nil {
		c.JSON(http.StatusOK, gin.H{"mode": "disabled"})
		return
	}
	c.JSON(http.StatusOK, ctl.dispatcher.QueueStats())
}

// RetryMailDeadLetters 重投死信队列中的邮件
func (ctl *AdminController) RetryMailDeadLetters(c *gin.Context) {
	if ctl.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Mail queue disabled"})
		return
	}
	if err := ctl.dispatcher.RetryDeadLetters(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dead letters requeued"})
}
