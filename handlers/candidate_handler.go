package handlers

import (
	"log"
	"net/http"

	"college-voting-backend/auth"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// CandidatePortalController 候选人门户：登录和竞选资料维护
type CandidatePortalController struct {
	elections service.ElectionService
	tokens    *auth.TokenManager
}

// NewCandidatePortalController 创建候选人门户控制器
func NewCandidatePortalController(elections service.ElectionService, tokens *auth.TokenManager) *CandidatePortalController {
	return &CandidatePortalController{elections: elections, tokens: tokens}
}

// RegisterPublicRoutes 注册候选人登录路由
func (ctl *CandidatePortalController) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/candidate/login", ctl.Login)
}

// RegisterProtectedRoutes 注册需要候选人令牌的路由
func (ctl *CandidatePortalController) RegisterProtectedRoutes(router *gin.RouterGroup) {
	router.GET("/candidate/me", ctl.Me)
	router.PUT("/candidate/campaign", ctl.UpdateCampaign)
}

// CampaignInput 竞选资料更新请求体
type CampaignInput struct {
	CampaignMessage string `json:"campaign_message"`
	About           string `json:"about"`
	Poster          string `json:"poster"`
}

// Login 候选人凭据登录，签发候选人令牌
func (ctl *CandidatePortalController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate, err := ctl.elections.AuthenticateCandidate(input.Email, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := ctl.tokens.IssueForID(candidate.ID, auth.TokenKindCandidate)
	if err != nil {
		log.Printf("签发候选人令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"candidate":    candidate,
	})
}

// Me 返回当前候选人资料
func (ctl *CandidatePortalController) Me(c *gin.Context) {
	candidate := auth.CurrentCandidate(c)
	if candidate == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, candidate)
}

// UpdateCampaign 更新当前候选人的竞选资料
func (ctl *CandidatePortalController) UpdateCampaign(c *gin.Context) {
	candidate := auth.CurrentCandidate(c)
	if candidate == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input CampaignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := ctl.elections.UpdateCampaign(candidate.ID, input.CampaignMessage, input.About, input.Poster)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
