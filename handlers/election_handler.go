package handlers

import (
	"net/http"
	"strconv"
	"time"

	"college-voting-backend/models"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// ElectionController 选举与候选人目录控制器
type ElectionController struct {
	elections service.ElectionService
}

// NewElectionController 创建选举控制器
func NewElectionController(elections service.ElectionService) *ElectionController {
	return &ElectionController{elections: elections}
}

// RegisterPublicRoutes 注册公开只读路由
func (ctl *ElectionController) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.GET("/elections", ctl.ListElections)
	router.GET("/elections/:id", ctl.GetElection)
	router.GET("/elections/:id/candidates", ctl.ListCandidates)
	router.GET("/candidates", ctl.ListAllCandidates)
	router.GET("/candidates/:id", ctl.GetCandidate)
}

// RegisterAdminRoutes 注册管理路由，调用方挂在管理员中间件之后
func (ctl *ElectionController) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.POST("/elections", ctl.CreateElection)
	router.PUT("/elections/:id", ctl.UpdateElection)
	router.DELETE("/elections/:id", ctl.DeleteElection)
	router.POST("/elections/:id/candidates", ctl.CreateCandidate)
	router.DELETE("/candidates/:id", ctl.DeleteCandidate)
}

// CreateElectionInput 创建选举请求体
type CreateElectionInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	IsActive    *bool     `json:"is_active"`
}

// CreateCandidateInput 创建候选人请求体
type CreateCandidateInput struct {
	Name            string `json:"name" binding:"required"`
	SymbolNumber    int    `json:"symbol_number" binding:"required,min=1"`
	Description     string `json:"description"`
	Email           string `json:"email" binding:"omitempty,email"`
	Password        string `json:"password" binding:"omitempty,min=8"`
	CampaignMessage string `json:"campaign_message"`
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}

// ListElections 列出全部选举
func (ctl *ElectionController) ListElections(c *gin.Context) {
	elections, err := ctl.elections.ListElections()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, elections)
}

// GetElection 查询单个选举，含候选人
func (ctl *ElectionController) GetElection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	election, err := ctl.elections.GetElection(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, election)
}

// CreateElection 创建选举
func (ctl *ElectionController) CreateElection(c *gin.Context) {
	var input CreateElectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !input.EndTime.After(input.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	election := models.Election{
		Title:       input.Title,
		Description: input.Description,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		IsActive:    true,
	}
	if input.IsActive != nil {
		election.IsActive = *input.IsActive
	}

	if err := ctl.elections.CreateElection(&election); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, election)
}

// UpdateElection 部分更新选举
func (ctl *ElectionController) UpdateElection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var update service.ElectionUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	election, err := ctl.elections.UpdateElection(id, update)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, election)
}

// DeleteElection 删除选举及其候选人和选票
func (ctl *ElectionController) DeleteElection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctl.elections.DeleteElection(id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Election deleted"})
}

// ListCandidates 列出选举下的候选人
func (ctl *ElectionController) ListCandidates(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	candidates, err := ctl.elections.ListCandidates(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// ListAllCandidates 列出全部候选人
func (ctl *ElectionController) ListAllCandidates(c *gin.Context) {
	candidates, err := ctl.elections.ListAllCandidates()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// GetCandidate 查询单个候选人
func (ctl *ElectionController) GetCandidate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	candidate, err := ctl.elections.GetCandidate(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidate)
}

// CreateCandidate 在选举下创建候选人
func (ctl *ElectionController) CreateCandidate(c *gin.Context) {
	electionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input CreateCandidateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate := models.Candidate{
		ElectionID:      electionID,
		Name:            input.Name,
		SymbolNumber:    input.SymbolNumber,
		Description:     input.Description,
		Email:           input.Email,
		CampaignMessage: input.CampaignMessage,
	}

	if input.Password != "" {
		hash, err := hashPassword(input.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		candidate.HashedPassword = hash
	}

	if err := ctl.elections.CreateCandidate(&candidate); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, candidate)
}

// DeleteCandidate 删除候选人及其选票
func (ctl *ElectionController) DeleteCandidate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctl.elections.DeleteCandidate(id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Candidate deleted"})
}
