package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/config"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// VoteController 投票与计票控制器。计票读路径走TallyCache，
// 投一票后立即失效对应选举的缓存并推送最新结果。
type VoteController struct {
	votes      service.VoteService
	faces      service.FaceService
	cfg        *config.Config
	tallyCache *cache.TallyCache
	hub        *Hub
}

// NewVoteController 创建投票控制器
func NewVoteController(votes service.VoteService, faces service.FaceService, cfg *config.Config, tallyCache *cache.TallyCache, hub *Hub) *VoteController {
	return &VoteController{
		votes:      votes,
		faces:      faces,
		cfg:        cfg,
		tallyCache: tallyCache,
		hub:        hub,
	}
}

// RegisterRoutes 注册需要用户认证的投票路由
func (ctl *VoteController) RegisterRoutes(router *gin.RouterGroup) {
	votes := router.Group("/votes")
	{
		votes.POST("", ctl.Cast)
		votes.GET("/status/:electionID", ctl.HasVoted)
	}
}

// RegisterPublicRoutes 注册公开的计票路由
func (ctl *VoteController) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.GET("/elections/:id/results", ctl.Results)
}

// CastVoteInput 投票请求体
type CastVoteInput struct {
	ElectionID  uint   `json:"election_id" binding:"required"`
	CandidateID uint   `json:"candidate_id" binding:"required"`
	FaceCapture string `json:"face_capture"` // base64编码，开启人脸校验时必填
}

// Cast 投票。一人一票由存储层唯一索引兜底，并发重复请求只会有
// 一次成功。
func (ctl *VoteController) Cast(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input CastVoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 可选的人脸校验门
	if ctl.cfg.RequireFaceMatch {
		if input.FaceCapture == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Face capture is required"})
			return
		}
		capture, err := base64.StdEncoding.DecodeString(input.FaceCapture)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid face capture encoding"})
			return
		}
		matched, err := ctl.faces.Verify(user.ID, capture)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if !matched {
			respondServiceError(c, service.ErrFaceNotVerified)
			return
		}
	}

	vote, err := ctl.votes.Cast(user.ID, input.ElectionID, input.CandidateID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	log.Printf("[VOTE] 用户 %d 在选举 %d 投给候选人 %d", user.ID, input.ElectionID, input.CandidateID)

	// 投票成功后刷新缓存与推送通道
	cache.InvalidateTally(input.ElectionID)
	if _, err := cache.IncrementLiveCount(input.ElectionID, input.CandidateID); err != nil && err != cache.ErrRedisNotAvailable {
		log.Printf("更新实时票数失败: %v", err)
	}
	ctl.publishTally(input.ElectionID)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Vote cast successfully",
		"vote":    vote,
	})
}

// HasVoted 查询当前用户在某选举是否已投票
func (ctl *VoteController) HasVoted(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	electionID, ok := parseIDParam(c, "electionID")
	if !ok {
		return
	}

	voted, err := ctl.votes.HasVoted(user.ID, electionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"election_id": electionID,
		"has_voted":   voted,
	})
}

// Results 返回选举计票。零票候选人也出现在结果中，排序稳定。
func (ctl *VoteController) Results(c *gin.Context) {
	electionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// 缓存层不可用时直接回源
	if ctl.tallyCache == nil {
		results, err := ctl.votes.Tally(electionID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"election_id": electionID, "results": results})
		return
	}

	payload, exists, err := ctl.tallyCache.Get(c.Request.Context(), electionID, func() (interface{}, bool, error) {
		results, err := ctl.votes.Tally(electionID)
		if err == service.ErrElectionNotFound {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return results, true, nil
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !exists {
		respondServiceError(c, service.ErrElectionNotFound)
		return
	}

	var results json.RawMessage = []byte(payload)
	c.JSON(http.StatusOK, gin.H{"election_id": electionID, "results": results})
}

// publishTally 把最新计票推送到WebSocket和SSE通道
func (ctl *VoteController) publishTally(electionID uint) {
	results, err := ctl.votes.Tally(electionID)
	if err != nil {
		log.Printf("重算选举 %d 计票失败: %v", electionID, err)
		return
	}

	if ctl.hub != nil {
		ctl.hub.BroadcastResults(electionID, results)
	}
	BroadcastSSE(electionID, results)
}
